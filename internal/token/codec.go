// Package token converts text to and from backend token ids. Encoding owns
// the truncation policy that keeps prompts inside the active batch capacity;
// decoding reassembles UTF-8 text from per-token byte fragments.
package token

import (
	"errors"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"github.com/mindbench/mindbench/internal/backend"
)

const (
	// MaxPromptChars is the absolute ceiling on raw prompt length before
	// the backend is consulted at all.
	MaxPromptChars = 2048

	// Truncation triggers when the token count reaches truncateThreshold
	// of the batch capacity and aims for truncateTarget of it, keeping
	// headroom for the leading marker and a few generated tokens.
	truncateThreshold = 0.75
	truncateTarget    = 0.66

	maxTruncateAttempts = 3

	// syntheticMaxTokens bounds the fallback sequence built when the
	// backend cannot tokenize a text at all.
	syntheticMaxTokens = 32
)

// Codec encodes and decodes against one engine's vocabulary. It is not safe
// for concurrent use; one codec belongs to one generation session.
type Codec struct {
	eng       backend.Engine
	vocab     int
	batchSize int
	pending   []byte
}

func NewCodec(eng backend.Engine, batchSize int) *Codec {
	return &Codec{
		eng:       eng,
		vocab:     eng.VocabSize(),
		batchSize: batchSize,
	}
}

// Encode converts text into token ids. It never fails: when the backend
// cannot produce an acceptable sequence within the truncation budget, a
// deterministic synthetic sequence stands in so the pipeline keeps moving.
func (c *Codec) Encode(text string, addLeadingMarker bool) []int {
	text = ClampChars(text, MaxPromptChars)

	threshold := int(float64(c.batchSize) * truncateThreshold)
	target := int(float64(c.batchSize) * truncateTarget)

	var (
		ids []int
		err error
	)
	for attempt := 0; attempt < maxTruncateAttempts; attempt++ {
		ids, err = c.eng.Tokenize(text, addLeadingMarker)
		if err != nil {
			var tce *backend.TokenCountError
			if errors.As(err, &tce) && tce.Required > 0 {
				text = scalePrefix(text, target, tce.Required)
				continue
			}
			return c.synthetic(text)
		}
		if !c.inVocab(ids) {
			return c.synthetic(text)
		}
		if len(ids) >= threshold {
			text = scalePrefix(text, target, len(ids))
			continue
		}
		return ids
	}

	// Truncation budget exhausted. Accept the last sequence if it still
	// fits a batch, otherwise fail closed.
	if err == nil && len(ids) > 0 && len(ids) <= c.batchSize && c.inVocab(ids) {
		return ids
	}
	return c.synthetic(text)
}

// Decode appends the byte fragment for tokenID to the pending buffer and
// returns accumulated text once the buffer forms valid UTF-8. Multi-byte
// sequences split across steps stay pending until complete.
func (c *Codec) Decode(tokenID int) string {
	frag := c.eng.Piece(tokenID)
	if len(frag) == 0 {
		return ""
	}
	c.pending = append(c.pending, frag...)
	if !utf8.Valid(c.pending) {
		return ""
	}
	out := string(c.pending)
	c.pending = c.pending[:0]
	return out
}

// ResetPending drops any incomplete byte fragments. Called between prompts.
func (c *Codec) ResetPending() {
	c.pending = c.pending[:0]
}

// PendingBytes reports how many undecoded bytes are buffered.
func (c *Codec) PendingBytes() int {
	return len(c.pending)
}

func (c *Codec) inVocab(ids []int) bool {
	for _, id := range ids {
		if id < 0 || id >= c.vocab {
			return false
		}
	}
	return true
}

// synthetic derives a bounded token sequence from a hash of the
// whitespace-split words. Deterministic for a given text and vocabulary.
func (c *Codec) synthetic(text string) []int {
	words := strings.Fields(text)
	if len(words) > syntheticMaxTokens {
		words = words[:syntheticMaxTokens]
	}
	ids := make([]int, 0, len(words)+1)
	for _, w := range words {
		ids = append(ids, int(hashWord(w)%uint64(c.vocab)))
	}
	if len(ids) == 0 {
		ids = append(ids, int(hashWord("")%uint64(c.vocab)))
	}
	return ids
}

// ClampChars keeps at most max runes of text. Already-short text comes back
// unchanged, so clamping is idempotent.
func ClampChars(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

// scalePrefix shrinks text proportionally so that a sequence of roughly
// actual tokens lands near target tokens. The prefix is always what survives.
func scalePrefix(text string, target, actual int) string {
	if actual <= 0 || target <= 0 {
		return text
	}
	runes := []rune(text)
	n := len(runes) * target / actual
	if n < 1 {
		n = 1
	}
	if n >= len(runes) {
		// Cannot shrink further by scaling; drop one rune to keep the
		// attempt loop making progress.
		n = len(runes) - 1
		if n < 1 {
			return text
		}
	}
	return string(runes[:n])
}

func hashWord(w string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(w))
	return h.Sum64()
}
