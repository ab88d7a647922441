// Package toy provides a deterministic in-process backend.Engine. It stands
// in for a real accelerator runtime in tests and smoke runs: logits are
// derived from a seeded generator and every failure mode of the real contract
// (tokenize overflow, decode failure, missing logits) can be scripted.
package toy

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/mindbench/mindbench/internal/backend"
	"github.com/mindbench/mindbench/internal/profile"
)

const (
	// Vocabulary layout: 0 terminates generation, 1 is the leading marker,
	// 2..11 decode to the digits "0".."9", everything above is synthetic
	// word pieces.
	EOGToken     = 0
	BOSToken     = 1
	DigitBase    = 2
	wordBase     = 12
	defaultVocab = 256
)

func init() {
	backend.Register("toy", Factory)
}

// Factory satisfies backend.Factory. The model path only seeds the generator
// so repeated runs against the same "model" agree.
func Factory(modelPath string, prof profile.Profile) (backend.Engine, error) {
	return New(prof, WithSeed(int64(hashString(modelPath)))), nil
}

type Option func(*Engine)

func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithLogitsFunc overrides logit generation. call counts SubmitBatch calls
// that asked for logits, starting at 0 for the prompt batch. Returning nil
// simulates a backend with no logit pointer for that step.
func WithLogitsFunc(f func(call, vocab int) []float32) Option {
	return func(e *Engine) { e.logitsAt = f }
}

// WithSubmitFailures makes the n-th and following SubmitBatch calls fail
// count times before succeeding again.
func WithSubmitFailures(call, count int) Option {
	return func(e *Engine) { e.failAt[call] = count }
}

func WithTokenizeError(err error) Option {
	return func(e *Engine) { e.tokenizeErr = err }
}

func WithPieces(pieces map[int]string) Option {
	return func(e *Engine) {
		for id, s := range pieces {
			e.pieces[id] = []byte(s)
		}
	}
}

// WithPieceBytes overrides a vocabulary entry with raw bytes, including
// partial UTF-8 sequences.
func WithPieceBytes(id int, b []byte) Option {
	return func(e *Engine) { e.pieces[id] = append([]byte(nil), b...) }
}

// Engine implements backend.Engine. It is not safe for concurrent use, same
// as the real runtimes it stands in for; callers serialize through
// backend.Dispatcher.
type Engine struct {
	prof  profile.Profile
	seed  int64
	vocab int

	pieces   map[int][]byte
	logitsAt func(call, vocab int) []float32
	failAt   map[int]int

	tokenizeErr error

	submitCalls int
	lastLogits  []float32
	lastPos     int

	// Observability for tests.
	CacheClears  int
	ForcedClears int
	Freed        bool
}

func New(prof profile.Profile, opts ...Option) *Engine {
	e := &Engine{
		prof:   prof,
		vocab:  defaultVocab,
		pieces: map[int][]byte{},
		failAt: map[int]int{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logitsAt == nil {
		e.logitsAt = e.defaultLogits
	}
	return e
}

func (e *Engine) VocabSize() int { return e.vocab }

func (e *Engine) Tokenize(text string, addLeadingMarker bool) ([]int, error) {
	if e.tokenizeErr != nil {
		return nil, e.tokenizeErr
	}
	words := strings.Fields(text)
	ids := make([]int, 0, len(words)+1)
	if addLeadingMarker {
		ids = append(ids, BOSToken)
	}
	for _, w := range words {
		ids = append(ids, wordBase+int(hashString(w)%uint64(e.vocab-wordBase)))
	}
	if len(ids) > e.prof.BatchSize {
		return nil, &backend.TokenCountError{Required: len(ids)}
	}
	return ids, nil
}

func (e *Engine) SubmitBatch(tokens []int, positions []int, wantLogitsForLast bool) error {
	if len(tokens) == 0 || len(tokens) != len(positions) {
		return &backend.DecodeError{Code: -1}
	}
	call := e.submitCalls
	e.submitCalls++
	if remaining := e.failAt[call]; remaining > 0 {
		e.failAt[call]--
		e.submitCalls-- // failed call does not advance the schedule
		return &backend.DecodeError{Code: 1}
	}
	if wantLogitsForLast {
		e.lastLogits = e.logitsAt(call, e.vocab)
		e.lastPos = positions[len(positions)-1]
	} else {
		e.lastLogits = nil
	}
	return nil
}

func (e *Engine) Logits(lastBatchPosition int) []float32 {
	if e.lastLogits == nil || lastBatchPosition != e.lastPos {
		return nil
	}
	return e.lastLogits
}

func (e *Engine) Piece(tokenID int) []byte {
	if b, ok := e.pieces[tokenID]; ok {
		return b
	}
	switch {
	case tokenID == EOGToken || tokenID == BOSToken:
		return nil
	case tokenID >= DigitBase && tokenID < DigitBase+10:
		return []byte{byte('0' + tokenID - DigitBase)}
	default:
		return []byte(fmt.Sprintf(" t%d", tokenID))
	}
}

func (e *Engine) IsEndOfGeneration(tokenID int) bool { return tokenID == EOGToken }

func (e *Engine) ClearCache(force bool) {
	e.CacheClears++
	if force {
		e.ForcedClears++
	}
}

func (e *Engine) Free() { e.Freed = true }

// defaultLogits favours a digit on the first decode step and end-of-generation
// afterwards, so an unscripted run behaves like a terse classifier.
func (e *Engine) defaultLogits(call, vocab int) []float32 {
	rng := rand.New(rand.NewSource(e.seed + int64(call)*7919))
	v := make([]float32, vocab)
	for i := range v {
		v[i] = rng.Float32()
	}
	if call == 0 {
		v[DigitBase+int(rng.Int31n(10))] += 12
	} else {
		v[EOGToken] += 12
	}
	return v
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
