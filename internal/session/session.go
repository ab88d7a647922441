// Package session drives one sequence through the backend: prime the prompt,
// then repeat decode+sample until the model stops, the step budget runs out,
// or the backend fails past the retry budget. A session owns the backend's
// KV cache for the duration of one prompt; Clear is mandatory between
// prompts so stale cache never leaks into the next sample.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mindbench/mindbench/internal/backend"
	"github.com/mindbench/mindbench/internal/logger"
	"github.com/mindbench/mindbench/internal/logits"
	"github.com/mindbench/mindbench/internal/metrics"
	"github.com/mindbench/mindbench/internal/token"
)

// Phase is the session's position in its lifecycle.
type Phase int

const (
	PhaseInit Phase = iota
	PhasePrimed
	PhaseStepping
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhasePrimed:
		return "primed"
	case PhaseStepping:
		return "stepping"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

const (
	maxDecodeRetries = 3
	// retryBackoff is how long the session waits after force-clearing the
	// cache before the final decode attempt.
	retryBackoff = 100 * time.Millisecond

	// OOM heuristic thresholds: termination with zero tokens inside the
	// first oomEarlyStepWindow steps, or oomEmptyStreak consecutive empty
	// steps with nothing produced overall.
	oomEarlyStepWindow = 3
	oomEmptyStreak     = 3

	defaultMaxNewTokens = 16
)

// ErrDirty is returned by Start when the previous prompt was not cleared.
// Proceeding would decode against the previous sample's KV cache.
var ErrDirty = errors.New("session: Clear required before Start")

// State holds the per-sequence position counters. CurrentPosition is
// monotonically non-decreasing within one prompt and resets to exactly
// SequenceStart on Start.
type State struct {
	CurrentPosition int
	SequenceStart   int
	DecodedTokens   int
}

type Config struct {
	MaxNewTokens int
	Sampler      logits.Config
}

// Session is the exclusive owner of one generation sequence. At most one
// caller may hold it at a time; all methods take the internal lock.
type Session struct {
	eng     backend.Engine
	codec   *token.Codec
	sampler *logits.Sampler
	log     logger.Logger

	maxNewTokens int

	mu    sync.Mutex
	phase Phase
	dirty bool

	state   State
	lastPos int
	recent  map[int]struct{}

	steps       int
	emptyStreak int
	aborted     bool
	oom         bool
	oomMemGB    float64

	promptTokens      int
	promptLatency     time.Duration
	firstTokenLatency time.Duration
	genStart          time.Time
	genLatency        time.Duration
}

func New(eng backend.Engine, codec *token.Codec, cfg Config, log logger.Logger) *Session {
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = defaultMaxNewTokens
	}
	s := &Session{
		eng:          eng,
		codec:        codec,
		sampler:      logits.New(cfg.Sampler),
		log:          log,
		maxNewTokens: cfg.MaxNewTokens,
	}
	s.resetLocked()
	return s
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Dirty reports whether the session still carries a previous prompt's state.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Snapshot returns a copy of the position counters.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start tokenizes prompt and submits the whole token sequence to the backend
// in one batch, requesting logits for the final position only. A rejected
// batch leaves the session terminal for this prompt; the error is the
// caller's signal to abort the sample, not the run.
func (s *Session) Start(ctx context.Context, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.dirty {
		return ErrDirty
	}
	s.resetLocked()
	s.dirty = true

	ids := s.codec.Encode(prompt, true)
	positions := make([]int, len(ids))
	for i := range positions {
		positions[i] = s.state.SequenceStart + i
	}

	t0 := time.Now()
	if err := s.eng.SubmitBatch(ids, positions, true); err != nil {
		s.phase = PhaseDone
		s.aborted = true
		s.log.Error("prompt batch rejected", "tokens", len(ids), "err", err)
		return fmt.Errorf("prime prompt: %w", err)
	}
	s.promptLatency = time.Since(t0)
	s.promptTokens = len(ids)
	s.lastPos = positions[len(positions)-1]
	s.state.CurrentPosition = s.state.SequenceStart + len(ids)
	s.phase = PhasePrimed
	s.genStart = time.Now()
	return nil
}

// Step samples one token from the pending logits and, unless terminal,
// submits it back for the next decode. The returned text may be empty while
// a multi-byte sequence is still pending. done=true with empty text after a
// retry exhaustion means the sample was aborted, not that the model answered
// nothing; Aborted distinguishes the two.
func (s *Session) Step() (text string, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePrimed && s.phase != PhaseStepping {
		return "", true
	}
	s.phase = PhaseStepping

	vec := s.eng.Logits(s.lastPos)
	id, ok := s.sampler.Select(vec, s.recent)
	if !ok {
		// No logit pointer for this step: terminate, never guess.
		return s.finishLocked("")
	}
	if s.eng.IsEndOfGeneration(id) {
		return s.finishLocked("")
	}

	s.steps++
	s.recent[id] = struct{}{}

	piece := s.codec.Decode(id)
	if piece != "" {
		s.state.DecodedTokens++
		s.emptyStreak = 0
		if s.state.DecodedTokens == 1 {
			s.firstTokenLatency = time.Since(s.genStart)
		}
	} else {
		s.emptyStreak++
		if s.emptyStreak >= oomEmptyStreak && s.state.DecodedTokens == 0 {
			s.flagOOMLocked()
		}
	}

	if s.steps >= s.maxNewTokens {
		return s.finishLocked(piece)
	}

	if err := s.submitNextLocked(id); err != nil {
		s.aborted = true
		s.log.Warn("decode retries exhausted, aborting sample",
			"step", s.steps, "position", s.state.CurrentPosition, "err", err)
		_, _ = s.finishLocked("")
		return "", true
	}
	return piece, false
}

// submitNextLocked feeds the sampled token back for the next decode, retrying
// up to maxDecodeRetries. Before the final attempt the cache is force-cleared
// and the backend gets a short pause to recover.
func (s *Session) submitNextLocked(id int) error {
	var err error
	for attempt := 1; attempt <= maxDecodeRetries; attempt++ {
		err = s.eng.SubmitBatch([]int{id}, []int{s.state.CurrentPosition}, true)
		if err == nil {
			s.lastPos = s.state.CurrentPosition
			s.state.CurrentPosition++
			return nil
		}
		s.log.Warn("decode failed", "attempt", attempt, "position", s.state.CurrentPosition, "err", err)
		if attempt == maxDecodeRetries-1 {
			s.eng.ClearCache(true)
			time.Sleep(retryBackoff)
		}
	}
	return err
}

func (s *Session) finishLocked(piece string) (string, bool) {
	s.genLatency = time.Since(s.genStart)
	if s.state.DecodedTokens == 0 && s.steps < oomEarlyStepWindow {
		s.flagOOMLocked()
	}
	s.phase = PhaseDone
	return piece, true
}

func (s *Session) flagOOMLocked() {
	if s.oom {
		return
	}
	s.oom = true
	s.oomMemGB = metrics.ProcessMemoryGB()
	s.log.Warn("out-of-memory heuristic triggered",
		"steps", s.steps, "decoded", s.state.DecodedTokens, "rss_gb", s.oomMemGB)
}

// Generate runs Start plus the full step loop for one prompt, returning the
// accumulated text.
func (s *Session) Generate(ctx context.Context, prompt string) (string, error) {
	if err := s.Start(ctx, prompt); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		piece, done := s.Step()
		sb.WriteString(piece)
		if done {
			return sb.String(), nil
		}
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
	}
}

// Clear tears the session down between samples: counters reset, backend
// cache force-evicted, pending decode bytes dropped. Mandatory before the
// next Start.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.eng.ClearCache(true)
	s.codec.ResetPending()
}

func (s *Session) resetLocked() {
	s.state = State{CurrentPosition: 0, SequenceStart: 0, DecodedTokens: 0}
	s.state.CurrentPosition = s.state.SequenceStart
	s.recent = make(map[int]struct{})
	s.lastPos = 0
	s.steps = 0
	s.emptyStreak = 0
	s.aborted = false
	s.oom = false
	s.oomMemGB = 0
	s.promptTokens = 0
	s.promptLatency = 0
	s.firstTokenLatency = 0
	s.genLatency = 0
	s.phase = PhaseInit
	s.dirty = false
}

func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *Session) OutOfMemory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oom
}

// Metrics returns the measurement record for the prompt just processed.
func (s *Session) Metrics() metrics.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return metrics.Sample{
		InputTokens:       s.promptTokens,
		OutputTokens:      s.state.DecodedTokens,
		PromptLatency:     s.promptLatency,
		GenerationLatency: s.genLatency,
		FirstTokenLatency: s.firstTokenLatency,
		OutOfMemory:       s.oom,
		OOMMemoryGB:       s.oomMemGB,
		Aborted:           s.aborted,
	}
}
