package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mindbench/mindbench/internal/profile"
)

// Engine is the narrow contract mindbench consumes from an autoregressive
// inference backend. Implementations own the model weights and the KV cache;
// mindbench only ever drives them one sequence at a time.
type Engine interface {
	// VocabSize returns the size of the model vocabulary. Logit vectors
	// returned by Logits have exactly this length.
	VocabSize() int

	// Tokenize converts text into token ids. addLeadingMarker requests the
	// model's beginning-of-sequence marker. A *TokenCountError reports that
	// the text needs more tokens than the caller allowed for.
	Tokenize(text string, addLeadingMarker bool) ([]int, error)

	// SubmitBatch feeds tokens at the given positions through the decode
	// path. When wantLogitsForLast is set, logits for the final position
	// are retained and retrievable via Logits.
	SubmitBatch(tokens []int, positions []int, wantLogitsForLast bool) error

	// Logits returns the logit vector captured for the given batch
	// position, or nil when none is available.
	Logits(lastBatchPosition int) []float32

	// Piece returns the raw bytes of the vocabulary entry for tokenID.
	// The bytes may be a partial UTF-8 sequence.
	Piece(tokenID int) []byte

	// IsEndOfGeneration reports whether tokenID terminates generation.
	IsEndOfGeneration(tokenID int) bool

	// ClearCache evicts incremental decode state. force additionally drops
	// any retained buffers.
	ClearCache(force bool)

	// Free releases the model. The engine is unusable afterwards.
	Free()
}

// Factory loads a model and returns a ready Engine.
type Factory func(modelPath string, prof profile.Profile) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. It panics on duplicate
// registration, matching the database/sql driver convention.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if f == nil {
		panic("backend: Register with nil factory")
	}
	if _, dup := registry[name]; dup {
		panic("backend: Register called twice for " + name)
	}
	registry[name] = f
}

// Open loads modelPath with the named backend. Load failures are fatal for
// the run; they are wrapped in ErrModelLoad so callers can tell them apart
// from per-sample errors.
func Open(name, modelPath string, prof profile.Profile) (Engine, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q (registered: %s)",
			ErrModelLoad, name, strings.Join(Names(), ", "))
	}
	if err := prof.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	eng, err := f(modelPath, prof)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, modelPath, err)
	}
	return eng, nil
}

// Names lists the registered backend names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
