package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Profile is the load-time configuration for one model variant. Callers pick
// a profile by name rather than the engine guessing from the model filename.
type Profile struct {
	Name string

	// GPULayers is the number of transformer layers offloaded to the
	// accelerator. Zero keeps the whole model on CPU.
	GPULayers int

	// ContextSize is the maximum sequence length the backend allocates
	// cache for.
	ContextSize int

	// BatchSize bounds how many tokens can be submitted in one decode
	// call. The token codec's truncation thresholds derive from it.
	BatchSize int

	Threads int

	// MemoryEstimateGB is the expected resident footprint once loaded,
	// used for reporting only.
	MemoryEstimateGB float64
}

func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: name is required")
	}
	if p.GPULayers < 0 {
		return fmt.Errorf("profile %q: gpu layers must be >= 0", p.Name)
	}
	if p.ContextSize <= 0 {
		return fmt.Errorf("profile %q: context size must be > 0", p.Name)
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("profile %q: batch size must be > 0", p.Name)
	}
	if p.BatchSize > p.ContextSize {
		return fmt.Errorf("profile %q: batch size %d exceeds context size %d", p.Name, p.BatchSize, p.ContextSize)
	}
	if p.Threads <= 0 {
		return fmt.Errorf("profile %q: threads must be > 0", p.Name)
	}
	return nil
}

// builtins are the known on-device variants. Unknown names fall back to
// Default(), which is conservative enough to load on most hardware.
var builtins = map[string]Profile{
	"gemma-2b": {
		Name:             "gemma-2b",
		GPULayers:        19,
		ContextSize:      2048,
		BatchSize:        512,
		Threads:          4,
		MemoryEstimateGB: 1.6,
	},
	"phi3-mini": {
		Name:             "phi3-mini",
		GPULayers:        33,
		ContextSize:      4096,
		BatchSize:        512,
		Threads:          4,
		MemoryEstimateGB: 2.3,
	},
	"qwen2-1.5b": {
		Name:             "qwen2-1.5b",
		GPULayers:        29,
		ContextSize:      2048,
		BatchSize:        512,
		Threads:          4,
		MemoryEstimateGB: 1.2,
	},
	"llama3-8b": {
		Name:             "llama3-8b",
		GPULayers:        0,
		ContextSize:      4096,
		BatchSize:        512,
		Threads:          6,
		MemoryEstimateGB: 4.9,
	},
}

// Default is the documented fallback for unknown variants: CPU only, small
// context, small batch.
func Default() Profile {
	return Profile{
		Name:             "default",
		GPULayers:        0,
		ContextSize:      2048,
		BatchSize:        256,
		Threads:          4,
		MemoryEstimateGB: 2.0,
	}
}

// Lookup returns the builtin profile for name, if one exists.
func Lookup(name string) (Profile, bool) {
	p, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Resolve returns the builtin profile for name, or Default() when the name is
// unknown or empty.
func Resolve(name string) Profile {
	if p, ok := Lookup(name); ok {
		return p
	}
	return Default()
}

// Names lists the builtin profile names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
