package logits

import (
	"math"
	"math/rand"
	"sort"
)

// Defaults for the evaluation pipeline. The values are fixed for benchmark
// comparability across runs and devices.
const (
	DefaultTemperature     = 0.7
	DefaultTopP            = 0.8
	DefaultTopK            = 20
	DefaultMinP            = 0.0
	DefaultPresencePenalty = 0.1

	// nucleusFallback is how many top-k candidates survive when the min-p
	// floor drops every candidate and the nucleus walk has nothing left.
	nucleusFallback = 10
)

// Config configures the behaviour of a Sampler.
type Config struct {
	Seed            int64
	Temperature     float32
	TopK            int
	TopP            float32
	MinP            float32
	PresencePenalty float32
}

// DefaultConfig returns the fixed evaluation parameters with the given seed.
func DefaultConfig(seed int64) Config {
	return Config{
		Seed:            seed,
		Temperature:     DefaultTemperature,
		TopK:            DefaultTopK,
		TopP:            DefaultTopP,
		MinP:            DefaultMinP,
		PresencePenalty: DefaultPresencePenalty,
	}
}

// Candidate is one vocabulary entry moving through the filtering pipeline.
type Candidate struct {
	ID    int
	Logit float32
	Prob  float64
}

type Sampler struct {
	rng   *rand.Rand
	cfg   Config
	cands []Candidate
}

// New returns a sampler with the provided configuration. The random source is
// seeded from cfg.Seed so repeated runs with the same seed agree.
func New(cfg Config) *Sampler {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.MinP < 0 {
		cfg.MinP = 0
	}
	return &Sampler{
		rng: rand.New(rand.NewSource(cfg.Seed)),
		cfg: cfg,
	}
}

// Select draws one token id from the logit vector. recent holds token ids
// already produced in this sequence; each has the presence penalty applied
// once, regardless of how often it occurred.
//
// The pipeline: inverse-temperature scaling, presence penalty, descending
// sort, top-k, numerically stable softmax, min-p floor, nucleus (top-p) cut,
// then a weighted draw over whatever survived. The draw is intentionally not
// argmax so repeated evaluation runs exercise the model's output
// distribution rather than a single path.
//
// ok is false when logits is empty; the caller must treat that as the end of
// generation rather than guessing a token.
func (s *Sampler) Select(logits []float32, recent map[int]struct{}) (id int, ok bool) {
	cands, mass := s.shortlist(logits, recent)
	if len(cands) == 0 {
		return 0, false
	}

	// Weighted draw scaled by the retained mass.
	r := s.rng.Float64() * mass
	var c float64
	for i := range cands {
		c += cands[i].Prob
		if r <= c {
			return cands[i].ID, true
		}
	}
	return cands[len(cands)-1].ID, true
}

// shortlist runs the filtering pipeline and returns the surviving candidates
// together with their accumulated probability mass.
func (s *Sampler) shortlist(logits []float32, recent map[int]struct{}) ([]Candidate, float64) {
	if len(logits) == 0 {
		return nil, 0
	}

	invTemp := float32(1.0) / s.cfg.Temperature

	if cap(s.cands) < len(logits) {
		s.cands = make([]Candidate, len(logits))
	}
	cands := s.cands[:len(logits)]
	for i, l := range logits {
		cands[i] = Candidate{ID: i, Logit: l * invTemp}
	}

	if s.cfg.PresencePenalty != 0 {
		for tok := range recent {
			if tok >= 0 && tok < len(cands) {
				cands[tok].Logit -= s.cfg.PresencePenalty
			}
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		return cands[i].Logit > cands[j].Logit
	})

	k := s.cfg.TopK
	if k > len(cands) {
		k = len(cands)
	}
	cands = cands[:k]

	// Stable softmax over the shortlist.
	maxLogit := cands[0].Logit
	var sum float64
	for i := range cands {
		e := math.Exp(float64(cands[i].Logit - maxLogit))
		cands[i].Prob = e
		sum += e
	}
	if sum == 0 {
		cands[0].Prob = 1
		return cands[:1], 1
	}
	for i := range cands {
		cands[i].Prob /= sum
	}

	// Min-p floor. Probabilities are sorted descending, so the survivors
	// are a prefix; a floor above every probability keeps nothing and the
	// nucleus walk below falls back to the shortlist.
	topk := cands
	if s.cfg.MinP > 0 {
		floor := float64(s.cfg.MinP)
		n := 0
		for n < len(cands) && cands[n].Prob >= floor {
			n++
		}
		cands = cands[:n]
	}

	// Nucleus cut: keep the shortest prefix whose mass reaches TopP.
	cut := 0
	var mass float64
	for i := range cands {
		mass += cands[i].Prob
		cut = i + 1
		if float32(mass) >= s.cfg.TopP {
			break
		}
	}
	if cut == 0 {
		cut = nucleusFallback
		if cut > len(topk) {
			cut = len(topk)
		}
		cands = topk
		mass = 0
		for i := 0; i < cut; i++ {
			mass += cands[i].Prob
		}
	}
	return cands[:cut], mass
}
