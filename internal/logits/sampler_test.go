package logits

import (
	"math"
	"testing"
)

// TestSelectDeterminism ensures two samplers configured identically produce
// identical results for the same logits vector.
func TestSelectDeterminism(t *testing.T) {
	logs := []float32{0, 1, 2, 3, 4, 5}
	s1 := New(DefaultConfig(42))
	s2 := New(DefaultConfig(42))
	a, ok1 := s1.Select(logs, nil)
	b, ok2 := s2.Select(logs, nil)
	if !ok1 || !ok2 {
		t.Fatal("expected a token from both samplers")
	}
	if a != b {
		t.Fatalf("expected deterministic sample, got %d vs %d", a, b)
	}
}

func TestSelectEmptyLogitsSignalsTermination(t *testing.T) {
	s := New(DefaultConfig(1))
	if _, ok := s.Select(nil, nil); ok {
		t.Fatal("expected ok=false for missing logits")
	}
	if _, ok := s.Select([]float32{}, nil); ok {
		t.Fatal("expected ok=false for empty logits")
	}
}

// TestSelectWithinTopK checks the sampler never returns a token outside the
// top-k candidate set, across many seeds.
func TestSelectWithinTopK(t *testing.T) {
	logs := make([]float32, 100)
	for i := 0; i < 20; i++ {
		logs[i] = 10 + float32(20-i)
	}
	for seed := int64(0); seed < 200; seed++ {
		s := New(DefaultConfig(seed))
		id, ok := s.Select(logs, nil)
		if !ok {
			t.Fatalf("seed %d: expected a token", seed)
		}
		if id < 0 || id >= 20 {
			t.Fatalf("seed %d: token %d outside top-k candidate set", seed, id)
		}
	}
}

// TestShortlistProbabilityMass verifies the post-softmax probabilities over
// the full retained shortlist sum to 1.
func TestShortlistProbabilityMass(t *testing.T) {
	s := New(Config{Seed: 7, Temperature: 0.7, TopK: 20, TopP: 1.0})
	logs := make([]float32, 50)
	for i := range logs {
		logs[i] = float32(i) * 0.3
	}
	cands, mass := s.shortlist(logs, nil)
	if len(cands) == 0 {
		t.Fatal("expected candidates")
	}
	var sum float64
	for _, c := range cands {
		if c.Prob < 0 || c.Prob > 1 {
			t.Fatalf("probability out of range: %v", c.Prob)
		}
		sum += c.Prob
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("expected probability mass 1.0, got %v", sum)
	}
	if math.Abs(mass-sum) > 1e-9 {
		t.Fatalf("reported mass %v disagrees with candidate sum %v", mass, sum)
	}
}

// TestNucleusCut ensures a dominant candidate absorbs the whole nucleus when
// its probability alone exceeds top-p.
func TestNucleusCut(t *testing.T) {
	logs := []float32{30, 0, 0, 0, 0}
	for seed := int64(0); seed < 10; seed++ {
		s := New(Config{Seed: seed, Temperature: 1.0, TopK: 5, TopP: 0.5})
		id, ok := s.Select(logs, nil)
		if !ok || id != 0 {
			t.Fatalf("seed %d: nucleus sampling returned unexpected index %d", seed, id)
		}
	}
}

// TestPresencePenaltyOncePerToken checks that a recent token's logit drops by
// exactly the penalty, applied once.
func TestPresencePenaltyOncePerToken(t *testing.T) {
	s := New(Config{Seed: 3, Temperature: 1.0, TopK: 5, TopP: 1.0, PresencePenalty: 5})
	logs := []float32{1, 1.1}
	recent := map[int]struct{}{1: {}}
	cands, _ := s.shortlist(logs, recent)
	if cands[0].ID != 0 {
		t.Fatalf("expected penalised token to fall behind, top candidate is %d", cands[0].ID)
	}
	// Penalty is subtracted after temperature scaling.
	if got := cands[len(cands)-1].Logit; math.Abs(float64(got-(1.1-5))) > 1e-6 {
		t.Fatalf("expected penalised logit %v, got %v", 1.1-5, got)
	}
}

// TestMinPDropsAllFallsBackToShortlist: a floor above every probability
// empties the nucleus, which must fall back to the strongest top-k entries
// rather than leave nothing to draw from.
func TestMinPDropsAllFallsBackToShortlist(t *testing.T) {
	s := New(Config{Seed: 5, Temperature: 1.0, TopK: 20, TopP: 0.8, MinP: 0.9})
	logs := make([]float32, 40)
	cands, mass := s.shortlist(logs, nil)
	if len(cands) != 10 {
		t.Fatalf("expected fallback to keep 10 candidates, got %d", len(cands))
	}
	// 20 equal candidates at 0.05 each; the 10 kept carry half the mass.
	if math.Abs(mass-0.5) > 1e-6 {
		t.Fatalf("expected fallback mass 0.5, got %v", mass)
	}
	if _, ok := s.Select(logs, nil); !ok {
		t.Fatal("expected a token from the fallback pool")
	}

	small := New(Config{Seed: 5, Temperature: 1.0, TopK: 4, TopP: 0.8, MinP: 0.9})
	cands, _ = small.shortlist([]float32{1, 1, 1, 1}, nil)
	if len(cands) != 4 {
		t.Fatalf("expected fallback capped at the shortlist size, got %d", len(cands))
	}
}

func TestMinPFloor(t *testing.T) {
	s := New(Config{Seed: 11, Temperature: 1.0, TopK: 4, TopP: 1.0, MinP: 0.2})
	logs := []float32{8, 8, 0, 0}
	cands, _ := s.shortlist(logs, nil)
	if len(cands) != 2 {
		t.Fatalf("expected min-p to drop near-zero candidates, kept %d", len(cands))
	}
	for _, c := range cands {
		if c.ID != 0 && c.ID != 1 {
			t.Fatalf("unexpected survivor %d", c.ID)
		}
	}
}
