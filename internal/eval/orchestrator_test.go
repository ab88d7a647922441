package eval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mindbench/mindbench/internal/backend/toy"
	"github.com/mindbench/mindbench/internal/logger"
	"github.com/mindbench/mindbench/internal/logits"
	"github.com/mindbench/mindbench/internal/metrics"
	"github.com/mindbench/mindbench/internal/profile"
	"github.com/mindbench/mindbench/internal/session"
	"github.com/mindbench/mindbench/internal/token"
)

func TestComputeBatches(t *testing.T) {
	tests := []struct {
		total, batchSize int
		count, last      int
	}{
		{0, 20, 0, 0},
		{1, 20, 1, 1},
		{19, 20, 1, 19},
		{20, 20, 1, 20},
		{21, 20, 2, 1},
		{40, 20, 2, 20},
		{41, 20, 3, 1},
		{100, 7, 15, 2},
	}
	for _, tc := range tests {
		count, last := ComputeBatches(tc.total, tc.batchSize)
		if count != tc.count || last != tc.last {
			t.Errorf("ComputeBatches(%d,%d) = (%d,%d), want (%d,%d)",
				tc.total, tc.batchSize, count, last, tc.count, tc.last)
		}
	}
}

// TestBatchMathProperty sweeps totals and batch sizes: count is always the
// ceiling division and the final batch's range length equals lastBatchSize.
func TestBatchMathProperty(t *testing.T) {
	for total := 1; total <= 100; total++ {
		for batchSize := 1; batchSize <= 25; batchSize++ {
			count, last := ComputeBatches(total, batchSize)
			wantCount := (total + batchSize - 1) / batchSize
			if count != wantCount {
				t.Fatalf("total=%d batch=%d: count %d != ceil %d", total, batchSize, count, wantCount)
			}
			lo, hi := BatchRange(count-1, batchSize, total)
			if hi-lo != last {
				t.Fatalf("total=%d batch=%d: final range length %d != last size %d",
					total, batchSize, hi-lo, last)
			}
			if hi != total {
				t.Fatalf("total=%d batch=%d: final range ends at %d", total, batchSize, hi)
			}
		}
	}
}

func TestShouldReclaimCadence(t *testing.T) {
	cfg := Config{BatchSize: 20, CleanupInterval: 5}
	want := map[int]bool{0: false, 3: false, 4: true, 5: false, 9: true, 14: true}
	for idx, expect := range want {
		if got := cfg.ShouldReclaim(idx); got != expect {
			t.Errorf("ShouldReclaim(%d) = %v, want %v", idx, got, expect)
		}
	}
	none := Config{BatchSize: 20}
	if none.ShouldReclaim(4) {
		t.Error("reclamation must be disabled with zero interval")
	}
}

// scriptedRun wires a toy engine whose decode steps follow the given call
// schedule (token id favored per successful SubmitBatch call).
func scriptedRun(t *testing.T, schedule []int, opts ...toy.Option) (*Orchestrator, *toy.Engine) {
	t.Helper()
	prof := profile.Default()
	opts = append(opts, toy.WithLogitsFunc(func(call, vocab int) []float32 {
		if call >= len(schedule) {
			v := make([]float32, vocab)
			v[toy.EOGToken] = 50
			return v
		}
		v := make([]float32, vocab)
		v[schedule[call]] = 50
		return v
	}))
	eng := toy.New(prof, opts...)
	codec := token.NewCodec(eng, prof.BatchSize)
	sess := session.New(eng, codec, session.Config{
		MaxNewTokens: 4,
		Sampler:      logits.DefaultConfig(1),
	}, logger.Default())
	task, _ := LookupTask("stress")
	orch := NewOrchestrator(sess, eng, task, Config{BatchSize: 20, CleanupInterval: 5}, logger.Default())
	return orch, eng
}

type recordingReporter struct {
	results []SampleResult
	batches int
	summary metrics.Summary
}

func (r *recordingReporter) RunStarted(string, Task, int, int) {}
func (r *recordingReporter) SampleDone(res SampleResult)       { r.results = append(r.results, res) }
func (r *recordingReporter) BatchDone(int, int, float64)       { r.batches++ }
func (r *recordingReporter) RunDone(sum metrics.Summary)       { r.summary = sum }

// TestRunAccuracyTwoOfThree: expected labels 0,1,0 against model answers
// 0,1,1 must report 66.7% accuracy with 2 correct.
func TestRunAccuracyTwoOfThree(t *testing.T) {
	// Per sample: one prompt call answering with a digit, then one decode
	// call answered with end-of-generation.
	schedule := []int{
		toy.DigitBase + 0, toy.EOGToken,
		toy.DigitBase + 1, toy.EOGToken,
		toy.DigitBase + 1, toy.EOGToken,
	}
	orch, _ := scriptedRun(t, schedule)

	samples := []Sample{
		{Text: "calm day", Label: "0"},
		{Text: "so much pressure", Label: "1"},
		{Text: "walked the dog", Label: "0"},
	}
	rep := &recordingReporter{}
	sum, err := orch.Run(context.Background(), samples, rep)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Samples != 3 || sum.Correct != 2 {
		t.Fatalf("expected 2/3 correct, got %d/%d", sum.Correct, sum.Samples)
	}
	if got := fmt.Sprintf("%.1f", sum.AccuracyPct); got != "66.7" {
		t.Fatalf("expected accuracy 66.7, got %s", got)
	}
	if len(rep.results) != 3 {
		t.Fatalf("expected 3 sample events, got %d", len(rep.results))
	}
	wantPred := []string{"0", "1", "1"}
	for i, res := range rep.results {
		if res.Predicted != wantPred[i] {
			t.Errorf("sample %d predicted %q, want %q", i, res.Predicted, wantPred[i])
		}
	}
	if !strings.Contains(sum.Report(), "66.7%") {
		t.Fatal("report missing accuracy percentage")
	}
}

// TestRunMidBatchAbortIsolation: item #2 exhausting all decode retries must
// not stop items #1 and #3 from being scored normally.
func TestRunMidBatchAbortIsolation(t *testing.T) {
	// Successful SubmitBatch call indices: sample 1 uses 0 (prompt) and
	// 1 (decode); sample 2's prompt is call 2 but its decode at call 3
	// fails all three attempts, so sample 3's prompt lands on call 3.
	schedule := []int{
		toy.DigitBase + 0, toy.EOGToken, // sample 1: answers "0"
		toy.DigitBase + 1, // sample 2: answers "1", then aborts
		toy.DigitBase + 0, toy.EOGToken, // sample 3: answers "0"
	}
	orch, _ := scriptedRun(t, schedule, toy.WithSubmitFailures(3, 3))

	samples := []Sample{
		{Text: "fine", Label: "0"},
		{Text: "drowning in deadlines", Label: "1"},
		{Text: "quiet evening", Label: "0"},
	}
	rep := &recordingReporter{}
	sum, err := orch.Run(context.Background(), samples, rep)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Samples != 3 {
		t.Fatalf("expected all 3 samples processed, got %d", sum.Samples)
	}
	if sum.Aborted != 1 {
		t.Fatalf("expected exactly 1 aborted sample, got %d", sum.Aborted)
	}
	if !rep.results[1].Aborted {
		t.Fatal("sample 2 should be aborted")
	}
	if rep.results[0].Aborted || rep.results[2].Aborted {
		t.Fatal("samples 1 and 3 must complete normally")
	}
	if !rep.results[0].Correct || !rep.results[2].Correct {
		t.Fatal("samples 1 and 3 must be scored normally")
	}
}

// TestRunReclaimsCacheBetweenBatches: with batch size 1 and interval 2, the
// engine must see forced clears beyond the per-sample ones.
func TestRunReclaimsCacheBetweenBatches(t *testing.T) {
	schedule := []int{
		toy.DigitBase, toy.EOGToken,
		toy.DigitBase, toy.EOGToken,
		toy.DigitBase, toy.EOGToken,
		toy.DigitBase, toy.EOGToken,
	}
	orch, eng := scriptedRun(t, schedule)
	orch.cfg = Config{BatchSize: 1, CleanupInterval: 2}

	samples := []Sample{
		{Text: "a", Label: "0"}, {Text: "b", Label: "0"},
		{Text: "c", Label: "0"}, {Text: "d", Label: "0"},
	}
	if _, err := orch.Run(context.Background(), samples, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	// 4 per-sample clears plus reclamation after batches 1 and 3 (0-indexed).
	if eng.ForcedClears != 6 {
		t.Fatalf("expected 6 forced clears, got %d", eng.ForcedClears)
	}
}

func TestCurrentInputTextAndRunLog(t *testing.T) {
	schedule := []int{toy.DigitBase, toy.EOGToken}
	orch, _ := scriptedRun(t, schedule)
	samples := []Sample{{Text: "the one post", Label: "0"}}
	if _, err := orch.Run(context.Background(), samples, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := orch.CurrentInputText(); got != "the one post" {
		t.Fatalf("CurrentInputText = %q", got)
	}
	log := orch.RunLog()
	if !strings.Contains(log, "sample 0:") {
		t.Fatalf("run log missing per-sample line:\n%s", log)
	}
	if !strings.Contains(log, "=== Evaluation Report ===") {
		t.Fatal("run log missing terminal report")
	}
}
