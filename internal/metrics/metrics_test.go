package metrics

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestSummarizeAccuracy(t *testing.T) {
	var agg Aggregator
	agg.Add(Sample{Correct: true})
	agg.Add(Sample{Correct: true})
	agg.Add(Sample{})

	sum := agg.Summarize(time.Second)
	if sum.Samples != 3 || sum.Correct != 2 {
		t.Fatalf("samples=%d correct=%d", sum.Samples, sum.Correct)
	}
	if math.Abs(sum.AccuracyPct-100.0*2/3) > 1e-9 {
		t.Fatalf("AccuracyPct = %f", sum.AccuracyPct)
	}
	if !strings.Contains(sum.Report(), "66.7%") {
		t.Fatalf("report missing 66.7%%:\n%s", sum.Report())
	}
}

func TestSummarizeThroughput(t *testing.T) {
	var agg Aggregator
	agg.Add(Sample{
		InputTokens:       100,
		OutputTokens:      30,
		PromptLatency:     2 * time.Second,
		GenerationLatency: 4 * time.Second,
		FirstTokenLatency: 100 * time.Millisecond,
	})
	agg.Add(Sample{
		InputTokens:       100,
		OutputTokens:      30,
		PromptLatency:     2 * time.Second,
		GenerationLatency: 4 * time.Second,
		FirstTokenLatency: 300 * time.Millisecond,
	})

	sum := agg.Summarize(10 * time.Second)
	if math.Abs(sum.InputTPS-50) > 1e-9 {
		t.Fatalf("InputTPS = %f, want 50", sum.InputTPS)
	}
	// 60 tokens over 8s of generation, with a quarter of that time treated
	// as non-inference overhead: 60 / 6 = 10.
	if math.Abs(sum.OutputTPS-10) > 1e-9 {
		t.Fatalf("OutputTPS = %f, want 10", sum.OutputTPS)
	}
	if sum.TTFT != 200*time.Millisecond {
		t.Fatalf("TTFT = %s, want 200ms", sum.TTFT)
	}
}

func TestSummarizeOOM(t *testing.T) {
	var agg Aggregator
	agg.Add(Sample{OutOfMemory: true, OOMMemoryGB: 4})
	agg.Add(Sample{OutOfMemory: true, OOMMemoryGB: 8})
	agg.Add(Sample{})
	agg.Add(Sample{})

	sum := agg.Summarize(time.Second)
	if sum.OOMCount != 2 {
		t.Fatalf("OOMCount = %d", sum.OOMCount)
	}
	if math.Abs(sum.OOMPct-50) > 1e-9 {
		t.Fatalf("OOMPct = %f, want 50", sum.OOMPct)
	}
	if math.Abs(sum.OOMMemoryGB-6) > 1e-9 {
		t.Fatalf("OOMMemoryGB = %f, want 6", sum.OOMMemoryGB)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	var agg Aggregator
	sum := agg.Summarize(time.Second)
	if sum.AccuracyPct != 0 || sum.OutputTPS != 0 || sum.TTFT != 0 {
		t.Fatalf("empty aggregator produced nonzero rates: %+v", sum)
	}
}

func TestReportLayout(t *testing.T) {
	sum := Summary{RunID: "run-1", Samples: 1, Correct: 1, AccuracyPct: 100}
	text := sum.Report()
	for _, want := range []string{"=== Evaluation Report ===", "Run:", "Accuracy: 100.0%", "OTPS:", "OOM:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}
}
