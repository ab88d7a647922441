// Package metrics accumulates per-sample measurements into an end-of-run
// summary. Totals only; the summary is derived once at the end rather than
// maintained incrementally, so partial updates can never drift.
package metrics

import (
	"fmt"
	"strings"
	"time"
)

// GenerationOverheadRatio approximates the share of wall-clock generation
// time spent outside backend inference (sampling, detokenization, logging).
// Output tokens/sec divides by the adjusted time, not the wall clock. The
// value is empirical; if the backend ever exposes per-step timing this
// constant should be replaced by a real hook.
const GenerationOverheadRatio = 0.25

// Sample is the measurement record for one evaluated item. Immutable once
// produced.
type Sample struct {
	InputTokens  int
	OutputTokens int

	PromptLatency     time.Duration
	GenerationLatency time.Duration
	FirstTokenLatency time.Duration

	OutOfMemory bool
	OOMMemoryGB float64

	Aborted bool
	Correct bool
}

// Aggregator folds samples into running totals. Append-only, single writer.
type Aggregator struct {
	samples int
	correct int
	aborted int

	inputTokens  int
	outputTokens int

	promptTime     time.Duration
	generationTime time.Duration
	firstTokenTime time.Duration

	oomCount int
	oomMemGB float64
}

func (a *Aggregator) Add(s Sample) {
	a.samples++
	if s.Correct {
		a.correct++
	}
	if s.Aborted {
		a.aborted++
	}
	a.inputTokens += s.InputTokens
	a.outputTokens += s.OutputTokens
	a.promptTime += s.PromptLatency
	a.generationTime += s.GenerationLatency
	a.firstTokenTime += s.FirstTokenLatency
	if s.OutOfMemory {
		a.oomCount++
		a.oomMemGB += s.OOMMemoryGB
	}
}

func (a *Aggregator) Samples() int { return a.samples }
func (a *Aggregator) Correct() int { return a.correct }

// Summary is the terminal result of an evaluation run.
type Summary struct {
	RunID string

	Samples int
	Correct int
	Aborted int

	AccuracyPct float64

	TTFT      time.Duration
	InputTPS  float64
	OutputTPS float64

	OOMCount    int
	OOMPct      float64
	OOMMemoryGB float64

	Elapsed    time.Duration
	CPUPercent float64
	RSSGB      float64
}

// Summarize derives the summary from accumulated totals. elapsed is the wall
// clock for the whole run.
func (a *Aggregator) Summarize(elapsed time.Duration) Summary {
	s := Summary{
		Samples:  a.samples,
		Correct:  a.correct,
		Aborted:  a.aborted,
		OOMCount: a.oomCount,
		Elapsed:  elapsed,
	}
	if a.samples > 0 {
		s.AccuracyPct = float64(a.correct) / float64(a.samples) * 100
		s.TTFT = a.firstTokenTime / time.Duration(a.samples)
		s.OOMPct = float64(a.oomCount) / float64(a.samples) * 100
	}
	if a.oomCount > 0 {
		s.OOMMemoryGB = a.oomMemGB / float64(a.oomCount)
	}
	if sec := a.promptTime.Seconds(); sec > 0 {
		s.InputTPS = float64(a.inputTokens) / sec
	}
	if adj := a.generationTime.Seconds() * (1 - GenerationOverheadRatio); adj > 0 {
		s.OutputTPS = float64(a.outputTokens) / adj
	}
	s.CPUPercent = ProcessCPUPercent(elapsed)
	s.RSSGB = ProcessMemoryGB()
	return s
}

// Report renders the summary as the plain-text block appended to the run log.
func (s Summary) Report() string {
	var b strings.Builder
	b.WriteString("=== Evaluation Report ===\n")
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run:      %s\n", s.RunID)
	}
	fmt.Fprintf(&b, "Samples:  %d (correct %d, aborted %d)\n", s.Samples, s.Correct, s.Aborted)
	fmt.Fprintf(&b, "Accuracy: %.1f%%\n", s.AccuracyPct)
	fmt.Fprintf(&b, "TTFT:     %s\n", s.TTFT.Round(time.Millisecond))
	fmt.Fprintf(&b, "ITPS:     %.2f tok/s\n", s.InputTPS)
	fmt.Fprintf(&b, "OTPS:     %.2f tok/s (overhead-adjusted)\n", s.OutputTPS)
	fmt.Fprintf(&b, "Elapsed:  %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "CPU:      %.1f%%\n", s.CPUPercent)
	fmt.Fprintf(&b, "RAM:      %.2f GB\n", s.RSSGB)
	fmt.Fprintf(&b, "OOM:      %d (%.1f%%)\n", s.OOMCount, s.OOMPct)
	return b.String()
}
