package eval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindbench/mindbench/internal/backend"
	"github.com/mindbench/mindbench/internal/logger"
	"github.com/mindbench/mindbench/internal/metrics"
	"github.com/mindbench/mindbench/internal/session"
)

// Config is the batching configuration for one run. Immutable.
type Config struct {
	// BatchSize is how many samples are processed between progress
	// checkpoints.
	BatchSize int

	// CleanupInterval is the number of batches between forced cache
	// reclamation passes. Zero disables reclamation.
	CleanupInterval int
}

const (
	DefaultBatchSize       = 20
	DefaultCleanupInterval = 5
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.CleanupInterval < 0 {
		c.CleanupInterval = 0
	}
	return c
}

// ComputeBatches returns the batch count (ceiling division) and the size of
// the final batch, which is the full batch size when total divides evenly.
func ComputeBatches(total, batchSize int) (count, lastBatchSize int) {
	if total <= 0 || batchSize <= 0 {
		return 0, 0
	}
	count = (total + batchSize - 1) / batchSize
	lastBatchSize = total % batchSize
	if lastBatchSize == 0 {
		lastBatchSize = batchSize
	}
	return count, lastBatchSize
}

// BatchRange returns the half-open sample index interval covered by
// batchIndex.
func BatchRange(batchIndex, batchSize, total int) (lo, hi int) {
	lo = batchIndex * batchSize
	hi = lo + batchSize
	if hi > total {
		hi = total
	}
	if lo > total {
		lo = total
	}
	return lo, hi
}

// ShouldReclaim reports whether a forced reclamation pass runs after
// batchIndex (0-indexed). With interval 5 that is after batches 4, 9, 14...
func (c Config) ShouldReclaim(batchIndex int) bool {
	return c.CleanupInterval > 0 && (batchIndex+1)%c.CleanupInterval == 0
}

// SampleResult is the per-sample outcome streamed to the Reporter.
type SampleResult struct {
	Index     int
	Expected  string
	Predicted string
	Output    string

	Correct     bool
	Aborted     bool
	OutOfMemory bool

	Metrics metrics.Sample
}

// Reporter receives progress and result events during a run. Calls arrive
// from the run's goroutine, in order.
type Reporter interface {
	RunStarted(runID string, task Task, total, batches int)
	SampleDone(r SampleResult)
	BatchDone(batch, totalBatches int, pctComplete float64)
	RunDone(sum metrics.Summary)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) RunStarted(string, Task, int, int) {}
func (NopReporter) SampleDone(SampleResult)           {}
func (NopReporter) BatchDone(int, int, float64)       {}
func (NopReporter) RunDone(metrics.Summary)           {}

// Orchestrator owns the outer evaluation loop: one session, serially, sample
// after sample, with periodic cache reclamation between batches.
type Orchestrator struct {
	sess *session.Session
	eng  backend.Engine
	task Task
	cfg  Config
	log  logger.Logger

	mu           sync.Mutex
	currentInput string
	runLog       strings.Builder
}

func NewOrchestrator(sess *session.Session, eng backend.Engine, task Task, cfg Config, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		sess: sess,
		eng:  eng,
		task: task,
		cfg:  cfg.withDefaults(),
		log:  log,
	}
}

// CurrentInputText returns the post currently being processed, for display.
func (o *Orchestrator) CurrentInputText() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentInput
}

// RunLog returns the accumulated plain-text log of per-sample outcomes.
func (o *Orchestrator) RunLog() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runLog.String()
}

// Run evaluates samples and returns the terminal summary. A failing sample
// never halts the run; only context cancellation stops it early, returning
// the summary of what completed.
func (o *Orchestrator) Run(ctx context.Context, samples []Sample, rep Reporter) (metrics.Summary, error) {
	if rep == nil {
		rep = NopReporter{}
	}

	runID := uuid.NewString()
	total := len(samples)
	batches, lastSize := ComputeBatches(total, o.cfg.BatchSize)
	o.logf("run %s: task=%s samples=%d batches=%d last_batch=%d",
		runID, o.task.ID, total, batches, lastSize)
	rep.RunStarted(runID, o.task, total, batches)

	agg := &metrics.Aggregator{}
	start := time.Now()

	for b := 0; b < batches; b++ {
		lo, hi := BatchRange(b, o.cfg.BatchSize, total)
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				sum := o.finish(agg, start, runID, rep)
				return sum, err
			}
			res := o.evalOne(ctx, i, samples[i])
			agg.Add(res.Metrics)
			rep.SampleDone(res)
		}

		pct := float64(hi) / float64(total) * 100
		o.logf("batch %d/%d complete (%.1f%%)", b+1, batches, pct)
		rep.BatchDone(b+1, batches, pct)

		if o.cfg.ShouldReclaim(b) {
			o.log.Debug("forced cache reclamation", "batch", b+1)
			o.eng.ClearCache(true)
		}
	}

	return o.finish(agg, start, runID, rep), nil
}

func (o *Orchestrator) finish(agg *metrics.Aggregator, start time.Time, runID string, rep Reporter) metrics.Summary {
	sum := agg.Summarize(time.Since(start))
	sum.RunID = runID
	o.logf("%s", sum.Report())
	rep.RunDone(sum)
	return sum
}

func (o *Orchestrator) evalOne(ctx context.Context, idx int, s Sample) SampleResult {
	o.mu.Lock()
	o.currentInput = s.Text
	o.mu.Unlock()

	o.sess.Clear()
	output, err := o.sess.Generate(ctx, o.task.BuildPrompt(s.Text))
	if err != nil {
		// Session already logged the failure; the sample is aborted and
		// the run moves on.
		o.log.Debug("sample failed", "index", idx, "err", err)
	}

	m := o.sess.Metrics()
	predicted := o.task.ResolvePrediction(output)
	m.Correct = predicted == s.Label

	res := SampleResult{
		Index:       idx,
		Expected:    s.Label,
		Predicted:   predicted,
		Output:      output,
		Correct:     m.Correct,
		Aborted:     m.Aborted,
		OutOfMemory: m.OutOfMemory,
		Metrics:     m,
	}
	o.logf("sample %d: expected=%s predicted=%s correct=%v aborted=%v oom=%v in=%d out=%d",
		idx, res.Expected, res.Predicted, res.Correct, res.Aborted, res.OutOfMemory,
		m.InputTokens, m.OutputTokens)
	return res
}

func (o *Orchestrator) logf(format string, args ...any) {
	o.mu.Lock()
	fmt.Fprintf(&o.runLog, format+"\n", args...)
	o.mu.Unlock()
}
