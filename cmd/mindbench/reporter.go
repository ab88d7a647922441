package main

import (
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/mindbench/mindbench/internal/eval"
	"github.com/mindbench/mindbench/internal/logger"
	"github.com/mindbench/mindbench/internal/metrics"
)

// cliReporter renders run progress as a terminal progress bar and logs
// notable per-sample outcomes.
type cliReporter struct {
	log logger.Logger
	bar *progressbar.ProgressBar
}

func newCLIReporter(log logger.Logger) *cliReporter {
	return &cliReporter{log: log}
}

func (r *cliReporter) RunStarted(runID string, task eval.Task, total, batches int) {
	r.log = r.log.With("run", runID)
	r.log.Info("evaluation started", "task", task.ID, "samples", total, "batches", batches)
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("evaluating"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *cliReporter) SampleDone(res eval.SampleResult) {
	if r.bar != nil {
		_ = r.bar.Add(1)
	}
	if res.Aborted {
		r.log.Warn("sample aborted", "index", res.Index)
	}
	if res.OutOfMemory {
		r.log.Warn("sample hit memory pressure", "index", res.Index, "rss_gb", res.Metrics.OOMMemoryGB)
	}
}

func (r *cliReporter) BatchDone(batch, totalBatches int, pctComplete float64) {
	r.log.Debug("batch complete", "batch", batch, "total", totalBatches, "pct", pctComplete)
}

func (r *cliReporter) RunDone(sum metrics.Summary) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	r.log.Info("evaluation finished",
		"samples", sum.Samples, "accuracy_pct", sum.AccuracyPct, "oom", sum.OOMCount)
}
