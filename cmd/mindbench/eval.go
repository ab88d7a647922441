package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/mindbench/mindbench/internal/backend"
	_ "github.com/mindbench/mindbench/internal/backend/toy"
	"github.com/mindbench/mindbench/internal/eval"
	"github.com/mindbench/mindbench/internal/logger"
	"github.com/mindbench/mindbench/internal/logits"
	"github.com/mindbench/mindbench/internal/profile"
	"github.com/mindbench/mindbench/internal/session"
	"github.com/mindbench/mindbench/internal/token"
)

func evalCmd() *cli.Command {
	var (
		taskID          string
		datasetPath     string
		limit           int64
		batchSize       int64
		cleanupInterval int64
		seed            int64
		showLog         bool
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, commonLogFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "task",
			Aliases:     []string{"t"},
			Usage:       "classification task id (see `mindbench tasks`)",
			Value:       "stress",
			Destination: &taskID,
		},
		&cli.StringFlag{
			Name:        "dataset",
			Aliases:     []string{"d"},
			Usage:       "path to a .csv or .json dataset",
			Destination: &datasetPath,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "max samples to evaluate (0 = all)",
			Destination: &limit,
		},
		&cli.IntFlag{
			Name:        "batch-size",
			Usage:       "samples per progress batch",
			Value:       eval.DefaultBatchSize,
			Destination: &batchSize,
		},
		&cli.IntFlag{
			Name:        "cleanup-interval",
			Usage:       "batches between forced cache reclamation passes",
			Value:       eval.DefaultCleanupInterval,
			Destination: &cleanupInterval,
		},
		&cli.IntFlag{
			Name:        "seed",
			Usage:       "sampling seed",
			Value:       42,
			Destination: &seed,
		},
		&cli.BoolFlag{
			Name:        "show-log",
			Usage:       "print the full per-sample run log after the report",
			Destination: &showLog,
		},
	)

	return &cli.Command{
		Name:  "eval",
		Usage: "Run a classification benchmark over a dataset",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyEvalConfig(cmd, cfg, &batchSize, &cleanupInterval, &seed)

			log := buildLogger()

			task, ok := eval.LookupTask(taskID)
			if !ok {
				return cli.Exit(fmt.Sprintf("error: unknown task %q (see `mindbench tasks`)", taskID), 1)
			}
			if datasetPath == "" {
				return cli.Exit("error: --dataset is required", 1)
			}
			if !filepath.IsAbs(datasetPath) && cfg.DatasetsDir != "" {
				if _, err := os.Stat(datasetPath); err != nil {
					datasetPath = filepath.Join(cfg.DatasetsDir, datasetPath)
				}
			}

			samples, err := eval.LoadDataset(datasetPath, int(limit))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(samples) == 0 {
				return cli.Exit("error: dataset is empty", 1)
			}

			resolvedModel := modelPath
			if resolvedModel != "" && !filepath.IsAbs(resolvedModel) && cfg.ModelsDir != "" {
				if _, err := os.Stat(resolvedModel); err != nil {
					resolvedModel = filepath.Join(cfg.ModelsDir, resolvedModel)
				}
			}

			prof := profile.Resolve(profileName)
			log.Info("loading model",
				"backend", backendName, "model", resolvedModel, "profile", prof.Name)
			loadStart := time.Now()
			eng, err := backend.Open(backendName, resolvedModel, prof)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			disp := backend.NewDispatcher()
			defer disp.Close()
			eng = backend.Serialize(eng, disp)
			// Free runs before disp.Close, so teardown goes through the
			// dispatcher thread like every other engine call.
			defer eng.Free()

			fmt.Println("=== mindbench ===")
			if stat, err := os.Stat(resolvedModel); err == nil {
				fmt.Printf("Model:    %s (%s)\n", resolvedModel, humanize.Bytes(uint64(stat.Size())))
			} else {
				fmt.Printf("Model:    %s\n", resolvedModel)
			}
			fmt.Printf("Backend:  %s\n", backendName)
			fmt.Printf("Profile:  %s (gpu_layers=%d ctx=%d batch=%d threads=%d)\n",
				prof.Name, prof.GPULayers, prof.ContextSize, prof.BatchSize, prof.Threads)
			fmt.Printf("Task:     %s (%s)\n", task.ID, task.Name)
			fmt.Printf("Samples:  %d\n", len(samples))
			fmt.Printf("CPUs:     %d\n", runtime.NumCPU())
			fmt.Printf("Load:     %s\n", time.Since(loadStart).Round(time.Millisecond))
			fmt.Println()

			codec := token.NewCodec(eng, prof.BatchSize)
			sess := session.New(eng, codec, session.Config{
				MaxNewTokens: task.MaxNewTokens,
				Sampler:      logits.DefaultConfig(seed),
			}, log)
			orch := eval.NewOrchestrator(sess, eng, task, eval.Config{
				BatchSize:       int(batchSize),
				CleanupInterval: int(cleanupInterval),
			}, log)

			sum, err := orch.Run(ctx, samples, newCLIReporter(log))
			if err != nil {
				log.Warn("run stopped early", "err", err)
			}

			fmt.Println()
			fmt.Print(sum.Report())
			if showLog {
				fmt.Println()
				fmt.Print(orch.RunLog())
			}
			return nil
		},
	}
}

func buildLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.Text(os.Stderr, level)
	default:
		return logger.Pretty(os.Stderr, level)
	}
}
