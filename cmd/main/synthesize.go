package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/CTAG07/Marky/pkg/ledger"
	"github.com/CTAG07/Marky/pkg/markov"
	"github.com/CTAG07/Marky/pkg/metrics"
	"github.com/CTAG07/Marky/pkg/rows"
)

// synthesize reads the history, trains a model and writes the output files.
func synthesize(ctx context.Context, inv *invocation, logger *slog.Logger) (err error) {
	cfg := inv.config
	shape, err := cfg.RowShape()
	if err != nil {
		return err
	}

	rec := metrics.New()
	if cfg.MetricsPath != "" {
		defer func() {
			if werr := rec.WriteTextfile(cfg.MetricsPath); werr != nil {
				logger.WarnContext(ctx, "Failed to write metrics", slog.String("path", cfg.MetricsPath), slog.Any("error", werr))
			}
		}()
	}

	runs, runID, err := beginRun(ctx, cfg, inv, logger)
	if err != nil {
		return err
	}
	if runs != nil {
		defer func() {
			status, message := ledger.StatusOK, ""
			if err != nil {
				status, message = ledger.StatusFailed, err.Error()
			}
			// The run is recorded even when ctx was cancelled.
			if ferr := runs.FinishRun(context.WithoutCancel(ctx), runID, status, message); ferr != nil {
				logger.WarnContext(ctx, "Failed to finish run in ledger", slog.Any("error", ferr))
			}
			runs.close()
		}()
	}

	// Read
	began := time.Now()
	logger.InfoContext(ctx, "Reading history", slog.String("input", inv.input), slog.String("size", fileSize(inv.input)))
	codec := rows.NewCodec(shape, rows.WithStrictArity(cfg.StrictArity))
	history, err := rows.LoadFile(inv.input, codec, cfg.CSVOptions())
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	rec.RecordHistory(len(history))
	rec.ObserveStage("read", time.Since(began))

	// Train
	began = time.Now()
	plan, err := markov.Plan(len(history), cfg.InitChunkSize, cfg.GrowthFactor, cfg.ChunkDivisor)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Training MCMC",
		slog.String("rows", humanize.Comma(int64(len(history)))),
		slog.Int("order", cfg.Order),
		slog.Any("schedule", plan),
	)
	model := markov.NewModel(cfg.Order)
	model.SetLogger(logger)
	report, err := markov.Train(ctx, model, history, plan, markov.WithWorkers(cfg.TrainWorkers))
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	if cfg.PruneMinFreq > 0 {
		model.Prune(cfg.PruneMinFreq)
	}
	stats := model.Stats()
	rec.RecordTraining(report, stats)
	rec.ObserveStage("train", time.Since(began))
	if runs != nil {
		if err := runs.RecordTraining(ctx, runID, len(history), plan, stats); err != nil {
			logger.WarnContext(ctx, "Failed to record training in ledger", slog.Any("error", err))
		}
	}
	logger.InfoContext(ctx, "Model trained",
		slog.String("windows", humanize.Comma(int64(report.Windows))),
		slog.String("contexts", humanize.Comma(int64(stats.Contexts))),
		slog.String("transitions", humanize.Comma(int64(stats.TotalFrequency))),
	)

	// Generate
	began = time.Now()
	logger.InfoContext(ctx, "Generating files",
		slog.Int("files", cfg.FileCount),
		slog.String("rows_per_file", humanize.Comma(int64(inv.desiredLen))),
	)
	results, err := markov.GenerateFiles(ctx, model, markov.FilesOptions{
		TargetLen: inv.desiredLen,
		FileCount: cfg.FileCount,
		PathFor:   markov.OutputPaths(cfg.OutputPath, cfg.FileCount),
		Seed:      cfg.Seed,
		Seeded:    cfg.Seed != 0,
		Workers:   cfg.GenWorkers,
		CSV:       cfg.CSVOptions(),
		Generate: []markov.GenerateOption{
			markov.WithMaxLength(cfg.MaxSegment),
			markov.WithTemperature(cfg.Temperature),
			markov.WithTopK(cfg.TopK),
		},
		OnFile: func(res markov.FileResult) {
			rec.RecordFile(res)
			if runs != nil {
				out := ledger.Output{
					RunID:     runID,
					Index:     res.Index,
					Path:      res.Path,
					Rows:      res.Rows,
					Segments:  res.Segments,
					Fallbacks: res.Fallbacks,
					Digest:    res.Digest,
					Elapsed:   res.Elapsed,
				}
				if err := runs.RecordOutput(ctx, out); err != nil {
					logger.WarnContext(ctx, "Failed to record output in ledger", slog.Any("error", err))
				}
			}
			logger.DebugContext(ctx, "Output written",
				slog.String("path", res.Path),
				slog.String("rows", humanize.Comma(int64(res.Rows))),
				slog.Duration("elapsed", res.Elapsed),
			)
		},
	})
	rec.ObserveStage("generate", time.Since(began))
	if err != nil {
		rec.RecordFailedFiles(cfg.FileCount - len(results))
		return fmt.Errorf("generation failed after %d of %d files: %w", len(results), cfg.FileCount, err)
	}
	return nil
}

// runLedger is an open ledger together with its database.
type runLedger struct {
	*ledger.Ledger
	close func()
}

// beginRun opens the ledger named in cfg and records the start of a run. It
// returns a nil ledger when none is configured.
func beginRun(ctx context.Context, cfg *Config, inv *invocation, logger *slog.Logger) (*runLedger, string, error) {
	if cfg.LedgerPath == "" {
		return nil, "", nil
	}
	db, err := initDB(cfg.LedgerPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	if err = ledger.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("failed to setup ledger schema: %w", err)
	}
	l, err := ledger.New(db)
	if err != nil {
		_ = db.Close()
		return nil, "", err
	}
	l.SetLogger(logger)

	runs := &runLedger{Ledger: l, close: func() {
		l.Close()
		if err := db.Close(); err != nil {
			logger.Error("Failed to close ledger database", slog.Any("error", err))
		}
	}}
	id, err := l.BeginRun(ctx, ledger.Run{
		Input:      inv.input,
		Shape:      cfg.Shape,
		Order:      cfg.Order,
		TargetRows: inv.desiredLen,
		FileCount:  cfg.FileCount,
	})
	if err != nil {
		runs.close()
		return nil, "", err
	}
	logger.DebugContext(ctx, "Run recorded", slog.String("run_id", id), slog.String("ledger", cfg.LedgerPath))
	return runs, id, nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown"
	}
	return humanize.Bytes(uint64(info.Size()))
}
