/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/humaidq/labinsight/charts"
	"github.com/humaidq/labinsight/db"
	"github.com/humaidq/labinsight/labs"
	"github.com/humaidq/labinsight/logging"
	"github.com/humaidq/labinsight/metrics"
	"github.com/humaidq/labinsight/storage"
	"github.com/humaidq/labinsight/summary"
)

var logger = logging.Logger(logging.SourceWorker)

// DefaultPollInterval is how often Run looks for trigger files.
const DefaultPollInterval = 30 * time.Second

// SummaryRecorder persists a generated summary for the upload stored at
// objectKey.
type SummaryRecorder interface {
	RecordSummary(ctx context.Context, objectKey, text string, chartPNG []byte, model string) error
}

// Config wires a Worker to its collaborators.
type Config struct {
	Store     storage.Store
	Pipeline  *labs.Pipeline
	Generator summary.Generator
	// Recorder is optional; without it summaries only go to the store.
	Recorder SummaryRecorder
	Columns  labs.ColumnMap
	// Limiter paces calls to the generator. Nil means unlimited.
	Limiter      *rate.Limiter
	PollInterval time.Duration
}

// Worker turns trigger files into summaries.
type Worker struct {
	cfg Config
}

// Report counts the outcome of one poll.
type Report struct {
	Processed int
	Failed    int
}

// New returns a worker. Store, Pipeline and Generator are required.
func New(cfg Config) (*Worker, error) {
	if cfg.Store == nil || cfg.Pipeline == nil || cfg.Generator == nil {
		return nil, ErrIncompleteConfig
	}

	cfg.Columns = cfg.Columns.WithDefaults()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Worker{cfg: cfg}, nil
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	logger.Info("Worker started", "poll_interval", w.cfg.PollInterval, "model", w.cfg.Generator.Model())

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			logger.Error("Poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("Worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce processes every pending trigger. A failed trigger is logged and
// left in place for the next poll; only listing errors and cancellation are
// returned.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	objects, err := w.cfg.Store.List(ctx, storage.TriggerPrefix)
	if err != nil {
		return report, fmt.Errorf("failed to list triggers: %w", err)
	}

	var names []string
	for _, obj := range objects {
		if name, ok := storage.TriggerName(obj.Key); ok {
			names = append(names, name)
		}
	}

	metrics.RecordPendingTriggers(len(names))

	if len(names) == 0 {
		logger.Debug("No trigger files found")
		return report, nil
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		logger.Info("Processing trigger", "name", name)

		if err := w.Process(ctx, name); err != nil {
			report.Failed++
			logger.Error("Failed to process trigger", "name", name, "error", err)

			continue
		}

		report.Processed++
	}

	return report, nil
}

// Process summarizes the raw table called name and removes its trigger.
func (w *Worker) Process(ctx context.Context, name string) error {
	store := w.cfg.Store

	raw, err := store.Get(ctx, storage.RawKey(name))
	if err != nil {
		return fmt.Errorf("failed to download raw table: %w", err)
	}

	rows, err := labs.ReadTable(bytes.NewReader(raw), w.cfg.Columns)
	if err != nil {
		return fmt.Errorf("failed to read table: %w", err)
	}

	results := w.cfg.Pipeline.Process(rows)

	var processed bytes.Buffer
	if err := labs.WriteTable(&processed, results); err != nil {
		return fmt.Errorf("failed to write processed table: %w", err)
	}

	if err := store.Put(ctx, storage.ProcessedKey(name), processed.Bytes()); err != nil {
		return fmt.Errorf("failed to store processed table: %w", err)
	}

	text, err := w.generate(ctx, labs.BuildSummaryPrompt(results))
	if err != nil {
		return err
	}

	if err := store.Put(ctx, storage.SummaryKey(name), []byte(text)); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}

	logger.Info("Summary uploaded", "key", storage.SummaryKey(name))

	png, err := charts.ResultsPNG(name, results)
	if err != nil {
		if !errors.Is(err, charts.ErrNoChartData) {
			return fmt.Errorf("failed to render chart: %w", err)
		}

		png = nil
	}

	if w.cfg.Recorder != nil {
		err := w.cfg.Recorder.RecordSummary(ctx, storage.RawKey(name), text, png, w.cfg.Generator.Model())
		switch {
		case errors.Is(err, db.ErrUploadNotFound):
			// Tables dropped into the store directly have no upload row.
			logger.Warn("No upload recorded for table, summary kept in storage only", "name", name)
		case err != nil:
			return fmt.Errorf("failed to record summary: %w", err)
		}
	}

	if err := store.Delete(ctx, storage.TriggerKey(name)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to remove trigger: %w", err)
	}

	logger.Info("Trigger removed", "key", storage.TriggerKey(name))

	return nil
}

func (w *Worker) generate(ctx context.Context, prompt string) (string, error) {
	if w.cfg.Limiter != nil {
		if err := w.cfg.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	start := time.Now()
	text, err := w.cfg.Generator.Generate(ctx, prompt)
	metrics.RecordSummary(err, time.Since(start))

	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	return text, nil
}
