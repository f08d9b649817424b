/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/humaidq/labinsight/db"
	"github.com/humaidq/labinsight/worker"
)

var CmdWorker = &cli.Command{
	Name:  "worker",
	Usage: "Generate summaries for queued uploads",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Sources: cli.EnvVars("DATABASE_URL"),
			Usage:   "PostgreSQL connection string; without it summaries are only written to storage",
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Sources: cli.EnvVars("POLL_INTERVAL"),
			Value:   worker.DefaultPollInterval,
			Usage:   "how often to check for trigger files",
		},
		&cli.BoolFlag{
			Name:  "once",
			Usage: "process pending triggers once and exit",
		},
		vocabularyFlag(),
		rateFlag(),
	}, columnFlags()...),
	Action: runWorker,
}

func runWorker(ctx context.Context, cmd *cli.Command) error {
	pipeline, err := loadPipeline(cmd)
	if err != nil {
		return err
	}

	store, _, err := openStore(false)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	generator, err := newGenerator()
	if err != nil {
		return err
	}

	limiter, err := newLimiter(cmd.Float("rate"))
	if err != nil {
		return err
	}

	cfg := worker.Config{
		Store:        store,
		Pipeline:     pipeline,
		Columns:      columnsFromFlags(cmd),
		Generator:    generator,
		Limiter:      limiter,
		PollInterval: cmd.Duration("poll-interval"),
	}

	if databaseURL := cmd.String("database-url"); databaseURL != "" {
		if err := db.Init(ctx, databaseURL); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		if err := db.SyncSchema(ctx, databaseURL); err != nil {
			return fmt.Errorf("failed to sync schema: %w", err)
		}

		cfg.Recorder = db.SummaryRecorder{}
	} else {
		appLogger.Warn("DATABASE_URL not set, summaries are written to storage only")
	}

	w, err := worker.New(cfg)
	if err != nil {
		return err
	}

	if cmd.Bool("once") {
		report, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}

		appLogger.Info("Worker finished", "processed", report.Processed, "failed", report.Failed)

		return nil
	}

	return w.Run(ctx)
}
