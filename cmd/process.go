/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/humaidq/labinsight/labs"
)

var CmdProcess = &cli.Command{
	Name:      "process",
	Usage:     "Normalize and classify a bloodwork CSV and write the enriched table",
	ArgsUsage: "<input.csv|->",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "write the enriched CSV here instead of stdout",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "rows processed in parallel (0 uses every CPU)",
		},
		&cli.BoolFlag{
			Name:  "prompt",
			Usage: "print the summary prompt instead of the enriched CSV",
		},
		vocabularyFlag(),
	}, columnFlags()...),
	Action: process,
}

func process(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return errInputRequired
	}

	pipeline, err := loadPipeline(cmd)
	if err != nil {
		return err
	}

	in, closeIn, err := openInput(cmd.Args().First())
	if err != nil {
		return err
	}
	defer closeIn()

	out := io.Writer(os.Stdout)
	if path := cmd.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()

		out = file
	}

	return runProcess(ctx, pipeline, columnsFromFlags(cmd), cmd.Int("workers"), cmd.Bool("prompt"), in, out)
}

func runProcess(ctx context.Context, pipeline *labs.Pipeline, cols labs.ColumnMap, workers int, prompt bool, in io.Reader, out io.Writer) error {
	rows, err := labs.ReadTable(in, cols)
	if err != nil {
		return err
	}

	results, err := pipeline.ProcessConcurrent(ctx, rows, workers)
	if err != nil {
		return err
	}

	counts := labs.Tally(results)
	appLogger.Info("Processed table",
		"rows", counts.Rows,
		"abnormal", counts.Abnormal,
		"unknown", counts.Unknown,
		"needs_review", counts.NeedsReview,
	)

	for _, p := range labs.Aggregate(results).Panels() {
		appLogger.Info("Panel",
			"category", p.Category,
			"normal", p.Counts[labs.StatusNormal],
			"above", p.Counts[labs.StatusAboveRange],
			"below", p.Counts[labs.StatusBelowRange],
			"unknown", p.Counts[labs.StatusUnknown],
		)
	}

	if prompt {
		_, err := fmt.Fprintln(out, labs.BuildSummaryPrompt(results))
		return err
	}

	return labs.WriteTable(out, results)
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}

	return file, func() {
		if err := file.Close(); err != nil {
			appLogger.Warn("Failed to close input", "error", err)
		}
	}, nil
}
