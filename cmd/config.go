/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/humaidq/labinsight/labs"
	"github.com/humaidq/labinsight/storage"
	"github.com/humaidq/labinsight/summary"
)

func vocabularyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "vocabulary",
		Sources: cli.EnvVars("LABS_VOCABULARY"),
		Usage:   "YAML vocabulary file; each table it defines replaces the built-in one",
	}
}

// columnFlags map uploaded CSV headers to the recognized columns. Every
// command that reads tables shares them so uploads and workers agree.
func columnFlags() []cli.Flag {
	column := func(name, env, usage string) cli.Flag {
		return &cli.StringFlag{Name: name, Sources: cli.EnvVars(env), Usage: usage}
	}

	return []cli.Flag{
		column("column-panel", "LABS_COLUMN_PANEL", "header of the panel category column"),
		column("column-test", "LABS_COLUMN_TEST", "header of the test name column"),
		column("column-date", "LABS_COLUMN_DATE", "header of the date column"),
		column("column-value", "LABS_COLUMN_VALUE", "header of the value column"),
		column("column-unit", "LABS_COLUMN_UNIT", "header of the unit column"),
		column("column-range", "LABS_COLUMN_RANGE", "header of the reference range column"),
	}
}

func columnsFromFlags(cmd *cli.Command) labs.ColumnMap {
	return labs.ColumnMap{
		PanelCategory:  cmd.String("column-panel"),
		TestName:       cmd.String("column-test"),
		Date:           cmd.String("column-date"),
		Value:          cmd.String("column-value"),
		Unit:           cmd.String("column-unit"),
		ReferenceRange: cmd.String("column-range"),
	}.WithDefaults()
}

func rateFlag() cli.Flag {
	return &cli.FloatFlag{
		Name:    "rate",
		Sources: cli.EnvVars("SUMMARY_RATE"),
		Value:   6,
		Usage:   "maximum summaries generated per minute (0 for unlimited)",
	}
}

func loadPipeline(cmd *cli.Command) (*labs.Pipeline, error) {
	path := cmd.String("vocabulary")
	if path == "" {
		return labs.NewPipeline(labs.DefaultVocabulary()), nil
	}

	vocab, err := labs.LoadVocabulary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	appLogger.Info("Loaded vocabulary", "path", path, "aliases", len(vocab.Aliases), "conversions", len(vocab.Conversions))

	return labs.NewPipeline(vocab), nil
}

// openStore connects to WebDAV. With allowMemory set, a missing WebDAV
// configuration falls back to an in-process store that is lost on exit.
func openStore(allowMemory bool) (storage.Store, bool, error) {
	config, err := storage.GetWebDAVConfig()
	if err != nil {
		if errors.Is(err, storage.ErrWebDAVNotConfigured) && allowMemory {
			appLogger.Warn("WEBDAV_URL not set, storing uploads in memory")
			return storage.NewMemoryStore(), true, nil
		}

		return nil, false, err
	}

	store, err := storage.NewWebDAVStore(config)
	if err != nil {
		return nil, false, err
	}

	appLogger.Info("Using WebDAV storage", "url", config.URL)

	return store, false, nil
}

func newGenerator() (summary.Generator, error) {
	config, err := summary.GetOllamaConfig()
	if err != nil {
		return nil, err
	}

	appLogger.Info("Using Ollama", "url", config.URL, "model", config.Model)

	return summary.NewOllama(config), nil
}

func newLimiter(perMinute float64) (*rate.Limiter, error) {
	switch {
	case perMinute < 0:
		return nil, errInvalidRate
	case perMinute == 0:
		return nil, nil
	default:
		return rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), 1), nil
	}
}
