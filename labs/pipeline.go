/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observation is one row of an uploaded table, as read.
type Observation struct {
	// Row is the 1-based data row number in the source table.
	Row            int
	PanelCategory  string
	TestName       string
	Date           *time.Time
	RawDate        string
	Value          string
	Unit           string
	ReferenceRange string
}

// Result is an Observation enriched with canonical fields and a status.
type Result struct {
	Observation

	CanonicalTestName string
	CanonicalUnit     string
	// NormalizedValue is rounded to two decimals and only meaningful when
	// ValueValid is set.
	NormalizedValue float64
	ValueValid      bool
	// Rule is the parsed reference range, expressed in CanonicalUnit.
	Rule        ReferenceRule
	Status      Status
	Converted   bool
	NeedsReview bool
}

// CanonicalReferenceRange is the reference range in CanonicalUnit. Rows whose
// rule was scaled by a conversion get the scaled thresholds, rounded like the
// value; every other row keeps its raw text.
func (r Result) CanonicalReferenceRange() string {
	if !r.Converted || !r.ValueValid || !r.Rule.Recognized() {
		return r.ReferenceRange
	}

	return r.Rule.Scale(round2).String()
}

// Pipeline normalizes and classifies tables. It holds no mutable state.
type Pipeline struct {
	normalizer *Normalizer
}

// NewPipeline returns a pipeline over the given vocabulary
func NewPipeline(vocab Vocabulary) *Pipeline {
	return &Pipeline{normalizer: NewNormalizer(vocab)}
}

// Normalizer exposes the pipeline's normalizer
func (p *Pipeline) Normalizer() *Normalizer {
	return p.normalizer
}

// Enrich processes a single observation.
func (p *Pipeline) Enrich(obs Observation) Result {
	norm := p.normalizer.NormalizeRaw(obs.TestName, obs.Value, obs.Unit)

	res := Result{
		Observation:       obs,
		CanonicalTestName: norm.TestName,
		CanonicalUnit:     norm.Unit,
		ValueValid:        norm.Valid,
		Converted:         norm.Conversion != nil,
		NeedsReview:       norm.NeedsReview,
		Rule:              ParseReferenceRange(obs.ReferenceRange),
		Status:            StatusUnknown,
	}

	if !norm.Valid {
		return res
	}

	res.NormalizedValue = norm.Value

	// The reference range is written in the row's raw unit, so it follows
	// the value through the conversion. Classification uses the unrounded
	// converted value so rounding cannot move a boundary value.
	exact, _ := ParseValue(obs.Value)
	if norm.Conversion != nil {
		res.Rule = res.Rule.Scale(norm.Conversion.Apply)
		exact = norm.Conversion.Apply(exact)
	}

	res.Status = Classify(exact, res.Rule)

	return res
}

// Process enriches every row. The output has exactly one result per input row,
// in input order.
func (p *Pipeline) Process(rows []Observation) []Result {
	out := make([]Result, len(rows))
	for i, obs := range rows {
		out[i] = p.Enrich(obs)
	}

	return out
}

// ProcessConcurrent is Process spread over workers goroutines. Each row is
// written to its own slot so no synchronization is needed beyond the final
// wait. A cancelled context abandons the batch and returns its error.
func (p *Pipeline) ProcessConcurrent(ctx context.Context, rows []Observation, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]Result, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	chunk := (len(rows) + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}

	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))

		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				out[i] = p.Enrich(rows[i])
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// Counts summarizes data-quality signals that callers may surface.
type Counts struct {
	Rows        int
	Unknown     int
	NeedsReview int
	Abnormal    int
}

// Tally counts rows by data-quality signal
func Tally(rows []Result) Counts {
	c := Counts{Rows: len(rows)}
	for _, r := range rows {
		if r.Status == StatusUnknown {
			c.Unknown++
		}

		if r.NeedsReview {
			c.NeedsReview++
		}

		if r.Status.IsAbnormal() {
			c.Abnormal++
		}
	}

	return c
}
