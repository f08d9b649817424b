// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package labs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestPipelineEnrich(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultVocabulary())

	tests := []struct {
		name   string
		obs    Observation
		status Status
		unit   string
		review bool
	}{
		{
			name:   "normal interval",
			obs:    Observation{TestName: "HGB", Value: "14.2", Unit: "g/dL", ReferenceRange: "13.0-17.0"},
			status: StatusNormal,
			unit:   "g/dL",
		},
		{
			name:   "converted value with range in raw unit",
			obs:    Observation{TestName: "Glucose", Value: "6.1", Unit: "mmol/L", ReferenceRange: "3.9-5.5"},
			status: StatusAboveRange,
			unit:   "mg/dL",
		},
		{
			name:   "conversion boundary stays inclusive",
			obs:    Observation{TestName: "FT4", Value: "12", Unit: "pmol/L", ReferenceRange: "12-22"},
			status: StatusNormal,
			unit:   "ng/dL",
		},
		{
			name:   "upper bound",
			obs:    Observation{TestName: "Cholesterol", Value: "205", Unit: "mg/dL", ReferenceRange: "< 200.0"},
			status: StatusAboveRange,
			unit:   "mg/dL",
		},
		{
			name:   "lower bound",
			obs:    Observation{TestName: "HDL", Value: "35", Unit: "mg/dL", ReferenceRange: "> 40.0"},
			status: StatusBelowRange,
			unit:   "mg/dL",
		},
		{
			name:   "invalid value",
			obs:    Observation{TestName: "HGB", Value: "pending", Unit: "g/dL", ReferenceRange: "13.0-17.0"},
			status: StatusUnknown,
			unit:   "g/dL",
		},
		{
			name:   "unparsable range",
			obs:    Observation{TestName: "HGB", Value: "14", Unit: "g/dL", ReferenceRange: "see note"},
			status: StatusUnknown,
			unit:   "g/dL",
		},
		{
			name:   "unit without conversion rule",
			obs:    Observation{TestName: "Sodium", Value: "3200", Unit: "mg/L", ReferenceRange: "3100-3400"},
			status: StatusNormal,
			unit:   "mg/L",
			review: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := p.Enrich(tt.obs)
			if got.Status != tt.status {
				t.Fatalf("status = %s, want %s (rule %+v, value %v)", got.Status, tt.status, got.Rule, got.NormalizedValue)
			}

			if got.CanonicalUnit != tt.unit {
				t.Fatalf("unit = %q, want %q", got.CanonicalUnit, tt.unit)
			}

			if got.NeedsReview != tt.review {
				t.Fatalf("needs review = %v, want %v", got.NeedsReview, tt.review)
			}

			if got.Observation != tt.obs {
				t.Fatalf("raw observation fields must be preserved")
			}
		})
	}
}

func TestPipelineConvertsRule(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultVocabulary())

	got := p.Enrich(Observation{TestName: "Glucose", Value: "5", Unit: "mmol/L", ReferenceRange: "3.9-5.5"})

	lower, upper := got.Rule.Bounds()
	if lower == nil || upper == nil {
		t.Fatalf("expected interval rule, got %+v", got.Rule)
	}

	if *upper != 5.5*18 {
		t.Fatalf("upper bound = %v, want %v", *upper, 5.5*18)
	}

	if got.NormalizedValue != 90 || !got.Converted {
		t.Fatalf("unexpected converted value %v (converted=%v)", got.NormalizedValue, got.Converted)
	}
}

func TestCanonicalReferenceRange(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultVocabulary())

	tests := []struct {
		name string
		obs  Observation
		want string
	}{
		{"converted interval", Observation{TestName: "Glucose", Value: "5", Unit: "mmol/L", ReferenceRange: "3.9-5.5"}, "70.2 - 99"},
		{"converted bound", Observation{TestName: "Calcium", Value: "2.4", Unit: "mmol/L", ReferenceRange: "< 2.6"}, "< 10.4"},
		{"unconverted", Observation{TestName: "HGB", Value: "14", Unit: "g/dL", ReferenceRange: "13.0-17.0"}, "13.0-17.0"},
		{"invalid value", Observation{TestName: "Glucose", Value: "n/a", Unit: "mmol/L", ReferenceRange: "3.9-5.5"}, "3.9-5.5"},
		{"unparsable range", Observation{TestName: "Glucose", Value: "5", Unit: "mmol/L", ReferenceRange: "see note"}, "see note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := p.Enrich(tt.obs).CanonicalReferenceRange(); got != tt.want {
				t.Fatalf("CanonicalReferenceRange() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipelineIdempotent(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultVocabulary())

	obs, err := ReadTable(strings.NewReader(SampleCSV), DefaultColumns())
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	first := p.Process(obs)
	second := p.Process(obs)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("processing the same table twice gave different results")
	}
}

func TestPipelinePreservesRowCount(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultVocabulary())

	if got := p.Process(nil); len(got) != 0 {
		t.Fatalf("empty table produced %d rows", len(got))
	}

	obs := []Observation{
		{TestName: "HGB"},
		{},
		{TestName: "x", Value: "1", ReferenceRange: "<"},
	}

	got := p.Process(obs)
	if len(got) != len(obs) {
		t.Fatalf("got %d rows, want %d", len(got), len(obs))
	}

	for i, r := range got {
		if r.Status != StatusUnknown {
			t.Fatalf("row %d status = %s, want Unknown", i, r.Status)
		}
	}
}

func TestProcessConcurrentMatchesProcess(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultVocabulary())

	obs := make([]Observation, 257)
	for i := range obs {
		obs[i] = Observation{
			Row:            i + 1,
			TestName:       []string{"GLUCOSE", "HGB", "FT4", "Platelets"}[i%4],
			Value:          fmt.Sprintf("%d.%d", i%20, i%10),
			Unit:           []string{"mmol/L", "g/dL", "pmol/L", "k/uL"}[i%4],
			ReferenceRange: []string{"3.9-5.5", "13.0-17.0", "12-22", "< 400"}[i%4],
		}
	}

	want := p.Process(obs)

	for _, workers := range []int{0, 1, 3, 16, 1000} {
		got, err := p.ProcessConcurrent(context.Background(), obs, workers)
		if err != nil {
			t.Fatalf("ProcessConcurrent(%d) failed: %v", workers, err)
		}

		if !reflect.DeepEqual(got, want) {
			t.Fatalf("ProcessConcurrent(%d) differs from Process", workers)
		}
	}
}

func TestProcessConcurrentCancelled(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultVocabulary())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessConcurrent(ctx, make([]Observation, 10), 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTally(t *testing.T) {
	t.Parallel()

	rows := []Result{
		{Status: StatusNormal},
		{Status: StatusAboveRange},
		{Status: StatusUnknown, NeedsReview: true},
	}

	got := Tally(rows)
	want := Counts{Rows: 3, Unknown: 1, NeedsReview: 1, Abnormal: 1}

	if got != want {
		t.Fatalf("Tally() = %+v, want %+v", got, want)
	}
}
