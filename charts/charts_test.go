// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package charts

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/humaidq/labinsight/labs"
)

func sampleResults(t *testing.T) []labs.Result {
	t.Helper()

	rows, err := labs.ReadTable(strings.NewReader(labs.SampleCSV), labs.DefaultColumns())
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	return labs.NewPipeline(labs.DefaultVocabulary()).Process(rows)
}

func TestPanelValues(t *testing.T) {
	t.Parallel()

	results := sampleResults(t)

	html, err := PanelValues("CBC", results)
	if err != nil {
		t.Fatalf("PanelValues failed: %v", err)
	}

	if !strings.Contains(html, "echarts") || !strings.Contains(html, "CBC") {
		t.Fatalf("unexpected chart output")
	}

	if _, err := PanelValues("Empty", nil); !errors.Is(err, ErrNoChartData) {
		t.Fatalf("expected ErrNoChartData, got %v", err)
	}
}

func TestChartsEscapeUploadedNames(t *testing.T) {
	t.Parallel()

	const (
		testName = "</script><script>alert(1)</script>"
		panel    = "<img src=x onerror=alert(2)>"
	)

	rows := []labs.Result{{
		Observation:       labs.Observation{Row: 1, PanelCategory: panel, TestName: testName},
		CanonicalTestName: testName,
		CanonicalUnit:     "mg/dL",
		NormalizedValue:   12,
		ValueValid:        true,
		Rule:              labs.Interval(10, 20),
		Status:            labs.StatusNormal,
	}}

	summary := labs.Aggregate(rows)

	builders := map[string]func() (string, error){
		"values": func() (string, error) { return PanelValues(panel, rows) },
		"trend":  func() (string, error) { return TestTrend(testName, rows) },
		"panels": func() (string, error) { return PanelStatuses(summary) },
	}

	for name, fn := range builders {
		html, err := fn()
		if err != nil {
			t.Fatalf("%s: render failed: %v", name, err)
		}

		if strings.Contains(html, "<script>alert") || strings.Contains(html, "<img src=x") {
			t.Fatalf("%s: uploaded name reached the page unescaped", name)
		}

		if !strings.Contains(html, `\u003c`) {
			t.Fatalf("%s: expected escaped name in chart options", name)
		}
	}
}

func TestTestTrend(t *testing.T) {
	t.Parallel()

	results := sampleResults(t)
	name := results[0].CanonicalTestName

	html, err := TestTrend(name, results)
	if err != nil {
		t.Fatalf("TestTrend failed: %v", err)
	}

	if !strings.Contains(html, "Ref Min") || !strings.Contains(html, "Ref Max") {
		t.Fatalf("expected reference mark lines in output")
	}

	if _, err := TestTrend("NOT A TEST", results); !errors.Is(err, ErrNoChartData) {
		t.Fatalf("expected ErrNoChartData, got %v", err)
	}
}

func TestSummaryCharts(t *testing.T) {
	t.Parallel()

	summary := labs.Aggregate(sampleResults(t))

	pie, err := StatusBreakdown(summary)
	if err != nil || pie == "" {
		t.Fatalf("StatusBreakdown = %d bytes, %v", len(pie), err)
	}

	bar, err := PanelStatuses(summary)
	if err != nil || !strings.Contains(bar, "Lipid Panel") {
		t.Fatalf("PanelStatuses missing panel, err=%v", err)
	}

	empty := labs.Aggregate(nil)
	if _, err := StatusBreakdown(empty); !errors.Is(err, ErrNoChartData) {
		t.Fatalf("expected ErrNoChartData, got %v", err)
	}

	if _, err := PanelStatuses(empty); !errors.Is(err, ErrNoChartData) {
		t.Fatalf("expected ErrNoChartData, got %v", err)
	}
}

func TestResultsPNG(t *testing.T) {
	t.Parallel()

	png, err := ResultsPNG("Results", sampleResults(t))
	if err != nil {
		t.Fatalf("ResultsPNG failed: %v", err)
	}

	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("output is not a PNG")
	}

	single := []labs.Result{{CanonicalTestName: "ZERO", ValueValid: true, Status: labs.StatusUnknown}}
	if _, err := ResultsPNG("Flat", single); err != nil {
		t.Fatalf("ResultsPNG with flat data failed: %v", err)
	}

	invalid := []labs.Result{{CanonicalTestName: "X"}}
	if _, err := ResultsPNG("None", invalid); !errors.Is(err, ErrNoChartData) {
		t.Fatalf("expected ErrNoChartData, got %v", err)
	}
}

func TestStatusColor(t *testing.T) {
	t.Parallel()

	if StatusColor(labs.Status("bogus")) != StatusColor(labs.StatusUnknown) {
		t.Fatalf("unknown statuses should share the Unknown colour")
	}
}
