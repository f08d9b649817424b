/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package charts

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/humaidq/labinsight/labs"
)

const (
	pngHeight   = 512
	pngMinWidth = 800
	pngBarWidth = 40
	pngBarSlot  = 70
)

func barStyle(s labs.Status) chart.Style {
	col := drawing.ColorFromHex(StatusColor(s)[1:])

	return chart.Style{
		FillColor:   col,
		StrokeColor: col,
		StrokeWidth: 1,
	}
}

// ResultsPNG renders a bar per numeric result, coloured by status, as PNG
// bytes. It is the image stored alongside each summary.
func ResultsPNG(title string, rows []labs.Result) ([]byte, error) {
	bars := make([]chart.Value, 0, len(rows))
	minVal, maxVal := 0.0, 0.0

	for _, r := range rows {
		if !r.ValueValid {
			continue
		}

		bars = append(bars, chart.Value{
			Label: r.CanonicalTestName,
			Value: r.NormalizedValue,
			Style: barStyle(r.Status),
		})

		minVal = math.Min(minVal, r.NormalizedValue)
		maxVal = math.Max(maxVal, r.NormalizedValue)
	}

	if len(bars) == 0 {
		return nil, ErrNoChartData
	}

	// A zero-height range is rejected by the renderer.
	if maxVal-minVal == 0 {
		maxVal = minVal + 1
	}

	graph := chart.BarChart{
		Title: title,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Width:    max(pngMinWidth, len(bars)*pngBarSlot),
		Height:   pngHeight,
		BarWidth: pngBarWidth,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: minVal, Max: maxVal * 1.05},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buf.Bytes(), nil
}
