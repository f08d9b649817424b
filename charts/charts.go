/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package charts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strconv"
	"strings"

	echarts "github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/humaidq/labinsight/labs"
)

var (
	// ErrNoChartData is returned when no row carries a numeric value to plot.
	ErrNoChartData = errors.New("no numeric results to chart")
	// ErrUnsafeChartOptions is returned when the option literal could not be
	// located in the rendered chart to be re-escaped.
	ErrUnsafeChartOptions = errors.New("chart options not found in rendered output")
)

// statusColors maps each status to the colour used in every chart.
var statusColors = map[labs.Status]string{
	labs.StatusNormal:     "#2e7d32",
	labs.StatusAboveRange: "#c62828",
	labs.StatusBelowRange: "#ef6c00",
	labs.StatusUnknown:    "#78909c",
}

// StatusColor returns the hex colour for a status.
func StatusColor(s labs.Status) string {
	if c, ok := statusColors[s]; ok {
		return c
	}

	return statusColors[labs.StatusUnknown]
}

// PanelValues renders one bar per test in a panel, coloured by status.
func PanelValues(panel string, rows []labs.Result) (string, error) {
	xAxis := make([]string, 0, len(rows))
	data := make([]opts.BarData, 0, len(rows))

	for _, r := range rows {
		if !r.ValueValid {
			continue
		}

		xAxis = append(xAxis, r.CanonicalTestName)
		data = append(data, opts.BarData{
			Name:      r.CanonicalTestName + " (" + r.CanonicalUnit + ")",
			Value:     r.NormalizedValue,
			ItemStyle: &opts.ItemStyle{Color: StatusColor(r.Status)},
		})
	}

	if len(data) == 0 {
		return "", ErrNoChartData
	}

	bar := echarts.NewBar()
	bar.SetGlobalOptions(
		echarts.WithTitleOpts(opts.Title{
			Title: panel,
		}),
		echarts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		echarts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
	)

	bar.SetXAxis(xAxis).AddSeries(panel, data)

	return render(bar)
}

// TestTrend renders the values of one test over time, with dashed lines at
// the reference bounds of the most recent row.
func TestTrend(testName string, rows []labs.Result) (string, error) {
	points := make([]labs.Result, 0, len(rows))
	for _, r := range rows {
		if r.ValueValid && r.CanonicalTestName == testName {
			points = append(points, r)
		}
	}

	if len(points) == 0 {
		return "", ErrNoChartData
	}

	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i].Date, points[j].Date
		switch {
		case a != nil && b != nil:
			return a.Before(*b)
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return points[i].Row < points[j].Row
		}
	})

	xAxis := make([]string, 0, len(points))
	yData := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		xAxis = append(xAxis, pointLabel(p))
		yData = append(yData, opts.LineData{Value: p.NormalizedValue})
	}

	latest := points[len(points)-1]
	refMin, refMax := latest.Rule.Bounds()

	line := echarts.NewLine()
	line.SetGlobalOptions(
		echarts.WithTitleOpts(opts.Title{
			Title: testName,
		}),
		echarts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		echarts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		echarts.WithYAxisOpts(opts.YAxis{
			Name: latest.CanonicalUnit,
		}),
	)

	seriesOpts := []echarts.SeriesOpts{
		echarts.WithLineChartOpts(opts.LineChart{
			ShowSymbol: opts.Bool(true),
		}),
	}

	var markLineItems []interface{}
	if refMin != nil {
		markLineItems = append(markLineItems, opts.MarkLineNameYAxisItem{
			Name:  "Ref Min",
			YAxis: *refMin,
		})
	}
	if refMax != nil {
		markLineItems = append(markLineItems, opts.MarkLineNameYAxisItem{
			Name:  "Ref Max",
			YAxis: *refMax,
		})
	}

	if len(markLineItems) > 0 {
		seriesOpts = append(seriesOpts, func(s *echarts.SingleSeries) {
			s.MarkLines = &opts.MarkLines{
				Data: markLineItems,
				MarkLineStyle: opts.MarkLineStyle{
					Symbol: []string{"none", "none"},
					LineStyle: &opts.LineStyle{
						Color: "rgba(128, 128, 128, 0.6)",
						Type:  "dashed",
						Width: 1.5,
					},
				},
			}
		})
	}

	line.SetXAxis(xAxis).
		AddSeries(testName, yData).
		SetSeriesOptions(seriesOpts...)

	return render(line)
}

// StatusBreakdown renders a pie of rows per status.
func StatusBreakdown(summary *labs.PanelSummary) (string, error) {
	if summary.Total() == 0 {
		return "", ErrNoChartData
	}

	totals := summary.StatusTotals()

	data := make([]opts.PieData, 0, len(totals))
	for _, s := range labs.Statuses() {
		if totals[s] == 0 {
			continue
		}

		data = append(data, opts.PieData{
			Name:      s.Label(),
			Value:     totals[s],
			ItemStyle: &opts.ItemStyle{Color: StatusColor(s)},
		})
	}

	pie := echarts.NewPie()
	pie.SetGlobalOptions(
		echarts.WithTitleOpts(opts.Title{
			Title: "Results by status",
		}),
		echarts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
	)

	pie.AddSeries("Status", data)

	return render(pie)
}

// PanelStatuses renders a stacked bar of status counts per panel.
func PanelStatuses(summary *labs.PanelSummary) (string, error) {
	panels := summary.Panels()
	if len(panels) == 0 {
		return "", ErrNoChartData
	}

	xAxis := make([]string, 0, len(panels))
	for _, p := range panels {
		xAxis = append(xAxis, p.Category)
	}

	bar := echarts.NewBar()
	bar.SetGlobalOptions(
		echarts.WithTitleOpts(opts.Title{
			Title: "Panels",
		}),
		echarts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		echarts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
	)
	bar.SetXAxis(xAxis)

	for _, s := range labs.Statuses() {
		data := make([]opts.BarData, 0, len(panels))
		for _, p := range panels {
			data = append(data, opts.BarData{Value: p.Counts[s]})
		}

		bar.AddSeries(s.Label(), data,
			echarts.WithBarChartOpts(opts.BarChart{Stack: "status"}),
			echarts.WithItemStyleOpts(opts.ItemStyle{Color: StatusColor(s)}),
		)
	}

	return render(bar)
}

type renderer interface {
	Render(w io.Writer) error
	JSON() map[string]interface{}
	JSONNotEscaped() template.HTML
}

// render writes the chart and swaps its inline option literal for an HTML
// escaped encoding. Test names and panels come from uploaded files, and
// go-echarts emits the literal into a script block without escaping.
func render(c renderer) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return "", err
	}

	raw := strings.TrimSuffix(string(c.JSONNotEscaped()), "\n")

	safe, err := json.Marshal(c.JSON())
	if err != nil {
		return "", fmt.Errorf("failed to encode chart options: %w", err)
	}

	out := buf.String()
	if !strings.Contains(out, raw) {
		return "", ErrUnsafeChartOptions
	}

	return strings.Replace(out, raw, string(safe), 1), nil
}

func pointLabel(r labs.Result) string {
	if r.Date != nil {
		return r.Date.Format("Jan 2, 2006")
	}

	if r.RawDate != "" {
		return r.RawDate
	}

	return "Row " + strconv.Itoa(r.Row)
}
