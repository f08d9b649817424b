/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/humaidq/labinsight/labs"
)

// Summary outcomes.
const (
	SummarySucceeded = "success"
	SummaryFailed    = "failure"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labinsight_uploads_total",
			Help: "Total number of tables accepted for processing",
		},
		[]string{"source"},
	)

	rowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labinsight_rows_processed_total",
			Help: "Total number of rows classified, by status",
		},
		[]string{"status"},
	)

	rowsNeedsReview = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labinsight_rows_needs_review_total",
			Help: "Total number of rows whose unit could not be converted to the canonical unit",
		},
	)

	summariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labinsight_summaries_total",
			Help: "Total number of summarization attempts, by result",
		},
		[]string{"result"},
	)

	summaryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labinsight_summary_duration_seconds",
			Help:    "Time spent generating a summary",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	pendingTriggers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labinsight_pending_triggers",
			Help: "Trigger files seen on the last worker poll",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordUpload records an accepted table. source is "upload", "sample" or "cli".
func RecordUpload(source string) {
	uploadsTotal.WithLabelValues(source).Inc()
}

// RecordResults records the classification outcome of processed rows.
func RecordResults(rows []labs.Result) {
	for _, r := range rows {
		rowsProcessed.WithLabelValues(string(r.Status)).Inc()

		if r.NeedsReview {
			rowsNeedsReview.Inc()
		}
	}
}

// RecordSummary records a summarization attempt.
func RecordSummary(err error, duration time.Duration) {
	result := SummarySucceeded
	if err != nil {
		result = SummaryFailed
	}

	summariesTotal.WithLabelValues(result).Inc()
	summaryDuration.Observe(duration.Seconds())
}

// RecordPendingTriggers records the trigger backlog.
func RecordPendingTriggers(count int) {
	pendingTriggers.Set(float64(count))
}
