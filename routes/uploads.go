/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/http"
	"strings"

	"github.com/flamego/flamego"
	"github.com/flamego/session"
	"github.com/flamego/template"
	"github.com/google/uuid"

	"github.com/humaidq/labinsight/charts"
	"github.com/humaidq/labinsight/db"
	"github.com/humaidq/labinsight/labs"
	"github.com/humaidq/labinsight/metrics"
	"github.com/humaidq/labinsight/storage"
)

const (
	maxUploadSize     = 10 << 20
	recentUploadLimit = 50
)

// Upload sources, used as metric labels.
const (
	SourceUpload = "upload"
	SourceSample = "sample"
)

var (
	listUploadsDBFn         = db.ListUploads
	getUploadDBFn           = db.GetUpload
	listResultsDBFn         = db.ListResults
	createUploadDBFn        = db.CreateUpload
	setSummaryRequestedDBFn = db.SetSummaryRequested
	getSummaryDBFn          = db.GetSummary
	saveSummaryDBFn         = db.SaveSummary
)

// Dashboard lists recent uploads next to the upload form.
func Dashboard(c flamego.Context, t template.Template, data template.Data) {
	uploads, err := listUploadsDBFn(c.Request().Context(), recentUploadLimit)
	if err != nil {
		logger.Error("Error listing uploads", "error", err)
		data["Error"] = "Failed to load uploads"
	}

	data["Uploads"] = uploads
	data["IsDashboard"] = true

	t.HTML(http.StatusOK, "dashboard")
}

// UploadTable accepts a CSV file, processes it and stores every artifact.
func UploadTable(c flamego.Context, s session.Session, store storage.Store, p *labs.Pipeline, cols labs.ColumnMap) {
	filename, raw, err := readUploadedFile(c)
	if err != nil {
		logger.Warn("Rejected upload", "error", err)
		SetErrorFlash(s, "Upload failed: "+err.Error())
		c.Redirect("/", http.StatusSeeOther)

		return
	}

	summarize := c.Request().FormValue("summarize") != ""

	upload, err := ingestTable(c.Request().Context(), store, p, cols, filename, raw, summarize, SourceUpload)
	if err != nil {
		logger.Error("Error ingesting upload", "filename", filename, "error", err)
		SetErrorFlash(s, ingestErrorMessage(err))
		c.Redirect("/", http.StatusSeeOther)

		return
	}

	flashIngestResult(s, upload, summarize)
	c.Redirect("/uploads/"+upload.ID.String(), http.StatusSeeOther)
}

// LoadSample processes the built-in sample dataset.
func LoadSample(c flamego.Context, s session.Session, store storage.Store, p *labs.Pipeline) {
	if err := c.Request().ParseForm(); err != nil {
		SetErrorFlash(s, "Failed to parse form")
		c.Redirect("/", http.StatusSeeOther)

		return
	}

	summarize := c.Request().Form.Get("summarize") != ""

	upload, err := ingestTable(c.Request().Context(), store, p, labs.DefaultColumns(), "sample.csv", []byte(labs.SampleCSV), summarize, SourceSample)
	if err != nil {
		logger.Error("Error ingesting sample data", "error", err)
		SetErrorFlash(s, ingestErrorMessage(err))
		c.Redirect("/", http.StatusSeeOther)

		return
	}

	flashIngestResult(s, upload, summarize)
	c.Redirect("/uploads/"+upload.ID.String(), http.StatusSeeOther)
}

func readUploadedFile(c flamego.Context) (string, []byte, error) {
	req := c.Request().Request
	req.Body = http.MaxBytesReader(c.ResponseWriter(), req.Body, maxUploadSize+(1<<20))

	if err := req.ParseMultipartForm(maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, errUploadTooLarge
		}

		return "", nil, fmt.Errorf("failed to parse form: %w", err)
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(raw) > maxUploadSize {
		return "", nil, errUploadTooLarge
	}

	return header.Filename, raw, nil
}

// ingestTable processes raw, stores the raw and processed tables, records the
// upload and, when asked, drops a trigger for the summary worker. Storage and
// database writes are not atomic; a failure part way leaves earlier objects.
func ingestTable(ctx context.Context, store storage.Store, p *labs.Pipeline, cols labs.ColumnMap, filename string, raw []byte, summarize bool, source string) (*db.Upload, error) {
	clean, err := storage.CleanName(filename)
	if err != nil {
		return nil, err
	}

	rows, err := labs.ReadTable(bytes.NewReader(raw), cols)
	if err != nil {
		return nil, err
	}

	results, err := p.ProcessConcurrent(ctx, rows, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to process table: %w", err)
	}

	id := uuid.New()
	name := id.String() + "-" + clean

	if err := store.Put(ctx, storage.RawKey(name), raw); err != nil {
		return nil, fmt.Errorf("failed to store raw table: %w", err)
	}

	var processed bytes.Buffer
	if err := labs.WriteTable(&processed, results); err != nil {
		return nil, fmt.Errorf("failed to write processed table: %w", err)
	}

	if err := store.Put(ctx, storage.ProcessedKey(name), processed.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to store processed table: %w", err)
	}

	upload, err := createUploadDBFn(ctx, db.CreateUploadInput{
		ID:               id,
		Filename:         clean,
		ObjectKey:        storage.RawKey(name),
		SummaryRequested: summarize,
		Results:          results,
	})
	if err != nil {
		return nil, err
	}

	if summarize {
		if err := store.Put(ctx, storage.TriggerKey(name), nil); err != nil {
			return nil, fmt.Errorf("failed to queue summary: %w", err)
		}
	}

	metrics.RecordUpload(source)
	metrics.RecordResults(results)

	logger.Info("Processed table", "upload_id", id, "filename", clean, "rows", len(results), "summarize", summarize)

	return upload, nil
}

func ingestErrorMessage(err error) string {
	switch {
	case errors.Is(err, labs.ErrEmptyTable), errors.Is(err, labs.ErrMissingColumn), errors.Is(err, storage.ErrInvalidName):
		return "Could not read table: " + err.Error()
	default:
		return "Failed to process table"
	}
}

func flashIngestResult(s session.Session, upload *db.Upload, summarize bool) {
	switch {
	case upload.NeedsReviewCount > 0:
		SetWarningFlash(s, fmt.Sprintf("Processed %d rows; %d have units that could not be converted and need review",
			upload.RowCount, upload.NeedsReviewCount))
	case summarize:
		SetSuccessFlash(s, fmt.Sprintf("Processed %d rows; summary queued", upload.RowCount))
	default:
		SetSuccessFlash(s, fmt.Sprintf("Processed %d rows", upload.RowCount))
	}
}

type panelView struct {
	labs.PanelCounts
	Rows  []labs.Result
	Chart htmltemplate.HTML
}

type trendView struct {
	TestName string
	Chart    htmltemplate.HTML
}

// ViewUpload shows the enriched table, panel breakdown and charts.
func ViewUpload(c flamego.Context, t template.Template, data template.Data) {
	ctx := c.Request().Context()

	upload, ok := loadUpload(ctx, c)
	if !ok {
		return
	}

	results, err := listResultsDBFn(ctx, upload.ID)
	if err != nil {
		logger.Error("Error listing results", "upload_id", upload.ID, "error", err)
		c.ResponseWriter().WriteHeader(http.StatusInternalServerError)

		return
	}

	summary := labs.Aggregate(results)

	byPanel := make(map[string][]labs.Result)
	nameCounts := make(map[string]int)
	for _, r := range results {
		category := r.PanelCategory
		if strings.TrimSpace(category) == "" {
			category = labs.UncategorizedPanel
		}

		byPanel[category] = append(byPanel[category], r)
		nameCounts[r.CanonicalTestName]++
	}

	panels := make([]panelView, 0, len(summary.Categories()))
	for _, pc := range summary.Panels() {
		view := panelView{PanelCounts: pc, Rows: byPanel[pc.Category]}
		view.Chart = chartHTML(charts.PanelValues(pc.Category, view.Rows))
		panels = append(panels, view)
	}

	var trends []trendView
	seen := make(map[string]bool)
	for _, r := range results {
		name := r.CanonicalTestName
		if nameCounts[name] < 2 || seen[name] {
			continue
		}

		seen[name] = true
		trends = append(trends, trendView{TestName: name, Chart: chartHTML(charts.TestTrend(name, results))})
	}

	data["Upload"] = upload
	data["Counts"] = labs.Tally(results)
	data["Panels"] = panels
	data["Trends"] = trends
	data["StatusChart"] = chartHTML(charts.StatusBreakdown(summary))
	data["PanelChart"] = chartHTML(charts.PanelStatuses(summary))

	if s, err := getSummaryDBFn(ctx, upload.ID); err == nil {
		data["Summary"] = s
	} else if !errors.Is(err, db.ErrSummaryNotFound) {
		logger.Error("Error loading summary", "upload_id", upload.ID, "error", err)
	}

	t.HTML(http.StatusOK, "upload")
}

// RequestSummary queues a summary for an existing upload.
func RequestSummary(c flamego.Context, s session.Session, store storage.Store) {
	ctx := c.Request().Context()

	upload, ok := loadUpload(ctx, c)
	if !ok {
		return
	}

	back := "/uploads/" + upload.ID.String()

	if err := store.Put(ctx, storage.TriggerKey(objectName(upload)), nil); err != nil {
		logger.Error("Error queueing summary", "upload_id", upload.ID, "error", err)
		SetErrorFlash(s, "Failed to queue summary")
		c.Redirect(back, http.StatusSeeOther)

		return
	}

	if err := setSummaryRequestedDBFn(ctx, upload.ID); err != nil {
		logger.Error("Error marking summary requested", "upload_id", upload.ID, "error", err)
	}

	SetInfoFlash(s, "Summary queued")
	c.Redirect(back, http.StatusSeeOther)
}

type summaryStatus struct {
	Status   string `json:"status"`
	Summary  string `json:"summary,omitempty"`
	Model    string `json:"model,omitempty"`
	ChartURL string `json:"chart_url,omitempty"`
}

// Summary states reported to the polling page.
const (
	SummaryNotRequested = "not_requested"
	SummaryPending      = "pending"
	SummaryReady        = "ready"
)

// SummaryStatus reports whether the summary is ready. A summary the worker
// left in storage without a database row is picked up and saved here.
func SummaryStatus(c flamego.Context, store storage.Store) {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeJSONError(c, http.StatusBadRequest, errInvalidID.Error())
		return
	}

	upload, err := getUploadDBFn(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrUploadNotFound) {
			writeJSONError(c, http.StatusNotFound, err.Error())
			return
		}

		logger.Error("Error loading upload", "upload_id", id, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "failed to load upload")

		return
	}

	s, err := getSummaryDBFn(ctx, upload.ID)
	if err == nil {
		writeJSON(c, readySummary(s))
		return
	}

	if !errors.Is(err, db.ErrSummaryNotFound) {
		logger.Error("Error loading summary", "upload_id", upload.ID, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "failed to load summary")

		return
	}

	if !upload.SummaryRequested {
		writeJSON(c, summaryStatus{Status: SummaryNotRequested})
		return
	}

	s, err = adoptStoredSummary(ctx, store, upload)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("Failed to adopt stored summary", "upload_id", upload.ID, "error", err)
		}

		writeJSON(c, summaryStatus{Status: SummaryPending})

		return
	}

	writeJSON(c, readySummary(s))
}

func readySummary(s *db.Summary) summaryStatus {
	status := summaryStatus{Status: SummaryReady, Summary: s.Text, Model: s.Model}
	if len(s.ChartPNG) > 0 {
		status.ChartURL = "/uploads/" + s.UploadID.String() + "/chart.png"
	}

	return status
}

func adoptStoredSummary(ctx context.Context, store storage.Store, upload *db.Upload) (*db.Summary, error) {
	text, err := store.Get(ctx, storage.SummaryKey(objectName(upload)))
	if err != nil {
		return nil, err
	}

	results, err := listResultsDBFn(ctx, upload.ID)
	if err != nil {
		return nil, err
	}

	png, err := charts.ResultsPNG(upload.Filename, results)
	if err != nil && !errors.Is(err, charts.ErrNoChartData) {
		return nil, err
	}

	s := &db.Summary{UploadID: upload.ID, Text: string(text), ChartPNG: png}
	if err := saveSummaryDBFn(ctx, *s); err != nil {
		return nil, err
	}

	return s, nil
}

// SummaryChart serves the PNG stored with a summary.
func SummaryChart(c flamego.Context) {
	ctx := c.Request().Context()

	upload, ok := loadUpload(ctx, c)
	if !ok {
		return
	}

	s, err := getSummaryDBFn(ctx, upload.ID)
	if err != nil || len(s.ChartPNG) == 0 {
		c.ResponseWriter().WriteHeader(http.StatusNotFound)
		return
	}

	c.ResponseWriter().Header().Set("Content-Type", "image/png")

	if _, err := c.ResponseWriter().Write(s.ChartPNG); err != nil {
		logger.Warn("Failed to write chart", "upload_id", upload.ID, "error", err)
	}
}

// DownloadProcessed serves the enriched CSV from object storage.
func DownloadProcessed(c flamego.Context, store storage.Store) {
	ctx := c.Request().Context()

	upload, ok := loadUpload(ctx, c)
	if !ok {
		return
	}

	body, err := store.Get(ctx, storage.ProcessedKey(objectName(upload)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.ResponseWriter().WriteHeader(http.StatusNotFound)
			return
		}

		logger.Error("Error downloading processed table", "upload_id", upload.ID, "error", err)
		c.ResponseWriter().WriteHeader(http.StatusBadGateway)

		return
	}

	header := c.ResponseWriter().Header()
	header.Set("Content-Type", "text/csv; charset=utf-8")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "processed-"+upload.Filename))

	if _, err := c.ResponseWriter().Write(body); err != nil {
		logger.Warn("Failed to write processed table", "upload_id", upload.ID, "error", err)
	}
}

// loadUpload resolves the {id} parameter, writing 400/404/500 itself.
func loadUpload(ctx context.Context, c flamego.Context) (*db.Upload, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.ResponseWriter().WriteHeader(http.StatusBadRequest)
		return nil, false
	}

	upload, err := getUploadDBFn(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrUploadNotFound) {
			c.ResponseWriter().WriteHeader(http.StatusNotFound)
			return nil, false
		}

		logger.Error("Error loading upload", "upload_id", id, "error", err)
		c.ResponseWriter().WriteHeader(http.StatusInternalServerError)

		return nil, false
	}

	return upload, true
}

// objectName is the storage name shared by an upload's objects.
func objectName(upload *db.Upload) string {
	return strings.TrimPrefix(upload.ObjectKey, storage.RawPrefix)
}

func chartHTML(html string, err error) htmltemplate.HTML {
	if err != nil {
		if !errors.Is(err, charts.ErrNoChartData) {
			logger.Warn("Failed to render chart", "error", err)
		}

		return ""
	}

	// charts re-escapes the option literal, so uploaded names stay inert.
	return htmltemplate.HTML(html) //nolint:gosec
}
