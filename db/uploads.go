/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/humaidq/labinsight/labs"
)

// Upload is one processed table.
type Upload struct {
	ID               uuid.UUID `db:"id"`
	Filename         string    `db:"filename"`
	ObjectKey        string    `db:"object_key"`
	RowCount         int       `db:"row_count"`
	UnknownCount     int       `db:"unknown_count"`
	NeedsReviewCount int       `db:"needs_review_count"`
	AbnormalCount    int       `db:"abnormal_count"`
	SummaryRequested bool      `db:"summary_requested"`
	CreatedAt        time.Time `db:"created_at"`
	HasSummary       bool      `db:"-"`
}

// Summary is the generated text and chart of an upload.
type Summary struct {
	UploadID  uuid.UUID `db:"upload_id"`
	Text      string    `db:"summary_text"`
	ChartPNG  []byte    `db:"chart_png"`
	Model     string    `db:"model"`
	CreatedAt time.Time `db:"created_at"`
}

// CreateUploadInput holds the data for CreateUpload.
type CreateUploadInput struct {
	ID               uuid.UUID
	Filename         string
	ObjectKey        string
	SummaryRequested bool
	Results          []labs.Result
}

var resultColumns = []string{
	"upload_id", "row_number", "panel_category", "test_name", "canonical_test_name",
	"test_date", "raw_date", "raw_value", "value", "unit", "canonical_unit",
	"reference_range", "ref_lower", "ref_upper", "status", "converted", "needs_review",
}

// CreateUpload stores an upload and its enriched rows in one transaction.
func CreateUpload(ctx context.Context, input CreateUploadInput) (*Upload, error) {
	if pool == nil {
		return nil, ErrDatabaseConnectionNotInitialized
	}

	id := input.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	counts := labs.Tally(input.Results)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	upload := &Upload{
		ID:               id,
		Filename:         input.Filename,
		ObjectKey:        input.ObjectKey,
		RowCount:         counts.Rows,
		UnknownCount:     counts.Unknown,
		NeedsReviewCount: counts.NeedsReview,
		AbnormalCount:    counts.Abnormal,
		SummaryRequested: input.SummaryRequested,
	}

	query := `
		INSERT INTO lab_uploads (id, filename, object_key, row_count, unknown_count, needs_review_count, abnormal_count, summary_requested)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err = tx.QueryRow(ctx, query,
		upload.ID, upload.Filename, upload.ObjectKey, upload.RowCount,
		upload.UnknownCount, upload.NeedsReviewCount, upload.AbnormalCount, upload.SummaryRequested,
	).Scan(&upload.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	rows := make([][]any, 0, len(input.Results))
	for _, r := range input.Results {
		rows = append(rows, resultRow(id, r))
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"lab_results"}, resultColumns, pgx.CopyFromRows(rows)); err != nil {
		return nil, fmt.Errorf("failed to store results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit upload: %w", err)
	}

	logger.Info("Stored upload", "upload_id", id, "object_key", upload.ObjectKey, "rows", upload.RowCount)

	return upload, nil
}

func resultRow(uploadID uuid.UUID, r labs.Result) []any {
	var value *float64
	if r.ValueValid {
		v := r.NormalizedValue
		value = &v
	}

	lower, upper := r.Rule.Bounds()

	return []any{
		uploadID, r.Row, r.PanelCategory, r.TestName, r.CanonicalTestName,
		r.Date, r.RawDate, r.Value, value, r.Unit, r.CanonicalUnit,
		r.ReferenceRange, lower, upper, string(r.Status), r.Converted, r.NeedsReview,
	}
}

const uploadColumns = `
	u.id, u.filename, u.object_key, u.row_count, u.unknown_count, u.needs_review_count,
	u.abnormal_count, u.summary_requested, u.created_at,
	EXISTS (SELECT 1 FROM lab_summaries s WHERE s.upload_id = u.id)
`

func scanUpload(row pgx.Row) (*Upload, error) {
	var u Upload

	err := row.Scan(
		&u.ID, &u.Filename, &u.ObjectKey, &u.RowCount, &u.UnknownCount, &u.NeedsReviewCount,
		&u.AbnormalCount, &u.SummaryRequested, &u.CreatedAt, &u.HasSummary,
	)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// GetUpload returns an upload by ID.
func GetUpload(ctx context.Context, id uuid.UUID) (*Upload, error) {
	return getUploadWhere(ctx, "u.id = $1", id)
}

// GetUploadByObjectKey returns the upload whose raw table is stored at key.
func GetUploadByObjectKey(ctx context.Context, key string) (*Upload, error) {
	return getUploadWhere(ctx, "u.object_key = $1", key)
}

func getUploadWhere(ctx context.Context, where string, arg any) (*Upload, error) {
	if pool == nil {
		return nil, ErrDatabaseConnectionNotInitialized
	}

	query := `SELECT ` + uploadColumns + ` FROM lab_uploads u WHERE ` + where

	upload, err := scanUpload(pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUploadNotFound
		}

		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	return upload, nil
}

// ListUploads returns the most recent uploads first.
func ListUploads(ctx context.Context, limit int) ([]Upload, error) {
	if pool == nil {
		return nil, ErrDatabaseConnectionNotInitialized
	}

	query := `SELECT ` + uploadColumns + ` FROM lab_uploads u ORDER BY u.created_at DESC LIMIT $1`

	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}

		uploads = append(uploads, *upload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uploads: %w", err)
	}

	return uploads, nil
}

// ListResults returns the enriched rows of an upload in input order.
func ListResults(ctx context.Context, uploadID uuid.UUID) ([]labs.Result, error) {
	if pool == nil {
		return nil, ErrDatabaseConnectionNotInitialized
	}

	query := `
		SELECT row_number, panel_category, test_name, canonical_test_name, test_date, raw_date,
		       raw_value, value, unit, canonical_unit, reference_range, ref_lower, ref_upper,
		       status, converted, needs_review
		FROM lab_results
		WHERE upload_id = $1
		ORDER BY row_number ASC
	`

	rows, err := pool.Query(ctx, query, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []labs.Result
	for rows.Next() {
		var (
			r            labs.Result
			value        *float64
			lower, upper *float64
			status       string
		)

		err := rows.Scan(
			&r.Row, &r.PanelCategory, &r.TestName, &r.CanonicalTestName, &r.Date, &r.RawDate,
			&r.Value, &value, &r.Unit, &r.CanonicalUnit, &r.ReferenceRange, &lower, &upper,
			&status, &r.Converted, &r.NeedsReview,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		if value != nil {
			r.NormalizedValue = *value
			r.ValueValid = true
		}

		r.Rule = ruleFromBounds(lower, upper)
		r.Status = labs.Status(status)

		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

func ruleFromBounds(lower, upper *float64) labs.ReferenceRule {
	switch {
	case lower != nil && upper != nil:
		return labs.Interval(*lower, *upper)
	case upper != nil:
		return labs.UpperBound(*upper)
	case lower != nil:
		return labs.LowerBound(*lower)
	default:
		return labs.Unrecognized()
	}
}

// SetSummaryRequested marks an upload as queued for summarization.
func SetSummaryRequested(ctx context.Context, id uuid.UUID) error {
	if pool == nil {
		return ErrDatabaseConnectionNotInitialized
	}

	tag, err := pool.Exec(ctx, `UPDATE lab_uploads SET summary_requested = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update upload: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrUploadNotFound
	}

	return nil
}

// SaveSummary stores or replaces the summary of an upload.
func SaveSummary(ctx context.Context, s Summary) error {
	if pool == nil {
		return ErrDatabaseConnectionNotInitialized
	}

	query := `
		INSERT INTO lab_summaries (upload_id, summary_text, chart_png, model)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (upload_id) DO UPDATE
		SET summary_text = EXCLUDED.summary_text,
		    chart_png = EXCLUDED.chart_png,
		    model = EXCLUDED.model,
		    created_at = now()
	`

	if _, err := pool.Exec(ctx, query, s.UploadID, s.Text, s.ChartPNG, s.Model); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	return nil
}

// GetSummary returns the summary of an upload.
func GetSummary(ctx context.Context, uploadID uuid.UUID) (*Summary, error) {
	if pool == nil {
		return nil, ErrDatabaseConnectionNotInitialized
	}

	var s Summary
	query := `
		SELECT upload_id, summary_text, chart_png, model, created_at
		FROM lab_summaries
		WHERE upload_id = $1
	`

	err := pool.QueryRow(ctx, query, uploadID).Scan(&s.UploadID, &s.Text, &s.ChartPNG, &s.Model, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSummaryNotFound
		}

		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return &s, nil
}

// SummaryRecorder persists worker output against the upload that owns a raw
// object key.
type SummaryRecorder struct{}

// RecordSummary saves a summary for the upload stored at objectKey.
func (SummaryRecorder) RecordSummary(ctx context.Context, objectKey, text string, chartPNG []byte, model string) error {
	upload, err := GetUploadByObjectKey(ctx, objectKey)
	if err != nil {
		return err
	}

	return SaveSummary(ctx, Summary{
		UploadID: upload.ID,
		Text:     text,
		ChartPNG: chartPNG,
		Model:    model,
	})
}
