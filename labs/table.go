/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ColumnMap names the header of each recognized column.
type ColumnMap struct {
	PanelCategory  string
	TestName       string
	Date           string
	Value          string
	Unit           string
	ReferenceRange string
}

// DefaultColumns returns the column names used by the upload format
func DefaultColumns() ColumnMap {
	return ColumnMap{
		PanelCategory:  "panel_category",
		TestName:       "test_name",
		Date:           "date",
		Value:          "value",
		Unit:           "unit",
		ReferenceRange: "reference_range",
	}
}

// WithDefaults fills empty names from DefaultColumns.
func (m ColumnMap) WithDefaults() ColumnMap {
	d := DefaultColumns()
	if m.PanelCategory == "" {
		m.PanelCategory = d.PanelCategory
	}

	if m.TestName == "" {
		m.TestName = d.TestName
	}

	if m.Date == "" {
		m.Date = d.Date
	}

	if m.Value == "" {
		m.Value = d.Value
	}

	if m.Unit == "" {
		m.Unit = d.Unit
	}

	if m.ReferenceRange == "" {
		m.ReferenceRange = d.ReferenceRange
	}

	return m
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	time.RFC3339,
}

// ParseDate accepts the date layouts seen in lab exports
func ParseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}

	return nil, false
}

// foldHeader normalizes a header the way exported spreadsheets tend to vary:
// surrounding space, case and spaces instead of underscores.
func foldHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

type columnIndex struct {
	panel, test, date, value, unit, reference int
}

func locateColumns(header []string, cols ColumnMap) (columnIndex, error) {
	find := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}

		folded := foldHeader(name)
		for i, h := range header {
			if foldHeader(h) == folded {
				return i
			}
		}

		return -1
	}

	idx := columnIndex{
		panel:     find(cols.PanelCategory),
		test:      find(cols.TestName),
		date:      find(cols.Date),
		value:     find(cols.Value),
		unit:      find(cols.Unit),
		reference: find(cols.ReferenceRange),
	}

	if idx.test < 0 {
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, cols.TestName)
	}

	if idx.value < 0 {
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, cols.Value)
	}

	return idx, nil
}

// ReadTable reads a CSV table. Rows are never dropped: short rows are padded
// and malformed cells surface later as Unknown status. A UTF-8 byte order
// mark on the first header is ignored.
func ReadTable(r io.Reader, cols ColumnMap) ([]Observation, error) {
	cols = cols.WithDefaults()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}

		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx, err := locateColumns(header, cols)
	if err != nil {
		return nil, err
	}

	rows := make([]Observation, 0)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}

		cell := func(i int) string {
			if i < 0 || i >= len(record) {
				return ""
			}

			return strings.TrimSpace(record[i])
		}

		obs := Observation{
			Row:            len(rows) + 1,
			PanelCategory:  cell(idx.panel),
			TestName:       cell(idx.test),
			RawDate:        cell(idx.date),
			Value:          cell(idx.value),
			Unit:           cell(idx.unit),
			ReferenceRange: cell(idx.reference),
		}
		obs.Date, _ = ParseDate(obs.RawDate)

		rows = append(rows, obs)
	}

	return rows, nil
}

// processedHeader is the column order of WriteTable output.
// The raw columns keep the uploaded unit system and the canonical ones the
// converted one.
var processedHeader = []string{
	"panel_category", "test_name", "canonical_test_name", "date",
	"raw_value", "unit", "reference_range",
	"value", "canonical_unit", "canonical_reference_range",
	"status", "needs_review",
}

// WriteTable writes the enriched table as CSV. Invalid values are written
// empty.
func WriteTable(w io.Writer, rows []Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(processedHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range rows {
		value := ""
		if r.ValueValid {
			value = formatNumber(r.NormalizedValue)
		}

		date := r.RawDate
		if r.Date != nil {
			date = r.Date.Format("2006-01-02")
		}

		record := []string{
			r.PanelCategory, r.TestName, r.CanonicalTestName, date,
			r.Value, r.Unit, r.ReferenceRange,
			value, r.CanonicalUnit, r.CanonicalReferenceRange(),
			string(r.Status), strconv.FormatBool(r.NeedsReview),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r.Row, err)
		}
	}

	writer.Flush()

	return writer.Error()
}

// SampleCSV is a small bloodwork export used when no file is uploaded.
const SampleCSV = `panel_category,test_name,date,value,unit,reference_range
CBC,Hemoglobin (HGB),2023-05-15,14.2,g/dL,13.0-17.0
CBC,WBC Count,2023-05-15,6.8,x10^9/L,4.5-11.0
CBC,Platelets,2023-05-15,250,10^3/uL,150-450
Metabolic,Glucose,2023-05-15,5.1,mmol/L,3.9-5.5
Metabolic,Calcium,2023-05-15,2.2,mmol/L,2.2-2.6
Lipid Panel,Cholesterol,2023-05-15,185,mg/dL,< 200.0
Lipid Panel,HDL,2023-05-15,38,mg/dL,> 40.0
Lipid Panel,LDL-C,2023-05-15,110,mg/dL,< 130
Lipid Panel,Triglycerides,2023-05-15,120,mg/dL,< 150
Thyroid,TSH,2023-05-15,2.1,mIU/L,0.4-4.0
Thyroid,FT4,2023-05-15,16,pmol/L,12-22
`
