/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import "errors"

// Errors returned by table reading and vocabulary loading. Per-row problems
// are never errors; they surface as Unknown status or NeedsReview.
var (
	ErrEmptyTable            = errors.New("table has no header row")
	ErrMissingColumn         = errors.New("required column missing")
	ErrConversionMissingTest = errors.New("conversion has no test name")
	ErrConversionZeroFactor  = errors.New("conversion factor must be non-zero")
)
