/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import "math"

// Status is the outcome of comparing a value with its reference range.
type Status string

// Status values
const (
	StatusNormal     Status = "Normal"
	StatusAboveRange Status = "AboveRange"
	StatusBelowRange Status = "BelowRange"
	StatusUnknown    Status = "Unknown"
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusNormal, StatusAboveRange, StatusBelowRange, StatusUnknown}
}

// Label returns a human readable form of the status
func (s Status) Label() string {
	switch s {
	case StatusAboveRange:
		return "Above range"
	case StatusBelowRange:
		return "Below range"
	case StatusNormal:
		return "Normal"
	default:
		return "Unknown"
	}
}

// IsAbnormal reports whether the value fell outside its reference range.
func (s Status) IsAbnormal() bool {
	return s == StatusAboveRange || s == StatusBelowRange
}

// Classify compares value against rule. Bounds are inclusive. NaN or infinite
// values and unrecognized rules are Unknown.
func Classify(value float64, rule ReferenceRule) Status {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return StatusUnknown
	}

	switch rule.Kind {
	case RuleInterval:
		if value < rule.Lower {
			return StatusBelowRange
		}

		if value > rule.Upper {
			return StatusAboveRange
		}

		return StatusNormal
	case RuleUpperBound:
		if value > rule.Upper {
			return StatusAboveRange
		}

		return StatusNormal
	case RuleLowerBound:
		if value < rule.Lower {
			return StatusBelowRange
		}

		return StatusNormal
	default:
		return StatusUnknown
	}
}
