/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import (
	"fmt"
	"strings"
)

// SummaryLine formats one row for the summary prompt. Value, unit and range
// are all in the canonical unit
func SummaryLine(r Result) string {
	value := r.Value
	if r.ValueValid {
		value = formatNumber(r.NormalizedValue)
	}

	return fmt.Sprintf("%s: %s %s (Reference Range: %s)", r.CanonicalTestName, value, r.CanonicalUnit, r.CanonicalReferenceRange())
}

// SummaryLines joins SummaryLine for every row with newlines
func SummaryLines(rows []Result) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, SummaryLine(r))
	}

	return strings.Join(lines, "\n")
}

// BuildSummaryPrompt wraps the row lines in the assistant instructions.
func BuildSummaryPrompt(rows []Result) string {
	var sb strings.Builder

	sb.WriteString("You are a health assistant. Given this blood test data, do the following:\n\n")
	sb.WriteString("1. Summarize the test panel\n")
	sb.WriteString("2. Identify any abnormal values. For each test:\n")
	sb.WriteString("   - Use the reference range for comparison\n")
	sb.WriteString("   - If the reference range is a range (e.g., 13.0 - 17.0), check if the value is inside it.\n")
	sb.WriteString("   - If the reference range is a bound (e.g., < 200 or > 40), compare accordingly.\n")
	sb.WriteString("3. For each abnormal value, suggest one evidence-based dietary change.\n")
	sb.WriteString("4. Clearly separate \"Abnormal Results\" and \"Normal Results\" in your response.\n\n")
	sb.WriteString("Here is the data:\n\n")
	sb.WriteString(SummaryLines(rows))
	sb.WriteString("\n")

	return sb.String()
}
