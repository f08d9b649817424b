/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import "strings"

// UncategorizedPanel groups rows that carry no panel category.
const UncategorizedPanel = "Uncategorized"

// PanelCounts holds per-status counts for one panel
type PanelCounts struct {
	Category string
	Counts   map[Status]int
}

// Total returns the number of rows in the panel
func (p PanelCounts) Total() int {
	total := 0
	for _, c := range p.Counts {
		total += c
	}

	return total
}

// Abnormal returns the number of rows above or below range.
func (p PanelCounts) Abnormal() int {
	return p.Counts[StatusAboveRange] + p.Counts[StatusBelowRange]
}

// PanelSummary is the per-category status distribution of an enriched table.
// Categories keep the order in which they first appear.
type PanelSummary struct {
	order  []string
	counts map[string]map[Status]int
}

// Aggregate counts statuses per panel category
func Aggregate(rows []Result) *PanelSummary {
	ps := &PanelSummary{counts: make(map[string]map[Status]int)}

	for _, r := range rows {
		ps.add(r.PanelCategory, r.Status)
	}

	return ps
}

func (ps *PanelSummary) add(category string, status Status) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = UncategorizedPanel
	}

	counts, ok := ps.counts[category]
	if !ok {
		counts = make(map[Status]int, len(Statuses()))
		ps.counts[category] = counts
		ps.order = append(ps.order, category)
	}

	counts[status]++
}

// Categories returns panel names in first-occurrence order
func (ps *PanelSummary) Categories() []string {
	return append([]string(nil), ps.order...)
}

// Counts returns a copy of the status counts for one category.
func (ps *PanelSummary) Counts(category string) map[Status]int {
	out := make(map[Status]int, len(Statuses()))
	for status, c := range ps.counts[category] {
		out[status] = c
	}

	return out
}

// Panels returns every category with its counts, in order.
func (ps *PanelSummary) Panels() []PanelCounts {
	panels := make([]PanelCounts, 0, len(ps.order))
	for _, category := range ps.order {
		panels = append(panels, PanelCounts{Category: category, Counts: ps.Counts(category)})
	}

	return panels
}

// StatusTotals sums counts across all categories
func (ps *PanelSummary) StatusTotals() map[Status]int {
	totals := make(map[Status]int, len(Statuses()))
	for _, counts := range ps.counts {
		for status, c := range counts {
			totals[status] += c
		}
	}

	return totals
}

// Total returns the number of rows aggregated
func (ps *PanelSummary) Total() int {
	total := 0
	for _, c := range ps.StatusTotals() {
		total += c
	}

	return total
}
