/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RuleKind tags the shape of a ReferenceRule.
type RuleKind int

// RuleKind values for the supported reference range shapes.
const (
	RuleUnrecognized RuleKind = iota
	RuleInterval
	RuleUpperBound
	RuleLowerBound
)

func (k RuleKind) String() string {
	switch k {
	case RuleInterval:
		return "Interval"
	case RuleUpperBound:
		return "UpperBound"
	case RuleLowerBound:
		return "LowerBound"
	default:
		return "Unrecognized"
	}
}

// ReferenceRule is a parsed reference range. Interval uses Lower and Upper,
// UpperBound uses Upper, LowerBound uses Lower.
type ReferenceRule struct {
	Kind  RuleKind
	Lower float64
	Upper float64
}

// Interval returns an inclusive [lower, upper] rule. The bounds are swapped
// when given in descending order.
func Interval(lower, upper float64) ReferenceRule {
	if lower > upper {
		lower, upper = upper, lower
	}

	return ReferenceRule{Kind: RuleInterval, Lower: lower, Upper: upper}
}

// UpperBound returns a "< threshold" rule
func UpperBound(threshold float64) ReferenceRule {
	return ReferenceRule{Kind: RuleUpperBound, Upper: threshold}
}

// LowerBound returns a "> threshold" rule
func LowerBound(threshold float64) ReferenceRule {
	return ReferenceRule{Kind: RuleLowerBound, Lower: threshold}
}

// Unrecognized returns the rule used for anything that could not be parsed.
func Unrecognized() ReferenceRule {
	return ReferenceRule{Kind: RuleUnrecognized}
}

// Recognized reports whether the rule carries usable bounds.
func (r ReferenceRule) Recognized() bool {
	return r.Kind != RuleUnrecognized
}

// Bounds returns the lower and upper limits, nil where the rule has none.
func (r ReferenceRule) Bounds() (lower, upper *float64) {
	switch r.Kind {
	case RuleInterval:
		l, u := r.Lower, r.Upper
		return &l, &u
	case RuleUpperBound:
		u := r.Upper
		return nil, &u
	case RuleLowerBound:
		l := r.Lower
		return &l, nil
	default:
		return nil, nil
	}
}

// Scale applies a unit conversion to the rule thresholds
func (r ReferenceRule) Scale(convert func(float64) float64) ReferenceRule {
	switch r.Kind {
	case RuleInterval:
		return Interval(convert(r.Lower), convert(r.Upper))
	case RuleUpperBound:
		return UpperBound(convert(r.Upper))
	case RuleLowerBound:
		return LowerBound(convert(r.Lower))
	default:
		return r
	}
}

func (r ReferenceRule) String() string {
	switch r.Kind {
	case RuleInterval:
		return fmt.Sprintf("%s - %s", formatNumber(r.Lower), formatNumber(r.Upper))
	case RuleUpperBound:
		return "< " + formatNumber(r.Upper)
	case RuleLowerBound:
		return "> " + formatNumber(r.Lower)
	default:
		return ""
	}
}

const numberPattern = `-?(?:\d+(?:\.\d*)?|\.\d+)`

// intervalRe matches exactly two numeric tokens separated by a hyphen. Each
// token may carry its own leading minus, so "-5--2" splits as -5 and -2.
var intervalRe = regexp.MustCompile(`^(` + numberPattern + `)\s*-\s*(` + numberPattern + `)$`)

// ParseReferenceRange turns a reference range string into a rule. Malformed
// input always yields an Unrecognized rule.
func ParseReferenceRange(raw string) ReferenceRule {
	s := strings.TrimSpace(raw)

	switch {
	case strings.ContainsAny(s, "<≤"):
		if threshold, ok := parseThreshold(s, "<", "≤"); ok {
			return UpperBound(threshold)
		}

		return Unrecognized()
	case strings.ContainsAny(s, ">≥"):
		if threshold, ok := parseThreshold(s, ">", "≥"); ok {
			return LowerBound(threshold)
		}

		return Unrecognized()
	case strings.Contains(s, "-"):
		m := intervalRe.FindStringSubmatch(s)
		if m == nil {
			return Unrecognized()
		}

		lower, ok := parseNumber(m[1])
		if !ok {
			return Unrecognized()
		}

		upper, ok := parseNumber(m[2])
		if !ok {
			return Unrecognized()
		}

		return Interval(math.Min(lower, upper), math.Max(lower, upper))
	default:
		return Unrecognized()
	}
}

// parseThreshold strips the comparison symbols (and an inclusive "=" suffix)
// and parses what remains.
func parseThreshold(s string, symbols ...string) (float64, bool) {
	for _, sym := range symbols {
		s = strings.ReplaceAll(s, sym, "")
	}

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "=")

	return parseNumber(strings.TrimSpace(s))
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
