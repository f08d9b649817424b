/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import (
	"math"
	"strings"
)

// Normalized is the canonical form of one measurement
type Normalized struct {
	TestName string
	Value    float64
	// Valid is false when the raw value was not a finite number; Value is
	// then meaningless and must not feed numeric aggregates.
	Valid bool
	Unit  string
	// Conversion is the rule that was applied, nil when none was.
	Conversion *Conversion
	// NeedsReview marks a unit that differs from the target unit with no
	// conversion rule to bridge it. Value and unit are left untouched.
	NeedsReview bool
}

// Normalizer resolves canonical test names and units. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	aliases     map[string]string
	targetUnits map[string]string
	conversions []Conversion
}

// NewNormalizer builds a Normalizer from a vocabulary. The tables are copied;
// later changes to vocab do not affect it.
func NewNormalizer(vocab Vocabulary) *Normalizer {
	n := &Normalizer{
		aliases:     make(map[string]string, len(vocab.Aliases)+len(vocab.TargetUnits)),
		targetUnits: make(map[string]string, len(vocab.TargetUnits)),
		conversions: append([]Conversion(nil), vocab.Conversions...),
	}

	// Canonical names resolve to themselves unless an explicit alias says
	// otherwise, which keeps Normalize a fixed point on its own output.
	for canonical, unit := range vocab.TargetUnits {
		n.targetUnits[canonical] = unit
		n.aliases[nameKey(canonical)] = canonical
	}

	for _, canonical := range vocab.Aliases {
		n.aliases[nameKey(canonical)] = canonical
	}

	for alias, canonical := range vocab.Aliases {
		n.aliases[nameKey(alias)] = canonical
	}

	return n
}

// CanonicalName maps a raw test name to its canonical name. Unknown names are
// returned as given.
func (n *Normalizer) CanonicalName(raw string) string {
	if canonical, ok := n.aliases[nameKey(raw)]; ok {
		return canonical
	}

	return raw
}

// TargetUnit returns the canonical unit registered for a canonical test name
func (n *Normalizer) TargetUnit(canonicalName string) (string, bool) {
	unit, ok := n.targetUnits[canonicalName]
	return unit, ok
}

// Normalize resolves the canonical name, converts value into the target unit
// when a conversion rule exists and rounds the result to two decimals.
func (n *Normalizer) Normalize(testName string, value float64, unit string) Normalized {
	out := n.resolve(testName, unit)

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return out
	}

	out.Valid = true
	out.Value = value

	if out.Conversion != nil {
		out.Value = out.Conversion.Apply(value)
	}

	out.Value = round2(out.Value)

	return out
}

// NormalizeRaw is Normalize for a value that has not been parsed yet.
// Non-numeric input yields an invalid result instead of an error.
func (n *Normalizer) NormalizeRaw(testName, rawValue, unit string) Normalized {
	v, ok := ParseValue(rawValue)
	if !ok {
		return n.resolve(testName, unit)
	}

	return n.Normalize(testName, v, unit)
}

// resolve computes name, unit and conversion without touching the value.
func (n *Normalizer) resolve(testName, unit string) Normalized {
	out := Normalized{
		TestName: n.CanonicalName(testName),
		Unit:     strings.TrimSpace(unit),
	}

	target, ok := n.targetUnits[out.TestName]
	if !ok {
		return out
	}

	if sameUnit(out.Unit, target) {
		out.Unit = target
		return out
	}

	conv := n.findConversion(out.TestName, out.Unit, target)
	if conv == nil {
		out.NeedsReview = true
		return out
	}

	out.Conversion = conv
	out.Unit = target

	return out
}

func (n *Normalizer) findConversion(test, from, to string) *Conversion {
	from = unitKey(from)
	to = unitKey(to)

	for i := range n.conversions {
		c := &n.conversions[i]
		if c.Test != test {
			continue
		}

		if strings.Contains(from, unitKey(c.FromUnit)) && strings.Contains(to, unitKey(c.ToUnit)) {
			return c
		}
	}

	return nil
}

// ParseValue parses a measured magnitude. Only finite numbers are accepted.
func ParseValue(raw string) (float64, bool) {
	return parseNumber(strings.TrimSpace(raw))
}

func nameKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

var unitReplacer = strings.NewReplacer(
	"µ", "u", // micro sign
	"μ", "u", // greek mu
	"×", "x",
	" ", "",
)

// unitKey folds spelling differences that do not change a unit's meaning.
func unitKey(unit string) string {
	return strings.ToLower(unitReplacer.Replace(strings.TrimSpace(unit)))
}

func sameUnit(a, b string) bool {
	return unitKey(a) == unitKey(b)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
