/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package labs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Conversion rescales a value of Test reported in a unit containing FromUnit
// to the target unit containing ToUnit. Divide selects value/Factor instead of
// value*Factor. A Factor of 1 is an explicit identity rule that only relabels.
type Conversion struct {
	Test     string  `yaml:"test"`
	FromUnit string  `yaml:"from"`
	ToUnit   string  `yaml:"to"`
	Factor   float64 `yaml:"factor"`
	Divide   bool    `yaml:"divide,omitempty"`
}

// Apply converts v
func (c Conversion) Apply(v float64) float64 {
	if c.Divide {
		return v / c.Factor
	}

	return v * c.Factor
}

// Vocabulary holds the static name and unit mapping tables.
type Vocabulary struct {
	// Aliases maps raw test names (matched upper-cased) to canonical names.
	Aliases map[string]string `yaml:"aliases"`
	// TargetUnits maps canonical test names to their canonical unit.
	TargetUnits map[string]string `yaml:"target_units"`
	// Conversions are tried in order; the first match wins.
	Conversions []Conversion `yaml:"conversions"`
}

// DefaultVocabulary returns the built-in bloodwork vocabulary
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Aliases: map[string]string{
			"WHITE BLOOD CELL COUNT":           "WBC",
			"WHITE BLOOD CELL COUNT (WBC)":     "WBC",
			"WBC COUNT":                        "WBC",
			"WHITE BLOOD CELLS":                "WBC",
			"RED BLOOD CELL COUNT":             "RBC",
			"RED BLOOD CELL COUNT (RBC)":       "RBC",
			"RBC COUNT":                        "RBC",
			"RED BLOOD CELLS":                  "RBC",
			"HEMOGLOBIN":                       "Hemoglobin",
			"HEMOGLOBIN (HGB)":                 "Hemoglobin",
			"HGB":                              "Hemoglobin",
			"HAEMOGLOBIN":                      "Hemoglobin",
			"GLUCOSE":                          "Glucose",
			"GLUCOSE FASTING FBS":              "Glucose",
			"CALCIUM":                          "Calcium",
			"SODIUM":                           "Sodium",
			"POTASSIUM":                        "Potassium",
			"TOTAL CHOLESTEROL":                "Total Cholesterol",
			"CHOLESTEROL":                      "Total Cholesterol",
			"LDL CHOLESTEROL":                  "LDL Cholesterol",
			"LDL-C":                            "LDL Cholesterol",
			"LDL":                              "LDL Cholesterol",
			"HDL CHOLESTEROL":                  "HDL Cholesterol",
			"HDL-C":                            "HDL Cholesterol",
			"HDL":                              "HDL Cholesterol",
			"TSH (THYROID STIMULATING HORMONE)": "TSH",
			"THYROID STIMULATING HORMONE":      "TSH",
			"TSH":                              "TSH",
			"FREE T4":                          "Free T4",
			"T4, FREE":                         "Free T4",
			"FT4":                              "Free T4",
		},
		TargetUnits: map[string]string{
			"WBC":               "10^3/uL",
			"RBC":               "10^6/uL",
			"Hemoglobin":        "g/dL",
			"Glucose":           "mg/dL",
			"Calcium":           "mg/dL",
			"Sodium":            "mmol/L",
			"Total Cholesterol": "mg/dL",
			"LDL Cholesterol":   "mg/dL",
			"HDL Cholesterol":   "mg/dL",
			"TSH":               "mIU/L",
			"Free T4":           "ng/dL",
		},
		Conversions: []Conversion{
			{Test: "WBC", FromUnit: "10^9/L", ToUnit: "10^3/uL", Factor: 1},
			{Test: "RBC", FromUnit: "10^12/L", ToUnit: "10^6/uL", Factor: 1},
			{Test: "Glucose", FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 18.0},
			{Test: "Calcium", FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 4.0},
			{Test: "Free T4", FromUnit: "pmol/L", ToUnit: "ng/dL", Factor: 12.87, Divide: true},
			{Test: "TSH", FromUnit: "uIU/mL", ToUnit: "mIU/L", Factor: 1},
		},
	}
}

// LoadVocabulary reads a YAML vocabulary file. Tables present in the file
// replace the corresponding built-in table; absent tables keep the defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	return ParseVocabulary(data)
}

// ParseVocabulary decodes a YAML vocabulary document over the defaults.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var file Vocabulary
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Vocabulary{}, fmt.Errorf("failed to parse vocabulary: %w", err)
	}

	vocab := DefaultVocabulary()
	if file.Aliases != nil {
		vocab.Aliases = file.Aliases
	}

	if file.TargetUnits != nil {
		vocab.TargetUnits = file.TargetUnits
	}

	if file.Conversions != nil {
		vocab.Conversions = file.Conversions
	}

	if err := vocab.Validate(); err != nil {
		return Vocabulary{}, err
	}

	return vocab, nil
}

// Validate checks that conversion rules are usable
func (v Vocabulary) Validate() error {
	for i, c := range v.Conversions {
		if strings.TrimSpace(c.Test) == "" {
			return fmt.Errorf("conversion %d: %w", i, ErrConversionMissingTest)
		}

		if c.Factor == 0 {
			return fmt.Errorf("conversion %d (%s): %w", i, c.Test, ErrConversionZeroFactor)
		}
	}

	return nil
}
