// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package labs

import "testing"

func TestParseReferenceRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want ReferenceRule
	}{
		{"13.0-17.0", Interval(13.0, 17.0)},
		{" 13.0 - 17.0 ", Interval(13.0, 17.0)},
		{"150-450", Interval(150, 450)},
		{"< 200.0", UpperBound(200.0)},
		{"<200", UpperBound(200)},
		{"<= 200", UpperBound(200)},
		{"≤ 5.7", UpperBound(5.7)},
		{"200 <", UpperBound(200)},
		{"> 40.0", LowerBound(40.0)},
		{">=40", LowerBound(40)},
		{"≥ 60", LowerBound(60)},
		{"< -1.5", UpperBound(-1.5)},
		{"-5--2", Interval(-5, -2)},
		{"-5-2", Interval(-5, 2)},
		{"-5 - -2", Interval(-5, -2)},
		{"5--2", Interval(-2, 5)},
		{"17-13", Interval(13, 17)},
		{".5-1.5", Interval(0.5, 1.5)},
		{"not-a-range", Unrecognized()},
		{"", Unrecognized()},
		{"   ", Unrecognized()},
		{"normal", Unrecognized()},
		{"< abc", Unrecognized()},
		{"> ", Unrecognized()},
		{"1-2-3", Unrecognized()},
		{"5-", Unrecognized()},
		{"-", Unrecognized()},
		{"< NaN", Unrecognized()},
		{"> Inf", Unrecognized()},
		{"<>", Unrecognized()},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			got := ParseReferenceRange(tt.raw)
			if got != tt.want {
				t.Fatalf("ParseReferenceRange(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestReferenceRuleBounds(t *testing.T) {
	t.Parallel()

	lower, upper := Interval(1, 2).Bounds()
	if lower == nil || upper == nil || *lower != 1 || *upper != 2 {
		t.Fatalf("unexpected interval bounds %v %v", lower, upper)
	}

	lower, upper = UpperBound(200).Bounds()
	if lower != nil || upper == nil || *upper != 200 {
		t.Fatalf("unexpected upper bound bounds %v %v", lower, upper)
	}

	lower, upper = LowerBound(40).Bounds()
	if lower == nil || upper != nil || *lower != 40 {
		t.Fatalf("unexpected lower bound bounds %v %v", lower, upper)
	}

	lower, upper = Unrecognized().Bounds()
	if lower != nil || upper != nil {
		t.Fatalf("expected no bounds for unrecognized rule")
	}
}

func TestReferenceRuleScale(t *testing.T) {
	t.Parallel()

	double := func(v float64) float64 { return v * 2 }

	if got := Interval(1, 3).Scale(double); got != Interval(2, 6) {
		t.Fatalf("unexpected scaled interval %+v", got)
	}

	if got := UpperBound(5).Scale(double); got != UpperBound(10) {
		t.Fatalf("unexpected scaled upper bound %+v", got)
	}

	if got := Unrecognized().Scale(double); got.Recognized() {
		t.Fatalf("scaling must keep unrecognized rules unrecognized")
	}
}

func TestReferenceRuleString(t *testing.T) {
	t.Parallel()

	cases := map[string]ReferenceRule{
		"13 - 17.5": Interval(13, 17.5),
		"< 200":     UpperBound(200),
		"> 40":      LowerBound(40),
		"":          Unrecognized(),
	}

	for want, rule := range cases {
		if got := rule.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}
