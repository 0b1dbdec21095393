package output

import (
	"math"
	"testing"
)

func TestFormatRatio(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"whole", 30, "30:1"},
		{"fractional", 7.25, "7.2:1"},
		{"unbounded", math.Inf(1), "∞:1"},
		{"nan", math.NaN(), "∞:1"},
		{"balanced", 1, "1:1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatRatio(tc.ratio); got != tc.want {
				t.Errorf("FormatRatio(%v) = %q, want %q", tc.ratio, got, tc.want)
			}
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "$0.00"},
		{0.12, "$0.12"},
		{0.0034, "$0.0034"},
		{12.5, "$12.50"},
	}
	for _, tc := range tests {
		if got := FormatCurrency(tc.amount); got != tc.want {
			t.Errorf("FormatCurrency(%v) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		tokens float64
		want   string
	}{
		{300, "300"},
		{9000, "9000"},
		{45000, "45.0k"},
		{2_500_000, "2.5M"},
	}
	for _, tc := range tests {
		if got := FormatTokens(tc.tokens); got != tc.want {
			t.Errorf("FormatTokens(%v) = %q, want %q", tc.tokens, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(66.666); got != "66.7%" {
		t.Errorf("FormatPercent = %q", got)
	}
}

func TestFormatChange(t *testing.T) {
	SetNoColor(true)

	if got := FormatChange(-40, true); got != "-40%" {
		t.Errorf("FormatChange(-40, lower better) = %q", got)
	}
	if got := FormatChange(50, false); got != "+50%" {
		t.Errorf("FormatChange(+50, higher better) = %q", got)
	}
	if got := FormatChange(0, true); got != "±0%" {
		t.Errorf("FormatChange(0) = %q", got)
	}
}

func TestHealthBar_Bounds(t *testing.T) {
	SetNoColor(true)

	full := HealthBar(100, 10)
	if full != "██████████ 100/100" {
		t.Errorf("HealthBar(100) = %q", full)
	}
	empty := HealthBar(0, 10)
	if empty != "░░░░░░░░░░ 0/100" {
		t.Errorf("HealthBar(0) = %q", empty)
	}
}
