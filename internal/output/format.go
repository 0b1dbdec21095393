package output

import (
	"fmt"
	"math"

	"github.com/blackwell-systems/tokentriage/internal/engine"
)

// FormatRatio renders a token ratio as "N:1". The unbounded sentinel
// renders as "∞:1"; it is a display state, never an error.
func FormatRatio(ratio float64) string {
	if math.IsInf(ratio, 1) || math.IsNaN(ratio) {
		return "∞:1"
	}
	if ratio == math.Trunc(ratio) {
		return fmt.Sprintf("%.0f:1", ratio)
	}
	return fmt.Sprintf("%.1f:1", ratio)
}

// FormatCurrency renders a dollar amount. Sub-cent values keep four
// decimals so per-call costs stay legible.
func FormatCurrency(amount float64) string {
	if amount != 0 && math.Abs(amount) < 0.01 {
		return fmt.Sprintf("$%.4f", amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}

// FormatPercent renders a percentage with one decimal.
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// FormatTokens renders a token count, compacting large values.
func FormatTokens(tokens float64) string {
	switch {
	case math.Abs(tokens) >= 1_000_000:
		return fmt.Sprintf("%.1fM", tokens/1_000_000)
	case math.Abs(tokens) >= 10_000:
		return fmt.Sprintf("%.1fk", tokens/1_000)
	default:
		return fmt.Sprintf("%.0f", tokens)
	}
}

// SeverityBadge renders a severity as a styled, upper-case tag.
func SeverityBadge(s engine.Severity) string {
	switch s {
	case engine.SeverityCritical:
		return StyleCritical.Render("CRITICAL")
	case engine.SeverityWarning:
		return StyleWarning.Render("WARNING")
	case engine.SeverityInfo:
		return StyleInfo.Render("INFO")
	default:
		return StyleOK.Render("OK")
	}
}

// FormatChange renders a signed percentage delta, styled by direction;
// lowerIsBetter flips which direction reads as an improvement.
func FormatChange(pct float64, lowerIsBetter bool) string {
	if pct == 0 {
		return StyleMuted.Render("±0%")
	}
	text := fmt.Sprintf("%+.0f%%", pct)
	improved := (pct < 0) == lowerIsBetter
	if improved {
		return StyleOK.Render(text)
	}
	return StyleCritical.Render(text)
}
