package story

import (
	"math"

	"github.com/blackwell-systems/tokentriage/internal/engine"
)

// projectedRatio recomputes the token ratio for projected prompt and
// completion counts, keeping the unbounded sentinel for zero output.
func projectedRatio(promptTokens, completionTokens float64) float64 {
	if completionTokens <= 0 {
		return math.Inf(1)
	}
	return promptTokens / completionTokens
}

// ratioDelta builds the leading "Ratio" metric row of a fix.
func ratioDelta(before, after float64) engine.FixMetric {
	return engine.FixMetric{
		Label:         "Ratio",
		Before:        before,
		After:         after,
		ChangePercent: engine.ChangePercent(before, after),
	}
}

// tokenDelta builds a token-count metric row.
func tokenDelta(label string, before, after float64) engine.FixMetric {
	return engine.FixMetric{
		Label:         label,
		Before:        before,
		After:         after,
		ChangePercent: engine.ChangePercent(before, after),
	}
}

// costDelta builds a cost metric row. Cost projections scale the input
// side of the split by the input token reduction.
func costDelta(before, after float64) engine.FixMetric {
	return engine.FixMetric{
		Label:         "Cost per call",
		Before:        before,
		After:         after,
		ChangePercent: engine.ChangePercent(before, after),
	}
}

// scaledInputCost projects the call cost after shrinking input tokens
// from oldTokens to newTokens, leaving the output cost untouched.
func scaledInputCost(m engine.Metrics, oldTokens, newTokens float64) float64 {
	if oldTokens <= 0 {
		return m.Cost.InputCost + m.Cost.OutputCost
	}
	return m.Cost.InputCost*(newTokens/oldTokens) + m.Cost.OutputCost
}
