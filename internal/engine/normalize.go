package engine

import (
	"encoding/json"
	"math"

	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Breakdown splits a call's input tokens into components with each
// component's share of the total. Percentages are 0 when the total is 0.
type Breakdown struct {
	SystemTokens     int64 `json:"system_tokens"`
	UserTokens       int64 `json:"user_tokens"`
	HistoryTokens    int64 `json:"history_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`

	SystemPercent  float64 `json:"system_percent"`
	UserPercent    float64 `json:"user_percent"`
	HistoryPercent float64 `json:"history_percent"`
}

// CostSplit divides a call's total cost between input and output.
type CostSplit struct {
	InputCost        float64 `json:"input_cost"`
	OutputCost       float64 `json:"output_cost"`
	InputCostPercent float64 `json:"input_cost_percent"`
}

// Metrics is the fully-populated, canonical metric set for one call.
// Every downstream component assumes complete, non-null numeric inputs;
// all default-substitution for missing telemetry fields happens here and
// only here.
type Metrics struct {
	// Ratio is prompt tokens divided by completion tokens. A call with
	// zero completion tokens carries +Inf, the unbounded sentinel.
	Ratio float64

	Breakdown Breakdown
	Cost      CostSplit
}

// RatioUnbounded reports whether the call produced no completion tokens.
func (m Metrics) RatioUnbounded() bool {
	return math.IsInf(m.Ratio, 1)
}

// MarshalJSON encodes the metrics with an unbounded ratio carried as a
// null ratio plus an explicit flag, since +Inf is not representable in
// JSON.
func (m Metrics) MarshalJSON() ([]byte, error) {
	var ratio *float64
	if !m.RatioUnbounded() {
		r := m.Ratio
		ratio = &r
	}
	return json.Marshal(struct {
		Ratio          *float64  `json:"ratio"`
		RatioUnbounded bool      `json:"ratio_unbounded"`
		Breakdown      Breakdown `json:"breakdown"`
		Cost           CostSplit `json:"cost_split"`
	}{
		Ratio:          ratio,
		RatioUnbounded: m.RatioUnbounded(),
		Breakdown:      m.Breakdown,
		Cost:           m.Cost,
	})
}

// Normalize converts a raw call record into the canonical metric set.
// It never fails: missing counters are zero, and a zero denominator
// yields either a 0% share or the unbounded ratio sentinel.
func Normalize(rec telemetry.CallRecord) Metrics {
	var m Metrics

	if rec.CompletionTokens > 0 {
		m.Ratio = float64(rec.PromptTokens) / float64(rec.CompletionTokens)
	} else {
		m.Ratio = math.Inf(1)
	}

	// Percentages are computed against the explicit sub-counts when they
	// are populated, otherwise against the raw prompt token count.
	total := rec.InputTokens()
	m.Breakdown = Breakdown{
		SystemTokens:     rec.SystemPromptTokens,
		UserTokens:       rec.UserMessageTokens,
		HistoryTokens:    rec.ChatHistoryTokens,
		TotalTokens:      total,
		CompletionTokens: rec.CompletionTokens,
	}
	if total > 0 {
		m.Breakdown.SystemPercent = float64(rec.SystemPromptTokens) / float64(total) * 100
		m.Breakdown.UserPercent = float64(rec.UserMessageTokens) / float64(total) * 100
		m.Breakdown.HistoryPercent = float64(rec.ChatHistoryTokens) / float64(total) * 100
	}

	m.Cost = splitCost(rec)
	return m
}

// splitCost divides total cost between input and output. Explicit
// per-component costs win; otherwise the input share is estimated
// proportionally from token counts. Output pricing typically runs several
// times input pricing, so the proportional estimate weights completion
// tokens accordingly.
func splitCost(rec telemetry.CallRecord) CostSplit {
	var split CostSplit

	switch {
	case rec.PromptCost != nil:
		split.InputCost = *rec.PromptCost
		if rec.CompletionCost != nil {
			split.OutputCost = *rec.CompletionCost
		} else {
			split.OutputCost = rec.TotalCost - split.InputCost
		}
	case rec.CompletionCost != nil:
		split.OutputCost = *rec.CompletionCost
		split.InputCost = rec.TotalCost - split.OutputCost
	default:
		// Estimate from token share. Completion tokens are weighted at
		// the common 5x output/input price multiple.
		const outputWeight = 5.0
		in := float64(rec.PromptTokens)
		out := float64(rec.CompletionTokens) * outputWeight
		if in+out > 0 {
			split.InputCost = rec.TotalCost * in / (in + out)
		}
		split.OutputCost = rec.TotalCost - split.InputCost
	}

	if split.InputCost < 0 {
		split.InputCost = 0
	}
	if split.OutputCost < 0 {
		split.OutputCost = 0
	}

	total := split.InputCost + split.OutputCost
	if total > 0 {
		split.InputCostPercent = split.InputCost / total * 100
	}
	return split
}
