package story

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Cost threshold keys.
const (
	thCostExpensive     = "expensive_call_usd"       // call cost above this is expensive
	thCostVeryExpensive = "very_expensive_call_usd"  // call cost above this is critical
	thCostInputShare    = "cost_input_share_pct"     // input share of cost that flags concentration
	thCostSmallOutput   = "premium_small_output_tok" // completion size below which a premium model is oversized
	thCostDowngradeDiv  = "downgrade_cost_divisor"   // projected cost divisor for a tier downgrade
)

// Cost analyzes per-call spend.
func Cost() engine.StoryConfig {
	return engine.StoryConfig{
		ID:          "cost",
		Title:       "Cost",
		Description: "Detects calls whose spend is out of line with what they produce.",
		Thresholds: engine.Thresholds{
			thCostExpensive:     0.10,
			thCostVeryExpensive: 0.50,
			thCostInputShare:    85,
			thCostSmallOutput:   200,
			thCostDowngradeDiv:  5,
		},
		Bands: [][]string{
			{thCostVeryExpensive, thCostExpensive},
		},
		Rules: []engine.Rule{
			{ID: "expensive_call", Needs: []string{thCostExpensive, thCostVeryExpensive}, Check: checkExpensiveCall},
			{ID: "cost_input_concentrated", Needs: []string{thCostInputShare}, Check: checkCostInputConcentrated},
			{ID: "premium_model_small_task", Needs: []string{thCostSmallOutput}, Check: checkPremiumSmallTask},
		},
		Fixes: []engine.FixTemplate{
			{
				ID:      "downgrade_model_tier",
				Targets: []string{"premium_model_small_task", "expensive_call"},
				Applies: func(present map[string]bool, m engine.Metrics, rec telemetry.CallRecord) bool {
					return isPremiumModel(rec.ModelName)
				},
				Build: buildDowngradeModel,
			},
			{
				ID:      "trim_input_spend",
				Targets: []string{"cost_input_concentrated"},
				Build:   buildTrimInputSpend,
			},
		},
	}
}

// isPremiumModel identifies top-tier model names. Matching is by substring
// because model names carry provider prefixes and version suffixes.
func isPremiumModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "opus") || strings.Contains(m, "gpt-4") || strings.Contains(m, "o1")
}

func checkExpensiveCall(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.TotalCost <= th.Value(thCostExpensive) {
		return nil
	}
	severity := engine.SeverityWarning
	if rec.TotalCost > th.Value(thCostVeryExpensive) {
		severity = engine.SeverityCritical
	}
	return &engine.Factor{
		ID:       "expensive_call",
		Severity: severity,
		Label:    "Expensive call",
		Impact:   "A single invocation at this price adds up fast at volume.",
		Description: fmt.Sprintf(
			"This call cost $%.4f (%d input tokens, %d output tokens on %s).",
			rec.TotalCost, rec.InputTokens(), rec.CompletionTokens, rec.ModelName),
		HasFix: true,
	}
}

func checkCostInputConcentrated(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.TotalCost <= 0 || m.Cost.InputCostPercent <= th.Value(thCostInputShare) {
		return nil
	}
	return &engine.Factor{
		ID:       "cost_input_concentrated",
		Severity: engine.SeverityWarning,
		Label:    "Spend concentrated in input",
		Impact:   "Most of the money buys context, not answers.",
		Description: fmt.Sprintf(
			"%.1f%% of this call's cost is input-side ($%.4f of $%.4f).",
			m.Cost.InputCostPercent, m.Cost.InputCost, rec.TotalCost),
		HasFix: true,
	}
}

func checkPremiumSmallTask(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if !isPremiumModel(rec.ModelName) {
		return nil
	}
	if rec.CompletionTokens == 0 || float64(rec.CompletionTokens) >= th.Value(thCostSmallOutput) {
		return nil
	}
	return &engine.Factor{
		ID:       "premium_model_small_task",
		Severity: engine.SeverityWarning,
		Label:    "Premium model on a small task",
		Impact:   "Top-tier pricing for output a mid-tier model handles.",
		Description: fmt.Sprintf(
			"%s produced only %d completion tokens. Short, structured outputs rarely need the premium tier.",
			rec.ModelName, rec.CompletionTokens),
		HasFix: true,
	}
}

func buildDowngradeModel(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	divisor := th.Value(thCostDowngradeDiv)
	newCost := rec.TotalCost
	if divisor > 0 {
		newCost = rec.TotalCost / divisor
	}
	return engine.Fix{
		ID:       "downgrade_model_tier",
		Title:    "Route this operation to a lighter model",
		Subtitle: "Move short, structured outputs off the premium tier",
		Effort:   engine.EffortLow,
		Metrics: []engine.FixMetric{
			costDelta(rec.TotalCost, newCost),
		},
		CodeBefore: fmt.Sprintf("response = client.create(\n    model=%q,\n    messages=messages,\n)", rec.ModelName),
		CodeAfter:  "response = client.create(\n    model=MID_TIER_MODEL,\n    messages=messages,\n)",
		Tradeoffs: []string{
			"Lighter tiers are weaker on multi-step reasoning; keep the premium tier for those operations.",
		},
		Benefits: []string{
			"Tier pricing differences are large; the saving applies to every call of the operation.",
		},
		BestFor: "Classification, extraction, and short-form generation running on a premium model.",
	}
}

func buildTrimInputSpend(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	// Project halving the input side, the usual outcome of prompt
	// trimming plus caching of the stable prefix.
	oldPrompt := float64(rec.InputTokens())
	newPrompt := oldPrompt / 2
	return engine.Fix{
		ID:       "trim_input_spend",
		Title:    "Cut the input side of the bill",
		Subtitle: "Trim the prompt and cache its stable prefix",
		Effort:   engine.EffortMedium,
		Metrics: []engine.FixMetric{
			tokenDelta("Prompt tokens", oldPrompt, newPrompt),
			costDelta(rec.TotalCost, scaledInputCost(m, oldPrompt, newPrompt)),
		},
		CodeBefore: "# full context assembled and billed on every call\nmessages = assemble_full_context(request)",
		CodeAfter:  "# stable prefix cached, volatile context trimmed\nmessages = cached_prefix + assemble_delta(request)",
		Tradeoffs: []string{
			"Caching requires the prefix to stay byte-stable between calls.",
		},
		Benefits: []string{
			"Input spend drops without touching output quality.",
		},
		BestFor: "Operations whose cost split shows input buying most of the bill.",
	}
}
