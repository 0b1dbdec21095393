package story

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Routing threshold keys.
const (
	thRouteSmallPrompt = "small_prompt_tokens" // prompt size below which a premium model is overkill
	thRouteSmallOutput = "small_output_tokens" // output size below which a premium model is overkill
	thRouteBigContext  = "big_context_tokens"  // context size a budget model handles poorly
)

// Routing analyzes whether each call landed on an appropriately sized
// model.
func Routing() engine.StoryConfig {
	return engine.StoryConfig{
		ID:          "routing",
		Title:       "Model Routing",
		Description: "Detects calls routed to a model tier mismatched with the work.",
		Thresholds: engine.Thresholds{
			thRouteSmallPrompt: 500,
			thRouteSmallOutput: 300,
			thRouteBigContext:  20000,
		},
		Rules: []engine.Rule{
			{ID: "premium_for_simple", Needs: []string{thRouteSmallPrompt, thRouteSmallOutput}, Check: checkPremiumForSimple},
			{ID: "budget_for_complex", Needs: []string{thRouteBigContext}, Check: checkBudgetForComplex},
		},
		Fixes: []engine.FixTemplate{
			{
				ID:      "route_to_lighter_model",
				Targets: []string{"premium_for_simple"},
				Build:   buildRouteToLighter,
			},
			{
				ID:      "route_to_stronger_model",
				Targets: []string{"budget_for_complex"},
				Build:   buildRouteToStronger,
			},
		},
	}
}

// isBudgetModel identifies bottom-tier model names by substring.
func isBudgetModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "haiku") || strings.Contains(m, "mini") || strings.Contains(m, "flash")
}

func checkPremiumForSimple(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if !isPremiumModel(rec.ModelName) {
		return nil
	}
	if rec.PromptTokens == 0 || float64(rec.PromptTokens) >= th.Value(thRouteSmallPrompt) {
		return nil
	}
	if float64(rec.CompletionTokens) >= th.Value(thRouteSmallOutput) {
		return nil
	}
	return &engine.Factor{
		ID:       "premium_for_simple",
		Severity: engine.SeverityWarning,
		Label:    "Premium tier for a simple call",
		Impact:   "Small in, small out, top-tier price.",
		Description: fmt.Sprintf(
			"%s handled a %d-token prompt producing %d tokens. This shape of call rarely needs the premium tier.",
			rec.ModelName, rec.PromptTokens, rec.CompletionTokens),
		HasFix: true,
	}
}

func checkBudgetForComplex(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if !isBudgetModel(rec.ModelName) {
		return nil
	}
	if float64(rec.PromptTokens) <= th.Value(thRouteBigContext) {
		return nil
	}
	return &engine.Factor{
		ID:       "budget_for_complex",
		Severity: engine.SeverityWarning,
		Label:    "Budget tier for heavy context",
		Impact:   "Bottom-tier models degrade on long-context synthesis; retries eat the saving.",
		Description: fmt.Sprintf(
			"%s received %d prompt tokens. Context this large usually needs a stronger tier to use it well.",
			rec.ModelName, rec.PromptTokens),
		HasFix: true,
	}
}

func buildRouteToLighter(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	return engine.Fix{
		ID:       "route_to_lighter_model",
		Title:    "Route simple calls to a lighter tier",
		Subtitle: "Match the model to the shape of the call",
		Effort:   engine.EffortLow,
		Metrics: []engine.FixMetric{
			costDelta(rec.TotalCost, rec.TotalCost/5),
		},
		CodeBefore: fmt.Sprintf("model = %q  # one model for every operation", rec.ModelName),
		CodeAfter:  "model = route(request)  # small/structured -> light tier, reasoning -> premium",
		Tradeoffs: []string{
			"A router adds one decision point that needs its own monitoring.",
		},
		Benefits: []string{
			"Simple calls stop paying reasoning-tier prices.",
		},
		BestFor: "Fleets where one premium model serves every call shape.",
	}
}

func buildRouteToStronger(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	return engine.Fix{
		ID:       "route_to_stronger_model",
		Title:    "Route heavy-context calls up a tier",
		Subtitle: "Stop feeding long context to the budget tier",
		Effort:   engine.EffortLow,
		Metrics: []engine.FixMetric{
			tokenDelta("Prompt tokens", float64(rec.PromptTokens), float64(rec.PromptTokens)),
		},
		CodeBefore: fmt.Sprintf("model = %q  # budget tier regardless of context size", rec.ModelName),
		CodeAfter:  "model = STRONG_MODEL if input_tokens > CONTEXT_CUTOFF else BUDGET_MODEL",
		Tradeoffs: []string{
			"Per-call cost rises on the routed calls.",
		},
		Benefits: []string{
			"Fewer retries and manual re-asks on long-context work, which usually nets out cheaper.",
		},
		BestFor: "Operations that occasionally balloon past the budget tier's comfortable context size.",
	}
}
