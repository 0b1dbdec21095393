package story

import (
	"fmt"
	"math"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Token balance threshold keys. The ratio bands were lowered from 20/10/5
// to 15/8/4 in the source dashboards; the lowered values are kept here and
// remain tunable via config overrides.
const (
	thRatioSevere   = "ratio_severe"   // ratio above this is a severe imbalance
	thRatioHigh     = "ratio_high"     // ratio above this is a high imbalance
	thRatioModerate = "ratio_moderate" // ratio above this is a moderate imbalance

	thSystemSharePct    = "system_share_pct"     // system prompt share that alone flags dominance
	thSystemAbsTokens   = "system_abs_tokens"    // absolute system size that flags with the lower share bound
	thSystemLowShare    = "system_low_share_pct" // lower share bound used with the absolute size gate
	thHistorySharePct   = "history_share_pct"    // history share required to flag
	thHistoryAbsTokens  = "history_abs_tokens"   // minimum history size, so small histories are never flagged
	thLowOutputTokens   = "low_output_tokens"    // completion floor below which output is low
	thLowOutputCritical = "low_output_critical"  // completion floor below which low output is critical
	thInputCostShare    = "input_cost_share_pct" // input cost share that flags cost concentration

	thOutputFloorTokens = "output_floor_tokens" // minimum projected output target
	thSystemKeepPct     = "system_keep_pct"     // system tokens retained by the simplify fix
	thHistoryKeepPct    = "history_keep_pct"    // history tokens retained by the trim fix
)

// TokenBalance is the fully-developed representative story: prompt/
// completion token balance for one call.
func TokenBalance() engine.StoryConfig {
	return engine.StoryConfig{
		ID:          "token-balance",
		Title:       "Token Balance",
		Description: "Detects calls that spend heavily on input tokens while producing little output.",
		Thresholds: engine.Thresholds{
			thRatioSevere:       15,
			thRatioHigh:         8,
			thRatioModerate:     4,
			thSystemSharePct:    50,
			thSystemAbsTokens:   2000,
			thSystemLowShare:    30,
			thHistorySharePct:   40,
			thHistoryAbsTokens:  3000,
			thLowOutputTokens:   150,
			thLowOutputCritical: 50,
			thInputCostShare:    80,
			thOutputFloorTokens: 500,
			thSystemKeepPct:     40,
			thHistoryKeepPct:    30,
		},
		Bands: [][]string{
			{thRatioSevere, thRatioHigh, thRatioModerate},
			{thLowOutputTokens, thLowOutputCritical},
		},
		Rules: []engine.Rule{
			{ID: "ratio_bands", Needs: []string{thRatioSevere, thRatioHigh, thRatioModerate}, Check: checkRatioBands},
			{ID: "large_system_prompt", Needs: []string{thSystemSharePct, thSystemAbsTokens, thSystemLowShare}, Check: checkLargeSystemPrompt},
			{ID: "history_heavy", Needs: []string{thHistorySharePct, thHistoryAbsTokens}, Check: checkHistoryHeavy},
			{ID: "low_output", Needs: []string{thLowOutputTokens, thLowOutputCritical}, Check: checkLowOutput},
			{ID: "input_cost_heavy", Needs: []string{thInputCostShare}, Check: checkInputCostHeavy},
			{ID: "unbounded_output", Needs: []string{thRatioModerate}, Check: checkUnboundedOutput},
		},
		Fixes: []engine.FixTemplate{
			{
				ID:      "simplify_system_prompt",
				Targets: []string{"large_system_prompt"},
				Build:   buildSimplifySystemPrompt,
			},
			{
				ID:      "trim_history",
				Targets: []string{"history_heavy"},
				Build:   buildTrimHistory,
			},
			{
				ID:      "request_longer_output",
				Targets: []string{"low_output", "severe_imbalance", "high_imbalance", "moderate_imbalance"},
				Build:   buildRequestLongerOutput,
			},
		},
		CombinedFix: buildCombinedRebalance,
	}
}

// checkRatioBands classifies the token ratio into one of three imbalance
// factors. An unbounded ratio (no output at all) lands in the severe band.
func checkRatioBands(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.PromptTokens == 0 {
		return nil
	}
	switch {
	case m.Ratio > th.Value(thRatioSevere):
		return &engine.Factor{
			ID:       "severe_imbalance",
			Severity: engine.SeverityCritical,
			Label:    "Severe token imbalance",
			Impact:   "Most of this call's budget buys context that produces almost no output.",
			Description: fmt.Sprintf(
				"This call sends %d prompt tokens for %d completion tokens. "+
					"Input this lopsided usually means duplicated context, an oversized system prompt, or unpruned history.",
				rec.PromptTokens, rec.CompletionTokens),
			HasFix: true,
		}
	case m.Ratio > th.Value(thRatioHigh):
		return &engine.Factor{
			ID:       "high_imbalance",
			Severity: engine.SeverityCritical,
			Label:    "High token imbalance",
			Impact:   "Input tokens dominate the call's spend.",
			Description: fmt.Sprintf(
				"The prompt is %.0fx the size of the completion (%d vs %d tokens).",
				m.Ratio, rec.PromptTokens, rec.CompletionTokens),
			HasFix: true,
		}
	case m.Ratio > th.Value(thRatioModerate):
		return &engine.Factor{
			ID:       "moderate_imbalance",
			Severity: engine.SeverityWarning,
			Label:    "Moderate token imbalance",
			Impact:   "The call spends noticeably more on input than it gets back as output.",
			Description: fmt.Sprintf(
				"The prompt-to-completion ratio is %.1f:1. Worth a look, not yet urgent.",
				m.Ratio),
			HasFix: true,
		}
	}
	return nil
}

// checkLargeSystemPrompt fires when the system prompt dominates the input,
// either by share alone or by absolute size combined with a lower share
// bound.
func checkLargeSystemPrompt(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	share := m.Breakdown.SystemPercent
	dominantByShare := share > th.Value(thSystemSharePct)
	dominantBySize := float64(rec.SystemPromptTokens) > th.Value(thSystemAbsTokens) && share > th.Value(thSystemLowShare)
	if !dominantByShare && !dominantBySize {
		return nil
	}
	return &engine.Factor{
		ID:       "large_system_prompt",
		Severity: engine.SeverityWarning,
		Label:    "System prompt dominates input",
		Impact:   "A heavyweight system prompt is resent and re-billed on every call.",
		Description: fmt.Sprintf(
			"The system prompt is %d tokens, %.1f%% of all input. Instructions this long usually contain material that belongs in retrieval or tooling.",
			rec.SystemPromptTokens, share),
		HasFix: true,
	}
}

// checkHistoryHeavy fires only when history is large both relatively and
// absolutely, so short conversations are never flagged.
func checkHistoryHeavy(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if m.Breakdown.HistoryPercent <= th.Value(thHistorySharePct) {
		return nil
	}
	if float64(rec.ChatHistoryTokens) <= th.Value(thHistoryAbsTokens) {
		return nil
	}
	return &engine.Factor{
		ID:       "history_heavy",
		Severity: engine.SeverityWarning,
		Label:    "Chat history dominates input",
		Impact:   "Old turns are re-billed on every call without adding to the answer.",
		Description: fmt.Sprintf(
			"Conversation history accounts for %d tokens (%.1f%% of input). Most of it is unlikely to influence the current turn.",
			rec.ChatHistoryTokens, m.Breakdown.HistoryPercent),
		HasFix: true,
	}
}

// checkLowOutput fires below the completion-token floor; far below it, the
// factor is critical.
func checkLowOutput(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.InputTokens() == 0 {
		return nil
	}
	if float64(rec.CompletionTokens) >= th.Value(thLowOutputTokens) {
		return nil
	}
	severity := engine.SeverityWarning
	if float64(rec.CompletionTokens) < th.Value(thLowOutputCritical) {
		severity = engine.SeverityCritical
	}
	return &engine.Factor{
		ID:       "low_output",
		Severity: severity,
		Label:    "Very low output",
		Impact:   "The call pays full freight for context but returns almost nothing.",
		Description: fmt.Sprintf(
			"Only %d completion tokens came back. Terse outputs often mean the task is under-specified or the model is being used as a yes/no oracle.",
			rec.CompletionTokens),
		HasFix: true,
	}
}

// checkInputCostHeavy fires when the input side of the cost split crosses
// the concentration threshold.
func checkInputCostHeavy(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.TotalCost <= 0 {
		return nil
	}
	if m.Cost.InputCostPercent <= th.Value(thInputCostShare) {
		return nil
	}
	return &engine.Factor{
		ID:       "input_cost_heavy",
		Severity: engine.SeverityWarning,
		Label:    "Cost concentrated in input",
		Impact:   "Spend is going to reading context, not generating answers.",
		Description: fmt.Sprintf(
			"%.1f%% of this call's cost pays for input tokens. Input-heavy spend compounds across every retry and every conversation turn.",
			m.Cost.InputCostPercent),
		HasFix: false,
	}
}

// checkUnboundedOutput is informational: no output cap is configured while
// the ratio already sits past the moderate band.
func checkUnboundedOutput(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.MaxTokens > 0 {
		return nil
	}
	if !(m.Ratio > th.Value(thRatioModerate)) {
		return nil
	}
	return &engine.Factor{
		ID:       "unbounded_output",
		Severity: engine.SeverityInfo,
		Label:    "No output cap configured",
		Impact:   "Without max_tokens the model decides when to stop, which tends to mean early.",
		Description: "No max_tokens cap is set on this call. An explicit target nudges the model " +
			"toward fuller answers and makes output length a tunable rather than an accident.",
		HasFix: false,
	}
}

// buildSimplifySystemPrompt projects the effect of shrinking the system
// prompt to the configured keep share.
func buildSimplifySystemPrompt(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	keep := th.Value(thSystemKeepPct) / 100
	oldPrompt := float64(rec.InputTokens())
	newSystem := float64(rec.SystemPromptTokens) * keep
	newPrompt := oldPrompt - (float64(rec.SystemPromptTokens) - newSystem)
	newRatio := projectedRatio(newPrompt, float64(rec.CompletionTokens))

	return engine.Fix{
		ID:       "simplify_system_prompt",
		Title:    "Simplify the system prompt",
		Subtitle: fmt.Sprintf("Cut the system prompt to ~%.0f%% of its current size", th.Value(thSystemKeepPct)),
		Effort:   engine.EffortMedium,
		Metrics: []engine.FixMetric{
			ratioDelta(m.Ratio, newRatio),
			tokenDelta("System prompt tokens", float64(rec.SystemPromptTokens), newSystem),
			costDelta(rec.TotalCost, scaledInputCost(m, oldPrompt, newPrompt)),
		},
		CodeBefore: fmt.Sprintf(
			"messages = [\n    # %d-token system prompt: role, rules, examples, edge cases, style guide\n    {\"role\": \"system\", \"content\": FULL_SYSTEM_PROMPT},\n    {\"role\": \"user\", \"content\": request},\n]",
			rec.SystemPromptTokens),
		CodeAfter: fmt.Sprintf(
			"messages = [\n    # ~%.0f-token system prompt: role and hard rules only\n    {\"role\": \"system\", \"content\": CORE_SYSTEM_PROMPT},\n    # examples and reference material move to retrieved context\n    {\"role\": \"user\", \"content\": with_context(request)},\n]",
			newSystem),
		Tradeoffs: []string{
			"Removing examples can reduce formatting consistency until the core prompt is re-tuned.",
			"Edge-case instructions moved to retrieval only apply when retrieval surfaces them.",
		},
		Benefits: []string{
			"Every call gets cheaper, not just this one; the saving recurs on each invocation.",
			"Shorter prompts are easier to review and tend to reduce contradictory instructions.",
		},
		BestFor: "Operations that run the same oversized system prompt on every call.",
	}
}

// buildTrimHistory projects the effect of retaining only the most recent
// slice of conversation history.
func buildTrimHistory(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	keep := th.Value(thHistoryKeepPct) / 100
	oldPrompt := float64(rec.InputTokens())
	newHistory := float64(rec.ChatHistoryTokens) * keep
	newPrompt := oldPrompt - (float64(rec.ChatHistoryTokens) - newHistory)
	newRatio := projectedRatio(newPrompt, float64(rec.CompletionTokens))

	return engine.Fix{
		ID:       "trim_history",
		Title:    "Trim conversation history",
		Subtitle: fmt.Sprintf("Keep the most recent ~%.0f%% of history tokens", th.Value(thHistoryKeepPct)),
		Effort:   engine.EffortLow,
		Metrics: []engine.FixMetric{
			ratioDelta(m.Ratio, newRatio),
			tokenDelta("History tokens", float64(rec.ChatHistoryTokens), newHistory),
			costDelta(rec.TotalCost, scaledInputCost(m, oldPrompt, newPrompt)),
		},
		CodeBefore: fmt.Sprintf(
			"# full transcript resent every turn (%d tokens)\nmessages = [system] + history + [user_turn]",
			rec.ChatHistoryTokens),
		CodeAfter: fmt.Sprintf(
			"# sliding window: recent turns verbatim, older turns summarized (~%.0f tokens)\nmessages = [system, summary(history[:-keep])] + history[-keep:] + [user_turn]",
			newHistory),
		Tradeoffs: []string{
			"The model loses verbatim access to early turns; references to them need the summary to carry.",
		},
		Benefits: []string{
			"Cost stops growing linearly with conversation length.",
			"Shorter context leaves more room for the answer itself.",
		},
		BestFor: "Long-running conversations where early turns rarely matter to the current request.",
	}
}

// buildRequestLongerOutput projects raising the output target to the floor
// or a quarter of the input, whichever is larger.
func buildRequestLongerOutput(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	input := float64(rec.InputTokens())
	target := math.Max(th.Value(thOutputFloorTokens), input/4)
	newRatio := projectedRatio(input, target)

	return engine.Fix{
		ID:       "request_longer_output",
		Title:    "Request longer output",
		Subtitle: fmt.Sprintf("Set an explicit output target of ~%.0f tokens", target),
		Effort:   engine.EffortLow,
		Metrics: []engine.FixMetric{
			ratioDelta(m.Ratio, newRatio),
			tokenDelta("Completion tokens", float64(rec.CompletionTokens), target),
		},
		CodeBefore: "response = client.create(\n    messages=messages,\n)  # no length guidance; the model stops when it pleases",
		CodeAfter: fmt.Sprintf(
			"response = client.create(\n    messages=messages,\n    max_tokens=%.0f,\n)  # prompt also asks for a complete, structured answer",
			target),
		Tradeoffs: []string{
			"Longer outputs cost more per call; the ratio improves because the spend becomes useful.",
			"A length target can pad answers if the prompt does not also ask for substance.",
		},
		Benefits: []string{
			"The expensive context already paid for gets amortized over a fuller answer.",
			"Fewer follow-up calls asking the model to elaborate.",
		},
		BestFor: "Calls that assemble rich context and then ask for a one-liner.",
	}
}

// buildCombinedRebalance blends the input-reduction and output-expansion
// projections into one composite fix. Tackling both sides together moves
// the ratio far more than either alone, which is the point of surfacing
// it as its own recommendation.
func buildCombinedRebalance(m engine.Metrics, rec telemetry.CallRecord, factors []engine.Factor, th engine.Thresholds) *engine.Fix {
	present := make(map[string]bool, len(factors))
	for _, f := range factors {
		present[f.ID] = true
	}

	oldPrompt := float64(rec.InputTokens())
	newPrompt := oldPrompt
	if present["large_system_prompt"] {
		newPrompt -= float64(rec.SystemPromptTokens) * (1 - th.Value(thSystemKeepPct)/100)
	}
	if present["history_heavy"] {
		newPrompt -= float64(rec.ChatHistoryTokens) * (1 - th.Value(thHistoryKeepPct)/100)
	}

	newOutput := float64(rec.CompletionTokens)
	if present["low_output"] || present["severe_imbalance"] || present["high_imbalance"] || present["moderate_imbalance"] {
		newOutput = math.Max(th.Value(thOutputFloorTokens), newPrompt/4)
	}

	// Nothing to blend: the factor mix touches neither side of the ratio.
	if newPrompt == oldPrompt && newOutput == float64(rec.CompletionTokens) {
		return nil
	}

	newRatio := projectedRatio(newPrompt, newOutput)
	return &engine.Fix{
		ID:       "rebalance_input_output",
		Title:    "Rebalance input and output together",
		Subtitle: "Shrink the context and raise the output target in one pass",
		Effort:   engine.EffortMedium,
		Metrics: []engine.FixMetric{
			ratioDelta(m.Ratio, newRatio),
			tokenDelta("Prompt tokens", oldPrompt, newPrompt),
			tokenDelta("Completion tokens", float64(rec.CompletionTokens), newOutput),
			costDelta(rec.TotalCost, scaledInputCost(m, oldPrompt, newPrompt)),
		},
		CodeBefore: fmt.Sprintf(
			"# %d tokens in, %d tokens out\nresponse = client.create(messages=messages)",
			rec.InputTokens(), rec.CompletionTokens),
		CodeAfter: fmt.Sprintf(
			"# ~%.0f tokens in, ~%.0f tokens out\nresponse = client.create(\n    messages=slim_messages,\n    max_tokens=%.0f,\n)",
			newPrompt, newOutput, newOutput),
		Tradeoffs: []string{
			"Two changes land at once, so attribution of any quality shift needs a brief A/B period.",
		},
		Benefits: []string{
			"Input reduction and output expansion compound; neither alone moves the ratio this far.",
		},
		BestFor: "Calls flagged for both oversized context and undersized output.",
	}
}
