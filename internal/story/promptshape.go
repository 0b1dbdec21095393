package story

import (
	"fmt"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Prompt composition threshold keys.
const (
	thCompSystemPct   = "system_dominant_pct"  // system share that dominates the prompt
	thCompHistoryPct  = "history_dominant_pct" // history share that dominates the prompt
	thCompUserFloor   = "user_floor_pct"       // user share below which the request is a sliver
	thCompMinTokens   = "min_prompt_tokens"    // prompts smaller than this are never flagged
	thCompRebalanceTo = "rebalance_user_pct"   // user share the rebalance fix aims for
)

// PromptComposition analyzes how a call's input divides between system
// prompt, user message, and history.
func PromptComposition() engine.StoryConfig {
	return engine.StoryConfig{
		ID:          "prompt-composition",
		Title:       "Prompt Composition",
		Description: "Detects prompts where boilerplate crowds out the actual request.",
		Thresholds: engine.Thresholds{
			thCompSystemPct:   60,
			thCompHistoryPct:  50,
			thCompUserFloor:   5,
			thCompMinTokens:   2000,
			thCompRebalanceTo: 25,
		},
		Rules: []engine.Rule{
			{ID: "system_dominant", Needs: []string{thCompSystemPct, thCompMinTokens}, Check: checkSystemDominant},
			{ID: "history_dominant", Needs: []string{thCompHistoryPct, thCompMinTokens}, Check: checkHistoryDominant},
			{ID: "user_sliver", Needs: []string{thCompUserFloor, thCompMinTokens}, Check: checkUserSliver},
		},
		Fixes: []engine.FixTemplate{
			{
				ID:      "rebalance_prompt_sections",
				Targets: []string{"system_dominant", "history_dominant", "user_sliver"},
				Build:   buildRebalanceSections,
			},
		},
	}
}

func compositionTooSmall(m engine.Metrics, th engine.Thresholds) bool {
	return float64(m.Breakdown.TotalTokens) < th.Value(thCompMinTokens)
}

func checkSystemDominant(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if compositionTooSmall(m, th) || m.Breakdown.SystemPercent <= th.Value(thCompSystemPct) {
		return nil
	}
	return &engine.Factor{
		ID:       "system_dominant",
		Severity: engine.SeverityWarning,
		Label:    "System section dominates the prompt",
		Impact:   "Fixed instructions outweigh the actual task in every call.",
		Description: fmt.Sprintf(
			"The system section is %.1f%% of the prompt. The model reads the same boilerplate before it reaches the request.",
			m.Breakdown.SystemPercent),
		HasFix: true,
	}
}

func checkHistoryDominant(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if compositionTooSmall(m, th) || m.Breakdown.HistoryPercent <= th.Value(thCompHistoryPct) {
		return nil
	}
	return &engine.Factor{
		ID:       "history_dominant",
		Severity: engine.SeverityWarning,
		Label:    "History section dominates the prompt",
		Impact:   "Past turns take up more room than the present one.",
		Description: fmt.Sprintf(
			"Conversation history is %.1f%% of the prompt for this call.",
			m.Breakdown.HistoryPercent),
		HasFix: true,
	}
}

func checkUserSliver(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if compositionTooSmall(m, th) {
		return nil
	}
	if m.Breakdown.UserTokens == 0 || m.Breakdown.UserPercent >= th.Value(thCompUserFloor) {
		return nil
	}
	return &engine.Factor{
		ID:       "user_sliver",
		Severity: engine.SeverityInfo,
		Label:    "Request is a sliver of the prompt",
		Impact:   "The task description is dwarfed by surrounding scaffolding.",
		Description: fmt.Sprintf(
			"The user message is only %.1f%% of a %d-token prompt.",
			m.Breakdown.UserPercent, m.Breakdown.TotalTokens),
		HasFix: true,
	}
}

// buildRebalanceSections projects a prompt restructured so the user
// request carries the target share, shrinking whichever section dominates.
func buildRebalanceSections(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	oldTotal := float64(m.Breakdown.TotalTokens)
	user := float64(m.Breakdown.UserTokens)
	targetShare := th.Value(thCompRebalanceTo) / 100
	newTotal := oldTotal
	if user > 0 && targetShare > 0 {
		newTotal = user / targetShare
		if newTotal > oldTotal {
			newTotal = oldTotal
		}
	}

	return engine.Fix{
		ID:       "rebalance_prompt_sections",
		Title:    "Restructure the prompt around the request",
		Subtitle: fmt.Sprintf("Aim for the user request at ~%.0f%% of the prompt", th.Value(thCompRebalanceTo)),
		Effort:   engine.EffortMedium,
		Metrics: []engine.FixMetric{
			tokenDelta("Prompt tokens", oldTotal, newTotal),
			{
				Label:         "User share (%)",
				Before:        m.Breakdown.UserPercent,
				After:         th.Value(thCompRebalanceTo),
				ChangePercent: engine.ChangePercent(m.Breakdown.UserPercent, th.Value(thCompRebalanceTo)),
			},
			costDelta(rec.TotalCost, scaledInputCost(m, oldTotal, newTotal)),
		},
		CodeBefore: fmt.Sprintf(
			"# system %.0f%% / history %.0f%% / user %.0f%%\nprompt = build_prompt(SYSTEM, history, request)",
			m.Breakdown.SystemPercent, m.Breakdown.HistoryPercent, m.Breakdown.UserPercent),
		CodeAfter: "# trimmed system, windowed history, request up front\nprompt = build_prompt(CORE_SYSTEM, window(history), request)",
		Tradeoffs: []string{
			"Restructuring a prompt template touches every operation that shares it.",
		},
		Benefits: []string{
			"The model reaches the actual task sooner and with less competing context.",
		},
		BestFor: "Templates evolved by accretion, where scaffolding has outgrown the task.",
	}
}
