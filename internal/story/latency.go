package story

import (
	"fmt"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Latency threshold keys.
const (
	thLatencySlowMS     = "slow_call_ms"          // duration above this is slow
	thLatencyVerySlowMS = "very_slow_call_ms"     // duration above this is critical
	thLatencyTokPerSec  = "output_tokens_per_sec" // generation rate below this is sluggish
	thLatencyBigPrompt  = "large_prompt_tokens"   // prompt size that explains slow time-to-answer
)

// Latency analyzes wall-clock duration against the work produced. Calls
// without duration telemetry fire no rules here.
func Latency() engine.StoryConfig {
	return engine.StoryConfig{
		ID:          "latency",
		Title:       "Latency",
		Description: "Detects slow calls and the prompt weight behind them.",
		Thresholds: engine.Thresholds{
			thLatencySlowMS:     10000,
			thLatencyVerySlowMS: 30000,
			thLatencyTokPerSec:  10,
			thLatencyBigPrompt:  50000,
		},
		Bands: [][]string{
			{thLatencyVerySlowMS, thLatencySlowMS},
		},
		Rules: []engine.Rule{
			{ID: "slow_call", Needs: []string{thLatencySlowMS, thLatencyVerySlowMS}, Check: checkSlowCall},
			{ID: "slow_generation", Needs: []string{thLatencyTokPerSec, thLatencySlowMS}, Check: checkSlowGeneration},
			{ID: "prompt_weight_latency", Needs: []string{thLatencyBigPrompt, thLatencySlowMS}, Check: checkPromptWeightLatency},
		},
		Fixes: []engine.FixTemplate{
			{
				ID:      "reduce_prompt_payload",
				Targets: []string{"prompt_weight_latency", "slow_call"},
				Build:   buildReducePromptPayload,
			},
		},
	}
}

func checkSlowCall(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	ms := float64(rec.DurationMS)
	if ms <= th.Value(thLatencySlowMS) {
		return nil
	}
	severity := engine.SeverityWarning
	if ms > th.Value(thLatencyVerySlowMS) {
		severity = engine.SeverityCritical
	}
	return &engine.Factor{
		ID:       "slow_call",
		Severity: severity,
		Label:    "Slow call",
		Impact:   "Users wait this long for every invocation of the operation.",
		Description: fmt.Sprintf(
			"The call took %.1fs end to end for %d completion tokens.",
			ms/1000, rec.CompletionTokens),
		HasFix: true,
	}
}

func checkSlowGeneration(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.DurationMS <= 0 || rec.CompletionTokens == 0 {
		return nil
	}
	// Only meaningful once the call is slow enough to matter.
	if float64(rec.DurationMS) <= th.Value(thLatencySlowMS) {
		return nil
	}
	rate := float64(rec.CompletionTokens) / (float64(rec.DurationMS) / 1000)
	if rate >= th.Value(thLatencyTokPerSec) {
		return nil
	}
	return &engine.Factor{
		ID:       "slow_generation",
		Severity: engine.SeverityWarning,
		Label:    "Low generation rate",
		Impact:   "Time is going to prompt processing, not token generation.",
		Description: fmt.Sprintf(
			"Effective output rate was %.1f tokens/s, which points at prompt-side weight rather than model speed.",
			rate),
		HasFix: true,
	}
}

func checkPromptWeightLatency(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.DurationMS <= 0 || float64(rec.DurationMS) <= th.Value(thLatencySlowMS) {
		return nil
	}
	if float64(rec.PromptTokens) <= th.Value(thLatencyBigPrompt) {
		return nil
	}
	return &engine.Factor{
		ID:       "prompt_weight_latency",
		Severity: engine.SeverityWarning,
		Label:    "Large prompt drives latency",
		Impact:   "Every token of context adds to time-to-first-token.",
		Description: fmt.Sprintf(
			"The call shipped %d prompt tokens and took %.1fs. Prompt processing scales with input size.",
			rec.PromptTokens, float64(rec.DurationMS)/1000),
		HasFix: true,
	}
}

func buildReducePromptPayload(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	oldPrompt := float64(rec.InputTokens())
	newPrompt := oldPrompt * 0.5
	oldMS := float64(rec.DurationMS)
	// Time-to-first-token scales roughly with prompt size; generation
	// time is unchanged by this fix.
	newMS := oldMS
	if oldPrompt > 0 {
		newMS = oldMS * (0.5 + 0.5*newPrompt/oldPrompt)
	}
	return engine.Fix{
		ID:       "reduce_prompt_payload",
		Title:    "Reduce the prompt payload",
		Subtitle: "Halve the shipped context to cut time-to-first-token",
		Effort:   engine.EffortMedium,
		Metrics: []engine.FixMetric{
			{
				Label:         "Duration (ms)",
				Before:        oldMS,
				After:         newMS,
				ChangePercent: engine.ChangePercent(oldMS, newMS),
			},
			tokenDelta("Prompt tokens", oldPrompt, newPrompt),
		},
		CodeBefore: "# everything potentially relevant goes in\ncontext = gather_all(request)",
		CodeAfter:  "# rank and keep only what the task needs\ncontext = top_k(rank(gather_all(request)), budget=PROMPT_BUDGET)",
		Tradeoffs: []string{
			"Aggressive context pruning can drop a document the answer needed; tune the budget per operation.",
		},
		Benefits: []string{
			"Latency and cost fall together; prompt weight drives both.",
		},
		BestFor: "Slow operations whose prompts carry broad, unranked context.",
	}
}
