package story

import (
	"fmt"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Quality threshold keys.
const (
	thQualityTerseOutput = "terse_output_tokens" // completion below this against real input is terse
	thQualityMinInput    = "min_input_tokens"    // input size that makes terseness suspicious
	thQualityCapHeadroom = "cap_headroom_pct"    // completion within this % of the cap means truncation
	thQualityRaiseCapMul = "raise_cap_multiple"  // projected cap multiple for the raise fix
)

// Quality analyzes output completeness signals: empty responses,
// truncation at the cap, and terse answers to rich prompts.
func Quality() engine.StoryConfig {
	return engine.StoryConfig{
		ID:          "quality",
		Title:       "Output Quality",
		Description: "Detects calls whose output was cut short or never arrived.",
		Thresholds: engine.Thresholds{
			thQualityTerseOutput: 50,
			thQualityMinInput:    1000,
			thQualityCapHeadroom: 2,
			thQualityRaiseCapMul: 2,
		},
		Rules: []engine.Rule{
			{ID: "empty_response", Needs: nil, Check: checkEmptyResponse},
			{ID: "truncated_response", Needs: []string{thQualityCapHeadroom}, Check: checkTruncatedResponse},
			{ID: "terse_response", Needs: []string{thQualityTerseOutput, thQualityMinInput}, Check: checkTerseResponse},
		},
		Fixes: []engine.FixTemplate{
			{
				ID:      "raise_output_cap",
				Targets: []string{"truncated_response"},
				Build:   buildRaiseOutputCap,
			},
		},
	}
}

func checkEmptyResponse(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.InputTokens() == 0 || rec.CompletionTokens > 0 {
		return nil
	}
	return &engine.Factor{
		ID:       "empty_response",
		Severity: engine.SeverityCritical,
		Label:    "Empty response",
		Impact:   "The call billed its full input and returned nothing usable.",
		Description: fmt.Sprintf(
			"No completion tokens came back for %d input tokens. Usually a refusal, a stop-sequence collision, or an upstream error swallowed by the client.",
			rec.InputTokens()),
		HasFix: false,
	}
}

func checkTruncatedResponse(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.MaxTokens <= 0 || rec.CompletionTokens == 0 {
		return nil
	}
	headroom := float64(rec.MaxTokens-rec.CompletionTokens) / float64(rec.MaxTokens) * 100
	if headroom > th.Value(thQualityCapHeadroom) {
		return nil
	}
	return &engine.Factor{
		ID:       "truncated_response",
		Severity: engine.SeverityWarning,
		Label:    "Response truncated at the cap",
		Impact:   "The answer ends where the budget does, not where the thought does.",
		Description: fmt.Sprintf(
			"The completion used %d of %d allowed tokens. Output running into the cap is almost always cut off mid-answer.",
			rec.CompletionTokens, rec.MaxTokens),
		HasFix: true,
	}
}

func checkTerseResponse(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.CompletionTokens == 0 {
		// The empty_response rule owns the zero case.
		return nil
	}
	if float64(rec.CompletionTokens) >= th.Value(thQualityTerseOutput) {
		return nil
	}
	if float64(rec.InputTokens()) < th.Value(thQualityMinInput) {
		return nil
	}
	return &engine.Factor{
		ID:       "terse_response",
		Severity: engine.SeverityInfo,
		Label:    "Terse response to a rich prompt",
		Impact:   "Substantial context produced a throwaway answer.",
		Description: fmt.Sprintf(
			"%d input tokens yielded %d output tokens. Worth checking whether the prompt actually asks for depth.",
			rec.InputTokens(), rec.CompletionTokens),
		HasFix: false,
	}
}

func buildRaiseOutputCap(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	newCap := float64(rec.MaxTokens) * th.Value(thQualityRaiseCapMul)
	return engine.Fix{
		ID:       "raise_output_cap",
		Title:    "Raise the output cap",
		Subtitle: fmt.Sprintf("Give the answer room: %d → %.0f tokens", rec.MaxTokens, newCap),
		Effort:   engine.EffortLow,
		Metrics: []engine.FixMetric{
			tokenDelta("Output cap", float64(rec.MaxTokens), newCap),
			tokenDelta("Completion tokens", float64(rec.CompletionTokens), float64(rec.CompletionTokens)*1.5),
		},
		CodeBefore: fmt.Sprintf("response = client.create(\n    messages=messages,\n    max_tokens=%d,  # answers run into this\n)", rec.MaxTokens),
		CodeAfter:  fmt.Sprintf("response = client.create(\n    messages=messages,\n    max_tokens=%.0f,\n)", newCap),
		Tradeoffs: []string{
			"A higher cap raises worst-case cost per call; the typical call only uses what it needs.",
		},
		Benefits: []string{
			"Truncated answers stop forcing retry calls that re-bill the whole context.",
		},
		BestFor: "Operations whose completions regularly land within a whisker of the cap.",
	}
}
