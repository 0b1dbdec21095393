package story

import (
	"math"
	"reflect"
	"testing"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

func floatPtr(v float64) *float64 { return &v }

func factorIDs(factors []engine.Factor) []string {
	ids := make([]string, len(factors))
	for i, f := range factors {
		ids[i] = f.ID
	}
	return ids
}

func fixIDs(fixes []engine.Fix) []string {
	ids := make([]string, len(fixes))
	for i, f := range fixes {
		ids[i] = f.ID
	}
	return ids
}

// A summarization call with a bloated system prompt: 9000 tokens in for
// 300 out, two thirds of the input being fixed instructions.
func TestTokenBalance_BloatedSystemPrompt(t *testing.T) {
	rec := telemetry.CallRecord{
		CallID:             "call-a",
		Operation:          "summarize",
		PromptTokens:       9000,
		CompletionTokens:   300,
		SystemPromptTokens: 6000,
		UserMessageTokens:  3000,
		MaxTokens:          1024,
		TotalCost:          0.12,
		PromptCost:         floatPtr(0.07),
		CompletionCost:     floatPtr(0.05),
	}

	d := engine.Diagnose(TokenBalance(), rec)

	want := []string{"severe_imbalance", "large_system_prompt"}
	got := factorIDs(d.Factors)
	if len(got) != len(want) {
		t.Fatalf("factors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("factors = %v, want %v", got, want)
		}
	}
	if d.Factors[0].Severity != engine.SeverityCritical {
		t.Errorf("severe_imbalance severity = %v, want critical", d.Factors[0].Severity)
	}
	if d.Factors[1].Severity != engine.SeverityWarning {
		t.Errorf("large_system_prompt severity = %v, want warning", d.Factors[1].Severity)
	}

	wantFixes := []string{"rebalance_input_output", "request_longer_output", "simplify_system_prompt"}
	gotFixes := fixIDs(d.Fixes)
	if len(gotFixes) != len(wantFixes) {
		t.Fatalf("fixes = %v, want %v", gotFixes, wantFixes)
	}
	for i := range wantFixes {
		if gotFixes[i] != wantFixes[i] {
			t.Fatalf("fixes = %v, want %v", gotFixes, wantFixes)
		}
	}
	if !d.Fixes[0].Recommended {
		t.Error("the composite fix should be recommended")
	}

	// The simplify projection: system 6000 → 2400 drops the prompt to
	// 5400, so the ratio moves from 30 to 18.
	simplify := d.Fixes[2]
	ratio := simplify.Metrics[0]
	if ratio.Label != "Ratio" {
		t.Fatalf("first metric label = %q, want Ratio", ratio.Label)
	}
	if math.Abs(ratio.Before-30) > 1e-9 {
		t.Errorf("ratio before = %v, want 30", ratio.Before)
	}
	if math.Abs(ratio.After-18) > 1e-9 {
		t.Errorf("ratio after = %v, want 18", ratio.After)
	}
	if ratio.After >= ratio.Before {
		t.Error("a simplification fix must project an improved ratio")
	}
}

// A healthy call: modest prompt, real output. Nothing should fire.
func TestTokenBalance_HealthyCall(t *testing.T) {
	rec := telemetry.CallRecord{
		CallID:             "call-b",
		Operation:          "chat",
		PromptTokens:       800,
		CompletionTokens:   400,
		SystemPromptTokens: 200,
		UserMessageTokens:  600,
		MaxTokens:          512,
		TotalCost:          0.01,
		PromptCost:         floatPtr(0.004),
		CompletionCost:     floatPtr(0.006),
	}

	d := engine.Diagnose(TokenBalance(), rec)
	if len(d.Factors) != 0 {
		t.Fatalf("expected no factors, got %v", factorIDs(d.Factors))
	}
	if len(d.Fixes) != 0 {
		t.Fatalf("expected no fixes, got %v", fixIDs(d.Fixes))
	}
	if d.MaxSeverity() != engine.SeverityOK {
		t.Errorf("max severity = %v, want ok", d.MaxSeverity())
	}
}

// A classifier that returns almost nothing: low output at the critical
// floor, plus the resulting imbalance.
func TestTokenBalance_TerseClassifier(t *testing.T) {
	rec := telemetry.CallRecord{
		CallID:            "call-c",
		Operation:         "classify",
		PromptTokens:      1200,
		CompletionTokens:  40,
		UserMessageTokens: 1200,
		MaxTokens:         64,
	}

	d := engine.Diagnose(TokenBalance(), rec)

	got := factorIDs(d.Factors)
	if len(got) != 2 || got[0] != "severe_imbalance" || got[1] != "low_output" {
		t.Fatalf("factors = %v, want [severe_imbalance low_output]", got)
	}
	if d.Factors[1].Severity != engine.SeverityCritical {
		t.Errorf("low_output at %d tokens should be critical", rec.CompletionTokens)
	}

	gotFixes := fixIDs(d.Fixes)
	if len(gotFixes) != 2 || gotFixes[0] != "rebalance_input_output" || gotFixes[1] != "request_longer_output" {
		t.Fatalf("fixes = %v, want [rebalance_input_output request_longer_output]", gotFixes)
	}

	// The output target floors at 500 tokens when a quarter of the
	// input is smaller.
	longer := d.Fixes[1]
	var completion *engine.FixMetric
	for i := range longer.Metrics {
		if longer.Metrics[i].Label == "Completion tokens" {
			completion = &longer.Metrics[i]
		}
	}
	if completion == nil {
		t.Fatal("request_longer_output should project completion tokens")
	}
	if completion.After != 500 {
		t.Errorf("projected completion = %v, want 500", completion.After)
	}
}

// A call that produced nothing lands in the severe band with the ratio
// carried as the unbounded sentinel.
func TestTokenBalance_NoOutput(t *testing.T) {
	rec := telemetry.CallRecord{
		CallID:           "call-d",
		Operation:        "summarize",
		PromptTokens:     5000,
		CompletionTokens: 0,
		MaxTokens:        256,
	}

	d := engine.Diagnose(TokenBalance(), rec)
	if !d.Normalized.RatioUnbounded() {
		t.Fatal("zero completion tokens should yield the unbounded ratio")
	}

	found := false
	for _, f := range d.Factors {
		if f.ID == "severe_imbalance" {
			found = true
		}
	}
	if !found {
		t.Errorf("unbounded ratio should land in the severe band, got %v", factorIDs(d.Factors))
	}
}

func TestTokenBalance_UnboundedOutputIsInfoOnly(t *testing.T) {
	rec := telemetry.CallRecord{
		CallID:           "call-e",
		Operation:        "chat",
		PromptTokens:     3000,
		CompletionTokens: 500, // ratio 6, past the moderate band
	}

	d := engine.Diagnose(TokenBalance(), rec)
	for _, f := range d.Factors {
		if f.ID == "unbounded_output" {
			if f.Severity != engine.SeverityInfo {
				t.Errorf("unbounded_output severity = %v, want info", f.Severity)
			}
			return
		}
	}
	t.Errorf("expected unbounded_output among %v", factorIDs(d.Factors))
}

// A call sitting in the moderate band alone still gets an actionable
// fix: every factor that advertises one must come with at least one.
func TestTokenBalance_ModerateImbalanceGetsFix(t *testing.T) {
	rec := telemetry.CallRecord{
		CallID:           "call-f",
		Operation:        "chat",
		PromptTokens:     1000,
		CompletionTokens: 200, // ratio 5: moderate band only
		MaxTokens:        512,
	}

	d := engine.Diagnose(TokenBalance(), rec)

	got := factorIDs(d.Factors)
	if len(got) != 1 || got[0] != "moderate_imbalance" {
		t.Fatalf("factors = %v, want [moderate_imbalance]", got)
	}
	if !d.Factors[0].HasFix {
		t.Fatal("moderate_imbalance advertises a fix")
	}
	if len(d.Fixes) == 0 {
		t.Fatal("a factor with HasFix must produce at least one fix")
	}
	if d.Fixes[0].ID != "request_longer_output" {
		t.Errorf("fixes = %v, want request_longer_output first", fixIDs(d.Fixes))
	}
	if !d.Fixes[0].Recommended {
		t.Error("the only fix should be recommended")
	}
}

// The pipeline is a pure function of the record and the configuration:
// diagnosing the same call twice yields identical factor and fix lists.
func TestTokenBalance_DiagnoseIsDeterministic(t *testing.T) {
	records := []telemetry.CallRecord{
		{
			CallID:             "call-a",
			Operation:          "summarize",
			PromptTokens:       9000,
			CompletionTokens:   300,
			SystemPromptTokens: 6000,
			UserMessageTokens:  3000,
			MaxTokens:          1024,
			TotalCost:          0.12,
		},
		{CallID: "call-d", Operation: "summarize", PromptTokens: 5000},
		{CallID: "call-b", Operation: "chat", PromptTokens: 800, CompletionTokens: 400},
	}

	cfg := TokenBalance()
	for _, rec := range records {
		first := engine.Diagnose(cfg, rec)
		second := engine.Diagnose(cfg, rec)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("call %s: repeated diagnosis differs\nfirst:  %+v\nsecond: %+v",
				rec.CallID, first, second)
		}
	}
}

func TestTokenBalance_ThresholdOverrideChangesBand(t *testing.T) {
	cfg := TokenBalance()
	rec := telemetry.CallRecord{
		PromptTokens:     1200,
		CompletionTokens: 100, // ratio 12: high band by default
		MaxTokens:        256,
	}

	d := engine.Diagnose(cfg, rec)
	if len(d.Factors) == 0 || d.Factors[0].ID != "high_imbalance" {
		t.Fatalf("factors = %v, want high_imbalance first", factorIDs(d.Factors))
	}

	cfg.Thresholds["ratio_high"] = 13
	d = engine.Diagnose(cfg, rec)
	if len(d.Factors) == 0 || d.Factors[0].ID != "moderate_imbalance" {
		t.Fatalf("after override, factors = %v, want moderate_imbalance first", factorIDs(d.Factors))
	}
}
