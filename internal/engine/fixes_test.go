package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

func TestGenerateFixes_NoFactorsNoFixes(t *testing.T) {
	cfg := StoryConfig{ID: "test", Fixes: []FixTemplate{stubFix("f", "a")}}
	assert.Nil(t, GenerateFixes(cfg, Metrics{}, telemetry.CallRecord{}, nil))
}

func TestGenerateFixes_OnlyTriggeredTemplates(t *testing.T) {
	cfg := StoryConfig{
		ID: "test",
		Fixes: []FixTemplate{
			stubFix("hit", "fired"),
			stubFix("miss", "silent"),
		},
	}
	factors := []Factor{{ID: "fired", Severity: SeverityWarning}}
	fixes := GenerateFixes(cfg, Metrics{}, telemetry.CallRecord{}, factors)
	require.Len(t, fixes, 1)
	assert.Equal(t, "hit", fixes[0].ID)
}

func TestGenerateFixes_AppliesGate(t *testing.T) {
	gated := stubFix("gated", "fired")
	gated.Applies = func(present map[string]bool, m Metrics, rec telemetry.CallRecord) bool {
		return false
	}
	cfg := StoryConfig{ID: "test", Fixes: []FixTemplate{gated}}
	factors := []Factor{{ID: "fired", Severity: SeverityWarning}}
	assert.Empty(t, GenerateFixes(cfg, Metrics{}, telemetry.CallRecord{}, factors))
}

func TestGenerateFixes_OrdersBySeverityThenSpecificity(t *testing.T) {
	cfg := StoryConfig{
		ID: "test",
		Fixes: []FixTemplate{
			stubFix("broad_warning", "warn_a", "warn_b"),
			stubFix("narrow_warning", "warn_a"),
			stubFix("for_critical", "crit"),
		},
	}
	factors := []Factor{
		{ID: "crit", Severity: SeverityCritical},
		{ID: "warn_a", Severity: SeverityWarning},
		{ID: "warn_b", Severity: SeverityWarning},
	}
	fixes := GenerateFixes(cfg, Metrics{}, telemetry.CallRecord{}, factors)
	require.Len(t, fixes, 3)
	assert.Equal(t, "for_critical", fixes[0].ID, "critical trigger outranks warnings")
	assert.Equal(t, "narrow_warning", fixes[1].ID, "fewer targets ranks higher on ties")
	assert.Equal(t, "broad_warning", fixes[2].ID)
}

func TestGenerateFixes_FirstIsRecommended(t *testing.T) {
	cfg := StoryConfig{ID: "test", Fixes: []FixTemplate{stubFix("only", "fired")}}
	factors := []Factor{{ID: "fired", Severity: SeverityWarning}}
	fixes := GenerateFixes(cfg, Metrics{}, telemetry.CallRecord{}, factors)
	require.Len(t, fixes, 1)
	assert.True(t, fixes[0].Recommended)
}

func TestGenerateFixes_CombinedLeadsAndIsRecommended(t *testing.T) {
	cfg := StoryConfig{
		ID:    "test",
		Fixes: []FixTemplate{stubFix("single", "a")},
		CombinedFix: func(m Metrics, rec telemetry.CallRecord, factors []Factor, th Thresholds) *Fix {
			return &Fix{ID: "combined"}
		},
	}
	factors := []Factor{
		{ID: "a", Severity: SeverityCritical},
		{ID: "b", Severity: SeverityWarning},
	}
	fixes := GenerateFixes(cfg, Metrics{}, telemetry.CallRecord{}, factors)
	require.Len(t, fixes, 2)
	assert.Equal(t, "combined", fixes[0].ID)
	assert.True(t, fixes[0].Recommended)
	assert.False(t, fixes[1].Recommended)
}

func TestGenerateFixes_NoCombinedForSingleFactor(t *testing.T) {
	called := false
	cfg := StoryConfig{
		ID:    "test",
		Fixes: []FixTemplate{stubFix("single", "a")},
		CombinedFix: func(m Metrics, rec telemetry.CallRecord, factors []Factor, th Thresholds) *Fix {
			called = true
			return &Fix{ID: "combined"}
		},
	}
	factors := []Factor{{ID: "a", Severity: SeverityCritical}}
	fixes := GenerateFixes(cfg, Metrics{}, telemetry.CallRecord{}, factors)
	assert.False(t, called, "composite fix needs at least two factors")
	require.Len(t, fixes, 1)
	assert.Equal(t, "single", fixes[0].ID)
}

func TestGenerateFixes_CapsAtMaxFixes(t *testing.T) {
	cfg := StoryConfig{
		ID: "test",
		Fixes: []FixTemplate{
			stubFix("f1", "a"),
			stubFix("f2", "a"),
			stubFix("f3", "a"),
			stubFix("f4", "a"),
			stubFix("f5", "a"),
		},
		CombinedFix: func(m Metrics, rec telemetry.CallRecord, factors []Factor, th Thresholds) *Fix {
			return &Fix{ID: "combined"}
		},
	}
	factors := []Factor{
		{ID: "a", Severity: SeverityCritical},
		{ID: "b", Severity: SeverityWarning},
	}
	fixes := GenerateFixes(cfg, Metrics{}, telemetry.CallRecord{}, factors)
	assert.Len(t, fixes, MaxFixes)
	assert.Equal(t, "combined", fixes[0].ID)
}
