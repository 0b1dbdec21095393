package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOrdering(t *testing.T) {
	// The severity order is load-bearing: factor sorting, fix ranking,
	// and the health score all compare severities directly.
	assert.Less(t, SeverityCritical, SeverityWarning)
	assert.Less(t, SeverityWarning, SeverityInfo)
	assert.Less(t, SeverityInfo, SeverityOK)
}

func TestParseSeverity(t *testing.T) {
	for _, name := range []string{"critical", "warning", "info", "ok"} {
		sev, err := ParseSeverity(name)
		require.NoError(t, err)
		assert.Equal(t, name, sev.String())
	}

	_, err := ParseSeverity("fatal")
	assert.Error(t, err, "unknown severities must be rejected, not defaulted")
}

func TestSeverityJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(SeverityWarning)
	require.NoError(t, err)
	assert.Equal(t, `"warning"`, string(data))

	var sev Severity
	require.NoError(t, json.Unmarshal([]byte(`"critical"`), &sev))
	assert.Equal(t, SeverityCritical, sev)

	assert.Error(t, json.Unmarshal([]byte(`"urgent"`), &sev))
}

func TestEffortJSON(t *testing.T) {
	data, err := json.Marshal(EffortMedium)
	require.NoError(t, err)
	assert.Equal(t, `"Medium"`, string(data))

	var e Effort
	require.NoError(t, json.Unmarshal([]byte(`"High"`), &e))
	assert.Equal(t, EffortHigh, e)

	assert.Error(t, json.Unmarshal([]byte(`"Trivial"`), &e))
}

func TestChangePercent(t *testing.T) {
	tests := []struct {
		name   string
		before float64
		after  float64
		want   float64
	}{
		{"decrease", 30, 18, -40},
		{"increase", 100, 150, 50},
		{"no change", 5, 5, 0},
		{"zero baseline", 0, 100, 0},
		{"unbounded baseline", math.Inf(1), 10, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ChangePercent(tc.before, tc.after), 1e-9)
		})
	}
}

func TestFixMetricMarshal_UnboundedBefore(t *testing.T) {
	fm := FixMetric{
		Label:  "Ratio",
		Before: math.Inf(1),
		After:  12,
	}
	data, err := json.Marshal(fm)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["before"], "unbounded values must encode as null")
	assert.Equal(t, 12.0, decoded["after"])
}
