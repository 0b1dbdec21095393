package engine

import "github.com/blackwell-systems/tokentriage/internal/telemetry"

// CallDiagnosis is the per-call output of the pipeline: the detected
// factors, the generated fixes, and the normalized metrics they were
// derived from.
type CallDiagnosis struct {
	CallID    string  `json:"call_id"`
	Operation string  `json:"operation"`
	AgentName string  `json:"agent_name"`
	ModelName string  `json:"model_name"`
	TotalCost float64 `json:"total_cost"`

	Factors    []Factor `json:"factors"`
	Fixes      []Fix    `json:"fixes"`
	Normalized Metrics  `json:"normalized"`
}

// Diagnose runs the full normalize → detect → fix pipeline for one call
// under one story configuration.
func Diagnose(cfg StoryConfig, rec telemetry.CallRecord) CallDiagnosis {
	m := Normalize(rec)
	factors := Evaluate(cfg, m, rec)
	fixes := GenerateFixes(cfg, m, rec, factors)
	return CallDiagnosis{
		CallID:     rec.CallID,
		Operation:  rec.Operation,
		AgentName:  rec.AgentName,
		ModelName:  rec.ModelName,
		TotalCost:  rec.TotalCost,
		Factors:    factors,
		Fixes:      fixes,
		Normalized: m,
	}
}

// DiagnoseAll diagnoses every record under one story configuration,
// preserving input order. Each call is independent of every other; the
// caller may shard the input across goroutines freely.
func DiagnoseAll(cfg StoryConfig, records []telemetry.CallRecord) []CallDiagnosis {
	out := make([]CallDiagnosis, len(records))
	for i, rec := range records {
		out[i] = Diagnose(cfg, rec)
	}
	return out
}

// MaxSeverity returns the most severe factor severity in the diagnosis,
// or SeverityOK when no factor fired.
func (d CallDiagnosis) MaxSeverity() Severity {
	if len(d.Factors) == 0 {
		return SeverityOK
	}
	// Factors are sorted by severity, most severe first.
	return d.Factors[0].Severity
}

// severityCounts tallies factors at each level for one diagnosis.
func (d CallDiagnosis) severityCounts() (critical, warning, info int) {
	for _, f := range d.Factors {
		switch f.Severity {
		case SeverityCritical:
			critical++
		case SeverityWarning:
			warning++
		case SeverityInfo:
			info++
		}
	}
	return
}
