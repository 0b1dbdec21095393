// Package engine implements the diagnostic rule engine: a single generic
// normalize → detect → fix → aggregate pipeline, parameterized by a
// per-story configuration. Every function in this package is a pure
// transformation of its inputs; the engine holds no state and performs
// no I/O.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
)

// Severity classifies a detected factor. The ordering is total and fixed:
// critical sorts before warning, warning before info, info before ok.
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityOK
)

var severityNames = map[Severity]string{
	SeverityCritical: "critical",
	SeverityWarning:  "warning",
	SeverityInfo:     "info",
	SeverityOK:       "ok",
}

// String returns the wire name of the severity.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalJSON encodes the severity as its wire name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name, rejecting unknown values.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity maps a wire name to a Severity. Unknown names are an
// error; severity is a closed set and silent defaulting would hide
// producer bugs.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// Effort labels the implementation cost of a fix.
type Effort int

const (
	EffortLow Effort = iota
	EffortMedium
	EffortHigh
)

var effortNames = map[Effort]string{
	EffortLow:    "Low",
	EffortMedium: "Medium",
	EffortHigh:   "High",
}

// String returns the display name of the effort level.
func (e Effort) String() string {
	if name, ok := effortNames[e]; ok {
		return name
	}
	return fmt.Sprintf("effort(%d)", int(e))
}

// MarshalJSON encodes the effort as its display name.
func (e Effort) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON decodes a display name, rejecting unknown values.
func (e *Effort) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for effort, n := range effortNames {
		if n == name {
			*e = effort
			return nil
		}
	}
	return fmt.Errorf("unknown effort %q", name)
}

// Factor is one detected issue for one call.
type Factor struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Label       string   `json:"label"`
	Impact      string   `json:"impact"`
	Description string   `json:"description"`
	HasFix      bool     `json:"has_fix"`
}

// FixMetric is one quantified before/after delta inside a fix. Before and
// After are raw numeric values; rendering (ratio strings, currency) is the
// output layer's job.
type FixMetric struct {
	Label         string  `json:"label"`
	Before        float64 `json:"before"`
	After         float64 `json:"after"`
	ChangePercent float64 `json:"change_percent"`
}

// Fix is a structured recommendation addressing one or more factors.
type Fix struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle"`
	Effort      Effort      `json:"effort"`
	Recommended bool        `json:"recommended"`
	Metrics     []FixMetric `json:"metrics"`
	CodeBefore  string      `json:"code_before"`
	CodeAfter   string      `json:"code_after"`
	Tradeoffs   []string    `json:"tradeoffs"`
	Benefits    []string    `json:"benefits"`
	BestFor     string      `json:"best_for"`
}

// MarshalJSON encodes the delta with unbounded values carried as null,
// since ±Inf is not representable in JSON. An unbounded "before" shows up
// when a fix projects a ratio for a call that produced no output at all.
func (fm FixMetric) MarshalJSON() ([]byte, error) {
	finite := func(v float64) *float64 {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Label         string   `json:"label"`
		Before        *float64 `json:"before"`
		After         *float64 `json:"after"`
		ChangePercent float64  `json:"change_percent"`
	}{fm.Label, finite(fm.Before), finite(fm.After), fm.ChangePercent})
}

// ChangePercent computes the percentage change from before to after,
// guarded against zero and unbounded baselines.
func ChangePercent(before, after float64) float64 {
	if before == 0 || math.IsInf(before, 0) || math.IsNaN(before) {
		return 0
	}
	return (after - before) / before * 100
}
