package engine

import (
	"math"
	"sort"
)

// Health score penalties. The score is an inverse function of the share
// of calls carrying at least one critical factor, with smaller penalties
// for warning-only and info-only calls, clamped to [0, 100].
const (
	healthCriticalPenalty = 65.0
	healthWarningPenalty  = 25.0
	healthInfoPenalty     = 10.0
)

// KPIs holds the raw aggregate figures behind the dashboard tiles.
// Everything here is an unformatted number; rendering happens in the
// output layer.
type KPIs struct {
	Calls          int     `json:"calls"`
	FlaggedCalls   int     `json:"flagged_calls"`
	ImbalancedOps  int     `json:"imbalanced_ops"`
	AvgRatio       float64 `json:"avg_ratio"`
	WorstRatio     float64 `json:"worst_ratio"`
	UnboundedCalls int     `json:"unbounded_calls"`
	TotalCost      float64 `json:"total_cost"`
	WastedCost     float64 `json:"wasted_cost"`
}

// TopOffender identifies the call or operation most in need of attention
// within a scope, with the figures that ranked it first.
type TopOffender struct {
	CallID      string  `json:"call_id,omitempty"`
	Operation   string  `json:"operation"`
	AgentName   string  `json:"agent_name,omitempty"`
	Criticals   int     `json:"criticals"`
	Warnings    int     `json:"warnings"`
	TotalCost   float64 `json:"total_cost"`
	Calls       int     `json:"calls"`
	WorstFactor string  `json:"worst_factor,omitempty"`
}

// OperationSummary aggregates per-call diagnoses for one operation.
type OperationSummary struct {
	Operation     string       `json:"operation"`
	AgentName     string       `json:"agent_name,omitempty"`
	Calls         int          `json:"calls"`
	HealthScore   float64      `json:"health_score"`
	CriticalCalls int          `json:"critical_calls"`
	WarningCalls  int          `json:"warning_calls"`
	TopOffender   *TopOffender `json:"top_offender"`
	KPIs          KPIs         `json:"kpis"`
}

// StorySummary aggregates across every operation for one story.
type StorySummary struct {
	Story       string             `json:"story"`
	HealthScore float64            `json:"health_score"`
	TopOffender *TopOffender       `json:"top_offender"`
	KPIs        KPIs               `json:"kpis"`
	DetailTable []OperationSummary `json:"detail_table"`
}

// HealthScore computes the 0-100 health score for a set of diagnoses.
// A call counts at its most severe level only.
func HealthScore(diags []CallDiagnosis) float64 {
	if len(diags) == 0 {
		return 100
	}
	var critical, warning, info int
	for _, d := range diags {
		switch d.MaxSeverity() {
		case SeverityCritical:
			critical++
		case SeverityWarning:
			warning++
		case SeverityInfo:
			info++
		}
	}
	n := float64(len(diags))
	score := 100 -
		healthCriticalPenalty*float64(critical)/n -
		healthWarningPenalty*float64(warning)/n -
		healthInfoPenalty*float64(info)/n
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SummarizeOperation rolls the per-call diagnoses of one operation into
// an OperationSummary.
func SummarizeOperation(operation string, diags []CallDiagnosis) OperationSummary {
	summary := OperationSummary{
		Operation: operation,
		Calls:     len(diags),
	}
	if len(diags) > 0 {
		summary.AgentName = diags[0].AgentName
	}

	var worst *CallDiagnosis
	var worstCrit, worstWarn int
	for i := range diags {
		d := &diags[i]
		crit, warn, _ := d.severityCounts()
		if crit > 0 {
			summary.CriticalCalls++
		} else if warn > 0 {
			summary.WarningCalls++
		}
		if worst == nil || offenderLess(worstCrit, worstWarn, worst.TotalCost, crit, warn, d.TotalCost) {
			worst, worstCrit, worstWarn = d, crit, warn
		}
	}

	if worst != nil && worstCrit+worstWarn > 0 {
		summary.TopOffender = &TopOffender{
			CallID:      worst.CallID,
			Operation:   worst.Operation,
			AgentName:   worst.AgentName,
			Criticals:   worstCrit,
			Warnings:    worstWarn,
			TotalCost:   worst.TotalCost,
			Calls:       1,
			WorstFactor: worstFactorID(*worst),
		}
	}

	summary.HealthScore = HealthScore(diags)
	summary.KPIs = computeKPIs(diags)
	if summary.CriticalCalls+summary.WarningCalls > 0 {
		summary.KPIs.ImbalancedOps = 1
	}
	return summary
}

// SummarizeStory rolls every operation's diagnoses into a StorySummary.
// The detail table is sorted by health score ascending so the worst
// operations lead.
func SummarizeStory(storyID string, byOperation map[string][]CallDiagnosis) StorySummary {
	summary := StorySummary{Story: storyID}

	var all []CallDiagnosis
	for op, diags := range byOperation {
		summary.DetailTable = append(summary.DetailTable, SummarizeOperation(op, diags))
		all = append(all, diags...)
	}
	sort.SliceStable(summary.DetailTable, func(i, j int) bool {
		if summary.DetailTable[i].HealthScore != summary.DetailTable[j].HealthScore {
			return summary.DetailTable[i].HealthScore < summary.DetailTable[j].HealthScore
		}
		return summary.DetailTable[i].Operation < summary.DetailTable[j].Operation
	})

	summary.HealthScore = HealthScore(all)
	summary.KPIs = computeKPIs(all)
	for _, op := range summary.DetailTable {
		if op.CriticalCalls+op.WarningCalls > 0 {
			summary.KPIs.ImbalancedOps++
		}
	}
	summary.TopOffender = topOperationOffender(summary.DetailTable)
	return summary
}

// topOperationOffender picks the operation with the most severe factor
// load: critical calls, then warning calls, then total cost descending,
// then call count descending.
func topOperationOffender(ops []OperationSummary) *TopOffender {
	var best *OperationSummary
	for i := range ops {
		op := &ops[i]
		if op.CriticalCalls+op.WarningCalls == 0 {
			continue
		}
		if best == nil {
			best = op
			continue
		}
		switch {
		case op.CriticalCalls != best.CriticalCalls:
			if op.CriticalCalls > best.CriticalCalls {
				best = op
			}
		case op.WarningCalls != best.WarningCalls:
			if op.WarningCalls > best.WarningCalls {
				best = op
			}
		case op.KPIs.TotalCost != best.KPIs.TotalCost:
			if op.KPIs.TotalCost > best.KPIs.TotalCost {
				best = op
			}
		case op.Calls > best.Calls:
			best = op
		}
	}
	if best == nil {
		return nil
	}
	return &TopOffender{
		Operation: best.Operation,
		AgentName: best.AgentName,
		Criticals: best.CriticalCalls,
		Warnings:  best.WarningCalls,
		TotalCost: best.KPIs.TotalCost,
		Calls:     best.Calls,
	}
}

// worstFactorID returns the id of the most severe factor, relying on the
// evaluator's severity sort.
func worstFactorID(d CallDiagnosis) string {
	if len(d.Factors) == 0 {
		return ""
	}
	return d.Factors[0].ID
}

// offenderLess reports whether the candidate (crit, warn, cost) outranks
// the current worst for top-offender selection.
func offenderLess(curCrit, curWarn int, curCost float64, crit, warn int, cost float64) bool {
	if crit != curCrit {
		return crit > curCrit
	}
	if warn != curWarn {
		return warn > curWarn
	}
	return cost > curCost
}

// computeKPIs computes the raw tile figures over a diagnosis set. The
// average and worst ratios consider finite ratios only; unbounded calls
// are counted separately.
func computeKPIs(diags []CallDiagnosis) KPIs {
	kpis := KPIs{Calls: len(diags)}

	var ratioSum float64
	var ratioCount int
	for _, d := range diags {
		kpis.TotalCost += d.TotalCost
		if d.Normalized.RatioUnbounded() {
			kpis.UnboundedCalls++
		} else {
			ratioSum += d.Normalized.Ratio
			ratioCount++
			if d.Normalized.Ratio > kpis.WorstRatio {
				kpis.WorstRatio = d.Normalized.Ratio
			}
		}
		switch d.MaxSeverity() {
		case SeverityCritical, SeverityWarning:
			kpis.FlaggedCalls++
			kpis.WastedCost += wastedCost(d)
		}
	}
	if ratioCount > 0 {
		kpis.AvgRatio = ratioSum / float64(ratioCount)
	}
	return kpis
}

// wastedCost estimates the recoverable spend for one flagged call: the
// input cost above an even input/output split. A balanced call spends at
// most half its budget on input, so anything beyond that is treated as
// addressable by the fixes this story proposes.
func wastedCost(d CallDiagnosis) float64 {
	excess := d.Normalized.Cost.InputCost - d.TotalCost/2
	return math.Max(0, excess)
}
