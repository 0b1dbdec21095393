package app

import (
	"testing"

	"github.com/blackwell-systems/tokentriage/internal/engine"
)

func TestOperationScore_CarriesAllFields(t *testing.T) {
	op := engine.OperationSummary{
		Operation:     "summarize",
		AgentName:     "support-bot",
		Calls:         10,
		HealthScore:   42.5,
		CriticalCalls: 3,
		WarningCalls:  2,
		KPIs:          engine.KPIs{TotalCost: 1.25},
	}

	row := operationScore(7, "token-balance", op)

	if row.SnapshotID != 7 || row.Story != "token-balance" {
		t.Errorf("snapshot keys: %+v", row)
	}
	if row.AgentName != "support-bot" {
		t.Errorf("agent_name = %q, want support-bot", row.AgentName)
	}
	if row.Operation != "summarize" || row.HealthScore != 42.5 {
		t.Errorf("row = %+v", row)
	}
	if row.Calls != 10 || row.CriticalCalls != 3 || row.WarningCalls != 2 {
		t.Errorf("call counts: %+v", row)
	}
	if row.TotalCost != 1.25 {
		t.Errorf("total_cost = %v, want 1.25", row.TotalCost)
	}
}
