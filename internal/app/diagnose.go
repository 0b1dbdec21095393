package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/output"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

var (
	diagnoseInput string
	diagnoseStory string
	diagnoseCall  string
	diagnoseOp    string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Run per-call diagnostics and show factors and fixes",
	Long: `Run the diagnostic pipeline over call records for one analysis axis.
Each call is normalized, evaluated against the story's rules, and paired
with up to four quantified fix recommendations.

Reads a JSON array or JSONL stream of call records from --input, or from
stdin when --input is "-".`,
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseInput, "input", "-", "Telemetry input file (JSON array or JSONL), or - for stdin")
	diagnoseCmd.Flags().StringVar(&diagnoseStory, "story", "token-balance", "Analysis axis to run")
	diagnoseCmd.Flags().StringVar(&diagnoseCall, "call", "", "Limit output to a single call id")
	diagnoseCmd.Flags().StringVar(&diagnoseOp, "operation", "", "Limit to calls of one operation")
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	stories, err := loadStories()
	if err != nil {
		return err
	}
	cfg, err := findStory(stories, diagnoseStory)
	if err != nil {
		return err
	}

	loaded, err := telemetry.LoadFile(diagnoseInput)
	if err != nil {
		return err
	}
	records := telemetry.FilterByOperation(loaded.Records, diagnoseOp)

	if flagVerbose && loaded.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d undecodable record(s)\n", loaded.Skipped)
	}

	diags := engine.DiagnoseAll(cfg, records)
	if diagnoseCall != "" {
		diags = filterByCall(diags, diagnoseCall)
		if len(diags) == 0 {
			return fmt.Errorf("no call with id %q in input", diagnoseCall)
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diags)
	}

	for i, d := range diags {
		if i > 0 {
			fmt.Println()
		}
		printDiagnosis(cfg, d)
	}
	return nil
}

func filterByCall(diags []engine.CallDiagnosis, callID string) []engine.CallDiagnosis {
	var out []engine.CallDiagnosis
	for _, d := range diags {
		if d.CallID == callID {
			out = append(out, d)
		}
	}
	return out
}

func printDiagnosis(cfg engine.StoryConfig, d engine.CallDiagnosis) {
	fmt.Printf("%s %s\n",
		output.StyleHeader.Render(d.Operation),
		output.StyleMuted.Render(fmt.Sprintf("call %s · %s · %s", d.CallID, d.ModelName, output.FormatCurrency(d.TotalCost))))
	fmt.Printf("  ratio %s · system %s · history %s\n",
		output.StyleBold.Render(output.FormatRatio(d.Normalized.Ratio)),
		output.FormatPercent(d.Normalized.Breakdown.SystemPercent),
		output.FormatPercent(d.Normalized.Breakdown.HistoryPercent))

	if len(d.Factors) == 0 {
		fmt.Printf("  %s no factors detected\n", output.StyleOK.Render("✓"))
		return
	}

	for _, f := range d.Factors {
		fmt.Printf("  %s %s\n", output.SeverityBadge(f.Severity), output.StyleBold.Render(f.Label))
		fmt.Printf("    %s\n", f.Description)
	}

	for _, fix := range d.Fixes {
		marker := " "
		if fix.Recommended {
			marker = output.StyleOK.Render("★")
		}
		fmt.Printf("  %s %s %s\n", marker, output.StyleBold.Render(fix.Title),
			output.StyleMuted.Render(fmt.Sprintf("(%s effort)", fix.Effort)))
		for _, m := range fix.Metrics {
			fmt.Printf("      %-22s %s → %s  %s\n",
				m.Label,
				formatFixValue(m.Label, m.Before),
				formatFixValue(m.Label, m.After),
				output.FormatChange(m.ChangePercent, lowerIsBetter(m.Label)))
		}
	}
}

// formatFixValue picks the renderer for a fix metric row from its label.
func formatFixValue(label string, v float64) string {
	switch label {
	case "Ratio":
		return output.FormatRatio(v)
	case "Cost per call":
		return output.FormatCurrency(v)
	case "User share (%)":
		return output.FormatPercent(v)
	default:
		return output.FormatTokens(v)
	}
}

// lowerIsBetter reports the improvement direction for a fix metric row.
// Output-side counts should grow; everything else should shrink.
func lowerIsBetter(label string) bool {
	switch label {
	case "Completion tokens", "Output cap", "User share (%)":
		return false
	default:
		return true
	}
}
