package app

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/output"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

var (
	reportInput string
	reportStory string
	reportDays  int
	reportAgent string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Roll diagnostics into operation and story summaries",
	Long: `Diagnose every call in the input and aggregate the results into
per-operation and per-story summaries: a 0-100 health score, the top
offender, and KPI tiles.

With --story, reports a single axis in detail. Without it, reports the
health of every axis.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportInput, "input", "-", "Telemetry input file (JSON array or JSONL), or - for stdin")
	reportCmd.Flags().StringVar(&reportStory, "story", "", "Report a single analysis axis")
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "Limit to calls from the last N days (0 = all)")
	reportCmd.Flags().StringVar(&reportAgent, "agent", "", "Limit to calls from one agent")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	stories, err := loadStories()
	if err != nil {
		return err
	}
	if reportStory != "" {
		cfg, err := findStory(stories, reportStory)
		if err != nil {
			return err
		}
		stories = []engine.StoryConfig{cfg}
	}

	loaded, err := telemetry.LoadFile(reportInput)
	if err != nil {
		return err
	}
	records := loaded.Records
	if reportDays > 0 {
		since := time.Now().AddDate(0, 0, -reportDays)
		records = telemetry.FilterByTime(records, since, time.Time{})
	}
	records = telemetry.FilterByAgent(records, reportAgent)

	if len(records) == 0 {
		return fmt.Errorf("no call records in input after filtering")
	}

	// Every call's diagnosis is independent, so operations fan out
	// across goroutines and only the summary map is shared.
	byOp := telemetry.GroupByOperation(records)
	summaries := make([]engine.StorySummary, len(stories))
	for i, cfg := range stories {
		var mu sync.Mutex
		diagnosed := make(map[string][]engine.CallDiagnosis, len(byOp))
		var g errgroup.Group
		for op, recs := range byOp {
			g.Go(func() error {
				diags := engine.DiagnoseAll(cfg, recs)
				mu.Lock()
				diagnosed[op] = diags
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		summaries[i] = engine.SummarizeStory(cfg.ID, diagnosed)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(summaries) == 1 {
			return enc.Encode(summaries[0])
		}
		return enc.Encode(summaries)
	}

	for i, s := range summaries {
		if i > 0 {
			fmt.Println()
		}
		printStorySummary(findTitle(stories, s.Story), s)
	}
	return nil
}

func findTitle(stories []engine.StoryConfig, id string) string {
	for _, cfg := range stories {
		if cfg.ID == id {
			return cfg.Title
		}
	}
	return id
}

func printStorySummary(title string, s engine.StorySummary) {
	fmt.Printf("%s  %s\n", output.StyleHeader.Render(title), output.HealthBar(s.HealthScore, 20))

	fmt.Printf("  calls %d · flagged %d · imbalanced ops %d · avg ratio %s · worst %s · spend %s · wasted %s\n",
		s.KPIs.Calls,
		s.KPIs.FlaggedCalls,
		s.KPIs.ImbalancedOps,
		output.FormatRatio(s.KPIs.AvgRatio),
		output.FormatRatio(s.KPIs.WorstRatio),
		output.FormatCurrency(s.KPIs.TotalCost),
		output.FormatCurrency(s.KPIs.WastedCost))

	if s.TopOffender != nil {
		fmt.Printf("  top offender: %s (%d critical, %d warning across %d calls, %s)\n",
			output.StyleBold.Render(s.TopOffender.Operation),
			s.TopOffender.Criticals, s.TopOffender.Warnings,
			s.TopOffender.Calls, output.FormatCurrency(s.TopOffender.TotalCost))
	}

	if len(s.DetailTable) == 0 {
		return
	}
	table := output.NewTable("OPERATION", "HEALTH", "CALLS", "CRIT", "WARN", "COST")
	for _, op := range s.DetailTable {
		table.AddRow(
			op.Operation,
			fmt.Sprintf("%.0f", op.HealthScore),
			fmt.Sprintf("%d", op.Calls),
			fmt.Sprintf("%d", op.CriticalCalls),
			fmt.Sprintf("%d", op.WarningCalls),
			output.FormatCurrency(op.KPIs.TotalCost),
		)
	}
	fmt.Print(indent(table.Render(), "  "))
}

// indent prefixes every non-empty line of s.
func indent(s, prefix string) string {
	var out []byte
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 {
				out = append(out, prefix...)
				out = append(out, line...)
			}
			if i < len(s) {
				out = append(out, '\n')
			}
			start = i + 1
		}
	}
	return string(out)
}
