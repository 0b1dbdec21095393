package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tokentriage/internal/config"
	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/output"
	"github.com/blackwell-systems/tokentriage/internal/store"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

var (
	trackInput   string
	trackCompare bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Snapshot health scores and compare over time",
	Long: `Diagnose the input across every analysis axis and record the resulting
health scores as a snapshot in the local database. Snapshots hold scores
and KPI figures only, never per-call factors or fixes.

With --compare, shows the score delta against the previous snapshot.`,
	RunE: runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackInput, "input", "-", "Telemetry input file (JSON array or JSONL), or - for stdin")
	trackCmd.Flags().BoolVar(&trackCompare, "compare", false, "Show deltas against the previous snapshot")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	stories, err := loadStories()
	if err != nil {
		return err
	}

	loaded, err := telemetry.LoadFile(trackInput)
	if err != nil {
		return err
	}
	if len(loaded.Records) == 0 {
		return fmt.Errorf("no call records in input")
	}

	db, err := store.Open(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	snapshotID, err := db.CreateSnapshot(trackInput, appVersion)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}

	byOp := telemetry.GroupByOperation(loaded.Records)
	summaries := make([]engine.StorySummary, 0, len(stories))
	for _, cfg := range stories {
		diagnosed := make(map[string][]engine.CallDiagnosis, len(byOp))
		for op, recs := range byOp {
			diagnosed[op] = engine.DiagnoseAll(cfg, recs)
		}
		s := engine.SummarizeStory(cfg.ID, diagnosed)
		summaries = append(summaries, s)

		if err := db.InsertStoryScore(&store.StoryScore{
			SnapshotID:   snapshotID,
			Story:        s.Story,
			HealthScore:  s.HealthScore,
			Calls:        s.KPIs.Calls,
			FlaggedCalls: s.KPIs.FlaggedCalls,
			TotalCost:    s.KPIs.TotalCost,
			WastedCost:   s.KPIs.WastedCost,
		}); err != nil {
			return fmt.Errorf("recording story score: %w", err)
		}
		for _, op := range s.DetailTable {
			if err := db.InsertOperationScore(operationScore(snapshotID, s.Story, op)); err != nil {
				return fmt.Errorf("recording operation score: %w", err)
			}
		}
	}

	var deltas []store.ScoreDelta
	if trackCompare {
		previous, err := db.GetSnapshotN(2)
		if err != nil {
			return err
		}
		if previous != nil {
			deltas, err = db.CompareSnapshots(previous.ID, snapshotID)
			if err != nil {
				return err
			}
		}
	}

	if flagJSON {
		out := struct {
			SnapshotID int64                 `json:"snapshot_id"`
			Scores     []engine.StorySummary `json:"scores"`
			Deltas     []store.ScoreDelta    `json:"deltas,omitempty"`
		}{snapshotID, summaries, deltas}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("%s snapshot #%d (%d calls)\n",
		output.StyleHeader.Render("Recorded"), snapshotID, len(loaded.Records))
	fmt.Println()

	deltaByStory := make(map[string]float64, len(deltas))
	hasDelta := make(map[string]bool, len(deltas))
	for _, d := range deltas {
		deltaByStory[d.Story] = d.Delta
		hasDelta[d.Story] = true
	}

	for _, s := range summaries {
		line := fmt.Sprintf("  %-20s %s", findTitle(stories, s.Story), output.HealthBar(s.HealthScore, 20))
		if hasDelta[s.Story] {
			line += "  " + output.TrendArrow(deltaByStory[s.Story], true)
		}
		fmt.Println(line)
	}

	if trackCompare && len(deltas) == 0 {
		fmt.Println()
		fmt.Println(output.StyleMuted.Render("  no previous snapshot to compare against"))
	}
	return nil
}

// operationScore maps one operation's summary to its snapshot row.
func operationScore(snapshotID int64, story string, op engine.OperationSummary) *store.OperationScore {
	return &store.OperationScore{
		SnapshotID:    snapshotID,
		Story:         story,
		Operation:     op.Operation,
		AgentName:     op.AgentName,
		HealthScore:   op.HealthScore,
		Calls:         op.Calls,
		CriticalCalls: op.CriticalCalls,
		WarningCalls:  op.WarningCalls,
		TotalCost:     op.KPIs.TotalCost,
	}
}
