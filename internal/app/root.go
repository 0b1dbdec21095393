// Package app contains the Cobra command tree for tokentriage.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tokentriage/internal/config"
	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/output"
	"github.com/blackwell-systems/tokentriage/internal/story"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "tokentriage",
	Short: "Diagnostics for LLM call telemetry",
	Long: `tokentriage runs diagnostic rules over LLM call telemetry. It normalizes
per-call token and cost metrics, detects issues across seven analysis axes
(token balance, prompt composition, cost, cache reuse, latency, routing,
output quality), recommends quantified fixes, and rolls results up into
per-operation health scores.

Telemetry is read from a JSON array or JSONL stream of call records;
nothing is fetched and nothing but track snapshots is stored.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("tokentriage", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  diagnose  Run per-call diagnostics and show factors and fixes")
		fmt.Println("  report    Roll diagnostics into operation and story summaries")
		fmt.Println("  stories   List the configured analysis axes and thresholds")
		fmt.Println("  track     Snapshot health scores and compare over time")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/tokentriage/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")

	cobra.OnInitialize(func() {
		if flagNoColor {
			output.SetNoColor(true)
		}
		output.AutoDetect()
	})
}

// loadStories loads the config file, applies threshold overrides to the
// built-in story set, and validates the result. An invalid configuration
// is fatal here, before any diagnostics run.
func loadStories() ([]engine.StoryConfig, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Output.Color {
		output.SetNoColor(true)
	}

	stories := story.All()
	if err := story.ApplyOverrides(stories, cfg.Stories); err != nil {
		return nil, fmt.Errorf("applying threshold overrides: %w", err)
	}
	if err := story.Validate(stories); err != nil {
		return nil, fmt.Errorf("invalid story configuration: %w", err)
	}
	return stories, nil
}

// findStory resolves a story id within a loaded set.
func findStory(stories []engine.StoryConfig, id string) (engine.StoryConfig, error) {
	for _, cfg := range stories {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return engine.StoryConfig{}, fmt.Errorf("unknown story %q", id)
}
