package app

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/tokentriage/internal/output"
)

var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "List the configured analysis axes and thresholds",
	Long: `List every analysis axis with its effective thresholds after config
overrides. Useful for checking what a tuned deployment actually runs.`,
	RunE: runStories,
}

func init() {
	rootCmd.AddCommand(storiesCmd)
}

func runStories(cmd *cobra.Command, args []string) error {
	stories, err := loadStories()
	if err != nil {
		return err
	}

	if flagJSON {
		type storyInfo struct {
			ID          string             `json:"id"`
			Title       string             `json:"title"`
			Description string             `json:"description"`
			Rules       []string           `json:"rules"`
			Fixes       []string           `json:"fixes"`
			Thresholds  map[string]float64 `json:"thresholds"`
		}
		infos := make([]storyInfo, 0, len(stories))
		for _, cfg := range stories {
			info := storyInfo{
				ID:          cfg.ID,
				Title:       cfg.Title,
				Description: cfg.Description,
				Thresholds:  cfg.Thresholds,
			}
			for _, r := range cfg.Rules {
				info.Rules = append(info.Rules, r.ID)
			}
			for _, f := range cfg.Fixes {
				info.Fixes = append(info.Fixes, f.ID)
			}
			infos = append(infos, info)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	for i, cfg := range stories {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s %s\n", output.StyleHeader.Render(cfg.Title), output.StyleMuted.Render("("+cfg.ID+")"))
		fmt.Printf("  %s\n", cfg.Description)
		fmt.Printf("  rules: %d · fixes: %d\n", len(cfg.Rules), len(cfg.Fixes))

		keys := make([]string, 0, len(cfg.Thresholds))
		for k := range cfg.Thresholds {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %-26s %g\n", k, cfg.Thresholds[k])
		}
	}
	return nil
}
