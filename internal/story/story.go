// Package story defines the per-axis configurations that parameterize the
// diagnostic engine: thresholds, rule lists, and fix templates for each of
// the seven analysis axes. Configurations are built once at startup,
// validated, and never mutated afterwards.
package story

import (
	"fmt"

	"github.com/blackwell-systems/tokentriage/internal/engine"
)

// All returns every story configuration in display order. The token
// balance story leads; it is the most fully developed axis.
func All() []engine.StoryConfig {
	return []engine.StoryConfig{
		TokenBalance(),
		PromptComposition(),
		Cost(),
		Cache(),
		Latency(),
		Routing(),
		Quality(),
	}
}

// ByID returns the configuration for the given story id.
func ByID(id string) (engine.StoryConfig, error) {
	for _, cfg := range All() {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return engine.StoryConfig{}, fmt.Errorf("unknown story %q", id)
}

// ApplyOverrides merges config-file threshold overrides into the given
// stories. Unknown story ids or threshold keys are an error: a typo in an
// override should fail startup, not silently tune nothing.
func ApplyOverrides(stories []engine.StoryConfig, overrides map[string]map[string]float64) error {
	byID := make(map[string]*engine.StoryConfig, len(stories))
	for i := range stories {
		byID[stories[i].ID] = &stories[i]
	}
	for storyID, values := range overrides {
		cfg, ok := byID[storyID]
		if !ok {
			return fmt.Errorf("threshold override for unknown story %q", storyID)
		}
		for key, value := range values {
			if _, ok := cfg.Thresholds[key]; !ok {
				return fmt.Errorf("story %s: override for unknown threshold %q", storyID, key)
			}
			cfg.Thresholds[key] = value
		}
	}
	return nil
}

// Validate checks every story configuration, returning the first
// misconfiguration found. Run once at startup; a failure is fatal.
func Validate(stories []engine.StoryConfig) error {
	seen := make(map[string]bool, len(stories))
	for _, cfg := range stories {
		if seen[cfg.ID] {
			return fmt.Errorf("duplicate story id %q", cfg.ID)
		}
		seen[cfg.ID] = true
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}
