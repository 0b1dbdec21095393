package engine

import (
	"fmt"
	"sort"

	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Thresholds holds a story's named, tunable threshold constants. Rules
// reference thresholds by key; missing keys are a startup-time
// misconfiguration caught by StoryConfig.Validate, never a per-call error.
type Thresholds map[string]float64

// Value returns the threshold for key. Validate guarantees every key a
// rule declares in Needs is present, so a zero return here only happens
// for keys no rule asked for.
func (t Thresholds) Value(key string) float64 {
	return t[key]
}

// Rule is one threshold check for a story. Check returns nil when the
// rule does not fire. Rules are evaluated independently and in order;
// they are not mutually exclusive.
type Rule struct {
	ID string

	// Needs lists the threshold keys Check reads, so the configuration
	// can be validated once at load instead of panicking mid-render.
	Needs []string

	Check func(m Metrics, rec telemetry.CallRecord, th Thresholds) *Factor
}

// FixTemplate describes one candidate fix for a story.
type FixTemplate struct {
	ID string

	// Targets lists the factor ids this template addresses. The template
	// is considered when at least one target factor fired.
	Targets []string

	// Applies is an optional extra gate over the present factor set and
	// raw metric magnitudes.
	Applies func(present map[string]bool, m Metrics, rec telemetry.CallRecord) bool

	Build func(m Metrics, rec telemetry.CallRecord, th Thresholds) Fix
}

// StoryConfig parameterizes the generic pipeline for one analysis axis.
// One instance exists per story; it is built at startup, validated once,
// and never mutated afterwards.
type StoryConfig struct {
	ID          string
	Title       string
	Description string

	Thresholds Thresholds
	Rules      []Rule
	Fixes      []FixTemplate

	// Bands lists groups of threshold keys that must be strictly
	// decreasing, e.g. the severe/high/moderate ratio bands. An inverted
	// band set would make rule evaluation ambiguous.
	Bands [][]string

	// CombinedFix, when set, synthesizes a composite fix whenever two or
	// more factors are present for a call.
	CombinedFix func(m Metrics, rec telemetry.CallRecord, factors []Factor, th Thresholds) *Fix
}

// Validate checks the configuration for the misconfigurations that would
// make evaluation ambiguous: duplicate rule or fix ids, rules referencing
// undefined thresholds, and non-monotone threshold bands. It is called
// once at startup; a failure is fatal.
func (c StoryConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("story has no id")
	}

	seenRules := make(map[string]bool)
	for _, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("story %s: rule with empty id", c.ID)
		}
		if seenRules[r.ID] {
			return fmt.Errorf("story %s: duplicate rule id %q", c.ID, r.ID)
		}
		seenRules[r.ID] = true
		if r.Check == nil {
			return fmt.Errorf("story %s: rule %s has no check", c.ID, r.ID)
		}
		for _, key := range r.Needs {
			if _, ok := c.Thresholds[key]; !ok {
				return fmt.Errorf("story %s: rule %s needs undefined threshold %q", c.ID, r.ID, key)
			}
		}
	}

	seenFixes := make(map[string]bool)
	for _, f := range c.Fixes {
		if f.ID == "" {
			return fmt.Errorf("story %s: fix template with empty id", c.ID)
		}
		if seenFixes[f.ID] {
			return fmt.Errorf("story %s: duplicate fix id %q", c.ID, f.ID)
		}
		seenFixes[f.ID] = true
		if f.Build == nil {
			return fmt.Errorf("story %s: fix %s has no builder", c.ID, f.ID)
		}
		if len(f.Targets) == 0 {
			return fmt.Errorf("story %s: fix %s targets no factors", c.ID, f.ID)
		}
	}

	for _, band := range c.Bands {
		for i := 1; i < len(band); i++ {
			hi, ok := c.Thresholds[band[i-1]]
			if !ok {
				return fmt.Errorf("story %s: band references undefined threshold %q", c.ID, band[i-1])
			}
			lo, ok := c.Thresholds[band[i]]
			if !ok {
				return fmt.Errorf("story %s: band references undefined threshold %q", c.ID, band[i])
			}
			if hi <= lo {
				return fmt.Errorf("story %s: band thresholds %q (%.4g) and %q (%.4g) are not strictly decreasing",
					c.ID, band[i-1], hi, band[i], lo)
			}
		}
	}

	return nil
}

// Evaluate runs every rule in the story against the normalized metrics
// and returns the detected factors, stable-sorted by severity so critical
// factors always lead and ties keep rule order.
func Evaluate(cfg StoryConfig, m Metrics, rec telemetry.CallRecord) []Factor {
	var factors []Factor
	for _, rule := range cfg.Rules {
		if f := rule.Check(m, rec, cfg.Thresholds); f != nil {
			factors = append(factors, *f)
		}
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Severity < factors[j].Severity
	})
	return factors
}
