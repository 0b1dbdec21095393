package engine

import (
	"sort"

	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// MaxFixes caps the number of fixes returned per call.
const MaxFixes = 4

// GenerateFixes selects the applicable fix templates for the detected
// factors, builds each projection, and returns at most MaxFixes fixes.
// Ordering: the recommended fix first, then by severity of the most
// severe triggering factor, then by specificity (templates targeting
// fewer factor ids rank higher), ties keeping template order.
//
// A composite fix is synthesized via the story's CombinedFix whenever two
// or more factors are present; when it applies it is always the
// recommended, leading fix.
func GenerateFixes(cfg StoryConfig, m Metrics, rec telemetry.CallRecord, factors []Factor) []Fix {
	if len(factors) == 0 {
		return nil
	}

	present := make(map[string]bool, len(factors))
	severityOf := make(map[string]Severity, len(factors))
	for _, f := range factors {
		present[f.ID] = true
		severityOf[f.ID] = f.Severity
	}

	type candidate struct {
		fix         Fix
		severity    Severity
		specificity int
		order       int
	}

	var candidates []candidate
	for i, tmpl := range cfg.Fixes {
		severity, hit := triggerSeverity(tmpl.Targets, present, severityOf)
		if !hit {
			continue
		}
		if tmpl.Applies != nil && !tmpl.Applies(present, m, rec) {
			continue
		}
		candidates = append(candidates, candidate{
			fix:         tmpl.Build(m, rec, cfg.Thresholds),
			severity:    severity,
			specificity: len(tmpl.Targets),
			order:       i,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].severity != candidates[j].severity {
			return candidates[i].severity < candidates[j].severity
		}
		if candidates[i].specificity != candidates[j].specificity {
			return candidates[i].specificity < candidates[j].specificity
		}
		return candidates[i].order < candidates[j].order
	})

	var fixes []Fix
	if cfg.CombinedFix != nil && len(factors) >= 2 {
		if combined := cfg.CombinedFix(m, rec, factors, cfg.Thresholds); combined != nil {
			combined.Recommended = true
			fixes = append(fixes, *combined)
		}
	}

	for _, c := range candidates {
		fixes = append(fixes, c.fix)
	}

	if len(fixes) > MaxFixes {
		fixes = fixes[:MaxFixes]
	}
	if len(fixes) > 0 && !fixes[0].Recommended {
		fixes[0].Recommended = true
	}
	return fixes
}

// triggerSeverity returns the most severe factor among the template's
// targets, and whether any target fired at all.
func triggerSeverity(targets []string, present map[string]bool, severityOf map[string]Severity) (Severity, bool) {
	best := SeverityOK
	hit := false
	for _, id := range targets {
		if !present[id] {
			continue
		}
		if !hit || severityOf[id] < best {
			best = severityOf[id]
		}
		hit = true
	}
	return best, hit
}
