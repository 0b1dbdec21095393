package story

import (
	"fmt"

	"github.com/blackwell-systems/tokentriage/internal/engine"
	"github.com/blackwell-systems/tokentriage/internal/telemetry"
)

// Cache threshold keys.
const (
	thCacheMinSystem  = "cacheable_system_tokens" // system size worth caching
	thCacheMinPrompt  = "min_prompt_tokens"       // prompts smaller than this are never flagged
	thCacheLowHit     = "low_hit_rate_pct"        // hit rate below this is low
	thCacheVeryLowHit = "very_low_hit_rate_pct"   // hit rate below this is critical
	thCacheChurnMult  = "churn_write_multiple"    // writes above this multiple of reads indicate churn
	thCacheReadDiv    = "cache_read_cost_divisor" // cached input price relative to full input price
)

// Cache analyzes prompt cache utilization for one call.
func Cache() engine.StoryConfig {
	return engine.StoryConfig{
		ID:          "cache",
		Title:       "Cache Reuse",
		Description: "Detects calls that re-bill stable context instead of reading it from cache.",
		Thresholds: engine.Thresholds{
			thCacheMinSystem:  2000,
			thCacheMinPrompt:  5000,
			thCacheLowHit:     30,
			thCacheVeryLowHit: 10,
			thCacheChurnMult:  2,
			thCacheReadDiv:    10,
		},
		Bands: [][]string{
			{thCacheLowHit, thCacheVeryLowHit},
		},
		Rules: []engine.Rule{
			{ID: "no_cache_usage", Needs: []string{thCacheMinSystem}, Check: checkNoCacheUsage},
			{ID: "low_cache_hit", Needs: []string{thCacheMinPrompt, thCacheLowHit, thCacheVeryLowHit}, Check: checkLowCacheHit},
			{ID: "cache_churn", Needs: []string{thCacheChurnMult}, Check: checkCacheChurn},
		},
		Fixes: []engine.FixTemplate{
			{
				ID:      "enable_prompt_caching",
				Targets: []string{"no_cache_usage", "low_cache_hit"},
				Build:   buildEnablePromptCaching,
			},
			{
				ID:      "stabilize_prompt_prefix",
				Targets: []string{"cache_churn", "low_cache_hit"},
				Build:   buildStabilizePrefix,
			},
		},
	}
}

// cacheHitPercent is the share of input served from cache.
func cacheHitPercent(rec telemetry.CallRecord) float64 {
	total := rec.CacheReadTokens + rec.PromptTokens
	if total == 0 {
		return 0
	}
	return float64(rec.CacheReadTokens) / float64(total) * 100
}

func checkNoCacheUsage(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.CacheReadTokens > 0 || rec.CacheCreationTokens > 0 {
		return nil
	}
	if float64(rec.SystemPromptTokens) <= th.Value(thCacheMinSystem) {
		return nil
	}
	return &engine.Factor{
		ID:       "no_cache_usage",
		Severity: engine.SeverityWarning,
		Label:    "Cacheable context not cached",
		Impact:   "A large, stable system prompt is re-billed at full price every call.",
		Description: fmt.Sprintf(
			"The call carries a %d-token system prompt and used no cache reads or writes.",
			rec.SystemPromptTokens),
		HasFix: true,
	}
}

func checkLowCacheHit(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.CacheReadTokens == 0 && rec.CacheCreationTokens == 0 {
		// The no_cache_usage rule owns the zero-usage case.
		return nil
	}
	if float64(rec.PromptTokens) < th.Value(thCacheMinPrompt) {
		return nil
	}
	hit := cacheHitPercent(rec)
	if hit >= th.Value(thCacheLowHit) {
		return nil
	}
	severity := engine.SeverityWarning
	if hit < th.Value(thCacheVeryLowHit) {
		severity = engine.SeverityCritical
	}
	return &engine.Factor{
		ID:       "low_cache_hit",
		Severity: severity,
		Label:    "Low cache hit rate",
		Impact:   "Caching is on but most input still bills at the full rate.",
		Description: fmt.Sprintf(
			"Only %.1f%% of input tokens were cache reads (%d cached vs %d full-price).",
			hit, rec.CacheReadTokens, rec.PromptTokens),
		HasFix: true,
	}
}

func checkCacheChurn(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) *engine.Factor {
	if rec.CacheCreationTokens == 0 {
		return nil
	}
	if float64(rec.CacheCreationTokens) <= float64(rec.CacheReadTokens)*th.Value(thCacheChurnMult) {
		return nil
	}
	return &engine.Factor{
		ID:       "cache_churn",
		Severity: engine.SeverityInfo,
		Label:    "Cache writes outpace reads",
		Impact:   "The cache is being rebuilt more than it is being reused.",
		Description: fmt.Sprintf(
			"%d tokens were written to cache against %d read back. A drifting prefix invalidates earlier writes.",
			rec.CacheCreationTokens, rec.CacheReadTokens),
		HasFix: true,
	}
}

func buildEnablePromptCaching(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	// Project the stable system prompt moving to cached pricing.
	div := th.Value(thCacheReadDiv)
	cacheable := float64(rec.SystemPromptTokens)
	oldPrompt := float64(rec.InputTokens())
	var newCost float64
	if oldPrompt > 0 && div > 0 {
		cachedShare := cacheable / oldPrompt
		newCost = m.Cost.InputCost*(1-cachedShare) + m.Cost.InputCost*cachedShare/div + m.Cost.OutputCost
	} else {
		newCost = rec.TotalCost
	}
	return engine.Fix{
		ID:       "enable_prompt_caching",
		Title:    "Cache the stable prompt prefix",
		Subtitle: fmt.Sprintf("Serve the %d-token system prompt from cache", rec.SystemPromptTokens),
		Effort:   engine.EffortLow,
		Metrics: []engine.FixMetric{
			costDelta(rec.TotalCost, newCost),
			tokenDelta("Full-price input tokens", oldPrompt, oldPrompt-cacheable),
		},
		CodeBefore: "messages = [\n    {\"role\": \"system\", \"content\": SYSTEM_PROMPT},\n    {\"role\": \"user\", \"content\": request},\n]",
		CodeAfter:  "messages = [\n    {\"role\": \"system\", \"content\": SYSTEM_PROMPT,\n     \"cache_control\": {\"type\": \"ephemeral\"}},\n    {\"role\": \"user\", \"content\": request},\n]",
		Tradeoffs: []string{
			"Cache writes cost slightly more than plain input; the saving needs repeat calls to materialize.",
		},
		Benefits: []string{
			"Cached input bills at a fraction of the full rate on every subsequent call.",
		},
		BestFor: "High-volume operations with a byte-stable system prompt.",
	}
}

func buildStabilizePrefix(m engine.Metrics, rec telemetry.CallRecord, th engine.Thresholds) engine.Fix {
	return engine.Fix{
		ID:       "stabilize_prompt_prefix",
		Title:    "Stabilize the cached prefix",
		Subtitle: "Move volatile content out of the cacheable prompt region",
		Effort:   engine.EffortMedium,
		Metrics: []engine.FixMetric{
			tokenDelta("Cache write tokens", float64(rec.CacheCreationTokens), float64(rec.CacheCreationTokens)/4),
		},
		CodeBefore: "# timestamp in the system prompt invalidates the cache every call\nsystem = f\"{RULES}\\nCurrent time: {now()}\"",
		CodeAfter:  "# volatile values move below the cache boundary\nsystem = RULES\nuser = f\"Current time: {now()}\\n{request}\"",
		Tradeoffs: []string{
			"Requires auditing the prompt template for anything that changes between calls.",
		},
		Benefits: []string{
			"Writes drop and reads climb once the prefix stops drifting.",
		},
		BestFor: "Operations with caching enabled but a prefix that changes on every call.",
	}
}
