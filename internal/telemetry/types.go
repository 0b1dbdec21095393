// Package telemetry defines the call record contract consumed from the
// upstream telemetry API and helpers for loading and filtering batches of
// records. Nothing here is persisted; records live only for the duration
// of one diagnosis run.
package telemetry

import "time"

// CallRecord is one logged invocation of a language-model operation.
// All counter fields default to zero when absent; the diagnostic engine
// treats zero as "no signal" rather than an error.
type CallRecord struct {
	CallID    string    `json:"call_id"`
	AgentName string    `json:"agent_name"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`

	PromptTokens       int64 `json:"prompt_tokens"`
	CompletionTokens   int64 `json:"completion_tokens"`
	SystemPromptTokens int64 `json:"system_prompt_tokens"`
	UserMessageTokens  int64 `json:"user_message_tokens"`
	ChatHistoryTokens  int64 `json:"chat_history_tokens"`

	TotalCost float64 `json:"total_cost"`

	// PromptCost and CompletionCost are optional explicit per-component
	// costs. When nil, the engine estimates the split from token share.
	PromptCost     *float64 `json:"prompt_cost,omitempty"`
	CompletionCost *float64 `json:"completion_cost,omitempty"`

	// MaxTokens is the configured output cap, zero when uncapped.
	MaxTokens int64 `json:"max_tokens,omitempty"`

	ModelName string `json:"model_name"`

	// Free-text fields used only for fix illustration, never for rule
	// evaluation.
	SystemPrompt string `json:"system_prompt,omitempty"`
	ResponseText string `json:"response_text,omitempty"`

	// Signals for the latency and cache stories. Absent in older
	// telemetry rows, in which case those stories simply fire no rules.
	DurationMS          int64 `json:"duration_ms,omitempty"`
	CacheReadTokens     int64 `json:"cache_read_tokens,omitempty"`
	CacheCreationTokens int64 `json:"cache_creation_tokens,omitempty"`
}

// InputTokens returns the total billed input for the call, preferring the
// explicit sub-counts when they are populated.
func (c CallRecord) InputTokens() int64 {
	sub := c.SystemPromptTokens + c.UserMessageTokens + c.ChatHistoryTokens
	if sub > c.PromptTokens {
		return sub
	}
	return c.PromptTokens
}
