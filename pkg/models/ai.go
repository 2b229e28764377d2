// Package models contains shared data models used across the SQLScope codebase.
package models

import "context"

// FormatHint tells a provider how the response should be shaped.
type FormatHint string

const (
	// FormatJSON requests strict JSON output from the provider.
	FormatJSON FormatHint = "json"
	// FormatText leaves the provider free to emit prose. Used for reasoning
	// models that deliberate before their final payload.
	FormatText FormatHint = ""
)

// CompletionRequest is the input to a single provider call.
type CompletionRequest struct {
	Prompt string
	Format FormatHint
}

// AIProvider is the core interface that all LLM integrations must implement.
// Never call specific providers directly — always inject this interface.
type AIProvider interface {
	// Complete sends a prompt to the model and returns the raw response text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
	// Model returns the configured model identifier (e.g., "deepseek-r1:8b").
	Model() string
}
