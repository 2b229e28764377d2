package models

import (
	"time"

	"github.com/google/uuid"
)

// IndexSuggestion is a single index recommendation from the model, after
// validation against the schema.
type IndexSuggestion struct {
	Table    string   `json:"table"`
	Columns  []string `json:"columns"`
	Type     string   `json:"type,omitempty"`
	Verified bool     `json:"verified"`
	Warning  string   `json:"warning,omitempty"`
}

// ValidatedAnalysis is the sanitized output of the anti-hallucination
// pipeline. Confidence reflects how much was sanitized: it starts at 1.0 and
// is multiplied down by every guardrail that fires, never increasing.
type ValidatedAnalysis struct {
	Score           int               `json:"score"`
	Bottlenecks     []string          `json:"bottlenecks"`
	Recommendations []string          `json:"recommendations"`
	Indexes         []IndexSuggestion `json:"indexes,omitempty"`
	Rewrite         string            `json:"rewrite,omitempty"`
	Reasoning       string            `json:"reasoning,omitempty"`

	Confidence float64  `json:"confidence"`
	Warnings   []string `json:"warnings"`
	Guardrails []string `json:"guardrails_applied"`
	Validated  bool     `json:"validated"`

	// Metadata attached by the pipeline.
	Profile  string `json:"model_profile"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Analysis is a persisted analysis run for the recommendation history.
type Analysis struct {
	ID               uuid.UUID         `db:"id"                json:"id"`
	TenantID         uuid.UUID         `db:"tenant_id"         json:"tenant_id"`
	QueryText        string            `db:"query_text"        json:"query_text"`
	QueryFingerprint string            `db:"query_fingerprint" json:"query_fingerprint"`
	Provider         string            `db:"provider"          json:"provider"`
	Model            string            `db:"model"             json:"model"`
	Profile          string            `db:"model_profile"     json:"model_profile"`
	Score            int               `db:"score"             json:"score"`
	Confidence       float64           `db:"confidence"        json:"confidence"`
	Validated        bool              `db:"validated"         json:"validated"`
	Bottlenecks      []string          `db:"bottlenecks"       json:"bottlenecks"`
	Recommendations  []string          `db:"recommendations"   json:"recommendations"`
	Indexes          []IndexSuggestion `db:"indexes"           json:"indexes,omitempty"`
	Rewrite          string            `db:"rewrite"           json:"rewrite,omitempty"`
	Warnings         []string          `db:"warnings"          json:"warnings"`
	Guardrails       []string          `db:"guardrails"        json:"guardrails_applied"`
	CreatedAt        time.Time         `db:"created_at"        json:"created_at"`
}
