package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arjunms/sqlscope/pkg/models"
)

// lowConfidenceThreshold marks results an operator should review by hand.
const lowConfidenceThreshold = 0.7

// Result is the outcome of one pipeline run.
type Result struct {
	Analysis  models.ValidatedAnalysis `json:"analysis"`
	Reduction ReductionStats           `json:"schema_reduction"`
}

// Pipeline runs the full analysis flow: prune the schema context, build an
// architecture-appropriate prompt, call the provider, extract the payload,
// and validate it. Only a provider failure aborts the run; extraction and
// validation problems degrade confidence instead.
type Pipeline struct {
	provider  models.AIProvider
	pruner    *SchemaPruner
	router    *ModelRouter
	validator *Validator
}

// New creates a Pipeline around a provider.
func New(provider models.AIProvider, pruner *SchemaPruner) *Pipeline {
	return &Pipeline{
		provider:  provider,
		pruner:    pruner,
		router:    NewModelRouter(),
		validator: NewValidator(),
	}
}

// Analyze runs one query through the pipeline. The returned error is non-nil
// only when the provider call itself failed; every other problem is reflected
// in the result's confidence, warnings, and guardrails.
func (p *Pipeline) Analyze(ctx context.Context, q models.QueryContext, schema models.SchemaCatalog) (*Result, error) {
	schemaContext := p.pruner.Prune(q.QueryText, schema, q.Plan)
	reduction := p.pruner.EstimateReduction(q.QueryText, schema)

	profile := p.router.Classify(p.provider.Model())
	prompt, needsExtraction := p.router.BuildPrompt(profile, BuildBaseContext(q, schemaContext))

	req := models.CompletionRequest{Prompt: prompt, Format: models.FormatJSON}
	if needsExtraction {
		// Reasoning models emit prose before the payload; a JSON format
		// constraint would suppress the chain of thought.
		req.Format = models.FormatText
	}

	raw, err := p.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completing analysis with %s: %w", p.provider.Name(), err)
	}

	var extractionWarning string
	parsed, err := p.router.Extract(raw, profile)
	if err != nil {
		slog.Warn("failed to extract structured payload from model response",
			"provider", p.provider.Name(),
			"model", p.provider.Model(),
			"error", err,
		)
		extractionWarning = "model response contained no parsable JSON payload"
		parsed = map[string]any{}
	}

	analysis := p.validator.Validate(parsed, q.QueryText, schemaContext)
	if extractionWarning != "" {
		analysis.Warnings = append([]string{extractionWarning}, analysis.Warnings...)
	}

	analysis.Profile = string(profile)
	analysis.Provider = p.provider.Name()
	analysis.Model = p.provider.Model()

	if analysis.Confidence < lowConfidenceThreshold {
		slog.Warn("low confidence analysis",
			"confidence", analysis.Confidence,
			"guardrails", analysis.Guardrails,
			"model", p.provider.Model(),
		)
	}

	return &Result{Analysis: analysis, Reduction: reduction}, nil
}
