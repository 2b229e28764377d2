// Package deepseek implements models.AIProvider for DeepSeek's API, which
// speaks the OpenAI chat completions protocol.
package deepseek

import (
	"github.com/arjunms/sqlscope/internal/ai/openai"
	"github.com/arjunms/sqlscope/internal/config"
)

const baseURL = "https://api.deepseek.com/v1"

// NewProvider builds a DeepSeek provider. deepseek-reasoner is a reasoning
// model; the pipeline's router handles its prose-then-payload output.
func NewProvider(cfg config.DeepSeekConfig) *openai.Provider {
	return openai.NewCompatible("deepseek", baseURL, cfg.APIKey, cfg.Model)
}
