// Package ai wires up LLM providers and their shared error taxonomy.
package ai

import (
	"fmt"

	"github.com/arjunms/sqlscope/internal/ai/anthropic"
	"github.com/arjunms/sqlscope/internal/ai/deepseek"
	"github.com/arjunms/sqlscope/internal/ai/mock"
	"github.com/arjunms/sqlscope/internal/ai/ollama"
	"github.com/arjunms/sqlscope/internal/ai/openai"
	"github.com/arjunms/sqlscope/internal/config"
	"github.com/arjunms/sqlscope/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "deepseek":
		return deepseek.NewProvider(cfg.DeepSeek), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai, deepseek, anthropic, mock", cfg.Provider)
	}
}
