// Package anthropic implements models.AIProvider using the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"

	anthropicsdk "github.com/liushuangls/go-anthropic/v2"

	"github.com/arjunms/sqlscope/internal/ai/aierrors"
	"github.com/arjunms/sqlscope/internal/config"
	"github.com/arjunms/sqlscope/pkg/models"
)

const maxTokens = 4096

// Provider implements models.AIProvider using Anthropic.
type Provider struct {
	cfg    config.AnthropicConfig
	client *anthropicsdk.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: anthropicsdk.NewClient(cfg.APIKey),
	}
}

func (p *Provider) Name() string  { return "anthropic" }
func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	prompt := req.Prompt
	if req.Format == models.FormatJSON {
		// The Messages API has no JSON response mode; lean on the prompt.
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}

	resp, err := p.client.CreateMessages(ctx, anthropicsdk.MessagesRequest{
		Model:     anthropicsdk.Model(p.cfg.Model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.Message{
			anthropicsdk.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", aierrors.ClassifyError(err)
	}

	for _, block := range resp.Content {
		if block.Type == anthropicsdk.MessagesContentTypeText && block.Text != nil {
			return *block.Text, nil
		}
	}

	return "", fmt.Errorf("%w: no text content in message", aierrors.ErrInvalidResponse)
}

var _ models.AIProvider = (*Provider)(nil)
