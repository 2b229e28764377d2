// Package ollama implements models.AIProvider against Ollama's generate API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arjunms/sqlscope/internal/ai/aierrors"
	"github.com/arjunms/sqlscope/internal/config"
	"github.com/arjunms/sqlscope/pkg/models"
)

// Provider implements models.AIProvider using a local Ollama server.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string  { return "ollama" }
func (p *Provider) Model() string { return p.cfg.Model }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		Prompt: req.Prompt,
		Stream: false,
		Format: string(req.Format),
	})
	if err != nil {
		return "", fmt.Errorf("encoding generate request: %w", err)
	}

	u := fmt.Sprintf("%s/api/generate", p.cfg.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", aierrors.ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", aierrors.ErrProviderUnavailable, resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("%w: decoding generate response: %v", aierrors.ErrInvalidResponse, err)
	}
	if genResp.Response == "" {
		return "", fmt.Errorf("%w: empty completion", aierrors.ErrInvalidResponse)
	}

	return genResp.Response, nil
}

var _ models.AIProvider = (*Provider)(nil)
