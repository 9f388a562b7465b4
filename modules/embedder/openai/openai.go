// Package openai provides an OpenAI-compatible embedder module. It works
// with any API implementing the OpenAI embeddings interface (OpenAI,
// Mistral, Ollama, vLLM, LiteLLM, etc.) via a configurable base_url.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
	"gopkg.in/yaml.v3"
)

const maxErrorBodySize = 4096

func init() {
	core.RegisterModule(&Embedder{})
}

// Compile-time interface guards.
var (
	_ memory.Embedder   = (*Embedder)(nil)
	_ core.Configurable = (*Embedder)(nil)
	_ core.Provisioner  = (*Embedder)(nil)
	_ core.Validator    = (*Embedder)(nil)
)

// Embedder calls an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// openAI wire types for JSON serialization.

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// ModuleInfo implements core.Module.
func (e *Embedder) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "embedder.openai",
		New: func() core.Module { return &Embedder{} },
	}
}

// Configure implements core.Configurable.
func (e *Embedder) Configure(node *yaml.Node) error {
	if err := node.Decode(&e.config); err != nil {
		return err
	}
	e.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (e *Embedder) Provision(ctx *core.AppContext) error {
	e.config.defaults()
	e.logger = ctx.Logger
	e.client = &http.Client{Timeout: e.config.Timeout}

	if e.config.APIKey == "" && e.config.APIKeyEnv != "" {
		e.config.APIKey = os.Getenv(e.config.APIKeyEnv)
		if e.config.APIKey == "" {
			return fmt.Errorf("embedder.openai: environment variable %s is empty", e.config.APIKeyEnv)
		}
	}

	ctx.RegisterService("memory.embedder", e)

	e.logger.Info("openai embedder provisioned",
		"base_url", e.config.BaseURL,
		"model", e.config.Model,
	)
	return nil
}

// Validate implements core.Validator.
func (e *Embedder) Validate() error {
	return e.config.validate()
}

// Embed implements memory.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body := embeddingRequest{
		Model:      e.config.Model,
		Input:      []string{text},
		Dimensions: e.config.Dimensions,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder.openai: marshal request: %w", err)
	}

	endpoint := e.config.BaseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedder.openai: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	for k, v := range e.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("embedder.openai: request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("embedder.openai: HTTP %d: %s", resp.StatusCode, errBody)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embedder.openai: decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedder.openai: response contains no embedding")
	}
	return parsed.Data[0].Embedding, nil
}
