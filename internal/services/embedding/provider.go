// Package embedding turns text into vectors and memoizes the transform,
// which is both a latency and a cost optimization: the same vector
// feeds semantic cache keying and similarity search.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/advisorai/admission-gate/internal/models"

	"github.com/openai/openai-go/v2"
	openaiOption "github.com/openai/openai-go/v2/option"
)

// Provider is the text-to-vector transform.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type openAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIProvider builds an embedding provider on the OpenAI API (or
// any compatible endpoint via base_url).
func NewOpenAIProvider(cfg models.EmbeddingConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not configured")
	}

	opts := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openaiOption.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutMs > 0 {
		httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond}
		opts = append(opts, openaiOption.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	return &openAIProvider{
		client: &client,
		model:  openai.EmbeddingModel(model),
	}, nil
}

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	raw := resp.Data[0].Embedding
	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}
	return vector, nil
}
