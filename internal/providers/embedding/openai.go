package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yoockh/legalmatch/internal/metrics"
)

// OpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint, e.g. a
// text-embeddings-inference server hosting gte-small with mean pooling.
type OpenAIEmbedder struct {
	client *openai.Client
	opts   Options
}

func NewOpenAIEmbedder(apiKey, baseURL string, opts Options) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if opts.Provider == "" {
		opts.Provider = "openai"
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), opts: opts}
}

func (e *OpenAIEmbedder) Options() Options { return e.opts }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.opts.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		e.observe("error", start)
		return nil, parseAPIError(err)
	}
	if len(resp.Data) == 0 {
		e.observe("error", start)
		return nil, fmt.Errorf("empty embedding response: %w", ErrInvalidEmbedding)
	}

	vec, err := Finalize(resp.Data[0].Embedding, e.opts)
	if err != nil {
		e.observe("invalid", start)
		return nil, err
	}
	e.observe("success", start)
	return vec, nil
}

func (e *OpenAIEmbedder) observe(status string, start time.Time) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.opts.Provider, e.opts.Model, status).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.opts.Provider, e.opts.Model).Observe(time.Since(start).Seconds())
}

// parseAPIError keeps the server's explanation, which is usually the useful part.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s", reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("embedding API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("embedding request failed: %w", err)
}

func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error
}
