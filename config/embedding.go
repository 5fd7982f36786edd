package config

import (
	"context"

	"github.com/yoockh/legalmatch/internal/providers/embedding"
)

// NewEmbeddingProvider builds the configured model client. The returned close
// func is never nil.
func NewEmbeddingProvider(ctx context.Context, s EmbeddingSettings) (embedding.Provider, func() error, error) {
	switch s.Provider {
	case "vertex":
		v, err := embedding.NewVertexEmbedder(ctx, s.GCPProject, s.GCPLocation, s.Options())
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	default:
		return embedding.NewOpenAIEmbedder(s.APIKey, s.BaseURL, s.Options()), func() error { return nil }, nil
	}
}
