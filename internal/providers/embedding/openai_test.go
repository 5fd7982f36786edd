package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, vec []float32, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gte-small", body.Model)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"object": "list",
			"model":  body.Model,
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
			"usage":  map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := embeddingServer(t, []float32{3, 4, 0, 0}, http.StatusOK)
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL, Options{Model: "gte-small", Dimensions: 4, MeanPool: true, Normalize: true})

	vec, err := e.Embed(context.Background(), "I need a divorce")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
	assert.Equal(t, "openai", e.Options().Provider)
}

func TestOpenAIEmbedder_WrongDimensions(t *testing.T) {
	srv := embeddingServer(t, []float32{1, 2}, http.StatusOK)
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL, Options{Model: "gte-small", Dimensions: 4, Normalize: true})

	_, err := e.Embed(context.Background(), "contract dispute")
	assert.ErrorIs(t, err, ErrInvalidEmbedding)
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	srv := embeddingServer(t, nil, http.StatusServiceUnavailable)
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL, Options{Model: "gte-small", Dimensions: 4})

	_, err := e.Embed(context.Background(), "contract dispute")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestOpenAIEmbedder_EmptyText(t *testing.T) {
	e := NewOpenAIEmbedder("test-key", "http://127.0.0.1:1", Options{Model: "gte-small"})
	_, err := e.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}
