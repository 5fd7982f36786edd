package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yoockh/legalmatch/internal/metrics"
)

// VertexEmbedder calls a Vertex AI text embedding publisher model.
type VertexEmbedder struct {
	client   *aiplatform.PredictionClient
	endpoint string
	opts     Options
}

func NewVertexEmbedder(ctx context.Context, projectID, location string, opts Options) (*VertexEmbedder, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("vertex embedder: project id and location are required")
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-004"
	}
	if opts.Provider == "" {
		opts.Provider = "vertex"
	}

	c, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", location)))
	if err != nil {
		return nil, err
	}

	return &VertexEmbedder{
		client:   c,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", projectID, location, opts.Model),
		opts:     opts,
	}, nil
}

func (v *VertexEmbedder) Close() error { return v.client.Close() }

func (v *VertexEmbedder) Options() Options { return v.opts }

func (v *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	instance, err := structpb.NewValue(map[string]any{"content": text})
	if err != nil {
		return nil, err
	}
	params := map[string]any{"autoTruncate": true}
	if v.opts.Dimensions > 0 {
		params["outputDimensionality"] = v.opts.Dimensions
	}
	paramsValue, err := structpb.NewValue(params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := v.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   v.endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: paramsValue,
	})
	if err != nil {
		v.observe("error", start)
		return nil, fmt.Errorf("vertex predict: %w", err)
	}

	raw, err := decodePrediction(resp.GetPredictions())
	if err != nil {
		v.observe("invalid", start)
		return nil, err
	}
	vec, err := Finalize(raw, v.opts)
	if err != nil {
		v.observe("invalid", start)
		return nil, err
	}
	v.observe("success", start)
	return vec, nil
}

func (v *VertexEmbedder) observe(status string, start time.Time) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(v.opts.Provider, v.opts.Model, status).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(v.opts.Provider, v.opts.Model).Observe(time.Since(start).Seconds())
}

// decodePrediction reads predictions[0].embeddings.values.
func decodePrediction(preds []*structpb.Value) ([]float32, error) {
	if len(preds) == 0 {
		return nil, fmt.Errorf("no predictions: %w", ErrInvalidEmbedding)
	}
	emb := preds[0].GetStructValue().GetFields()["embeddings"]
	values := emb.GetStructValue().GetFields()["values"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, fmt.Errorf("prediction has no embedding values: %w", ErrInvalidEmbedding)
	}

	out := make([]float32, len(values))
	for i, val := range values {
		n, ok := val.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("value %d is not a number: %w", i, ErrInvalidEmbedding)
		}
		out[i] = float32(n.NumberValue)
	}
	return out, nil
}
