package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidEmbedding = errors.New("invalid embedding generated")
	ErrEmptyText        = errors.New("text to embed is empty")
)

// Provider turns text into a fixed-length vector.
// The indexer and the search service must share one Provider configuration,
// otherwise stored and query vectors are not comparable.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Options() Options
}

// Options identifies how vectors are produced.
// MeanPool records the pooling the model server applies; Normalize is enforced
// client side so every returned vector has unit length.
type Options struct {
	Provider   string
	Model      string
	Dimensions int
	MeanPool   bool
	Normalize  bool
}

// Fingerprint is stored next to every vector so a model change is detectable.
func (o Options) Fingerprint() string {
	pool := "cls"
	if o.MeanPool {
		pool = "mean"
	}
	norm := "raw"
	if o.Normalize {
		norm = "norm"
	}
	return fmt.Sprintf("%s/%d/%s/%s", o.Model, o.Dimensions, pool, norm)
}

// Validate rejects vectors that are empty, of the wrong width, or not finite.
// dims <= 0 skips the width check.
func Validate(vec []float32, dims int) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector: %w", ErrInvalidEmbedding)
	}
	if dims > 0 && len(vec) != dims {
		return fmt.Errorf("expected %d dimensions, got %d: %w", dims, len(vec), ErrInvalidEmbedding)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite value at %d: %w", i, ErrInvalidEmbedding)
		}
	}
	return nil
}

// Normalize scales vec to unit length. A zero vector cannot be normalized.
func Normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, fmt.Errorf("zero vector: %w", ErrInvalidEmbedding)
	}
	mag := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / mag)
	}
	return out, nil
}

// Finalize validates a raw model output and applies the configured normalization.
func Finalize(vec []float32, o Options) ([]float32, error) {
	if err := Validate(vec, o.Dimensions); err != nil {
		return nil, err
	}
	if !o.Normalize {
		return vec, nil
	}
	return Normalize(vec)
}

// Cosine returns the cosine similarity of a and b, 0 when lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
