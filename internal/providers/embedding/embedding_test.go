package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestOptions_Fingerprint(t *testing.T) {
	o := Options{Model: "gte-small", Dimensions: 384, MeanPool: true, Normalize: true}
	assert.Equal(t, "gte-small/384/mean/norm", o.Fingerprint())

	o.MeanPool, o.Normalize = false, false
	assert.Equal(t, "gte-small/384/cls/raw", o.Fingerprint())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate([]float32{0.1, 0.2}, 2))
	require.NoError(t, Validate([]float32{0.1, 0.2, 0.3}, 0))

	assert.ErrorIs(t, Validate(nil, 2), ErrInvalidEmbedding)
	assert.ErrorIs(t, Validate([]float32{0.1}, 2), ErrInvalidEmbedding)
	assert.ErrorIs(t, Validate([]float32{float32(math.NaN()), 1}, 2), ErrInvalidEmbedding)
	assert.ErrorIs(t, Validate([]float32{float32(math.Inf(1)), 1}, 2), ErrInvalidEmbedding)
}

func TestNormalize(t *testing.T) {
	out, err := Normalize([]float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)

	_, err = Normalize([]float32{0, 0})
	assert.ErrorIs(t, err, ErrInvalidEmbedding)
}

func TestFinalize(t *testing.T) {
	out, err := Finalize([]float32{0, 2}, Options{Dimensions: 2, Normalize: true})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, out)

	raw := []float32{0, 2}
	out, err = Finalize(raw, Options{Dimensions: 2})
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	_, err = Finalize([]float32{1, 2, 3}, Options{Dimensions: 2, Normalize: true})
	assert.ErrorIs(t, err, ErrInvalidEmbedding)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
}

func TestDecodePrediction(t *testing.T) {
	pred, err := structpb.NewValue(map[string]any{
		"embeddings": map[string]any{
			"values":     []any{0.5, -0.25, 1.0},
			"statistics": map[string]any{"token_count": 3},
		},
	})
	require.NoError(t, err)

	vec, err := decodePrediction([]*structpb.Value{pred})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1.0}, vec)
}

func TestDecodePrediction_Invalid(t *testing.T) {
	_, err := decodePrediction(nil)
	assert.ErrorIs(t, err, ErrInvalidEmbedding)

	noValues, err := structpb.NewValue(map[string]any{"embeddings": map[string]any{}})
	require.NoError(t, err)
	_, err = decodePrediction([]*structpb.Value{noValues})
	assert.ErrorIs(t, err, ErrInvalidEmbedding)

	notNumbers, err := structpb.NewValue(map[string]any{
		"embeddings": map[string]any{"values": []any{"a", "b"}},
	})
	require.NoError(t, err)
	_, err = decodePrediction([]*structpb.Value{notNumbers})
	assert.ErrorIs(t, err, ErrInvalidEmbedding)
}
