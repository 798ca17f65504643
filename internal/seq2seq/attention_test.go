package seq2seq_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestBahdanauAttention_MasksPadding(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(3))
	attn := seq2seq.NewBahdanauAttention(8, backend, rng)

	query := tensor.Randn(tensor.Shape{2, 3, 8}, 1, rng, backend)
	encOut := tensor.Randn(tensor.Shape{2, 4, 8}, 1, rng, backend)
	lengths := []int{4, 2}

	context, weights := attn.Forward(query, encOut, lengths)
	assert.Equal(t, tensor.Shape{2, 3, 8}, context.Shape())
	require.Equal(t, tensor.Shape{2, 3, 4}, weights.Shape())

	for b, length := range lengths {
		for step := range 3 {
			var sum float64
			for s := range 4 {
				w := weights.At(b, step, s)
				if s >= length {
					assert.Equal(t, float32(0), w, "b=%d t=%d s=%d", b, step, s)
					continue
				}
				assert.Greater(t, w, float32(0))
				sum += float64(w)
			}
			assert.InDelta(t, 1.0, sum, 1e-5, "row b=%d t=%d", b, step)
		}
	}
}

func TestBahdanauAttention_ContextIsWeightedSum(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(5))
	attn := seq2seq.NewBahdanauAttention(4, backend, rng)

	query := tensor.Randn(tensor.Shape{1, 1, 4}, 1, rng, backend)
	encOut := tensor.Randn(tensor.Shape{1, 3, 4}, 1, rng, backend)

	context, weights := attn.Forward(query, encOut, []int{3})
	for h := range 4 {
		var want float32
		for s := range 3 {
			want += weights.At(0, 0, s) * encOut.At(0, s, h)
		}
		assert.InDelta(t, want, context.At(0, 0, h), 1e-5)
	}
}

func TestBahdanauAttention_ShapeMismatchPanics(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(1))
	attn := seq2seq.NewBahdanauAttention(4, backend, rng)

	query := tensor.Randn(tensor.Shape{2, 1, 4}, 1, rng, backend)
	encOut := tensor.Randn(tensor.Shape{2, 3, 6}, 1, rng, backend)
	assert.Panics(t, func() { attn.Forward(query, encOut, []int{3, 3}) })

	encOut = tensor.Randn(tensor.Shape{2, 3, 4}, 1, rng, backend)
	assert.Panics(t, func() { attn.Forward(query, encOut, []int{3}) })
}

func TestBahdanauAttention_Parameters(t *testing.T) {
	attn := seq2seq.NewBahdanauAttention(4, newBackend(), rand.New(rand.NewSource(1)))
	names := make([]string, 0, 3)
	for _, p := range attn.Parameters() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"ws.weight", "wh.weight", "v.weight"}, names)
}

func TestLastWeights(t *testing.T) {
	backend := newBackend()
	w := tensor.MustFromSlice([]float32{
		1, 0, 0,
		0.5, 0.5, 0,
	}, tensor.Shape{1, 2, 3}, backend)

	last := seq2seq.LastWeights(w)
	assert.Equal(t, tensor.Shape{1, 3}, last.Shape())
	assert.Equal(t, []float32{0.5, 0.5, 0}, last.Data())
}
