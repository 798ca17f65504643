package seq2seq_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestNewEncoder_OddHiddenSize(t *testing.T) {
	cfg := testConfig(true)
	cfg.HiddenSize = 7
	_, err := seq2seq.NewEncoder(cfg, newBackend(), rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, seq2seq.ErrHiddenSizeOdd)
}

func TestEncoder_Shapes(t *testing.T) {
	backend := newBackend()
	cfg := testConfig(true)
	cfg.NumLayers = 2
	enc, err := seq2seq.NewEncoder(cfg, backend, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	src, lengths, _ := exampleBatch(backend)
	out, state, err := enc.Forward(src, lengths)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 4, 8}, out.Shape())
	assert.Equal(t, nn.StateLayout{NumLayers: 2, NumDirections: 2, HiddenSize: 4}, enc.Layout())
	require.NoError(t, state.Validate(4, 2, 4))
}

// Tokens past a row's length must not influence anything the encoder
// returns, and padded output rows are exactly zero.
func TestEncoder_PaddingInvariance(t *testing.T) {
	backend := newBackend()
	cfg := testConfig(true)
	cfg.Dropout = 0.3
	enc, err := seq2seq.NewEncoder(cfg, backend, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	enc.Train(false)

	lengths := []int{4, 2}
	padded := batchOf(backend, []int32{4, 5, 6, 7}, []int32{8, 9, 0, 0})
	noisy := batchOf(backend, []int32{4, 5, 6, 7}, []int32{8, 9, 3, 10})

	out1, state1, err := enc.Forward(padded, lengths)
	require.NoError(t, err)
	out2, state2, err := enc.Forward(noisy, lengths)
	require.NoError(t, err)

	assert.InDeltaSlice(t, out1.Data(), out2.Data(), 1e-6)
	assert.InDeltaSlice(t, state1.H.Data(), state2.H.Data(), 1e-6)
	assert.InDeltaSlice(t, state1.C.Data(), state2.C.Data(), 1e-6)

	for s := 2; s < 4; s++ {
		for h := range 8 {
			assert.Equal(t, float32(0), out1.At(1, s, h), "s=%d h=%d", s, h)
		}
	}
}

func TestEncoder_InvalidLengths(t *testing.T) {
	backend := newBackend()
	enc, err := seq2seq.NewEncoder(testConfig(true), backend, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	src, _, _ := exampleBatch(backend)
	for _, lengths := range [][]int{{4}, {5, 2}, {0, 2}} {
		_, _, err := enc.Forward(src, lengths)
		assert.ErrorIs(t, err, seq2seq.ErrInvalidLengths, "lengths %v", lengths)
	}
}
