package seq2seq_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() testBackend {
	return autodiff.New(cpu.New())
}

func testConfig(attention bool) seq2seq.Config {
	return seq2seq.Config{
		SrcVocabSize: 11,
		TgtVocabSize: 13,
		HiddenSize:   8,
		NumLayers:    1,
		Attention:    attention,
		Seed:         7,
	}
}

func newModel(t *testing.T, cfg seq2seq.Config, backend testBackend) *seq2seq.Model[testBackend] {
	t.Helper()
	m, err := seq2seq.NewModel(cfg, backend)
	require.NoError(t, err)
	return m
}

// batchOf builds an int32 [len(rows), len(rows[0])] tensor.
func batchOf(backend testBackend, rows ...[]int32) *tensor.Tensor[int32, testBackend] {
	flat := make([]int32, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		flat = append(flat, r...)
	}
	return tensor.MustFromSlice(flat, tensor.Shape{len(rows), len(rows[0])}, backend)
}

// Source batch B=2, S=4 with lengths [4, 2] and target batch T=3.
func exampleBatch(backend testBackend) (src *tensor.Tensor[int32, testBackend], lengths []int, tgt *tensor.Tensor[int32, testBackend]) {
	src = batchOf(backend,
		[]int32{4, 5, 6, 7},
		[]int32{8, 9, 0, 0},
	)
	tgt = batchOf(backend,
		[]int32{1, 4, 5},
		[]int32{1, 6, 0},
	)
	return src, []int{4, 2}, tgt
}
