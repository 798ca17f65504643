package data_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

func TestReadPairs(t *testing.T) {
	input := "ich bin hier\ti am here\r\n\n  \ndu bist da\tyou are there\n"
	pairs, err := data.ReadPairs(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []data.Pair{
		{Source: "ich bin hier", Target: "i am here"},
		{Source: "du bist da", Target: "you are there"},
	}, pairs)
	assert.Equal(t, []string{"ich bin hier", "du bist da"}, data.Sources(pairs))
	assert.Equal(t, []string{"i am here", "you are there"}, data.Targets(pairs))
}

func TestReadPairs_Malformed(t *testing.T) {
	for _, input := range []string{
		"no tab here\n",
		"a\tb\tc\n",
		"\tonly target\n",
		"ok\tfine\nsource only\t\n",
	} {
		_, err := data.ReadPairs(strings.NewReader(input))
		assert.ErrorIs(t, err, data.ErrMalformedLine, "input %q", input)
	}

	_, err := data.ReadPairs(strings.NewReader("ok\tfine\nbroken\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestLoadPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.tsv")
	require.NoError(t, os.WriteFile(path, []byte("a b\tc d\n"), 0o600))

	pairs, err := data.LoadPairs(path)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)

	_, err = data.LoadPairs(filepath.Join(t.TempDir(), "missing.tsv"))
	assert.Error(t, err)
}

func buildVocabs(t *testing.T, pairs []data.Pair) (*tokenizer.Vocab, *tokenizer.Vocab) {
	t.Helper()
	src, err := tokenizer.BuildVocab(data.Sources(pairs), tokenizer.VocabOptions{Mode: tokenizer.ModeWord})
	require.NoError(t, err)
	tgt, err := tokenizer.BuildVocab(data.Targets(pairs), tokenizer.VocabOptions{Mode: tokenizer.ModeWord})
	require.NoError(t, err)
	return src, tgt
}

func TestEncode_FramesAndFilters(t *testing.T) {
	pairs := []data.Pair{
		{Source: "a b", Target: "x"},
		{Source: "a b c d e", Target: "x y"},
		{Source: "c", Target: "x y z w v"},
	}
	src, tgt := buildVocabs(t, pairs)

	examples, dropped, err := data.Encode(pairs, src, tgt, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, examples, 1)

	ex := examples[0]
	assert.Equal(t, []int32{src.ID("a"), src.ID("b"), tokenizer.EOSID}, ex.Source)
	assert.Equal(t, []int32{tokenizer.SOSID, tgt.ID("x"), tokenizer.EOSID}, ex.Target)

	all, dropped, err := data.Encode(pairs, src, tgt, 0)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Len(t, all, 3)
}

func TestBatcher_PadsAndReportsLengths(t *testing.T) {
	backend := cpu.New()
	examples := []data.Example{
		{Source: []int32{5, 6, 2}, Target: []int32{1, 7, 2}},
		{Source: []int32{8, 2}, Target: []int32{1, 9, 10, 2}},
		{Source: []int32{4, 4, 4, 2}, Target: []int32{1, 2}},
	}
	b, err := data.NewBatcher(examples, data.BatcherConfig{BatchSize: 2}, backend)
	require.NoError(t, err)
	assert.Equal(t, 2, b.NumBatches())

	batches := b.Epoch()
	require.Len(t, batches, 2)

	first := batches[0]
	assert.Equal(t, 2, first.Size())
	assert.Equal(t, []int{3, 2}, first.Lengths)
	assert.Equal(t, tensor.Shape{2, 3}, first.Source.Shape())
	assert.Equal(t, []int32{5, 6, 2, 8, 2, 0}, first.Source.Data())
	assert.Equal(t, []int32{1, 7, 2, 0, 1, 9, 10, 2}, first.Target.Data())
	assert.Equal(t, []int32{1, 7, 2, 1, 9, 10}, first.DecoderInput().Data())
	assert.Equal(t, []int32{7, 2, 0, 9, 10, 2}, first.Gold().Data())

	last := batches[1]
	assert.Equal(t, []int{4}, last.Lengths)
	assert.Equal(t, []int{2}, last.Indices)
}

func TestBatcher_ShuffleIsSeededAndComplete(t *testing.T) {
	backend := cpu.New()
	examples := make([]data.Example, 10)
	for i := range examples {
		examples[i] = data.Example{Source: make([]int32, i%4+1), Target: []int32{1, 2}}
	}
	cfg := data.BatcherConfig{BatchSize: 3, Shuffle: true, Seed: 42, SortByLength: true}

	order := func() []int {
		b, err := data.NewBatcher(examples, cfg, backend)
		require.NoError(t, err)
		var out []int
		for _, batch := range b.Epoch() {
			out = append(out, batch.Indices...)
		}
		return out
	}

	a, b := order(), order()
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, a)
}

func TestNewBatcher_Rejects(t *testing.T) {
	backend := cpu.New()
	_, err := data.NewBatcher(nil, data.BatcherConfig{BatchSize: -1}, backend)
	assert.Error(t, err)

	_, err = data.NewBatcher([]data.Example{{Source: nil, Target: []int32{1, 2}}}, data.BatcherConfig{}, backend)
	assert.Error(t, err)
}
