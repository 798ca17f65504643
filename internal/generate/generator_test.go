package generate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newTranslator(t *testing.T, attention bool) *generate.Translator[testBackend] {
	t.Helper()
	src, err := tokenizer.BuildVocab([]string{"ich bin hier", "du bist da"}, tokenizer.VocabOptions{})
	require.NoError(t, err)
	tgt, err := tokenizer.BuildVocab([]string{"i am here", "you are there"}, tokenizer.VocabOptions{})
	require.NoError(t, err)

	m, err := seq2seq.NewModel(seq2seq.Config{
		SrcVocabSize: src.VocabSize(),
		TgtVocabSize: tgt.VocabSize(),
		HiddenSize:   8,
		Attention:    attention,
		Dropout:      0.5,
		Seed:         3,
	}, autodiff.New(cpu.New()))
	require.NoError(t, err)

	tr, err := generate.NewTranslator(m, src, tgt)
	require.NoError(t, err)
	return tr
}

func TestNewTranslator_VocabMismatch(t *testing.T) {
	vocab, err := tokenizer.BuildVocab([]string{"a b c"}, tokenizer.VocabOptions{})
	require.NoError(t, err)
	m, err := seq2seq.NewModel(seq2seq.Config{SrcVocabSize: 20, TgtVocabSize: 20, HiddenSize: 4}, autodiff.New(cpu.New()))
	require.NoError(t, err)

	_, err = generate.NewTranslator(m, vocab, vocab)
	assert.ErrorIs(t, err, generate.ErrVocabMismatch)
	_, err = generate.NewTranslator(m, nil, vocab)
	assert.ErrorIs(t, err, generate.ErrVocabMismatch)
}

func TestTranslate_RespectsLimits(t *testing.T) {
	tr := newTranslator(t, true)
	ctx := context.Background()

	res, err := tr.Translate(ctx, "ich bin da", generate.Config{MaxLen: 3, MinLen: 3, Sampling: generate.GreedyConfig()})
	require.NoError(t, err)

	// <eos> is suppressed until the limit, so exactly MaxLen tokens come out.
	assert.Len(t, res.IDs, 3)
	assert.Len(t, res.Tokens, 3)
	assert.Equal(t, generate.ReasonMaxLen, res.Reason)
	assert.Equal(t, []string{"ich", "bin", "da", "<eos>"}, res.Source)
	for _, id := range res.IDs {
		assert.NotContains(t, []int32{tokenizer.PadID, tokenizer.SOSID, tokenizer.EOSID}, id)
	}

	require.Len(t, res.Attention, 3)
	for _, row := range res.Attention {
		require.Len(t, row, 4)
		var sum float32
		for _, w := range row {
			sum += w
		}
		assert.InDelta(t, 1, sum, 1e-5)
	}
}

func TestTranslate_IsDeterministicWhenGreedy(t *testing.T) {
	tr := newTranslator(t, true)
	cfg := generate.Config{MaxLen: 6, Sampling: generate.GreedyConfig()}

	a, err := tr.Translate(context.Background(), "du bist hier", cfg)
	require.NoError(t, err)
	b, err := tr.Translate(context.Background(), "du bist hier", cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.LessOrEqual(t, len(a.IDs), 6)
	assert.Contains(t, []string{generate.ReasonEOS, generate.ReasonMaxLen}, a.Reason)
}

func TestTranslate_WithoutAttention(t *testing.T) {
	tr := newTranslator(t, false)
	res, err := tr.Translate(context.Background(), "ich", generate.Config{MaxLen: 2, Sampling: generate.GreedyConfig()})
	require.NoError(t, err)
	assert.Nil(t, res.Attention)
}

func TestStream_MatchesTranslate(t *testing.T) {
	tr := newTranslator(t, true)
	cfg := generate.Config{MaxLen: 5, MinLen: 2, Sampling: generate.GreedyConfig()}

	want, err := tr.Translate(context.Background(), "ich bin hier", cfg)
	require.NoError(t, err)

	ch, err := tr.Stream(context.Background(), "ich bin hier", cfg)
	require.NoError(t, err)

	var ids []int32
	var last generate.Step
	for s := range ch {
		require.NoError(t, s.Err)
		if s.TokenID != tokenizer.EOSID {
			ids = append(ids, s.TokenID)
		}
		last = s
	}
	assert.Equal(t, want.IDs, ids)
	assert.True(t, last.Done)
	assert.Equal(t, want.Reason, last.Reason)
}

func TestStream_DeliversDecodeError(t *testing.T) {
	tr := newTranslator(t, true)

	ch, err := tr.Stream(context.Background(), "ich bin hier", generate.Config{MaxLen: 0, Sampling: generate.GreedyConfig()})
	require.NoError(t, err)

	var steps []generate.Step
	for s := range ch {
		steps = append(steps, s)
	}
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Done)
	assert.Error(t, steps[0].Err)
}

func TestStream_ClosesAfterCancel(t *testing.T) {
	tr := newTranslator(t, true)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := tr.Stream(ctx, "ich bin hier", generate.Config{MaxLen: 1000, Sampling: generate.GreedyConfig()})
	require.NoError(t, err)
	cancel()
	for range ch {
	}
}

func TestTranslate_Canceled(t *testing.T) {
	tr := newTranslator(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Translate(ctx, "ich", generate.DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGreedyBatch(t *testing.T) {
	src, err := tokenizer.BuildVocab([]string{"ich bin hier", "du bist da"}, tokenizer.VocabOptions{})
	require.NoError(t, err)
	tgt, err := tokenizer.BuildVocab([]string{"i am here", "you are there"}, tokenizer.VocabOptions{})
	require.NoError(t, err)
	backend := autodiff.New(cpu.New())
	m, err := seq2seq.NewModel(seq2seq.Config{
		SrcVocabSize: src.VocabSize(), TgtVocabSize: tgt.VocabSize(), HiddenSize: 8, Attention: true, Seed: 3,
	}, backend)
	require.NoError(t, err)
	single, err := generate.NewTranslator(m, src, tgt)
	require.NoError(t, err)

	ids := []int32{src.ID("ich"), src.ID("bin"), tokenizer.EOSID}
	batch := tensor.MustFromSlice(ids, tensor.Shape{1, 3}, backend)

	got, err := generate.GreedyBatch(m, batch, []int{3}, 4)
	require.NoError(t, err)
	want, err := single.TranslateIDs(context.Background(), ids, generate.Config{MaxLen: 4, Sampling: generate.GreedyConfig()})
	require.NoError(t, err)
	assert.Equal(t, want.IDs, got[0])

	two := tensor.MustFromSlice([]int32{
		ids[0], ids[1], ids[2],
		src.ID("du"), tokenizer.EOSID, tokenizer.PadID,
	}, tensor.Shape{2, 3}, backend)
	out, err := generate.GreedyBatch(m, two, []int{3, 2}, 4)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, row := range out {
		assert.LessOrEqual(t, len(row), 4)
	}
}
