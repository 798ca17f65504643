package train_test

import (
	"context"
	"io"
	"log"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/optim"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/tokenizer"
	"github.com/born-ml/seq2seq/internal/train"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

var copyPairs = []data.Pair{
	{Source: "a b c", Target: "a b c"},
	{Source: "b c d", Target: "b c d"},
	{Source: "c d e", Target: "c d e"},
	{Source: "d e a", Target: "d e a"},
	{Source: "e a", Target: "e a"},
	{Source: "a c", Target: "a c"},
	{Source: "b d", Target: "b d"},
	{Source: "c e", Target: "c e"},
}

type fixture struct {
	backend  testBackend
	model    *seq2seq.Model[testBackend]
	vocab    *tokenizer.Vocab
	batcher  *data.Batcher[testBackend]
	examples []data.Example
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	backend := autodiff.New(cpu.New())

	vocab, err := tokenizer.BuildVocab(data.Sources(copyPairs), tokenizer.VocabOptions{Mode: tokenizer.ModeWord})
	require.NoError(t, err)
	examples, dropped, err := data.Encode(copyPairs, vocab, vocab, 0)
	require.NoError(t, err)
	require.Zero(t, dropped)

	cfg := seq2seq.DefaultConfig()
	cfg.SrcVocabSize = vocab.VocabSize()
	cfg.TgtVocabSize = vocab.VocabSize()
	cfg.HiddenSize = 16
	cfg.Dropout = 0
	cfg.Seed = 3
	model, err := seq2seq.NewModel(cfg, backend)
	require.NoError(t, err)

	batcher, err := data.NewBatcher(examples, data.BatcherConfig{BatchSize: 4, Shuffle: true, Seed: 1}, backend)
	require.NoError(t, err)

	return fixture{backend: backend, model: model, vocab: vocab, batcher: batcher, examples: examples}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func adam(lr float32) optim.Config {
	return optim.Config{Kind: optim.KindAdam, LR: lr}
}

func TestNew_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := train.New(f.model, train.Options{Epochs: 0, Optimizer: adam(0.01)}, nil)
	assert.Error(t, err)

	_, err = train.New(f.model, train.Options{Epochs: 1, Optimizer: optim.Config{Kind: "lbfgs"}}, nil)
	assert.Error(t, err)
}

func TestTrainStep(t *testing.T) {
	f := newFixture(t)
	tr, err := train.New(f.model, train.Options{Epochs: 1, Optimizer: adam(0.01), ClipNorm: 1}, quietLogger())
	require.NoError(t, err)

	before := f.model.StateDict()
	snapshot := make(map[string][]float32, len(before))
	for name, raw := range before {
		snapshot[name] = append([]float32(nil), raw.AsFloat32()...)
	}

	batch := f.batcher.Epoch()[0]
	loss, norm, err := tr.TrainStep(batch)
	require.NoError(t, err)
	assert.Greater(t, loss, float32(0))
	assert.False(t, math.IsNaN(norm))
	assert.Greater(t, norm, 0.0)
	assert.Equal(t, int64(1), tr.Step())
	assert.Zero(t, f.backend.GetTape().NumOps(), "tape must be cleared after a step")

	changed := 0
	for name, raw := range f.model.StateDict() {
		for i, v := range raw.AsFloat32() {
			if v != snapshot[name][i] {
				changed++
				break
			}
		}
	}
	assert.Positive(t, changed)
}

func TestFit_LossDecreases(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "best.s2s")
	tr, err := train.New(f.model, train.Options{
		Epochs:       12,
		Optimizer:    adam(0.03),
		ClipNorm:     5,
		MaxDecodeLen: 6,
		Output:       out,
	}, quietLogger())
	require.NoError(t, err)
	tr.SetVocabularies(f.vocab, f.vocab)

	valid, err := data.NewBatcher(f.examples, data.BatcherConfig{BatchSize: 8}, f.backend)
	require.NoError(t, err)

	history, err := tr.Fit(context.Background(), f.batcher, valid)
	require.NoError(t, err)
	require.Len(t, history, 12)

	first, last := history[0], history[len(history)-1]
	assert.Less(t, last.TrainLoss, first.TrainLoss)
	assert.Equal(t, 12, last.Epoch)
	assert.Equal(t, int64(12*f.batcher.NumBatches()), tr.Step())

	saved := 0
	for _, s := range history {
		assert.GreaterOrEqual(t, s.ValidErrorRate, 0.0)
		if s.Saved {
			saved++
		}
	}
	assert.Positive(t, saved)
	require.True(t, history[0].Saved, "first epoch always improves on +Inf")

	loaded, ckpt, err := seq2seq.LoadCheckpoint(out, f.backend)
	require.NoError(t, err)
	assert.Equal(t, f.model.Config(), loaded.Config())
	require.NotNil(t, ckpt.Training)
	assert.Equal(t, "adam", ckpt.Training.OptimizerType)
	assert.GreaterOrEqual(t, ckpt.Training.Epoch, 1)
	assert.NotEmpty(t, ckpt.Optimizer)
	require.NotNil(t, ckpt.SourceVocab)
	assert.Equal(t, f.vocab.Tokens(), ckpt.TargetVocab.Tokens())

	// A fresh trainer picks up the saved counters and optimizer state.
	resumed, err := train.New(loaded, train.Options{Epochs: 12, Optimizer: adam(0.03)}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, resumed.Restore(ckpt))
	assert.Equal(t, ckpt.Training.Step, resumed.Step())
}

func TestFit_WithoutValidation(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "last.s2s")
	tr, err := train.New(f.model, train.Options{Epochs: 2, Optimizer: adam(0.01), Output: out}, quietLogger())
	require.NoError(t, err)

	history, err := tr.Fit(context.Background(), f.batcher, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, s := range history {
		assert.True(t, math.IsNaN(s.ValidErrorRate))
		assert.True(t, s.Saved)
	}

	ckpt, _, err := seq2seq.ReadCheckpoint(out, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, 2, ckpt.Training.Epoch)
	assert.Equal(t, -1.0, ckpt.Training.ValidErrorRate)
}

func TestFit_EmptyValidationSavesEachEpoch(t *testing.T) {
	f := newFixture(t)
	empty, err := data.NewBatcher(nil, data.BatcherConfig{BatchSize: 4}, f.backend)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "last.s2s")
	tr, err := train.New(f.model, train.Options{Epochs: 2, Optimizer: adam(0.01), Output: out}, quietLogger())
	require.NoError(t, err)

	history, err := tr.Fit(context.Background(), f.batcher, empty)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, s := range history {
		assert.True(t, math.IsNaN(s.ValidErrorRate))
		assert.True(t, s.Saved)
	}

	ckpt, _, err := seq2seq.ReadCheckpoint(out, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, 2, ckpt.Training.Epoch)
}

func TestFit_Canceled(t *testing.T) {
	f := newFixture(t)
	tr, err := train.New(f.model, train.Options{Epochs: 3, Optimizer: adam(0.01)}, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	history, err := tr.Fit(ctx, f.batcher, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, history)
	assert.Zero(t, tr.Step())
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t)
	tr, err := train.New(f.model, train.Options{Epochs: 1, Optimizer: adam(0.01), MaxDecodeLen: 4}, quietLogger())
	require.NoError(t, err)

	loss, rate, err := tr.Evaluate(f.batcher.Epoch())
	require.NoError(t, err)
	assert.Greater(t, loss, 0.0)
	assert.GreaterOrEqual(t, rate, 0.0)

	loss, rate, err = tr.Evaluate(nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(loss))
	assert.True(t, math.IsNaN(rate))
}
