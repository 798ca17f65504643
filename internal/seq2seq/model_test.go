package seq2seq_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/optim"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*seq2seq.Config)
		want   error
	}{
		{"valid", func(*seq2seq.Config) {}, nil},
		{"no source vocab", func(c *seq2seq.Config) { c.SrcVocabSize = 0 }, seq2seq.ErrInvalidConfig},
		{"zero hidden", func(c *seq2seq.Config) { c.HiddenSize = 0 }, seq2seq.ErrInvalidConfig},
		{"odd hidden", func(c *seq2seq.Config) { c.HiddenSize = 9 }, seq2seq.ErrHiddenSizeOdd},
		{"negative layers", func(c *seq2seq.Config) { c.NumLayers = -1 }, seq2seq.ErrInvalidConfig},
		{"dropout one", func(c *seq2seq.Config) { c.Dropout = 1 }, seq2seq.ErrInvalidConfig},
		{"padding outside vocab", func(c *seq2seq.Config) { c.PaddingIdx = 11 }, seq2seq.ErrInvalidConfig},
		{"negative padding", func(c *seq2seq.Config) { c.PaddingIdx = -5 }, seq2seq.ErrInvalidConfig},
		{"no padding row", func(c *seq2seq.Config) { c.PaddingIdx = -1 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(true)
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := seq2seq.DefaultConfig()
	assert.Equal(t, 256, cfg.HiddenSize)
	assert.True(t, cfg.Attention)
	assert.Equal(t, 0, cfg.PaddingIdx)

	cfg.SrcVocabSize, cfg.TgtVocabSize = 10, 10
	assert.NoError(t, cfg.Validate())
}

func TestModel_GeneratorSharesEmbedding(t *testing.T) {
	m := newModel(t, testConfig(true), newBackend())

	assert.Same(t, m.Decoder.Embedding.Weight, m.Generator.Weight())
	assert.Equal(t, "decoder.embedding.weight", m.Generator.Weight().Name())
	assert.Equal(t, "generator.bias", m.Generator.Bias().Name())

	// The tied weight is listed once, so state dicts have unique names.
	seen := map[string]bool{}
	for _, p := range m.Parameters() {
		assert.False(t, seen[p.Name()], "duplicate %s", p.Name())
		seen[p.Name()] = true
	}
	assert.Len(t, m.StateDict(), len(m.Parameters()))
}

func TestModel_ForwardShapes(t *testing.T) {
	for _, attention := range []bool{true, false} {
		t.Run(map[bool]string{true: "attention", false: "plain"}[attention], func(t *testing.T) {
			backend := newBackend()
			m := newModel(t, testConfig(attention), backend)
			src, lengths, tgt := exampleBatch(backend)

			out, err := m.Run(src, lengths, tgt, nil)
			require.NoError(t, err)

			assert.Equal(t, tensor.Shape{2, 3, 13}, out.Logits.Shape())
			assert.Equal(t, tensor.Shape{1, 2, 8}, out.State.H.Shape())
			assert.Equal(t, tensor.Shape{1, 2, 8}, out.State.C.Shape())
			if attention {
				require.NotNil(t, out.Attention)
				assert.Equal(t, tensor.Shape{2, 3, 4}, out.Attention.Shape())
			} else {
				assert.Nil(t, out.Attention)
			}

			logits, state, err := m.Forward(src, lengths, tgt, nil)
			require.NoError(t, err)
			assert.Equal(t, out.Logits.Data(), logits.Data())
			assert.Equal(t, out.State.H.Data(), state.H.Data())
		})
	}
}

func TestModel_MultiLayer(t *testing.T) {
	backend := newBackend()
	cfg := testConfig(true)
	cfg.NumLayers = 2
	m := newModel(t, cfg, backend)
	src, lengths, tgt := exampleBatch(backend)

	_, state, err := m.Forward(src, lengths, tgt, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2, 8}, state.H.Shape())
}

func TestModel_ExplicitDecoderState(t *testing.T) {
	backend := newBackend()
	m := newModel(t, testConfig(true), backend)
	src, lengths, tgt := exampleBatch(backend)

	zero := nn.ZeroState(m.Decoder.Layout(), 2, backend)
	withZero, _, err := m.Forward(src, lengths, tgt, &zero)
	require.NoError(t, err)
	bridged, _, err := m.Forward(src, lengths, tgt, nil)
	require.NoError(t, err)
	assert.NotEqual(t, bridged.Data(), withZero.Data())

	// The encoder state layout is not accepted as a decoder state.
	enc, err := m.Encode(src, lengths)
	require.NoError(t, err)
	_, _, err = m.Forward(src, lengths, tgt, &enc.State)
	assert.ErrorIs(t, err, seq2seq.ErrStateShape)
}

// Decoding one token at a time from the returned state must reproduce the
// teacher-forced logits.
func TestModel_StepwiseDecodeMatchesFullDecode(t *testing.T) {
	backend := newBackend()
	m := newModel(t, testConfig(true), backend)
	m.Train(false)
	src, lengths, tgt := exampleBatch(backend)

	enc, err := m.Encode(src, lengths)
	require.NoError(t, err)
	full, err := m.Decode(enc, tgt, nil)
	require.NoError(t, err)

	var state *nn.LSTMState[testBackend]
	for step := range 3 {
		out, err := m.Decode(enc, tgt.Narrow(1, step, 1), state)
		require.NoError(t, err)
		assert.InDeltaSlice(t, full.Logits.Narrow(1, step, 1).Data(), out.Logits.Data(), 1e-5, "step %d", step)
		state = &out.State
	}
}

func TestModel_InvalidInputs(t *testing.T) {
	backend := newBackend()
	src, _, tgt := exampleBatch(backend)

	m := newModel(t, testConfig(true), backend)
	_, _, err := m.Forward(src, []int{5, 2}, tgt, nil)
	assert.ErrorIs(t, err, seq2seq.ErrInvalidLengths)

	cfg := testConfig(true)
	cfg.HiddenSize = 5
	_, err = seq2seq.NewModel(cfg, backend)
	assert.ErrorIs(t, err, seq2seq.ErrHiddenSizeOdd)
}

func TestModel_GradientsReachEveryParameter(t *testing.T) {
	backend := newBackend()
	m := newModel(t, testConfig(true), backend)
	src, lengths, tgt := exampleBatch(backend)
	targets := batchOf(backend, []int32{4, 5, 2}, []int32{6, 2, 0})

	backend.Tape().StartRecording()
	logits, _, err := m.Forward(src, lengths, tgt, nil)
	require.NoError(t, err)
	loss := nn.NewCrossEntropyLoss(backend, 0).Forward(logits, targets)
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()

	for _, p := range m.Parameters() {
		assert.Contains(t, grads, p.Tensor().Raw(), "no gradient for %s", p.Name())
	}
}

func TestModel_LearnsCopyTask(t *testing.T) {
	backend := newBackend()
	m := newModel(t, testConfig(true), backend)
	opt := optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: 0.03}, backend)
	criterion := nn.NewCrossEntropyLoss(backend, 0)

	src := batchOf(backend, []int32{4, 5, 6, 2}, []int32{7, 8, 2, 0})
	lengths := []int{4, 3}
	decIn := batchOf(backend, []int32{1, 4, 5, 6}, []int32{1, 7, 8, 0})
	targets := batchOf(backend, []int32{4, 5, 6, 2}, []int32{7, 8, 2, 0})

	step := func() float32 {
		tape := backend.Tape()
		tape.Clear()
		tape.StartRecording()
		logits, _, err := m.Forward(src, lengths, decIn, nil)
		require.NoError(t, err)
		loss := criterion.Forward(logits, targets)
		grads := autodiff.Backward(loss, backend)
		tape.StopRecording()
		tape.Clear()
		opt.Step(grads)
		return loss.Item()
	}

	first := step()
	var last float32
	for range 50 {
		last = step()
	}
	assert.Less(t, last, first*0.8, "loss went from %f to %f", first, last)
}
