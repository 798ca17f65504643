// Package seq2seq implements an LSTM encoder-decoder translation model with
// optional Bahdanau attention.
//
// The encoder is bidirectional and packs its input so padding never reaches
// the recurrence. Its final state is bridged into the unidirectional decoder
// by concatenating directions per layer. The output projection reuses the
// decoder embedding table as its weight.
//
//	backend := autodiff.New(cpu.New())
//	model, err := seq2seq.NewModel(cfg, backend)
//	logits, state, err := model.Forward(src, srcLengths, tgt, nil)
package seq2seq

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Encoded is the encoder side of a forward pass, reusable across decoder
// calls on the same source batch.
type Encoded[B tensor.Backend] struct {
	Output  *tensor.Tensor[float32, B] // [B, S, H]
	State   nn.LSTMState[B]            // Encoder layout
	Lengths []int
}

// Output is the full result of Model.Run.
type Output[B tensor.Backend] struct {
	Logits    *tensor.Tensor[float32, B] // [B, T, V]
	State     nn.LSTMState[B]            // Decoder state after the last step
	Attention *tensor.Tensor[float32, B] // [B, T, S], nil without attention
}

// Model chains the encoder, the state bridge, the decoder and the
// generator.
type Model[B tensor.Backend] struct {
	Encoder   *Encoder[B]
	Decoder   *Decoder[B]
	Generator *nn.Linear[B] // Weight is Decoder.Embedding.Weight

	cfg     Config
	backend B
}

// NewModel builds a model from cfg, seeding initialization with cfg.Seed.
func NewModel[B tensor.Backend](cfg Config, backend B) (*Model[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // G404: reproducible initialization

	encoder, err := NewEncoder(cfg, backend, rng)
	if err != nil {
		return nil, err
	}
	decoder := NewDecoder(cfg, backend, rng)
	if encoder.Layout().Bridged() != decoder.Layout() {
		return nil, fmt.Errorf("%w: encoder bridges to %+v, decoder expects %+v",
			ErrLayoutMismatch, encoder.Layout().Bridged(), decoder.Layout())
	}
	nn.WithPrefix("encoder", encoder.Parameters())
	nn.WithPrefix("decoder", decoder.Parameters())

	generator := nn.NewLinearWithWeight(decoder.Embedding.Weight, backend)
	nn.WithPrefix("generator", []*nn.Parameter[B]{generator.Bias()})

	return &Model[B]{
		Encoder:   encoder,
		Decoder:   decoder,
		Generator: generator,
		cfg:       cfg,
		backend:   backend,
	}, nil
}

// Forward runs the model with teacher forcing.
//
// src is [B, S] with one length per row; tgt is [B, T]. A nil decState
// starts the decoder from the bridged encoder state; otherwise decState is
// used as-is and must be shaped [L, B, H]. Returns logits [B, T, V] and the
// decoder state after the last target step.
func (m *Model[B]) Forward(
	src *tensor.Tensor[int32, B],
	srcLengths []int,
	tgt *tensor.Tensor[int32, B],
	decState *nn.LSTMState[B],
) (*tensor.Tensor[float32, B], nn.LSTMState[B], error) {
	out, err := m.Run(src, srcLengths, tgt, decState)
	if err != nil {
		return nil, nn.LSTMState[B]{}, err
	}
	return out.Logits, out.State, nil
}

// Run is Forward that also returns the attention weights.
func (m *Model[B]) Run(
	src *tensor.Tensor[int32, B],
	srcLengths []int,
	tgt *tensor.Tensor[int32, B],
	decState *nn.LSTMState[B],
) (Output[B], error) {
	enc, err := m.Encode(src, srcLengths)
	if err != nil {
		return Output[B]{}, err
	}
	return m.Decode(enc, tgt, decState)
}

// Encode runs the encoder once so that step-wise decoding can reuse it.
func (m *Model[B]) Encode(src *tensor.Tensor[int32, B], srcLengths []int) (*Encoded[B], error) {
	out, state, err := m.Encoder.Forward(src, srcLengths)
	if err != nil {
		return nil, err
	}
	return &Encoded[B]{Output: out, State: state, Lengths: srcLengths}, nil
}

// Decode runs the decoder and generator over tgt against an encoded source.
// decState follows the same rules as in Forward.
func (m *Model[B]) Decode(enc *Encoded[B], tgt *tensor.Tensor[int32, B], decState *nn.LSTMState[B]) (Output[B], error) {
	var state nn.LSTMState[B]
	if decState == nil {
		bridged, err := nn.BridgeState(enc.State, m.Encoder.Layout())
		if err != nil {
			return Output[B]{}, fmt.Errorf("bridge encoder state: %w", err)
		}
		state = bridged
	} else {
		state = *decState
	}

	dec, err := m.Decoder.Forward(tgt, state, enc.Output, enc.Lengths)
	if err != nil {
		return Output[B]{}, err
	}
	return Output[B]{
		Logits:    m.Generator.Forward(dec.Output),
		State:     dec.State,
		Attention: dec.Attention,
	}, nil
}

// Train switches every dropout layer between training and evaluation.
func (m *Model[B]) Train(training bool) {
	m.Encoder.Train(training)
	m.Decoder.Train(training)
}

// Parameters returns every trainable parameter once. The tied generator
// weight appears only as the decoder embedding.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	return nn.UniqueParameters(m.Encoder.Parameters(), m.Decoder.Parameters(), m.Generator.Parameters())
}

// StateDict maps parameter names to their tensors.
func (m *Model[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.StateDict(m.Parameters())
}

// LoadStateDict copies weights from dict into the model.
func (m *Model[B]) LoadStateDict(dict map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict(m.Parameters(), dict)
}

// Config returns the configuration the model was built with.
func (m *Model[B]) Config() Config {
	return m.cfg
}

// Backend returns the backend the model computes on.
func (m *Model[B]) Backend() B {
	return m.backend
}
