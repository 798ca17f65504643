// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers of the seq2seq module.
//
// The recurrent stack is built from LSTM, which runs dense or packed
// batches, plus the helpers that move its state between an encoder and a
// decoder:
//
//	backend := autodiff.New(cpu.New())
//	rng := rand.New(rand.NewSource(1))
//	lstm := nn.NewLSTM(nn.LSTMConfig{InputSize: 32, HiddenSize: 64, Bidirectional: true}, backend, rng)
//	packed, _ := nn.Pack(x, lengths)
//	out, state, _ := lstm.ForwardPacked(packed, nil)
//	dense, _ := nn.Unpack(out, maxLen, backend)
//	bridged, _ := nn.BridgeState(state, lstm.Layout())
package nn

import (
	"math/rand"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Module is a layer with a single-tensor forward pass and parameters.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter wraps t as a parameter called name.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Linear computes y = x @ W^T + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a Linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B, rng *rand.Rand) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend, rng)
}

// NewLinearNoBias creates a Linear layer without bias.
func NewLinearNoBias[B tensor.Backend](inFeatures, outFeatures int, backend B, rng *rand.Rand) *Linear[B] {
	return nn.NewLinearNoBias(inFeatures, outFeatures, backend, rng)
}

// NewLinearWithWeight creates a Linear layer over an existing [out, in]
// weight with its own zero bias, e.g. to tie an output projection to an
// embedding.
func NewLinearWithWeight[B tensor.Backend](weight *Parameter[B], backend B) *Linear[B] {
	return nn.NewLinearWithWeight(weight, backend)
}

// Embedding maps int32 ids to learned vectors.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NoPadding disables the padding row of an Embedding.
const NoPadding = nn.NoPadding

// NewEmbedding creates an embedding table. The row paddingIdx starts at
// zero and never receives a gradient.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim, paddingIdx int, backend B, rng *rand.Rand) *Embedding[B] {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, paddingIdx, backend, rng)
}

// Dropout zeroes activations with probability p in training mode.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a dropout layer.
func NewDropout[B tensor.Backend](p float32, backend B, rng *rand.Rand) *Dropout[B] {
	return nn.NewDropout(p, backend, rng)
}

// Recurrent layers.

// LSTMConfig configures an LSTM.
type LSTMConfig = nn.LSTMConfig

// LSTM is a stacked, optionally bidirectional LSTM.
type LSTM[B tensor.Backend] = nn.LSTM[B]

// LSTMCell is a single LSTM step.
type LSTMCell[B tensor.Backend] = nn.LSTMCell[B]

// NewLSTM creates a stacked LSTM.
func NewLSTM[B tensor.Backend](cfg LSTMConfig, backend B, rng *rand.Rand) *LSTM[B] {
	return nn.NewLSTM(cfg, backend, rng)
}

// LSTMState holds the hidden and cell states, [layers*directions, batch, hidden].
type LSTMState[B tensor.Backend] = nn.LSTMState[B]

// StateLayout describes the state dimensions of an LSTM.
type StateLayout = nn.StateLayout

// Recurrent state errors.
var (
	ErrStateShape     = nn.ErrStateShape
	ErrLayoutMismatch = nn.ErrLayoutMismatch
	ErrInvalidLengths = nn.ErrInvalidLengths
)

// ZeroState returns an all-zero state.
func ZeroState[B tensor.Backend](layout StateLayout, batch int, backend B) LSTMState[B] {
	return nn.ZeroState(layout, batch, backend)
}

// BridgeState concatenates the directions of every layer, turning a
// bidirectional encoder state into a unidirectional decoder state.
func BridgeState[B tensor.Backend](state LSTMState[B], layout StateLayout) (LSTMState[B], error) {
	return nn.BridgeState(state, layout)
}

// ReshapeState is BridgeState for a bidirectional state whose layout is
// implied by its shape.
func ReshapeState[B tensor.Backend](state LSTMState[B]) (LSTMState[B], error) {
	return nn.ReshapeState(state)
}

// Variable-length batches.

// PackedSequence is a batch of variable-length sequences without padding.
type PackedSequence[B tensor.Backend] = nn.PackedSequence[B]

// Pack packs x [B, T, F] by per-row lengths.
func Pack[B tensor.Backend](x *tensor.Tensor[float32, B], lengths []int) (*PackedSequence[B], error) {
	return nn.Pack(x, lengths)
}

// Unpack restores a zero-padded [B, totalLength, F] tensor and the lengths.
func Unpack[B tensor.Backend](p *PackedSequence[B], totalLength int, backend B) (*tensor.Tensor[float32, B], []int) {
	return nn.Unpack(p, totalLength, backend)
}

// SequenceMask returns a [B, maxLen] mask that is true inside each length.
func SequenceMask[B tensor.Backend](lengths []int, maxLen int, backend B) *tensor.Tensor[bool, B] {
	return nn.SequenceMask(lengths, maxLen, backend)
}

// Losses.

// CrossEntropyLoss is softmax cross entropy averaged over non-ignored targets.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// IgnoreNone disables the ignore index of CrossEntropyLoss.
const IgnoreNone = nn.IgnoreNone

// NewCrossEntropyLoss creates a loss that skips targets equal to ignoreIndex.
func NewCrossEntropyLoss[B tensor.Backend](backend B, ignoreIndex int) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend, ignoreIndex)
}

// Parameter utilities.

// StateDict maps parameter names to their tensors.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	return nn.StateDict(params)
}

// LoadStateDict copies dict into params by name.
func LoadStateDict[B tensor.Backend](params []*Parameter[B], dict map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict(params, dict)
}

// CountParameters returns the number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}
