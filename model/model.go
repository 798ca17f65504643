// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides the LSTM encoder-decoder with optional Bahdanau
// attention.
//
// The encoder is a bidirectional LSTM over packed source batches. Its final
// state is bridged into a unidirectional decoder of the same total hidden
// size, and the generator that projects decoder outputs to target logits
// shares its weight with the decoder embedding.
//
//	backend := autodiff.New(cpu.New())
//	cfg := model.DefaultConfig()
//	cfg.SrcVocabSize, cfg.TgtVocabSize = src.VocabSize(), tgt.VocabSize()
//	m, err := model.New(cfg, backend)
//	logits, state, err := m.Forward(srcIDs, srcLengths, tgtIDs, nil)
package model

import (
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Config describes the model architecture.
type Config = seq2seq.Config

// Model is the full encoder-decoder.
type Model[B tensor.Backend] = seq2seq.Model[B]

// Encoder embeds and encodes source batches.
type Encoder[B tensor.Backend] = seq2seq.Encoder[B]

// Decoder runs the target LSTM, attending over encoder outputs.
type Decoder[B tensor.Backend] = seq2seq.Decoder[B]

// Attention is additive (Bahdanau) attention.
type Attention[B tensor.Backend] = seq2seq.BahdanauAttention[B]

// Encoded holds encoder outputs reusable across decoding steps.
type Encoded[B tensor.Backend] = seq2seq.Encoded[B]

// Output is the result of a decoding pass.
type Output[B tensor.Backend] = seq2seq.Output[B]

// Checkpoint carries what is saved next to the weights.
type Checkpoint = seq2seq.Checkpoint

// Model errors.
var (
	ErrInvalidConfig  = seq2seq.ErrInvalidConfig
	ErrHiddenSizeOdd  = seq2seq.ErrHiddenSizeOdd
	ErrInvalidLengths = seq2seq.ErrInvalidLengths
	ErrStateShape     = seq2seq.ErrStateShape
	ErrLayoutMismatch = seq2seq.ErrLayoutMismatch
)

// DefaultConfig returns a small attention model without vocabulary sizes.
func DefaultConfig() Config {
	return seq2seq.DefaultConfig()
}

// New builds a model with weights initialized from cfg.Seed.
func New[B tensor.Backend](cfg Config, backend B) (*Model[B], error) {
	return seq2seq.NewModel(cfg, backend)
}

// Save writes m and ckpt to path atomically.
func Save[B tensor.Backend](path string, m *Model[B], ckpt Checkpoint) error {
	return seq2seq.SaveCheckpoint(path, m, ckpt)
}

// Load rebuilds the model stored at path.
func Load[B tensor.Backend](path string, backend B) (*Model[B], Checkpoint, error) {
	return seq2seq.LoadCheckpoint(path, backend)
}
