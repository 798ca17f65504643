package seq2seq

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// Config describes the model architecture.
//
// Zero values get defaults in NewModel: one layer and no dropout.
// PaddingIdx 0 is the <pad> token of tokenizer.Vocab.
type Config struct {
	SrcVocabSize int     `json:"src_vocab_size" yaml:"src_vocab_size"`
	TgtVocabSize int     `json:"tgt_vocab_size" yaml:"tgt_vocab_size"`
	HiddenSize   int     `json:"hidden_size" yaml:"hidden_size"`
	NumLayers    int     `json:"num_layers" yaml:"num_layers"`
	Dropout      float32 `json:"dropout" yaml:"dropout"`
	Attention    bool    `json:"attention" yaml:"attention"`
	PaddingIdx   int     `json:"padding_idx" yaml:"padding_idx"`
	Seed         int64   `json:"seed" yaml:"seed"`
}

// DefaultConfig returns a small attention model. Vocabulary sizes are left
// for the caller to fill in once the vocabularies are built.
func DefaultConfig() Config {
	return Config{
		HiddenSize: 256,
		NumLayers:  1,
		Dropout:    0.2,
		Attention:  true,
		PaddingIdx: int(tokenizer.PadID),
		Seed:       1,
	}
}

// Validate checks that the configuration describes a buildable model.
func (c Config) Validate() error {
	switch {
	case c.SrcVocabSize <= 0 || c.TgtVocabSize <= 0:
		return fmt.Errorf("%w: vocabulary sizes must be positive, got src=%d tgt=%d",
			ErrInvalidConfig, c.SrcVocabSize, c.TgtVocabSize)
	case c.HiddenSize <= 0:
		return fmt.Errorf("%w: hidden size must be positive, got %d", ErrInvalidConfig, c.HiddenSize)
	case c.HiddenSize%2 != 0:
		return fmt.Errorf("%w: got %d", ErrHiddenSizeOdd, c.HiddenSize)
	case c.NumLayers < 0:
		return fmt.Errorf("%w: negative layer count %d", ErrInvalidConfig, c.NumLayers)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("%w: dropout must be in [0, 1), got %v", ErrInvalidConfig, c.Dropout)
	case c.PaddingIdx < 0 && c.PaddingIdx != nn.NoPadding:
		return fmt.Errorf("%w: padding index %d is negative", ErrInvalidConfig, c.PaddingIdx)
	case c.PaddingIdx >= c.SrcVocabSize || c.PaddingIdx >= c.TgtVocabSize:
		return fmt.Errorf("%w: padding index %d outside the vocabulary", ErrInvalidConfig, c.PaddingIdx)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.NumLayers == 0 {
		c.NumLayers = 1
	}
	return c
}
