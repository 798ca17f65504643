// Package generate translates sentences with trained seq2seq models.
//
// Components:
//   - Translator: encodes a sentence once and decodes it step by step
//   - Sampler: greedy, temperature, top-k and top-p token selection
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/seq2seq/generate"
//	    "github.com/born-ml/seq2seq/model"
//	)
//
//	m, ckpt, err := model.Load("model.s2s", backend)
//	tr, err := generate.NewTranslator(m, ckpt.SourceVocab, ckpt.TargetVocab)
//	res, err := tr.Translate(ctx, "ich bin hier", generate.DefaultConfig())
//	fmt.Println(res.Text)
package generate

import (
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// Sampling

// SamplingConfig configures token selection.
//
// Parameters:
//   - Temperature: 0 = greedy, 1 = model distribution, >1 = flatter
//   - TopK: keep the K most likely tokens (0 = disabled)
//   - TopP: keep the smallest set with probability mass P (0 or 1 = disabled)
//   - RepeatPenalty: divide the logits of recent tokens (1 = disabled)
//   - Seed: -1 for a random seed
type SamplingConfig = generate.SamplingConfig

// Sampler picks token ids from logits.
type Sampler = generate.Sampler

// GreedyConfig returns deterministic argmax selection.
func GreedyConfig() SamplingConfig {
	return generate.GreedyConfig()
}

// NewSampler creates a sampler that never picks the banned ids.
func NewSampler(config SamplingConfig, banned ...int32) *Sampler {
	return generate.NewSampler(config, banned...)
}

// Translation

// Config configures decoding length and sampling.
type Config = generate.Config

// Step is one decoding step delivered by Translator.Stream.
type Step = generate.Step

// Result is a complete translation with its attention weights.
type Result = generate.Result

// Translator decodes sentences with a model and its vocabularies.
type Translator[B tensor.Backend] = generate.Translator[B]

// Stop reasons.
const (
	ReasonEOS    = generate.ReasonEOS
	ReasonMaxLen = generate.ReasonMaxLen
)

// ErrVocabMismatch is returned when a vocabulary does not fit the model.
var ErrVocabMismatch = generate.ErrVocabMismatch

// DefaultConfig returns greedy decoding of at most 50 tokens.
func DefaultConfig() Config {
	return generate.DefaultConfig()
}

// NewTranslator checks that the vocabularies fit model and switches it to
// evaluation mode.
func NewTranslator[B tensor.Backend](model *seq2seq.Model[B], source, target *tokenizer.Vocab) (*Translator[B], error) {
	return generate.NewTranslator(model, source, target)
}
