package generate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// Stop reasons reported in Step.Reason and Result.Reason.
const (
	ReasonEOS    = "eos"
	ReasonMaxLen = "max_len"
)

// ErrVocabMismatch is returned when a vocabulary does not fit the model's
// embedding tables.
var ErrVocabMismatch = errors.New("vocabulary does not match model")

// Config configures decoding.
type Config struct {
	MaxLen   int            `json:"max_len" yaml:"max_len"` // Tokens generated before giving up, <eos> excluded
	MinLen   int            `json:"min_len" yaml:"min_len"` // <eos> is suppressed until this many tokens exist
	Sampling SamplingConfig `json:"sampling" yaml:"sampling"`
}

// DefaultConfig returns greedy decoding of at most 50 tokens.
func DefaultConfig() Config {
	return Config{MaxLen: 50, Sampling: GreedyConfig()}
}

// Step is one decoding step, delivered by Stream.
type Step struct {
	Token     string    // Target unit, empty for <eos>
	TokenID   int32     // Chosen id
	Attention []float32 // Weights over the source ids, nil without attention
	Done      bool      // Last step of the translation
	Reason    string    // Stop reason when Done
	Err       error     // Decoding failed; always Done
}

// Result is a complete translation.
type Result struct {
	Text      string
	IDs       []int32     // Generated ids without <eos>
	Tokens    []string    // Target units of IDs
	Source    []string    // Units of the encoded source, <eos> included
	Attention [][]float32 // One row per decoding step, <eos> step included
	Reason    string
}

// Translator turns sentences into translations with a trained model.
type Translator[B tensor.Backend] struct {
	model  *seq2seq.Model[B]
	source *tokenizer.Vocab
	target *tokenizer.Vocab
}

// NewTranslator checks that the vocabularies fit model and switches the
// model to evaluation mode.
func NewTranslator[B tensor.Backend](model *seq2seq.Model[B], source, target *tokenizer.Vocab) (*Translator[B], error) {
	cfg := model.Config()
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: missing vocabulary", ErrVocabMismatch)
	}
	if source.VocabSize() != cfg.SrcVocabSize || target.VocabSize() != cfg.TgtVocabSize {
		return nil, fmt.Errorf("%w: vocabularies have %d/%d tokens, model expects %d/%d",
			ErrVocabMismatch, source.VocabSize(), target.VocabSize(), cfg.SrcVocabSize, cfg.TgtVocabSize)
	}
	model.Train(false)
	return &Translator[B]{model: model, source: source, target: target}, nil
}

// Translate decodes text to completion.
func (t *Translator[B]) Translate(ctx context.Context, text string, cfg Config) (Result, error) {
	src, err := data.EncodeSource(t.source, text)
	if err != nil {
		return Result{}, fmt.Errorf("encode source: %w", err)
	}
	return t.TranslateIDs(ctx, src, cfg)
}

// TranslateIDs decodes an already encoded source.
func (t *Translator[B]) TranslateIDs(ctx context.Context, src []int32, cfg Config) (Result, error) {
	res := Result{Source: make([]string, len(src))}
	for i, id := range src {
		res.Source[i] = t.source.Token(id)
	}

	err := t.generate(ctx, src, cfg, func(s Step) bool {
		if s.Attention != nil {
			res.Attention = append(res.Attention, s.Attention)
		}
		if s.TokenID != tokenizer.EOSID {
			res.IDs = append(res.IDs, s.TokenID)
			res.Tokens = append(res.Tokens, s.Token)
		}
		res.Reason = s.Reason
		return true
	})
	if err != nil {
		return Result{}, err
	}

	res.Text, err = t.target.Decode(res.IDs)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Stream decodes text in a goroutine and delivers every step. The channel is
// closed after the Done step or when ctx is canceled.
func (t *Translator[B]) Stream(ctx context.Context, text string, cfg Config) (<-chan Step, error) {
	src, err := data.EncodeSource(t.source, text)
	if err != nil {
		return nil, fmt.Errorf("encode source: %w", err)
	}

	ch := make(chan Step, 1)
	go func() {
		defer close(ch)
		err := t.generate(ctx, src, cfg, func(s Step) bool {
			select {
			case ch <- s:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			select {
			case ch <- Step{Done: true, Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// generate is the decoding loop. callback returning false stops it early.
func (t *Translator[B]) generate(ctx context.Context, src []int32, cfg Config, callback func(Step) bool) error {
	if len(src) == 0 {
		return errors.New("empty source")
	}
	if cfg.MaxLen <= 0 {
		return fmt.Errorf("max length must be positive, got %d", cfg.MaxLen)
	}

	backend := t.model.Backend()
	srcTensor := tensor.MustFromSlice(append([]int32(nil), src...), tensor.Shape{1, len(src)}, backend)
	enc, err := t.model.Encode(srcTensor, []int{len(src)})
	if err != nil {
		return err
	}

	sampler := NewSampler(cfg.Sampling, tokenizer.PadID, tokenizer.SOSID)
	generated := make([]int32, 0, cfg.MaxLen)
	prev := tokenizer.SOSID
	var state *nn.LSTMState[B]

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		in := tensor.MustFromSlice([]int32{prev}, tensor.Shape{1, 1}, backend)
		out, err := t.model.Decode(enc, in, state)
		if err != nil {
			return err
		}
		state = &out.State

		logits := out.Logits.Data()
		if len(generated) < cfg.MinLen {
			logits = append([]float32(nil), logits...)
			logits[tokenizer.EOSID] = float32(math.Inf(-1))
		}
		id := sampler.Sample(logits, generated)

		step := Step{TokenID: id}
		if out.Attention != nil {
			step.Attention = append([]float32(nil), seq2seq.LastWeights(out.Attention).Data()...)
		}
		switch {
		case id == tokenizer.EOSID:
			step.Done, step.Reason = true, ReasonEOS
		default:
			step.Token = t.target.Token(id)
			generated = append(generated, id)
			if len(generated) >= cfg.MaxLen {
				step.Done, step.Reason = true, ReasonMaxLen
			}
		}

		if !callback(step) || step.Done {
			return nil
		}
		prev = id
	}
}

// GreedyBatch decodes a whole source batch by argmax, the way validation
// scores a model. Rows stop at <eos> or after maxLen tokens; the returned
// ids exclude <eos>. The model should be in evaluation mode.
func GreedyBatch[B tensor.Backend](
	model *seq2seq.Model[B],
	src *tensor.Tensor[int32, B],
	lengths []int,
	maxLen int,
) ([][]int32, error) {
	enc, err := model.Encode(src, lengths)
	if err != nil {
		return nil, err
	}

	batch := len(lengths)
	out := make([][]int32, batch)
	finished := make([]bool, batch)
	remaining := batch
	prev := make([]int32, batch)
	for i := range prev {
		prev[i] = tokenizer.SOSID
	}
	sampler := NewSampler(GreedyConfig(), tokenizer.PadID, tokenizer.SOSID)

	var state *nn.LSTMState[B]
	for step := 0; step < maxLen && remaining > 0; step++ {
		in := tensor.MustFromSlice(append([]int32(nil), prev...), tensor.Shape{batch, 1}, model.Backend())
		dec, err := model.Decode(enc, in, state)
		if err != nil {
			return nil, err
		}
		state = &dec.State

		logits := dec.Logits.Data()
		vocab := len(logits) / batch
		for row := range batch {
			if finished[row] {
				prev[row] = tokenizer.PadID
				continue
			}
			id := sampler.Sample(logits[row*vocab:(row+1)*vocab], nil)
			prev[row] = id
			if id == tokenizer.EOSID {
				finished[row] = true
				remaining--
				continue
			}
			out[row] = append(out[row], id)
		}
	}
	return out, nil
}
