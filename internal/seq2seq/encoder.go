package seq2seq

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Encoder embeds a padded source batch and runs a bidirectional LSTM over
// it. Each direction has HiddenSize/2 units, so the concatenated outputs
// are HiddenSize wide.
//
// The batch is packed before the recurrence, so padding tokens never reach
// the LSTM and every sequence's final state is taken at its own last token.
type Encoder[B tensor.Backend] struct {
	Embedding *nn.Embedding[B]
	LSTM      *nn.LSTM[B]

	dropout *nn.Dropout[B]
	hidden  int
	backend B
}

// NewEncoder builds an encoder from cfg. The hidden size must be even.
func NewEncoder[B tensor.Backend](cfg Config, backend B, rng *rand.Rand) (*Encoder[B], error) {
	cfg = cfg.withDefaults()
	if cfg.HiddenSize <= 0 || cfg.HiddenSize%2 != 0 {
		return nil, fmt.Errorf("encoder: %w: got %d", ErrHiddenSizeOdd, cfg.HiddenSize)
	}
	e := &Encoder[B]{
		Embedding: nn.NewEmbedding(cfg.SrcVocabSize, cfg.HiddenSize, cfg.PaddingIdx, backend, rng),
		LSTM: nn.NewLSTM(nn.LSTMConfig{
			InputSize:     cfg.HiddenSize,
			HiddenSize:    cfg.HiddenSize / 2,
			NumLayers:     cfg.NumLayers,
			Bidirectional: true,
			Dropout:       cfg.Dropout,
		}, backend, rng),
		dropout: nn.NewDropout(cfg.Dropout, backend, rng),
		hidden:  cfg.HiddenSize,
		backend: backend,
	}
	nn.WithPrefix("embedding", e.Embedding.Parameters())
	nn.WithPrefix("lstm", e.LSTM.Parameters())
	return e, nil
}

// Forward encodes src [B, S] with one length per row.
//
// Returns outputs [B, S, H], zero at every position at or beyond a row's
// length, and the final state laid out as Layout reports.
func (e *Encoder[B]) Forward(src *tensor.Tensor[int32, B], lengths []int) (*tensor.Tensor[float32, B], nn.LSTMState[B], error) {
	shape := src.Shape()
	if len(shape) != 2 {
		return nil, nn.LSTMState[B]{}, fmt.Errorf("encoder: expected [batch, time] source, got %v", shape)
	}
	if err := nn.ValidateLengths(lengths, shape[0], shape[1]); err != nil {
		return nil, nn.LSTMState[B]{}, fmt.Errorf("encoder: %w", err)
	}

	embedded := e.dropout.Forward(e.Embedding.Forward(src))
	packed, err := nn.Pack(embedded, lengths)
	if err != nil {
		return nil, nn.LSTMState[B]{}, fmt.Errorf("encoder: %w", err)
	}
	out, state, err := e.LSTM.ForwardPacked(packed, nil)
	if err != nil {
		return nil, nn.LSTMState[B]{}, fmt.Errorf("encoder: %w", err)
	}
	dense, _ := nn.Unpack(out, shape[1], e.backend)
	return e.dropout.Forward(dense), state, nil
}

// Layout reports the layout of the final state: NumLayers layers, two
// directions of HiddenSize/2.
func (e *Encoder[B]) Layout() nn.StateLayout {
	return e.LSTM.Layout()
}

// HiddenSize returns the width of the encoder outputs.
func (e *Encoder[B]) HiddenSize() int {
	return e.hidden
}

// Train switches dropout between training and evaluation.
func (e *Encoder[B]) Train(training bool) {
	e.dropout.Train(training)
	e.LSTM.Train(training)
}

// Parameters returns the embedding table followed by the LSTM weights.
func (e *Encoder[B]) Parameters() []*nn.Parameter[B] {
	return append(e.Embedding.Parameters(), e.LSTM.Parameters()...)
}
