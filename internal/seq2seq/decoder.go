package seq2seq

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// DecoderOutput is the result of one decoder pass.
type DecoderOutput[B tensor.Backend] struct {
	Output    *tensor.Tensor[float32, B] // [B, T, H]
	State     nn.LSTMState[B]            // [L, B, H] each
	Attention *tensor.Tensor[float32, B] // [B, T, S], nil without attention
}

// Decoder runs a unidirectional LSTM over a whole teacher-forced target
// sequence. With attention enabled every output step is fused with its
// context vector as tanh(Combine([out; context])).
type Decoder[B tensor.Backend] struct {
	Embedding *nn.Embedding[B]
	LSTM      *nn.LSTM[B]
	Attention *BahdanauAttention[B] // nil without attention
	Combine   *nn.Sequential[B]     // Linear(2H -> H) then Tanh, nil without attention

	dropout *nn.Dropout[B]
	hidden  int
}

// NewDecoder builds a decoder from cfg.
func NewDecoder[B tensor.Backend](cfg Config, backend B, rng *rand.Rand) *Decoder[B] {
	cfg = cfg.withDefaults()
	d := &Decoder[B]{
		Embedding: nn.NewEmbedding(cfg.TgtVocabSize, cfg.HiddenSize, cfg.PaddingIdx, backend, rng),
		LSTM: nn.NewLSTM(nn.LSTMConfig{
			InputSize:  cfg.HiddenSize,
			HiddenSize: cfg.HiddenSize,
			NumLayers:  cfg.NumLayers,
			Dropout:    cfg.Dropout,
		}, backend, rng),
		dropout: nn.NewDropout(cfg.Dropout, backend, rng),
		hidden:  cfg.HiddenSize,
	}
	nn.WithPrefix("embedding", d.Embedding.Parameters())
	nn.WithPrefix("lstm", d.LSTM.Parameters())
	if cfg.Attention {
		d.Attention = NewBahdanauAttention(cfg.HiddenSize, backend, rng)
		nn.WithPrefix("attention", d.Attention.Parameters())
		d.Combine = nn.NewSequential[B](
			nn.NewLinear(2*cfg.HiddenSize, cfg.HiddenSize, backend, rng),
			nn.NewTanh[B](),
		)
		nn.WithPrefix("combine", d.Combine.Parameters())
	}
	return d
}

// Forward decodes tgt [B, T] from state, which must already be laid out for
// this decoder ([L, B, H], see nn.BridgeState). encOut [B, S, H] and
// srcLengths are only read when attention is enabled.
func (d *Decoder[B]) Forward(
	tgt *tensor.Tensor[int32, B],
	state nn.LSTMState[B],
	encOut *tensor.Tensor[float32, B],
	srcLengths []int,
) (DecoderOutput[B], error) {
	shape := tgt.Shape()
	if len(shape) != 2 {
		return DecoderOutput[B]{}, fmt.Errorf("decoder: expected [batch, time] target, got %v", shape)
	}
	layout := d.LSTM.Layout()
	if err := state.Validate(layout.Slots(), shape[0], layout.HiddenSize); err != nil {
		return DecoderOutput[B]{}, fmt.Errorf("decoder: %w", err)
	}

	embedded := d.dropout.Forward(d.Embedding.Forward(tgt))
	out, final, err := d.LSTM.Forward(embedded, &state)
	if err != nil {
		return DecoderOutput[B]{}, fmt.Errorf("decoder: %w", err)
	}

	var weights *tensor.Tensor[float32, B]
	if d.Attention != nil {
		if encOut == nil {
			return DecoderOutput[B]{}, fmt.Errorf("decoder: attention needs encoder outputs")
		}
		if err := nn.ValidateLengths(srcLengths, encOut.Shape()[0], encOut.Shape()[1]); err != nil {
			return DecoderOutput[B]{}, fmt.Errorf("decoder: %w", err)
		}
		var context *tensor.Tensor[float32, B]
		context, weights = d.Attention.Forward(out, encOut, srcLengths)
		out = d.Combine.Forward(tensor.Cat([]*tensor.Tensor[float32, B]{out, context}, 2))
	}

	return DecoderOutput[B]{
		Output:    d.dropout.Forward(out),
		State:     final,
		Attention: weights,
	}, nil
}

// Layout reports the state layout the decoder consumes and produces.
func (d *Decoder[B]) Layout() nn.StateLayout {
	return d.LSTM.Layout()
}

// Train switches dropout between training and evaluation.
func (d *Decoder[B]) Train(training bool) {
	d.dropout.Train(training)
	d.LSTM.Train(training)
}

// Parameters returns the embedding table, the LSTM weights and, with
// attention, the attention and combine weights.
func (d *Decoder[B]) Parameters() []*nn.Parameter[B] {
	params := append(d.Embedding.Parameters(), d.LSTM.Parameters()...)
	if d.Attention != nil {
		params = append(params, d.Attention.Parameters()...)
		params = append(params, d.Combine.Parameters()...)
	}
	return params
}
