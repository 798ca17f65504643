package seq2seq

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// BahdanauAttention is additive attention over encoder outputs:
//
//	score[b,t,s] = V · tanh(Wh·enc[b,s] + Ws·query[b,t])
//
// Source positions at or beyond a sequence's length score -Inf, so after
// the softmax they carry exactly zero weight.
type BahdanauAttention[B tensor.Backend] struct {
	Ws *nn.Linear[B] // Query projection [H, H]
	Wh *nn.Linear[B] // Encoder output projection [H, H]
	V  *nn.Linear[B] // Score vector [1, H]

	hidden  int
	backend B
}

// NewBahdanauAttention creates an attention module for hidden size H.
// None of its projections has a bias.
func NewBahdanauAttention[B tensor.Backend](hidden int, backend B, rng *rand.Rand) *BahdanauAttention[B] {
	a := &BahdanauAttention[B]{
		Ws:      nn.NewLinearNoBias(hidden, hidden, backend, rng),
		Wh:      nn.NewLinearNoBias(hidden, hidden, backend, rng),
		V:       nn.NewLinearNoBias(hidden, 1, backend, rng),
		hidden:  hidden,
		backend: backend,
	}
	nn.WithPrefix("ws", a.Ws.Parameters())
	nn.WithPrefix("wh", a.Wh.Parameters())
	nn.WithPrefix("v", a.V.Parameters())
	return a
}

// Forward aligns every query step with the encoder outputs.
//
// query is [B, T, H], encOut is [B, S, H] and srcLengths holds one length
// in [1, S] per batch row. Returns context vectors [B, T, H] and attention
// weights [B, T, S]; each weights row sums to 1 over its valid positions.
//
// The target steps are independent of each other, so all T rows are scored
// in one pass instead of a loop over t.
func (a *BahdanauAttention[B]) Forward(
	query, encOut *tensor.Tensor[float32, B],
	srcLengths []int,
) (context, weights *tensor.Tensor[float32, B]) {
	qs, es := query.Shape(), encOut.Shape()
	if len(qs) != 3 || len(es) != 3 || qs[0] != es[0] || qs[2] != a.hidden || es[2] != a.hidden {
		panic(fmt.Sprintf("BahdanauAttention.Forward: query %v and encoder outputs %v must be [B, T, %d] and [B, S, %d]",
			qs, es, a.hidden, a.hidden))
	}
	if len(srcLengths) != es[0] {
		panic(fmt.Sprintf("BahdanauAttention.Forward: %d lengths for batch %d", len(srcLengths), es[0]))
	}
	batch, steps, srcLen := qs[0], qs[1], es[1]

	keys := a.Wh.Forward(encOut).Unsqueeze(1)   // [B, 1, S, H]
	queries := a.Ws.Forward(query).Unsqueeze(2) // [B, T, 1, H]
	energy := keys.Add(queries).Tanh()          // [B, T, S, H]
	scores := a.V.Forward(energy).Reshape(batch, steps, srcLen)

	mask := nn.SequenceMask(srcLengths, srcLen, a.backend).Reshape(batch, 1, srcLen)
	scores = scores.MaskedFill(mask, float32(math.Inf(-1)))

	weights = scores.Softmax(2)
	context = weights.BatchMatMul(encOut)
	return context, weights
}

// Parameters returns [ws.weight, wh.weight, v.weight].
func (a *BahdanauAttention[B]) Parameters() []*nn.Parameter[B] {
	params := append([]*nn.Parameter[B]{}, a.Ws.Parameters()...)
	params = append(params, a.Wh.Parameters()...)
	return append(params, a.V.Parameters()...)
}

// LastWeights returns the final target step of weights [B, T, S] as [B, S].
func LastWeights[B tensor.Backend](weights *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := weights.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("LastWeights: expected [B, T, S], got %v", shape))
	}
	return weights.Select(1, shape[1]-1)
}
