package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// NoPadding disables the padding row of an Embedding.
const NoPadding = -1

// Embedding maps token ids to dense vectors.
//
// The PaddingIdx row starts at zero and receives no gradient from lookups,
// so it stays zero unless something else (a tied projection) trains it.
//
//	embed := nn.NewEmbedding(vocab, 256, 0, backend, rng)
//	x := embed.Forward(ids) // [batch, seq] -> [batch, seq, 256]
type Embedding[B tensor.Backend] struct {
	Weight     *Parameter[B] // [NumEmbed, EmbedDim]
	NumEmbed   int
	EmbedDim   int
	PaddingIdx int
}

// NewEmbedding creates an Embedding with weights drawn from N(0, 1).
// Pass NoPadding for paddingIdx to disable the padding row.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim, paddingIdx int, backend B, rng *rand.Rand) *Embedding[B] {
	if paddingIdx >= numEmbeddings {
		panic(fmt.Sprintf("NewEmbedding: padding index %d out of range for %d embeddings", paddingIdx, numEmbeddings))
	}
	w := tensor.Randn(tensor.Shape{numEmbeddings, embeddingDim}, 1, rng, backend)
	if paddingIdx >= 0 {
		data := w.Data()
		clear(data[paddingIdx*embeddingDim : (paddingIdx+1)*embeddingDim])
	}
	return &Embedding[B]{
		Weight:     NewParameter("weight", w),
		NumEmbed:   numEmbeddings,
		EmbedDim:   embeddingDim,
		PaddingIdx: paddingIdx,
	}
}

// Forward looks up indices of any shape, returning [..., EmbedDim].
// Panics if any index is outside [0, NumEmbed).
func (e *Embedding[B]) Forward(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return e.Weight.Tensor().Embedding(indices, e.PaddingIdx)
}

// Parameters returns the embedding table.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}
