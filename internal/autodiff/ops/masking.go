package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// MaskedFillOp replaces masked-out elements with a constant.
// Filled positions do not depend on the input, so their gradient is zero.
type MaskedFillOp struct {
	unaryOp
	mask *tensor.RawTensor
}

// NewMaskedFillOp creates a new MaskedFillOp.
func NewMaskedFillOp(input, mask, output *tensor.RawTensor) *MaskedFillOp {
	return &MaskedFillOp{unaryOp: unaryOp{input: input, output: output}, mask: mask}
}

// Backward zeroes the gradient where the mask is false.
func (op *MaskedFillOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaskedFill(grad, op.mask, 0)}
}

// EmbeddingOp gathers rows of a [V, D] table.
type EmbeddingOp struct {
	unaryOp
	indices    *tensor.RawTensor
	paddingIdx int
}

// NewEmbeddingOp creates a new EmbeddingOp. The indices are not differentiable.
func NewEmbeddingOp(weight, indices *tensor.RawTensor, paddingIdx int, output *tensor.RawTensor) *EmbeddingOp {
	return &EmbeddingOp{
		unaryOp:    unaryOp{input: weight, output: output},
		indices:    indices,
		paddingIdx: paddingIdx,
	}
}

// Backward scatter-adds output rows into the weight gradient.
// Lookups of paddingIdx contribute nothing.
func (op *EmbeddingOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	wShape := op.input.Shape()
	dim := wShape[1]
	result := zerosLike(wShape, grad.Device())

	src, dst := grad.AsFloat32(), result.AsFloat32()
	for i, id := range op.indices.AsInt32() {
		if int(id) == op.paddingIdx {
			continue
		}
		row := dst[int(id)*dim : (int(id)+1)*dim]
		for k, v := range src[i*dim : (i+1)*dim] {
			row[k] += v
		}
	}
	return []*tensor.RawTensor{result}
}
