package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// ReshapeOp changes the shape; the gradient is reshaped back.
type ReshapeOp struct{ unaryOp }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unaryOp{input: input, output: output}}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(grad, op.input.Shape())}
}

// TransposeOp permutes dimensions; the gradient takes the inverse permutation.
type TransposeOp struct {
	unaryOp
	axes []int
}

// NewTransposeOp creates a new TransposeOp. Empty axes mean full reversal.
func NewTransposeOp(input *tensor.RawTensor, axes []int, output *tensor.RawTensor) *TransposeOp {
	rank := len(input.Shape())
	perm := make([]int, rank)
	if len(axes) == 0 {
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	} else {
		for i, a := range axes {
			perm[i] = input.Shape().NormalizeDim(a)
		}
	}
	return &TransposeOp{unaryOp: unaryOp{input: input, output: output}, axes: perm}
}

// Backward applies the inverse permutation to the gradient.
func (op *TransposeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, a := range op.axes {
		inverse[a] = i
	}
	return []*tensor.RawTensor{backend.Transpose(grad, inverse...)}
}

// CatOp concatenates inputs along dim; each input gets its slice of the gradient.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a new CatOp.
func NewCatOp(inputs []*tensor.RawTensor, dim int, output *tensor.RawTensor) *CatOp {
	return &CatOp{
		inputs: append([]*tensor.RawTensor(nil), inputs...),
		output: output,
		dim:    output.Shape().NormalizeDim(dim),
	}
}

// Inputs returns all concatenated tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward narrows the gradient back into per-input pieces.
func (op *CatOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	start := 0
	for i, in := range op.inputs {
		size := in.Shape()[op.dim]
		grads[i] = backend.Narrow(grad, op.dim, start, size)
		start += size
	}
	return grads
}

// NarrowOp takes [start, start+length) of dim; the gradient is zero-padded back.
type NarrowOp struct {
	unaryOp
	dim, start int
}

// NewNarrowOp creates a new NarrowOp.
func NewNarrowOp(input *tensor.RawTensor, dim, start int, output *tensor.RawTensor) *NarrowOp {
	return &NarrowOp{
		unaryOp: unaryOp{input: input, output: output},
		dim:     input.Shape().NormalizeDim(dim),
		start:   start,
	}
}

// Backward pads the gradient with zeros on both sides of dim.
func (op *NarrowOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.input.Shape()
	length := grad.Shape()[op.dim]
	after := inShape[op.dim] - op.start - length

	parts := make([]*tensor.RawTensor, 0, 3)
	if op.start > 0 {
		s := inShape.Clone()
		s[op.dim] = op.start
		parts = append(parts, zerosLike(s, grad.Device()))
	}
	parts = append(parts, grad)
	if after > 0 {
		s := inShape.Clone()
		s[op.dim] = after
		parts = append(parts, zerosLike(s, grad.Device()))
	}
	if len(parts) == 1 {
		return []*tensor.RawTensor{grad}
	}
	return []*tensor.RawTensor{backend.Cat(parts, op.dim)}
}

// IndexSelectOp gathers indices along dim; the gradient is scatter-added back.
type IndexSelectOp struct {
	unaryOp
	dim     int
	indices []int
}

// NewIndexSelectOp creates a new IndexSelectOp.
func NewIndexSelectOp(input *tensor.RawTensor, dim int, indices []int, output *tensor.RawTensor) *IndexSelectOp {
	return &IndexSelectOp{
		unaryOp: unaryOp{input: input, output: output},
		dim:     input.Shape().NormalizeDim(dim),
		indices: append([]int(nil), indices...),
	}
}

// Backward accumulates each gathered slice into its source position.
// Repeated indices sum their gradients.
func (op *IndexSelectOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	inShape := op.input.Shape()
	result := zerosLike(inShape, grad.Device())

	outer, inner := 1, 1
	for i := 0; i < op.dim; i++ {
		outer *= inShape[i]
	}
	for i := op.dim + 1; i < len(inShape); i++ {
		inner *= inShape[i]
	}
	size, n := inShape[op.dim], len(op.indices)

	src, dst := grad.AsFloat32(), result.AsFloat32()
	for o := 0; o < outer; o++ {
		for j, idx := range op.indices {
			from := src[(o*n+j)*inner : (o*n+j+1)*inner]
			to := dst[(o*size+idx)*inner : (o*size+idx+1)*inner]
			for k, v := range from {
				to[k] += v
			}
		}
	}
	return []*tensor.RawTensor{result}
}
