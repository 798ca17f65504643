package cpu

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Reshape returns a copy of t with newShape. Element counts must match.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes dimensions. With no axes all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), rank))
	}

	seen := make([]bool, rank)
	perm := make([]int, rank)
	outShape := make(tensor.Shape, rank)
	for i, a := range axes {
		a = shape.NormalizeDim(a)
		if seen[a] {
			panic(fmt.Sprintf("transpose: repeated axis %d", a))
		}
		seen[a] = true
		perm[i] = a
		outShape[i] = shape[a]
	}

	result := cpu.newResult("transpose", outShape, t.DType())
	elem := t.DType().Size()
	src, dst := t.Data(), result.Data()
	inStrides := t.Strides()

	// Input stride of each output dimension.
	permStrides := make([]int, rank)
	for i, a := range perm {
		permStrides[i] = inStrides[a]
	}

	idx := make([]int, rank)
	off := 0
	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		copy(dst[i*elem:(i+1)*elem], src[off*elem:(off+1)*elem])
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			off += permStrides[d]
			if idx[d] < outShape[d] {
				break
			}
			off -= permStrides[d] * outShape[d]
			idx[d] = 0
		}
	}
	return result
}

// Cat concatenates tensors along dim. Works for every dtype.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}
	first := tensors[0]
	shape := first.Shape()
	dim = shape.NormalizeDim(dim)

	outShape := shape.Clone()
	outShape[dim] = 0
	for i, t := range tensors {
		s := t.Shape()
		if len(s) != len(shape) || t.DType() != first.DType() {
			panic(fmt.Sprintf("cat: tensor %d has shape %v (%s), expected rank %d (%s)",
				i, s, t.DType(), len(shape), first.DType()))
		}
		for d := range s {
			if d != dim && s[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d shape %v incompatible with %v along dim %d", i, s, shape, dim))
			}
		}
		outShape[dim] += s[dim]
	}

	result := cpu.newResult("cat", outShape, first.DType())
	outer, _, inner := splitAt(shape, dim)
	elem := first.DType().Size()
	dst := result.Data()
	outRow := outShape[dim] * inner * elem

	at := 0
	for _, t := range tensors {
		chunk := t.Shape()[dim] * inner * elem
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*outRow+at:o*outRow+at+chunk], src[o*chunk:(o+1)*chunk])
		}
		at += chunk
	}
	return result
}

// Narrow copies the slice [start, start+length) of dim.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dim %d of %v", start, start+length, dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	result := cpu.newResult("narrow", outShape, x.DType())

	outer, size, inner := splitAt(shape, dim)
	elem := x.DType().Size()
	src, dst := x.Data(), result.Data()
	chunk := length * inner * elem
	for o := 0; o < outer; o++ {
		from := (o*size + start) * inner * elem
		copy(dst[o*chunk:(o+1)*chunk], src[from:from+chunk])
	}
	return result
}

// IndexSelect gathers indices along dim in the given order.
// Indices may repeat.
func (cpu *CPUBackend) IndexSelect(x *tensor.RawTensor, dim int, indices []int) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	if len(indices) == 0 {
		panic("indexselect: at least one index required")
	}

	outShape := shape.Clone()
	outShape[dim] = len(indices)
	result := cpu.newResult("indexselect", outShape, x.DType())

	outer, size, inner := splitAt(shape, dim)
	elem := x.DType().Size()
	src, dst := x.Data(), result.Data()
	row := inner * elem
	for o := 0; o < outer; o++ {
		for j, idx := range indices {
			if idx < 0 || idx >= size {
				panic(fmt.Sprintf("indexselect: index %d out of range for dim %d (size %d)", idx, dim, size))
			}
			to := (o*len(indices) + j) * row
			from := (o*size + idx) * row
			copy(dst[to:to+row], src[from:from+row])
		}
	}
	return result
}
