package cpu

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// SumDim sums along dim, keeping it as size 1 when keepDim is set.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat32("sumdim", x)
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer, size, inner := splitAt(shape, dim)

	result := cpu.newResult("sumdim", reducedShape(shape, dim, keepDim), tensor.Float32)
	src, dst := x.AsFloat32(), result.AsFloat32()
	for o := 0; o < outer; o++ {
		for j := 0; j < size; j++ {
			row := src[(o*size+j)*inner : (o*size+j+1)*inner]
			acc := dst[o*inner : (o+1)*inner]
			for i, v := range row {
				acc[i] += v
			}
		}
	}
	return result
}

// Argmax returns int32 indices of the maximum along dim (dimension removed).
// Ties resolve to the lowest index.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("argmax", x)
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer, size, inner := splitAt(shape, dim)

	result := cpu.newResult("argmax", reducedShape(shape, dim, false), tensor.Int32)
	src, dst := x.AsFloat32(), result.AsInt32()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*size*inner + i
			best := 0
			for j := 1; j < size; j++ {
				if src[base+j*inner] > src[base+best*inner] {
					best = j
				}
			}
			dst[o*inner+i] = int32(best) //nolint:gosec // G115: best < size
		}
	}
	return result
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			out = append(out, d)
		case keepDim:
			out = append(out, 1)
		}
	}
	return out
}
