package cpu

import (
	"math"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Tanh applies tanh element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("tanh", x, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

// Sigmoid applies 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, func(v float32) float32 {
		return float32(1.0 / (1.0 + math.Exp(-float64(v))))
	})
}

// Softmax computes softmax along dim with max-subtraction for stability.
//
// -Inf entries get exactly zero probability. A slice made only of -Inf
// entries has no valid distribution and is returned as all zeros.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer, size, inner := splitAt(shape, dim)

	result := cpu.newResult("softmax", shape, tensor.Float32)
	src, dst := x.AsFloat32(), result.AsFloat32()

	parallel.ForPairs(outer, inner, size, func(o, i int) {
		base := o*size*inner + i
		maxVal := math.Inf(-1)
		for j := 0; j < size; j++ {
			if v := float64(src[base+j*inner]); v > maxVal {
				maxVal = v
			}
		}
		if math.IsInf(maxVal, -1) {
			return // destination already zero
		}

		var sum float64
		for j := 0; j < size; j++ {
			e := math.Exp(float64(src[base+j*inner]) - maxVal)
			dst[base+j*inner] = float32(e)
			sum += e
		}
		for j := 0; j < size; j++ {
			dst[base+j*inner] = float32(float64(dst[base+j*inner]) / sum)
		}
	}, cpu.parallel)

	return result
}

// splitAt views shape as [outer, shape[dim], inner].
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}
