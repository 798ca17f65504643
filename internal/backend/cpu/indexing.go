package cpu

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// MaskedFill replaces elements of x whose broadcast mask entry is false.
func (cpu *CPUBackend) MaskedFill(x, mask *tensor.RawTensor, value float32) *tensor.RawTensor {
	requireFloat32("maskedfill", x)
	if mask.DType() != tensor.Bool {
		panic(fmt.Sprintf("maskedfill: mask must be bool, got %s", mask.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), mask.Shape())
	if err != nil || !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("maskedfill: mask %v does not broadcast to %v", mask.Shape(), x.Shape()))
	}

	result := cpu.newResult("maskedfill", x.Shape(), tensor.Float32)
	src, keep, dst := x.AsFloat32(), mask.AsBool(), result.AsFloat32()
	walkBroadcast(outShape, x.Strides(), broadcastStrides(mask.Shape(), outShape), func(i, xi, mi int) {
		if keep[mi] {
			dst[i] = src[xi]
		} else {
			dst[i] = value
		}
	})
	return result
}

// Embedding gathers rows of weight [V, D] for int32 indices of any shape.
// paddingIdx only matters for the backward pass.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor, _ int) *tensor.RawTensor {
	requireFloat32("embedding", weight)
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [V, D], got %v", wShape))
	}
	vocab, dim := wShape[0], wShape[1]

	outShape := append(indices.Shape().Clone(), dim)
	result := cpu.newResult("embedding", outShape, tensor.Float32)
	w, ids, dst := weight.AsFloat32(), indices.AsInt32(), result.AsFloat32()
	for i, id := range ids {
		if id < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", id, vocab))
		}
		copy(dst[i*dim:(i+1)*dim], w[int(id)*dim:(int(id)+1)*dim])
	}
	return result
}
