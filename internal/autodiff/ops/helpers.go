package ops

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// reduceBroadcast sums grad down to targetShape, undoing NumPy broadcasting.
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}
	shape := result.Shape()
	for i := range targetShape {
		if targetShape[i] == 1 && shape[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}
	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// zerosLike allocates a float32 zero tensor of the given shape.
func zerosLike(shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	z, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		panic(fmt.Sprintf("ops: failed to allocate gradient: %v", err))
	}
	return z
}

// oneMinusSquare returns 1 - y².
func oneMinusSquare(y *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.AddScalar(backend.MulScalar(backend.Mul(y, y), -1), 1)
}
