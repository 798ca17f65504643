package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// MatMulOp is C = A @ B with
//
//	dL/dA = dL/dC @ B^T
//	dL/dB = A^T @ dL/dC
type MatMulOp struct{ binaryOp }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{binaryOp{a: a, b: b, output: output}}
}

// Backward computes gradients for both matrices.
func (op *MatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.MatMul(grad, backend.Transpose(op.b, 1, 0)),
		backend.MatMul(backend.Transpose(op.a, 1, 0), grad),
	}
}

// BatchMatMulOp is the batched form of MatMulOp over [B, M, K] @ [B, K, N].
type BatchMatMulOp struct{ binaryOp }

// NewBatchMatMulOp creates a new BatchMatMulOp.
func NewBatchMatMulOp(a, b, output *tensor.RawTensor) *BatchMatMulOp {
	return &BatchMatMulOp{binaryOp{a: a, b: b, output: output}}
}

// Backward transposes the last two dims of each operand per batch.
func (op *BatchMatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.BatchMatMul(grad, backend.Transpose(op.b, 0, 2, 1)),
		backend.BatchMatMul(backend.Transpose(op.a, 0, 2, 1), grad),
	}
}
