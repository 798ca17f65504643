package tensor

// Backend defines the interface that compute backends implement.
//
// Every operation returns a newly allocated RawTensor and never mutates its
// inputs. The autodiff decorator relies on this to key gradients by pointer.
//
// Implementations:
//   - cpu.CPUBackend: pure Go reference backend with gonum SGEMM
//   - autodiff.AutodiffBackend: records every call on a gradient tape
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with a float32 scalar).
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul multiplies 3D batches: [B, M, K] @ [B, K, N] -> [B, M, N].
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Activation functions.
	Tanh(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reductions.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Manipulation.
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor
	IndexSelect(x *RawTensor, dim int, indices []int) *RawTensor

	// MaskedFill replaces elements where mask is false with value.
	// The bool mask broadcasts against x.
	MaskedFill(x, mask *RawTensor, value float32) *RawTensor

	// Embedding gathers rows of weight [V, D] for int32 indices of any shape,
	// producing [..., D]. Rows equal to paddingIdx receive no gradient;
	// pass a negative paddingIdx to disable that.
	Embedding(weight, indices *RawTensor, paddingIdx int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
