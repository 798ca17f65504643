package nn

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// IgnoreNone disables the ignore index of CrossEntropyLoss.
const IgnoreNone = -100

// CrossEntropyLoss is softmax cross-entropy over class logits, averaged over
// the targets that are not IgnoreIndex.
//
//	criterion := nn.NewCrossEntropyLoss(backend, padID)
//	loss := criterion.Forward(logits, targets) // [N, C], [N] -> scalar
type CrossEntropyLoss[B tensor.Backend] struct {
	IgnoreIndex int
	backend     B
}

// lossBackend is implemented by the CPU backend and the autodiff decorator.
type lossBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor, ignoreIndex int) *tensor.RawTensor
}

// NewCrossEntropyLoss creates the loss. Targets equal to ignoreIndex
// contribute neither loss nor gradient; pass IgnoreNone to keep every row.
func NewCrossEntropyLoss[B tensor.Backend](backend B, ignoreIndex int) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{IgnoreIndex: ignoreIndex, backend: backend}
}

// Forward computes the scalar loss. Logits of shape [..., C] are flattened to
// [N, C] and targets of shape [...] to [N].
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	lb, ok := any(c.backend).(lossBackend)
	if !ok {
		panic(fmt.Sprintf("CrossEntropyLoss: backend %s has no cross-entropy kernel", c.backend.Name()))
	}

	shape := logits.Shape()
	classes := shape[len(shape)-1]
	if targets.NumElements()*classes != logits.NumElements() {
		panic(fmt.Sprintf("CrossEntropyLoss: logits %v do not match targets %v", shape, targets.Shape()))
	}
	if len(shape) != 2 {
		logits = logits.Reshape(-1, classes)
	}
	if len(targets.Shape()) != 1 {
		targets = targets.Reshape(-1)
	}
	return tensor.New[float32](lb.CrossEntropy(logits.Raw(), targets.Raw(), c.IgnoreIndex), c.backend)
}
