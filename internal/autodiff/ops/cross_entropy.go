package ops

import (
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// CrossEntropyOp is the fused softmax cross-entropy loss
//
//	L = mean over kept rows of -log_softmax(logits)[target]
//
// with gradient
//
//	dL/dlogits[i] = (softmax(logits[i]) - onehot(target[i])) / kept
//
// Rows whose target equals ignoreIndex are not kept and get zero gradient.
type CrossEntropyOp struct {
	unaryOp
	targets     *tensor.RawTensor
	ignoreIndex int
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, targets *tensor.RawTensor, ignoreIndex int, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{
		unaryOp:     unaryOp{input: logits, output: output},
		targets:     targets,
		ignoreIndex: ignoreIndex,
	}
}

// Backward computes the logits gradient scaled by the upstream scalar.
func (op *CrossEntropyOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	n, c := shape[0], shape[1]
	result := zerosLike(shape, grad.Device())

	targets := op.targets.AsInt32()
	kept := 0
	for _, y := range targets {
		if int(y) != op.ignoreIndex {
			kept++
		}
	}
	if kept == 0 {
		return []*tensor.RawTensor{result}
	}

	scale := float64(grad.AsFloat32()[0]) / float64(kept)
	x, dst := op.input.AsFloat32(), result.AsFloat32()
	for i := 0; i < n; i++ {
		target := int(targets[i])
		if target == op.ignoreIndex {
			continue
		}
		row := x[i*c : (i+1)*c]
		maxVal := math.Inf(-1)
		for _, v := range row {
			maxVal = math.Max(maxVal, float64(v))
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v) - maxVal)
		}
		for k, v := range row {
			p := math.Exp(float64(v)-maxVal) / sum
			if k == target {
				p--
			}
			dst[i*c+k] = float32(p * scale)
		}
	}
	return []*tensor.RawTensor{result}
}
