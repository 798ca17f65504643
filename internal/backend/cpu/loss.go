package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// CrossEntropy computes mean(-log_softmax(logits)[targets]) over rows whose
// target differs from ignoreIndex.
//
// Logits are [N, C], targets are int32 [N] and the result is a scalar.
// When every row is ignored the loss is 0.
func (cpu *CPUBackend) CrossEntropy(logits, targets *tensor.RawTensor, ignoreIndex int) *tensor.RawTensor {
	requireFloat32("crossentropy", logits)
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("crossentropy: logits must be 2D [N, C], got %v", shape))
	}
	if targets.DType() != tensor.Int32 || len(targets.Shape()) != 1 || targets.Shape()[0] != shape[0] {
		panic(fmt.Sprintf("crossentropy: targets must be int32 [%d], got %s %v", shape[0], targets.DType(), targets.Shape()))
	}

	n, c := shape[0], shape[1]
	x, y := logits.AsFloat32(), targets.AsInt32()

	var total float64
	count := 0
	for i := 0; i < n; i++ {
		target := int(y[i])
		if target == ignoreIndex {
			continue
		}
		if target < 0 || target >= c {
			panic(fmt.Sprintf("crossentropy: target %d out of range [0, %d)", target, c))
		}
		row := x[i*c : (i+1)*c]
		total += logSumExp(row) - float64(row[target])
		count++
	}

	result := cpu.newResult("crossentropy", tensor.Shape{}, tensor.Float32)
	if count > 0 {
		result.AsFloat32()[0] = float32(total / float64(count))
	}
	return result
}

// logSumExp returns log(Σ exp(row)) using max-subtraction.
func logSumExp(row []float32) float64 {
	maxVal := math.Inf(-1)
	for _, v := range row {
		maxVal = math.Max(maxVal, float64(v))
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v) - maxVal)
	}
	return maxVal + math.Log(sum)
}
