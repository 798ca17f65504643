package optim

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// clipEps keeps the scale factor finite when the norm sits at the threshold.
const clipEps = 1e-6

// ClipGradNorm rescales the gradients of params so that their global L2 norm
// is at most maxNorm. It returns the norm measured before clipping and the
// gradient map to step with.
//
// The input map is never modified: tape gradients may alias each other or a
// forward buffer, so clipped entries are written into copies. A maxNorm <= 0
// disables clipping.
func ClipGradNorm[B tensor.Backend](
	params []*nn.Parameter[B],
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	maxNorm float64,
) (float64, map[*tensor.RawTensor]*tensor.RawTensor) {
	var sumSq float64
	for _, param := range params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		n := float64(blas32.Nrm2(vector(grad)))
		sumSq += n * n
	}
	total := math.Sqrt(sumSq)
	if maxNorm <= 0 || total <= maxNorm {
		return total, grads
	}

	scale := float32(maxNorm / (total + clipEps))
	clipped := make(map[*tensor.RawTensor]*tensor.RawTensor, len(grads))
	for k, g := range grads {
		clipped[k] = g
	}
	for _, param := range params {
		key := param.Tensor().Raw()
		grad, ok := grads[key]
		if !ok {
			continue
		}
		scaled := grad.Clone()
		blas32.Scal(scale, vector(scaled))
		clipped[key] = scaled
	}
	return total, clipped
}
