package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Dropout zeroes each element with probability P during training and scales
// the survivors by 1/(1-P). In evaluation mode it is the identity.
// Layers start in training mode.
type Dropout[B tensor.Backend] struct {
	P        float32
	training bool
	rng      *rand.Rand
	backend  B
}

// NewDropout creates a dropout layer. A nil rng uses the global source.
func NewDropout[B tensor.Backend](p float32, backend B, rng *rand.Rand) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("NewDropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{P: p, training: true, rng: rng, backend: backend}
}

// Train switches between training and evaluation mode.
func (d *Dropout[B]) Train(training bool) {
	d.training = training
}

// Training reports whether the layer is in training mode.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// Forward applies a fresh random mask in training mode.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.P == 0 {
		return input
	}

	mask := tensor.Zeros[float32](input.Shape(), d.backend)
	scale := 1 / (1 - d.P)
	data := mask.Data()
	for i := range data {
		var u float64
		if d.rng != nil {
			u = d.rng.Float64()
		} else {
			u = rand.Float64() //nolint:gosec // G404: ML uses math/rand intentionally
		}
		if u >= float64(d.P) {
			data[i] = scale
		}
	}
	return input.Mul(mask)
}

// Parameters returns nothing; dropout has no weights.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
