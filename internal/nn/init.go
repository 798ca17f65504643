package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Xavier draws weights from U(-sqrt(6/(fanIn+fanOut)), sqrt(6/(fanIn+fanOut))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B, rng *rand.Rand) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Uniform(shape, bound, rng, backend)
}

// UniformHidden draws weights from U(-1/sqrt(hidden), 1/sqrt(hidden)), the
// usual recurrent-layer initialization.
func UniformHidden[B tensor.Backend](hidden int, shape tensor.Shape, backend B, rng *rand.Rand) *tensor.Tensor[float32, B] {
	return tensor.Uniform(shape, 1/math.Sqrt(float64(hidden)), rng, backend)
}

// Zeros creates a zero-filled float32 tensor, used for biases.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
