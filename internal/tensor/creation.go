package tensor

import "math/rand"

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Full creates a tensor filled with a specific value.
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Ones creates a float32 tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[float32, B] {
	return Full[float32](shape, 1, b)
}

// Randn creates a float32 tensor with values drawn from N(0, std²).
// A nil rng uses the global math/rand source.
func Randn[B Backend](shape Shape, std float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32](shape, b)
	data := t.Data()
	for i := range data {
		if rng != nil {
			data[i] = float32(rng.NormFloat64() * std)
		} else {
			data[i] = float32(rand.NormFloat64() * std) //nolint:gosec // G404: ML uses math/rand intentionally
		}
	}
	return t
}

// Uniform creates a float32 tensor with values drawn from U(-bound, bound).
// A nil rng uses the global math/rand source.
func Uniform[B Backend](shape Shape, bound float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32](shape, b)
	data := t.Data()
	for i := range data {
		var u float64
		if rng != nil {
			u = rng.Float64()
		} else {
			u = rand.Float64() //nolint:gosec // G404: ML uses math/rand intentionally
		}
		data[i] = float32((u*2.0 - 1.0) * bound)
	}
	return t
}

// Arange creates the int32 tensor [0, 1, ..., n-1].
func Arange[B Backend](n int, b B) *Tensor[int32, B] {
	t := Zeros[int32](Shape{n}, b)
	data := t.Data()
	for i := range data {
		data[i] = int32(i) //nolint:gosec // G115: i < n fits in int32 for any tensor we allocate
	}
	return t
}
