// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public tensor API of the seq2seq module.
//
// Tensor[T, B] is a typed view over a RawTensor buffer, and every
// operation is delegated to the Backend B:
//
//	backend := cpu.New()
//	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
//	y := x.MatMul(x).Tanh()
package tensor

import (
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// DType constrains the element types: float32, int32 and bool.
type DType = tensor.DType

// DataType identifies the element type of a RawTensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Int32   DataType = tensor.Int32
	Bool    DataType = tensor.Bool
)

// Device identifies where tensor data lives.
type Device = tensor.Device

// CPU is the only device.
const CPU Device = tensor.CPU

// Shape holds tensor dimensions, outermost first.
type Shape = tensor.Shape

// Backend computes tensor operations on RawTensors.
type Backend = tensor.Backend

// RawTensor is the untyped, reference-counted tensor buffer.
//
// Most users should use the typed Tensor[T, B] instead.
type RawTensor = tensor.RawTensor

// Tensor is a typed tensor bound to a backend.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// NewRaw allocates a zeroed raw tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// MustFromSlice is FromSlice that panics on a shape mismatch.
func MustFromSlice[T DType, B Backend](data []T, shape Shape, b B) *Tensor[T, B] {
	return tensor.MustFromSlice(data, shape, b)
}

// Zeros returns a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Full returns a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Ones returns a float32 tensor of ones.
func Ones[B Backend](shape Shape, b B) *Tensor[float32, B] {
	return tensor.Ones(shape, b)
}

// Randn samples a normal distribution with the given standard deviation.
func Randn[B Backend](shape Shape, std float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Randn(shape, std, rng, b)
}

// Uniform samples U(-bound, bound).
func Uniform[B Backend](shape Shape, bound float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Uniform(shape, bound, rng, b)
}

// Arange returns the int32 tensor [0, n).
func Arange[B Backend](n int, b B) *Tensor[int32, B] {
	return tensor.Arange(n, b)
}

// Cat concatenates tensors along dim.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Cat(tensors, dim)
}

// Stack joins equally shaped tensors along a new dim.
func Stack[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Stack(tensors, dim)
}
