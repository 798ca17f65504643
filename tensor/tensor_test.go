// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/seq2seq/backend/cpu"
	"github.com/born-ml/seq2seq/tensor"
)

// TestBackendInterface verifies that the CPU backend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = (*cpu.Backend)(nil)
}

func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if !raw.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("DType() = %v, want Float32", raw.DType())
	}
	if raw.NumElements() != 6 {
		t.Errorf("NumElements() = %d, want 6", raw.NumElements())
	}
	if raw.ByteSize() != 24 {
		t.Errorf("ByteSize() = %d, want 24", raw.ByteSize())
	}
}

func TestFromSlice(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]int32{4, 5, 6}, tensor.Shape{3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	if got := x.Data(); got[0] != 4 || got[2] != 6 {
		t.Errorf("Data() = %v", got)
	}
	if _, err := tensor.FromSlice([]int32{1, 2}, tensor.Shape{3}, backend); err == nil {
		t.Error("expected error for mismatched length")
	}
}

func TestMatMulTanh(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 2}, backend)
	y := tensor.MustFromSlice([]float32{0.5, -0.5, 0, 0}, tensor.Shape{2, 2}, backend)
	got := x.MatMul(y).Tanh().Data()
	want := []float32{0.46211716, -0.46211716, 0, 0}
	for i := range want {
		if diff := got[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCatZeros(t *testing.T) {
	backend := cpu.New()
	a := tensor.Zeros[float32](tensor.Shape{1, 2}, backend)
	b := tensor.Ones(tensor.Shape{1, 2}, backend)
	c := tensor.Cat([]*tensor.Tensor[float32, *cpu.Backend]{a, b}, 0)
	if !c.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("Cat shape = %v, want [2 2]", c.Shape())
	}
	if got := c.Data(); got[0] != 0 || got[3] != 1 {
		t.Errorf("Cat data = %v", got)
	}
}
