// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//
// Matrix products go through gonum's BLAS and row loops are spread over
// GOMAXPROCS workers. Tensor operations do not share mutable state, so the
// backend is safe for concurrent use.
package cpu

import (
	internalcpu "github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/tensor"
)

// Backend is the CPU backend.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend.
func New() *Backend {
	return internalcpu.New()
}
