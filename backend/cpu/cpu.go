// Copyright 2025 PEFT-Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend for tensor operations.
//
// The CPU backend implements element-wise arithmetic with NumPy-style
// broadcasting and delegates matrix multiplication to gonum's BLAS
// implementation.
//
// Example:
//
//	import (
//	    "github.com/peft-go/peft/backend/cpu"
//	    "github.com/peft-go/peft/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
package cpu

import (
	internalcpu "github.com/peft-go/peft/internal/backend/cpu"
	"github.com/peft-go/peft/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
func New() *Backend {
	return internalcpu.New()
}
