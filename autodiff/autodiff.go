// Copyright 2025 PEFT-Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Any tensor backend can be wrapped with an autodiff decorator that
// records operations onto a gradient tape while forward computation
// runs. Calling Backward on the loss tensor walks the tape in reverse
// and returns gradients for every tensor that participated.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	pred := model.Forward(x)
//	loss := criterion.Forward(pred, y)
//
//	grads := autodiff.Backward(loss, backend)
//	backend.Tape().StopRecording()
//	backend.Tape().Clear()
package autodiff

import (
	internalautodiff "github.com/peft-go/peft/internal/autodiff"
	"github.com/peft-go/peft/tensor"
)

// Backend wraps an inner tensor backend and records executed
// operations onto a gradient tape.
type Backend[B tensor.Backend] = internalautodiff.AutodiffBackend[B]

// GradientTape holds the recorded operations of a forward pass.
type GradientTape = internalautodiff.GradientTape

// BackwardCapable is the interface of backends that carry a gradient
// tape and can run a backward pass.
type BackwardCapable = internalautodiff.BackwardCapable

// New wraps the given backend with operation recording.
func New[B tensor.Backend](backend B) *Backend[B] {
	return internalautodiff.New(backend)
}

// NewGradientTape creates an empty, non-recording tape.
func NewGradientTape() *GradientTape {
	return internalautodiff.NewGradientTape()
}

// Backward seeds the gradient of t with ones and propagates it through
// the recorded tape. It returns the gradient of every participating
// tensor keyed by its raw tensor.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return internalautodiff.Backward(t, backend)
}
