// Copyright 2025 PEFT-Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training.
//
// Optimizers receive the parameter list at construction and update
// exactly those parameters at each step. Tensors not in that list are
// never touched, no matter what gradients the backward pass produced.
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01}, backend)
//
//	for step := 0; step < steps; step++ {
//	    pred := model.Forward(x)
//	    loss := criterion.Forward(pred, y)
//	    grads := autodiff.Backward(loss, backend)
//	    optimizer.Step(grads)
//	    backend.Tape().Clear()
//	}
package optim

import (
	internaloptim "github.com/peft-go/peft/internal/optim"
	"github.com/peft-go/peft/nn"
	"github.com/peft-go/peft/tensor"
)

// Optimizer is the interface implemented by all optimizers.
type Optimizer = internaloptim.Optimizer

// SGD implements stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = internaloptim.SGD[B]

// SGDConfig holds SGD options.
type SGDConfig = internaloptim.SGDConfig

// NewSGD creates an SGD optimizer over the given parameters. A zero
// learning rate defaults to 0.01.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return internaloptim.NewSGD(params, config, backend)
}
