// Copyright 2025 PEFT-Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and loss functions.
//
// Layers implement the Module interface. A module's Parameters method
// returns only its trainable parameters, so a layer freezes weights by
// leaving them out of that list rather than by flagging them.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	rng := rand.New(rand.NewSource(42))
//
//	layer, err := nn.NewLoRALinear(1, 4, 8, rng, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out := layer.Forward(x)
package nn

import (
	"math/rand"

	internalnn "github.com/peft-go/peft/internal/nn"
	"github.com/peft-go/peft/tensor"
)

// Module is the interface implemented by all layers and models.
type Module[B tensor.Backend] = internalnn.Module[B]

// Parameter is a named trainable tensor with an associated gradient.
type Parameter[B tensor.Backend] = internalnn.Parameter[B]

// Linear is a fully connected layer computing x @ W.T + b.
type Linear[B tensor.Backend] = internalnn.Linear[B]

// LoRA is a low-rank adapter applying x + (x @ A @ B) * scaling.
type LoRA[B tensor.Backend] = internalnn.LoRA[B]

// LoRALinear is a frozen linear layer with a trainable low-rank
// adapter applied to its output.
type LoRALinear[B tensor.Backend] = internalnn.LoRALinear[B]

// MSELoss computes mean squared error.
type MSELoss[B tensor.Backend] = internalnn.MSELoss[B]

// NewParameter wraps a tensor as a named trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return internalnn.NewParameter(name, t)
}

// NewLinear creates a linear layer with Xavier-initialized weights and
// zero bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return internalnn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// NewLoRA creates a low-rank adapter for vectors of the given
// dimension. A is drawn from N(0, 1/sqrt(rank)), B starts at zero, so
// a fresh adapter is the identity function.
func NewLoRA[B tensor.Backend](dim, rank int, alpha float32, rng *rand.Rand, backend B) (*LoRA[B], error) {
	return internalnn.NewLoRA(dim, rank, alpha, rng, backend)
}

// NewLoRALinear creates a square linear layer with a fresh adapter on
// its output. Only the adapter's factors are trainable.
func NewLoRALinear[B tensor.Backend](features, rank int, alpha float32, rng *rand.Rand, backend B) (*LoRALinear[B], error) {
	return internalnn.NewLoRALinear(features, rank, alpha, rng, backend)
}

// NewMSELoss creates a mean squared error criterion.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return internalnn.NewMSELoss(backend)
}

// StateDictModule is implemented by layers whose weights can be exported
// to and imported from a state dictionary.
type StateDictModule = internalnn.StateDictModule

// SaveState writes a module's weights to a .peft file.
func SaveState(path string, m StateDictModule, modelType string, metadata map[string]string) error {
	return internalnn.SaveState(path, m, modelType, metadata)
}

// LoadState reads a .peft file into an existing module.
func LoadState(path string, m StateDictModule) error {
	return internalnn.LoadState(path, m)
}

// SaveAdapter writes an adapted layer to a .peft file, including the
// adapter hyperparameters needed to rebuild it.
func SaveAdapter[B tensor.Backend](path string, l *LoRALinear[B], metadata map[string]string) error {
	return internalnn.SaveAdapter(path, l, metadata)
}

// LoadAdapter rebuilds an adapted layer from a file written by SaveAdapter.
func LoadAdapter[B tensor.Backend](path string, rng *rand.Rand, backend B) (*LoRALinear[B], error) {
	return internalnn.LoadAdapter(path, rng, backend)
}

// Xavier returns a tensor initialized with Xavier uniform values.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return internalnn.Xavier(fanIn, fanOut, shape, rng, backend)
}

// ScaledNormal returns a tensor drawn from N(0, std).
func ScaledNormal[B tensor.Backend](shape tensor.Shape, std float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return internalnn.ScaledNormal(shape, std, rng, backend)
}
