// Package nn implements neural network modules for PEFT-Go.
//
// This package provides the building blocks for parameter-efficient
// fine-tuning:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear: Fully connected layer (full fine-tuning configuration)
//   - LoRA: Low-rank adapter producing an additive correction
//   - LoRALinear: Frozen linear layer with a trainable LoRA adapter
//   - MSELoss: Mean squared error loss
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/peft-go/peft/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all TRAINABLE parameters
//
// Freezing is structural: a tensor that must not be updated by training is
// simply never exposed through Parameters. LoRALinear's base weight and
// bias are frozen this way, since the optimizer cannot touch what it is
// never given.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Linear expects [batch_size, in_features].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns the trainable parameters of this module,
	// including nested module parameters. Frozen tensors are not included.
	Parameters() []*Parameter[B]
}
