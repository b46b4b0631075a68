package ops

import "github.com/peft-go/peft/internal/tensor"

// ReshapeOp represents a reshape operation.
//
// Reshape does not change element values, so the backward pass just
// reshapes the output gradient back to the input shape. Without this op on
// the tape, gradients would stop at the reshaped tensor and never reach the
// original parameter (e.g. a bias reshaped to [1, out] for broadcasting).
type ReshapeOp struct {
	inputs []*tensor.RawTensor // [x]
	output *tensor.RawTensor   // reshaped x
}

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
	}
}

// Backward reshapes the output gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradX := backend.Reshape(outputGrad, op.inputs[0].Shape())
	return []*tensor.RawTensor{gradX}
}

// Inputs returns the input tensors [x].
func (op *ReshapeOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the reshaped output tensor.
func (op *ReshapeOp) Output() *tensor.RawTensor {
	return op.output
}
