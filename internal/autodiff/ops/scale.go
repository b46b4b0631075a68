package ops

import "github.com/peft-go/peft/internal/tensor"

// ScaleOp represents multiplication by a scalar constant: output = x * s.
//
// The scalar is a constant, not a tensor, so no gradient is produced for
// it; the input gradient is simply the output gradient scaled:
//
//	d(x*s)/dx = s, so grad_x = outputGrad * s
//
// This is the op behind the LoRA scaling factor (alpha / rank).
type ScaleOp struct {
	inputs []*tensor.RawTensor // [x]
	output *tensor.RawTensor   // x * s
	scalar any                 // float32 or float64, matching x's dtype
}

// NewScaleOp creates a new ScaleOp.
func NewScaleOp(x, output *tensor.RawTensor, scalar any) *ScaleOp {
	return &ScaleOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		scalar: scalar,
	}
}

// Backward computes the input gradient for scalar multiplication.
func (op *ScaleOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradX := backend.MulScalar(outputGrad, op.scalar)
	return []*tensor.RawTensor{gradX}
}

// Inputs returns the input tensors [x].
func (op *ScaleOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor x * s.
func (op *ScaleOp) Output() *tensor.RawTensor {
	return op.output
}
