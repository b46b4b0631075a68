package ops

import "github.com/peft-go/peft/internal/tensor"

// TransposeOp represents a transpose operation.
//
// Even though transpose is conceptually a view, the backend produces a new
// tensor, so the op must be recorded for gradients to flow back to the
// original. This matters for Linear: the layer computes input @ W^T, and
// without this op the optimizer would find a gradient only for the
// transposed copy of W, never for the weight parameter itself.
//
// Backward pass: apply the inverse permutation to the output gradient.
type TransposeOp struct {
	inputs []*tensor.RawTensor // [x]
	output *tensor.RawTensor   // transposed x
	axes   []int               // the permutation used in the forward pass
}

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(x, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		axes:   axes,
	}
}

// Backward transposes the output gradient with the inverse permutation.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}

	gradX := backend.Transpose(outputGrad, inverse...)
	return []*tensor.RawTensor{gradX}
}

// Inputs returns the input tensors [x].
func (op *TransposeOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the transposed output tensor.
func (op *TransposeOp) Output() *tensor.RawTensor {
	return op.output
}
