package ops

import (
	"fmt"

	"github.com/peft-go/peft/internal/tensor"
)

// MeanOp represents the reduction of all elements to their mean:
// output = sum(x) / n, with output shape [1].
//
// Backward pass: every element contributed 1/n, so
//
//	grad_x[i] = outputGrad[0] / n
//
// This op is what makes MSE loss differentiable end to end.
type MeanOp struct {
	inputs []*tensor.RawTensor // [x]
	output *tensor.RawTensor   // [1]-shaped mean
}

// NewMeanOp creates a new MeanOp.
func NewMeanOp(x, output *tensor.RawTensor) *MeanOp {
	return &MeanOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
	}
}

// Backward computes the input gradient for the mean reduction.
func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	n := x.NumElements()

	gradX, err := tensor.NewRaw(x.Shape(), x.DType(), x.Device())
	if err != nil {
		panic(fmt.Sprintf("mean backward: failed to create gradient: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		g := outputGrad.AsFloat32()[0] / float32(n)
		data := gradX.AsFloat32()
		for i := range data {
			data[i] = g
		}
	case tensor.Float64:
		g := outputGrad.AsFloat64()[0] / float64(n)
		data := gradX.AsFloat64()
		for i := range data {
			data[i] = g
		}
	default:
		panic(fmt.Sprintf("mean backward: unsupported dtype %s", x.DType()))
	}

	return []*tensor.RawTensor{gradX}
}

// Inputs returns the input tensors [x].
func (op *MeanOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the [1]-shaped mean tensor.
func (op *MeanOp) Output() *tensor.RawTensor {
	return op.output
}
