package ops

import (
	"fmt"

	"github.com/peft-go/peft/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[1,4] + b[6,4] -> c[6,4]  (a was broadcast along dim 0)
//	Backward: grad_c[6,4] -> grad_a[1,4] (sum along dim 0)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// If shapes already match, clone to avoid aliasing issues
	// (prevents in-place operations from modifying shared gradients).
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	// NumPy broadcasting aligns shapes from the right: first sum away the
	// extra leading dimensions, then sum along dimensions where the target
	// is 1 but the gradient is larger.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = sumAlongDim(result, 0, false)
	}

	for i := 0; i < len(targetShape); i++ {
		if targetShape[i] == 1 && result.Shape()[i] > 1 {
			result = sumAlongDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}

	return result
}

// sumAlongDim sums a tensor along the given dimension. When keepDim is
// true the reduced dimension stays with size 1, otherwise it is dropped.
func sumAlongDim(t *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumAlongDim: invalid dimension %d for shape %v", dim, shape))
	}

	outShape := make(tensor.Shape, 0, len(shape))
	for d, size := range shape {
		switch {
		case d != dim:
			outShape = append(outShape, size)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result, err := tensor.NewRaw(outShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("sumAlongDim: failed to create result: %v", err))
	}

	strides := shape.ComputeStrides()
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := strides[dim] // Product of dimensions after dim
	dimSize := shape[dim]

	switch t.DType() {
	case tensor.Float32:
		sumDimData(t.AsFloat32(), result.AsFloat32(), outer, dimSize, inner)
	case tensor.Float64:
		sumDimData(t.AsFloat64(), result.AsFloat64(), outer, dimSize, inner)
	default:
		panic(fmt.Sprintf("sumAlongDim: unsupported dtype %s", t.DType()))
	}

	return result
}

// sumDimData accumulates src viewed as [outer, dimSize, inner] into
// dst viewed as [outer, inner].
func sumDimData[T float32 | float64](src, dst []T, outer, dimSize, inner int) {
	for o := 0; o < outer; o++ {
		for d := 0; d < dimSize; d++ {
			base := (o*dimSize + d) * inner
			outBase := o * inner
			for i := 0; i < inner; i++ {
				dst[outBase+i] += src[base+i]
			}
		}
	}
}
