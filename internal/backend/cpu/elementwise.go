package cpu

import (
	"fmt"

	"github.com/peft-go/peft/internal/tensor"
)

// binaryOp dispatches an element-wise binary operation by dtype, handling
// broadcasting and the in-place fast path.
func (cpu *CPUBackend) binaryOp(
	name string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		// Fast path: same shape. Mutate a in place when its buffer is not
		// shared (the autodiff decorator blocks this via ForceNonUnique).
		if a.IsUnique() {
			switch a.DType() {
			case tensor.Float32:
				applySameShape(a.AsFloat32(), a.AsFloat32(), b.AsFloat32(), f32)
			case tensor.Float64:
				applySameShape(a.AsFloat64(), a.AsFloat64(), b.AsFloat64(), f64)
			}
			return a
		}

		result := newResult(name, outShape, a)
		switch a.DType() {
		case tensor.Float32:
			applySameShape(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), f32)
		case tensor.Float64:
			applySameShape(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), f64)
		}
		return result
	}

	// Slow path: broadcasting required.
	result := newResult(name, outShape, a)
	switch a.DType() {
	case tensor.Float32:
		applyBroadcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(),
			a.Shape(), b.Shape(), outShape, f32)
	case tensor.Float64:
		applyBroadcast(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(),
			a.Shape(), b.Shape(), outShape, f64)
	}
	return result
}

func newResult(name string, shape tensor.Shape, like *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, like.DType(), like.Device())
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}
	return result
}

// applySameShape applies f pairwise; dst may alias a.
func applySameShape[T float32 | float64](dst, a, b []T, f func(x, y T) T) {
	for i := range dst {
		dst[i] = f(a[i], b[i])
	}
}

// applyBroadcast applies f with NumPy-style broadcasting of a and b to
// outShape. Dimensions of size 1 get stride 0 so their single value is
// reused along the broadcast axis.
func applyBroadcast[T float32 | float64](
	dst, a, b []T,
	aShape, bShape, outShape tensor.Shape,
	f func(x, y T) T,
) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	for i := range dst {
		dst[i] = f(a[flatIndex(i, outStrides, aStrides)], b[flatIndex(i, outStrides, bStrides)])
	}
}

// broadcastStrides computes strides for broadcasting inShape to outShape.
// Broadcast (and missing leading) dimensions get stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// flatIndex maps an output flat index to the source flat index using the
// broadcast-adjusted input strides.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	idx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		idx += coord * inStrides[i]
	}
	return idx
}
