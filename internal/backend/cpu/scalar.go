package cpu

import (
	"fmt"

	"github.com/peft-go/peft/internal/tensor"
)

// MulScalar multiplies each element of the tensor by a scalar value.
// The scalar's Go type must match the tensor's dtype.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mulScalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		s, ok := scalar.(float32)
		if !ok {
			panic(fmt.Sprintf("mulScalar: scalar type %T does not match dtype float32", scalar))
		}
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i := range src {
			dst[i] = src[i] * s
		}
	case tensor.Float64:
		s, ok := scalar.(float64)
		if !ok {
			panic(fmt.Sprintf("mulScalar: scalar type %T does not match dtype float64", scalar))
		}
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i := range src {
			dst[i] = src[i] * s
		}
	default:
		panic(fmt.Sprintf("mulScalar: unsupported dtype %v", x.DType()))
	}

	return result
}
