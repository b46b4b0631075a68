package tensor

import "fmt"

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a simple backend for testing.
// It implements all operations naively for correctness verification.
type MockBackend struct{}

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return CPU
}

// Add performs element-wise addition with broadcasting.
func (m *MockBackend) Add(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (m *MockBackend) Sub(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (m *MockBackend) Mul(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (m *MockBackend) Div(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x / y })
}

func (m *MockBackend) elementWise(a, b *RawTensor, op func(float64, float64) float64) *RawTensor {
	outShape, _, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(err)
	}

	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := make([]float64, outShape.NumElements())

	for i := range resultData {
		aIdx := m.broadcastIndex(i, outShape, a.Shape())
		bIdx := m.broadcastIndex(i, outShape, b.Shape())
		resultData[i] = op(aData[aIdx], bData[bIdx])
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// MatMul performs naive 2D matrix multiplication.
func (m *MockBackend) MatMul(a, b *RawTensor) *RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic("MatMul only supports 2D tensors in mock backend")
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("incompatible shapes for MatMul: %v @ %v", aShape, bShape))
	}

	rows, inner := aShape[0], aShape[1]
	cols := bShape[1]

	result, err := NewRaw(Shape{rows, cols}, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := make([]float64, rows*cols)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum := 0.0
			for k := 0; k < inner; k++ {
				sum += aData[i*inner+k] * bData[k*cols+j]
			}
			resultData[i*cols+j] = sum
		}
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// MulScalar multiplies every element by the scalar.
func (m *MockBackend) MulScalar(x *RawTensor, scalar any) *RawTensor {
	var s float64
	switch v := scalar.(type) {
	case float32:
		s = float64(v)
	case float64:
		s = v
	default:
		panic(fmt.Sprintf("unsupported scalar type %T", scalar))
	}

	result, err := NewRaw(x.Shape(), x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v * s
	}
	m.fromFloat64Slice(out, result)
	return result
}

// Reshape returns a copy of t with the new shape.
func (m *MockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("cannot reshape %v to %v", t.Shape(), newShape))
	}

	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}
	copy(result.Data(), t.Data())
	return result
}

// Transpose permutes the dimensions of t. Without axes the dimension
// order is reversed.
func (m *MockBackend) Transpose(t *RawTensor, axes ...int) *RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose axes %v do not match rank %d", axes, ndim))
	}

	outShape := make(Shape, ndim)
	for i, ax := range axes {
		outShape[i] = shape[ax]
	}

	result, err := NewRaw(outShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	data := m.toFloat64Slice(t)
	out := make([]float64, len(data))

	for i := range data {
		rem := i
		outIdx := 0
		for d := 0; d < ndim; d++ {
			coord := rem / inStrides[d]
			rem %= inStrides[d]
			for od, ax := range axes {
				if ax == d {
					outIdx += coord * outStrides[od]
				}
			}
		}
		out[outIdx] = data[i]
	}

	m.fromFloat64Slice(out, result)
	return result
}

// Sum reduces all elements to a [1]-shaped tensor.
func (m *MockBackend) Sum(x *RawTensor) *RawTensor {
	return m.reduce(x, false)
}

// Mean reduces all elements to their average as a [1]-shaped tensor.
func (m *MockBackend) Mean(x *RawTensor) *RawTensor {
	return m.reduce(x, true)
}

func (m *MockBackend) reduce(x *RawTensor, mean bool) *RawTensor {
	result, err := NewRaw(Shape{1}, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	sum := 0.0
	for _, v := range m.toFloat64Slice(x) {
		sum += v
	}
	if mean && x.NumElements() > 0 {
		sum /= float64(x.NumElements())
	}

	m.fromFloat64Slice([]float64{sum}, result)
	return result
}

// broadcastIndex maps a flat index in outShape onto the corresponding
// flat index in inShape, treating size-1 dimensions as repeated.
func (m *MockBackend) broadcastIndex(flatIdx int, outShape, inShape Shape) int {
	outStrides := outShape.ComputeStrides()
	inStrides := inShape.ComputeStrides()
	offset := len(outShape) - len(inShape)

	inIdx := 0
	rem := flatIdx
	for d := 0; d < len(outShape); d++ {
		coord := rem / outStrides[d]
		rem %= outStrides[d]
		if d < offset {
			continue
		}
		if inShape[d-offset] == 1 {
			continue
		}
		inIdx += coord * inStrides[d-offset]
	}
	return inIdx
}

func (m *MockBackend) toFloat64Slice(t *RawTensor) []float64 {
	switch t.DType() {
	case Float32:
		src := t.AsFloat32()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case Float64:
		src := t.AsFloat64()
		out := make([]float64, len(src))
		copy(out, src)
		return out
	default:
		panic(fmt.Sprintf("unsupported dtype %s", t.DType()))
	}
}

func (m *MockBackend) fromFloat64Slice(data []float64, t *RawTensor) {
	switch t.DType() {
	case Float32:
		dst := t.AsFloat32()
		for i, v := range data {
			dst[i] = float32(v)
		}
	case Float64:
		copy(t.AsFloat64(), data)
	default:
		panic(fmt.Sprintf("unsupported dtype %s", t.DType()))
	}
}
