package cpu

import (
	"testing"

	"github.com/peft-go/peft/internal/tensor"
)

// Helper to create test backend.
func newTestBackend() *CPUBackend {
	return New()
}

// Helper to check float32 slices are equal within epsilon.
func float32SliceEqual(a, b []float32) bool {
	const epsilon = 1e-6
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > epsilon {
			return false
		}
	}
	return true
}

func rawFromFloat32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	copy(r.AsFloat32(), data)
	return r
}

func rawFromFloat64(t *testing.T, data []float64, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	copy(r.AsFloat64(), data)
	return r
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	if backend == nil {
		t.Fatal("New() returned nil")
	}
	if backend.Name() != "CPU" {
		t.Errorf("Expected name 'CPU', got '%s'", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Expected device CPU, got %v", backend.Device())
	}
}

func TestCPUBackend_Add(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := rawFromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})

	c := backend.Add(a, b)

	if !float32SliceEqual(c.AsFloat32(), []float32{11, 22, 33, 44}) {
		t.Errorf("Add = %v, want [11 22 33 44]", c.AsFloat32())
	}
}

func TestCPUBackend_AddBroadcast(t *testing.T) {
	backend := newTestBackend()

	// [2,3] + [1,3] broadcasts the row vector over both rows.
	a := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFromFloat32(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	c := backend.Add(a, b)

	if !c.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("Add broadcast shape = %v, want [2 3]", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{11, 22, 33, 14, 25, 36}) {
		t.Errorf("Add broadcast = %v", c.AsFloat32())
	}
}

func TestCPUBackend_SubMulDiv(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{4})
	b := rawFromFloat32(t, []float32{2, 4, 5, 8}, tensor.Shape{4})

	if got := backend.Sub(a, b).AsFloat32(); !float32SliceEqual(got, []float32{8, 16, 25, 32}) {
		t.Errorf("Sub = %v", got)
	}

	a = rawFromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{4})
	if got := backend.Mul(a, b).AsFloat32(); !float32SliceEqual(got, []float32{20, 80, 150, 320}) {
		t.Errorf("Mul = %v", got)
	}

	a = rawFromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{4})
	if got := backend.Div(a, b).AsFloat32(); !float32SliceEqual(got, []float32{5, 5, 6, 5}) {
		t.Errorf("Div = %v", got)
	}
}

func TestCPUBackend_AddDTypeMismatch(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1}, tensor.Shape{1})
	b := rawFromFloat64(t, []float64{1}, tensor.Shape{1})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Add with mismatched dtypes should panic")
		}
	}()
	backend.Add(a, b)
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := newTestBackend()

	// [[1,2],[3,4]] @ [[5,6],[7,8]] = [[19,22],[43,50]]
	a := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := rawFromFloat32(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	c := backend.MatMul(a, b)

	if !c.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("MatMul shape = %v, want [2 2]", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{19, 22, 43, 50}) {
		t.Errorf("MatMul = %v, want [19 22 43 50]", c.AsFloat32())
	}
}

func TestCPUBackend_MatMulRectangular(t *testing.T) {
	backend := newTestBackend()

	// [2,3] @ [3,1] = [2,1]
	a := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFromFloat32(t, []float32{1, 1, 1}, tensor.Shape{3, 1})

	c := backend.MatMul(a, b)

	if !c.Shape().Equal(tensor.Shape{2, 1}) {
		t.Fatalf("MatMul shape = %v, want [2 1]", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{6, 15}) {
		t.Errorf("MatMul = %v, want [6 15]", c.AsFloat32())
	}
}

func TestCPUBackend_MatMulFloat64(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat64(t, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := rawFromFloat64(t, []float64{5, 6, 7, 8}, tensor.Shape{2, 2})

	c := backend.MatMul(a, b)

	want := []float64{19, 22, 43, 50}
	for i, v := range c.AsFloat64() {
		if v != want[i] {
			t.Errorf("MatMul float64[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestCPUBackend_MatMulIncompatible(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := rawFromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3, 1})

	defer func() {
		if r := recover(); r == nil {
			t.Error("MatMul with incompatible inner dims should panic")
		}
	}()
	backend.MatMul(a, b)
}

func TestCPUBackend_MulScalar(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3})
	c := backend.MulScalar(a, float32(2.5))

	if !float32SliceEqual(c.AsFloat32(), []float32{2.5, 5, 7.5}) {
		t.Errorf("MulScalar = %v", c.AsFloat32())
	}
}

func TestCPUBackend_MulScalarTypeMismatch(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1}, tensor.Shape{1})

	defer func() {
		if r := recover(); r == nil {
			t.Error("MulScalar with float64 scalar on float32 tensor should panic")
		}
	}()
	backend.MulScalar(a, float64(2))
}

func TestCPUBackend_Reshape(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := backend.Reshape(a, tensor.Shape{3, 2})

	if !b.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Reshape shape = %v, want [3 2]", b.Shape())
	}
	if !float32SliceEqual(b.AsFloat32(), []float32{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Reshape must preserve element order, got %v", b.AsFloat32())
	}
}

func TestCPUBackend_ReshapeIncompatible(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Reshape changing element count should panic")
		}
	}()
	backend.Reshape(a, tensor.Shape{3, 2})
}

func TestCPUBackend_Transpose2D(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := backend.Transpose(a)

	if !b.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Transpose shape = %v, want [3 2]", b.Shape())
	}
	if !float32SliceEqual(b.AsFloat32(), []float32{1, 4, 2, 5, 3, 6}) {
		t.Errorf("Transpose = %v, want [1 4 2 5 3 6]", b.AsFloat32())
	}
}

func TestCPUBackend_TransposeAxes(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	b := backend.Transpose(a, 1, 0, 2)

	if !b.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("Transpose shape = %v, want [2 2 2]", b.Shape())
	}
	// Swapping the first two axes swaps the middle blocks.
	if !float32SliceEqual(b.AsFloat32(), []float32{1, 2, 5, 6, 3, 4, 7, 8}) {
		t.Errorf("Transpose(1,0,2) = %v", b.AsFloat32())
	}
}

func TestCPUBackend_TransposeInvalidAxes(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Transpose with duplicate axes should panic")
		}
	}()
	backend.Transpose(a, 0, 0)
}

func TestCPUBackend_SumMean(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	s := backend.Sum(a)
	if !s.Shape().Equal(tensor.Shape{1}) {
		t.Fatalf("Sum shape = %v, want [1]", s.Shape())
	}
	if got := s.AsFloat32()[0]; got != 10 {
		t.Errorf("Sum = %v, want 10", got)
	}

	m := backend.Mean(a)
	if got := m.AsFloat32()[0]; got != 2.5 {
		t.Errorf("Mean = %v, want 2.5", got)
	}
}

func TestCPUBackend_InPlaceFastPath(t *testing.T) {
	backend := newTestBackend()

	// A unique operand may be reused as the result buffer.
	a := rawFromFloat32(t, []float32{1, 2}, tensor.Shape{2})
	b := rawFromFloat32(t, []float32{10, 20}, tensor.Shape{2})

	c := backend.Add(a, b)
	if !float32SliceEqual(c.AsFloat32(), []float32{11, 22}) {
		t.Fatalf("Add = %v", c.AsFloat32())
	}

	// A shared operand must never be mutated.
	x := rawFromFloat32(t, []float32{1, 2}, tensor.Shape{2})
	release := x.ForceNonUnique()
	defer release()

	y := rawFromFloat32(t, []float32{5, 5}, tensor.Shape{2})
	z := backend.Add(x, y)

	if !float32SliceEqual(x.AsFloat32(), []float32{1, 2}) {
		t.Errorf("shared operand mutated: %v", x.AsFloat32())
	}
	if !float32SliceEqual(z.AsFloat32(), []float32{6, 7}) {
		t.Errorf("Add = %v, want [6 7]", z.AsFloat32())
	}
}
