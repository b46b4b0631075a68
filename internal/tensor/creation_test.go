package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestZeros(t *testing.T) {
	backend := NewMockBackend()

	x := Zeros[float32](Shape{2, 3}, backend)

	assertEqualShape(t, Shape{2, 3}, x.Shape(), "Zeros shape")
	for i, v := range x.Data() {
		if v != 0 {
			t.Errorf("Zeros[%d] = %v, want 0", i, v)
		}
	}
}

func TestOnes(t *testing.T) {
	backend := NewMockBackend()

	x := Ones[float32](Shape{4}, backend)

	for i, v := range x.Data() {
		if v != 1 {
			t.Errorf("Ones[%d] = %v, want 1", i, v)
		}
	}
}

func TestFull(t *testing.T) {
	backend := NewMockBackend()

	x := Full(Shape{3}, float32(2.5), backend)

	for i, v := range x.Data() {
		if v != 2.5 {
			t.Errorf("Full[%d] = %v, want 2.5", i, v)
		}
	}
}

func TestRandnDeterministic(t *testing.T) {
	backend := NewMockBackend()

	a := Randn[float32](Shape{100}, rand.New(rand.NewSource(42)), backend)
	b := Randn[float32](Shape{100}, rand.New(rand.NewSource(42)), backend)

	for i := range a.Data() {
		if a.Data()[i] != b.Data()[i] {
			t.Fatalf("same seed produced different values at %d: %v vs %v",
				i, a.Data()[i], b.Data()[i])
		}
	}

	c := Randn[float32](Shape{100}, rand.New(rand.NewSource(7)), backend)
	same := true
	for i := range a.Data() {
		if a.Data()[i] != c.Data()[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical values")
	}
}

func TestRandnDistribution(t *testing.T) {
	backend := NewMockBackend()

	x := Randn[float64](Shape{10000}, rand.New(rand.NewSource(1)), backend)

	sum := 0.0
	for _, v := range x.Data() {
		sum += v
	}
	mean := sum / float64(x.NumElements())

	variance := 0.0
	for _, v := range x.Data() {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(x.NumElements())

	if math.Abs(mean) > 0.05 {
		t.Errorf("sample mean = %v, want ~0", mean)
	}
	if math.Abs(variance-1) > 0.1 {
		t.Errorf("sample variance = %v, want ~1", variance)
	}
}

func TestRandRange(t *testing.T) {
	backend := NewMockBackend()

	x := Rand[float32](Shape{1000}, rand.New(rand.NewSource(3)), backend)

	for i, v := range x.Data() {
		if v < 0 || v >= 1 {
			t.Errorf("Rand[%d] = %v, want [0, 1)", i, v)
		}
	}
}
