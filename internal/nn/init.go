package nn

import (
	"math"
	"math/rand"

	"github.com/peft-go/peft/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes values from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
// This keeps the variance of activations stable across layers.
//
// The random source is injected so callers (and tests) control seeding
// without relying on process-global state.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// ScaledNormal initializes values from N(0, std²).
//
// LoRA uses this for its A factor with std = 1/sqrt(rank), so the scale of
// the adapter's input projection is independent of the chosen rank.
func ScaledNormal[B tensor.Backend](shape tensor.Shape, std float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Randn[float32](shape, rng, backend)
	data := t.Data()
	stdF32 := float32(std)
	for i := range data {
		data[i] *= stdF32
	}
	return t
}

// Zeros creates a tensor filled with zeros.
//
// Used for bias initialization and for LoRA's B factor, which makes the
// adapter's initial contribution exactly zero.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
