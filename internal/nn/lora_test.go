package nn_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peft-go/peft/internal/nn"
	"github.com/peft-go/peft/internal/serialization"
	"github.com/peft-go/peft/internal/tensor"
)

func TestLoRAConstruction(t *testing.T) {
	backend := newBackend()

	adapter, err := nn.NewLoRA(8, 2, 4.0, newRNG(), backend)
	require.NoError(t, err)

	assert.Equal(t, 8, adapter.Dim())
	assert.Equal(t, 2, adapter.Rank())
	assert.InDelta(t, 4.0, adapter.Alpha(), 1e-6)
	assert.True(t, adapter.A().Tensor().Shape().Equal(tensor.Shape{8, 2}))
	assert.True(t, adapter.FactorB().Tensor().Shape().Equal(tensor.Shape{2, 8}))

	// B starts at zero.
	for _, v := range adapter.FactorB().Tensor().Data() {
		assert.Zero(t, v)
	}

	// A is random, not degenerate.
	nonzero := false
	for _, v := range adapter.A().Tensor().Data() {
		if v != 0 {
			nonzero = true
			break
		}
	}
	assert.True(t, nonzero, "A should be randomly initialized")
}

func TestLoRAInvalidArgs(t *testing.T) {
	backend := newBackend()

	_, err := nn.NewLoRA(0, 2, 1.0, newRNG(), backend)
	assert.Error(t, err)

	_, err = nn.NewLoRA(4, 0, 1.0, newRNG(), backend)
	assert.Error(t, err)

	_, err = nn.NewLoRA(-1, -1, 1.0, newRNG(), backend)
	assert.Error(t, err)
}

func TestLoRAScaling(t *testing.T) {
	backend := newBackend()

	tests := []struct {
		rank  int
		alpha float32
		want  float32
	}{
		{1, 1, 1},
		{2, 4, 2},
		{4, 2, 0.5},
		{8, 8, 1},
	}

	for _, tt := range tests {
		adapter, err := nn.NewLoRA(8, tt.rank, tt.alpha, newRNG(), backend)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, adapter.Scaling(), 1e-6,
			"scaling for rank=%d alpha=%v", tt.rank, tt.alpha)
	}
}

// TestLoRAIdentityAtInit tests that a fresh adapter passes its input
// through unchanged, because B is zero.
func TestLoRAIdentityAtInit(t *testing.T) {
	backend := newBackend()

	adapter, err := nn.NewLoRA(3, 2, 4.0, newRNG(), backend)
	require.NoError(t, err)

	x, err := tensor.FromSlice([]float32{1, -2, 3, 0.5, 0, -1}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	y := adapter.Forward(x)

	require.True(t, y.Shape().Equal(tensor.Shape{2, 3}))
	for i := range x.Data() {
		assert.InDelta(t, x.Data()[i], y.Data()[i], 1e-6, "output[%d]", i)
	}
}

// TestLoRAAlphaScalesCorrection tests that doubling alpha doubles the
// adapter's correction for fixed factors.
func TestLoRAAlphaScalesCorrection(t *testing.T) {
	backend := newBackend()

	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	correction := func(alpha float32) []float32 {
		adapter, err := nn.NewLoRA(2, 1, alpha, newRNG(), backend)
		require.NoError(t, err)

		// Fixed nonzero factors so the correction is deterministic.
		copy(adapter.A().Tensor().Data(), []float32{0.5, -0.25})
		copy(adapter.FactorB().Tensor().Data(), []float32{1, 2})

		y := adapter.Forward(x)
		out := make([]float32, len(y.Data()))
		for i := range out {
			out[i] = y.Data()[i] - x.Data()[i]
		}
		return out
	}

	base := correction(1)
	doubled := correction(2)

	for i := range base {
		assert.InDelta(t, 2*base[i], doubled[i], 1e-5, "correction[%d]", i)
	}
}

func TestLoRAParameters(t *testing.T) {
	backend := newBackend()

	adapter, err := nn.NewLoRA(4, 2, 2.0, newRNG(), backend)
	require.NoError(t, err)

	params := adapter.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "lora_a", params[0].Name())
	assert.Equal(t, "lora_b", params[1].Name())
}

func TestLoRALinearConstruction(t *testing.T) {
	backend := newBackend()

	layer, err := nn.NewLoRALinear(4, 2, 4.0, newRNG(), backend)
	require.NoError(t, err)

	assert.Equal(t, 4, layer.Features())
	assert.Equal(t, 4, layer.Base().InFeatures())
	assert.Equal(t, 4, layer.Base().OutFeatures())

	_, err = nn.NewLoRALinear(0, 2, 4.0, newRNG(), backend)
	assert.Error(t, err)
}

// TestLoRALinearOnlyAdapterTrains tests that the base layer's weight and
// bias are not in the trainable parameter list.
func TestLoRALinearOnlyAdapterTrains(t *testing.T) {
	backend := newBackend()

	layer, err := nn.NewLoRALinear(4, 2, 4.0, newRNG(), backend)
	require.NoError(t, err)

	params := layer.Parameters()
	require.Len(t, params, 2)
	for _, p := range params {
		assert.NotSame(t, layer.Base().Weight(), p)
		assert.NotSame(t, layer.Base().Bias(), p)
	}
	assert.Same(t, layer.Adapter().A(), params[0])
	assert.Same(t, layer.Adapter().FactorB(), params[1])
}

// TestLoRALinearFreshEqualsBase tests that a freshly adapted layer
// computes exactly what its base computes.
func TestLoRALinearFreshEqualsBase(t *testing.T) {
	backend := newBackend()

	layer, err := nn.NewLoRALinear(3, 2, 4.0, newRNG(), backend)
	require.NoError(t, err)

	x, err := tensor.FromSlice([]float32{1, 2, 3, -1, 0, 2}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	baseOut := layer.Base().Forward(x)
	adaptedOut := layer.Forward(x)

	for i := range baseOut.Data() {
		assert.InDelta(t, baseOut.Data()[i], adaptedOut.Data()[i], 1e-6)
	}
}

// TestLoRALinearForwardIdempotent tests that repeated forward passes give
// identical results.
func TestLoRALinearForwardIdempotent(t *testing.T) {
	backend := newBackend()

	layer, err := nn.NewLoRALinear(2, 1, 2.0, newRNG(), backend)
	require.NoError(t, err)
	copy(layer.Adapter().FactorB().Tensor().Data(), []float32{0.3, -0.7})

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	first := append([]float32(nil), layer.Forward(x).Data()...)
	second := layer.Forward(x).Data()

	for i := range first {
		assert.Equal(t, first[i], second[i], "output[%d] changed between passes", i)
	}
}

// TestLoRALinearMerge tests that the merged plain Linear computes the same
// function as the adapted layer.
func TestLoRALinearMerge(t *testing.T) {
	backend := newBackend()

	layer, err := nn.NewLoRALinear(3, 2, 4.0, newRNG(), backend)
	require.NoError(t, err)

	// Nonzero factors so the adapter actually contributes.
	copy(layer.Adapter().A().Tensor().Data(), []float32{0.1, 0.2, -0.3, 0.4, 0.5, -0.6})
	copy(layer.Adapter().FactorB().Tensor().Data(), []float32{1, -1, 0.5, 0.2, 0.8, -0.4})
	copy(layer.Base().Bias().Tensor().Data(), []float32{0.5, -0.5, 1})

	x, err := tensor.FromSlice([]float32{1, 2, 3, -1, 0.5, 2}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	adapted := layer.Forward(x)
	merged := layer.Merge().Forward(x)

	if diff := cmp.Diff(adapted.Data(), merged.Data(), cmpopts.EquateApprox(0, 1e-4)); diff != "" {
		t.Errorf("merged layer diverges from adapted layer:\n%s", diff)
	}
}

func TestLoRALinearStateDict(t *testing.T) {
	backend := newBackend()

	src, err := nn.NewLoRALinear(2, 1, 2.0, newRNG(), backend)
	require.NoError(t, err)
	copy(src.Adapter().FactorB().Tensor().Data(), []float32{0.5, -0.5})

	sd := src.StateDict()
	require.Len(t, sd, 4)

	dst, err := nn.NewLoRALinear(2, 1, 2.0, newRNG(), backend)
	require.NoError(t, err)
	require.NoError(t, dst.LoadStateDict(sd))

	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	want := src.Forward(x).Data()
	got := dst.Forward(x).Data()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-6)
	}
}

func TestLoRALinearLoadStateDictErrors(t *testing.T) {
	backend := newBackend()

	layer, err := nn.NewLoRALinear(2, 1, 2.0, newRNG(), backend)
	require.NoError(t, err)

	sd := layer.StateDict()
	delete(sd, "lora_a")
	assert.ErrorIs(t, layer.LoadStateDict(sd), serialization.ErrTensorNotFound)
}
