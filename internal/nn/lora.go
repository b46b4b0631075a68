package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/peft-go/peft/internal/tensor"
)

// LoRA is a low-rank adapter: it produces a learned additive correction to
// its input using two small trainable factor matrices.
//
// Forward: y = x + (x @ A @ B) * scaling, where
//   - A has shape [dim, rank], initialized from N(0, 1/rank) (std 1/sqrt(rank))
//   - B has shape [rank, dim], initialized to zeros
//   - scaling = alpha / rank
//
// Because B starts at zero the adapter's initial contribution is exactly
// zero: a freshly constructed LoRA is the identity function. The adapter is
// square (dim in, dim out) by construction, which is what makes the
// residual add well-formed.
type LoRA[B tensor.Backend] struct {
	dim     int
	rank    int
	alpha   float32
	scaling float32
	a       *Parameter[B] // [dim, rank]
	b       *Parameter[B] // [rank, dim]
	backend B
}

// NewLoRA creates a new low-rank adapter for dim-sized vectors.
//
// rank controls the capacity of the adaptation (rank << dim in practice,
// though any rank >= 1 is accepted); alpha normalizes the correction's
// magnitude independent of rank via scaling = alpha / rank.
func NewLoRA[B tensor.Backend](dim, rank int, alpha float32, rng *rand.Rand, backend B) (*LoRA[B], error) {
	if dim <= 0 {
		return nil, fmt.Errorf("lora: dim must be positive, got %d", dim)
	}
	if rank <= 0 {
		return nil, fmt.Errorf("lora: rank must be positive, got %d", rank)
	}

	std := 1.0 / math.Sqrt(float64(rank))
	a := NewParameter("lora_a", ScaledNormal(tensor.Shape{dim, rank}, std, rng, backend))
	b := NewParameter("lora_b", Zeros(tensor.Shape{rank, dim}, backend))

	return &LoRA[B]{
		dim:     dim,
		rank:    rank,
		alpha:   alpha,
		scaling: alpha / float32(rank),
		a:       a,
		b:       b,
		backend: backend,
	}, nil
}

// Forward returns x + (x @ A @ B) * scaling.
//
// The input must be 2D, [batch_size, dim]; the backend's MatMul is 2D
// only, so callers with higher-rank inputs flatten the leading
// dimensions into the batch axis first. Forward panics on any other
// shape.
//
// Output shape: [batch_size, dim]
func (l *LoRA[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("LoRA.Forward: expected 2D input [batch, dim], got shape %v", shape))
	}
	if shape[1] != l.dim {
		panic(fmt.Sprintf("LoRA.Forward: expected input with %d features, got %d", l.dim, shape[1]))
	}

	// [batch, dim] @ [dim, rank] @ [rank, dim] = [batch, dim]
	correction := x.MatMul(l.a.Tensor()).MatMul(l.b.Tensor()).MulScalar(l.scaling)
	return x.Add(correction)
}

// Parameters returns the trainable parameters [lora_a, lora_b].
func (l *LoRA[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.a, l.b}
}

// A returns the down-projection factor parameter ([dim, rank]).
func (l *LoRA[B]) A() *Parameter[B] {
	return l.a
}

// FactorB returns the up-projection factor parameter ([rank, dim]).
func (l *LoRA[B]) FactorB() *Parameter[B] {
	return l.b
}

// Dim returns the adapted feature dimension.
func (l *LoRA[B]) Dim() int {
	return l.dim
}

// Rank returns the inner dimension of the factor matrices.
func (l *LoRA[B]) Rank() int {
	return l.rank
}

// Alpha returns the magnitude hyperparameter.
func (l *LoRA[B]) Alpha() float32 {
	return l.alpha
}

// Scaling returns alpha / rank.
func (l *LoRA[B]) Scaling() float32 {
	return l.scaling
}

// LoRALinear is a linear layer whose base transform is frozen and whose
// only trainable state is a LoRA adapter applied to the base's OUTPUT:
//
//	y = lora(x @ W.T + b)
//
// The base weight and bias are initialized like a regular Linear but are
// never returned by Parameters, so the optimizer cannot update them: all
// learned change lands in the adapter factors A and B. The layer must be
// square (in == out) so the adapter's residual add is well-formed.
//
// Note the composition order: the adapter corrects the layer's output
// rather than branching off the raw input in parallel with W.
type LoRALinear[B tensor.Backend] struct {
	base    *Linear[B]
	adapter *LoRA[B]
	backend B
}

// NewLoRALinear creates a frozen Linear of the given size with a trainable
// LoRA adapter on its output.
func NewLoRALinear[B tensor.Backend](features, rank int, alpha float32, rng *rand.Rand, backend B) (*LoRALinear[B], error) {
	if features <= 0 {
		return nil, fmt.Errorf("lora linear: features must be positive, got %d", features)
	}

	base := NewLinear(features, features, rng, backend)
	adapter, err := NewLoRA(features, rank, alpha, rng, backend)
	if err != nil {
		return nil, err
	}

	return &LoRALinear[B]{
		base:    base,
		adapter: adapter,
		backend: backend,
	}, nil
}

// Forward computes lora(x @ W.T + b).
func (l *LoRALinear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return l.adapter.Forward(l.base.Forward(input))
}

// Parameters returns only the adapter's trainable parameters.
// The base weight and bias are frozen by omission.
func (l *LoRALinear[B]) Parameters() []*Parameter[B] {
	return l.adapter.Parameters()
}

// Base returns the frozen base linear layer (read-only by convention).
func (l *LoRALinear[B]) Base() *Linear[B] {
	return l.base
}

// Adapter returns the LoRA adapter.
func (l *LoRALinear[B]) Adapter() *LoRA[B] {
	return l.adapter
}

// Features returns the layer's (square) feature dimension.
func (l *LoRALinear[B]) Features() int {
	return l.base.InFeatures()
}

// StateDict returns base and adapter parameters.
func (l *LoRALinear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.base.Weight().Tensor().Raw(),
		"bias":   l.base.Bias().Tensor().Raw(),
		"lora_a": l.adapter.A().Tensor().Raw(),
		"lora_b": l.adapter.FactorB().Tensor().Raw(),
	}
}

// LoadStateDict loads base and adapter parameters.
func (l *LoRALinear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := l.base.LoadStateDict(stateDict); err != nil {
		return err
	}
	d, r := l.adapter.dim, l.adapter.rank
	if err := loadParam(l.adapter.a, stateDict, "lora_a", tensor.Shape{d, r}); err != nil {
		return err
	}
	return loadParam(l.adapter.b, stateDict, "lora_b", tensor.Shape{r, d})
}

// Merge folds the trained adapter into a plain Linear that computes the
// same function without adapter machinery.
//
// With M = I + A @ B * scaling, the adapted layer is
//
//	y = (x @ W.T + b) @ M = x @ (W.T @ M) + b @ M
//
// so the merged layer has weight (W.T @ M).T = M.T @ W and bias b @ M.
func (l *LoRALinear[B]) Merge() *Linear[B] {
	d := l.Features()

	// M = I + A @ B * scaling
	identity := Zeros[B](tensor.Shape{d, d}, l.backend)
	for i := 0; i < d; i++ {
		identity.Set(1, i, i)
	}
	ab := l.adapter.a.Tensor().MatMul(l.adapter.b.Tensor()).MulScalar(l.adapter.scaling)
	m := identity.Add(ab)

	mergedWeight := m.T().MatMul(l.base.Weight().Tensor())
	mergedBias := l.base.Bias().Tensor().Reshape(1, d).MatMul(m).Reshape(d)

	return &Linear[B]{
		inFeatures:  d,
		outFeatures: d,
		weight:      NewParameter("weight", mergedWeight),
		bias:        NewParameter("bias", mergedBias),
		backend:     l.backend,
	}
}
