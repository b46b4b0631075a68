package nn

import (
	"github.com/peft-go/peft/internal/tensor"
)

// MSELoss computes mean squared error loss.
//
// Loss = mean((predictions - targets)²)
//
// The loss is built entirely from backend operations (Sub, Mul, Mean), so
// when the backend is an autodiff decorator the whole computation lands on
// the tape and gradients flow from the scalar loss back to the parameters.
//
// Example:
//
//	mse := nn.NewMSELoss(backend)
//	predictions := model.Forward(input)
//	loss := mse.Forward(predictions, targets) // [1]-shaped scalar
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{
		backend: backend,
	}
}

// Forward computes mean((predictions - targets)²) as a [1]-shaped tensor.
//
// Panics if predictions and targets have different shapes.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}

	diff := predictions.Sub(targets)
	squared := diff.Mul(diff)
	return squared.Mean()
}

// Parameters returns nil (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}
