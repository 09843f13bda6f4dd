// Package layer provides the neural network layers of the siamese model,
// centred on the L1 distance layer that merges two embeddings.
package layer

import (
	"github.com/fumi-engineer/siamese/tensor"
)

// Layer is the interface for single-input layers.
type Layer interface {
	// Forward performs forward pass.
	Forward(input *tensor.Tensor) *tensor.Tensor
	// Backward performs backward pass.
	Backward(gradOutput *tensor.Tensor) *tensor.Tensor
	// Parameters returns the layer's trainable parameters.
	Parameters() []*tensor.Tensor
}

// Serializable is implemented by every layer that can be rebuilt from its
// saved configuration with FromConfig.
type Serializable interface {
	Config() Config
	Parameters() []*tensor.Tensor
}

var (
	_ Layer        = (*Linear)(nil)
	_ Layer        = (*SiLU)(nil)
	_ Layer        = (*Sigmoid)(nil)
	_ Serializable = (*Linear)(nil)
	_ Serializable = (*Distance)(nil)
)
