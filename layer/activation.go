package layer

import (
	"github.com/fumi-engineer/siamese/tensor"
)

var (
	_ Serializable = (*SiLU)(nil)
	_ Serializable = (*Sigmoid)(nil)
)

// SiLU applies x * sigmoid(x).
type SiLU struct {
	name      string
	dtype     string
	lastInput *tensor.Tensor
}

// NewSiLU creates a SiLU activation layer.
func NewSiLU() *SiLU {
	return &SiLU{name: uniqueName("silu")}
}

// Forward applies SiLU and caches the input.
func (s *SiLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	s.lastInput = input
	return input.SiLU()
}

// Backward uses silu'(z) = sigmoid(z) * (1 + z*(1 - sigmoid(z))).
func (s *SiLU) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if s.lastInput == nil {
		panic("backward called before forward")
	}
	sig := s.lastInput.Sigmoid().DataPtr()
	z := s.lastInput.DataPtr()
	grad := gradOutput.Clone()
	g := grad.DataPtr()
	for i := range g {
		g[i] *= sig[i] * (1 + z[i]*(1-sig[i]))
	}
	return grad
}

// Parameters returns nil; SiLU has no weights.
func (s *SiLU) Parameters() []*tensor.Tensor { return nil }

// Config returns the layer's saved configuration.
func (s *SiLU) Config() Config {
	return Config{ClassName: ClassSiLU, Name: s.name, Trainable: true, DType: dtypeOrDefault(s.dtype)}
}

// Sigmoid applies the logistic function; used as the similarity head.
type Sigmoid struct {
	name       string
	dtype      string
	lastOutput *tensor.Tensor
}

// NewSigmoid creates a Sigmoid activation layer.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{name: uniqueName("sigmoid")}
}

// Forward applies the sigmoid and caches its output.
func (s *Sigmoid) Forward(input *tensor.Tensor) *tensor.Tensor {
	s.lastOutput = input.Sigmoid()
	return s.lastOutput
}

// Backward uses sigmoid'(z) = y * (1 - y).
func (s *Sigmoid) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if s.lastOutput == nil {
		panic("backward called before forward")
	}
	y := s.lastOutput.DataPtr()
	grad := gradOutput.Clone()
	g := grad.DataPtr()
	for i := range g {
		g[i] *= y[i] * (1 - y[i])
	}
	return grad
}

// Parameters returns nil; Sigmoid has no weights.
func (s *Sigmoid) Parameters() []*tensor.Tensor { return nil }

// Config returns the layer's saved configuration.
func (s *Sigmoid) Config() Config {
	return Config{ClassName: ClassSigmoid, Name: s.name, Trainable: true, DType: dtypeOrDefault(s.dtype)}
}
