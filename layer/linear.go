package layer

import (
	"math"

	"github.com/fumi-engineer/siamese/tensor"
)

// Linear implements a fully connected layer.
type Linear struct {
	name    string
	weight  *tensor.Tensor // [outFeatures, inFeatures]
	bias    *tensor.Tensor // [outFeatures] or nil
	inFeat  int
	outFeat int
	useBias bool

	// Cached for backward
	lastInput *tensor.Tensor
}

// NewLinear creates a new linear layer.
func NewLinear(inFeatures, outFeatures int, useBias bool) *Linear {
	// Kaiming initialization
	std := float32(math.Sqrt(2.0 / float64(inFeatures)))
	weight := tensor.RandnWithStd(tensor.NewShape(outFeatures, inFeatures), tensor.F32, std)

	var bias *tensor.Tensor
	if useBias {
		bias = tensor.Zeros(tensor.NewShape(outFeatures), tensor.F32)
	}

	return &Linear{
		name:    uniqueName("linear"),
		weight:  weight,
		bias:    bias,
		inFeat:  inFeatures,
		outFeat: outFeatures,
		useBias: useBias,
	}
}

// Forward performs linear transformation and caches the input for Backward.
// Input: [..., inFeatures]
// Output: [..., outFeatures]
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	l.lastInput = input.Clone()
	return l.Infer(input)
}

// Infer computes y = xW^T + b without touching the backward cache, so it is
// safe to call from several goroutines at once.
func (l *Linear) Infer(input *tensor.Tensor) *tensor.Tensor {
	dims := input.Shape().Dims()
	batchDims := dims[:len(dims)-1]

	batchSize := 1
	for _, d := range batchDims {
		batchSize *= d
	}

	flatInput := input.Reshape(tensor.NewShape(batchSize, l.inFeat))
	output := tensor.Matmul(flatInput, l.weight.Transpose())

	if l.useBias {
		outputData := output.DataPtr()
		biasData := l.bias.DataPtr()
		for b := 0; b < batchSize; b++ {
			row := outputData[b*l.outFeat : (b+1)*l.outFeat]
			for i := range row {
				row[i] += biasData[i]
			}
		}
	}

	outDims := append(batchDims, l.outFeat)
	return output.Reshape(tensor.NewShape(outDims...))
}

// Backward returns dL/dx = dL/dy @ W and accumulates
// dW = dL/dy^T @ x and db = sum(dL/dy).
func (l *Linear) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if l.lastInput == nil {
		panic("backward called before forward")
	}
	inputShape := l.lastInput.Shape()

	batchSize := gradOutput.Shape().Numel() / l.outFeat
	flatGrad := gradOutput.Reshape(tensor.NewShape(batchSize, l.outFeat))
	flatInput := l.lastInput.Reshape(tensor.NewShape(batchSize, l.inFeat))

	gradInput := tensor.Matmul(flatGrad, l.weight)
	l.weight.AccumulateGrad(tensor.Matmul(flatGrad.Transpose(), flatInput).DataPtr())

	if l.useBias {
		db := make([]float32, l.outFeat)
		g := flatGrad.DataPtr()
		for b := 0; b < batchSize; b++ {
			for i, v := range g[b*l.outFeat : (b+1)*l.outFeat] {
				db[i] += v
			}
		}
		l.bias.AccumulateGrad(db)
	}

	return gradInput.Reshape(inputShape)
}

// Parameters returns weight and optionally bias.
func (l *Linear) Parameters() []*tensor.Tensor {
	if l.useBias {
		return []*tensor.Tensor{l.weight, l.bias}
	}
	return []*tensor.Tensor{l.weight}
}

// Config returns the layer's saved configuration.
func (l *Linear) Config() Config {
	return Config{
		ClassName: ClassLinear,
		Name:      l.name,
		Trainable: true,
		DType:     l.weight.DType().String(),
		InputDim:  l.inFeat,
		Units:     l.outFeat,
		UseBias:   l.useBias,
	}
}

// InFeatures returns input features.
func (l *Linear) InFeatures() int {
	return l.inFeat
}

// OutFeatures returns output features.
func (l *Linear) OutFeatures() int {
	return l.outFeat
}
