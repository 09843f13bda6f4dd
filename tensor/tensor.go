package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Tensor represents a multi-dimensional array.
type Tensor struct {
	data  []float32
	shape Shape
	dtype DType

	// Grad accumulates dL/dtensor for parameters; nil until first backward.
	Grad []float32
}

// New creates a new tensor with the given shape and dtype.
func New(shape Shape, dtype DType) *Tensor {
	return &Tensor{
		data:  make([]float32, shape.Numel()),
		shape: shape.Clone(),
		dtype: dtype,
	}
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DType) *Tensor {
	return New(shape, dtype)
}

// ZerosLike creates a zero-filled tensor with ref's shape and dtype.
func ZerosLike(ref *Tensor) *Tensor {
	return New(ref.shape, ref.dtype)
}

// Ones creates a ones-filled tensor.
func Ones(shape Shape, dtype DType) *Tensor {
	t := New(shape, dtype)
	for i := range t.data {
		t.data[i] = 1.0
	}
	return t
}

// FromSlice creates a tensor from a slice.
func FromSlice(data []float32, shape Shape) *Tensor {
	if len(data) != shape.Numel() {
		panic(fmt.Sprintf("data length %d != shape numel %d", len(data), shape.Numel()))
	}
	d := make([]float32, len(data))
	copy(d, data)
	return &Tensor{
		data:  d,
		shape: shape.Clone(),
		dtype: F32,
	}
}

// RandnWithStd creates a tensor with random normal values with given std.
func RandnWithStd(shape Shape, dtype DType, std float32) *Tensor {
	t := New(shape, dtype)
	for i := range t.data {
		t.data[i] = float32(rand.NormFloat64()) * std
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// DType returns the tensor's dtype.
func (t *Tensor) DType() DType {
	return t.dtype
}

// Data returns a copy of the underlying data.
func (t *Tensor) Data() []float32 {
	d := make([]float32, len(t.data))
	copy(d, t.data)
	return d
}

// DataPtr returns the underlying data pointer (use with caution).
func (t *Tensor) DataPtr() []float32 {
	return t.data
}

// At returns the value at the given indices.
func (t *Tensor) At(indices ...int) float32 {
	if len(indices) != t.shape.NDim() {
		panic(fmt.Sprintf("expected %d indices, got %d", t.shape.NDim(), len(indices)))
	}
	idx := 0
	strides := t.shape.Strides()
	for i, index := range indices {
		if index < 0 || index >= t.shape.At(i) {
			panic(fmt.Sprintf("index %d out of bounds for dim %d with size %d", index, i, t.shape.At(i)))
		}
		idx += index * strides[i]
	}
	return t.data[idx]
}

// Clone creates a deep copy of the tensor. Gradients are not copied.
func (t *Tensor) Clone() *Tensor {
	c := FromSlice(t.data, t.shape)
	c.dtype = t.dtype
	return c
}

// Reshape returns a reshaped view (must have same numel).
func (t *Tensor) Reshape(newShape Shape) *Tensor {
	if t.shape.Numel() != newShape.Numel() {
		panic(fmt.Sprintf("cannot reshape %v to %v: different numel", t.shape, newShape))
	}
	return &Tensor{
		data:  t.data, // shared data
		shape: newShape.Clone(),
		dtype: t.dtype,
	}
}

// AccumulateGrad adds g into the tensor's gradient buffer.
func (t *Tensor) AccumulateGrad(g []float32) {
	if t.Grad == nil {
		t.Grad = make([]float32, len(t.data))
	}
	for i, v := range g {
		t.Grad[i] += v
	}
}

// ZeroGrad clears the gradient buffer.
func (t *Tensor) ZeroGrad() {
	clear(t.Grad)
}

func (t *Tensor) mustMatch(other *Tensor) {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("shape mismatch: %v vs %v", t.shape, other.shape))
	}
}

// Add performs element-wise addition.
func (t *Tensor) Add(other *Tensor) *Tensor {
	t.mustMatch(other)
	result := New(t.shape, t.dtype)
	for i := range t.data {
		result.data[i] = t.data[i] + other.data[i]
	}
	return result
}

// Sub performs element-wise subtraction.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	t.mustMatch(other)
	result := New(t.shape, t.dtype)
	for i := range t.data {
		result.data[i] = t.data[i] - other.data[i]
	}
	return result
}

// Mul performs element-wise multiplication.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	t.mustMatch(other)
	result := New(t.shape, t.dtype)
	for i := range t.data {
		result.data[i] = t.data[i] * other.data[i]
	}
	return result
}

// Scale multiplies by a scalar.
func (t *Tensor) Scale(s float32) *Tensor {
	result := New(t.shape, t.dtype)
	for i := range t.data {
		result.data[i] = t.data[i] * s
	}
	return result
}

// Abs returns |t| element-wise.
func (t *Tensor) Abs() *Tensor {
	result := New(t.shape, t.dtype)
	for i, x := range t.data {
		result.data[i] = absF32(x)
	}
	return result
}

// Sign returns -1, 0 or 1 per element.
func (t *Tensor) Sign() *Tensor {
	result := New(t.shape, t.dtype)
	for i, x := range t.data {
		switch {
		case x > 0:
			result.data[i] = 1
		case x < 0:
			result.data[i] = -1
		}
	}
	return result
}

// SiLU applies SiLU activation (x * sigmoid(x)).
func (t *Tensor) SiLU() *Tensor {
	result := New(t.shape, t.dtype)
	for i, x := range t.data {
		result.data[i] = x * sigmoidF32(x)
	}
	return result
}

// Sigmoid applies the logistic function element-wise.
func (t *Tensor) Sigmoid() *Tensor {
	result := New(t.shape, t.dtype)
	for i, x := range t.data {
		result.data[i] = sigmoidF32(x)
	}
	return result
}

// Matmul performs matrix multiplication.
// For 2D: [M, K] x [K, N] -> [M, N]
func Matmul(a, b *Tensor) *Tensor {
	if a.shape.NDim() != 2 || b.shape.NDim() != 2 {
		panic("matmul requires 2D tensors")
	}

	aM, aK := a.shape.At(0), a.shape.At(1)
	bK, bN := b.shape.At(0), b.shape.At(1)
	if aK != bK {
		panic(fmt.Sprintf("matmul dimension mismatch: %d vs %d", aK, bK))
	}

	result := New(NewShape(aM, bN), a.dtype)
	for i := 0; i < aM; i++ {
		for k := 0; k < aK; k++ {
			av := a.data[i*aK+k]
			if av == 0 {
				continue
			}
			row := result.data[i*bN : (i+1)*bN]
			bRow := b.data[k*bN : (k+1)*bN]
			for j := range row {
				row[j] += av * bRow[j]
			}
		}
	}
	return result
}

// Transpose transposes a 2D tensor.
func (t *Tensor) Transpose() *Tensor {
	if t.shape.NDim() != 2 {
		panic("transpose requires a 2D tensor")
	}
	rows, cols := t.shape.At(0), t.shape.At(1)
	result := New(NewShape(cols, rows), t.dtype)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			result.data[j*rows+i] = t.data[i*cols+j]
		}
	}
	return result
}

func absF32(x float32) float32 {
	return math.Float32frombits(math.Float32bits(x) &^ (1 << 31))
}

func sigmoidF32(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}
