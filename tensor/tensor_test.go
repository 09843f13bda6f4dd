package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	s := NewShape(2, 3, 4)
	assert.Equal(t, 3, s.NDim())
	assert.Equal(t, 24, s.Numel())
	assert.Equal(t, []int{2, 3, 4}, s.Dims())
	assert.Equal(t, 4, s.At(-1))
	assert.Equal(t, 0, s.At(7))
	assert.Equal(t, "[2, 3, 4]", s.String())
}

func TestShapeStrides(t *testing.T) {
	// Row-major: [12, 4, 1]
	assert.Equal(t, []int{12, 4, 1}, NewShape(2, 3, 4).Strides())
}

func TestShapeCloneIsIndependent(t *testing.T) {
	dims := []int{2, 3}
	s := NewShape(dims...)
	dims[0] = 9
	c := s.Clone()
	assert.True(t, c.Equal(NewShape(2, 3)))
}

func TestTensorZerosLike(t *testing.T) {
	ref := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3))
	z := ZerosLike(ref)
	assert.True(t, z.Shape().Equal(ref.Shape()))
	assert.Equal(t, make([]float32, 6), z.Data())
}

func TestTensorFromSlice(t *testing.T) {
	tensor := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3))
	assert.Equal(t, float32(1), tensor.At(0, 0))
	assert.Equal(t, float32(6), tensor.At(1, 2))
	assert.Panics(t, func() { FromSlice([]float32{1, 2}, NewShape(3)) })
}

func TestTensorElementwise(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3}, NewShape(3))
	b := FromSlice([]float32{4, 5, 6}, NewShape(3))

	assert.Equal(t, []float32{5, 7, 9}, a.Add(b).Data())
	assert.Equal(t, []float32{-3, -3, -3}, a.Sub(b).Data())
	assert.Equal(t, []float32{4, 10, 18}, a.Mul(b).Data())
	assert.Equal(t, []float32{2, 4, 6}, a.Scale(2).Data())
	assert.Panics(t, func() { a.Sub(FromSlice([]float32{1, 2}, NewShape(2))) })
}

func TestTensorAbsAndSign(t *testing.T) {
	a := FromSlice([]float32{-1.5, 0, 2}, NewShape(3))
	assert.Equal(t, []float32{1.5, 0, 2}, a.Abs().Data())
	assert.Equal(t, []float32{-1, 0, 1}, a.Sign().Data())
}

func TestTensorActivations(t *testing.T) {
	a := FromSlice([]float32{0, 1, -1}, NewShape(3))

	silu := a.SiLU().Data()
	assert.InDelta(t, 0, silu[0], 1e-3)
	assert.InDelta(t, 0.731, silu[1], 1e-2)
	assert.InDelta(t, -0.269, silu[2], 1e-2)

	sig := a.Sigmoid().Data()
	assert.InDelta(t, 0.5, sig[0], 1e-6)
	assert.InDelta(t, 0.731, sig[1], 1e-2)
}

func TestMatmul(t *testing.T) {
	// [2, 3] x [3, 4] -> [2, 4]
	a := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3))
	b := FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, NewShape(3, 4))
	c := Matmul(a, b)

	require.True(t, c.Shape().Equal(NewShape(2, 4)))
	// c[0,0] = 1*1 + 2*5 + 3*9 = 38
	assert.Equal(t, float32(38), c.At(0, 0))
	assert.Equal(t, float32(6*4+5*8+4*12), c.At(1, 3))
}

func TestTranspose(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3))
	b := a.Transpose()
	require.True(t, b.Shape().Equal(NewShape(3, 2)))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, b.Data())
}

func TestAccumulateGrad(t *testing.T) {
	p := Zeros(NewShape(2), F32)
	p.AccumulateGrad([]float32{1, 2})
	p.AccumulateGrad([]float32{1, 2})
	assert.Equal(t, []float32{2, 4}, p.Grad)
	p.ZeroGrad()
	assert.Equal(t, []float32{0, 0}, p.Grad)
}

func TestDType(t *testing.T) {
	assert.Equal(t, 4, F32.Size())
	assert.Equal(t, 2, F16.Size())
	assert.Equal(t, "f32", F32.String())

	for _, d := range []DType{F32, F16, BF16, I32, I64} {
		got, err := ParseDType(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	got, err := ParseDType("float32")
	require.NoError(t, err)
	assert.Equal(t, F32, got)

	_, err = ParseDType("complex128")
	assert.Error(t, err)
}

func TestBroadcast(t *testing.T) {
	c, err := Broadcast(NewShape(3, 1, 5), NewShape(4, 5))
	require.NoError(t, err)
	assert.True(t, c.Equal(NewShape(3, 4, 5)), "got %v", c)

	_, err = Broadcast(NewShape(3, 4), NewShape(5, 4))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
