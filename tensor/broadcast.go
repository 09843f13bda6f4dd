package tensor

import "fmt"

// BroadcastTo materializes t expanded to shape. The tensor's own shape must
// broadcast into shape without growing it.
func (t *Tensor) BroadcastTo(shape Shape) (*Tensor, error) {
	out, err := Broadcast(t.shape, shape)
	if err != nil {
		return nil, err
	}
	if !out.Equal(shape) {
		return nil, fmt.Errorf("%w: cannot broadcast %v to %v", ErrShapeMismatch, t.shape, shape)
	}
	if t.shape.Equal(shape) {
		return t.Clone(), nil
	}

	result := New(shape, t.dtype)
	outStrides := shape.Strides()
	src := alignedStrides(t.shape, shape)
	for i := range result.data {
		result.data[i] = t.data[broadcastOffset(i, outStrides, src)]
	}
	return result, nil
}

// SumTo reduces t to shape by summing over the broadcast dimensions. It is the
// adjoint of BroadcastTo and is used to fold gradients back onto an operand.
func (t *Tensor) SumTo(shape Shape) (*Tensor, error) {
	if t.shape.Equal(shape) {
		return t.Clone(), nil
	}
	out, err := Broadcast(shape, t.shape)
	if err != nil || !out.Equal(t.shape) || shape.NDim() == 0 {
		return nil, fmt.Errorf("%w: cannot reduce %v to %v", ErrShapeMismatch, t.shape, shape)
	}

	result := New(shape, t.dtype)
	strides := t.shape.Strides()
	dst := alignedStrides(shape, t.shape)
	for i, v := range t.data {
		result.data[broadcastOffset(i, strides, dst)] += v
	}
	return result, nil
}

// AbsDiff returns |a - b| element-wise. The operands are broadcast against
// each other; the result has their broadcast shape.
func AbsDiff(a, b *Tensor) (*Tensor, error) {
	if a.shape.Equal(b.shape) {
		result := New(a.shape, a.dtype)
		for i := range a.data {
			result.data[i] = absF32(a.data[i] - b.data[i])
		}
		return result, nil
	}

	shape, err := Broadcast(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	ab, err := a.BroadcastTo(shape)
	if err != nil {
		return nil, err
	}
	bb, err := b.BroadcastTo(shape)
	if err != nil {
		return nil, err
	}
	for i := range ab.data {
		ab.data[i] = absF32(ab.data[i] - bb.data[i])
	}
	return ab, nil
}

// alignedStrides returns from's row-major strides right-aligned to to's rank,
// with 0 for every dimension that from stretches.
func alignedStrides(from, to Shape) []int {
	strides := make([]int, to.NDim())
	fs := from.Strides()
	lead := to.NDim() - from.NDim()
	for d := range strides {
		k := d - lead
		if k < 0 || from.dims[k] == 1 {
			continue
		}
		strides[d] = fs[k]
	}
	return strides
}

// broadcastOffset maps flat index i of a tensor with strides outStrides onto
// the flat offset addressed by srcStrides.
func broadcastOffset(i int, outStrides, srcStrides []int) int {
	off := 0
	for d, st := range outStrides {
		off += (i / st) * srcStrides[d]
		i %= st
	}
	return off
}
