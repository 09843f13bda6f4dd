package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsDiffSameShape(t *testing.T) {
	a := FromSlice([]float32{1.0, 2.0, 3.0}, NewShape(3))
	b := FromSlice([]float32{0.5, 2.0, 5.0}, NewShape(3))

	got, err := AbsDiff(a, b)
	require.NoError(t, err)
	assert.True(t, got.Shape().Equal(a.Shape()))
	assert.Equal(t, []float32{0.5, 0.0, 2.0}, got.Data())
}

func TestAbsDiffBroadcastsRow(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3))
	b := FromSlice([]float32{1, 1, 1}, NewShape(3))

	got, err := AbsDiff(a, b)
	require.NoError(t, err)
	assert.True(t, got.Shape().Equal(NewShape(2, 3)))
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, got.Data())
}

func TestAbsDiffIncompatible(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3}, NewShape(3))
	b := FromSlice([]float32{1, 2}, NewShape(2))

	_, err := AbsDiff(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestBroadcastTo(t *testing.T) {
	col := FromSlice([]float32{1, 2}, NewShape(2, 1))
	got, err := col.BroadcastTo(NewShape(2, 3))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 2, 2, 2}, got.Data())

	_, err = FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3)).BroadcastTo(NewShape(3))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSumTo(t *testing.T) {
	g := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3))

	row, err := g.SumTo(NewShape(3))
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 7, 9}, row.Data())

	col, err := g.SumTo(NewShape(2, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{6, 15}, col.Data())

	_, err = g.SumTo(NewShape(4))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
