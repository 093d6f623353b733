// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpace(t *testing.T) {
	_, err := NewSpace(0)
	assert.ErrorIs(t, err, ErrDimension)

	s, err := NewSpace(3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Dimension())

	_, err = s.Wrap([]float64{1, 2})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestMembership(t *testing.T) {
	s1, _ := NewSpace(2)
	s2, _ := NewSpace(2)
	x, y := s1.Create(), s2.Create()
	assert.True(t, s1.Owns(x))
	assert.False(t, s1.Owns(y))
	assert.False(t, s1.Owns(nil))
	assert.NoError(t, s1.Check(x, x))
	assert.ErrorIs(t, s1.Check(x, y), ErrIncorrectSpace)
	assert.Panics(t, func() { s1.Dot(x, y) })
}

func TestAlgebra(t *testing.T) {
	s, _ := NewSpace(3)
	x, _ := s.Wrap([]float64{1, -2, 2})
	y, _ := s.Wrap([]float64{0, 1, 3})

	assert.Equal(t, 4.0, s.Dot(x, y))
	assert.InDelta(t, 3.0, s.Norm2(x), 1e-15)
	assert.Equal(t, 2.0, s.NormInf(x))

	dst := s.Create()
	s.Combine(dst, 2, x, -1, y)
	assert.Equal(t, []float64{2, -5, 1}, dst.Data())

	// Aliased output.
	z := x.Clone()
	s.Combine(z, 3, z, 2, y)
	assert.Equal(t, []float64{3, -4, 12}, z.Data())
	z = y.Clone()
	s.Combine(z, 1, x, 1, z)
	assert.Equal(t, []float64{1, -1, 5}, z.Data())

	s.Axpy(z, -1, y)
	assert.Equal(t, x.Data(), z.Data())

	s.Scale(z, 0.5, z)
	assert.Equal(t, []float64{0.5, -1, 1}, z.Data())

	s.Copy(dst, y)
	assert.Equal(t, y.Data(), dst.Data())
	s.Zero(dst)
	assert.Equal(t, 0.0, s.Norm2(dst))

	dst.Fill(math.Inf(1))
	assert.True(t, math.IsInf(dst.At(1), 1))
}
