// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vector provides the finite dimensional real vector spaces that the
// optimizers operate on. A Vector always belongs to exactly one Space and
// vectors from different spaces never mix.
package vector

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrIncorrectSpace reports a vector that does not belong to the expected space.
	ErrIncorrectSpace = errors.New("vector: incorrect space")
	// ErrDimension reports an invalid space dimension or a data slice of wrong length.
	ErrDimension = errors.New("vector: invalid dimension")
)

// Space is a real vector space of fixed dimension.
type Space struct {
	n int
}

// NewSpace returns a space of dimension n.
func NewSpace(n int) (*Space, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrDimension, n)
	}
	return &Space{n: n}, nil
}

// Dimension returns the number of components of the vectors of the space.
func (s *Space) Dimension() int { return s.n }

// Create returns a new zero vector of the space.
func (s *Space) Create() *Vector {
	return &Vector{space: s, data: make([]float64, s.n)}
}

// Wrap returns a vector of the space backed by data (not copied).
func (s *Space) Wrap(data []float64) (*Vector, error) {
	if len(data) != s.n {
		return nil, fmt.Errorf("%w: got %d components, want %d", ErrDimension, len(data), s.n)
	}
	return &Vector{space: s, data: data}, nil
}

// Owns reports whether v belongs to the space.
func (s *Space) Owns(v *Vector) bool {
	return v != nil && v.space == s
}

// Check returns an error wrapping ErrIncorrectSpace if any of vs does not belong to the space.
func (s *Space) Check(vs ...*Vector) error {
	for i, v := range vs {
		if !s.Owns(v) {
			return fmt.Errorf("%w: argument %d", ErrIncorrectSpace, i)
		}
	}
	return nil
}

func (s *Space) mustOwn(vs ...*Vector) {
	if err := s.Check(vs...); err != nil {
		panic(err)
	}
}

func (s *Space) blas(v *Vector) blas64.Vector {
	return blas64.Vector{N: s.n, Inc: 1, Data: v.data}
}

// Dot returns ⟨x,y⟩.
func (s *Space) Dot(x, y *Vector) float64 {
	s.mustOwn(x, y)
	return blas64.Dot(s.blas(x), s.blas(y))
}

// Norm2 returns the Euclidean norm of x.
func (s *Space) Norm2(x *Vector) float64 {
	s.mustOwn(x)
	return blas64.Nrm2(s.blas(x))
}

// NormInf returns the largest absolute component of x.
func (s *Space) NormInf(x *Vector) float64 {
	s.mustOwn(x)
	return floats.Norm(x.data, math.Inf(1))
}

// Combine stores a⋅x + b⋅y into dst. Any of dst, x and y may be the same vector.
func (s *Space) Combine(dst *Vector, a float64, x *Vector, b float64, y *Vector) {
	s.mustOwn(dst, x, y)
	switch {
	case b == 0:
		floats.ScaleTo(dst.data, a, x.data)
	case a == 0:
		floats.ScaleTo(dst.data, b, y.data)
	case a == 1:
		floats.AddScaledTo(dst.data, x.data, b, y.data)
	case b == 1:
		floats.AddScaledTo(dst.data, y.data, a, x.data)
	default:
		d, xs, ys := dst.data, x.data, y.data
		for i := range d {
			d[i] = a*xs[i] + b*ys[i]
		}
	}
}

// Axpy stores dst + a⋅x into dst.
func (s *Space) Axpy(dst *Vector, a float64, x *Vector) {
	s.mustOwn(dst, x)
	floats.AddScaled(dst.data, a, x.data)
}

// Scale stores a⋅x into dst.
func (s *Space) Scale(dst *Vector, a float64, x *Vector) {
	s.mustOwn(dst, x)
	floats.ScaleTo(dst.data, a, x.data)
}

// Copy copies src into dst.
func (s *Space) Copy(dst, src *Vector) {
	s.mustOwn(dst, src)
	if dst != src {
		copy(dst.data, src.data)
	}
}

// Zero sets all components of dst to zero.
func (s *Space) Zero(dst *Vector) {
	s.mustOwn(dst)
	clear(dst.data)
}
