// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optimpack/vector"
)

// DenseOperator applies an explicit n×n matrix, typically a known inverse
// Hessian approximation used as H₀.
type DenseOperator struct {
	space *vector.Space
	a     mat.Matrix
}

// NewDenseOperator wraps a square matrix matching the dimension of space.
func NewDenseOperator(space *vector.Space, a mat.Matrix) (*DenseOperator, error) {
	r, c := a.Dims()
	if n := space.Dimension(); r != n || c != n {
		return nil, fmt.Errorf("%w: matrix is %d×%d, space dimension is %d", ErrInvalidArgument, r, c, n)
	}
	return &DenseOperator{space: space, a: a}, nil
}

// Apply computes dst = A⋅src. dst and src must be distinct.
func (d *DenseOperator) Apply(dst, src *vector.Vector) error {
	if err := d.space.Check(dst, src); err != nil {
		return err
	}
	if dst == src {
		return fmt.Errorf("%w: dense operator output aliases its input", ErrInvalidArgument)
	}
	out := mat.NewVecDense(dst.Len(), dst.Data())
	out.MulVec(d.a, mat.NewVecDense(src.Len(), src.Data()))
	return nil
}

// Diagonal is the operator diag(d).
type Diagonal struct {
	space *vector.Space
	diag  *vector.Vector
}

// NewDiagonal returns diag(d). Every entry of d must be positive.
func NewDiagonal(d *vector.Vector) (*Diagonal, error) {
	for i, v := range d.Data() {
		if !(v > 0) {
			return nil, fmt.Errorf("%w: diagonal entry %d = %g <= 0", ErrInvalidArgument, i, v)
		}
	}
	return &Diagonal{space: d.Space(), diag: d.Clone()}, nil
}

func (d *Diagonal) Apply(dst, src *vector.Vector) error {
	if err := d.space.Check(dst, src); err != nil {
		return err
	}
	w, x, y := d.diag.Data(), src.Data(), dst.Data()
	for i := range y {
		y[i] = w[i] * x[i]
	}
	return nil
}
