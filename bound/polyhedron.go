// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bound

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optimpack/vector"
)

// activeTol is the relative slack under which a constraint is considered active.
const activeTol = 1e-10

// Polyhedron is the feasible set {x : G⋅x ≥ h} of k linear inequalities.
// Its projections are least distance problems, so output vectors must not
// share storage with the inputs.
type Polyhedron struct {
	space *vector.Space
	g     *mat.Dense
	h     []float64
}

// NewPolyhedron returns the set {x : G⋅x ≥ h}. G is k×n where n is the
// dimension of space. G and h are copied.
func NewPolyhedron(space *vector.Space, g mat.Matrix, h []float64) (*Polyhedron, error) {
	if space == nil {
		return nil, fmt.Errorf("%w: nil space", ErrInvalidArgument)
	}
	k, n := g.Dims()
	if n != space.Dimension() {
		return nil, fmt.Errorf("%w: constraint matrix has %d columns, space dimension is %d", ErrInvalidArgument, n, space.Dimension())
	}
	if len(h) != k {
		return nil, fmt.Errorf("%w: %d constraints but %d right-hand sides", ErrInvalidArgument, k, len(h))
	}
	return &Polyhedron{space: space, g: mat.DenseCopyOf(g), h: slices.Clone(h)}, nil
}

func (p *Polyhedron) Space() *vector.Space { return p.space }

// Constraints returns the number of inequalities.
func (p *Polyhedron) Constraints() int { return len(p.h) }

// slack returns G⋅x - h.
func (p *Polyhedron) slack(x *vector.Vector) []float64 {
	var gx mat.VecDense
	gx.MulVec(p.g, mat.NewVecDense(x.Len(), x.Data()))
	s := make([]float64, len(p.h))
	for i := range s {
		s[i] = gx.AtVec(i) - p.h[i]
	}
	return s
}

// Contains reports whether x is feasible.
func (p *Polyhedron) Contains(x *vector.Vector) bool {
	if !p.space.Owns(x) {
		return false
	}
	return slices.Min(append(p.slack(x), 0)) >= 0
}

// ProjectVariables stores into dst the closest point of the set to x, that is
// x + u where u solves 𝚖𝚒𝚗 ‖ u ‖₂ subject to G⋅u ≥ h - G⋅x.
func (p *Polyhedron) ProjectVariables(dst, x *vector.Vector) error {
	if err := p.space.Check(dst, x); err != nil {
		return err
	}
	if dst == x {
		return ErrAliasing
	}
	s := p.slack(x)
	if len(s) == 0 || slices.Min(s) >= 0 {
		p.space.Copy(dst, x)
		return nil
	}
	for i := range s {
		s[i] = -s[i]
	}
	if err := ldp(p.g, s, dst.Data()); err != nil {
		return err
	}
	p.space.Axpy(dst, 1, x)
	return nil
}

// ProjectDirection projects the motion direction onto the tangent cone
// {v : Gₐ⋅v ≥ 0} of the constraints active at x.
func (p *Polyhedron) ProjectDirection(dst, x, d *vector.Vector, ascent bool) error {
	if err := p.space.Check(dst, x, d); err != nil {
		return err
	}
	if dst == x || dst == d {
		return ErrAliasing
	}
	s := p.slack(x)
	var active []int
	for i, si := range s {
		if si <= activeTol*(1+math.Abs(p.h[i])) {
			active = append(active, i)
		}
	}
	if len(active) == 0 {
		p.space.Copy(dst, d)
		return nil
	}

	sign := 1.0
	if ascent {
		sign = -1
	}
	n := p.space.Dimension()
	ga := mat.NewDense(len(active), n, nil)
	rhs := make([]float64, len(active))
	v := d.Data()
	for k, i := range active {
		row := p.g.RawRowView(i)
		ga.SetRow(k, row)
		var gv float64
		for j := range row {
			gv += row[j] * v[j]
		}
		rhs[k] = -sign * gv
	}
	// The motion v+u with ‖u‖ minimal keeps Gₐ⋅(v+u) ≥ 0.
	if err := ldp(ga, rhs, dst.Data()); err != nil {
		return err
	}
	p.space.Combine(dst, sign, dst, 1, d)
	return nil
}
