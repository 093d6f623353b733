// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"fmt"

	"github.com/curioloop/optimpack/bound"
	"github.com/curioloop/optimpack/lbfgs"
	"github.com/curioloop/optimpack/linesearch"
	"github.com/curioloop/optimpack/vector"
)

// quasiNewton searches along p = H⋅g where H is a limited memory BFGS
// approximation of the inverse Hessian.
type quasiNewton struct {
	label string
	op    *lbfgs.Operator
}

func (q *quasiNewton) name() string { return q.label }

func (q *quasiNewton) reset() { q.op.Reset() }

func (q *quasiNewton) memory() bool { return q.op.Pairs() > 0 }

// storage borrows the slot of the next correction pair, which is only
// overwritten by the update reading it.
func (q *quasiNewton) storage() (x0, g0 *vector.Vector) { return q.op.Borrow() }

func (q *quasiNewton) update(x, x0, g, g0 *vector.Vector) error {
	_, err := q.op.Update(x, x0, g, g0)
	return err
}

func (q *quasiNewton) compute(p, g *vector.Vector) (bool, error) {
	return false, q.op.Apply(p, g)
}

// initialStep is the unit step once the operator has curvature information.
func (q *quasiNewton) initialStep(_, _, _ float64) (float64, bool) {
	return 1, q.memory()
}

// Operator returns the inverse Hessian approximation of a quasi-Newton
// optimizer, nil for other methods.
func (o *Optimizer) Operator() *lbfgs.Operator {
	if q, ok := o.dir.(*quasiNewton); ok {
		return q.op
	}
	return nil
}

func newQuasiNewton(label string, space *vector.Space, proj bound.ConvexSetProjector, search linesearch.LineSearch, opts []Option) (*Optimizer, error) {
	if space == nil {
		return nil, fmt.Errorf("%w: nil space", ErrInvalidArgument)
	}
	c, err := newConfig(DefaultEpsilon, search, opts)
	if err != nil {
		return nil, err
	}
	lopts := []lbfgs.Option{lbfgs.WithScaling(c.scaling)}
	if c.h0 != nil {
		lopts = append(lopts, lbfgs.WithPreconditioner(c.h0))
	}
	op, err := lbfgs.New(space, c.memory, lopts...)
	if err != nil {
		return nil, err
	}
	return newOptimizer(space, &quasiNewton{label: label, op: op}, proj, c), nil
}

func checkProjector(space *vector.Space, proj bound.ConvexSetProjector) error {
	if proj == nil {
		return fmt.Errorf("%w: nil projector", ErrInvalidArgument)
	}
	if space == nil || proj.Space() != space {
		return fmt.Errorf("%w: projector space", ErrInvalidArgument)
	}
	return nil
}

// NewLBFGS returns an unconstrained limited memory BFGS optimizer. Its line
// search defaults to Moré–Thuente with the strong Wolfe conditions.
func NewLBFGS(space *vector.Space, opts ...Option) (*Optimizer, error) {
	return newQuasiNewton("L-BFGS", space, nil, linesearch.DefaultMoreThuente(), opts)
}

// NewVMLMB returns a limited memory quasi-Newton optimizer over a convex set.
// Directions are computed from the projected gradient while the memory is
// updated with the gradient.
func NewVMLMB(space *vector.Space, proj bound.ConvexSetProjector, opts ...Option) (*Optimizer, error) {
	if err := checkProjector(space, proj); err != nil {
		return nil, err
	}
	o, err := newQuasiNewton("VMLMB", space, proj, linesearch.DefaultArmijo(), opts)
	if err != nil {
		return nil, err
	}
	o.grads = gradients{searchProjected: true}
	return o, nil
}

// NewBLMVM is NewVMLMB with projected gradients also recorded in the memory.
func NewBLMVM(space *vector.Space, proj bound.ConvexSetProjector, opts ...Option) (*Optimizer, error) {
	if err := checkProjector(space, proj); err != nil {
		return nil, err
	}
	o, err := newQuasiNewton("BLMVM", space, proj, linesearch.DefaultArmijo(), opts)
	if err != nil {
		return nil, err
	}
	o.grads = gradients{searchProjected: true, updateProjected: true}
	return o, nil
}

// NewLBFGSB returns a limited memory quasi-Newton optimizer over a convex set
// using the gradient for both directions and memory updates. The direction
// is projected onto the tangent cone of the feasible set.
func NewLBFGSB(space *vector.Space, proj bound.ConvexSetProjector, opts ...Option) (*Optimizer, error) {
	if err := checkProjector(space, proj); err != nil {
		return nil, err
	}
	return newQuasiNewton("LBFGSB", space, proj, linesearch.DefaultArmijo(), opts)
}
