// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"fmt"

	"github.com/curioloop/optimpack/numdiff"
	"github.com/curioloop/optimpack/vector"
)

// DifferentiableCostFunction is the objective driven by a Solver.
type DifferentiableCostFunction interface {
	// Space returns the space of the variables.
	Space() *vector.Space
	// ComputeCostAndGradient returns scale⋅f(x) and, when wantGradient is
	// set, stores scale⋅∇f(x) into gx.
	ComputeCostAndGradient(scale float64, x, gx *vector.Vector, wantGradient bool) float64
}

type funcCost struct {
	space *vector.Space
	fg    func(x, g []float64) float64
	tmp   *vector.Vector
}

// Func adapts fg, which returns f(x) and stores ∇f(x) into g.
func Func(space *vector.Space, fg func(x, g []float64) float64) DifferentiableCostFunction {
	return &funcCost{space: space, fg: fg}
}

func (c *funcCost) Space() *vector.Space { return c.space }

func (c *funcCost) ComputeCostAndGradient(scale float64, x, gx *vector.Vector, wantGradient bool) float64 {
	g := gx
	if !wantGradient {
		if c.tmp == nil {
			c.tmp = c.space.Create()
		}
		g = c.tmp
	}
	f := c.fg(x.Data(), g.Data())
	if scale != 1 {
		f *= scale
		if wantGradient {
			c.space.Scale(gx, scale, gx)
		}
	}
	return f
}

type diffCost struct {
	space *vector.Space
	diff  numdiff.Gradient
}

// FiniteDifference adapts f whose gradient is estimated by finite
// differences. Bounds, when given, keep the sampled points inside the box.
// Estimation failures panic, which a Solver reports as CallbackPanicked.
func FiniteDifference(space *vector.Space, f func(x []float64) float64, method numdiff.Method, bounds []numdiff.Bound) (DifferentiableCostFunction, error) {
	if space == nil {
		return nil, fmt.Errorf("%w: nil space", ErrInvalidProblem)
	}
	c := &diffCost{
		space: space,
		diff: numdiff.Gradient{
			Func:           f,
			Method:         method,
			Bounds:         bounds,
			SkipBoundCheck: true,
		},
	}
	if err := c.diff.Check(make([]float64, space.Dimension())); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProblem, err)
	}
	return c, nil
}

func (c *diffCost) Space() *vector.Space { return c.space }

func (c *diffCost) ComputeCostAndGradient(scale float64, x, gx *vector.Vector, wantGradient bool) float64 {
	if !wantGradient {
		return scale * c.diff.Func(x.Data())
	}
	f, err := c.diff.Estimate(x.Data(), gx.Data())
	if err != nil {
		panic(err)
	}
	if scale != 1 {
		c.space.Scale(gx, scale, gx)
	}
	return scale * f
}
