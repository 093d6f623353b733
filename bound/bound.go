// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bound provides projections onto closed convex feasible sets and
// onto their tangent cones, as needed by projected gradient and bound
// constrained quasi-Newton methods.
package bound

import (
	"errors"

	"github.com/curioloop/optimpack/vector"
)

var (
	// ErrInvalidArgument reports invalid bounds or parameters.
	ErrInvalidArgument = errors.New("bound: invalid argument")
	// ErrInfeasible reports an empty feasible set.
	ErrInfeasible = errors.New("bound: infeasible set")
	// ErrAliasing reports an output vector sharing storage with an input where it is not allowed.
	ErrAliasing = errors.New("bound: output aliases input")
	// ErrNoSolution reports a projection subproblem that could not be solved.
	ErrNoSolution = errors.New("bound: projection has no solution")
)

// ConvexSetProjector projects onto a closed convex set Ω.
//
// A direction d is understood as in
//
//	x(λ) = P(x - λ⋅d)   if ascent
//	x(λ) = P(x + λ⋅d)   otherwise
//
// with λ ≥ 0, so that a gradient is an ascent direction.
type ConvexSetProjector interface {
	// Space returns the space of the variables.
	Space() *vector.Space
	// ProjectVariables stores P(x) into dst.
	ProjectVariables(dst, x *vector.Vector) error
	// ProjectDirection stores into dst the projection of d onto the set of
	// feasible directions at x: components that would immediately leave Ω
	// are removed.
	ProjectDirection(dst, x, d *vector.Vector, ascent bool) error
}

// BoundProjector is a ConvexSetProjector able to tell which steps along a
// direction reach the boundary.
type BoundProjector interface {
	ConvexSetProjector
	// StepBounds returns the smallest step at which a variable moving along d
	// meets a bound and the smallest step beyond which no variable moves
	// anymore. Both are +Inf when nothing can reach a bound.
	StepBounds(x, d *vector.Vector, ascent bool) (smin, smax float64, err error)
}

// ProjectGradient stores the projected gradient of g at x into dst.
// Box sets allow dst to be g, general convex sets do not.
func ProjectGradient(p ConvexSetProjector, dst, x, g *vector.Vector) error {
	return p.ProjectDirection(dst, x, g, true)
}
