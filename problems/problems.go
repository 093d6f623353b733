// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package problems collects the unconstrained reference problems of Moré,
// Garbow and Hillstrom with their standard starting points.
//
// # Reference:
//
//   - J. J. Moré, B. S. Garbow and K. E. Hillstrom, Testing unconstrained
//     optimization software, ACM Trans. Math. Softw. 7 (1981), 17-41.
package problems

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/optimize/functions"
)

type function interface {
	Func(x []float64) float64
	Grad(grad, x []float64)
}

// Problem is a smooth test function with its starting point.
type Problem struct {
	Name string
	fn   function
	x0   []float64
	// Minima lists the known local minimum values, the global one first.
	Minima []float64
}

// Dimension returns the number of variables.
func (p Problem) Dimension() int { return len(p.x0) }

// Start returns a copy of the standard starting point.
func (p Problem) Start() []float64 { return slices.Clone(p.x0) }

// Func returns f(x).
func (p Problem) Func(x []float64) float64 { return p.fn.Func(x) }

// FG returns f(x) and stores ∇f(x) into g.
func (p Problem) FG(x, g []float64) float64 {
	p.fn.Grad(g, x)
	return p.fn.Func(x)
}

// Solved reports whether f is within tol of one of the known minima,
// relative to max(1,|minimum|).
func (p Problem) Solved(f, tol float64) bool {
	for _, m := range p.Minima {
		if f-m <= tol*math.Max(1, math.Abs(m)) {
			return true
		}
	}
	return false
}

func repeat(n int, pattern ...float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = pattern[i%len(pattern)]
	}
	return x
}

// ExtendedRosenbrock returns the extended Rosenbrock function for even n.
func ExtendedRosenbrock(n int) Problem {
	if n < 2 || n%2 != 0 {
		panic("problems: extended Rosenbrock needs an even dimension")
	}
	return Problem{
		Name:   fmt.Sprintf("ExtendedRosenbrock/%d", n),
		fn:     functions.ExtendedRosenbrock{},
		x0:     repeat(n, -1.2, 1),
		Minima: []float64{0},
	}
}

// ExtendedPowellSingular returns the extended Powell singular function for n
// multiple of four. Its Hessian is singular at the solution.
func ExtendedPowellSingular(n int) Problem {
	if n < 4 || n%4 != 0 {
		panic("problems: extended Powell needs a dimension multiple of 4")
	}
	return Problem{
		Name:   fmt.Sprintf("ExtendedPowellSingular/%d", n),
		fn:     functions.ExtendedPowellSingular{},
		x0:     repeat(n, 3, -1, 0, 1),
		Minima: []float64{0},
	}
}

// VariablyDimensioned returns the variably dimensioned function.
func VariablyDimensioned(n int) Problem {
	x0 := make([]float64, n)
	for i := range x0 {
		x0[i] = 1 - float64(i+1)/float64(n)
	}
	return Problem{
		Name:   fmt.Sprintf("VariablyDimensioned/%d", n),
		fn:     functions.VariablyDimensioned{},
		x0:     x0,
		Minima: []float64{0},
	}
}

// Trigonometric returns the trigonometric function.
func Trigonometric(n int) Problem {
	p := Problem{
		Name:   fmt.Sprintf("Trigonometric/%d", n),
		fn:     functions.Trigonometric{},
		x0:     repeat(n, 1/float64(n)),
		Minima: []float64{0},
	}
	if n == 10 {
		p.Minima = append(p.Minima, 2.79506e-5)
	}
	return p
}

// PenaltyI returns the first penalty function of dimension 4 or 10.
func PenaltyI(n int) Problem {
	x0 := make([]float64, n)
	for i := range x0 {
		x0[i] = float64(i + 1)
	}
	p := Problem{
		Name: fmt.Sprintf("PenaltyI/%d", n),
		fn:   functions.PenaltyI{},
		x0:   x0,
	}
	switch n {
	case 4:
		p.Minima = []float64{2.24997e-5}
	case 10:
		p.Minima = []float64{7.08765e-5}
	default:
		panic("problems: penalty I is only known for n = 4 or 10")
	}
	return p
}

// MoreGarbowHillstrom returns the reference problems at their usual dimensions.
func MoreGarbowHillstrom() []Problem {
	return []Problem{
		ExtendedRosenbrock(2),
		ExtendedRosenbrock(10),
		{Name: "Beale", fn: functions.Beale{}, x0: []float64{1, 1}, Minima: []float64{0}},
		{Name: "Wood", fn: functions.Wood{}, x0: []float64{-3, -1, -3, -1}, Minima: []float64{0}},
		{Name: "HelicalValley", fn: functions.HelicalValley{}, x0: []float64{-1, 0, 0}, Minima: []float64{0}},
		{Name: "Box3D", fn: functions.Box3D{}, x0: []float64{0, 10, 20}, Minima: []float64{0}},
		VariablyDimensioned(10),
		PenaltyI(4),
		{Name: "BrownAndDennis", fn: functions.BrownAndDennis{}, x0: []float64{25, 5, -5, -1}, Minima: []float64{85822.2}},
		Trigonometric(10),
		ExtendedPowellSingular(4),
		{Name: "Gaussian", fn: functions.Gaussian{}, x0: []float64{0.4, 1, 0}, Minima: []float64{1.12793e-8}},
		{Name: "Watson/6", fn: functions.Watson{}, x0: make([]float64, 6), Minima: []float64{2.28767e-3}},
		{Name: "BrownBadlyScaled", fn: functions.BrownBadlyScaled{}, x0: []float64{1, 1}, Minima: []float64{0}},
		{Name: "PowellBadlyScaled", fn: functions.PowellBadlyScaled{}, x0: []float64{0, 1}, Minima: []float64{0}},
		{Name: "BiggsEXP6", fn: functions.BiggsEXP6{}, x0: []float64{1, 2, 1, 1, 1, 1}, Minima: []float64{0, 5.65565e-3}},
	}
}

// Lookup returns the reference problem with the given name.
func Lookup(name string) (Problem, bool) {
	for _, p := range MoreGarbowHillstrom() {
		if p.Name == name {
			return p, true
		}
	}
	return Problem{}, false
}
