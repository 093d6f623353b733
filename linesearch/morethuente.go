// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import (
	"fmt"
	"math"
)

const (
	DefaultMoreThuenteFtol = 1e-3
	DefaultMoreThuenteGtol = 0.9
	DefaultMoreThuenteXtol = 0.1
)

const (
	p5         = 0.5
	p66        = 0.66
	xTrapLower = 1.1
	xTrapUpper = 4.0
)

const (
	stageArmijo = 1
	stageWolfe  = 2
)

// point is a step with its function value and derivative.
type point struct {
	step, f, g float64
}

// MoreThuente finds a step λ that satisfies the strong Wolfe conditions:
//   - sufficient decrease condition: φ(λ) ≤ φ(0) + 𝚏𝚝𝚘𝚕⋅λ⋅φ′(0)
//   - curvature condition: |φ′(λ)| ≤ 𝚐𝚝𝚘𝚕⋅|φ′(0)|
//
// Each iteration updates an interval with endpoints stx and sty which is
// chosen to contain a minimizer of the modified function
//
//	ψ(λ) = φ(λ) - φ(0) - 𝚏𝚝𝚘𝚕⋅λ⋅φ′(0)
//
// until a step with ψ(λ) ≤ 0 and φ′(λ) ≥ 0 is found, after which the
// interval is chosen to contain a minimizer of φ.
//
// If 𝚏𝚝𝚘𝚕 < 𝚐𝚝𝚘𝚕 and φ is bounded below there is always a step satisfying
// both conditions. Otherwise the search ends with a warning and the step
// only satisfies the sufficient decrease condition.
//
// Reference: J. J. Moré and D. J. Thuente, Line search algorithms with
// guaranteed sufficient decrease, ACM TOMS 20 (1994).
type MoreThuente struct {
	core
	ftol, gtol, xtol float64

	bracket bool
	stage   int
	x, y    point // best step so far and the other endpoint
	width   [2]float64
	lo, hi  float64 // interval of trial steps
}

// NewMoreThuente returns a Moré-Thuente search.
// It requires 0 < ftol < 1, 0 < gtol < 1 and xtol ≥ 0.
func NewMoreThuente(ftol, gtol, xtol float64) (*MoreThuente, error) {
	ls := new(MoreThuente)
	if err := ls.SetTolerances(ftol, gtol, xtol); err != nil {
		return nil, err
	}
	return ls, nil
}

// DefaultMoreThuente returns a Moré-Thuente search with ftol=1e-3, gtol=0.9 and xtol=0.1.
func DefaultMoreThuente() *MoreThuente {
	return &MoreThuente{ftol: DefaultMoreThuenteFtol, gtol: DefaultMoreThuenteGtol, xtol: DefaultMoreThuenteXtol}
}

// SetTolerances sets the sufficient decrease, curvature and relative width tolerances.
func (ls *MoreThuente) SetTolerances(ftol, gtol, xtol float64) error {
	if err := checkOpen("ftol", ftol); err != nil {
		return err
	}
	if err := checkOpen("gtol", gtol); err != nil {
		return err
	}
	if !(xtol >= 0) {
		return fmt.Errorf("%w: xtol = %g < 0", ErrInvalidArgument, xtol)
	}
	ls.ftol, ls.gtol, ls.xtol = ftol, gtol, xtol
	return nil
}

// Tolerances returns the sufficient decrease, curvature and interval tolerances.
func (ls *MoreThuente) Tolerances() (ftol, gtol, xtol float64) {
	return ls.ftol, ls.gtol, ls.xtol
}

func (ls *MoreThuente) Start(f0, g0, step, stepMin, stepMax float64) Status {
	return ls.start(ls, f0, g0, step, stepMin, stepMax)
}

func (ls *MoreThuente) Iterate(step, f, g float64) Status {
	return ls.iterate(ls, step, f, g)
}

func (ls *MoreThuente) begin(c *core) {
	ls.bracket = false
	ls.stage = stageArmijo
	ls.width[0] = c.stepMax - c.stepMin
	ls.width[1] = ls.width[0] / p5
	ls.x = point{0, c.f0, c.g0}
	ls.y = ls.x
	ls.lo = 0
	ls.hi = c.step + xTrapUpper*c.step
}

func (ls *MoreThuente) next(c *core, f, g float64) Status {
	stp := c.step
	gTest := ls.ftol * c.g0
	fTest := c.f0 + stp*gTest

	switch {
	case ls.bracket && (stp <= ls.lo || stp >= ls.hi):
		return WarningRoundingErrors
	case ls.bracket && ls.hi-ls.lo <= ls.xtol*ls.hi:
		return WarningXTolTestSatisfied
	case stp == c.stepMax && f <= fTest && g <= gTest:
		return WarningStepEqStepMax
	case stp == c.stepMin && (f > fTest || g >= gTest):
		return WarningStepEqStepMin
	case f <= fTest && math.Abs(g) <= ls.gtol*(-c.g0):
		return Convergence
	}

	if ls.stage == stageArmijo && f <= fTest && g >= 0 {
		ls.stage = stageWolfe
	}

	trial := point{stp, f, g}
	if ls.stage == stageArmijo && f <= ls.x.f && f > fTest {
		// Use the modified function ψ while no step with ψ ≤ 0 and φ′ ≥ 0 is known.
		x, y := ls.x.shift(gTest), ls.y.shift(gTest)
		stp = cstep(&x, &y, trial.shift(gTest), &ls.bracket, ls.lo, ls.hi)
		ls.x, ls.y = x.shift(-gTest), y.shift(-gTest)
	} else {
		stp = cstep(&ls.x, &ls.y, trial, &ls.bracket, ls.lo, ls.hi)
	}

	// Force a bisection when the interval does not shrink fast enough.
	if ls.bracket {
		if math.Abs(ls.y.step-ls.x.step) >= p66*ls.width[1] {
			stp = ls.x.step + p5*(ls.y.step-ls.x.step)
		}
		ls.width[1] = ls.width[0]
		ls.width[0] = math.Abs(ls.y.step - ls.x.step)
	}

	if ls.bracket {
		ls.lo = math.Min(ls.x.step, ls.y.step)
		ls.hi = math.Max(ls.x.step, ls.y.step)
	} else {
		ls.lo = stp + xTrapLower*(stp-ls.x.step)
		ls.hi = stp + xTrapUpper*(stp-ls.x.step)
	}

	stp = math.Min(math.Max(stp, c.stepMin), c.stepMax)

	// Fall back on the best step when rounding errors prevent further progress.
	if ls.bracket && (stp <= ls.lo || stp >= ls.hi || ls.hi-ls.lo <= ls.xtol*ls.hi) {
		stp = ls.x.step
	}
	c.step = stp
	return Searching
}

// shift maps a point of φ to the corresponding point of φ(λ) - λ⋅t.
func (p point) shift(t float64) point {
	return point{p.step, p.f - p.step*t, p.g - t}
}

// cstep computes a safeguarded trial step and updates the interval [x,y]
// known to contain a step satisfying the sufficient decrease and curvature
// conditions. x is the step with the least function value and its derivative
// must have the opposite sign of t.step - x.step. When bracket is set the
// trial t lies strictly between x and y. lo and hi bound the new step while
// no minimizer is bracketed.
func cstep(x, y *point, t point, bracket *bool, lo, hi float64) float64 {
	var next float64
	sgnd := t.g * math.Copysign(1, x.g)

	switch {
	case t.f > x.f:
		// Higher function value: the minimum is bracketed. Take the cubic
		// step if it is closer to x than the quadratic one, else their mean.
		theta := 3*(x.f-t.f)/(t.step-x.step) + x.g + t.g
		s := absMax(theta, x.g, t.g)
		gamma := s * math.Sqrt((theta/s)*(theta/s)-(x.g/s)*(t.g/s))
		if t.step < x.step {
			gamma = -gamma
		}
		p := (gamma - x.g) + theta
		q := ((gamma - x.g) + gamma) + t.g
		cubic := x.step + p/q*(t.step-x.step)
		quad := x.step + ((x.g/((x.f-t.f)/(t.step-x.step)+x.g))/2)*(t.step-x.step)
		if math.Abs(cubic-x.step) < math.Abs(quad-x.step) {
			next = cubic
		} else {
			next = cubic + (quad-cubic)/2
		}
		*bracket = true

	case sgnd < 0:
		// Derivatives of opposite sign: the minimum is bracketed. Take the
		// cubic step if it is farther from t than the secant step.
		theta := 3*(x.f-t.f)/(t.step-x.step) + x.g + t.g
		s := absMax(theta, x.g, t.g)
		gamma := s * math.Sqrt((theta/s)*(theta/s)-(x.g/s)*(t.g/s))
		if t.step > x.step {
			gamma = -gamma
		}
		p := (gamma - t.g) + theta
		q := ((gamma - t.g) + gamma) + x.g
		cubic := t.step + p/q*(x.step-t.step)
		secant := t.step + (t.g/(t.g-x.g))*(x.step-t.step)
		if math.Abs(cubic-t.step) > math.Abs(secant-t.step) {
			next = cubic
		} else {
			next = secant
		}
		*bracket = true

	case math.Abs(t.g) < math.Abs(x.g):
		// Same sign and decreasing magnitude. The cubic step is only used when
		// the cubic tends to infinity in the direction of the step or its
		// minimum lies beyond t, otherwise it is replaced by lo or hi.
		theta := 3*(x.f-t.f)/(t.step-x.step) + x.g + t.g
		s := absMax(theta, x.g, t.g)
		gamma := s * math.Sqrt(math.Max(0, (theta/s)*(theta/s)-(x.g/s)*(t.g/s)))
		if t.step > x.step {
			gamma = -gamma
		}
		p := (gamma - t.g) + theta
		q := (gamma + (x.g - t.g)) + gamma
		r := p / q
		var cubic float64
		switch {
		case r < 0 && gamma != 0:
			cubic = t.step + r*(x.step-t.step)
		case t.step > x.step:
			cubic = hi
		default:
			cubic = lo
		}
		secant := t.step + (t.g/(t.g-x.g))*(x.step-t.step)
		if *bracket {
			if math.Abs(cubic-t.step) < math.Abs(secant-t.step) {
				next = cubic
			} else {
				next = secant
			}
			if t.step > x.step {
				next = math.Min(t.step+p66*(y.step-t.step), next)
			} else {
				next = math.Max(t.step+p66*(y.step-t.step), next)
			}
		} else {
			if math.Abs(cubic-t.step) > math.Abs(secant-t.step) {
				next = cubic
			} else {
				next = secant
			}
			next = math.Max(lo, math.Min(hi, next))
		}

	default:
		// Same sign and non-decreasing magnitude: extrapolate to a bound
		// unless the minimum is bracketed.
		switch {
		case *bracket:
			theta := 3*(t.f-y.f)/(y.step-t.step) + y.g + t.g
			s := absMax(theta, y.g, t.g)
			gamma := s * math.Sqrt((theta/s)*(theta/s)-(y.g/s)*(t.g/s))
			if t.step > y.step {
				gamma = -gamma
			}
			p := (gamma - t.g) + theta
			q := ((gamma - t.g) + gamma) + y.g
			next = t.step + p/q*(y.step-t.step)
		case t.step > x.step:
			next = hi
		default:
			next = lo
		}
	}

	if t.f > x.f {
		*y = t
	} else {
		if sgnd < 0 {
			*y = *x
		}
		*x = t
	}
	return next
}

func absMax(a, b, c float64) float64 {
	return math.Max(math.Abs(a), math.Max(math.Abs(b), math.Abs(c)))
}
