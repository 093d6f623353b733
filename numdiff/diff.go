// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates gradients of scalar functions by finite differences.
package numdiff

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// ErrInvalidArgument reports an inconsistent Gradient or evaluation point.
var ErrInvalidArgument = errors.New("numdiff: invalid argument")

var (
	sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
	cubeEps = math.Cbrt(math.Nextafter(1, 2) - 1)
)

type Method int

const (
	// Forward uses the first order forward difference.
	Forward Method = iota
	// Central uses the central difference at interior points and a second
	// order one-sided difference near a bound.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Bound holds the lower and upper limits of one variable. NaN means no limit.
type Bound [2]float64

// Gradient estimates ∇f with one (Forward) or two (Central) extra
// evaluations of f per variable.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
type Gradient struct {
	// Func is the function to differentiate. It must not keep x.
	Func   func(x []float64) float64
	Method Method
	// Bounds restricts the points where Func is evaluated, nil for none.
	Bounds []Bound
	// RelStep gives the step h = RelStep⋅sign(x)⋅|x|. When both RelStep and
	// AbsStep are zero, h = ε⋅sign(x)⋅max(1,|x|) with ε chosen for the method.
	RelStep float64
	// AbsStep is the step before fitting into the bounds. The sign is
	// ignored by Central.
	AbsStep float64
	// SkipBoundCheck allows x outside the bounds.
	SkipBoundCheck bool

	step    []float64
	oneSide []bool
	bounded bool
}

// Check validates the settings for the point x0 and prepares the work space.
func (d *Gradient) Check(x0 []float64) error {
	var err error
	if d.Func == nil {
		err = multierr.Append(err, fmt.Errorf("%w: nil function", ErrInvalidArgument))
	}
	if d.Method != Forward && d.Method != Central {
		err = multierr.Append(err, fmt.Errorf("%w: unknown method %v", ErrInvalidArgument, d.Method))
	}
	if len(x0) == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: empty point", ErrInvalidArgument))
	}
	d.bounded = false
	if d.Bounds != nil {
		if len(d.Bounds) != len(x0) {
			err = multierr.Append(err, fmt.Errorf("%w: %d bounds for %d variables", ErrInvalidArgument, len(d.Bounds), len(x0)))
		} else {
			for i, b := range d.Bounds {
				lo, hi := limits(b)
				if lo > hi {
					err = multierr.Append(err, fmt.Errorf("%w: bound %d is empty", ErrInvalidArgument, i))
					continue
				}
				if !d.SkipBoundCheck && (x0[i] < lo || x0[i] > hi) {
					err = multierr.Append(err, fmt.Errorf("%w: x[%d] = %g violates its bounds", ErrInvalidArgument, i, x0[i]))
				}
				d.bounded = d.bounded || !math.IsInf(lo, 0) || !math.IsInf(hi, 0)
			}
		}
	}
	if len(d.step) != len(x0) {
		d.step = make([]float64, len(x0))
		d.oneSide = make([]bool, len(x0))
	}
	return err
}

func limits(b Bound) (lo, hi float64) {
	lo, hi = b[0], b[1]
	if math.IsNaN(lo) {
		lo = math.Inf(-1)
	}
	if math.IsNaN(hi) {
		hi = math.Inf(1)
	}
	return
}

// Estimate stores the gradient at x0 into grad and returns f(x0). x0 is
// modified during the evaluation and restored before returning.
func (d *Gradient) Estimate(x0, grad []float64) (float64, error) {
	if err := d.Check(x0); err != nil {
		return 0, err
	}
	if len(grad) != len(x0) {
		return 0, fmt.Errorf("%w: gradient has %d components for %d variables", ErrInvalidArgument, len(grad), len(x0))
	}
	d.initialSteps(x0)
	d.fitSteps(x0)
	if d.Method == Central {
		return d.central(x0, grad), nil
	}
	return d.forward(x0, grad), nil
}

// Evaluations returns the number of calls to Func made by Estimate for n variables.
func (d *Gradient) Evaluations(n int) int {
	return 1 + n*(int(d.Method)+1)
}

func (d *Gradient) initialSteps(x0 []float64) {
	eps := sqrtEps
	if d.Method == Central {
		eps = cubeEps
	}
	auto := func(v float64) float64 {
		return math.Copysign(eps, v) * math.Max(1, math.Abs(v))
	}
	for i, v := range x0 {
		if d.AbsStep == 0 && d.RelStep == 0 {
			d.step[i] = auto(v)
			continue
		}
		h := d.AbsStep
		if h == 0 {
			h = math.Copysign(d.RelStep, v) * math.Abs(v)
		}
		// Steps lost in rounding fall back to the automatic choice.
		if (v+h)-v == 0 {
			h = auto(v)
		}
		d.step[i] = h
	}
}

// fitSteps keeps every evaluation inside the bounds, flipping the step or
// switching to a one-sided scheme when the room is short.
func (d *Gradient) fitSteps(x0 []float64) {
	h, side := d.step, d.oneSide
	for i := range side {
		side[i] = false
	}
	if d.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
	}
	if !d.bounded {
		return
	}

	for i, v := range x0 {
		lo, hi := limits(d.Bounds[i])
		below, above := v-lo, hi-v
		switch d.Method {
		case Forward:
			inside := v+h[i] >= lo && v+h[i] <= hi
			fits := math.Abs(h[i]) < math.Max(below, above)
			switch {
			case !fits && above >= below:
				h[i] = above
			case !fits:
				h[i] = -below
			case !inside:
				h[i] = -h[i]
			}
		case Central:
			if below >= h[i] && above >= h[i] {
				continue
			}
			if above >= below {
				h[i] = math.Min(h[i], 0.5*above)
			} else {
				h[i] = -math.Min(h[i], 0.5*below)
			}
			side[i] = true
			// Back to central when both sides hold the shortened step.
			if room := math.Min(below, above); math.Abs(h[i]) <= room {
				h[i], side[i] = room, false
			}
		}
	}
}

func (d *Gradient) forward(x0, grad []float64) float64 {
	f0 := d.Func(x0)
	for i, h := range d.step {
		v := x0[i]
		x0[i] = v + h
		grad[i] = (d.Func(x0) - f0) / h
		x0[i] = v
	}
	return f0
}

func (d *Gradient) central(x0, grad []float64) float64 {
	f0 := d.Func(x0)
	for i, h := range d.step {
		v := x0[i]
		if d.oneSide[i] {
			x0[i] = v + h
			f1 := d.Func(x0)
			x0[i] = v + 2*h
			f2 := d.Func(x0)
			grad[i] = (4*f1 - 3*f0 - f2) / (2 * h)
		} else {
			x0[i] = v - h
			f1 := d.Func(x0)
			x0[i] = v + h
			f2 := d.Func(x0)
			grad[i] = (f2 - f1) / (2 * h)
		}
		x0[i] = v
	}
	return f0
}
