// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linesearch implements reverse communication line searches for the
// 1-D problem
//
//	min φ(λ) = f(x₀ + λ⋅p)
//
// The caller only ever supplies scalar values: φ(λ) and φ′(λ) at the step
// requested by the search.
//
//	st := ls.Start(f0, g0, step, stepMin, stepMax)
//	for st == linesearch.Searching {
//		f, g := phi(ls.Step())
//		st = ls.Iterate(ls.Step(), f, g)
//	}
package linesearch

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument reports an invalid line search parameter.
var ErrInvalidArgument = errors.New("linesearch: invalid argument")

// LineSearch is the reverse communication contract shared by all strategies.
type LineSearch interface {
	// Start resets the search at φ(0)=f0, φ′(0)=g0 with the first trial step.
	Start(f0, g0, step, stepMin, stepMax float64) Status
	// Iterate submits φ(step) and φ′(step) for the step returned by Step.
	Iterate(step, f, g float64) Status
	// Step returns the current trial step.
	Step() float64
	// StepMin returns the lower step bound of the current search.
	StepMin() float64
	// StepMax returns the upper step bound of the current search.
	StepMax() float64
	// Status returns the current status.
	Status() Status
}

// strategy is the algorithm specific part of a line search.
type strategy interface {
	begin(c *core)
	next(c *core, f, g float64) Status
}

// core holds the state common to every strategy and enforces the protocol.
type core struct {
	step, stepMin, stepMax float64
	f0, g0                 float64
	status                 Status
}

func (c *core) Step() float64    { return c.step }
func (c *core) StepMin() float64 { return c.stepMin }
func (c *core) StepMax() float64 { return c.stepMax }
func (c *core) Status() Status   { return c.status }

// Value and Slope return φ(0) and φ′(0) of the current search.
func (c *core) Value() float64 { return c.f0 }
func (c *core) Slope() float64 { return c.g0 }

func (c *core) start(s strategy, f0, g0, step, stepMin, stepMax float64) Status {
	switch {
	case stepMin < 0:
		c.status = ErrorStepMinLtZero
	case stepMin > stepMax:
		c.status = ErrorStepMinGtStepMax
	case step < stepMin:
		c.status = ErrorStepLtStepMin
	case step > stepMax:
		c.status = ErrorStepGtStepMax
	case !(g0 < 0):
		c.status = ErrorInitialDerivativeGeZero
	default:
		c.step, c.stepMin, c.stepMax = step, stepMin, stepMax
		c.f0, c.g0 = f0, g0
		c.status = Searching
		s.begin(c)
	}
	return c.status
}

func (c *core) iterate(s strategy, step, f, g float64) Status {
	if c.status != Searching {
		c.status = ErrorNotStarted
		return c.status
	}
	if step != c.step {
		c.status = ErrorStepChanged
		return c.status
	}
	last := c.step
	c.status = s.next(c, f, g)
	if c.status != Searching {
		return c.status
	}
	// The same bound requested twice in a row means no further progress.
	if c.step <= c.stepMin {
		c.step = c.stepMin
		if last == c.stepMin {
			c.status = WarningStepEqStepMin
		}
	} else if c.step >= c.stepMax {
		c.step = c.stepMax
		if last == c.stepMax {
			c.status = WarningStepEqStepMax
		}
	}
	return c.status
}

func checkOpen(name string, v float64) error {
	if !(v > 0 && v < 1) {
		return fmt.Errorf("%w: %s = %g not in (0,1)", ErrInvalidArgument, name, v)
	}
	return nil
}
