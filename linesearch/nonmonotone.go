// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import (
	"fmt"
	"slices"
)

const (
	DefaultNonmonotoneMemory = 10
	DefaultNonmonotoneFtol   = 1e-4
	DefaultNonmonotoneSigma1 = 0.1
	DefaultNonmonotoneSigma2 = 0.9
)

// Nonmonotone is the Birgin-Martínez-Raydan search used by spectral projected
// gradient methods. A step is accepted when
//
//	φ(λ) ≤ max{f₋ₘ₊₁,...,f₀} + 𝚏𝚝𝚘𝚕⋅λ⋅φ′(0)
//
// where f₋ₖ are the values at the starting points of the last m searches.
type Nonmonotone struct {
	core
	ftol, sigma1, sigma2 float64

	hist     []float64
	mark, mp int
	fmax     float64
}

// NewNonmonotone returns a nonmonotone search remembering m values.
// It requires 0 < ftol < 1 and 0 < sigma1 < sigma2 < 1.
func NewNonmonotone(m int, ftol, sigma1, sigma2 float64) (*Nonmonotone, error) {
	if m < 1 {
		return nil, fmt.Errorf("%w: memory %d < 1", ErrInvalidArgument, m)
	}
	ls := &Nonmonotone{hist: make([]float64, m)}
	if err := ls.SetFtol(ftol); err != nil {
		return nil, err
	}
	if err := ls.SetSafeguards(sigma1, sigma2); err != nil {
		return nil, err
	}
	return ls, nil
}

// DefaultNonmonotone returns a nonmonotone search with m=10, ftol=1e-4, σ₁=0.1 and σ₂=0.9.
func DefaultNonmonotone() *Nonmonotone {
	ls, _ := NewNonmonotone(DefaultNonmonotoneMemory, DefaultNonmonotoneFtol,
		DefaultNonmonotoneSigma1, DefaultNonmonotoneSigma2)
	return ls
}

// SetFtol sets the sufficient decrease tolerance.
func (ls *Nonmonotone) SetFtol(ftol float64) error {
	if err := checkOpen("ftol", ftol); err != nil {
		return err
	}
	ls.ftol = ftol
	return nil
}

// SetSafeguards sets the bounds σ₁ and σ₂ on the interpolated step.
func (ls *Nonmonotone) SetSafeguards(sigma1, sigma2 float64) error {
	if err := checkOpen("sigma1", sigma1); err != nil {
		return err
	}
	if err := checkOpen("sigma2", sigma2); err != nil {
		return err
	}
	if sigma1 >= sigma2 {
		return fmt.Errorf("%w: sigma1 = %g >= sigma2 = %g", ErrInvalidArgument, sigma1, sigma2)
	}
	ls.sigma1, ls.sigma2 = sigma1, sigma2
	return nil
}

// Memory returns the number of past values taken into account.
func (ls *Nonmonotone) Memory() int { return len(ls.hist) }

// Reference returns the maximum of the remembered values for the current search.
func (ls *Nonmonotone) Reference() float64 { return ls.fmax }

func (ls *Nonmonotone) Start(f0, g0, step, stepMin, stepMax float64) Status {
	return ls.start(ls, f0, g0, step, stepMin, stepMax)
}

func (ls *Nonmonotone) Iterate(step, f, g float64) Status {
	return ls.iterate(ls, step, f, g)
}

func (ls *Nonmonotone) begin(c *core) {
	m := len(ls.hist)
	ls.hist[ls.mark%m] = c.f0
	ls.mark++
	if ls.mp < m {
		ls.mp++
	}
	ls.fmax = slices.Max(ls.hist[:min(ls.mp, m)])
}

func (ls *Nonmonotone) next(c *core, f, _ float64) Status {
	if f <= ls.fmax+c.step*ls.ftol*c.g0 {
		return Convergence
	}
	if c.step <= c.stepMin {
		return WarningStepEqStepMin
	}
	q := -c.g0 * c.step * c.step
	r := 2 * (f - c.f0 - c.step*c.g0)
	if r > 0 && ls.sigma1*r <= q && q <= ls.sigma2*r*c.step {
		c.step = q / r
	} else if mid := c.stepMin + 0.5*(c.step-c.stepMin); mid < c.step {
		c.step = mid
	} else {
		c.step = c.stepMin
	}
	return Searching
}
