// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import "math"

const (
	DefaultArmijoSigma = 0.05
	DefaultArmijoGain  = 0.5
)

// Armijo is a backtracking line search which accepts the first step satisfying
//
//	φ(λ) - φ(0) ≤ σ⋅λ⋅φ′(0)
//
// and otherwise shrinks the step by a constant gain ρ.
//
// The best step tried so far is remembered. When a shorter step turns out
// worse than a longer one already tried, the search goes back to the longer
// step and accepts it on the next call without testing it again.
type Armijo struct {
	core
	sigma, gain float64

	bestStep, bestF float64
	bypass          bool
}

// NewArmijo returns an Armijo search with tolerance sigma and gain rho, both in (0,1).
func NewArmijo(sigma, rho float64) (*Armijo, error) {
	a := new(Armijo)
	if err := a.SetSigma(sigma); err != nil {
		return nil, err
	}
	if err := a.SetGain(rho); err != nil {
		return nil, err
	}
	return a, nil
}

// DefaultArmijo returns an Armijo search with σ=0.05 and ρ=0.5.
func DefaultArmijo() *Armijo {
	return &Armijo{sigma: DefaultArmijoSigma, gain: DefaultArmijoGain}
}

// SetSigma sets the sufficient decrease tolerance σ.
func (a *Armijo) SetSigma(sigma float64) error {
	if err := checkOpen("sigma", sigma); err != nil {
		return err
	}
	a.sigma = sigma
	return nil
}

// SetGain sets the backtracking factor ρ.
func (a *Armijo) SetGain(rho float64) error {
	if err := checkOpen("rho", rho); err != nil {
		return err
	}
	a.gain = rho
	return nil
}

// Sigma returns the sufficient decrease factor σ.
func (a *Armijo) Sigma() float64 { return a.sigma }

// Gain returns the backtracking factor ρ.
func (a *Armijo) Gain() float64 { return a.gain }

func (a *Armijo) Start(f0, g0, step, stepMin, stepMax float64) Status {
	return a.start(a, f0, g0, step, stepMin, stepMax)
}

func (a *Armijo) Iterate(step, f, g float64) Status {
	return a.iterate(a, step, f, g)
}

func (a *Armijo) begin(*core) {
	a.bestStep, a.bestF = 0, math.Inf(1)
	a.bypass = false
}

func (a *Armijo) next(c *core, f, _ float64) Status {
	if a.bypass {
		a.bypass = false
		return Convergence
	}
	if f-c.f0 <= c.step*a.sigma*c.g0 {
		return Convergence
	}
	if a.bestStep > c.step && a.bestF < f && a.bestF < c.f0 {
		c.step = a.bestStep
		a.bypass = true
		return Searching
	}
	if f < a.bestF {
		a.bestStep, a.bestF = c.step, f
	}
	c.step *= a.gain
	return Searching
}
