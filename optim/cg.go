// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"fmt"
	"math"

	"github.com/curioloop/optimpack/linesearch"
	"github.com/curioloop/optimpack/vector"
)

// CGRule selects the formula of the conjugate gradient parameter β.
type CGRule int

const (
	FletcherReeves CGRule = iota
	HestenesStiefel
	PolakRibierePolyak
	// Fletcher is the conjugate descent method.
	Fletcher
	LiuStorey
	DaiYuan
	// PerryShanno is the memoryless BFGS update of Shanno and Phua.
	PerryShanno
	HagerZhang
)

var cgRuleNames = [...]string{
	FletcherReeves:     "Fletcher-Reeves",
	HestenesStiefel:    "Hestenes-Stiefel",
	PolakRibierePolyak: "Polak-Ribiere-Polyak",
	Fletcher:           "Fletcher",
	LiuStorey:          "Liu-Storey",
	DaiYuan:            "Dai-Yuan",
	PerryShanno:        "Perry-Shanno",
	HagerZhang:         "Hager-Zhang",
}

func (r CGRule) String() string {
	if r >= 0 && int(r) < len(cgRuleNames) {
		return cgRuleNames[r]
	}
	return fmt.Sprintf("CGRule(%d)", int(r))
}

// CGConfig configures a nonlinear conjugate gradient optimizer.
type CGConfig struct {
	Rule CGRule
	// NonNegativeBeta restarts along the gradient whenever β < 0 (Powell).
	NonNegativeBeta bool
	// RescaleStep starts each line search at α⋅s₀/s where s₀ and s are the
	// previous and current directional derivatives (Shanno and Phua).
	// Otherwise the unit step is tried.
	RescaleStep bool
}

// DefaultCGConfig returns Hager–Zhang with rescaled initial steps.
func DefaultCGConfig() CGConfig {
	return CGConfig{Rule: HagerZhang, RescaleStep: true}
}

// conjugate searches along p = g + β⋅p₋ where p₋ is the previous direction.
type conjugate struct {
	space  *vector.Space
	cfg    CGConfig
	x0, g0 *vector.Vector
	s, y   *vector.Vector
	// moved is set when s and y describe the last step.
	moved bool
	// conj is set when the last direction used β.
	conj bool
}

func newConjugate(space *vector.Space, cfg CGConfig) *conjugate {
	return &conjugate{
		space: space,
		cfg:   cfg,
		x0:    space.Create(),
		g0:    space.Create(),
		s:     space.Create(),
		y:     space.Create(),
	}
}

func (c *conjugate) name() string { return "NLCG/" + c.cfg.Rule.String() }

func (c *conjugate) reset() { c.moved, c.conj = false, false }

func (c *conjugate) memory() bool { return c.conj }

func (c *conjugate) storage() (x0, g0 *vector.Vector) { return c.x0, c.g0 }

func (c *conjugate) update(x, x0, g, g0 *vector.Vector) error {
	if err := c.space.Check(x, x0, g, g0); err != nil {
		return err
	}
	c.space.Combine(c.s, 1, x, -1, x0)
	c.space.Combine(c.y, 1, g, -1, g0)
	c.moved = true
	return nil
}

func (c *conjugate) compute(p, g *vector.Vector) (bool, error) {
	sp := c.space
	if !c.moved {
		sp.Copy(p, g)
		c.conj = false
		return false, nil
	}
	c.moved = false
	if c.cfg.Rule == PerryShanno {
		return c.memoryless(p, g), nil
	}

	var (
		gg   = sp.Dot(g, g)
		gty  = sp.Dot(g, c.y)
		ptg  = sp.Dot(p, g)
		pty  = sp.Dot(p, c.y)
		ptg0 = ptg - pty
		dty  = -pty
	)
	var beta float64
	switch c.cfg.Rule {
	case FletcherReeves:
		// g₀ = g - y
		g0g0 := gg - 2*gty + sp.Dot(c.y, c.y)
		beta = gg / g0g0
	case HestenesStiefel:
		beta = gty / dty
	case PolakRibierePolyak:
		g0g0 := gg - 2*gty + sp.Dot(c.y, c.y)
		beta = gty / g0g0
	case Fletcher:
		beta = gg / ptg0
	case LiuStorey:
		beta = gty / ptg0
	case DaiYuan:
		beta = gg / dty
	case HagerZhang:
		yty := sp.Dot(c.y, c.y)
		beta = (gty + 2*ptg*yty/dty) / dty
	default:
		return false, fmt.Errorf("%w: unknown conjugate gradient rule %v", ErrInvalidArgument, c.cfg.Rule)
	}
	if math.IsNaN(beta) || math.IsInf(beta, 0) || (c.cfg.NonNegativeBeta && beta < 0) {
		sp.Copy(p, g)
		c.conj = false
		return true, nil
	}
	sp.Combine(p, 1, g, beta, p)
	c.conj = beta != 0
	return false, nil
}

// memoryless stores p = H⋅g for the BFGS update of γ⋅I with γ = ⟨s,y⟩/⟨y,y⟩.
func (c *conjugate) memoryless(p, g *vector.Vector) bool {
	sp := c.space
	sty := sp.Dot(c.s, c.y)
	yty := sp.Dot(c.y, c.y)
	if !(sty > 0 && yty > 0) {
		sp.Copy(p, g)
		c.conj = false
		return true
	}
	stg := sp.Dot(c.s, g)
	gty := sp.Dot(g, c.y)
	sp.Combine(p, sty/yty, g, -stg/yty, c.y)
	sp.Axpy(p, 2*stg/sty-gty/yty, c.s)
	c.conj = true
	return false
}

func (c *conjugate) initialStep(prevStep, prevSlope, slope float64) (float64, bool) {
	if prevStep <= 0 {
		return 0, false
	}
	if c.cfg.RescaleStep {
		if prevSlope < 0 && slope < 0 {
			return prevStep * (prevSlope / slope), true
		}
		return 0, false
	}
	return 1, true
}

// NewNLCG returns an unconstrained nonlinear conjugate gradient optimizer.
// Its line search defaults to Moré–Thuente with a small curvature tolerance
// since conjugacy relies on nearly exact line searches.
func NewNLCG(space *vector.Space, cfg CGConfig, opts ...Option) (*Optimizer, error) {
	if space == nil {
		return nil, fmt.Errorf("%w: nil space", ErrInvalidArgument)
	}
	if cfg.Rule < FletcherReeves || cfg.Rule > HagerZhang {
		return nil, fmt.Errorf("%w: unknown conjugate gradient rule %v", ErrInvalidArgument, cfg.Rule)
	}
	search, err := linesearch.NewMoreThuente(1e-4, 0.1, 1e-10)
	if err != nil {
		return nil, err
	}
	c, err := newConfig(0, search, opts)
	if err != nil {
		return nil, err
	}
	o := newOptimizer(space, newConjugate(space, cfg), nil, c)
	o.noDescent = NotADescent
	return o, nil
}
