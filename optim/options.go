// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/curioloop/optimpack/lbfgs"
	"github.com/curioloop/optimpack/linesearch"
)

// ErrInvalidArgument reports an invalid optimizer setting.
var ErrInvalidArgument = errors.New("optim: invalid argument")

const (
	DefaultMemory            = 5
	DefaultRelativeTolerance = 1e-6
	DefaultDelta             = 5e-2
	DefaultEpsilon           = 1e-2
	// DefaultStepMax bounds the line search when the feasible set does not.
	DefaultStepMax = 1e10
	// stepMinRatio sets the smallest step of a line search relative to its first step.
	stepMinRatio = 1e-20
)

type config struct {
	memory     int
	scaling    lbfgs.Scaling
	h0         lbfgs.LinearOperator
	search     linesearch.LineSearch
	gatol      float64
	grtol      float64
	epsilon    float64
	delta      float64
	stepMax    float64
	logger     *zap.Logger
	scalingSet bool
}

// Option configures an optimizer at construction.
type Option func(*config)

// WithMemory sets the number of correction pairs kept by quasi-Newton methods.
func WithMemory(m int) Option {
	return func(c *config) { c.memory = m }
}

// WithScaling sets the rule estimating the scale of the inverse Hessian.
func WithScaling(rule lbfgs.Scaling) Option {
	return func(c *config) { c.scaling, c.scalingSet = rule, true }
}

// WithPreconditioner sets the initial inverse Hessian approximation.
func WithPreconditioner(h0 lbfgs.LinearOperator) Option {
	return func(c *config) { c.h0 = h0 }
}

// WithLineSearch replaces the default line search.
func WithLineSearch(ls linesearch.LineSearch) Option {
	return func(c *config) { c.search = ls }
}

// WithTolerances sets the absolute and relative gradient tolerances.
// Convergence is reached when ‖g‖ ≤ max(0, gatol, grtol⋅‖g₀‖).
func WithTolerances(gatol, grtol float64) Option {
	return func(c *config) { c.gatol, c.grtol = gatol, grtol }
}

// WithEpsilon sets the sufficient descent threshold ε: a direction p is
// accepted when ⟨p,g⟩ ≥ ε⋅‖p‖⋅‖g‖ (⟨p,g⟩ > 0 when ε = 0).
func WithEpsilon(eps float64) Option {
	return func(c *config) { c.epsilon = eps }
}

// WithDelta sets the relative size δ of the first step taken without
// curvature information.
func WithDelta(delta float64) Option {
	return func(c *config) { c.delta = delta }
}

// WithStepMax sets the largest step of the line search.
func WithStepMax(stepMax float64) Option {
	return func(c *config) { c.stepMax = stepMax }
}

// WithLogger sets the logger reporting restarts and failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func newConfig(epsilon float64, search linesearch.LineSearch, opts []Option) (*config, error) {
	c := &config{
		memory:  DefaultMemory,
		scaling: lbfgs.ScaleByStyOverYty,
		search:  search,
		grtol:   DefaultRelativeTolerance,
		epsilon: epsilon,
		delta:   DefaultDelta,
		stepMax: DefaultStepMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.h0 != nil && !c.scalingSet {
		c.scaling = lbfgs.NoScaling
	}
	err := multierr.Combine(
		checkTolerance("gatol", c.gatol, math.Inf(1)),
		checkTolerance("grtol", c.grtol, 1),
		checkTolerance("epsilon", c.epsilon, 1),
		checkPositive("delta", c.delta),
		checkPositive("step max", c.stepMax),
	)
	if c.search == nil {
		err = multierr.Append(err, fmt.Errorf("%w: nil line search", ErrInvalidArgument))
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func checkTolerance(name string, v, upper float64) error {
	if !(v >= 0 && v < upper) {
		return fmt.Errorf("%w: %s = %g not in [0,%g)", ErrInvalidArgument, name, v, upper)
	}
	return nil
}

func checkPositive(name string, v float64) error {
	if !(v > 0) {
		return fmt.Errorf("%w: %s = %g <= 0", ErrInvalidArgument, name, v)
	}
	return nil
}
