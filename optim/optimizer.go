// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optim implements reverse communication optimizers for smooth
// functions: limited memory quasi-Newton methods, with or without a convex
// feasible set, and nonlinear conjugate gradients.
//
// An optimizer never evaluates the objective. It returns a Task telling the
// caller what to do before calling Iterate again:
//
//	task := opt.Start()
//	for {
//		switch task {
//		case optim.ComputeFG:
//			f = fg(x, g)
//		case optim.NewX:
//			// x, f and g form a new iterate
//		default:
//			return // FinalX, Warning or Error
//		}
//		task = opt.Iterate(x, f, g)
//	}
package optim

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/curioloop/optimpack/bound"
	"github.com/curioloop/optimpack/lbfgs"
	"github.com/curioloop/optimpack/linesearch"
	"github.com/curioloop/optimpack/vector"
)

// direction produces search directions for the engine. A direction p is an
// anti-descent direction: trial points are x₀ - α⋅p.
type direction interface {
	// name identifies the method in logs.
	name() string
	// reset discards any curvature memory.
	reset()
	// memory reports whether the next direction uses curvature memory.
	memory() bool
	// storage returns the vectors holding the previous point and gradient.
	// They stay valid until the next update.
	storage() (x0, g0 *vector.Vector)
	// update records the move from (x0,g0) to (x,g).
	update(x, x0, g, g0 *vector.Vector) error
	// compute stores the next direction for gradient g into p, which holds the
	// previous direction on entry. It reports whether the method had to fall
	// back on steepest descent.
	compute(p, g *vector.Vector) (restarted bool, err error)
	// initialStep proposes the first step of the next line search from the
	// previous step, the previous initial slope and the new one.
	initialStep(prevStep, prevSlope, slope float64) (float64, bool)
}

// gradients selects which gradient feeds each stage of a bounded method.
type gradients struct {
	// searchProjected computes directions from the projected gradient.
	searchProjected bool
	// updateProjected records projected gradients in the curvature memory.
	updateProjected bool
}

type stage int

const (
	stageIdle stage = iota
	stageFirst
	stageSearch
	stageAccepted
)

// Optimizer is the reverse communication engine shared by every method.
type Optimizer struct {
	space   *vector.Space
	dir     direction
	grads   gradients
	proj    bound.ConvexSetProjector
	stepper bound.BoundProjector
	search  linesearch.LineSearch
	log     *zap.Logger

	gatol, grtol   float64
	epsilon, delta float64
	stepMax        float64
	noDescent      Reason
	task           Task
	reason         Reason
	stage          stage
	evals, iters   int
	restarts       int
	alpha, slope   float64
	ginit, gnorm   float64
	p, pg, work    *vector.Vector
}

func newOptimizer(space *vector.Space, dir direction, proj bound.ConvexSetProjector, c *config) *Optimizer {
	o := &Optimizer{
		space:     space,
		dir:       dir,
		proj:      proj,
		search:    c.search,
		log:       c.logger.With(zap.String("method", dir.name())),
		gatol:     c.gatol,
		grtol:     c.grtol,
		epsilon:   c.epsilon,
		delta:     c.delta,
		stepMax:   c.stepMax,
		noDescent: BadPreconditioner,
		task:      Error,
		reason:    NotStarted,
		p:         space.Create(),
		work:      space.Create(),
	}
	if proj != nil {
		o.stepper, _ = proj.(bound.BoundProjector)
		o.pg = space.Create()
	}
	return o
}

// Space returns the space of the variables.
func (o *Optimizer) Space() *vector.Space { return o.space }

// Method names the algorithm.
func (o *Optimizer) Method() string { return o.dir.name() }

// Projector returns the feasible set, nil for unconstrained methods.
func (o *Optimizer) Projector() bound.ConvexSetProjector { return o.proj }

// Task returns the pending task.
func (o *Optimizer) Task() Task { return o.task }

// Reason explains a FinalX, Warning or Error task.
func (o *Optimizer) Reason() Reason { return o.reason }

// Message returns the text of Reason.
func (o *Optimizer) Message() string { return Message(o.reason) }

// Iterations returns the number of completed iterations.
func (o *Optimizer) Iterations() int { return o.iters }

// Evaluations returns the number of function evaluations.
func (o *Optimizer) Evaluations() int { return o.evals }

// Restarts returns the number of times the curvature memory was discarded.
func (o *Optimizer) Restarts() int { return o.restarts }

// Step returns the current step of the line search.
func (o *Optimizer) Step() float64 { return o.alpha }

// GradientNorm returns the norm of the (projected) gradient at the last accepted point.
func (o *Optimizer) GradientNorm() float64 { return o.gnorm }

// InitialGradientNorm returns the norm of the (projected) gradient at the first point.
func (o *Optimizer) InitialGradientNorm() float64 { return o.ginit }

// Threshold returns the gradient norm under which the current solve is converged.
func (o *Optimizer) Threshold() float64 { return threshold(o.gatol, o.grtol, o.ginit) }

// LineSearch returns the line search in use.
func (o *Optimizer) LineSearch() linesearch.LineSearch { return o.search }

// SetLineSearch replaces the line search. It takes effect at the next iteration.
func (o *Optimizer) SetLineSearch(ls linesearch.LineSearch) error {
	if ls == nil {
		return fmt.Errorf("%w: nil line search", ErrInvalidArgument)
	}
	o.search = ls
	return nil
}

// SetAbsoluteTolerance sets gatol.
func (o *Optimizer) SetAbsoluteTolerance(gatol float64) error {
	if err := checkTolerance("gatol", gatol, math.Inf(1)); err != nil {
		return err
	}
	o.gatol = gatol
	return nil
}

// SetRelativeTolerance sets grtol.
func (o *Optimizer) SetRelativeTolerance(grtol float64) error {
	if err := checkTolerance("grtol", grtol, 1); err != nil {
		return err
	}
	o.grtol = grtol
	return nil
}

// SetEpsilon sets the sufficient descent threshold ε.
func (o *Optimizer) SetEpsilon(eps float64) error {
	if err := checkTolerance("epsilon", eps, 1); err != nil {
		return err
	}
	o.epsilon = eps
	return nil
}

// SetDelta sets the relative size δ of steps taken without curvature memory.
func (o *Optimizer) SetDelta(delta float64) error {
	if err := checkPositive("delta", delta); err != nil {
		return err
	}
	o.delta = delta
	return nil
}

// threshold is the gradient norm under which the iterate is converged.
func threshold(gatol, grtol, ginit float64) float64 {
	return math.Max(0, math.Max(gatol, grtol*ginit))
}

// Start begins a new solve. The caller must then evaluate f and g at its
// starting point.
func (o *Optimizer) Start() Task {
	o.evals, o.iters, o.restarts = 0, 0, 0
	o.begin()
	return o.task
}

// Restart begins again from the next evaluated point keeping the counters,
// the curvature memory is discarded.
func (o *Optimizer) Restart() Task {
	o.restarts++
	o.begin()
	return o.task
}

func (o *Optimizer) begin() {
	o.dir.reset()
	o.alpha, o.slope = 0, 0
	o.stage = stageFirst
	o.task, o.reason = ComputeFG, NoReason
}

// Iterate continues the solve with the variables x, function value f and
// gradient g. x is overwritten with the next trial point when the returned
// task is ComputeFG. g is never modified.
func (o *Optimizer) Iterate(x *vector.Vector, f float64, g *vector.Vector) Task {
	if err := o.space.Check(x, g); err != nil {
		return o.fail(Error, IncorrectSpace, err)
	}
	switch o.task {
	case ComputeFG:
		return o.evaluated(x, f, g)
	case NewX, FinalX:
		return o.nextSearch(x, f, g)
	case Warning, Error:
		return o.task
	}
	return o.fail(Error, NotStarted, nil)
}

// projectedGradient returns the gradient used by convergence and descent tests.
func (o *Optimizer) projectedGradient(x, g *vector.Vector) (*vector.Vector, error) {
	if o.proj == nil {
		return g, nil
	}
	if err := bound.ProjectGradient(o.proj, o.pg, x, g); err != nil {
		return nil, err
	}
	return o.pg, nil
}

func (o *Optimizer) evaluated(x *vector.Vector, f float64, g *vector.Vector) Task {
	o.evals++

	if o.stage == stageFirst && o.proj != nil {
		// The first point must be feasible.
		if err := o.proj.ProjectVariables(o.work, x); err != nil {
			return o.fail(Error, ProjectionFailed, err)
		}
		if !equal(o.work, x) {
			o.space.Copy(x, o.work)
			o.log.Debug("initial point projected onto the feasible set")
			return o.task
		}
	}

	pg, err := o.projectedGradient(x, g)
	if err != nil {
		return o.fail(Error, ProjectionFailed, err)
	}

	if o.stage == stageFirst {
		o.ginit = o.space.Norm2(pg)
		return o.accept(f, pg)
	}

	slope, err := o.trialSlope(x, g)
	if err != nil {
		return o.fail(Error, ProjectionFailed, err)
	}
	st := o.search.Iterate(o.alpha, f, slope)
	switch st {
	case linesearch.Searching:
		o.alpha = o.search.Step()
		if err := o.trial(x); err != nil {
			return o.fail(Error, ProjectionFailed, err)
		}
		return o.task
	case linesearch.Convergence, linesearch.WarningRoundingErrors:
		o.iters++
		return o.accept(f, pg)
	}
	task, reason := fromSearch(st)
	return o.fail(task, reason, nil)
}

// accept ends an evaluation at an accepted point with NewX or FinalX.
func (o *Optimizer) accept(f float64, pg *vector.Vector) Task {
	o.stage = stageAccepted
	o.gnorm = o.space.Norm2(pg)
	if o.gnorm <= threshold(o.gatol, o.grtol, o.ginit) {
		o.task, o.reason = FinalX, Converged
	} else {
		o.task, o.reason = NewX, NoReason
	}
	return o.task
}

// nextSearch handles NewX and FinalX alike: update the memory, find a
// descent direction and start a line search from x.
func (o *Optimizer) nextSearch(x *vector.Vector, f float64, g *vector.Vector) Task {
	sp := o.space
	pg := g
	if o.proj != nil {
		pg = o.pg
	}

	x0, g0 := o.dir.storage()
	if o.iters > 0 && o.stage == stageAccepted && o.alpha > 0 {
		gu, gu0 := g, g0
		if o.grads.updateProjected {
			gu = pg
		}
		if err := o.dir.update(x, x0, gu, gu0); err != nil {
			return o.fail(Error, OperatorFailed, err)
		}
	}

	gs := g
	if o.grads.searchProjected {
		gs = pg
	}
	var dtg, pnorm float64
	for {
		restarted, err := o.dir.compute(o.p, gs)
		if err != nil {
			if errors.Is(err, lbfgs.ErrPreconditioner) {
				return o.fail(Error, BadPreconditioner, err)
			}
			return o.fail(Error, OperatorFailed, err)
		}
		if restarted {
			o.restarts++
			o.log.Debug("direction restarted", zap.Int("iteration", o.iters))
		}
		if o.proj != nil {
			if err := o.proj.ProjectDirection(o.work, x, o.p, true); err != nil {
				return o.fail(Error, ProjectionFailed, err)
			}
			sp.Copy(o.p, o.work)
		}
		dtg = sp.Dot(o.p, g)
		pnorm = sp.Norm2(o.p)
		if o.sufficientDescent(dtg, pnorm) {
			break
		}
		if !o.dir.memory() {
			o.log.Warn("no descent direction without curvature memory", zap.Int("iteration", o.iters))
			return o.fail(Error, o.noDescent, nil)
		}
		o.dir.reset()
		o.restarts++
		o.log.Debug("curvature memory discarded", zap.Int("iteration", o.iters))
	}

	// Save the accepted point, possibly into storage borrowed from the memory.
	x0, g0 = o.dir.storage()
	sp.Copy(x0, x)
	if o.grads.updateProjected {
		sp.Copy(g0, pg)
	} else {
		sp.Copy(g0, g)
	}

	slope := -dtg
	alpha, ok := o.dir.initialStep(o.alpha, o.slope, slope)
	if !ok {
		if xnorm := sp.Norm2(x); xnorm > 0 {
			alpha = o.delta * xnorm / pnorm
		} else {
			alpha = 1 / pnorm
		}
	}
	stepMax := o.stepMax
	if o.stepper != nil {
		_, smax, err := o.stepper.StepBounds(x, o.p, true)
		if err != nil {
			return o.fail(Error, ProjectionFailed, err)
		}
		if smax > 0 && smax < stepMax {
			stepMax = smax
		}
	}
	alpha = math.Min(alpha, stepMax)
	o.slope = slope

	if st := o.search.Start(f, slope, alpha, stepMinRatio*alpha, stepMax); st != linesearch.Searching {
		task, reason := fromSearch(st)
		return o.fail(task, reason, nil)
	}
	o.alpha = o.search.Step()
	o.stage = stageSearch
	if err := o.trial(x); err != nil {
		return o.fail(Error, ProjectionFailed, err)
	}
	o.task, o.reason = ComputeFG, NoReason
	return o.task
}

func (o *Optimizer) sufficientDescent(dtg, pnorm float64) bool {
	if o.epsilon > 0 {
		gnorm := o.gnorm
		return dtg > 0 && dtg >= o.epsilon*pnorm*gnorm
	}
	return dtg > 0
}

// trial stores x₀ - α⋅p, projected onto the feasible set, into x.
func (o *Optimizer) trial(x *vector.Vector) error {
	x0, _ := o.dir.storage()
	if o.proj == nil {
		o.space.Combine(x, 1, x0, -o.alpha, o.p)
		return nil
	}
	o.space.Combine(o.work, 1, x0, -o.alpha, o.p)
	return o.proj.ProjectVariables(x, o.work)
}

// trialSlope returns the derivative of f along the (projected) search path at x.
func (o *Optimizer) trialSlope(x, g *vector.Vector) (float64, error) {
	if o.proj == nil {
		return -o.space.Dot(o.p, g), nil
	}
	if err := o.proj.ProjectDirection(o.work, x, o.p, true); err != nil {
		return 0, err
	}
	return -o.space.Dot(o.work, g), nil
}

func (o *Optimizer) fail(task Task, reason Reason, err error) Task {
	o.task, o.reason = task, reason
	fields := []zap.Field{zap.Stringer("task", task), zap.String("reason", Message(reason)), zap.Int("iteration", o.iters)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	o.log.Debug("optimizer stopped", fields...)
	return task
}

func equal(a, b *vector.Vector) bool {
	x, y := a.Data(), b.Data()
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
