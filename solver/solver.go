// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solver drives the reverse communication optimizers of package
// optim against a differentiable cost function.
package solver

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/curioloop/optimpack/bound"
	"github.com/curioloop/optimpack/optim"
	"github.com/curioloop/optimpack/vector"
)

// ErrInvalidProblem reports an inconsistent Problem.
var ErrInvalidProblem = errors.New("solver: invalid problem")

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only the summary of the last iteration
	LogLast LogLevel = 0
	// LogEval print also f and |proj g| every `level` iterations for any (0 < level < 99)
	LogEval LogLevel = 1
	// LogTrace print details of every iteration except n-vectors
	LogTrace LogLevel = 99
	// LogVerbose print details of every iteration including x and g (level > 100)
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the solver.
// Note the writer must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   *zap.Logger // Structured log messages.
	Out   io.Writer   // Iteration table.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) out(format string, a ...any) {
	_, _ = fmt.Fprintf(l.Out, format, a...)
}

// Termination specifies the limits of a solve. Zero means no limit.
type Termination struct {
	// The solve stops when the number of iterations reaches the limit.
	MaxIterations int
	// The solve stops when the number of function evaluations reaches the limit.
	MaxEvaluations int
	// The solve stops when the time spent, in seconds, exceeds the limit.
	MaxComputations int64
}

// Problem specifies what a Solver minimizes and how.
type Problem struct {
	Cost      DifferentiableCostFunction
	Optimizer *optim.Optimizer
	// Projector services ProjectV tasks and projects the starting point.
	// It defaults to the feasible set of the optimizer.
	Projector bound.ConvexSetProjector
	Stop      Termination
	// SaveBest keeps the point with the lowest cost seen by the solve.
	SaveBest bool
	// Scale multiplies the cost function, zero means one.
	Scale float64
}

// New validates the problem and creates a solver.
func (p *Problem) New(logger *Logger) (*Solver, error) {
	log := Logger{Level: LogNoop}
	if logger != nil {
		log = *logger
	}
	if log.Msg == nil {
		log.Msg = zap.NewNop()
	}
	if log.Out == nil {
		log.Out = io.Discard
	}

	var err error
	if p.Cost == nil {
		err = multierr.Append(err, fmt.Errorf("%w: cost function is required", ErrInvalidProblem))
	}
	if p.Optimizer == nil {
		err = multierr.Append(err, fmt.Errorf("%w: optimizer is required", ErrInvalidProblem))
	}
	if p.Cost != nil && p.Optimizer != nil && p.Cost.Space() != p.Optimizer.Space() {
		err = multierr.Append(err, fmt.Errorf("%w: cost function and optimizer spaces differ", ErrInvalidProblem))
	}
	proj := p.Projector
	if proj == nil && p.Optimizer != nil {
		proj = p.Optimizer.Projector()
	}
	if proj != nil && p.Optimizer != nil && proj.Space() != p.Optimizer.Space() {
		err = multierr.Append(err, fmt.Errorf("%w: projector and optimizer spaces differ", ErrInvalidProblem))
	}
	stop := p.Stop
	if stop.MaxIterations < 0 || stop.MaxEvaluations < 0 || stop.MaxComputations < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative termination limit", ErrInvalidProblem))
	}
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	if !(scale > 0) || math.IsInf(scale, 1) {
		err = multierr.Append(err, fmt.Errorf("%w: scale = %g", ErrInvalidProblem, p.Scale))
	}
	if err != nil {
		return nil, err
	}

	if stop.MaxIterations == 0 {
		stop.MaxIterations = math.MaxInt
	}
	if stop.MaxEvaluations == 0 {
		stop.MaxEvaluations = math.MaxInt
	}
	limit := time.Duration(math.MaxInt64)
	if stop.MaxComputations > 0 && stop.MaxComputations < math.MaxInt64/int64(time.Second) {
		limit = time.Duration(stop.MaxComputations) * time.Second
	}

	return &Solver{
		cost:     p.Cost,
		opt:      p.Optimizer,
		proj:     proj,
		stop:     stop,
		limit:    limit,
		saveBest: p.SaveBest,
		scale:    scale,
		logger:   log,
	}, nil
}

// Solver runs an optimizer against a cost function until a terminal task.
// A Solver must not be used by several goroutines at once.
type Solver struct {
	cost     DifferentiableCostFunction
	opt      *optim.Optimizer
	proj     bound.ConvexSetProjector
	stop     Termination
	limit    time.Duration
	saveBest bool
	scale    float64
	logger   Logger
}

// Result contains the final result of a solve.
type Result struct {
	OK       bool           // Whether the solve converged.
	F        float64        // Final function value.
	X, G     *vector.Vector // Final solution and gradient.
	Best     *vector.Vector // Best point seen, nil without SaveBest.
	BestF    float64        // Function value at Best.
	Summary                 // Solve summary.
}

// Summary describes how a solve ended.
type Summary struct {
	Task       optim.Task   // Final task.
	Reason     optim.Reason // Why the solve ended.
	NumIter    int          // Number of iterations performed.
	NumEval    int          // Number of function evaluations performed.
	NumRestart int          // Number of times the optimizer dropped its memory.
	Elapsed    time.Duration
}

// run holds the state of one solve.
type run struct {
	*Solver
	x, g, tmp    *vector.Vector
	f            float64
	best, bestG  *vector.Vector
	bestF        float64
	evals, iters int
	start        time.Time
}

// Solve minimizes the cost starting from x0, which is not modified.
func (s *Solver) Solve(x0 *vector.Vector) (*Result, error) {
	sp := s.opt.Space()
	if err := sp.Check(x0); err != nil {
		return nil, err
	}
	r := &run{
		Solver: s,
		x:      x0.Clone(),
		g:      sp.Create(),
		bestF:  math.Inf(1),
		start:  time.Now(),
	}
	if s.proj != nil {
		r.tmp = sp.Create()
		if err := r.project(); err != nil {
			return nil, err
		}
	}
	if s.saveBest {
		r.best, r.bestG = sp.Create(), sp.Create()
	}

	r.printInit()
	task, reason := r.loop()
	r.printExit(task, reason)

	res := &Result{
		OK: task == optim.FinalX,
		F:  r.f, X: r.x, G: r.g,
		Summary: Summary{
			Task:       task,
			Reason:     reason,
			NumIter:    r.iters,
			NumEval:    r.evals,
			NumRestart: s.opt.Restarts(),
			Elapsed:    time.Since(r.start),
		},
	}
	if s.saveBest && r.evals > 0 {
		res.Best, res.BestF = r.best, r.bestF
		if !res.OK && r.bestF < r.f {
			res.X, res.F = r.best.Clone(), r.bestF
			res.G = r.bestG.Clone()
		}
	}
	return res, nil
}

func (r *run) loop() (optim.Task, optim.Reason) {
	task := r.opt.Start()
	for {
		switch task {
		case optim.ComputeFG, optim.ComputeF:
			if r.evals >= r.stop.MaxEvaluations {
				return optim.Warning, optim.TooManyEvaluations
			}
			if time.Since(r.start) >= r.limit {
				return optim.Warning, optim.TimeLimitExceeded
			}
			if !r.evaluate(task == optim.ComputeFG) {
				return optim.Error, optim.CallbackPanicked
			}
		case optim.ProjectV:
			if r.proj == nil {
				return optim.Error, optim.ProjectionFailed
			}
			if err := r.project(); err != nil {
				r.logger.Msg.Error("projection failed", zap.Error(err))
				return optim.Error, optim.ProjectionFailed
			}
		case optim.NewX:
			r.iters = r.opt.Iterations()
			r.printIter()
			if r.iters >= r.stop.MaxIterations {
				return optim.Warning, optim.TooManyIterations
			}
		default:
			r.iters = r.opt.Iterations()
			if task == optim.FinalX {
				r.printIter()
			}
			return task, r.opt.Reason()
		}
		task = r.opt.Iterate(r.x, r.f, r.g)
	}
}

// evaluate computes the cost at x and reports false when the cost function panicked.
func (r *run) evaluate(wantGradient bool) (ok bool) {
	defer func() {
		if e := recover(); e != nil {
			r.logger.Msg.Error("cost function panicked", zap.Any("panic", e), zap.Int("evaluation", r.evals))
			ok = false
		}
	}()
	r.f = r.cost.ComputeCostAndGradient(r.scale, r.x, r.g, wantGradient)
	r.evals++
	if r.saveBest && wantGradient && r.f < r.bestF {
		sp := r.opt.Space()
		sp.Copy(r.best, r.x)
		sp.Copy(r.bestG, r.g)
		r.bestF = r.f
	}
	return true
}

func (r *run) project() error {
	if err := r.proj.ProjectVariables(r.tmp, r.x); err != nil {
		return err
	}
	r.opt.Space().Copy(r.x, r.tmp)
	return nil
}
