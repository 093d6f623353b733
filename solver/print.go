// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"time"

	"go.uber.org/zap"

	"github.com/curioloop/optimpack/optim"
	"github.com/curioloop/optimpack/vector"
)

type activity interface {
	Activity(x *vector.Vector) (active int, feasible bool, err error)
}

// printInit logs the problem dimension, the method and, for boxes, the
// number of bounds active at the starting point.
func (r *run) printInit() {
	log := r.logger
	if !log.enable(LogLast) {
		return
	}

	fields := []zap.Field{
		zap.String("method", r.opt.Method()),
		zap.Int("n", r.x.Len()),
	}
	if op := r.opt.Operator(); op != nil {
		fields = append(fields, zap.Int("m", op.Memory()), zap.Stringer("scaling", op.Scaling()))
	}
	if a, ok := r.proj.(activity); ok {
		if active, _, err := a.Activity(r.x); err == nil {
			fields = append(fields, zap.Int("active", active))
		}
	}
	if log.enable(LogVerbose) {
		fields = append(fields, zap.Float64s("x0", r.x.Data()))
	}
	log.Msg.Info("running "+r.opt.Method(), fields...)

	if log.enable(LogEval) {
		log.out("RUNNING THE %s CODE\n\n", r.opt.Method())
		log.out("N = %d\n", r.x.Len())
		log.out("\n   it   nf   nr      stepl      projg          f\n")
	}
}

// printIter logs the iterate accepted by the optimizer.
func (r *run) printIter() {
	log := r.logger
	o := r.opt
	if log.enable(LogTrace) {
		fields := []zap.Field{
			zap.Int("iteration", r.iters),
			zap.Float64("f", r.f),
			zap.Float64("projg", o.GradientNorm()),
			zap.Float64("step", o.Step()),
			zap.Int("evaluations", r.evals),
		}
		if log.enable(LogVerbose) {
			fields = append(fields, zap.Float64s("x", r.x.Data()), zap.Float64s("g", r.g.Data()))
		}
		log.Msg.Debug("iterate", fields...)
	} else if log.enable(LogEval) {
		if r.iters%int(log.Level) == 0 {
			log.Msg.Info("iterate", zap.Int("iteration", r.iters), zap.Float64("f", r.f), zap.Float64("projg", o.GradientNorm()))
		}
	}

	if log.enable(LogEval) {
		log.out("%5d %4d %4d %10.3e %10.3e %10.3e\n",
			r.iters, r.evals, o.Restarts(), o.Step(), o.GradientNorm(), r.f)
	}
}

// printExit logs the final statistics and the reason of the stop.
func (r *run) printExit(task optim.Task, reason optim.Reason) {
	log := r.logger
	if !log.enable(LogLast) {
		return
	}
	o := r.opt

	fields := []zap.Field{
		zap.Stringer("task", task),
		zap.Int("iterations", r.iters),
		zap.Int("evaluations", r.evals),
		zap.Int("restarts", o.Restarts()),
		zap.Float64("projg", o.GradientNorm()),
		zap.Float64("f", r.f),
		zap.Duration("elapsed", time.Since(r.start)),
	}
	if log.enable(LogVerbose) {
		fields = append(fields, zap.Float64s("x", r.x.Data()))
	}
	if task == optim.FinalX {
		log.Msg.Info(optim.Message(reason), fields...)
	} else {
		log.Msg.Warn(optim.Message(reason), fields...)
	}

	if log.enable(LogEval) {
		log.out("\n   N    Tit    Tnf    Tnr      Projg          F\n")
		log.out("%4d %6d %6d %6d %10.3e %10.5e\n",
			r.x.Len(), r.iters, r.evals, o.Restarts(), o.GradientNorm(), r.f)
		log.out("\n%s\n", optim.Message(reason))
	}
}
