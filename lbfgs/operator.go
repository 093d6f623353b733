// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lbfgs implements the limited memory BFGS approximation of the
// inverse Hessian applied by Strang's two-loop recursion.
package lbfgs

import (
	"errors"
	"fmt"

	"github.com/curioloop/optimpack/vector"
)

var (
	// ErrInvalidArgument reports an invalid operator setting.
	ErrInvalidArgument = errors.New("lbfgs: invalid argument")
	// ErrPreconditioner reports a failure of the initial approximation H₀.
	ErrPreconditioner = errors.New("lbfgs: preconditioner failed")
)

// Scaling selects how the scalar γ applied on top of H₀ is estimated.
type Scaling int

const (
	// NoScaling keeps γ = 1 and requires a preconditioner.
	NoScaling Scaling = iota
	// ScaleByStsOverSty sets γ = ⟨s,s⟩/⟨s,y⟩ for the newest pair.
	ScaleByStsOverSty
	// ScaleByStyOverYty sets γ = ⟨s,y⟩/⟨y,y⟩ for the newest pair.
	ScaleByStyOverYty
	// ScaleByInitialStsOverSty applies ScaleByStsOverSty to the first accepted pair only.
	ScaleByInitialStsOverSty
	// ScaleByInitialStyOverYty applies ScaleByStyOverYty to the first accepted pair only.
	ScaleByInitialStyOverYty
	// ScaleByUser leaves γ to SetGamma.
	ScaleByUser
)

func (s Scaling) String() string {
	switch s {
	case NoScaling:
		return "none"
	case ScaleByStsOverSty:
		return "sts/sty"
	case ScaleByStyOverYty:
		return "sty/yty"
	case ScaleByInitialStsOverSty:
		return "initial sts/sty"
	case ScaleByInitialStyOverYty:
		return "initial sty/yty"
	case ScaleByUser:
		return "user"
	}
	return fmt.Sprintf("Scaling(%d)", int(s))
}

// LinearOperator computes dst = A⋅src. Implementations used as H₀ must be
// symmetric positive definite and must accept dst and src being distinct.
type LinearOperator interface {
	Apply(dst, src *vector.Vector) error
}

// Option configures an Operator.
type Option func(*Operator)

// WithScaling selects the γ estimation rule.
func WithScaling(rule Scaling) Option {
	return func(op *Operator) { op.scaling = rule }
}

// WithPreconditioner sets the initial inverse Hessian approximation H₀.
func WithPreconditioner(h0 LinearOperator) Option {
	return func(op *Operator) { op.h0 = h0 }
}

// Operator stores up to m correction pairs
//
//	sₖ = xₖ₊₁ - xₖ
//	yₖ = gₖ₊₁ - gₖ
//
// in a ring buffer of m+1 slots. The pair of logical offset k (1 is the
// newest) lives in slot (mark-k) mod (m+1); offset 0 is the spare slot
// written by the next Update, so it never holds a pair of the recursion.
// A pair rejected for non-positive curvature keeps ρ = 0 in the spare slot.
type Operator struct {
	space   *vector.Space
	m, mp   int
	mark    int
	s, y    []*vector.Vector
	rho     []float64
	beta    []float64
	gamma   float64
	scaling Scaling
	scaled  bool
	h0      LinearOperator
	tmp     *vector.Vector
}

// New returns an operator of the given space storing at most m pairs.
func New(space *vector.Space, m int, opts ...Option) (*Operator, error) {
	if space == nil {
		return nil, fmt.Errorf("%w: nil space", ErrInvalidArgument)
	}
	if m < 1 {
		return nil, fmt.Errorf("%w: memory %d < 1", ErrInvalidArgument, m)
	}
	op := &Operator{
		space:   space,
		m:       m,
		s:       make([]*vector.Vector, m+1),
		y:       make([]*vector.Vector, m+1),
		rho:     make([]float64, m+1),
		beta:    make([]float64, m+1),
		gamma:   1,
		scaling: ScaleByStyOverYty,
	}
	for _, opt := range opts {
		opt(op)
	}
	if op.scaling < NoScaling || op.scaling > ScaleByUser {
		return nil, fmt.Errorf("%w: unknown scaling %d", ErrInvalidArgument, int(op.scaling))
	}
	if op.scaling == NoScaling && op.h0 == nil {
		return nil, fmt.Errorf("%w: scaling %v requires a preconditioner", ErrInvalidArgument, op.scaling)
	}
	for i := range op.s {
		op.s[i] = space.Create()
		op.y[i] = space.Create()
	}
	if op.h0 != nil {
		op.tmp = space.Create()
	}
	return op, nil
}

func (op *Operator) Space() *vector.Space { return op.space }

// Memory returns the capacity m.
func (op *Operator) Memory() int { return op.m }

// Pairs returns the number mp of valid pairs.
func (op *Operator) Pairs() int { return op.mp }

// Updates returns the number of accepted pairs since construction.
func (op *Operator) Updates() int { return op.mark }

// Scaling returns the γ estimation rule.
func (op *Operator) Scaling() Scaling { return op.scaling }

// Preconditioner returns H₀ or nil.
func (op *Operator) Preconditioner() LinearOperator { return op.h0 }

// Gamma returns the current scaling γ.
func (op *Operator) Gamma() float64 { return op.gamma }

// SetGamma sets γ for the ScaleByUser rule.
func (op *Operator) SetGamma(gamma float64) error {
	if !(gamma > 0) {
		return fmt.Errorf("%w: gamma = %g <= 0", ErrInvalidArgument, gamma)
	}
	op.gamma = gamma
	return nil
}

// Reset forgets every pair. Buffers and the slot position are kept.
func (op *Operator) Reset() {
	op.mp = 0
	op.scaled = false
	if op.scaling != ScaleByUser {
		op.gamma = 1
	}
}

func (op *Operator) slot(k int) int {
	if k < 0 || k > op.mp {
		panic(fmt.Sprintf("lbfgs: pair offset %d out of range [0,%d]", k, op.mp))
	}
	n := len(op.s)
	return ((op.mark-k)%n + n) % n
}

// S returns the step difference of offset k in [0,mp].
// S(0) is the slot overwritten by the next Update.
func (op *Operator) S(k int) *vector.Vector { return op.s[op.slot(k)] }

// Y returns the gradient difference of offset k in [0,mp].
func (op *Operator) Y(k int) *vector.Vector { return op.y[op.slot(k)] }

// Borrow returns S(0) and Y(0) as scratch storage for the previous point and
// gradient of an optimizer. The storage stays valid until the next Update,
// which may be called with the borrowed vectors as x0 and g0.
func (op *Operator) Borrow() (x0, g0 *vector.Vector) {
	return op.S(0), op.Y(0)
}

// Update stores the pair (x1-x0, g1-g0) and reports whether it was accepted.
// x0 and g0 may be the vectors returned by Borrow.
func (op *Operator) Update(x1, x0, g1, g0 *vector.Vector) (bool, error) {
	sp := op.space
	if err := sp.Check(x1, x0, g1, g0); err != nil {
		return false, err
	}
	j := op.slot(0)
	s, y := op.s[j], op.y[j]
	sp.Combine(s, 1, x1, -1, x0)
	sp.Combine(y, 1, g1, -1, g0)

	sty := sp.Dot(s, y)
	if !(sty > 0) {
		op.rho[j] = 0
		return false, nil
	}
	op.rho[j] = 1 / sty

	switch op.scaling {
	case ScaleByStsOverSty:
		op.gamma = sp.Dot(s, s) / sty
	case ScaleByStyOverYty:
		op.gamma = sty / sp.Dot(y, y)
	case ScaleByInitialStsOverSty:
		if !op.scaled {
			op.gamma = sp.Dot(s, s) / sty
		}
	case ScaleByInitialStyOverYty:
		if !op.scaled {
			op.gamma = sty / sp.Dot(y, y)
		}
	}
	op.scaled = true
	op.mark++
	if op.mp < op.m {
		op.mp++
	}
	return true, nil
}

// Apply computes dst = H⋅v. dst and v may be the same vector.
func (op *Operator) Apply(dst, v *vector.Vector) error {
	sp := op.space
	if err := sp.Check(dst, v); err != nil {
		return err
	}
	sp.Copy(dst, v)

	// Newest to oldest.
	for k := 1; k <= op.mp; k++ {
		j := op.slot(k)
		if op.rho[j] == 0 {
			continue
		}
		op.beta[j] = op.rho[j] * sp.Dot(dst, op.s[j])
		sp.Axpy(dst, -op.beta[j], op.y[j])
	}

	if op.h0 != nil {
		if err := op.h0.Apply(op.tmp, dst); err != nil {
			return fmt.Errorf("%w: %w", ErrPreconditioner, err)
		}
		sp.Copy(dst, op.tmp)
	}
	if op.gamma != 1 {
		sp.Scale(dst, op.gamma, dst)
	}

	// Oldest to newest.
	for k := op.mp; k >= 1; k-- {
		j := op.slot(k)
		if op.rho[j] == 0 {
			continue
		}
		sp.Axpy(dst, op.beta[j]-op.rho[j]*sp.Dot(dst, op.y[j]), op.s[j])
	}
	return nil
}
