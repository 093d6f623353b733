// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optimpack/bound"
	"github.com/curioloop/optimpack/lbfgs"
	"github.com/curioloop/optimpack/linesearch"
	"github.com/curioloop/optimpack/vector"
)

// quadratic is f(x) = ½(x-c)ᵀA(x-c) with A tridiagonal(-1,4,-1).
type quadratic struct {
	a *mat.SymDense
	c []float64
}

func newQuadratic(n int) quadratic {
	a := mat.NewSymDense(n, nil)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		a.SetSym(i, i, 4)
		if i+1 < n {
			a.SetSym(i, i+1, -1)
		}
		c[i] = 2 * math.Sin(float64(i+1))
	}
	return quadratic{a: a, c: c}
}

func (q quadratic) fg(x, g *vector.Vector) float64 {
	n := len(q.c)
	d := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		d.SetVec(i, x.At(i)-q.c[i])
	}
	gv := mat.NewVecDense(n, g.Data())
	gv.MulVec(q.a, d)
	return 0.5 * mat.Dot(d, gv)
}

type trace struct {
	task  Task
	f     float64
	evals int
	xs    [][]float64
}

// drive runs the reverse communication loop until a terminal task.
func drive(t *testing.T, o *Optimizer, x *vector.Vector, fg func(x, g *vector.Vector) float64, maxEval int) trace {
	t.Helper()
	g := o.Space().Create()
	var tr trace
	task := o.Start()
	for tr.evals < maxEval {
		switch task {
		case ComputeFG:
			tr.f = fg(x, g)
			tr.evals++
			tr.xs = append(tr.xs, append([]float64(nil), x.Data()...))
		case NewX:
		default:
			tr.task = task
			return tr
		}
		task = o.Iterate(x, tr.f, g)
	}
	t.Fatalf("no termination after %d evaluations (task %v)", maxEval, task)
	return tr
}

func TestLBFGSQuadratic(t *testing.T) {
	const n = 10
	q := newQuadratic(n)
	sp, err := vector.NewSpace(n)
	require.NoError(t, err)

	for _, m := range []int{1, 3, 5, 12} {
		o, err := NewLBFGS(sp, WithMemory(m), WithTolerances(1e-10, 0))
		require.NoError(t, err)
		x := sp.Create()
		tr := drive(t, o, x, q.fg, 500)
		require.Equal(t, FinalX, tr.task, "m=%d: %s", m, o.Message())
		assert.Equal(t, Converged, o.Reason())
		assert.InDeltaSlice(t, q.c, x.Data(), 1e-9, "m=%d", m)
		assert.LessOrEqual(t, o.GradientNorm(), 1e-10)
		assert.Equal(t, tr.evals, o.Evaluations())
		assert.Greater(t, o.Iterations(), 0)
		assert.NotNil(t, o.Operator())
	}
}

func TestLBFGSLineSearches(t *testing.T) {
	const n = 6
	q := newQuadratic(n)
	sp, _ := vector.NewSpace(n)
	for name, ls := range map[string]linesearch.LineSearch{
		"armijo":       linesearch.DefaultArmijo(),
		"nonmonotone":  linesearch.DefaultNonmonotone(),
		"more-thuente": linesearch.DefaultMoreThuente(),
	} {
		o, err := NewLBFGS(sp, WithLineSearch(ls), WithTolerances(1e-8, 0))
		require.NoError(t, err)
		x := sp.Create()
		tr := drive(t, o, x, q.fg, 1000)
		require.Equal(t, FinalX, tr.task, "%s: %s", name, o.Message())
		assert.InDeltaSlice(t, q.c, x.Data(), 1e-7, name)
	}
}

func TestAlreadyConverged(t *testing.T) {
	q := newQuadratic(4)
	sp, _ := vector.NewSpace(4)
	o, err := NewLBFGS(sp)
	require.NoError(t, err)
	x, _ := sp.Wrap(append([]float64(nil), q.c...))
	tr := drive(t, o, x, q.fg, 10)
	assert.Equal(t, FinalX, tr.task)
	assert.Equal(t, 1, tr.evals)
	assert.Equal(t, 0, o.Iterations())
}

func boundedFactories() map[string]func(*vector.Space, bound.ConvexSetProjector, ...Option) (*Optimizer, error) {
	return map[string]func(*vector.Space, bound.ConvexSetProjector, ...Option) (*Optimizer, error){
		"VMLMB":  NewVMLMB,
		"BLMVM":  NewBLMVM,
		"LBFGSB": NewLBFGSB,
	}
}

func TestBoundedFeasibility(t *testing.T) {
	const n = 10
	q := newQuadratic(n)
	sp, _ := vector.NewSpace(n)
	box, err := bound.NewBounds(sp, 0, 1)
	require.NoError(t, err)

	for name, factory := range boundedFactories() {
		o, err := factory(sp, box, WithTolerances(1e-6, 0))
		require.NoError(t, err, name)
		x := sp.Create()
		x.Fill(0.5)
		tr := drive(t, o, x, q.fg, 2000)
		require.Equal(t, FinalX, tr.task, "%s: %s", name, o.Message())

		for _, xi := range tr.xs {
			for i, v := range xi {
				require.True(t, v >= 0 && v <= 1, "%s: x[%d]=%g is infeasible", name, i, v)
			}
		}

		g, pg := sp.Create(), sp.Create()
		q.fg(x, g)
		require.NoError(t, bound.ProjectGradient(box, pg, x, g))
		assert.LessOrEqual(t, sp.Norm2(pg), 1e-6, name)

		// c has components outside [0,1] so some bounds must be active.
		active, feasible, err := box.Activity(x)
		require.NoError(t, err)
		assert.True(t, feasible)
		assert.Greater(t, active, 0, name)
	}
}

func TestBoundedSearchGoesDownhill(t *testing.T) {
	// Every line search starts along a descent direction of f itself, not
	// only of the projected gradient, even with many active bounds.
	const n = 10
	q := newQuadratic(n)
	sp, _ := vector.NewSpace(n)
	for _, lim := range [][2]float64{{0, 1}, {-0.5, 0.5}, {0.2, 0.3}} {
		box, err := bound.NewBounds(sp, lim[0], lim[1])
		require.NoError(t, err)
		for name, factory := range boundedFactories() {
			o, err := factory(sp, box, WithTolerances(1e-6, 0))
			require.NoError(t, err, name)
			x, g := sp.Create(), sp.Create()
			x.Fill(0.5 * (lim[0] + lim[1]))

			var f float64
			task := o.Start()
			for evals := 0; task == ComputeFG || task == NewX; {
				require.Less(t, evals, 2000, name)
				if task == ComputeFG {
					f = q.fg(x, g)
					evals++
					task = o.Iterate(x, f, g)
					continue
				}
				gx := g.Clone()
				task = o.Iterate(x, f, g)
				if task == ComputeFG {
					assert.Less(t, o.slope, 0.0, "%s %v", name, lim)
					assert.InDelta(t, -sp.Dot(o.p, gx), o.slope, 1e-12, "%s %v", name, lim)
				}
			}
			assert.Equal(t, FinalX, task, "%s %v: %s", name, lim, o.Message())
			assert.Equal(t, Converged, o.Reason(), "%s %v", name, lim)
		}
	}
}

func TestBoundedProjectsInitialPoint(t *testing.T) {
	sp, _ := vector.NewSpace(3)
	box, _ := bound.NewBounds(sp, -1, 1)
	o, err := NewVMLMB(sp, box)
	require.NoError(t, err)

	x, _ := sp.Wrap([]float64{-3, 0.5, 7})
	g := sp.Create()
	require.Equal(t, ComputeFG, o.Start())
	require.Equal(t, ComputeFG, o.Iterate(x, 0, g))
	assert.Equal(t, []float64{-1, 0.5, 1}, x.Data())
	assert.Equal(t, 1, o.Evaluations())
}

func TestBoundedSameAsUnconstrained(t *testing.T) {
	// Loose bounds never become active.
	const n = 5
	q := newQuadratic(n)
	sp, _ := vector.NewSpace(n)
	box, _ := bound.NewBounds(sp, -100, 100)
	for name, factory := range boundedFactories() {
		o, err := factory(sp, box, WithTolerances(1e-8, 0))
		require.NoError(t, err)
		x := sp.Create()
		tr := drive(t, o, x, q.fg, 1000)
		require.Equal(t, FinalX, tr.task, "%s: %s", name, o.Message())
		assert.InDeltaSlice(t, q.c, x.Data(), 1e-7, name)
	}
}

func TestBadPreconditioner(t *testing.T) {
	const n = 3
	q := newQuadratic(n)
	sp, _ := vector.NewSpace(n)
	h0, err := lbfgs.NewDenseOperator(sp, mat.NewDiagDense(n, []float64{-1, -1, -1}))
	require.NoError(t, err)
	o, err := NewLBFGS(sp, WithPreconditioner(h0))
	require.NoError(t, err)
	assert.Equal(t, lbfgs.NoScaling, o.Operator().Scaling())

	x := sp.Create()
	tr := drive(t, o, x, q.fg, 10)
	assert.Equal(t, Error, tr.task)
	assert.Equal(t, BadPreconditioner, o.Reason())
	assert.Equal(t, 1, tr.evals)
}

func TestIncorrectSpace(t *testing.T) {
	sp, _ := vector.NewSpace(3)
	other, _ := vector.NewSpace(3)
	o, err := NewLBFGS(sp)
	require.NoError(t, err)
	o.Start()
	assert.Equal(t, Error, o.Iterate(other.Create(), 0, sp.Create()))
	assert.Equal(t, IncorrectSpace, o.Reason())
}

func TestNotStarted(t *testing.T) {
	sp, _ := vector.NewSpace(2)
	o, err := NewLBFGS(sp)
	require.NoError(t, err)
	assert.Equal(t, Error, o.Task())
	assert.Equal(t, NotStarted, o.Reason())
	assert.Equal(t, Error, o.Iterate(sp.Create(), 0, sp.Create()))
}

func TestRestart(t *testing.T) {
	const n = 4
	q := newQuadratic(n)
	sp, _ := vector.NewSpace(n)
	o, err := NewLBFGS(sp, WithTolerances(1e-12, 0))
	require.NoError(t, err)

	x, g := sp.Create(), sp.Create()
	var f float64
	task := o.Start()
	for o.Iterations() < 2 {
		require.Contains(t, []Task{ComputeFG, NewX}, task)
		if task == ComputeFG {
			f = q.fg(x, g)
		}
		task = o.Iterate(x, f, g)
	}
	require.Greater(t, o.Operator().Pairs(), 0)
	evals := o.Evaluations()

	assert.Equal(t, ComputeFG, o.Restart())
	assert.Equal(t, 1, o.Restarts())
	assert.Equal(t, 0, o.Operator().Pairs())
	assert.Equal(t, evals, o.Evaluations())
}

func TestOptions(t *testing.T) {
	sp, _ := vector.NewSpace(2)
	_, err := NewLBFGS(sp, WithTolerances(-1, 2))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewLBFGS(sp, WithDelta(0), WithEpsilon(1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewLBFGS(sp, WithLineSearch(nil))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewLBFGS(sp, WithMemory(0))
	assert.ErrorIs(t, err, lbfgs.ErrInvalidArgument)
	_, err = NewLBFGS(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewVMLMB(sp, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	other, _ := vector.NewSpace(2)
	box, _ := bound.NewBounds(other, 0, 1)
	_, err = NewBLMVM(sp, box)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	o, err := NewLBFGS(sp)
	require.NoError(t, err)
	assert.ErrorIs(t, o.SetAbsoluteTolerance(-1), ErrInvalidArgument)
	assert.ErrorIs(t, o.SetRelativeTolerance(1), ErrInvalidArgument)
	assert.ErrorIs(t, o.SetEpsilon(-0.1), ErrInvalidArgument)
	assert.ErrorIs(t, o.SetDelta(0), ErrInvalidArgument)
	assert.ErrorIs(t, o.SetLineSearch(nil), ErrInvalidArgument)
	require.NoError(t, o.SetAbsoluteTolerance(1e-3))
	require.NoError(t, o.SetRelativeTolerance(0))
	assert.Equal(t, 1e-3, o.Threshold())
}

func TestTaskStrings(t *testing.T) {
	assert.Equal(t, "COMPUTE_FG", ComputeFG.String())
	assert.Equal(t, "FINAL_X", FinalX.String())
	assert.Equal(t, "PROJECT_V", ProjectV.String())
	assert.Equal(t, "Task(42)", Task(42).String())
	assert.Equal(t, "preconditioner is not positive definite", BadPreconditioner.String())
	assert.Equal(t, "Reason(-1)", Reason(-1).String())
	for r := NoReason; r <= NotStarted; r++ {
		assert.NotEmpty(t, Message(r))
	}
}

func TestFromSearch(t *testing.T) {
	for st, want := range map[linesearch.Status]struct {
		task   Task
		reason Reason
	}{
		linesearch.ErrorStepChanged:             {Error, StepChanged},
		linesearch.ErrorStepGtStepMax:           {Error, InvalidStepBounds},
		linesearch.ErrorInitialDerivativeGeZero: {Error, NotADescent},
		linesearch.WarningStepEqStepMin:         {Warning, StepEqStepMin},
		linesearch.WarningXTolTestSatisfied:     {Warning, XTolTestSatisfied},
	} {
		task, reason := fromSearch(st)
		assert.Equal(t, want.task, task, st.String())
		assert.Equal(t, want.reason, reason, st.String())
	}
}
