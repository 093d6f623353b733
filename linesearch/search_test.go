// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic is φ(λ) = f0 + λ⋅g0 + ½⋅λ²⋅h.
type quadratic struct{ f0, g0, h float64 }

func (q quadratic) phi(s float64) float64 { return q.f0 + s*q.g0 + 0.5*s*s*q.h }
func (q quadratic) der(s float64) float64 { return q.g0 + s*q.h }

// run drives ls on φ until a terminal status and returns the number of evaluations.
func run(t *testing.T, ls LineSearch, phi, der func(float64) float64, step, stepMin, stepMax float64) (Status, int) {
	t.Helper()
	st := ls.Start(phi(0), der(0), step, stepMin, stepMax)
	n := 0
	for st == Searching {
		require.Less(t, n, 100, "line search does not terminate")
		s := ls.Step()
		st = ls.Iterate(s, phi(s), der(s))
		n++
	}
	return st, n
}

func allSearches() map[string]LineSearch {
	return map[string]LineSearch{
		"armijo":      DefaultArmijo(),
		"nonmonotone": DefaultNonmonotone(),
		"morethuente": DefaultMoreThuente(),
	}
}

func TestStartPreconditions(t *testing.T) {
	cases := []struct {
		g0, step, stepMin, stepMax float64
		want                       Status
	}{
		{g0: -1, step: 1, stepMin: -1, stepMax: 2, want: ErrorStepMinLtZero},
		{g0: -1, step: 1, stepMin: 3, stepMax: 2, want: ErrorStepMinGtStepMax},
		{g0: -1, step: 0.5, stepMin: 1, stepMax: 2, want: ErrorStepLtStepMin},
		{g0: -1, step: 3, stepMin: 0, stepMax: 2, want: ErrorStepGtStepMax},
		{g0: 0, step: 1, stepMin: 0, stepMax: 2, want: ErrorInitialDerivativeGeZero},
		{g0: 2, step: 1, stepMin: 0, stepMax: 2, want: ErrorInitialDerivativeGeZero},
		{g0: math.NaN(), step: 1, stepMin: 0, stepMax: 2, want: ErrorInitialDerivativeGeZero},
	}
	for name, ls := range allSearches() {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, Searching, ls.Start(0, -1, 0.25, 0, 10))
			for _, c := range cases {
				st := ls.Start(0, c.g0, c.step, c.stepMin, c.stepMax)
				assert.Equal(t, c.want, st)
				assert.True(t, st.IsError())
				assert.Equal(t, 0.25, ls.Step(), "failed start must not touch the step")
			}
		})
	}
}

func TestIterateProtocol(t *testing.T) {
	for name, ls := range allSearches() {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, ErrorNotStarted, ls.Iterate(1, 0, 0))
			require.Equal(t, Searching, ls.Start(0, -1, 1, 0, 10))
			assert.Equal(t, ErrorStepChanged, ls.Iterate(0.5, 0, 0))
		})
	}
}

func TestArmijoQuadratic(t *testing.T) {
	q := quadratic{f0: 1, g0: -2, h: 0.5}
	ls := DefaultArmijo()
	st, n := run(t, ls, q.phi, q.der, 64, 0, 1e10)
	require.Equal(t, Convergence, st)
	assert.LessOrEqual(t, n, 20)
	s := ls.Step()
	assert.LessOrEqual(t, q.phi(s), q.f0+s*ls.Sigma()*q.g0)
}

func TestArmijoReturnsToBestStep(t *testing.T) {
	// φ has a narrow dip at λ=4 that is not deep enough for the Armijo test,
	// the shorter step λ=2 is worse and must send the search back to λ=4.
	phi := func(s float64) float64 {
		switch s {
		case 8:
			return 10
		case 4:
			return -0.1
		default:
			return 5
		}
	}
	ls := DefaultArmijo()
	require.Equal(t, Searching, ls.Start(0, -1, 8, 0, 100))
	require.Equal(t, Searching, ls.Iterate(8, phi(8), 0))
	require.Equal(t, 4.0, ls.Step())
	require.Equal(t, Searching, ls.Iterate(4, phi(4), 0))
	require.Equal(t, 2.0, ls.Step())
	require.Equal(t, Searching, ls.Iterate(2, phi(2), 0))
	require.Equal(t, 4.0, ls.Step(), "back to the best step")
	assert.Equal(t, Convergence, ls.Iterate(4, phi(4), 0), "accepted without a second test")

	// The bypass does not leak into the next search.
	require.Equal(t, Searching, ls.Start(0, -1, 8, 0, 100))
	assert.Equal(t, Searching, ls.Iterate(8, phi(8), 0))
}

func TestArmijoStepMin(t *testing.T) {
	// φ never decreases.
	phi := func(s float64) float64 { return s }
	der := func(float64) float64 { return -1 }
	ls := DefaultArmijo()
	st, _ := run(t, ls, phi, der, 1, 0.1, 10)
	assert.Equal(t, WarningStepEqStepMin, st)
	assert.Equal(t, 0.1, ls.Step())
}

func TestNonmonotoneReference(t *testing.T) {
	ls, err := NewNonmonotone(3, 1e-4, 0.1, 0.9)
	require.NoError(t, err)
	for i, f0 := range []float64{5, 3, 4, 1, 2} {
		require.Equal(t, Searching, ls.Start(f0, -1, 1, 0, 10))
		want := []float64{5, 5, 5, 4, 4}[i]
		assert.Equal(t, want, ls.Reference(), "start %d", i)
	}
	// A value above f0 but below the reference is accepted.
	assert.Equal(t, Convergence, ls.Iterate(1, 3.5, 0))
}

func TestNonmonotoneQuadratic(t *testing.T) {
	q := quadratic{f0: 0, g0: -1, h: 1}
	ls := DefaultNonmonotone()
	st, _ := run(t, ls, q.phi, q.der, 100, 0, 1e10)
	require.Equal(t, Convergence, st)
	s := ls.Step()
	assert.LessOrEqual(t, q.phi(s), q.f0+s*DefaultNonmonotoneFtol*q.g0)
}

func TestNonmonotoneStepMin(t *testing.T) {
	phi := func(s float64) float64 { return 1 + s }
	der := func(float64) float64 { return -1 }
	ls := DefaultNonmonotone()
	st, _ := run(t, ls, phi, der, 1, 0.01, 10)
	assert.Equal(t, WarningStepEqStepMin, st)
}

func TestNonmonotoneBisection(t *testing.T) {
	ls := DefaultNonmonotone()
	require.Equal(t, Searching, ls.Start(1, -1, 1, 0.5, 10))
	// q = 1 and r = 20 reject the quadratic step: bisect towards stepMin.
	assert.Equal(t, Searching, ls.Iterate(1, 10, 0))
	assert.Equal(t, 0.75, ls.Step())
	assert.Equal(t, Searching, ls.Iterate(0.75, 10, 0))
	assert.Equal(t, 0.625, ls.Step())
}

func TestMoreThuenteQuadratic(t *testing.T) {
	ls, err := NewMoreThuente(1e-4, 0.1, 1e-10)
	require.NoError(t, err)
	for _, step := range []float64{1e-3, 1, 3, 50} {
		q := quadratic{f0: 3, g0: -4, h: 2}
		st, _ := run(t, ls, q.phi, q.der, step, 0, 1e10)
		require.Equal(t, Convergence, st, "initial step %g", step)
		s := ls.Step()
		assert.LessOrEqual(t, q.phi(s), q.f0+s*1e-4*q.g0)
		assert.LessOrEqual(t, math.Abs(q.der(s)), 0.1*math.Abs(q.g0))
	}
}

func TestInvalidParameters(t *testing.T) {
	_, err := NewArmijo(0, 0.5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewArmijo(0.1, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewNonmonotone(0, 1e-4, 0.1, 0.9)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewNonmonotone(5, 1e-4, 0.9, 0.1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewMoreThuente(1e-3, 0.9, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewMoreThuente(1.5, 0.9, 0.1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	a := DefaultArmijo()
	assert.ErrorIs(t, a.SetGain(0), ErrInvalidArgument)
	assert.Equal(t, 0.5, a.Gain())
	require.NoError(t, a.SetSigma(0.2))
	assert.Equal(t, 0.2, a.Sigma())
	mt, err := NewMoreThuente(1e-4, 0.1, 1e-10)
	require.NoError(t, err)
	ftol, gtol, xtol := mt.Tolerances()
	assert.Equal(t, []float64{1e-4, 0.1, 1e-10}, []float64{ftol, gtol, xtol})
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "INITIAL G >= ZERO", ErrorInitialDerivativeGeZero.String())
	assert.Equal(t, "ROUNDING ERRORS PREVENT PROGRESS", WarningRoundingErrors.String())
	assert.True(t, WarningStepEqStepMax.IsWarning())
	assert.False(t, WarningStepEqStepMax.IsError())
	assert.True(t, Convergence.Done())
	assert.False(t, Searching.Done())
}
