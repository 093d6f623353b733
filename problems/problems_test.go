// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package problems

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/optimpack/numdiff"
)

func TestGradients(t *testing.T) {
	for _, p := range MoreGarbowHillstrom() {
		n := p.Dimension()
		x := p.Start()
		// Away from the starting point too, where symmetric patterns may hide errors.
		y := p.Start()
		for i := range y {
			y[i] += 0.1 * float64(i+1) / float64(n)
		}
		for _, pt := range [][]float64{x, y} {
			g := make([]float64, n)
			f := p.FG(pt, g)
			require.False(t, math.IsNaN(f), p.Name)

			d := numdiff.Gradient{Func: p.Func, Method: numdiff.Central}
			approx := make([]float64, n)
			fd, err := d.Estimate(pt, approx)
			require.NoError(t, err, p.Name)
			assert.Equal(t, f, fd, p.Name)

			scale := math.Max(1, floats.Norm(g, math.Inf(1)))
			for i := range g {
				assert.InDelta(t, g[i]/scale, approx[i]/scale, 1e-4, "%s: component %d", p.Name, i)
			}
		}
	}
}

func TestStartIsCopy(t *testing.T) {
	p := ExtendedRosenbrock(4)
	x := p.Start()
	assert.Equal(t, []float64{-1.2, 1, -1.2, 1}, x)
	x[0] = 7
	assert.Equal(t, -1.2, p.Start()[0])
	assert.Equal(t, 4, p.Dimension())
}

func TestSolved(t *testing.T) {
	p := Trigonometric(10)
	assert.True(t, p.Solved(1e-9, 1e-8))
	assert.True(t, p.Solved(2.79506e-5, 1e-8))
	assert.False(t, p.Solved(1e-3, 1e-8))

	b, ok := Lookup("BrownAndDennis")
	require.True(t, ok)
	assert.True(t, b.Solved(85822.2, 1e-6))
	assert.False(t, b.Solved(85900, 1e-6))
	_, ok = Lookup("Nope")
	assert.False(t, ok)
}

func TestMinimaAtKnownSolutions(t *testing.T) {
	for name, x := range map[string][]float64{
		"ExtendedRosenbrock/2": {1, 1},
		"Beale":                {3, 0.5},
		"Wood":                 {1, 1, 1, 1},
		"HelicalValley":        {1, 0, 0},
		"Box3D":                {1, 10, 1},
		"BrownBadlyScaled":     {1e6, 2e-6},
	} {
		p, ok := Lookup(name)
		require.True(t, ok, name)
		g := make([]float64, len(x))
		assert.InDelta(t, 0, p.FG(x, g), 1e-12, name)
		assert.True(t, p.Solved(p.Func(x), 1e-12), name)
	}
}

func TestInvalidDimensions(t *testing.T) {
	assert.Panics(t, func() { ExtendedRosenbrock(3) })
	assert.Panics(t, func() { ExtendedPowellSingular(6) })
	assert.Panics(t, func() { PenaltyI(5) })
}
