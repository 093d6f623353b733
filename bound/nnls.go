// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bound

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const dlamch = 2.220446049250313e-16

// nnls solves the non-negative least squares problem
//
//	𝚖𝚒𝚗 ‖ 𝐄𝐰 - 𝐟 ‖₂ subject to 𝐰 ≥ 0
//
// with the active set method of Lawson and Hanson.
//
// The index set ℙ holds the variables free to take positive values, the
// others are held at zero. The dual vector 𝐝 = 𝐄ᵀ(𝐟 - 𝐄𝐰) tells which
// variable of the zero set may enter ℙ: the solution is optimal once 𝐝ⱼ ≤ 0
// for every j outside ℙ. Each time a variable enters, the unconstrained least
// squares problem on the columns of ℙ is solved; when its solution 𝐳 is not
// positive, 𝐰 moves towards 𝐳 until it meets the boundary and the variables
// reaching zero leave ℙ.
//
// Reference: C.L. Lawson, R.J. Hanson, Solving least squares problems,
// Prentice Hall, 1974. Algorithm 23.10.
func nnls(e *mat.Dense, f *mat.VecDense, maxIter int) (*mat.VecDense, error) {
	m, n := e.Dims()
	if f.Len() != m {
		return nil, fmt.Errorf("%w: right-hand side has %d rows, want %d", ErrInvalidArgument, f.Len(), m)
	}
	if maxIter <= 0 {
		maxIter = 3 * n
	}

	w := mat.NewVecDense(n, nil)
	z := make([]float64, n)
	passive := make([]bool, n)
	skip := make([]bool, n)
	tol := 10 * dlamch * math.Max(1, mat.Norm(e, math.Inf(1)))

	var r, dual mat.VecDense
	for iter := 0; ; {
		r.MulVec(e, w)
		r.SubVec(f, &r)
		dual.MulVec(e.T(), &r)

		enter, best := -1, tol
		for j := 0; j < n; j++ {
			if !passive[j] && !skip[j] && dual.AtVec(j) > best {
				enter, best = j, dual.AtVec(j)
			}
		}
		if enter < 0 {
			return w, nil
		}
		passive[enter] = true

		for first := true; ; first = false {
			if iter++; iter > maxIter {
				return w, fmt.Errorf("%w: NNLS exceeds %d iterations", ErrNoSolution, maxIter)
			}
			if err := leastSquares(e, f, passive, z); err != nil {
				return w, err
			}
			if first && z[enter] <= 0 {
				// Rounding made the entering variable useless, try another one.
				passive[enter], skip[enter] = false, true
				break
			}
			clear(skip)

			alpha := math.Inf(1)
			for j := 0; j < n; j++ {
				if passive[j] && z[j] <= 0 {
					wj := w.AtVec(j)
					alpha = math.Min(alpha, wj/(wj-z[j]))
				}
			}
			if math.IsInf(alpha, 1) {
				for j := 0; j < n; j++ {
					w.SetVec(j, z[j])
				}
				break
			}
			for j := 0; j < n; j++ {
				if !passive[j] {
					continue
				}
				wj := w.AtVec(j) + alpha*(z[j]-w.AtVec(j))
				if wj <= tol {
					passive[j], wj = false, 0
				}
				w.SetVec(j, wj)
			}
		}
	}
}

// leastSquares stores into z the least squares solution of the columns of e
// selected by passive, zero elsewhere.
func leastSquares(e *mat.Dense, f *mat.VecDense, passive []bool, z []float64) error {
	m, n := e.Dims()
	cols := make([]int, 0, n)
	for j, p := range passive {
		if p {
			cols = append(cols, j)
		}
	}
	sub := mat.NewDense(m, len(cols), nil)
	for k, j := range cols {
		for i := 0; i < m; i++ {
			sub.Set(i, k, e.At(i, j))
		}
	}
	var sol mat.VecDense
	if err := sol.SolveVec(sub, f); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return fmt.Errorf("%w: %w", ErrNoSolution, err)
		}
	}
	clear(z)
	for k, j := range cols {
		z[j] = sol.AtVec(k)
	}
	return nil
}

// ldp solves the least distance problem
//
//	𝚖𝚒𝚗 ‖ 𝐮 ‖₂ subject to 𝐆𝐮 ≥ 𝐡
//
// through the NNLS problem with 𝐄 = [𝐆 : 𝐡]ᵀ and 𝐟 = [0 ··· 0 : 1]ᵀ.
// With 𝐫 = 𝐄𝐰 - 𝐟 the NNLS residual, the solution is 𝐮 = [𝐫₁ ··· 𝐫ₙ]ᵀ/(-𝐫ₙ₊₁)
// and the constraints are inconsistent when ‖ 𝐫 ‖₂ = 0.
//
// Reference: Lawson and Hanson, Algorithm 23.27.
func ldp(g *mat.Dense, h []float64, u []float64) error {
	k, n := g.Dims()
	e := mat.NewDense(n+1, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < n; j++ {
			e.Set(j, i, g.At(i, j))
		}
		e.Set(n, i, h[i])
	}
	f := mat.NewVecDense(n+1, nil)
	f.SetVec(n, 1)

	w, err := nnls(e, f, 0)
	if err != nil {
		return err
	}
	var r mat.VecDense
	r.MulVec(e, w)
	r.SubVec(&r, f)
	if mat.Norm(&r, 2) <= 10*dlamch || r.AtVec(n) >= 0 {
		return fmt.Errorf("%w: inconsistent constraints", ErrInfeasible)
	}
	scale := -1 / r.AtVec(n)
	for j := 0; j < n; j++ {
		u[j] = scale * r.AtVec(j)
	}
	return nil
}
