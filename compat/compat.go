// Package compat implements the Compatibility Solver (spec.md §4.7):
// solves F·X = eₕ − e⁰ with a conditioning guard, Cholesky-primary /
// LU-fallback factorization, and a residual check with refinement.
package compat

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/go-structures/forceframe/ferr"
)

// condWarn and condAbort are the §4.7 conditioning thresholds.
const (
	condWarn  = 1e12
	condAbort = 1e15
)

// residualOK and residualFail are the §4.7 residual-check thresholds.
const (
	residualOK   = 1e-8
	residualFail = 1e-6
)

// Solver selects the preferred factorization.
type Solver int

const (
	Cholesky Solver = iota
	LU
)

// Solution is the compatibility system's solve.
type Solution struct {
	X          []float64
	Cond       float64
	Residual   float64
	UsedSolver Solver
	Warnings   []string
}

// Solve solves F·X = eₕ − e⁰ for X (spec.md §4.7).
func Solve(f [][]float64, eh, e0 []float64, preferred Solver) (*Solution, error) {
	gh := len(f)
	rhs := make([]float64, gh)
	for i := range rhs {
		rhs[i] = eh[i] - e0[i]
	}

	// symmetric equilibration: scaling row/column i by 1/sqrt(max|F[i,:]|)
	// keeps F symmetric (and positive-definite when it was) while taming
	// the magnitude spread between moment- and force-type redundants.
	d := make([]float64, gh)
	for i := 0; i < gh; i++ {
		maxAbs := 0.0
		for j := 0; j < gh; j++ {
			if a := math.Abs(f[i][j]); a > maxAbs {
				maxAbs = a
			}
		}
		if maxAbs > 0 {
			d[i] = 1 / math.Sqrt(maxAbs)
		} else {
			d[i] = 1
		}
	}

	dense := mat.NewSymDense(gh, nil)
	for i := 0; i < gh; i++ {
		for j := i; j < gh; j++ {
			dense.SetSym(i, j, d[i]*f[i][j]*d[j])
		}
	}
	full := mat.NewDense(gh, gh, nil)
	full.Copy(dense)
	unscaled := mat.NewDense(gh, gh, nil)
	for i := 0; i < gh; i++ {
		for j := 0; j < gh; j++ {
			unscaled.Set(i, j, f[i][j])
		}
	}

	cond := mat.Cond(unscaled, 2)
	if math.IsInf(cond, 1) || cond > condAbort {
		return nil, ferr.New(ferr.IllConditioned, "", "cond(F)=%.3e exceeds the hard failure threshold %.0e; choose a different redundant set", cond, condAbort)
	}
	var warnings []string
	if cond > condWarn {
		warnings = append(warnings, "flexibility matrix is ill-conditioned; consider a different redundant set")
	}

	scaledRhs := make([]float64, gh)
	for i := range scaledRhs {
		scaledRhs[i] = d[i] * rhs[i]
	}
	bs := mat.NewVecDense(gh, scaledRhs)
	y := mat.NewVecDense(gh, nil)
	used := preferred

	solved := false
	if preferred == Cholesky {
		var chol mat.Cholesky
		if chol.Factorize(dense) {
			if err := chol.SolveVecTo(y, bs); err == nil {
				solved = true
			}
		}
		if !solved {
			used = LU
		}
	}
	if !solved {
		var lu mat.LU
		lu.Factorize(full)
		if err := lu.SolveVecTo(y, false, bs); err != nil {
			return nil, ferr.Wrap(ferr.IllConditioned, "", err, "compatibility system is singular")
		}
		used = LU
	}

	// rescale back to the original unknowns, then refine against the
	// unscaled system so the reported residual is the §4.7 one.
	x := mat.NewVecDense(gh, nil)
	for i := 0; i < gh; i++ {
		x.SetVec(i, d[i]*y.AtVec(i))
	}
	b := mat.NewVecDense(gh, rhs)
	residual, xRefined := refine(unscaled, b, x)

	if residual > residualFail {
		return nil, ferr.New(ferr.IllConditioned, "", "compatibility residual %.3e exceeds the failure threshold %.0e", residual, residualFail)
	}

	return &Solution{
		X:          xRefined,
		Cond:       cond,
		Residual:   residual,
		UsedSolver: used,
		Warnings:   warnings,
	}, nil
}

// refine computes the relative residual ||F·X-(eₕ-e⁰)||/||eₕ-e⁰|| and,
// if it exceeds residualOK, applies up to two steps of classical
// iterative refinement (spec.md §4.7).
func refine(full *mat.Dense, b, x *mat.VecDense) (float64, []float64) {
	gh, _ := b.Dims()
	rhsNorm := mat.Norm(b, 2)
	if rhsNorm == 0 {
		rhsNorm = 1
	}

	residVec := mat.NewVecDense(gh, nil)
	rel := func(xv *mat.VecDense) float64 {
		residVec.MulVec(full, xv)
		residVec.SubVec(b, residVec)
		return mat.Norm(residVec, 2) / rhsNorm
	}

	current := mat.VecDenseCopyOf(x)
	rel0 := rel(current)
	if rel0 <= residualOK {
		return rel0, toSlice(current)
	}

	var lu mat.LU
	lu.Factorize(full)
	for i := 0; i < 2; i++ {
		residVec.MulVec(full, current)
		residVec.SubVec(b, residVec)
		var correction mat.VecDense
		if err := lu.SolveVecTo(&correction, false, residVec); err != nil {
			break
		}
		current.AddVec(current, &correction)
		r := rel(current)
		if r <= residualOK {
			return r, toSlice(current)
		}
		rel0 = r
	}
	return rel0, toSlice(current)
}

func toSlice(v *mat.VecDense) []float64 {
	n := v.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = v.AtVec(i)
	}
	return out
}
