// Package simplex is the built-in solver backend. Linear programs are solved
// with gonum's dense simplex method; the heat-pump mode binaries are handled
// by branch-and-bound over LP relaxations.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/cepro/hubdispatch/problem"
	"github.com/cepro/hubdispatch/solver"
)

const (
	defaultTol      = 1e-10
	defaultGap      = 1e-6
	defaultMaxNodes = 10000

	// intTol is how far a relaxed binary may sit from 0 or 1 and still count
	// as integral.
	intTol = 1e-6
)

// Backend solves formulated problems in-process.
type Backend struct {
	// Tol is the simplex convergence tolerance.
	Tol float64
	// Gap is the relative optimality gap accepted when branching on binaries.
	Gap float64
	// MaxNodes bounds the branch-and-bound tree.
	MaxNodes int
}

// New returns a Backend with default tolerances.
func New() *Backend {
	return &Backend{Tol: defaultTol, Gap: defaultGap, MaxNodes: defaultMaxNodes}
}

func (b *Backend) Name() string {
	return "simplex"
}

// Solve runs the LP relaxation directly for pure linear problems, and
// branch-and-bound over the binary variables otherwise.
func (b *Backend) Solve(ctx context.Context, p *problem.Problem) (solver.Solution, error) {
	lower := make([]float64, len(p.Vars))
	upper := make([]float64, len(p.Vars))
	var binaries []int
	for i, v := range p.Vars {
		lower[i] = v.Lower
		upper[i] = v.Upper
		if v.Binary {
			binaries = append(binaries, i)
		}
	}

	if len(binaries) == 0 {
		obj, x, err := b.relax(p, lower, upper)
		if errors.Is(err, lp.ErrInfeasible) {
			return solver.Solution{Status: solver.StatusInfeasible}, nil
		}
		if err != nil {
			return solver.Solution{}, fmt.Errorf("simplex: %w", err)
		}
		return solver.Solution{Status: solver.StatusOptimal, Objective: obj, Values: x}, nil
	}

	return b.branchAndBound(ctx, p, lower, upper, binaries)
}

// branchAndBound explores fixings of the binary variables depth-first,
// diving towards the relaxation's rounding first and pruning on the
// incumbent objective.
func (b *Backend) branchAndBound(ctx context.Context, p *problem.Problem, lower, upper []float64, binaries []int) (solver.Solution, error) {
	type node struct {
		lower, upper []float64
	}

	stack := []node{{lower: lower, upper: upper}}
	best := math.Inf(1)
	var bestX []float64
	nodes := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return solver.Solution{}, err
		}
		nodes++
		if nodes > b.MaxNodes {
			return solver.Solution{}, fmt.Errorf("branch and bound exceeded %d nodes", b.MaxNodes)
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		obj, x, err := b.relax(p, n.lower, n.upper)
		if errors.Is(err, lp.ErrInfeasible) {
			continue
		}
		if err != nil {
			return solver.Solution{}, fmt.Errorf("simplex: %w", err)
		}

		if bestX != nil && obj >= best-b.Gap*math.Max(1, math.Abs(best)) {
			continue
		}

		branch := -1
		frac := intTol
		for _, i := range binaries {
			f := math.Abs(x[i] - math.Round(x[i]))
			if f > frac {
				branch = i
				frac = f
			}
		}

		if branch < 0 {
			// integral: new incumbent
			if obj < best {
				best = obj
				bestX = x
			}
			continue
		}

		down := node{lower: cloneBounds(n.lower), upper: cloneBounds(n.upper)}
		down.upper[branch] = 0
		up := node{lower: cloneBounds(n.lower), upper: cloneBounds(n.upper)}
		up.lower[branch] = 1

		// push the preferred side last so it is explored first
		if math.Round(x[branch]) == 1 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if bestX == nil {
		return solver.Solution{Status: solver.StatusInfeasible}, nil
	}
	return solver.Solution{Status: solver.StatusOptimal, Objective: best, Values: bestX}, nil
}

// relax solves the LP relaxation of the problem under the given variable
// bounds. The general form (inequalities plus bounds rows, equalities) is
// converted to standard form for gonum's simplex; the original variable
// values are recovered from the positive/negative split.
func (b *Backend) relax(p *problem.Problem, lower, upper []float64) (float64, []float64, error) {
	nVar := len(p.Vars)

	c := make([]float64, nVar)
	for _, term := range p.Objective {
		c[term.Var] += term.Coeff
	}

	var nIneq, nEq int
	for _, con := range p.Constraints {
		if con.Sense == problem.Equal {
			nEq++
		} else {
			nIneq++
		}
	}
	for i := 0; i < nVar; i++ {
		if !math.IsInf(upper[i], 1) {
			nIneq++
		}
		if !math.IsInf(lower[i], -1) {
			nIneq++
		}
	}

	var g *mat.Dense
	var h []float64
	if nIneq > 0 {
		g = mat.NewDense(nIneq, nVar, nil)
		h = make([]float64, nIneq)
	}
	var a *mat.Dense
	var rhs []float64
	if nEq > 0 {
		a = mat.NewDense(nEq, nVar, nil)
		rhs = make([]float64, nEq)
	}

	iIneq, iEq := 0, 0
	for _, con := range p.Constraints {
		if con.Sense == problem.Equal {
			for _, term := range con.Terms {
				a.Set(iEq, term.Var, a.At(iEq, term.Var)+term.Coeff)
			}
			rhs[iEq] = con.RHS
			iEq++
		} else {
			for _, term := range con.Terms {
				g.Set(iIneq, term.Var, g.At(iIneq, term.Var)+term.Coeff)
			}
			h[iIneq] = con.RHS
			iIneq++
		}
	}
	for i := 0; i < nVar; i++ {
		if !math.IsInf(upper[i], 1) {
			g.Set(iIneq, i, 1)
			h[iIneq] = upper[i]
			iIneq++
		}
		if !math.IsInf(lower[i], -1) {
			g.Set(iIneq, i, -1)
			h[iIneq] = -lower[i]
			iIneq++
		}
	}

	var gm, am mat.Matrix
	if g != nil {
		gm = g
	}
	if a != nil {
		am = a
	}
	cStd, aStd, bStd := lp.Convert(c, gm, h, am, rhs)

	obj, xStd, err := lp.Simplex(cStd, aStd, bStd, b.Tol, nil)
	if err != nil {
		return 0, nil, err
	}

	// x = x⁺ - x⁻; slack values are discarded
	x := make([]float64, nVar)
	for i := range x {
		x[i] = xStd[i] - xStd[nVar+i]
	}
	return obj, x, nil
}

func cloneBounds(bounds []float64) []float64 {
	out := make([]float64, len(bounds))
	copy(out, bounds)
	return out
}
