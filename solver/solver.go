// Package solver submits formulated problems to pluggable backend engines in
// priority order and reports either the first optimal assignment or a
// structured failure. It never interprets infeasibility causes and never
// panics past its boundary.
package solver

import (
	"context"
	"fmt"
	"strings"

	"github.com/cepro/hubdispatch/problem"
)

// Status is the outcome of one backend attempt.
type Status int

const (
	StatusError Status = iota
	StatusOptimal
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "error"
	}
}

// Solution is a backend's variable assignment. Values is indexed like
// Problem.Vars and is only meaningful when Status is optimal.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
}

// Backend is the capability interface for one solver engine.
type Backend interface {
	Name() string
	Solve(ctx context.Context, p *problem.Problem) (Solution, error)
}

// Attempt records why one backend did not produce an optimal solution.
type Attempt struct {
	Backend string
	Status  Status
	Err     error
}

func (a Attempt) String() string {
	if a.Err != nil {
		return fmt.Sprintf("%s: %v", a.Backend, a.Err)
	}
	return fmt.Sprintf("%s: %s", a.Backend, a.Status)
}

// Failure reports that every attempted backend failed or found the problem
// infeasible. It is a value, not a fault: callers can inspect the per-backend
// reasons and retry with different parameters.
type Failure struct {
	Attempts []Attempt
}

func (f *Failure) Error() string {
	reasons := make([]string, len(f.Attempts))
	for i, a := range f.Attempts {
		reasons[i] = a.String()
	}
	return "no solver produced an optimal solution: " + strings.Join(reasons, "; ")
}

// Infeasible reports whether at least one backend ran the problem to
// completion and found no feasible dispatch, as opposed to every backend
// being unavailable or erroring.
func (f *Failure) Infeasible() bool {
	for _, a := range f.Attempts {
		if a.Status == StatusInfeasible {
			return true
		}
	}
	return false
}

// Orchestrator tries configured backends in a caller-given priority order,
// then one fallback backend. Attempts are strictly sequential: solver engines
// are assumed to be a process-exclusive resource.
type Orchestrator struct {
	backends map[string]Backend
	fallback Backend
}

// NewOrchestrator registers the named backends and keeps `fallback` as the
// last resort tried after every named attempt has failed.
func NewOrchestrator(fallback Backend, named ...Backend) *Orchestrator {
	backends := make(map[string]Backend, len(named))
	for _, b := range named {
		backends[b.Name()] = b
	}
	return &Orchestrator{backends: backends, fallback: fallback}
}

// Solve attempts each backend named in `priority`, then the fallback, and
// returns the first optimal solution. On exhaustion the returned error is a
// *Failure carrying every per-backend reason.
func (o *Orchestrator) Solve(ctx context.Context, p *problem.Problem, priority []string) (Solution, error) {
	var attempts []Attempt

	for _, name := range priority {
		backend, ok := o.backends[name]
		if !ok {
			attempts = append(attempts, Attempt{
				Backend: name,
				Status:  StatusError,
				Err:     fmt.Errorf("backend not configured"),
			})
			continue
		}
		sol, attempt := o.attempt(ctx, backend, p)
		if attempt == nil {
			return sol, nil
		}
		attempts = append(attempts, *attempt)
	}

	if o.fallback != nil {
		sol, attempt := o.attempt(ctx, o.fallback, p)
		if attempt == nil {
			return sol, nil
		}
		attempts = append(attempts, *attempt)
	}

	return Solution{}, &Failure{Attempts: attempts}
}

// attempt runs one backend, converting panics and non-optimal statuses into
// an Attempt record. A nil Attempt means the solution is optimal.
func (o *Orchestrator) attempt(ctx context.Context, backend Backend, p *problem.Problem) (Solution, *Attempt) {
	sol, err := func() (sol Solution, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("backend panicked: %v", r)
			}
		}()
		return backend.Solve(ctx, p)
	}()

	if err != nil {
		return Solution{}, &Attempt{Backend: backend.Name(), Status: StatusError, Err: err}
	}
	if sol.Status != StatusOptimal {
		return Solution{}, &Attempt{Backend: backend.Name(), Status: sol.Status}
	}
	return sol, nil
}
