package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cepro/hubdispatch/problem"
)

// fakeBackend scripts one backend outcome and records whether it ran.
type fakeBackend struct {
	name     string
	solution Solution
	err      error
	panics   bool
	calls    int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Solve(ctx context.Context, p *problem.Problem) (Solution, error) {
	f.calls++
	if f.panics {
		panic("engine blew up")
	}
	return f.solution, f.err
}

func optimal(name string, objective float64) *fakeBackend {
	return &fakeBackend{name: name, solution: Solution{Status: StatusOptimal, Objective: objective}}
}

func trivialProblem() *problem.Problem {
	return &problem.Problem{}
}

func TestSolveFirstBackendWins(t *testing.T) {
	first := optimal("gurobi", 1.0)
	second := optimal("copt", 2.0)
	fallback := optimal("simplex", 3.0)

	o := NewOrchestrator(fallback, first, second)
	sol, err := o.Solve(context.Background(), trivialProblem(), []string{"gurobi", "copt"})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if sol.Objective != 1.0 {
		t.Errorf("Expected the first backend's solution, got objective %v", sol.Objective)
	}
	if second.calls != 0 || fallback.calls != 0 {
		t.Error("Later backends must not run after an optimal solution")
	}
}

func TestSolvePriorityOrderIsRespected(t *testing.T) {
	a := optimal("a", 1.0)
	b := optimal("b", 2.0)

	o := NewOrchestrator(nil, a, b)
	sol, err := o.Solve(context.Background(), trivialProblem(), []string{"b", "a"})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if sol.Objective != 2.0 {
		t.Errorf("Expected backend b first, got objective %v", sol.Objective)
	}
	if a.calls != 0 {
		t.Error("Backend a must not run when b succeeds first")
	}
}

func TestSolveFallsThroughErrors(t *testing.T) {
	broken := &fakeBackend{name: "gurobi", err: fmt.Errorf("license not found")}
	fallback := optimal("simplex", 42.0)

	o := NewOrchestrator(fallback, broken)
	sol, err := o.Solve(context.Background(), trivialProblem(), []string{"gurobi"})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if sol.Objective != 42.0 {
		t.Errorf("Expected the fallback solution, got objective %v", sol.Objective)
	}
	if broken.calls != 1 {
		t.Errorf("Expected the broken backend to be attempted once, got %d", broken.calls)
	}
}

func TestSolveUnconfiguredBackendIsRecorded(t *testing.T) {
	o := NewOrchestrator(nil, optimal("simplex", 1.0))
	_, err := o.Solve(context.Background(), trivialProblem(), []string{"copt"})

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected a *Failure, got %v", err)
	}
	if len(failure.Attempts) != 1 {
		t.Fatalf("Expected 1 attempt, got %d", len(failure.Attempts))
	}
	if failure.Attempts[0].Backend != "copt" {
		t.Errorf("Expected the unknown backend name recorded, got %q", failure.Attempts[0].Backend)
	}
	if !strings.Contains(failure.Error(), "not configured") {
		t.Errorf("Expected an unconfigured reason, got %q", failure.Error())
	}
}

func TestSolveRecoversPanics(t *testing.T) {
	panicky := &fakeBackend{name: "gurobi", panics: true}
	fallback := optimal("simplex", 7.0)

	o := NewOrchestrator(fallback, panicky)
	sol, err := o.Solve(context.Background(), trivialProblem(), []string{"gurobi"})
	if err != nil {
		t.Fatalf("A panicking backend must not take down the orchestrator: %v", err)
	}
	if sol.Objective != 7.0 {
		t.Errorf("Expected the fallback solution, got objective %v", sol.Objective)
	}
}

func TestSolveAllFail(t *testing.T) {
	erroring := &fakeBackend{name: "gurobi", err: fmt.Errorf("no license")}
	infeasible := &fakeBackend{name: "simplex", solution: Solution{Status: StatusInfeasible}}

	o := NewOrchestrator(infeasible, erroring)
	_, err := o.Solve(context.Background(), trivialProblem(), []string{"gurobi"})

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected a *Failure, got %v", err)
	}
	if len(failure.Attempts) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(failure.Attempts))
	}
	if !failure.Infeasible() {
		t.Error("A completed infeasible attempt must mark the failure infeasible")
	}
	if !strings.Contains(failure.Error(), "no license") || !strings.Contains(failure.Error(), "infeasible") {
		t.Errorf("Expected both reasons in the message, got %q", failure.Error())
	}
}

func TestFailureNotInfeasibleWhenOnlyErrors(t *testing.T) {
	failure := &Failure{Attempts: []Attempt{
		{Backend: "gurobi", Status: StatusError, Err: fmt.Errorf("no license")},
		{Backend: "copt", Status: StatusError, Err: fmt.Errorf("backend not configured")},
	}}
	if failure.Infeasible() {
		t.Error("Errors alone must not be reported as infeasibility")
	}
}
