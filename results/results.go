// Package results exposes a solved dispatch in a normalized, read-only form:
// per-device hourly trajectories keyed by device identifier, plus the total
// operating cost. Downstream reporting and export collaborators consume this
// structure and must not mutate it.
package results

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cepro/hubdispatch/network"
	"github.com/cepro/hubdispatch/problem"
	"github.com/cepro/hubdispatch/solver"
)

// LinkFlow is a converter's trajectory: the input draw and the derived output
// flows (input times efficiency). The outputs are pure projections with no
// degrees of freedom of their own.
type LinkFlow struct {
	Input   []float64
	Output  []float64
	Output2 []float64 // nil for single-output links
}

// StorageState is a storage unit's trajectory: signed dispatch (positive is
// discharge into the bus) and the state of charge after each snapshot.
type StorageState struct {
	Dispatch      []float64
	StateOfCharge []float64
}

// ResultSet is the normalized solution for one run.
type ResultSet struct {
	Hours     int
	Objective float64

	GeneratorDispatch map[string][]float64
	LinkFlows         map[string]LinkFlow
	Storage           map[string]StorageState
}

// Run wraps a ResultSet with the identity and wall-clock time of the
// simulation invocation that produced it, for persistence.
type Run struct {
	ID        uuid.UUID
	Time      time.Time
	Status    string
	ResultSet *ResultSet
}

// Extract projects the solver assignment onto the network's devices. It
// recomputes nothing the solver did not determine, other than the derived
// link output flows.
func Extract(n *network.Network, p *problem.Problem, sol solver.Solution) (*ResultSet, error) {
	if sol.Status != solver.StatusOptimal {
		return nil, fmt.Errorf("cannot extract results from a %s solution", sol.Status)
	}

	rs := &ResultSet{
		Hours:             n.Hours,
		Objective:         sol.Objective,
		GeneratorDispatch: make(map[string][]float64, len(n.Generators)),
		LinkFlows:         make(map[string]LinkFlow, len(n.Links)),
		Storage:           make(map[string]StorageState, len(n.Storage)),
	}

	for _, g := range n.Generators {
		dispatch := make([]float64, n.Hours)
		for t := 0; t < n.Hours; t++ {
			v, err := p.Value(sol.Values, g.Name, problem.FieldDispatch, t)
			if err != nil {
				return nil, err
			}
			dispatch[t] = v
		}
		rs.GeneratorDispatch[g.Name] = dispatch
	}

	for _, l := range n.Links {
		flow := LinkFlow{
			Input:  make([]float64, n.Hours),
			Output: make([]float64, n.Hours),
		}
		if l.Bus2 != "" {
			flow.Output2 = make([]float64, n.Hours)
		}
		for t := 0; t < n.Hours; t++ {
			v, err := p.Value(sol.Values, l.Name, problem.FieldInput, t)
			if err != nil {
				return nil, err
			}
			flow.Input[t] = v
			flow.Output[t] = v * l.Efficiency
			if flow.Output2 != nil {
				flow.Output2[t] = v * l.Efficiency2
			}
		}
		rs.LinkFlows[l.Name] = flow
	}

	for _, s := range n.Storage {
		state := StorageState{
			Dispatch:      make([]float64, n.Hours),
			StateOfCharge: make([]float64, n.Hours),
		}
		for t := 0; t < n.Hours; t++ {
			discharge, err := p.Value(sol.Values, s.Name, problem.FieldDischarge, t)
			if err != nil {
				return nil, err
			}
			charge, err := p.Value(sol.Values, s.Name, problem.FieldCharge, t)
			if err != nil {
				return nil, err
			}
			soc, err := p.Value(sol.Values, s.Name, problem.FieldSoc, t)
			if err != nil {
				return nil, err
			}
			state.Dispatch[t] = discharge - charge
			state.StateOfCharge[t] = soc
		}
		rs.Storage[s.Name] = state
	}

	return rs, nil
}
