package problem

import (
	"fmt"
	"math"

	"github.com/cepro/hubdispatch/network"
)

// Formulate walks the network and emits the dispatch problem: per-snapshot
// generator, link and storage variables, bus balance equalities, heat-pump
// capacity sharing and mutual exclusion, the state-of-charge recursion with
// its cyclic wrap, and the total operating cost objective.
//
// Formulation is deterministic: the same network always yields a structurally
// identical problem.
func Formulate(n *network.Network) (*Problem, error) {
	if err := checkTopology(n); err != nil {
		return nil, err
	}

	p := &Problem{index: make(map[string]int)}

	for _, g := range n.Generators {
		for t := 0; t < n.Hours; t++ {
			p.addVar(Variable{
				Name:  Key(g.Name, FieldDispatch, t),
				Upper: generatorUpper(g, t),
			})
		}
	}

	for _, l := range n.Links {
		for t := 0; t < n.Hours; t++ {
			p.addVar(Variable{
				Name:  Key(l.Name, FieldInput, t),
				Upper: l.PNom,
			})
		}
	}

	for _, s := range n.Storage {
		for t := 0; t < n.Hours; t++ {
			p.addVar(Variable{Name: Key(s.Name, FieldCharge, t), Upper: s.PNom})
			p.addVar(Variable{Name: Key(s.Name, FieldDischarge, t), Upper: s.PNom})
			p.addVar(Variable{Name: Key(s.Name, FieldSoc, t), Upper: s.PNom * s.MaxHours})
		}
	}

	for _, hp := range n.HeatPumps {
		for t := 0; t < n.Hours; t++ {
			p.addVar(Variable{Name: Key(hp.Family, FieldMode, t), Upper: 1, Binary: true})
		}
	}

	balanceConstraints(p, n)
	heatPumpConstraints(p, n)
	storageConstraints(p, n)

	for _, g := range n.Generators {
		if g.MarginalCost == nil {
			continue
		}
		for t := 0; t < n.Hours; t++ {
			i, _ := p.Lookup(Key(g.Name, FieldDispatch, t))
			if c := g.MarginalCost[t]; c != 0 {
				p.Objective = append(p.Objective, Term{Var: i, Coeff: c})
			}
		}
	}
	for _, s := range n.Storage {
		if s.MarginalCost == 0 {
			continue
		}
		for t := 0; t < n.Hours; t++ {
			i, _ := p.Lookup(Key(s.Name, FieldDischarge, t))
			p.Objective = append(p.Objective, Term{Var: i, Coeff: s.MarginalCost})
		}
	}

	return p, nil
}

// generatorUpper is p_nom scaled by the availability fraction. Care is needed
// for unlimited sources: Inf×0 is NaN, not 0.
func generatorUpper(g network.Generator, t int) float64 {
	if g.PMaxPU == nil {
		return g.PNom
	}
	pu := g.PMaxPU[t]
	if pu == 0 {
		return 0
	}
	if math.IsInf(g.PNom, 1) {
		return g.PNom
	}
	return g.PNom * pu
}

// balanceConstraints emits, per bus and snapshot, the energy conservation
// equality: injections minus withdrawals equal the fixed demand.
func balanceConstraints(p *Problem, n *network.Network) {
	for _, bus := range n.Buses {
		for t := 0; t < n.Hours; t++ {
			var terms []Term

			for _, g := range n.Generators {
				if g.Bus != bus.Name {
					continue
				}
				i, _ := p.Lookup(Key(g.Name, FieldDispatch, t))
				terms = append(terms, Term{Var: i, Coeff: 1})
			}

			for _, l := range n.Links {
				i, _ := p.Lookup(Key(l.Name, FieldInput, t))
				switch bus.Name {
				case l.Bus0:
					terms = append(terms, Term{Var: i, Coeff: -1})
				case l.Bus1:
					terms = append(terms, Term{Var: i, Coeff: l.Efficiency})
				case l.Bus2:
					terms = append(terms, Term{Var: i, Coeff: l.Efficiency2})
				}
			}

			for _, s := range n.Storage {
				if s.Bus != bus.Name {
					continue
				}
				discharge, _ := p.Lookup(Key(s.Name, FieldDischarge, t))
				charge, _ := p.Lookup(Key(s.Name, FieldCharge, t))
				terms = append(terms, Term{Var: discharge, Coeff: 1}, Term{Var: charge, Coeff: -1})
			}

			demand := 0.0
			for _, l := range n.Loads {
				if l.Bus == bus.Name {
					demand += l.PSet[t]
				}
			}

			if len(terms) == 0 && demand == 0 {
				// nothing connected and nothing demanded: no row to emit
				continue
			}
			p.Constraints = append(p.Constraints, Constraint{
				Name:  fmt.Sprintf("balance:%s:%d", bus.Name, t),
				Terms: terms,
				Sense: Equal,
				RHS:   demand,
			})
		}
	}
}

// heatPumpConstraints emits, per family and snapshot, the shared capacity row
// and the two mode exclusion rows that pin the inactive side to zero.
func heatPumpConstraints(p *Problem, n *network.Network) {
	for _, hp := range n.HeatPumps {
		for t := 0; t < n.Hours; t++ {
			heat, _ := p.Lookup(Key(hp.Heating, FieldInput, t))
			cool, _ := p.Lookup(Key(hp.Cooling, FieldInput, t))
			mode, _ := p.Lookup(Key(hp.Family, FieldMode, t))

			// heat + cool <= p_nom: the pair is one physical unit
			p.Constraints = append(p.Constraints, Constraint{
				Name:  fmt.Sprintf("%s:capacity:%d", hp.Family, t),
				Terms: []Term{{Var: heat, Coeff: 1}, {Var: cool, Coeff: 1}},
				Sense: LessEq,
				RHS:   hp.PNom,
			})

			// heat <= z*p_nom and cool <= (1-z)*p_nom
			p.Constraints = append(p.Constraints, Constraint{
				Name:  fmt.Sprintf("%s:heating_exclusion:%d", hp.Family, t),
				Terms: []Term{{Var: heat, Coeff: 1}, {Var: mode, Coeff: -hp.PNom}},
				Sense: LessEq,
				RHS:   0,
			})
			p.Constraints = append(p.Constraints, Constraint{
				Name:  fmt.Sprintf("%s:cooling_exclusion:%d", hp.Family, t),
				Terms: []Term{{Var: cool, Coeff: 1}, {Var: mode, Coeff: hp.PNom}},
				Sense: LessEq,
				RHS:   hp.PNom,
			})
		}
	}
}

// storageConstraints emits the state-of-charge recursion. Charge and
// discharge are separate non-negative variables so the recursion stays
// linear. With the cyclic flag the horizon wraps: snapshot 0 continues from
// snapshot H-1, disallowing net energy drift across the day. Without it the
// unit starts the horizon empty.
func storageConstraints(p *Problem, n *network.Network) {
	for _, s := range n.Storage {
		for t := 0; t < n.Hours; t++ {
			soc, _ := p.Lookup(Key(s.Name, FieldSoc, t))
			charge, _ := p.Lookup(Key(s.Name, FieldCharge, t))
			discharge, _ := p.Lookup(Key(s.Name, FieldDischarge, t))

			terms := []Term{
				{Var: soc, Coeff: 1},
				{Var: charge, Coeff: -s.EffStore},
				{Var: discharge, Coeff: 1 / s.EffDispatch},
			}
			if t > 0 || s.Cyclic {
				prev := n.Hours - 1
				if t > 0 {
					prev = t - 1
				}
				prevSoc, _ := p.Lookup(Key(s.Name, FieldSoc, prev))
				terms = append(terms, Term{Var: prevSoc, Coeff: -1})
			}

			p.Constraints = append(p.Constraints, Constraint{
				Name:  fmt.Sprintf("%s:soc:%d", s.Name, t),
				Terms: terms,
				Sense: Equal,
				RHS:   0,
			})
		}
	}
}

// checkTopology verifies every device references buses that exist and that
// heat-pump pairings are internally consistent.
func checkTopology(n *network.Network) error {
	busExists := func(name string) bool {
		_, ok := n.Bus(name)
		return ok
	}

	for _, g := range n.Generators {
		if !busExists(g.Bus) {
			return &TopologyError{Device: g.Name, Reason: fmt.Sprintf("bus %q does not exist", g.Bus)}
		}
	}
	for _, l := range n.Loads {
		if !busExists(l.Bus) {
			return &TopologyError{Device: l.Name, Reason: fmt.Sprintf("bus %q does not exist", l.Bus)}
		}
	}
	for _, l := range n.Links {
		for _, bus := range []string{l.Bus0, l.Bus1} {
			if !busExists(bus) {
				return &TopologyError{Device: l.Name, Reason: fmt.Sprintf("bus %q does not exist", bus)}
			}
		}
		if l.Bus2 != "" && !busExists(l.Bus2) {
			return &TopologyError{Device: l.Name, Reason: fmt.Sprintf("bus %q does not exist", l.Bus2)}
		}
	}
	for _, s := range n.Storage {
		if !busExists(s.Bus) {
			return &TopologyError{Device: s.Name, Reason: fmt.Sprintf("bus %q does not exist", s.Bus)}
		}
	}

	for _, hp := range n.HeatPumps {
		heating, ok := n.Link(hp.Heating)
		if !ok {
			return &TopologyError{Device: hp.Family, Reason: fmt.Sprintf("heating link %q does not exist", hp.Heating)}
		}
		cooling, ok := n.Link(hp.Cooling)
		if !ok {
			return &TopologyError{Device: hp.Family, Reason: fmt.Sprintf("cooling link %q does not exist", hp.Cooling)}
		}
		if heating.PNom != hp.PNom || cooling.PNom != hp.PNom {
			return &TopologyError{
				Device: hp.Family,
				Reason: fmt.Sprintf("links must share one nominal capacity, got %v/%v against %v",
					heating.PNom, cooling.PNom, hp.PNom),
			}
		}
	}

	return nil
}
