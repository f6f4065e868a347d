// Package problem turns an instantiated network into an optimization problem:
// decision variables, linear constraints and a cost objective. It knows the
// fixed constraint templates of the energy hub family; it is not a general
// modeling language.
package problem

import (
	"fmt"
	"strconv"
)

// Sense is the relation of a constraint row to its right hand side.
type Sense byte

const (
	LessEq Sense = iota
	Equal
)

// Variable fields used in variable keys.
const (
	FieldDispatch  = "p"         // generator output
	FieldInput     = "p0"        // link input draw
	FieldCharge    = "charge"    // storage withdrawal, non-negative
	FieldDischarge = "discharge" // storage injection, non-negative
	FieldSoc       = "soc"       // storage state of charge
	FieldMode      = "mode"      // heat-pump family binary mode
)

// Variable is one decision variable with its bounds. Binary variables make
// the problem a mixed-integer program.
type Variable struct {
	Name   string
	Lower  float64
	Upper  float64
	Binary bool
}

// Term is one coefficient of a linear expression, referencing a variable by
// index into Problem.Vars.
type Term struct {
	Var   int
	Coeff float64
}

// Constraint is one linear row: Terms (sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem is a complete formulation: minimize Objective subject to
// Constraints over Vars. It is immutable once formulated.
type Problem struct {
	Vars        []Variable
	Constraints []Constraint
	Objective   []Term

	index map[string]int
}

// Key builds the canonical variable name for a device field at a snapshot.
func Key(device, field string, t int) string {
	return device + ":" + field + ":" + strconv.Itoa(t)
}

// Lookup returns the index of a named variable.
func (p *Problem) Lookup(name string) (int, bool) {
	i, ok := p.index[name]
	return i, ok
}

// Value reads a device field at a snapshot out of a solver assignment.
func (p *Problem) Value(values []float64, device, field string, t int) (float64, error) {
	i, ok := p.index[Key(device, field, t)]
	if !ok {
		return 0, fmt.Errorf("no variable %s", Key(device, field, t))
	}
	if i >= len(values) {
		return 0, fmt.Errorf("assignment has %d values, variable index is %d", len(values), i)
	}
	return values[i], nil
}

// MIP reports whether the formulation contains binary variables.
func (p *Problem) MIP() bool {
	for _, v := range p.Vars {
		if v.Binary {
			return true
		}
	}
	return false
}

func (p *Problem) addVar(v Variable) int {
	i := len(p.Vars)
	p.Vars = append(p.Vars, v)
	p.index[v.Name] = i
	return i
}

// TopologyError reports an internal inconsistency in the network handed to
// the formulator, such as a dangling bus reference or a heat-pump pair whose
// links disagree on capacity.
type TopologyError struct {
	Device string
	Reason string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology: %s: %s", e.Device, e.Reason)
}
