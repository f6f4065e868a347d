package problem

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cepro/hubdispatch/config"
	"github.com/cepro/hubdispatch/network"
)

// testNetwork builds a small hub: unlimited grid, boiler, battery and one
// heat-pump family over a short horizon.
func testNetwork(t *testing.T) *network.Network {
	t.Helper()
	cfg := config.Config{
		Hours:    3,
		ElecLoad: []float64{50, 60, 70},
		HeatLoad: []float64{100, 100, 100},
		CoolLoad: []float64{10, 10, 10},
		GridCost: config.Uniform(0.6),
	}
	n, err := network.Build(cfg, []string{
		network.DeviceGrid, network.DeviceBoiler, network.DeviceBattery, network.DeviceASHP,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return n
}

func findConstraint(t *testing.T, p *Problem, name string) Constraint {
	t.Helper()
	for _, c := range p.Constraints {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("Constraint %q not found", name)
	return Constraint{}
}

func coeffOf(t *testing.T, p *Problem, c Constraint, varName string) float64 {
	t.Helper()
	i, ok := p.Lookup(varName)
	if !ok {
		t.Fatalf("Variable %q not found", varName)
	}
	total := 0.0
	found := false
	for _, term := range c.Terms {
		if term.Var == i {
			total += term.Coeff
			found = true
		}
	}
	if !found {
		t.Fatalf("Variable %q does not appear in constraint %q", varName, c.Name)
	}
	return total
}

func TestFormulateVariableCounts(t *testing.T) {
	n := testNetwork(t)
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	// 1 generator + 3 links, each H vars; storage 3H; one family H binaries
	expected := 1*3 + 3*3 + 3*3 + 1*3
	if len(p.Vars) != expected {
		t.Errorf("Expected %d variables, got %d", expected, len(p.Vars))
	}
	if !p.MIP() {
		t.Error("Expected a mixed-integer formulation with a heat pump selected")
	}

	binaries := 0
	for _, v := range p.Vars {
		if v.Binary {
			binaries++
		}
	}
	if binaries != 3 {
		t.Errorf("Expected 3 binary mode variables, got %d", binaries)
	}
}

func TestFormulatePureLPWithoutHeatPumps(t *testing.T) {
	cfg := config.Config{
		Hours:    2,
		ElecLoad: []float64{50, 50},
		HeatLoad: []float64{0, 0},
		CoolLoad: []float64{0, 0},
	}
	n, err := network.Build(cfg, []string{network.DeviceGrid, network.DeviceBattery})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}
	if p.MIP() {
		t.Error("Expected a pure LP without heat pumps")
	}
}

func TestFormulateBalanceRows(t *testing.T) {
	n := testNetwork(t)
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	elec := findConstraint(t, p, "balance:electricity:1")
	if elec.Sense != Equal || elec.RHS != 60 {
		t.Errorf("Expected equality with RHS 60, got sense %v RHS %v", elec.Sense, elec.RHS)
	}
	if c := coeffOf(t, p, elec, Key("grid", FieldDispatch, 1)); c != 1 {
		t.Errorf("Grid injects with coefficient 1, got %v", c)
	}
	if c := coeffOf(t, p, elec, Key("electric_boiler", FieldInput, 1)); c != -1 {
		t.Errorf("Boiler withdraws with coefficient -1, got %v", c)
	}
	if c := coeffOf(t, p, elec, Key("battery", FieldDischarge, 1)); c != 1 {
		t.Errorf("Battery discharge injects with coefficient 1, got %v", c)
	}
	if c := coeffOf(t, p, elec, Key("battery", FieldCharge, 1)); c != -1 {
		t.Errorf("Battery charge withdraws with coefficient -1, got %v", c)
	}

	heat := findConstraint(t, p, "balance:heat:0")
	if heat.RHS != 100 {
		t.Errorf("Expected heat demand 100, got %v", heat.RHS)
	}
	if c := coeffOf(t, p, heat, Key("electric_boiler", FieldInput, 0)); c != config.DefaultBoilerEfficiency {
		t.Errorf("Boiler output lands on heat with its efficiency, got %v", c)
	}
	if c := coeffOf(t, p, heat, Key("ashp_heating", FieldInput, 0)); c != config.DefaultHeatPumpCOP {
		t.Errorf("Heating link lands on heat with its COP, got %v", c)
	}
}

func TestFormulateFuelCellTwoOutputs(t *testing.T) {
	cfg := config.Config{
		Hours:    2,
		ElecLoad: []float64{10, 10},
		HeatLoad: []float64{5, 5},
		CoolLoad: []float64{0, 0},
		H2Load:   []float64{0, 0},
	}
	n, err := network.Build(cfg, []string{network.DeviceGrid, network.DeviceElectrolyzer, network.DeviceFuelCell})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	input := Key("fuel_cell", FieldInput, 0)

	h2 := findConstraint(t, p, "balance:hydrogen:0")
	if c := coeffOf(t, p, h2, input); c != -1 {
		t.Errorf("Fuel cell draws hydrogen with coefficient -1, got %v", c)
	}
	elec := findConstraint(t, p, "balance:electricity:0")
	if c := coeffOf(t, p, elec, input); c != config.DefaultFuelCellElecEfficiency {
		t.Errorf("Fuel cell elec output from the same draw, got %v", c)
	}
	heat := findConstraint(t, p, "balance:heat:0")
	if c := coeffOf(t, p, heat, input); c != config.DefaultFuelCellHeatEfficiency {
		t.Errorf("Fuel cell heat output from the same draw, got %v", c)
	}
}

func TestFormulateHeatPumpRows(t *testing.T) {
	n := testNetwork(t)
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	pNom := config.DefaultHeatPumpPNom
	heat := Key("ashp_heating", FieldInput, 2)
	cool := Key("ashp_cooling", FieldInput, 2)
	mode := Key("ashp", FieldMode, 2)

	capacity := findConstraint(t, p, "ashp:capacity:2")
	if capacity.Sense != LessEq || capacity.RHS != pNom {
		t.Errorf("Expected <= %v, got sense %v RHS %v", pNom, capacity.Sense, capacity.RHS)
	}
	if coeffOf(t, p, capacity, heat) != 1 || coeffOf(t, p, capacity, cool) != 1 {
		t.Error("Capacity sharing sums both mode inputs")
	}

	heating := findConstraint(t, p, "ashp:heating_exclusion:2")
	if heating.RHS != 0 || coeffOf(t, p, heating, mode) != -pNom {
		t.Errorf("Heating exclusion row wrong: %+v", heating)
	}
	cooling := findConstraint(t, p, "ashp:cooling_exclusion:2")
	if cooling.RHS != pNom || coeffOf(t, p, cooling, mode) != pNom {
		t.Errorf("Cooling exclusion row wrong: %+v", cooling)
	}
}

func TestFormulateStorageRecursion(t *testing.T) {
	n := testNetwork(t)
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	eff := config.DefaultBatteryEfficiency

	// interior snapshot couples to the previous one
	mid := findConstraint(t, p, "battery:soc:1")
	if coeffOf(t, p, mid, Key("battery", FieldSoc, 1)) != 1 {
		t.Error("SoC appears with coefficient 1")
	}
	if coeffOf(t, p, mid, Key("battery", FieldSoc, 0)) != -1 {
		t.Error("Previous SoC appears with coefficient -1")
	}
	if coeffOf(t, p, mid, Key("battery", FieldCharge, 1)) != -eff {
		t.Error("Charging fills the store at store efficiency")
	}
	if got := coeffOf(t, p, mid, Key("battery", FieldDischarge, 1)); math.Abs(got-1/eff) > 1e-12 {
		t.Errorf("Discharging drains the store at 1/dispatch efficiency, got %v", got)
	}

	// cyclic boundary: snapshot 0 continues from the last snapshot
	first := findConstraint(t, p, "battery:soc:0")
	if coeffOf(t, p, first, Key("battery", FieldSoc, 2)) != -1 {
		t.Error("Cyclic storage must wrap snapshot 0 to snapshot H-1")
	}
}

func TestFormulateNonCyclicStorageStartsEmpty(t *testing.T) {
	cfg := config.Config{
		Hours:    2,
		ElecLoad: []float64{50, 50},
		HeatLoad: []float64{0, 0},
		CoolLoad: []float64{0, 0},
	}
	cyclic := false
	cfg.Devices.Battery = &config.StorageParams{Cyclic: &cyclic}
	n, err := network.Build(cfg, []string{network.DeviceGrid, network.DeviceBattery})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	first := findConstraint(t, p, "battery:soc:0")
	if i, ok := p.Lookup(Key("battery", FieldSoc, 1)); ok {
		for _, term := range first.Terms {
			if term.Var == i {
				t.Error("Non-cyclic storage must not wrap to the last snapshot")
			}
		}
	}
	if len(first.Terms) != 3 {
		t.Errorf("Expected 3 terms (soc, charge, discharge), got %d", len(first.Terms))
	}
}

func TestFormulateGeneratorBounds(t *testing.T) {
	cfg := config.Config{
		Hours:     3,
		ElecLoad:  []float64{10, 10, 10},
		HeatLoad:  []float64{0, 0, 0},
		CoolLoad:  []float64{0, 0, 0},
		PVProfile: []float64{0, 0.5, 1},
	}
	n, err := network.Build(cfg, []string{network.DeviceGrid, network.DevicePV})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	gridIdx, _ := p.Lookup(Key("grid", FieldDispatch, 0))
	if !math.IsInf(p.Vars[gridIdx].Upper, 1) {
		t.Errorf("Grid output must be unbounded, got %v", p.Vars[gridIdx].Upper)
	}

	expected := []float64{0, 0.5 * config.DefaultPVPNom, config.DefaultPVPNom}
	for snapshot, want := range expected {
		i, _ := p.Lookup(Key("pv", FieldDispatch, snapshot))
		if p.Vars[i].Upper != want {
			t.Errorf("Hour %d: expected pv bound %v, got %v", snapshot, want, p.Vars[i].Upper)
		}
	}
}

func TestFormulateIdempotent(t *testing.T) {
	n := testNetwork(t)

	p1, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}
	p2, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	assert.Equal(t, p1, p2, "formulating the same network twice must yield a structurally identical problem")
}

func TestFormulateTopologyErrors(t *testing.T) {

	type subTest struct {
		name    string
		network *network.Network
	}

	subTests := []subTest{
		{
			"link to missing bus",
			&network.Network{
				Hours: 1,
				Buses: []network.Bus{{Name: network.BusElectricity, Carrier: network.CarrierElectricity}},
				Links: []network.Link{{Name: "boiler", Bus0: network.BusElectricity, Bus1: "steam", PNom: 10, Efficiency: 0.9}},
			},
		},
		{
			"generator on missing bus",
			&network.Network{
				Hours:      1,
				Buses:      []network.Bus{{Name: network.BusHeat, Carrier: network.CarrierHeat}},
				Generators: []network.Generator{{Name: "grid", Bus: network.BusElectricity, PNom: 10}},
			},
		},
		{
			"heat pump pairing with missing link",
			&network.Network{
				Hours: 1,
				Buses: []network.Bus{
					{Name: network.BusElectricity, Carrier: network.CarrierElectricity},
					{Name: network.BusHeat, Carrier: network.CarrierHeat},
				},
				Links: []network.Link{
					{Name: "hp_heating", Bus0: network.BusElectricity, Bus1: network.BusHeat, PNom: 40, Efficiency: 3},
				},
				HeatPumps: []network.HeatPumpPair{{Family: "hp", Heating: "hp_heating", Cooling: "hp_cooling", PNom: 40}},
			},
		},
		{
			"heat pump pairing with mismatched capacity",
			&network.Network{
				Hours: 1,
				Buses: []network.Bus{
					{Name: network.BusElectricity, Carrier: network.CarrierElectricity},
					{Name: network.BusHeat, Carrier: network.CarrierHeat},
					{Name: network.BusCooling, Carrier: network.CarrierCooling},
				},
				Links: []network.Link{
					{Name: "hp_heating", Bus0: network.BusElectricity, Bus1: network.BusHeat, PNom: 40, Efficiency: 3},
					{Name: "hp_cooling", Bus0: network.BusElectricity, Bus1: network.BusCooling, PNom: 60, Efficiency: 3.5},
				},
				HeatPumps: []network.HeatPumpPair{{Family: "hp", Heating: "hp_heating", Cooling: "hp_cooling", PNom: 40}},
			},
		},
	}

	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			_, err := Formulate(subTest.network)
			var topoErr *TopologyError
			if !errors.As(err, &topoErr) {
				t.Errorf("Expected a TopologyError, got %v", err)
			}
		})
	}
}

func TestFormulateObjective(t *testing.T) {
	n := testNetwork(t)
	p, err := Formulate(n)
	if err != nil {
		t.Fatalf("Formulate failed: %v", err)
	}

	costs := make(map[int]float64)
	for _, term := range p.Objective {
		costs[term.Var] += term.Coeff
	}

	for snapshot := 0; snapshot < 3; snapshot++ {
		i, _ := p.Lookup(Key("grid", FieldDispatch, snapshot))
		if costs[i] != 0.6 {
			t.Errorf("Hour %d: expected grid cost 0.6, got %v", snapshot, costs[i])
		}
		j, _ := p.Lookup(Key("battery", FieldDischarge, snapshot))
		if costs[j] != config.DefaultBatteryMarginalCost {
			t.Errorf("Hour %d: expected battery dispatch cost %v, got %v",
				snapshot, config.DefaultBatteryMarginalCost, costs[j])
		}
	}
}
