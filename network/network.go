package network

// Carrier is the energy carrier that a bus balances.
type Carrier string

const (
	CarrierElectricity Carrier = "AC"
	CarrierHeat        Carrier = "heat"
	CarrierCooling     Carrier = "cooling"
	CarrierHydrogen    Carrier = "H2"
)

// The four buses that exist in every hub.
const (
	BusElectricity = "electricity"
	BusHeat        = "heat"
	BusCooling     = "cooling"
	BusHydrogen    = "hydrogen"
)

// Supported device identifiers, as they appear in a selection set.
const (
	DeviceGrid         = "grid"
	DevicePV           = "pv"
	DeviceBoiler       = "electric_boiler"
	DeviceASHP         = "ashp"
	DeviceGSHPShallow  = "gshp_shallow"
	DeviceGSHPDeep     = "gshp_deep"
	DeviceElectrolyzer = "electrolyzer"
	DeviceFuelCell     = "fuel_cell"
	DeviceBattery      = "battery"
	DeviceH2Storage    = "h2_storage"
)

// Bus is a node at which injections and withdrawals of one carrier must
// balance every snapshot.
type Bus struct {
	Name    string
	Carrier Carrier
}

// Generator produces energy onto a single bus. An unlimited source (the
// external grid) has PNom set to +Inf. PMaxPU is the per-snapshot
// availability fraction; nil means fully available.
type Generator struct {
	Name         string
	Bus          string
	PNom         float64
	PMaxPU       []float64
	MarginalCost []float64
}

// Load withdraws a fixed per-snapshot demand from a bus. Demand is not a
// decision variable.
type Load struct {
	Name string
	Bus  string
	PSet []float64
}

// Link is a directed converter drawing from Bus0 and delivering
// input×Efficiency onto Bus1. A link with a second output (the fuel cell)
// additionally delivers input×Efficiency2 onto Bus2 from the same draw.
type Link struct {
	Name        string
	Bus0        string
	Bus1        string
	Bus2        string // empty for single-output links
	PNom        float64
	Efficiency  float64
	Efficiency2 float64
}

// StorageUnit shifts energy across snapshots within one carrier. Energy
// capacity is PNom×MaxHours. MarginalCost is charged on dispatch to
// discourage idle cycling.
type StorageUnit struct {
	Name         string
	Bus          string
	PNom         float64
	MaxHours     float64
	EffStore     float64
	EffDispatch  float64
	Cyclic       bool
	MarginalCost float64
}

// HeatPumpPair records that two links are the heating and cooling modes of
// one physical unit: they share PNom and at most one may run per snapshot.
// The pairing is an explicit relation written by the builder, never inferred
// from link names.
type HeatPumpPair struct {
	Family  string
	Heating string
	Cooling string
	PNom    float64
}

// Network is the instantiated hub for one run: the shared time grid plus
// every bus and device. It is built once and treated as immutable afterwards.
type Network struct {
	Hours      int
	Buses      []Bus
	Generators []Generator
	Loads      []Load
	Links      []Link
	Storage    []StorageUnit
	HeatPumps  []HeatPumpPair
}

// Bus looks a bus up by name.
func (n *Network) Bus(name string) (Bus, bool) {
	for _, b := range n.Buses {
		if b.Name == name {
			return b, true
		}
	}
	return Bus{}, false
}

// Link looks a link up by name.
func (n *Network) Link(name string) (Link, bool) {
	for _, l := range n.Links {
		if l.Name == name {
			return l, true
		}
	}
	return Link{}, false
}
