package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Documented defaults for device parameters. A device block that is omitted
// from the JSON (or a field left null) takes these values, which follow the
// reference plant this tool was built around.
const (
	DefaultHours = 24

	DefaultGridCost = 0.6

	DefaultPVPNom = 100.0
	DefaultPVCost = 0.01

	DefaultBoilerPNom       = 20.0
	DefaultBoilerEfficiency = 0.98

	DefaultHeatPumpPNom = 40.0
	DefaultHeatPumpCOP  = 3.0
	DefaultHeatPumpEER  = 3.5

	DefaultElectrolyzerPNom       = 50.0
	DefaultElectrolyzerEfficiency = 0.75

	DefaultFuelCellPNom           = 50.0
	DefaultFuelCellElecEfficiency = 0.45
	DefaultFuelCellHeatEfficiency = 0.40

	DefaultBatteryPNom         = 30.0
	DefaultBatteryMaxHours     = 4.0
	DefaultBatteryEfficiency   = 0.9
	DefaultBatteryMarginalCost = 0.01

	DefaultH2StoragePNom         = 100.0
	DefaultH2StorageMaxHours     = 20.0
	DefaultH2StorageEfficiency   = 0.98
	DefaultH2StorageMarginalCost = 0.005
)

// Config is the fully resolved scenario record for one dispatch run: the
// horizon, the load and availability series, the device parameter blocks and
// the solver preferences. It is read once, validated, and never mutated.
type Config struct {
	// Hours is the horizon length H; every series must have exactly H entries.
	Hours int `json:"hours"`

	ElecLoad []float64 `json:"elecLoad"`
	HeatLoad []float64 `json:"heatLoad"`
	CoolLoad []float64 `json:"coolLoad"`
	// H2Load is optional; a hydrogen load is only instantiated when it is given.
	H2Load []float64 `json:"h2Load,omitempty"`

	// PVProfile is the per-unit availability of the PV array, entries in [0,1].
	// Required whenever the pv device is selected.
	PVProfile []float64 `json:"pvProfile,omitempty"`

	// GridCost is the import tariff: a flat number or a per-hour array.
	GridCost Series `json:"gridCost"`

	Devices Devices `json:"devices"`

	// Selection names the devices to instantiate. A missing selection means
	// every supported device.
	Selection []string `json:"selection,omitempty"`

	// Solvers is the backend priority order for the solve orchestrator.
	Solvers []string `json:"solvers,omitempty"`
}

// Devices carries the per-device parameter blocks. A nil block means the
// device runs on its documented defaults if selected.
type Devices struct {
	PV           *GeneratorParams `json:"pv,omitempty"`
	Boiler       *LinkParams      `json:"electricBoiler,omitempty"`
	ASHP         *HeatPumpParams  `json:"ashp,omitempty"`
	GSHPShallow  *HeatPumpParams  `json:"gshpShallow,omitempty"`
	GSHPDeep     *HeatPumpParams  `json:"gshpDeep,omitempty"`
	Electrolyzer *LinkParams      `json:"electrolyzer,omitempty"`
	FuelCell     *FuelCellParams  `json:"fuelCell,omitempty"`
	Battery      *StorageParams   `json:"battery,omitempty"`
	H2Storage    *StorageParams   `json:"h2Storage,omitempty"`
}

type GeneratorParams struct {
	PNom         *float64 `json:"pNom,omitempty"`
	MarginalCost *float64 `json:"marginalCost,omitempty"`
}

type LinkParams struct {
	PNom       *float64 `json:"pNom,omitempty"`
	Efficiency *float64 `json:"efficiency,omitempty"`
}

// HeatPumpParams describes one heat-pump family: a single physical unit whose
// capacity is shared between a heating and a cooling mode.
type HeatPumpParams struct {
	PNom *float64 `json:"pNom,omitempty"`
	COP  *float64 `json:"cop,omitempty"`
	EER  *float64 `json:"eer,omitempty"`
}

type FuelCellParams struct {
	PNom           *float64 `json:"pNom,omitempty"`
	ElecEfficiency *float64 `json:"elecEfficiency,omitempty"`
	HeatEfficiency *float64 `json:"heatEfficiency,omitempty"`
}

type StorageParams struct {
	PNom               *float64 `json:"pNom,omitempty"`
	MaxHours           *float64 `json:"maxHours,omitempty"`
	StoreEfficiency    *float64 `json:"storeEfficiency,omitempty"`
	DispatchEfficiency *float64 `json:"dispatchEfficiency,omitempty"`
	// MarginalCost is a small per-unit dispatch cost that discourages idle
	// cycling when multiple dispatch schedules tie on cost.
	MarginalCost *float64 `json:"marginalCost,omitempty"`
	Cyclic       *bool    `json:"cyclic,omitempty"`
}

// ConfigurationError reports a missing or invalid scenario input. It is
// always detected before any solve attempt.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Read loads a scenario from a JSON file and validates it.
func Read(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	err = json.Unmarshal(content, &config)
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if config.Hours == 0 {
		config.Hours = DefaultHours
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks series lengths against the horizon and value ranges. It
// returns a *ConfigurationError naming the offending field.
func (c Config) Validate() error {
	if c.Hours <= 0 {
		return &ConfigurationError{Field: "hours", Reason: "horizon must be positive"}
	}

	required := []struct {
		name   string
		series []float64
	}{
		{"elecLoad", c.ElecLoad},
		{"heatLoad", c.HeatLoad},
		{"coolLoad", c.CoolLoad},
	}
	for _, s := range required {
		if s.series == nil {
			return &ConfigurationError{Field: s.name, Reason: "load series is required"}
		}
	}

	optional := []struct {
		name   string
		series []float64
	}{
		{"h2Load", c.H2Load},
		{"pvProfile", c.PVProfile},
	}
	for _, s := range append(required, optional...) {
		if s.series == nil {
			continue
		}
		if len(s.series) != c.Hours {
			return &ConfigurationError{
				Field:  s.name,
				Reason: fmt.Sprintf("series has %d entries, horizon is %d", len(s.series), c.Hours),
			}
		}
		for t, v := range s.series {
			if v < 0 {
				return &ConfigurationError{
					Field:  s.name,
					Reason: fmt.Sprintf("negative value %v at hour %d", v, t),
				}
			}
		}
	}

	for t, v := range c.PVProfile {
		if v > 1 {
			return &ConfigurationError{
				Field:  "pvProfile",
				Reason: fmt.Sprintf("availability %v at hour %d exceeds 1", v, t),
			}
		}
	}

	if n := c.GridCost.Len(); n != 0 && n != c.Hours {
		return &ConfigurationError{
			Field:  "gridCost",
			Reason: fmt.Sprintf("series has %d entries, horizon is %d", n, c.Hours),
		}
	}

	return c.validateDevices()
}

// validateDevices sanity-checks the supplied device parameter blocks:
// efficiencies must be positive, capacities and costs non-negative.
func (c Config) validateDevices() error {
	type check struct {
		field string
		v     *float64
	}
	var positive, nonNegative []check

	if p := c.Devices.PV; p != nil {
		nonNegative = append(nonNegative,
			check{"devices.pv.pNom", p.PNom},
			check{"devices.pv.marginalCost", p.MarginalCost})
	}

	converters := []struct {
		name   string
		params *LinkParams
	}{
		{"electricBoiler", c.Devices.Boiler},
		{"electrolyzer", c.Devices.Electrolyzer},
	}
	for _, l := range converters {
		if l.params == nil {
			continue
		}
		nonNegative = append(nonNegative, check{"devices." + l.name + ".pNom", l.params.PNom})
		positive = append(positive, check{"devices." + l.name + ".efficiency", l.params.Efficiency})
	}

	heatPumps := []struct {
		name   string
		params *HeatPumpParams
	}{
		{"ashp", c.Devices.ASHP},
		{"gshpShallow", c.Devices.GSHPShallow},
		{"gshpDeep", c.Devices.GSHPDeep},
	}
	for _, hp := range heatPumps {
		if hp.params == nil {
			continue
		}
		nonNegative = append(nonNegative, check{"devices." + hp.name + ".pNom", hp.params.PNom})
		positive = append(positive,
			check{"devices." + hp.name + ".cop", hp.params.COP},
			check{"devices." + hp.name + ".eer", hp.params.EER})
	}

	if p := c.Devices.FuelCell; p != nil {
		nonNegative = append(nonNegative, check{"devices.fuelCell.pNom", p.PNom})
		positive = append(positive,
			check{"devices.fuelCell.elecEfficiency", p.ElecEfficiency},
			check{"devices.fuelCell.heatEfficiency", p.HeatEfficiency})
	}

	storage := []struct {
		name   string
		params *StorageParams
	}{
		{"battery", c.Devices.Battery},
		{"h2Storage", c.Devices.H2Storage},
	}
	for _, s := range storage {
		if s.params == nil {
			continue
		}
		nonNegative = append(nonNegative,
			check{"devices." + s.name + ".pNom", s.params.PNom},
			check{"devices." + s.name + ".marginalCost", s.params.MarginalCost})
		positive = append(positive,
			check{"devices." + s.name + ".maxHours", s.params.MaxHours},
			check{"devices." + s.name + ".storeEfficiency", s.params.StoreEfficiency},
			check{"devices." + s.name + ".dispatchEfficiency", s.params.DispatchEfficiency})
	}

	for _, ch := range positive {
		if ch.v != nil && *ch.v <= 0 {
			return &ConfigurationError{Field: ch.field, Reason: fmt.Sprintf("must be positive, got %v", *ch.v)}
		}
	}
	for _, ch := range nonNegative {
		if ch.v != nil && *ch.v < 0 {
			return &ConfigurationError{Field: ch.field, Reason: fmt.Sprintf("must not be negative, got %v", *ch.v)}
		}
	}
	return nil
}

// Float returns *v, or `def` when v is nil.
func Float(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Bool returns *v, or `def` when v is nil.
func Bool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
