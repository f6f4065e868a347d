package network

import (
	"fmt"
	"math"

	"github.com/cepro/hubdispatch/config"
)

// allDevices is the full catalog, in instantiation order.
var allDevices = []string{
	DeviceGrid,
	DevicePV,
	DeviceBoiler,
	DeviceASHP,
	DeviceGSHPShallow,
	DeviceGSHPDeep,
	DeviceElectrolyzer,
	DeviceFuelCell,
	DeviceBattery,
	DeviceH2Storage,
}

// Build instantiates the network for one run: the four carrier buses, the
// fixed loads, and the selected devices wired per the device type table. A
// nil selection instantiates every supported device; an empty selection
// instantiates none. The config is validated first and never mutated.
func Build(cfg config.Config, selection []string) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	selected, err := resolveSelection(selection)
	if err != nil {
		return nil, err
	}

	n := &Network{
		Hours: cfg.Hours,
		Buses: []Bus{
			{Name: BusElectricity, Carrier: CarrierElectricity},
			{Name: BusHeat, Carrier: CarrierHeat},
			{Name: BusCooling, Carrier: CarrierCooling},
			{Name: BusHydrogen, Carrier: CarrierHydrogen},
		},
	}

	n.Loads = append(n.Loads,
		Load{Name: "elec_load", Bus: BusElectricity, PSet: cfg.ElecLoad},
		Load{Name: "heat_load", Bus: BusHeat, PSet: cfg.HeatLoad},
		Load{Name: "cool_load", Bus: BusCooling, PSet: cfg.CoolLoad},
	)
	if cfg.H2Load != nil {
		n.Loads = append(n.Loads, Load{Name: "h2_load", Bus: BusHydrogen, PSet: cfg.H2Load})
	}

	if selected[DeviceGrid] {
		cost := cfg.GridCost
		if cost.Empty() {
			cost = config.Uniform(config.DefaultGridCost)
		}
		n.Generators = append(n.Generators, Generator{
			Name:         DeviceGrid,
			Bus:          BusElectricity,
			PNom:         math.Inf(1),
			MarginalCost: cost.Resolve(cfg.Hours),
		})
	}

	if selected[DevicePV] {
		if cfg.PVProfile == nil {
			return nil, &config.ConfigurationError{
				Field:  "pvProfile",
				Reason: "required when pv is selected",
			}
		}
		p := cfg.Devices.PV
		var pNom, cost *float64
		if p != nil {
			pNom, cost = p.PNom, p.MarginalCost
		}
		n.Generators = append(n.Generators, Generator{
			Name:         DevicePV,
			Bus:          BusElectricity,
			PNom:         config.Float(pNom, config.DefaultPVPNom),
			PMaxPU:       cfg.PVProfile,
			MarginalCost: config.Uniform(config.Float(cost, config.DefaultPVCost)).Resolve(cfg.Hours),
		})
	}

	if selected[DeviceBoiler] {
		p := cfg.Devices.Boiler
		var pNom, eff *float64
		if p != nil {
			pNom, eff = p.PNom, p.Efficiency
		}
		n.Links = append(n.Links, Link{
			Name:       DeviceBoiler,
			Bus0:       BusElectricity,
			Bus1:       BusHeat,
			PNom:       config.Float(pNom, config.DefaultBoilerPNom),
			Efficiency: config.Float(eff, config.DefaultBoilerEfficiency),
		})
	}

	heatPumps := []struct {
		device string
		params *config.HeatPumpParams
	}{
		{DeviceASHP, cfg.Devices.ASHP},
		{DeviceGSHPShallow, cfg.Devices.GSHPShallow},
		{DeviceGSHPDeep, cfg.Devices.GSHPDeep},
	}
	for _, hp := range heatPumps {
		if !selected[hp.device] {
			continue
		}
		var pNom, cop, eer *float64
		if hp.params != nil {
			pNom, cop, eer = hp.params.PNom, hp.params.COP, hp.params.EER
		}
		capacity := config.Float(pNom, config.DefaultHeatPumpPNom)
		heating := hp.device + "_heating"
		cooling := hp.device + "_cooling"
		n.Links = append(n.Links,
			Link{
				Name:       heating,
				Bus0:       BusElectricity,
				Bus1:       BusHeat,
				PNom:       capacity,
				Efficiency: config.Float(cop, config.DefaultHeatPumpCOP),
			},
			Link{
				Name:       cooling,
				Bus0:       BusElectricity,
				Bus1:       BusCooling,
				PNom:       capacity,
				Efficiency: config.Float(eer, config.DefaultHeatPumpEER),
			},
		)
		n.HeatPumps = append(n.HeatPumps, HeatPumpPair{
			Family:  hp.device,
			Heating: heating,
			Cooling: cooling,
			PNom:    capacity,
		})
	}

	if selected[DeviceElectrolyzer] {
		p := cfg.Devices.Electrolyzer
		var pNom, eff *float64
		if p != nil {
			pNom, eff = p.PNom, p.Efficiency
		}
		n.Links = append(n.Links, Link{
			Name:       DeviceElectrolyzer,
			Bus0:       BusElectricity,
			Bus1:       BusHydrogen,
			PNom:       config.Float(pNom, config.DefaultElectrolyzerPNom),
			Efficiency: config.Float(eff, config.DefaultElectrolyzerEfficiency),
		})
	}

	if selected[DeviceFuelCell] {
		p := cfg.Devices.FuelCell
		var pNom, effElec, effHeat *float64
		if p != nil {
			pNom, effElec, effHeat = p.PNom, p.ElecEfficiency, p.HeatEfficiency
		}
		n.Links = append(n.Links, Link{
			Name:        DeviceFuelCell,
			Bus0:        BusHydrogen,
			Bus1:        BusElectricity,
			Bus2:        BusHeat,
			PNom:        config.Float(pNom, config.DefaultFuelCellPNom),
			Efficiency:  config.Float(effElec, config.DefaultFuelCellElecEfficiency),
			Efficiency2: config.Float(effHeat, config.DefaultFuelCellHeatEfficiency),
		})
	}

	if selected[DeviceBattery] {
		n.Storage = append(n.Storage, storageUnit(
			DeviceBattery, BusElectricity, cfg.Devices.Battery,
			config.DefaultBatteryPNom, config.DefaultBatteryMaxHours,
			config.DefaultBatteryEfficiency, config.DefaultBatteryMarginalCost,
		))
	}

	if selected[DeviceH2Storage] {
		n.Storage = append(n.Storage, storageUnit(
			DeviceH2Storage, BusHydrogen, cfg.Devices.H2Storage,
			config.DefaultH2StoragePNom, config.DefaultH2StorageMaxHours,
			config.DefaultH2StorageEfficiency, config.DefaultH2StorageMarginalCost,
		))
	}

	return n, nil
}

func storageUnit(name, bus string, p *config.StorageParams, defPNom, defMaxHours, defEff, defCost float64) StorageUnit {
	var pNom, maxHours, effStore, effDispatch, cost *float64
	var cyclic *bool
	if p != nil {
		pNom, maxHours = p.PNom, p.MaxHours
		effStore, effDispatch = p.StoreEfficiency, p.DispatchEfficiency
		cost, cyclic = p.MarginalCost, p.Cyclic
	}
	return StorageUnit{
		Name:         name,
		Bus:          bus,
		PNom:         config.Float(pNom, defPNom),
		MaxHours:     config.Float(maxHours, defMaxHours),
		EffStore:     config.Float(effStore, defEff),
		EffDispatch:  config.Float(effDispatch, defEff),
		Cyclic:       config.Bool(cyclic, true),
		MarginalCost: config.Float(cost, defCost),
	}
}

func resolveSelection(selection []string) (map[string]bool, error) {
	known := make(map[string]bool, len(allDevices))
	for _, d := range allDevices {
		known[d] = true
	}

	if selection == nil {
		return known, nil
	}

	selected := make(map[string]bool, len(selection))
	for _, d := range selection {
		if !known[d] {
			return nil, &config.ConfigurationError{
				Field:  "selection",
				Reason: fmt.Sprintf("unknown device %q", d),
			}
		}
		selected[d] = true
	}
	return selected, nil
}
