package results

// Mode classifies what a device was doing during one snapshot.
type Mode string

const (
	ModeRunning     Mode = "running"
	ModeIdle        Mode = "idle"
	ModeCharging    Mode = "charging"
	ModeDischarging Mode = "discharging"
)

// OperatingModes summarises each device's activity per snapshot: running/idle
// for generators and converters, charging/discharging/idle for storage.
// `threshold` is the absolute power below which a device counts as idle.
func (rs *ResultSet) OperatingModes(threshold float64) map[string][]Mode {
	modes := make(map[string][]Mode)

	onOff := func(series []float64) []Mode {
		out := make([]Mode, len(series))
		for t, v := range series {
			if v > threshold {
				out[t] = ModeRunning
			} else {
				out[t] = ModeIdle
			}
		}
		return out
	}

	for name, dispatch := range rs.GeneratorDispatch {
		modes[name] = onOff(dispatch)
	}
	for name, flow := range rs.LinkFlows {
		modes[name] = onOff(flow.Input)
	}
	for name, state := range rs.Storage {
		out := make([]Mode, len(state.Dispatch))
		for t, v := range state.Dispatch {
			switch {
			case v > threshold:
				out[t] = ModeDischarging
			case v < -threshold:
				out[t] = ModeCharging
			default:
				out[t] = ModeIdle
			}
		}
		modes[name] = out
	}

	return modes
}
