package config

import (
	"encoding/json"
	"fmt"
)

// Series holds a per-snapshot quantity that can be given in JSON either as a
// single number (applied to every snapshot) or as an array with one entry per
// snapshot. Prices are the typical use: a flat tariff is a number, a
// time-of-use tariff is an array.
type Series struct {
	values []float64
	scalar bool
}

// Uniform returns a Series that takes the value `v` at every snapshot.
func Uniform(v float64) Series {
	return Series{values: []float64{v}, scalar: true}
}

// PerSnapshot returns a Series with one explicit value per snapshot.
func PerSnapshot(values []float64) Series {
	return Series{values: values}
}

// Empty reports whether the series was never set.
func (s Series) Empty() bool {
	return s.values == nil
}

// Len returns the number of explicit entries, or 0 for a scalar/unset series.
func (s Series) Len() int {
	if s.scalar {
		return 0
	}
	return len(s.values)
}

// Resolve expands the series to `hours` entries, broadcasting a scalar.
func (s Series) Resolve(hours int) []float64 {
	out := make([]float64, hours)
	if s.Empty() {
		return out
	}
	for t := range out {
		if s.scalar {
			out[t] = s.values[0]
		} else {
			out[t] = s.values[t]
		}
	}
	return out
}

func (s *Series) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*s = Uniform(scalar)
		return nil
	}
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("series must be a number or an array of numbers: %w", err)
	}
	*s = PerSnapshot(values)
	return nil
}

func (s Series) MarshalJSON() ([]byte, error) {
	if s.scalar {
		return json.Marshal(s.values[0])
	}
	return json.Marshal(s.values)
}
