package repository

import "time"

// StoredRun is one solved dispatch run persisted to the SQLite database,
// with a count of upload attempts.
type StoredRun struct {
	ID                 string `gorm:"primaryKey"`
	Time               time.Time
	Status             string
	Objective          float64
	UploadAttemptCount uint
}

// StoredSeriesPoint is one device's value for one field at one hour of a
// stored run. Dispatch trajectories are flattened into these rows so that
// runs of any device portfolio share one schema.
type StoredSeriesPoint struct {
	ID     uint   `gorm:"primaryKey"`
	RunID  string `gorm:"index"`
	Device string
	Field  string
	Hour   int
	Value  float64
}

// Fields used in StoredSeriesPoint rows.
const (
	FieldDispatch      = "dispatch"
	FieldInput         = "input"
	FieldOutput        = "output"
	FieldOutput2       = "output2"
	FieldStateOfCharge = "soc"
)
