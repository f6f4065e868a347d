package repository

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/cepro/hubdispatch/results"
)

// Repository stores solved runs to the local file system (sqlite) before
// they are uploaded to Supabase.
type Repository struct {
	db *gorm.DB
}

func New(path string) (*Repository, error) {

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Migrate the schema
	err = db.AutoMigrate(&StoredRun{}, &StoredSeriesPoint{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}

// AddRun persists one run and its flattened per-device trajectories.
func (r *Repository) AddRun(run results.Run) error {
	stored := StoredRun{
		ID:        run.ID.String(),
		Time:      run.Time,
		Status:    run.Status,
		Objective: run.ResultSet.Objective,
	}
	if result := r.db.Create(&stored); result.Error != nil {
		return result.Error
	}

	points := flatten(run)
	if len(points) == 0 {
		return nil
	}
	result := r.db.CreateInBatches(points, 200)
	return result.Error
}

// GetRuns returns stored runs, freshest first. With `fresh` set only runs
// that have never failed an upload are returned, otherwise only runs with at
// least one failed attempt.
func (r *Repository) GetRuns(limit int, fresh bool) ([]StoredRun, error) {
	var runs []StoredRun

	query := r.db.Limit(limit).Order("upload_attempt_count asc, time desc")
	if fresh {
		query = query.Where("upload_attempt_count = ?", 0)
	} else {
		query = query.Where("upload_attempt_count > ?", 0)
	}
	result := query.Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

// GetSeriesPoints returns the flattened trajectories of one run.
func (r *Repository) GetSeriesPoints(runID string) ([]StoredSeriesPoint, error) {
	var points []StoredSeriesPoint
	result := r.db.Where("run_id = ?", runID).Order("device, field, hour").Find(&points)
	if result.Error != nil {
		return nil, result.Error
	}
	return points, nil
}

// DeleteRuns removes the given runs and their trajectories.
func (r *Repository) DeleteRuns(runs []StoredRun) error {
	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	if result := r.db.Where("run_id IN ?", ids).Delete(&StoredSeriesPoint{}); result.Error != nil {
		return result.Error
	}
	result := r.db.Where("id IN ?", ids).Delete(&StoredRun{})
	return result.Error
}

// IncrementUploadAttemptCount marks the given runs as having failed an
// upload attempt.
func (r *Repository) IncrementUploadAttemptCount(runs []StoredRun) error {
	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	result := r.db.Model(&StoredRun{}).Where("id IN ?", ids).
		UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + ?", 1))
	return result.Error
}

func flatten(run results.Run) []StoredSeriesPoint {
	var points []StoredSeriesPoint
	add := func(device, field string, series []float64) {
		for t, v := range series {
			points = append(points, StoredSeriesPoint{
				RunID:  run.ID.String(),
				Device: device,
				Field:  field,
				Hour:   t,
				Value:  v,
			})
		}
	}

	rs := run.ResultSet
	for device, dispatch := range rs.GeneratorDispatch {
		add(device, FieldDispatch, dispatch)
	}
	for device, flow := range rs.LinkFlows {
		add(device, FieldInput, flow.Input)
		add(device, FieldOutput, flow.Output)
		if flow.Output2 != nil {
			add(device, FieldOutput2, flow.Output2)
		}
	}
	for device, state := range rs.Storage {
		add(device, FieldDispatch, state.Dispatch)
		add(device, FieldStateOfCharge, state.StateOfCharge)
	}
	return points
}
