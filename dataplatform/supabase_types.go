package dataplatform

import (
	"time"

	"github.com/cepro/hubdispatch/repository"
)

// supabaseRun holds the json encoding schema for a dispatch run in supabase.
type supabaseRun struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Status    string    `json:"status"`
	Objective float64   `json:"objective"`
}

// supabaseSeriesPoint holds the json encoding schema for one hourly value of
// one device trajectory in supabase.
type supabaseSeriesPoint struct {
	RunID  string  `json:"run_id"`
	Device string  `json:"device"`
	Field  string  `json:"field"`
	Hour   int     `json:"hour"`
	Value  float64 `json:"value"`
}

func convertRuns(runs []repository.StoredRun) []supabaseRun {
	var supabaseRuns []supabaseRun
	for _, run := range runs {
		supabaseRuns = append(supabaseRuns, supabaseRun{
			ID:        run.ID,
			Time:      run.Time,
			Status:    run.Status,
			Objective: run.Objective,
		})
	}
	return supabaseRuns
}

func convertSeriesPoints(points []repository.StoredSeriesPoint) []supabaseSeriesPoint {
	var supabasePoints []supabaseSeriesPoint
	for _, point := range points {
		supabasePoints = append(supabasePoints, supabaseSeriesPoint{
			RunID:  point.RunID,
			Device: point.Device,
			Field:  point.Field,
			Hour:   point.Hour,
			Value:  point.Value,
		})
	}
	return supabasePoints
}
