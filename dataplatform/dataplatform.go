// Package dataplatform streams solved dispatch runs to Supabase. Runs put
// onto the Runs channel are buffered on disk in a SQLite database before
// being uploaded, so a flaky connection never loses a result.
package dataplatform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	supa "github.com/nedpals/supabase-go"

	"github.com/cepro/hubdispatch/repository"
	"github.com/cepro/hubdispatch/results"
)

// uploadChunkLimit defines how many runs we upload in one supabase HTTP request.
const uploadChunkLimit = 20

type DataPlatform struct {
	Runs chan results.Run

	repository *repository.Repository
	supaClient *supa.Client
}

func New(supabaseUrl string, supabaseKey string, schema string, bufferRepositoryFilename string) (*DataPlatform, error) {

	supaClient := supa.CreateClient(supabaseUrl, supabaseKey)
	supaClient.DB.AddHeader("Accept-Profile", schema)
	supaClient.DB.AddHeader("Content-Profile", schema)

	repository, err := repository.New(bufferRepositoryFilename)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}

	return &DataPlatform{
		Runs:       make(chan results.Run, 4),
		repository: repository,
		supaClient: supaClient,
	}, nil
}

// Run loops forever persisting incoming runs and periodically attempting
// uploads of whatever is buffered.
func (d *DataPlatform) Run(ctx context.Context) {

	uploadTicker := time.NewTicker(time.Second * 30)
	defer uploadTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case run := <-d.Runs:
			err := d.repository.AddRun(run)
			if err != nil {
				slog.Error("failed to persist run", "error", err)
				continue
			}
			slog.Debug("Stored run", "run_id", run.ID)

		case <-uploadTicker.C:
			d.AttemptUpload()
		}
	}
}

// Store persists a run to the local buffer without going through the worker
// loop. One-shot invocations use this together with AttemptUpload.
func (d *DataPlatform) Store(run results.Run) error {
	return d.repository.AddRun(run)
}

// AttemptUpload tries to push buffered runs to Supabase: first runs that
// have never been attempted, then runs that failed a previous attempt.
func (d *DataPlatform) AttemptUpload() {

	freshRuns, err := d.repository.GetRuns(uploadChunkLimit, true)
	if err != nil {
		slog.Error("failed to query fresh runs", "error", err)
	} else if len(freshRuns) > 0 {
		err = d.handleRuns(freshRuns)
		if err != nil {
			slog.Error("failed to upload fresh runs", "error", err)
		}
	}

	oldRuns, err := d.repository.GetRuns(uploadChunkLimit, false)
	if err != nil {
		slog.Error("failed to query retried runs", "error", err)
	} else if len(oldRuns) > 0 {
		err = d.handleRuns(oldRuns)
		if err != nil {
			slog.Error("failed to upload retried runs", "error", err)
		}
	}
}

// handleRuns attempts to upload the given runs with their trajectories. On
// success the runs are deleted from the buffer; on failure their upload
// attempt count is incremented and they stay for another time.
func (d *DataPlatform) handleRuns(runs []repository.StoredRun) error {

	supabaseRuns := convertRuns(runs)
	var supabasePoints []supabaseSeriesPoint
	for _, run := range runs {
		points, err := d.repository.GetSeriesPoints(run.ID)
		if err != nil {
			return fmt.Errorf("query series points for run %s: %w", run.ID, err)
		}
		supabasePoints = append(supabasePoints, convertSeriesPoints(points)...)
	}

	uploadErr := d.supaClient.DB.From("hub_runs").Insert(supabaseRuns).Execute(nil)
	if uploadErr == nil && len(supabasePoints) > 0 {
		uploadErr = d.supaClient.DB.From("hub_dispatch_series").Insert(supabasePoints).Execute(nil)
	}
	if uploadErr != nil {
		uploadErr := fmt.Errorf("upload failed: %w", uploadErr)
		errInc := d.repository.IncrementUploadAttemptCount(runs)
		if errInc != nil {
			return fmt.Errorf("%w: increment upload attempt count: %w", uploadErr, errInc)
		}
		return uploadErr
	}

	deleteErr := d.repository.DeleteRuns(runs)
	if deleteErr != nil {
		return fmt.Errorf("delete runs: %w", deleteErr)
	}

	slog.Info("Uploaded runs", "db_records", len(runs))

	return nil
}
