package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockbook/internal/jobs"
	"github.com/odyssey-erp/stockbook/internal/platform/blob"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// uploadRoot is the blob prefix holding every organization's pending uploads.
const uploadRoot = "imports/"

// UploadJobs deletes import uploads the request path could not remove.
type UploadJobs struct {
	Blobs     blob.Store
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewUploadJobs wires dependencies for the cleanup handlers.
func NewUploadJobs(blobs blob.Store, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *UploadJobs {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &UploadJobs{
		Blobs:     blobs,
		Retention: retention,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handlers returns the task registrations for the worker.
func (j *UploadJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskUploadCleanup, Handler: j.HandleCleanup},
		{Type: TaskUploadSweep, Handler: j.HandleSweep},
	}
}

// HandleCleanup deletes a single upload. Missing blobs count as done.
func (j *UploadJobs) HandleCleanup(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Blobs == nil {
		return errors.New("upload cleanup: handler not configured")
	}
	var payload UploadCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if !strings.HasPrefix(payload.Path, uploadRoot) {
		j.logger(TaskUploadCleanup).Warn("refusing cleanup outside upload prefix", slog.String("path", payload.Path))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskUploadCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Blobs.Delete(ctx, payload.Path); err != nil && !errors.Is(err, blob.ErrNotFound) {
		resultErr = err
		j.logger(TaskUploadCleanup).Error("delete upload", slog.String("path", payload.Path), slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddRemoved(TaskUploadCleanup, 1)
	j.logger(TaskUploadCleanup).Info("upload removed", slog.String("path", payload.Path))
	return resultErr
}

// HandleSweep removes uploads older than the retention window.
func (j *UploadJobs) HandleSweep(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Blobs == nil {
		return errors.New("upload sweep: handler not configured")
	}
	var payload UploadSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskUploadSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger(TaskUploadSweep)
	removed, err := j.Sweep(ctx)
	if err != nil {
		resultErr = err
		logger.Error("sweep uploads", slog.Int("removed", removed), slog.Any("error", err))
		return resultErr
	}
	logger.Info("completed upload sweep", slog.Int("removed", removed))
	return resultErr
}

// Sweep deletes stale uploads and reports how many were removed. It keeps going past
// individual delete failures and returns the first one.
func (j *UploadJobs) Sweep(ctx context.Context) (int, error) {
	objects, err := j.Blobs.List(ctx, uploadRoot)
	if err != nil {
		return 0, err
	}
	cutoff := j.now().Add(-j.Retention)
	removed := 0
	var firstErr error
	for _, obj := range objects {
		if !obj.ModTime.Before(cutoff) {
			continue
		}
		if err := j.Blobs.Delete(ctx, obj.Key); err != nil && !errors.Is(err, blob.ErrNotFound) {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	j.metrics().AddRemoved(TaskUploadSweep, removed)
	return removed, firstErr
}

func (j *UploadJobs) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *UploadJobs) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *UploadJobs) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// SweepSchedule builds the cron registration for the upload sweep.
func SweepSchedule(spec string) (CronRegistration, error) {
	if spec == "" {
		spec = "@hourly"
	}
	task, err := NewUploadSweepTask(time.Time{})
	if err != nil {
		return CronRegistration{}, err
	}
	return CronRegistration{Spec: spec, Task: task}, nil
}
