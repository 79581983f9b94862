package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUploadCleanup deletes one upload left behind by a finished import.
	TaskUploadCleanup = "upload:cleanup"
	// TaskUploadSweep removes stale uploads from aborted imports.
	TaskUploadSweep = "upload:sweep"
)

// UploadCleanupPayload names the blob to delete.
type UploadCleanupPayload struct {
	Path string `json:"path"`
}

// UploadSweepPayload carries scheduling metadata.
type UploadSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewUploadCleanupTask constructs an Asynq task deleting path.
func NewUploadCleanupTask(path string) (*asynq.Task, error) {
	body, err := json.Marshal(UploadCleanupPayload{Path: path})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUploadCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}

// NewUploadSweepTask constructs an Asynq task for the upload sweep.
func NewUploadSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(UploadSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUploadSweep, body, asynq.Queue(QueueDefault)), nil
}
