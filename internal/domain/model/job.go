package model

import (
	"fmt"
	"strings"

	"github.com/okian/chunisync/internal/domain/types"
)

// SyncJob is one request to push a player's records to the aggregator.
type SyncJob struct {
	ID      string         `json:"id"`
	Player  PlayerSnapshot `json:"player"`
	Best    []Record       `json:"best"`
	Courses []CourseRecord `json:"courses"`
	Recent  []Record       `json:"recent"`
}

// MaxRecent is the size of the recent-plays window.
const MaxRecent = 10

// Validate checks the job and every record it carries.
func (j SyncJob) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("job id is required: %w", types.ErrInvalidInput)
	}
	if strings.TrimSpace(j.Player.Name) == "" {
		return fmt.Errorf("player name is required: %w", types.ErrInvalidInput)
	}
	if len(j.Recent) > MaxRecent {
		return fmt.Errorf("%d recent records, at most %d: %w", len(j.Recent), MaxRecent, types.ErrInvalidInput)
	}
	for i, r := range j.Best {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("best[%d]: %w", i, err)
		}
	}
	for i, c := range j.Courses {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("courses[%d]: %w", i, err)
		}
	}
	for i, r := range j.Recent {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("recent[%d]: %w", i, err)
		}
	}
	return nil
}

// JobState is the lifecycle state of a sync job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobSubmitted  JobState = "submitted"
	JobDuplicate  JobState = "duplicate"
	JobFailed     JobState = "failed"
)

// JobStatus is the queryable outcome of a sync job.
type JobStatus struct {
	ID       string   `json:"id"`
	State    JobState `json:"state"`
	TaskID   string   `json:"task_id,omitempty"`
	Checksum string   `json:"checksum,omitempty"`
	Error    string   `json:"error,omitempty"`
}
