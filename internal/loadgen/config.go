// Package loadgen generates fake sync jobs and drives them against a running
// chunisync service.
package loadgen

import (
	"time"

	"github.com/okian/chunisync/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Jobs     int           // Number of sync jobs to submit
	Players  int           // Distinct players the jobs are spread over
	Records  int           // Best records per job
	Workers  int           // Concurrent submitters
	Timeout  time.Duration // HTTP request timeout
	Seed     uint64        // Generator seed; runs with the same seed are identical
	Wait     time.Duration // How long to poll for jobs to settle; 0 skips polling
	TopN     int           // Best entries fetched per player after the run
	Verbose  bool          // Log each failed request
	Charts   []model.Chart // Charts records are drawn from; empty uses synthetic ids
	JobPrefix string       // Prefix for generated job ids
}

// Stats holds run statistics.
type Stats struct {
	JobsGenerated int
	JobsSubmitted int
	JobsAccepted  int
	JobsDuplicate int
	JobsRejected  int // answered 429
	JobsFailed    int

	// Final states observed while polling.
	States map[model.JobState]int

	PlayersChecked int
	BestEntries    int

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Outcome is the result of posting one job.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)
