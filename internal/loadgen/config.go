// Package loadgen drives a running service with generated assessments and
// checks that every stored report matches the local rule engine.
package loadgen

import (
	"time"

	"github.com/okian/follicle/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Profiles       int           // Number of profiles to create
	Assessments    int           // Number of assessments to submit
	Workers        int           // Number of concurrent workers
	DuplicateEvery int           // Replay every Nth submission's idempotency key; 0 disables
	Timeout        time.Duration // HTTP request timeout
	Token          string        // Bearer token, if the service requires auth
	OutputFile     string        // Output file for generated submissions
	Verbose        bool          // Log every failure
}

// Submission is one generated assessment.
type Submission struct {
	Index     int           `json:"index"`
	ProfileID string        `json:"profile_id"`
	Key       string        `json:"idempotency_key"`
	Answers   model.Answers `json:"answers"`
	Replay    bool          `json:"replay"`
}

// Result is the outcome of submitting one Submission.
type Result struct {
	Status int
	Record model.ReportRecord
	Err    error
}

// Stats holds run statistics.
type Stats struct {
	Profiles   int
	Generated  int
	Submitted  int
	Created    int
	Duplicate  int
	Failed     int
	Mismatched int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
