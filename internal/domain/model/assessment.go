package model

import "time"

// AssessmentRequest is everything needed to run one assessment.
type AssessmentRequest struct {
	ProfileID string `json:"profile_id"`
	// QuestionnaireID links the report to an already stored questionnaire.
	// When empty, Answers are stored as a new questionnaire record.
	QuestionnaireID string     `json:"questionnaire_id,omitempty"`
	Answers         Answers    `json:"answers"`
	Images          []ImageRef `json:"images,omitempty"`
	UserInfo        *UserInfo  `json:"user_info,omitempty"`
	// IdempotencyKey rejects replays of the same submission.
	IdempotencyKey string `json:"-"`
}

// JobStatus is the lifecycle state of a queued assessment.
type JobStatus string

// Job states.
const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// AssessmentJob is a queued assessment.
type AssessmentJob struct {
	ID         string
	Request    AssessmentRequest
	EnqueuedAt time.Time
}

// JobState is the externally visible status of a job.
type JobState struct {
	ID        string    `json:"job_id"`
	ProfileID string    `json:"profile_id"`
	Status    JobStatus `json:"status"`
	ReportID  string    `json:"report_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
