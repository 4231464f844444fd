// Package jobs defines the queue abstractions used by the webhook trigger.
// Webhook requests acknowledge fast and hand the actual mailbox run to a
// background worker through these interfaces.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeProcessAccount represents a full mailbox processing run.
	JobTypeProcessAccount JobType = "process_account"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ProcessAccountJob is a queued mailbox processing run for one account.
type ProcessAccountJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Account is the Gmail account identifier to process.
	Account string `json:"account"`

	// Trigger records what scheduled the run ("webhook", "manual").
	Trigger string `json:"trigger"`

	// HistoryID is the Gmail history id from the push notification, when
	// the job was scheduled by one.
	HistoryID uint64 `json:"history_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ProcessAccountJob) GetID() string { return j.JobID }

func (j *ProcessAccountJob) GetType() JobType { return JobTypeProcessAccount }

func (j *ProcessAccountJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue.
// The abstraction allows swapping the in-memory queue for Cloud Tasks or
// Pub/Sub without touching the handlers.
type Publisher interface {
	// PublishProcessAccount publishes a mailbox processing job.
	PublishProcessAccount(ctx context.Context, job *ProcessAccountJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	SaveJob(ctx context.Context, job *ProcessAccountJob) error
	GetJob(ctx context.Context, jobID string) (*ProcessAccountJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessAccountJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Account filters jobs by account identifier.
	Account string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
