package jobs

import (
	"context"
	"errors"
	"time"
)

// JobStatus represents the current status of a report job.
// A job moves from pending to exactly one terminal status and never back.
type JobStatus string

const (
	// JobStatusPending indicates the job is queued or running.
	JobStatusPending JobStatus = "PENDING"
	// JobStatusSuccess indicates the report was generated and stored.
	JobStatusSuccess JobStatus = "SUCCESS"
	// JobStatusFailure indicates the job failed. The cause is kept server side.
	JobStatusFailure JobStatus = "FAILURE"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailure
}

// ErrJobAlreadyTerminal is returned when a second terminal write is attempted.
var ErrJobAlreadyTerminal = errors.New("job already in a terminal state")

// ErrQueueFull is returned by a publisher that has no room for another job.
var ErrQueueFull = errors.New("report queue is full")

// ReportJob represents a request to render the monthly report for one user.
type ReportJob struct {
	// TaskID is the unique identifier handed back to the client.
	TaskID string `json:"task_id"`

	// UserID owns the job. Other users cannot see it.
	UserID string `json:"-"`

	// Month is the normalized month label, e.g. "January 2024".
	Month string `json:"month"`

	// Status is the current status of the job.
	Status JobStatus `json:"task_status"`

	// Result is set only when Status is SUCCESS.
	Result *ReportResult `json:"result,omitempty"`

	// CreatedAt is when the job was submitted.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when a worker picked the job up.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the failure cause for logs. It is never serialized to clients.
	Error string `json:"-"`
}

// ReportResult points at the generated artifact.
type ReportResult struct {
	Filename string `json:"filename"`
}

// Publisher defines the interface for publishing report jobs to a queue.
type Publisher interface {
	// PublishReport enqueues a job that has already been saved as pending.
	PublishReport(ctx context.Context, job *ReportJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming report jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs. The handler is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler does the work for one job and returns its result.
// The consumer, not the handler, writes the terminal status.
type JobHandler func(ctx context.Context, job *ReportJob) (*ReportResult, error)

// JobStore defines the interface for storing and retrieving job state.
type JobStore interface {
	// SaveJob inserts or replaces a job.
	SaveJob(ctx context.Context, job *ReportJob) error

	// GetJob retrieves a job by ID. Unknown IDs yield a domain.NotFoundError.
	GetJob(ctx context.Context, taskID string) (*ReportJob, error)

	// ListJobs retrieves jobs with optional filtering, oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReportJob, error)

	// MarkStarted records when a worker picked up a pending job.
	MarkStarted(ctx context.Context, taskID string, at time.Time) error

	// CompleteJob moves a pending job to a terminal status. It fails with
	// ErrJobAlreadyTerminal when the job has already finished.
	CompleteJob(ctx context.Context, taskID string, status JobStatus, result *ReportResult, errMsg string, at time.Time) error

	// PurgeJobs deletes terminal jobs completed before cutoff and returns them.
	PurgeJobs(ctx context.Context, cutoff time.Time) ([]*ReportJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by owner.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Filename filters jobs by result filename.
	Filename string

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// Matches reports whether a job passes the filter.
func (f JobFilter) Matches(job *ReportJob) bool {
	if f.UserID != "" && job.UserID != f.UserID {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.Filename != "" && (job.Result == nil || job.Result.Filename != f.Filename) {
		return false
	}
	return true
}
