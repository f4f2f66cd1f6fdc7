package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
)

// Store is an in-memory implementation of JobStore.
// It is safe for concurrent use and hands out copies only.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ReportJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.ReportJob),
	}
}

func copyJob(job *jobs.ReportJob) *jobs.ReportJob {
	c := *job
	if job.Result != nil {
		r := *job.Result
		c.Result = &r
	}
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ReportJob) error {
	if job.TaskID == "" {
		return fmt.Errorf("SaveJob: task ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.TaskID] = copyJob(job)
	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, taskID string) (*jobs.ReportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[taskID]
	if !exists {
		return nil, &domain.NotFoundError{Resource: "task", ID: taskID}
	}
	return copyJob(job), nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ReportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ReportJob
	for _, job := range s.jobs {
		if filter.Matches(job) {
			result = append(result, copyJob(job))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].TaskID < result[j].TaskID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ReportJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// MarkStarted implements the JobStore interface.
func (s *Store) MarkStarted(ctx context.Context, taskID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[taskID]
	if !exists {
		return &domain.NotFoundError{Resource: "task", ID: taskID}
	}
	if job.Status.IsTerminal() {
		return jobs.ErrJobAlreadyTerminal
	}
	job.StartedAt = &at
	return nil
}

// CompleteJob implements the JobStore interface.
func (s *Store) CompleteJob(ctx context.Context, taskID string, status jobs.JobStatus, result *jobs.ReportResult, errMsg string, at time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("CompleteJob: %s is not a terminal status", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[taskID]
	if !exists {
		return &domain.NotFoundError{Resource: "task", ID: taskID}
	}
	if job.Status.IsTerminal() {
		return jobs.ErrJobAlreadyTerminal
	}

	job.Status = status
	job.Error = errMsg
	job.CompletedAt = &at
	job.Result = nil
	if status == jobs.JobStatusSuccess && result != nil {
		r := *result
		job.Result = &r
	}
	return nil
}

// PurgeJobs implements the JobStore interface.
func (s *Store) PurgeJobs(ctx context.Context, cutoff time.Time) ([]*jobs.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged []*jobs.ReportJob
	for id, job := range s.jobs {
		if !job.Status.IsTerminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		purged = append(purged, job)
		delete(s.jobs, id)
	}
	return purged, nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
