package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/artifacts"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Orchestrator owns the client-facing side of report jobs. It never waits on
// a job: Submit returns once the job is queued and Poll is a plain read.
type Orchestrator struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	artifacts artifacts.Store
	log       zerolog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store jobs.JobStore, publisher jobs.Publisher, artifactStore artifacts.Store, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		publisher: publisher,
		artifacts: artifactStore,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the month, records a pending job and queues it. If the
// job cannot be queued it is failed on the spot and the error returned.
func (o *Orchestrator) Submit(ctx context.Context, userID, month string) (*jobs.ReportJob, error) {
	period, err := domain.ParseMonthLabel(month)
	if err != nil {
		return nil, err
	}

	job := &jobs.ReportJob{
		TaskID:    uuid.NewString(),
		UserID:    userID,
		Month:     domain.MonthLabel(period),
		Status:    jobs.JobStatusPending,
		CreatedAt: o.now(),
	}
	if err := o.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("Submit: save job: %w", err)
	}

	if err := o.publisher.PublishReport(ctx, job); err != nil {
		if ferr := jobs.Fail(ctx, o.store, job.TaskID, "enqueue failed: "+err.Error()); ferr != nil {
			o.log.Error().Err(ferr).Str("task_id", job.TaskID).Msg("could not fail unqueued job")
		}
		return nil, fmt.Errorf("Submit: enqueue: %w", err)
	}

	o.log.Info().Str("task_id", job.TaskID).Str("user_id", userID).Str("month", job.Month).Msg("report job submitted")
	return job, nil
}

// Poll returns the current state of a job. Jobs owned by someone else are
// reported as not found.
func (o *Orchestrator) Poll(ctx context.Context, userID, taskID string) (*jobs.ReportJob, error) {
	job, err := o.store.GetJob(ctx, taskID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, &domain.NotFoundError{Resource: "task", ID: taskID}
		}
		return nil, fmt.Errorf("Poll: %w", err)
	}
	if job.UserID != userID {
		return nil, &domain.NotFoundError{Resource: "task", ID: taskID}
	}
	return job, nil
}

// Fetch returns the artifact bytes for a report. ref is either the filename
// of a finished report or the task id of a job; a job that has not succeeded
// yields domain.ErrReportNotReady.
func (o *Orchestrator) Fetch(ctx context.Context, userID, ref string) (string, []byte, error) {
	job, err := o.resolve(ctx, userID, ref)
	if err != nil {
		return "", nil, err
	}
	if job.Status != jobs.JobStatusSuccess || job.Result == nil {
		return "", nil, domain.ErrReportNotReady
	}

	data, err := o.artifacts.Get(ctx, job.Result.Filename)
	if err != nil {
		if domain.IsNotFound(err) {
			return "", nil, &domain.NotFoundError{Resource: "report", ID: ref}
		}
		return "", nil, fmt.Errorf("Fetch: %w", err)
	}
	return job.Result.Filename, data, nil
}

func (o *Orchestrator) resolve(ctx context.Context, userID, ref string) (*jobs.ReportJob, error) {
	if err := artifacts.ValidateName(ref); err != nil {
		return nil, err
	}
	found, err := o.store.ListJobs(ctx, jobs.JobFilter{UserID: userID, Filename: ref, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("Fetch: find job: %w", err)
	}
	if len(found) > 0 {
		return found[0], nil
	}

	job, err := o.Poll(ctx, userID, ref)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, &domain.NotFoundError{Resource: "report", ID: ref}
		}
		return nil, err
	}
	return job, nil
}

// Sweep removes terminal jobs completed more than retention ago, together
// with their artifacts. It returns how many jobs were removed.
func (o *Orchestrator) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	purged, err := o.store.PurgeJobs(ctx, o.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("Sweep: %w", err)
	}

	var errs []error
	for _, job := range purged {
		if job.Result == nil {
			continue
		}
		if err := o.artifacts.Delete(ctx, job.Result.Filename); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", job.Result.Filename, err))
		}
	}
	if len(purged) > 0 {
		o.log.Info().Int("jobs", len(purged)).Msg("expired report jobs purged")
	}
	if len(errs) > 0 {
		return len(purged), fmt.Errorf("Sweep: %w", errors.Join(errs...))
	}
	return len(purged), nil
}

// RunRetention sweeps every interval until ctx is done.
func (o *Orchestrator) RunRetention(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.Sweep(ctx, retention); err != nil {
				o.log.Error().Err(err).Msg("report retention sweep failed")
			}
		}
	}
}
