package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/logger"
	"github.com/rs/zerolog"
)

// Run executes handler for one job and records the outcome. It is the only
// code path that writes a terminal status for a dequeued job. Panics in the
// handler are recovered and recorded as failures.
func Run(ctx context.Context, store JobStore, job *ReportJob, handler JobHandler, log zerolog.Logger) {
	log = log.With().Str("task_id", job.TaskID).Str("month", job.Month).Logger()
	ctx = logger.WithContext(ctx, log)

	if err := store.MarkStarted(ctx, job.TaskID, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Msg("could not mark job as started")
	}

	result, err := safeCall(ctx, handler, job)

	status, errMsg := JobStatusSuccess, ""
	if err == nil && (result == nil || result.Filename == "") {
		err = fmt.Errorf("handler returned no result")
	}
	if err != nil {
		status, errMsg, result = JobStatusFailure, err.Error(), nil
	}

	if cerr := store.CompleteJob(context.WithoutCancel(ctx), job.TaskID, status, result, errMsg, time.Now().UTC()); cerr != nil {
		if errors.Is(cerr, ErrJobAlreadyTerminal) {
			log.Warn().Msg("job was already completed elsewhere")
			return
		}
		log.Error().Err(cerr).Msg("failed to record job outcome")
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("report job failed")
		return
	}
	log.Info().Str("filename", result.Filename).Msg("report job succeeded")
}

// Fail records a job that will never run, such as one still queued at shutdown.
func Fail(ctx context.Context, store JobStore, taskID, reason string) error {
	err := store.CompleteJob(context.WithoutCancel(ctx), taskID, JobStatusFailure, nil, reason, time.Now().UTC())
	if err != nil && !errors.Is(err, ErrJobAlreadyTerminal) {
		return fmt.Errorf("Fail: complete job %s: %w", taskID, err)
	}
	return nil
}

func safeCall(ctx context.Context, handler JobHandler, job *ReportJob) (result *ReportResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, job)
}
