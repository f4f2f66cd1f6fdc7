package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
)

// DefaultPollInterval is how often a Poller asks for job status.
const DefaultPollInterval = 2 * time.Second

// StatusFunc fetches the current state of a report job.
type StatusFunc func(ctx context.Context, taskID string) (*jobs.ReportJob, error)

// Poller watches one report job until it reaches a terminal state. It is
// bound to a context: cancelling the context stops it.
type Poller struct {
	status   StatusFunc
	interval time.Duration
}

// NewPoller creates a Poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(status StatusFunc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{status: status, interval: interval}
}

// Wait polls taskID until its job is SUCCESS or FAILURE, the context ends or
// a status call fails. onUpdate, if set, sees every observed state.
// A FAILURE is returned as domain.ErrJobFailure alongside the job.
func (p *Poller) Wait(ctx context.Context, taskID string, onUpdate func(*jobs.ReportJob)) (*jobs.ReportJob, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.status(ctx, taskID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("poll %s: %w", taskID, err)
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		switch job.Status {
		case jobs.JobStatusSuccess:
			return job, nil
		case jobs.JobStatusFailure:
			return job, domain.ErrJobFailure
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForReport polls taskID with the client's session and downloads the
// PDF once the job succeeds.
func (c *Client) WaitForReport(ctx context.Context, taskID string, interval time.Duration) (string, []byte, error) {
	job, err := NewPoller(c.ReportStatus, interval).Wait(ctx, taskID, nil)
	if err != nil {
		return "", nil, err
	}
	if job.Result == nil {
		return "", nil, errors.New("finished job carries no result")
	}
	data, err := c.DownloadReport(ctx, job.Result.Filename)
	if err != nil {
		return "", nil, err
	}
	return job.Result.Filename, data, nil
}
