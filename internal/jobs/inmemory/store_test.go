package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/dvloznov/finance-analytics/internal/jobs/jobstest"
)

func pendingJob(id, user string, created time.Time) *jobs.ReportJob {
	return jobstest.PendingJob(id, user, created)
}

func TestStore_Contract(t *testing.T) {
	jobstest.Run(t, func(t *testing.T) jobs.JobStore { return NewStore() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	job := pendingJob("t1", "u1", time.Now())
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	job.Status = jobs.JobStatusSuccess

	got, _ := s.GetJob(ctx, "t1")
	if got.Status != jobs.JobStatusPending {
		t.Errorf("stored job changed through caller's pointer: %s", got.Status)
	}
	got.Month = "changed"
	again, _ := s.GetJob(ctx, "t1")
	if again.Month != "March 2024" {
		t.Error("stored job changed through returned pointer")
	}
}
