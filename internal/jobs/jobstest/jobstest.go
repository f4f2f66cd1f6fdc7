// Package jobstest holds behaviour checks every jobs.JobStore must pass.
package jobstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) jobs.JobStore

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// PendingJob builds a job as the orchestrator would submit it.
func PendingJob(id, user string, created time.Time) *jobs.ReportJob {
	return &jobs.ReportJob{TaskID: id, UserID: user, Month: "March 2024", Status: jobs.JobStatusPending, CreatedAt: created}
}

// Run exercises a job store against the jobs.JobStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("get unknown", func(t *testing.T) { testGetUnknown(t, newStore(t)) })
	t.Run("round trip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("complete is compare and set", func(t *testing.T) { testCompareAndSet(t, newStore(t)) })
	t.Run("list filters", func(t *testing.T) { testListFilters(t, newStore(t)) })
	t.Run("purge", func(t *testing.T) { testPurge(t, newStore(t)) })
}

func testGetUnknown(t *testing.T, s jobs.JobStore) {
	ctx := context.Background()
	if _, err := s.GetJob(ctx, "missing"); !domain.IsNotFound(err) {
		t.Errorf("GetJob: expected NotFoundError, got %v", err)
	}
	if err := s.CompleteJob(ctx, "missing", jobs.JobStatusFailure, nil, "", base); !domain.IsNotFound(err) {
		t.Errorf("CompleteJob: expected NotFoundError, got %v", err)
	}
}

func testRoundTrip(t *testing.T, s jobs.JobStore) {
	ctx := context.Background()
	if err := s.SaveJob(ctx, PendingJob("t1", "u1", base)); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	started := base.Add(time.Second)
	if err := s.MarkStarted(ctx, "t1", started); err != nil {
		t.Fatalf("MarkStarted failed: %v", err)
	}

	got, err := s.GetJob(ctx, "t1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.UserID != "u1" || got.Month != "March 2024" || got.Status != jobs.JobStatusPending {
		t.Errorf("unexpected job: %+v", got)
	}
	if !got.CreatedAt.Equal(base) || got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("timestamps did not round trip: %+v", got)
	}
	if got.Result != nil || got.CompletedAt != nil {
		t.Errorf("pending job has terminal fields: %+v", got)
	}
}

func testCompareAndSet(t *testing.T, s jobs.JobStore) {
	ctx := context.Background()
	_ = s.SaveJob(ctx, PendingJob("t1", "u1", base))

	if err := s.CompleteJob(ctx, "t1", jobs.JobStatusPending, nil, "", base); err == nil {
		t.Error("expected an error when completing with a non-terminal status")
	}
	if err := s.CompleteJob(ctx, "t1", jobs.JobStatusSuccess, &jobs.ReportResult{Filename: "a.pdf"}, "", base); err != nil {
		t.Fatalf("first CompleteJob failed: %v", err)
	}
	err := s.CompleteJob(ctx, "t1", jobs.JobStatusFailure, nil, "late", base)
	if !errors.Is(err, jobs.ErrJobAlreadyTerminal) {
		t.Fatalf("expected ErrJobAlreadyTerminal, got %v", err)
	}
	if err := s.MarkStarted(ctx, "t1", base); !errors.Is(err, jobs.ErrJobAlreadyTerminal) {
		t.Errorf("MarkStarted on finished job: got %v", err)
	}

	got, _ := s.GetJob(ctx, "t1")
	if got.Status != jobs.JobStatusSuccess || got.Result == nil || got.Result.Filename != "a.pdf" || got.Error != "" {
		t.Errorf("terminal state was overwritten: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}
}

func testListFilters(t *testing.T, s jobs.JobStore) {
	ctx := context.Background()
	_ = s.SaveJob(ctx, PendingJob("t1", "u1", base))
	_ = s.SaveJob(ctx, PendingJob("t2", "u2", base.Add(time.Minute)))
	_ = s.SaveJob(ctx, PendingJob("t3", "u1", base.Add(2*time.Minute)))
	_ = s.CompleteJob(ctx, "t3", jobs.JobStatusSuccess, &jobs.ReportResult{Filename: "r3.pdf"}, "", base)

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all", jobs.JobFilter{}, []string{"t1", "t2", "t3"}},
		{"by user", jobs.JobFilter{UserID: "u1"}, []string{"t1", "t3"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusPending}, []string{"t1", "t2"}},
		{"by filename", jobs.JobFilter{Filename: "r3.pdf"}, []string{"t3"}},
		{"limit and offset", jobs.JobFilter{Offset: 1, Limit: 1}, []string{"t2"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].TaskID != id {
					t.Errorf("job %d = %s, want %s", i, got[i].TaskID, id)
				}
			}
		})
	}
}

func testPurge(t *testing.T, s jobs.JobStore) {
	ctx := context.Background()
	_ = s.SaveJob(ctx, PendingJob("done-old", "u1", base))
	_ = s.SaveJob(ctx, PendingJob("done-new", "u1", base))
	_ = s.SaveJob(ctx, PendingJob("pending", "u1", base))
	_ = s.CompleteJob(ctx, "done-old", jobs.JobStatusFailure, nil, "boom", base)
	_ = s.CompleteJob(ctx, "done-new", jobs.JobStatusFailure, nil, "boom", base.Add(48*time.Hour))

	purged, err := s.PurgeJobs(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeJobs failed: %v", err)
	}
	if len(purged) != 1 || purged[0].TaskID != "done-old" {
		t.Fatalf("unexpected purge result: %+v", purged)
	}
	if _, err := s.GetJob(ctx, "done-old"); !domain.IsNotFound(err) {
		t.Errorf("purged job still readable: %v", err)
	}
	if _, err := s.GetJob(ctx, "pending"); err != nil {
		t.Errorf("pending job should survive purge: %v", err)
	}
	if _, err := s.GetJob(ctx, "done-new"); err != nil {
		t.Errorf("recent job should survive purge: %v", err)
	}
}
