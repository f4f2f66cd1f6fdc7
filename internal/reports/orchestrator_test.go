package reports

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/artifacts"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/dvloznov/finance-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/finance-analytics/internal/ledger/memory"
	"github.com/rs/zerolog"
)

type harness struct {
	orch      *Orchestrator
	store     *inmemory.Store
	artifacts *artifacts.DirStore
}

func seedLedger(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	l := memory.NewStore()
	snap := testSnapshot(t)
	_ = l.CreateUser(ctx, &snap.User)
	_ = l.CreateUser(ctx, &domain.User{ID: "u2", Username: "mallory"})
	for _, c := range snap.Categories {
		c := c
		_ = l.CreateCategory(ctx, &c)
	}
	if err := l.CreateTransactions(ctx, snap.Transactions); err != nil {
		t.Fatalf("seed transactions: %v", err)
	}
	b := snap.Budgets[0]
	_ = l.CreateBudget(ctx, &b)
	return l
}

func newHarness(t *testing.T, handler func(g *Generator) jobs.JobHandler) *harness {
	t.Helper()
	dir, err := artifacts.NewDirStore(filepath.Join(t.TempDir(), "reports"))
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(8, 2, store, zerolog.Nop())
	gen := NewGenerator(seedLedger(t), dir)

	ctx, cancel := context.WithCancel(context.Background())
	if err := queue.Start(ctx, handler(gen)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		queue.Stop(context.Background())
		cancel()
	})

	return &harness{
		orch:      NewOrchestrator(store, queue, dir, zerolog.Nop()),
		store:     store,
		artifacts: dir,
	}
}

func (h *harness) waitTerminal(t *testing.T, user, taskID string) *jobs.ReportJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.orch.Poll(context.Background(), user, taskID)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never finished", taskID)
	return nil
}

func generate(g *Generator) jobs.JobHandler { return g.Handle }

func TestOrchestrator_SubmitPollFetch(t *testing.T) {
	h := newHarness(t, generate)
	ctx := context.Background()

	job, err := h.orch.Submit(ctx, "u1", "March 2024")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.TaskID == "" || job.Status != jobs.JobStatusPending || job.Month != "March 2024" {
		t.Fatalf("unexpected submitted job: %+v", job)
	}

	done := h.waitTerminal(t, "u1", job.TaskID)
	if done.Status != jobs.JobStatusSuccess || done.Result == nil {
		t.Fatalf("expected SUCCESS with a result, got %+v (error %q)", done, done.Error)
	}

	name, data, err := h.orch.Fetch(ctx, "u1", done.Result.Filename)
	if err != nil {
		t.Fatalf("Fetch by filename failed: %v", err)
	}
	if name != done.Result.Filename || len(data) == 0 || string(data[:5]) != "%PDF-" {
		t.Errorf("unexpected artifact %q (%d bytes)", name, len(data))
	}

	if _, _, err := h.orch.Fetch(ctx, "u1", job.TaskID); err != nil {
		t.Errorf("Fetch by task id failed: %v", err)
	}

	again, err := h.orch.Poll(ctx, "u1", job.TaskID)
	if err != nil || again.Status != jobs.JobStatusSuccess {
		t.Errorf("polling a finished job should be repeatable: %+v, %v", again, err)
	}
}

func TestOrchestrator_ForeignAndUnknownTasks(t *testing.T) {
	h := newHarness(t, generate)
	ctx := context.Background()

	job, err := h.orch.Submit(ctx, "u1", "2024-03")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	done := h.waitTerminal(t, "u1", job.TaskID)

	if _, err := h.orch.Poll(ctx, "u2", job.TaskID); !domain.IsNotFound(err) {
		t.Errorf("foreign poll: expected NotFoundError, got %v", err)
	}
	if _, err := h.orch.Poll(ctx, "u1", "no-such-task"); !domain.IsNotFound(err) {
		t.Errorf("unknown poll: expected NotFoundError, got %v", err)
	}
	if _, _, err := h.orch.Fetch(ctx, "u2", done.Result.Filename); !domain.IsNotFound(err) {
		t.Errorf("foreign fetch: expected NotFoundError, got %v", err)
	}
	if _, _, err := h.orch.Fetch(ctx, "u1", "../../etc/passwd"); err == nil {
		t.Error("expected path-like names to be rejected")
	}
}

func TestOrchestrator_InvalidMonth(t *testing.T) {
	h := newHarness(t, generate)
	_, err := h.orch.Submit(context.Background(), "u1", "someday")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	all, _ := h.store.ListJobs(context.Background(), jobs.JobFilter{})
	if len(all) != 0 {
		t.Errorf("no job should be recorded for a bad month, got %d", len(all))
	}
}

func TestOrchestrator_FailedJobIsNotReady(t *testing.T) {
	h := newHarness(t, func(*Generator) jobs.JobHandler {
		return func(ctx context.Context, job *jobs.ReportJob) (*jobs.ReportResult, error) {
			return nil, errors.New("disk full")
		}
	})
	ctx := context.Background()

	job, err := h.orch.Submit(ctx, "u1", "Jan 2024")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	done := h.waitTerminal(t, "u1", job.TaskID)
	if done.Status != jobs.JobStatusFailure || done.Result != nil {
		t.Fatalf("expected FAILURE without result, got %+v", done)
	}
	if _, _, err := h.orch.Fetch(ctx, "u1", job.TaskID); !errors.Is(err, domain.ErrReportNotReady) {
		t.Errorf("expected ErrReportNotReady, got %v", err)
	}
}

func TestOrchestrator_PendingJobIsNotReady(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(*Generator) jobs.JobHandler {
		return func(ctx context.Context, job *jobs.ReportJob) (*jobs.ReportResult, error) {
			<-release
			return &jobs.ReportResult{Filename: "late.pdf"}, nil
		}
	})
	ctx := context.Background()

	job, err := h.orch.Submit(ctx, "u1", "Jan 2024")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, _, err := h.orch.Fetch(ctx, "u1", job.TaskID); !errors.Is(err, domain.ErrReportNotReady) {
		t.Errorf("expected ErrReportNotReady while pending, got %v", err)
	}
	close(release)
	h.waitTerminal(t, "u1", job.TaskID)
}

type closedPublisher struct{}

func (closedPublisher) PublishReport(ctx context.Context, job *jobs.ReportJob) error {
	return errors.New("queue is closed")
}
func (closedPublisher) Close() error { return nil }

func TestOrchestrator_EnqueueFailureFailsJob(t *testing.T) {
	store := inmemory.NewStore()
	orch := NewOrchestrator(store, closedPublisher{}, nil, zerolog.Nop())

	if _, err := orch.Submit(context.Background(), "u1", "March 2024"); err == nil {
		t.Fatal("expected Submit to fail")
	}
	all, _ := store.ListJobs(context.Background(), jobs.JobFilter{})
	if len(all) != 1 || all[0].Status != jobs.JobStatusFailure {
		t.Errorf("the unqueued job must not stay pending: %+v", all)
	}
}

func TestOrchestrator_FullQueueFailsJob(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(1, 1, store, zerolog.Nop())
	defer queue.Close()
	orch := NewOrchestrator(store, queue, nil, zerolog.Nop())
	ctx := context.Background()

	first, err := orch.Submit(ctx, "u1", "March 2024")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := orch.Submit(ctx, "u1", "April 2024"); !errors.Is(err, jobs.ErrQueueFull) {
		t.Fatalf("Submit on a full queue = %v, want ErrQueueFull", err)
	}

	all, _ := store.ListJobs(ctx, jobs.JobFilter{})
	if len(all) != 2 {
		t.Fatalf("got %d jobs, want 2", len(all))
	}
	for _, j := range all {
		want := jobs.JobStatusFailure
		if j.TaskID == first.TaskID {
			want = jobs.JobStatusPending
		}
		if j.Status != want {
			t.Errorf("job %s (%s) status = %s, want %s", j.TaskID, j.Month, j.Status, want)
		}
	}
}

func TestOrchestrator_Sweep(t *testing.T) {
	h := newHarness(t, generate)
	ctx := context.Background()

	job, err := h.orch.Submit(ctx, "u1", "March 2024")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	done := h.waitTerminal(t, "u1", job.TaskID)

	if n, err := h.orch.Sweep(ctx, time.Hour); err != nil || n != 0 {
		t.Fatalf("fresh jobs must survive: n=%d err=%v", n, err)
	}

	h.orch.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	n, err := h.orch.Sweep(ctx, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1, nil", n, err)
	}
	if _, err := h.orch.Poll(ctx, "u1", job.TaskID); !domain.IsNotFound(err) {
		t.Errorf("purged job still visible: %v", err)
	}
	if _, err := h.artifacts.Get(ctx, done.Result.Filename); !domain.IsNotFound(err) {
		t.Errorf("artifact should be deleted with its job: %v", err)
	}
}
