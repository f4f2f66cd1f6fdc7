package amqp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/dvloznov/finance-analytics/internal/jobs/inmemory"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type fakeAcknowledger struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeued int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	if requeue {
		f.requeued++
	}
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func delivery(t *testing.T, ack amqp091.Acknowledger, taskID string) amqp091.Delivery {
	t.Helper()
	body, err := NewReportMessage(taskID).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	return amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

func TestStop_LetsJobInProgressFinish(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()
	job := &jobs.ReportJob{TaskID: "t1", UserID: "u1", Month: "January 2024", Status: jobs.JobStatusPending, CreatedAt: time.Now()}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	c := &Client{queueName: "reports", store: store, log: zerolog.Nop()}
	ack := &fakeAcknowledger{}
	msgs := make(chan amqp091.Delivery, 1)
	msgs <- delivery(t, ack, job.TaskID)

	started := make(chan struct{})
	release := make(chan struct{})
	handler := func(ctx context.Context, job *jobs.ReportJob) (*jobs.ReportResult, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &jobs.ReportResult{Filename: "report.pdf"}, nil
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	c.startLoop(loopCtx, msgs, handler)
	<-started

	// Shutdown begins while the job is running.
	cancelLoop()
	close(release)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got, err := store.GetJob(ctx, job.TaskID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != jobs.JobStatusSuccess || got.Result == nil || got.Result.Filename != "report.pdf" {
		t.Errorf("job = %+v, want SUCCESS with report.pdf", got)
	}
	ack.mu.Lock()
	defer ack.mu.Unlock()
	if ack.acks != 1 || ack.nacks != 0 {
		t.Errorf("acks=%d nacks=%d, want one ack", ack.acks, ack.nacks)
	}
}

func TestHandleDelivery_TerminalJobIsAcked(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()
	job := &jobs.ReportJob{TaskID: "t2", UserID: "u1", Month: "January 2024", Status: jobs.JobStatusFailure, CreatedAt: time.Now()}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	c := &Client{store: store, log: zerolog.Nop()}
	ack := &fakeAcknowledger{}
	called := false
	c.handleDelivery(ctx, delivery(t, ack, job.TaskID), func(context.Context, *jobs.ReportJob) (*jobs.ReportResult, error) {
		called = true
		return nil, nil
	})

	if called {
		t.Error("handler ran for a job that already finished")
	}
	if ack.acks != 1 {
		t.Errorf("acks = %d, want 1", ack.acks)
	}
}

func TestHandleDelivery_BadMessageIsDropped(t *testing.T) {
	c := &Client{store: inmemory.NewStore(), log: zerolog.Nop()}
	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{}")}, nil)
	if ack.nacks != 1 || ack.requeued != 0 {
		t.Errorf("nacks=%d requeued=%d, want one nack without requeue", ack.nacks, ack.requeued)
	}
}
