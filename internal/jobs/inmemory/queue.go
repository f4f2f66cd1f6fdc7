package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/rs/zerolog"
)

// DefaultWorkers is the number of goroutines Start launches when none is configured.
const DefaultWorkers = 5

// Queue is an in-memory implementation of job publisher and consumer.
// It uses a buffered channel for job distribution and is safe for concurrent use.
// Jobs still buffered when the queue stops are marked as failed.
type Queue struct {
	jobChan   chan *jobs.ReportJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	log       zerolog.Logger
	closed    bool
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can wait before PublishReport refuses more.
func NewQueue(bufferSize, workers int, store jobs.JobStore, log zerolog.Logger) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		jobChan:   make(chan *jobs.ReportJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		log:       log,
	}
}

// PublishReport implements the Publisher interface. It never waits: a full
// buffer yields jobs.ErrQueueFull.
func (q *Queue) PublishReport(ctx context.Context, job *jobs.ReportJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	default:
		return jobs.ErrQueueFull
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	q.log.Info().Int("workers", q.workers).Msg("report queue started")
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			jobs.Run(ctx, q.store, job, handler, q.log)
		}
	}
}

// Stop implements the Consumer interface.
// It waits for in-flight jobs, then fails whatever is still buffered.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.drain(ctx)
	return nil
}

func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case job := <-q.jobChan:
			if err := jobs.Fail(ctx, q.store, job.TaskID, "queue shut down before the job started"); err != nil {
				q.log.Error().Err(err).Str("task_id", job.TaskID).Msg("failed to mark queued job as failed")
				continue
			}
			q.log.Warn().Str("task_id", job.TaskID).Msg("queued job failed at shutdown")
		default:
			return
		}
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
