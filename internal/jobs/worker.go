package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultLease        = 5 * time.Minute
)

type WorkerPool struct {
	repo        *Repository
	handlers    map[string]Handler
	logger      *slog.Logger
	workerCount int
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// PollInterval is the idle wait between empty fetches.
	PollInterval time.Duration
	// Backoff computes the delay before retry attempt n.
	Backoff func(attempt int) time.Duration
	// Lease bounds a handler run. A job still running after it is
	// reclaimed by the next fetch.
	Lease time.Duration
}

func NewWorkerPool(repo *Repository, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	if handlers == nil {
		handlers = map[string]Handler{}
	}
	return &WorkerPool{
		repo:         repo,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		stop:         make(chan struct{}),
		PollInterval: defaultPollInterval,
		Backoff:      BackoffDuration,
		Lease:        defaultLease,
	}
}

// Register installs h for jobs of type typ. It must be called before Start.
func (p *WorkerPool) Register(typ string, h Handler) {
	p.handlers[typ] = h
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// wait sleeps for d unless the pool is stopped first.
func (p *WorkerPool) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.repo.FetchNext(ctx, p.Lease)
		if err != nil {
			p.logger.Error("fetch job", "err", err)
			if !p.wait(ctx, time.Second) {
				return
			}
			continue
		}
		if job == nil {
			// nothing to do
			if !p.wait(ctx, p.PollInterval) {
				return
			}
			continue
		}
		p.process(ctx, job)
	}
}

func (p *WorkerPool) process(ctx context.Context, job *Job) {
	// outcomes are persisted even when ctx was canceled mid-run
	store := context.WithoutCancel(ctx)

	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = StatusFailed
		job.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(store, job); err != nil {
			p.logger.Error("move to dead letter", "err", err)
		}
		return
	}

	err := p.run(ctx, h, job)
	if err == nil {
		job.Status = StatusDone
		if upErr := p.repo.UpdateJob(store, job); upErr != nil {
			p.logger.Error("mark job done", "job_id", job.ID, "err", upErr)
		}
		return
	}

	if ctx.Err() != nil {
		// shutdown interrupted the handler; hand the job back without
		// charging an attempt
		job.Status = StatusRetry
		job.NextTryAt = nil
		job.LastError = err.Error()
		if upErr := p.repo.UpdateJob(store, job); upErr != nil {
			p.logger.Error("requeue interrupted job", "job_id", job.ID, "err", upErr)
		}
		return
	}

	// handler returned error
	job.Attempts++
	job.LastError = err.Error()
	p.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "attempt", job.Attempts, "err", err)
	if job.Attempts >= job.MaxAttempts {
		// move to dead letter
		job.Status = StatusFailed
		if mvErr := p.repo.MoveToDeadLetter(store, job); mvErr != nil {
			p.logger.Error("move to dead letter", "err", mvErr)
		}
		return
	}
	// schedule retry with backoff
	t := time.Now().Add(p.Backoff(job.Attempts))
	job.NextTryAt = &t
	job.Status = StatusRetry
	if upErr := p.repo.UpdateJob(store, job); upErr != nil {
		p.logger.Error("update job for retry", "job_id", job.ID, "err", upErr)
	}
}

// run invokes h, converting a panic into an error so the job is retried.
func (p *WorkerPool) run(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if p.Lease > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Lease)
		defer cancel()
	}
	return h(ctx, job)
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	j := &Job{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return p.repo.Enqueue(ctx, j)
}
