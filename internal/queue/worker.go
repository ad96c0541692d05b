package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler processes one job.
type Handler func(ctx context.Context, job Job) error

// Worker drains a queue until its context is cancelled.
type Worker struct {
	queue      Queue
	handle     Handler
	jobTimeout time.Duration
	backoff    time.Duration
	workers    int
	log        *slog.Logger
}

func NewWorker(q Queue, h Handler, jobTimeout time.Duration, log *slog.Logger) *Worker {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{queue: q, handle: h, jobTimeout: jobTimeout, backoff: time.Second, workers: 1, log: log}
}

// WithConcurrency sets how many goroutines drain the queue. Values below one
// are treated as one.
func (w *Worker) WithConcurrency(n int) *Worker {
	if n < 1 {
		n = 1
	}
	w.workers = n
	return w
}

// Run blocks until ctx is done and every drain loop has returned. A failing
// job is logged and dropped; it never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("starting queue worker", "concurrency", w.workers)
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.drain(ctx, w.log.With("slot", slot))
		}(i)
	}
	wg.Wait()
	w.log.Info("queue worker stopped")
	return nil
}

func (w *Worker) drain(ctx context.Context, log *slog.Logger) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrClosed) {
			log.Info("queue closed, worker exiting")
			return
		}
		if err != nil {
			log.Error("dequeue failed", "err", err)
			select {
			case <-time.After(w.backoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		w.process(ctx, log, job)
	}
}

func (w *Worker) process(ctx context.Context, log *slog.Logger, job Job) {
	log = log.With("job_id", job.ID, "campaign_id", job.CampaignID, "lead_id", job.LeadID)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return w.handle(jobCtx, job)
	}()
	if err != nil {
		log.Error("job failed", "err", err, "queued_for", time.Since(job.EnqueuedAt).String())
		return
	}
	log.Debug("job done")
}
