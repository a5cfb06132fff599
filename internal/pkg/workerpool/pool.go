package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paulexconde/surveysense/pkg/log"
)

var ErrClosed = errors.New("workerpool: pool is shut down")

type Job func(ctx context.Context)

type WorkerPool struct {
	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts workerCount workers reading from a queue of
// queueSize jobs. Workers stop when ctx is done or the pool is shut down.
func NewWorkerPool(ctx context.Context, workerCount int, queueSize int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	pool := &WorkerPool{
		queue: make(chan Job, queueSize),
	}

	for range workerCount {
		go pool.worker(ctx)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	for job := range p.queue {
		if ctx.Err() == nil {
			job(ctx)
		}
		p.wg.Done()
	}
}

// Submit queues job, blocking while the queue is full. It fails with the
// context's error if ctx ends first and with ErrClosed after Shutdown.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	p.wg.Add(1)
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}
}

// Wait blocks until every submitted job has finished.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		log.Warnf("workerpool: shutdown timed out: %v", ctx.Err())
	case <-done:
		log.Debug("workerpool: shutdown complete")
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithRetry runs job up to retries times, waiting delay between attempts.
// It stops early on success, on a Permanent error or when ctx ends, and
// returns the last error with any Permanent mark removed.
func WithRetry(retries int, delay time.Duration, job func(ctx context.Context) error) func(ctx context.Context) error {
	if retries < 1 {
		retries = 1
	}

	return func(ctx context.Context) error {
		var err error
		for i := range retries {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if err = job(ctx); err == nil {
				return nil
			}

			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}

			log.Warnf("workerpool: job failed (attempt %d/%d): %v", i+1, retries, err)
			if i == retries-1 {
				break
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		log.Errorf("workerpool: job failed after %d attempts", retries)
		return err
	}
}
