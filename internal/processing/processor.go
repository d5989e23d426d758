// Package processing runs extraction jobs on an in-process worker pool.
// Goroutines drain a buffered channel; the job table records progress so
// callers can poll for the outcome.
package processing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Submit when the buffer is saturated.
var ErrQueueFull = errors.New("processing queue full")

// Handler does the work for one job. A nil error marks it done.
type Handler func(ctx context.Context, job Job) error

// Dispatcher schedules an extraction for an invoice.
type Dispatcher interface {
	Dispatch(ctx context.Context, invoiceID int, prompt string) (Job, error)
	Jobs() *Jobs
}

// Pool consumes jobs and updates their lifecycle.
type Pool struct {
	jobs    *Jobs
	handler Handler
	queue   chan string
	workers int
	log     zerolog.Logger
}

// NewPool builds a Pool with queue capacity tied to worker count.
func NewPool(jobs *Jobs, handler Handler, workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		jobs:    jobs,
		handler: handler,
		queue:   make(chan string, workers*4),
		workers: workers,
		log:     log,
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// Jobs returns the job table.
func (p *Pool) Jobs() *Jobs { return p.jobs }

// Dispatch creates a job and submits it.
func (p *Pool) Dispatch(_ context.Context, invoiceID int, prompt string) (Job, error) {
	job := p.jobs.Create(invoiceID, prompt)
	if err := p.Submit(job.ID); err != nil {
		failed, _ := p.jobs.Get(job.ID)
		return failed, err
	}
	return job, nil
}

// Submit queues a job id. When the buffer is full the job is marked failed
// instead of blocking the caller.
func (p *Pool) Submit(jobID string) error {
	select {
	case p.queue <- jobID:
		return nil
	default:
		p.log.Warn().Str("job", jobID).Msg("processing queue full, dropping job")
		_ = p.jobs.Update(jobID, JobFailed, ErrQueueFull.Error())
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.process(ctx, id)
		}
	}
}

func (p *Pool) process(ctx context.Context, id string) {
	job, err := p.jobs.Get(id)
	if err != nil {
		return
	}
	_ = p.jobs.Update(id, JobRunning, "")
	if err := p.run(ctx, job); err != nil {
		p.log.Warn().Err(err).Str("job", id).Int("invoice", job.InvoiceID).Msg("extraction job failed")
		_ = p.jobs.Update(id, JobFailed, err.Error())
		return
	}
	_ = p.jobs.Update(id, JobDone, "")
}

// run shields the worker from handler panics.
func (p *Pool) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return p.handler(ctx, job)
}
