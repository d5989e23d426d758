// Package queue dispatches extraction jobs through Redis with asynq. The
// payload names the invoice only; the PDF stays in the in-memory registry, so
// the asynq server must run in the same process as the store.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDesk/internal/processing"
)

const (
	// ExtractInvoiceTask is scheduled for every asynchronous extraction.
	ExtractInvoiceTask = "invoice:extract"

	maxRetry = 3
)

// ExtractPayload is serialized into the task payload.
type ExtractPayload struct {
	JobID     string `json:"job_id"`
	InvoiceID int    `json:"invoice_id"`
	Prompt    string `json:"prompt,omitempty"`
}

// NewExtractTask builds the asynq task for payload.
func NewExtractTask(payload ExtractPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ExtractInvoiceTask, data), nil
}

// Dispatcher enqueues extraction jobs and records them in the job table.
type Dispatcher struct {
	client *asynq.Client
	jobs   *processing.Jobs
	log    zerolog.Logger
}

// NewDispatcher wraps an asynq client.
func NewDispatcher(client *asynq.Client, jobs *processing.Jobs, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{client: client, jobs: jobs, log: log}
}

// Jobs returns the job table.
func (d *Dispatcher) Jobs() *processing.Jobs { return d.jobs }

// Dispatch creates a job and enqueues it. The job id doubles as the asynq
// task id.
func (d *Dispatcher) Dispatch(ctx context.Context, invoiceID int, prompt string) (processing.Job, error) {
	job := d.jobs.Create(invoiceID, prompt)
	task, err := NewExtractTask(ExtractPayload{JobID: job.ID, InvoiceID: invoiceID, Prompt: prompt})
	if err != nil {
		_ = d.jobs.Update(job.ID, processing.JobFailed, err.Error())
		return job, err
	}
	info, err := d.client.EnqueueContext(ctx, task, asynq.TaskID(job.ID), asynq.MaxRetry(maxRetry))
	if err != nil {
		_ = d.jobs.Update(job.ID, processing.JobFailed, err.Error())
		failed, _ := d.jobs.Get(job.ID)
		return failed, fmt.Errorf("enqueue extract task: %w", err)
	}
	d.log.Debug().Str("job", job.ID).Str("queue", info.Queue).Int("invoice", invoiceID).Msg("extraction enqueued")
	return job, nil
}
