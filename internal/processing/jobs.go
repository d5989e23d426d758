package processing

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobStatus tracks an extraction job's lifecycle.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one asynchronous extraction request.
type Job struct {
	ID        string    `json:"id"`
	InvoiceID int       `json:"invoiceId"`
	Prompt    string    `json:"-"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Jobs is the in-memory job table shared by every dispatcher.
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewJobs returns an empty table.
func NewJobs() *Jobs {
	return &Jobs{jobs: make(map[string]*Job), now: time.Now}
}

// Create records a queued job and returns a copy.
func (t *Jobs) Create(invoiceID int, prompt string) Job {
	now := t.now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		Prompt:    prompt,
		Status:    JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.mu.Lock()
	t.jobs[job.ID] = job
	t.mu.Unlock()
	return *job
}

// Get returns a copy of the job.
func (t *Jobs) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Update moves a job to status with message.
func (t *Jobs) Update(id string, status JobStatus, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	job.Message = message
	job.UpdatedAt = t.now().UTC()
	return nil
}
