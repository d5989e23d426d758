package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDesk/internal/processing"
	"github.com/dharsanguruparan/InvoiceDesk/internal/review"
	"github.com/dharsanguruparan/InvoiceDesk/internal/store"
)

// Worker is plugged into the asynq server loop.
type Worker struct {
	run  processing.Handler
	jobs *processing.Jobs
	log  zerolog.Logger
}

// NewWorker builds a Worker that executes jobs with run.
func NewWorker(run processing.Handler, jobs *processing.Jobs, log zerolog.Logger) *Worker {
	return &Worker{run: run, jobs: jobs, log: log}
}

// Handler registers the extract task handler.
func (w *Worker) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(ExtractInvoiceTask, w.handleExtract)
	return mux
}

func (w *Worker) handleExtract(ctx context.Context, task *asynq.Task) error {
	var payload ExtractPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_ = w.jobs.Update(payload.JobID, processing.JobRunning, "")

	err := w.run(ctx, processing.Job{ID: payload.JobID, InvoiceID: payload.InvoiceID, Prompt: payload.Prompt})
	if err == nil {
		_ = w.jobs.Update(payload.JobID, processing.JobDone, "")
		return nil
	}

	log := w.log.Warn().Err(err).Str("job", payload.JobID).Int("invoice", payload.InvoiceID)
	if permanent(err) {
		log.Msg("extraction job failed permanently")
		_ = w.jobs.Update(payload.JobID, processing.JobFailed, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	retried, _ := asynq.GetRetryCount(ctx)
	limit, _ := asynq.GetMaxRetry(ctx)
	if retried >= limit {
		log.Msg("extraction job failed, no retries left")
		_ = w.jobs.Update(payload.JobID, processing.JobFailed, err.Error())
		return err
	}
	log.Int("retry", retried).Msg("extraction job failed, will retry")
	_ = w.jobs.Update(payload.JobID, processing.JobQueued, err.Error())
	return err
}

// permanent errors are not worth retrying.
func permanent(err error) bool {
	return errors.Is(err, review.ErrAttachmentMissing) ||
		errors.Is(err, review.ErrExtractionInProgress) ||
		errors.Is(err, store.ErrNotFound)
}

// Options configures the in-process asynq server.
type Options struct {
	Addr        string
	Password    string
	DB          int
	Concurrency int
}

// RedisOpt returns the asynq connection options.
func (o Options) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: o.Addr, Password: o.Password, DB: o.DB}
}

// NewServer builds an asynq server that logs through log.
func NewServer(o Options, log zerolog.Logger) *asynq.Server {
	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return asynq.NewServer(o.RedisOpt(), asynq.Config{
		Concurrency: concurrency,
		Logger:      asynqLogger{log: log},
	})
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct{ log zerolog.Logger }

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
