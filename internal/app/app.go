// Package app wires the configured components together and runs the API.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDesk/internal/api"
	"github.com/dharsanguruparan/InvoiceDesk/internal/attachment"
	"github.com/dharsanguruparan/InvoiceDesk/internal/config"
	"github.com/dharsanguruparan/InvoiceDesk/internal/gateway"
	"github.com/dharsanguruparan/InvoiceDesk/internal/kvstore"
	"github.com/dharsanguruparan/InvoiceDesk/internal/logging"
	"github.com/dharsanguruparan/InvoiceDesk/internal/processing"
	"github.com/dharsanguruparan/InvoiceDesk/internal/queue"
	"github.com/dharsanguruparan/InvoiceDesk/internal/render"
	"github.com/dharsanguruparan/InvoiceDesk/internal/review"
	"github.com/dharsanguruparan/InvoiceDesk/internal/signing"
	"github.com/dharsanguruparan/InvoiceDesk/internal/store"
)

// Run blocks serving HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	kv, err := kvstore.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer kv.Close()

	if len(cfg.SigningSecret) == 0 {
		log.Info().Msg("no signing secret configured, attachment references are valid for this process only")
	}
	registry := attachment.NewRegistry(signing.NewSigner(cfg.SigningSecret), cfg.ReferenceTTL)
	st := store.New(ctx, kv, registry,
		store.WithKey(cfg.Storage.Key),
		store.WithLogger(logging.Component(log, "store")),
	)
	defer st.Close()

	gw := gateway.New(cfg.Gateway.URL, cfg.Gateway.Timeout, logging.Component(log, "gateway"))
	svc := review.New(st, gw, render.NewFitz(cfg.RenderDPI),
		review.WithPrompt(cfg.Gateway.Prompt),
		review.WithLogger(logging.Component(log, "review")),
	)

	run := func(ctx context.Context, job processing.Job) error {
		_, _, err := svc.Extract(ctx, job.InvoiceID, job.Prompt)
		return err
	}
	dispatch, stop, err := startDispatch(ctx, cfg.Queue, run, log)
	if err != nil {
		return err
	}
	defer stop()

	srv := api.New(cfg, api.Deps{
		Review:   svc,
		Registry: registry,
		Dispatch: dispatch,
		Gateway:  gw,
	}, logging.Component(log, "api"))
	log.Info().
		Str("storage", cfg.Storage.Driver).
		Str("queue", cfg.Queue.Driver).
		Str("gateway", gw.BaseURL()).
		Int("invoices", len(st.List())).
		Msg("invoicedesk ready")
	return srv.Run(ctx)
}

// startDispatch picks the in-process pool or the asynq queue. The asynq
// server runs here too: jobs need the attachment registry of this process.
func startDispatch(ctx context.Context, cfg config.QueueConfig, run processing.Handler, log zerolog.Logger) (processing.Dispatcher, func(), error) {
	jobs := processing.NewJobs()
	switch cfg.Driver {
	case "", "memory":
		pool := processing.NewPool(jobs, run, cfg.Workers, logging.Component(log, "processing"))
		pool.Start(ctx)
		return pool, func() {}, nil
	case "redis", "asynq":
		qlog := logging.Component(log, "queue")
		opts := queue.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			Concurrency: cfg.Workers,
		}
		server := queue.NewServer(opts, qlog)
		if err := server.Start(queue.NewWorker(run, jobs, qlog).Handler()); err != nil {
			return nil, nil, fmt.Errorf("start queue worker: %w", err)
		}
		client := asynq.NewClient(opts.RedisOpt())
		stop := func() {
			server.Shutdown()
			_ = client.Close()
		}
		return queue.NewDispatcher(client, jobs, qlog), stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}
