// Package main is the entry point for the InvoiceDesk review server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/InvoiceDesk/internal/app"
	"github.com/dharsanguruparan/InvoiceDesk/internal/config"
	"github.com/dharsanguruparan/InvoiceDesk/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
