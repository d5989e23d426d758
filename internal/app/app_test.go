package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/InvoiceDesk/internal/config"
	"github.com/dharsanguruparan/InvoiceDesk/internal/processing"
)

func TestStartDispatchMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, stop, err := startDispatch(ctx, config.QueueConfig{Driver: "memory", Workers: 1},
		func(context.Context, processing.Job) error { return nil }, zerolog.Nop())
	require.NoError(t, err)
	defer stop()
	assert.IsType(t, &processing.Pool{}, d)
}

func TestStartDispatchUnknown(t *testing.T) {
	_, _, err := startDispatch(context.Background(), config.QueueConfig{Driver: "kafka"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunRejectsUnknownStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "floppy"
	err := Run(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "floppy")
}
