package kvstore

import (
	"context"
	"fmt"

	"github.com/dharsanguruparan/InvoiceDesk/internal/config"
)

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "memory":
		return NewMemory(), nil
	case "postgres":
		return ConnectPostgres(ctx, cfg.PostgresURL)
	case "redis":
		return ConnectRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "s3":
		return ConnectS3(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
