// Package config centralizes how InvoiceDesk reads its settings and exposes
// them as typed Go values. Precedence, lowest first: built-in defaults, an
// optional YAML file named by INVOICEDESK_CONFIG, then environment variables
// (a .env file in the working directory is loaded into the environment first).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address     string `yaml:"address"`
	MaxFileSize int64  `yaml:"max_file_bytes"`
	// SigningSecret signs ephemeral attachment references. Left empty it is
	// generated per process, so references die with the process.
	SigningSecret []byte        `yaml:"-"`
	ReferenceTTL  time.Duration `yaml:"reference_ttl"`
	RenderDPI     float64       `yaml:"render_dpi"`

	Gateway GatewayConfig `yaml:"gateway"`
	Storage StorageConfig `yaml:"storage"`
	Queue   QueueConfig   `yaml:"queue"`
	Log     LogConfig     `yaml:"log"`
}

// GatewayConfig points at the remote extraction service.
type GatewayConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Prompt  string        `yaml:"prompt"`
}

// StorageConfig selects the durable metadata backend.
type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres, redis, s3.
	Driver string `yaml:"driver"`
	// Key is the fixed key the invoice list is stored under.
	Key string `yaml:"key"`

	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3UseSSL    bool   `yaml:"s3_use_ssl"`
}

// QueueConfig selects how asynchronous extractions are dispatched.
type QueueConfig struct {
	// Driver is memory (in-process pool) or redis (asynq).
	Driver        string `yaml:"driver"`
	Workers       int    `yaml:"workers"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	defaultAddress      = ":8080"
	defaultMaxFileSize  = 25 << 20 // 25 MiB
	defaultReferenceTTL = 12 * time.Hour
	defaultRenderDPI    = 96
	defaultGatewayURL   = "http://localhost:8000"
	defaultGatewayTO    = 2 * time.Minute
	defaultStorageKey   = "invoice-demo-data-v1"
	defaultSQLitePath   = "data/invoicedesk.db"
	defaultWorkerCount  = 2
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Address:      defaultAddress,
		MaxFileSize:  defaultMaxFileSize,
		ReferenceTTL: defaultReferenceTTL,
		RenderDPI:    defaultRenderDPI,
		Gateway: GatewayConfig{
			URL:     defaultGatewayURL,
			Timeout: defaultGatewayTO,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			Key:        defaultStorageKey,
			SQLitePath: defaultSQLitePath,
			RedisAddr:  "localhost:6379",
			S3Bucket:   "invoicedesk",
			S3Region:   "us-east-1",
		},
		Queue: QueueConfig{
			Driver:    "memory",
			Workers:   defaultWorkerCount,
			RedisAddr: "localhost:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg := Default()
	if path := readEnv("INVOICEDESK_CONFIG", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults without consulting the
// environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Address = readEnv("INVOICEDESK_ADDRESS", c.Address)
	c.MaxFileSize = parseInt64("INVOICEDESK_MAX_FILE_BYTES", c.MaxFileSize)
	c.SigningSecret = parseSecret("INVOICEDESK_SIGNING_SECRET", c.SigningSecret)
	c.ReferenceTTL = parseDuration("INVOICEDESK_REFERENCE_TTL", c.ReferenceTTL)
	c.RenderDPI = parseFloat("INVOICEDESK_RENDER_DPI", c.RenderDPI)

	c.Gateway.URL = readEnv("INVOICEDESK_GATEWAY_URL", c.Gateway.URL)
	c.Gateway.Timeout = parseDuration("INVOICEDESK_GATEWAY_TIMEOUT", c.Gateway.Timeout)
	c.Gateway.Prompt = readEnv("INVOICEDESK_GATEWAY_PROMPT", c.Gateway.Prompt)

	c.Storage.Driver = strings.ToLower(readEnv("INVOICEDESK_STORAGE", c.Storage.Driver))
	c.Storage.Key = readEnv("INVOICEDESK_STORAGE_KEY", c.Storage.Key)
	c.Storage.SQLitePath = readEnv("INVOICEDESK_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.PostgresURL = readEnv("INVOICEDESK_DATABASE_URL", c.Storage.PostgresURL)
	c.Storage.RedisAddr = readEnv("INVOICEDESK_REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = readEnv("INVOICEDESK_REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.RedisDB = parseInt("INVOICEDESK_REDIS_DB", c.Storage.RedisDB)
	c.Storage.S3Endpoint = readEnv("INVOICEDESK_S3_ENDPOINT", c.Storage.S3Endpoint)
	c.Storage.S3AccessKey = readEnv("INVOICEDESK_S3_ACCESS_KEY", c.Storage.S3AccessKey)
	c.Storage.S3SecretKey = readEnv("INVOICEDESK_S3_SECRET_KEY", c.Storage.S3SecretKey)
	c.Storage.S3Bucket = readEnv("INVOICEDESK_S3_BUCKET", c.Storage.S3Bucket)
	c.Storage.S3Region = readEnv("INVOICEDESK_S3_REGION", c.Storage.S3Region)
	c.Storage.S3UseSSL = parseBool("INVOICEDESK_S3_USE_SSL", c.Storage.S3UseSSL)

	c.Queue.Driver = strings.ToLower(readEnv("INVOICEDESK_QUEUE", c.Queue.Driver))
	c.Queue.Workers = parseInt("INVOICEDESK_WORKERS", c.Queue.Workers)
	c.Queue.RedisAddr = readEnv("INVOICEDESK_QUEUE_REDIS_ADDR", c.Queue.RedisAddr)
	c.Queue.RedisPassword = readEnv("INVOICEDESK_QUEUE_REDIS_PASSWORD", c.Queue.RedisPassword)
	c.Queue.RedisDB = parseInt("INVOICEDESK_QUEUE_REDIS_DB", c.Queue.RedisDB)

	c.Log.Level = readEnv("INVOICEDESK_LOG_LEVEL", c.Log.Level)
	c.Log.Format = readEnv("INVOICEDESK_LOG_FORMAT", c.Log.Format)
}

func (c *Config) fillDefaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if c.ReferenceTTL <= 0 {
		c.ReferenceTTL = defaultReferenceTTL
	}
	if c.RenderDPI <= 0 {
		c.RenderDPI = defaultRenderDPI
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = defaultGatewayTO
	}
	if c.Storage.Key == "" {
		c.Storage.Key = defaultStorageKey
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = defaultWorkerCount
	}
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string, def []byte) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return def
}
