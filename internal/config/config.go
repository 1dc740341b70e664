// Package config loads process configuration from the environment.
// A .env file, when present, is loaded first and never overrides variables
// that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Lock backends.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

// Config is the full process configuration.
type Config struct {
	Env      string `validate:"oneof=development staging production test"`
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=debug info warn error"`
	LogFile  string

	Database  Database
	Numbering Numbering
	Redis     Redis
	NSQ       NSQ
	Worker    Worker
}

// Database configures the Postgres pool.
type Database struct {
	URL              string `validate:"required"`
	MaxConns         int32  `validate:"gte=1"`
	StatementTimeout time.Duration
	MigrateOnStart   bool
}

// Numbering configures allocation.
type Numbering struct {
	MaxAttempts int    `validate:"gte=1,lte=100"`
	LockBackend string `validate:"oneof=memory redis"`
	LockTTL     time.Duration
}

// Redis is required when the redis lock backend is selected.
type Redis struct {
	URL string
	DB  int
}

// NSQ enables event publishing when NsqdAddr is set.
type NSQ struct {
	NsqdAddr    string
	TopicPrefix string
	Channel     string
}

// Worker holds cron schedules. An empty schedule disables the job.
type Worker struct {
	ResyncSchedule string
	DoctorSchedule string
}

// Development reports whether the process runs in development mode.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// RedisEnabled reports whether series locks are taken in Redis.
func (c *Config) RedisEnabled() bool {
	return c.Numbering.LockBackend == LockRedis
}

// Load reads envFile (if it exists) and the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("APP_PORT", "8080"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),
		Database: Database{
			URL:              getEnv("DATABASE_URL", ""),
			MaxConns:         int32(getEnvInt("DATABASE_MAX_CONNS", 25)),
			StatementTimeout: getEnvDuration("DATABASE_STATEMENT_TIMEOUT", 30*time.Second),
			MigrateOnStart:   getEnvBool("DATABASE_MIGRATE_ON_START", false),
		},
		Numbering: Numbering{
			MaxAttempts: getEnvInt("NUMBERING_MAX_ATTEMPTS", 10),
			LockBackend: strings.ToLower(getEnv("NUMBERING_LOCK_BACKEND", LockMemory)),
			LockTTL:     getEnvDuration("NUMBERING_LOCK_TTL", 10*time.Second),
		},
		Redis: Redis{
			URL: getEnv("REDIS_URL", ""),
			DB:  getEnvInt("REDIS_DB", 0),
		},
		NSQ: NSQ{
			NsqdAddr:    getEnv("NSQD_ADDR", ""),
			TopicPrefix: getEnv("NSQ_TOPIC_PREFIX", "docseries_"),
			Channel:     getEnv("NSQ_CHANNEL", "docseries-worker"),
		},
		Worker: Worker{
			ResyncSchedule: getEnv("WORKER_RESYNC_SCHEDULE", "*/15 * * * *"),
			DoctorSchedule: getEnv("WORKER_DOCTOR_SCHEDULE", "0 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RedisEnabled() && c.Redis.URL == "" {
		return errors.New("invalid configuration: REDIS_URL is required for the redis lock backend")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
