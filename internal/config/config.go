package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/paulexconde/surveysense/internal/pkg/store"
	"github.com/paulexconde/surveysense/pkg/log"
)

const (
	DefaultDBUrl         = "surveysense.sqlite"
	DefaultWorkers       = 4
	DefaultQueueSize     = 16
	DefaultUploadRetries = 3
	DefaultRetryDelay    = 100 * time.Millisecond
)

type Config struct {
	DBDriver      string
	DBUrl         string
	Debug         bool
	Workers       int
	QueueSize     int
	UploadRetries int
	RetryDelay    time.Duration
}

// Load reads the configuration from the environment after loading the
// given .env files, or ./.env when none are named. Missing files are not
// an error.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Debugf("config: no .env file loaded: %v", err)
	}

	cfg := Config{
		DBDriver: os.Getenv("SURVEY_DB_DRIVER"),
		DBUrl:    os.Getenv("SURVEY_DB_URL"),
	}

	var err error
	if cfg.Debug, err = envBool("SURVEY_DEBUG", false); err != nil {
		return cfg, err
	}
	if cfg.Workers, err = envInt("SURVEY_WORKERS", DefaultWorkers); err != nil {
		return cfg, err
	}
	if cfg.QueueSize, err = envInt("SURVEY_QUEUE_SIZE", DefaultQueueSize); err != nil {
		return cfg, err
	}
	if cfg.UploadRetries, err = envInt("SURVEY_UPLOAD_RETRIES", DefaultUploadRetries); err != nil {
		return cfg, err
	}
	cfg.RetryDelay = DefaultRetryDelay
	if raw := os.Getenv("SURVEY_RETRY_DELAY"); raw != "" {
		if cfg.RetryDelay, err = time.ParseDuration(raw); err != nil {
			return cfg, fmt.Errorf("SURVEY_RETRY_DELAY: %w", err)
		}
	}

	if cfg.DBUrl == "" {
		cfg.DBUrl = DefaultDBUrl
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = DetectDriver(cfg.DBUrl)
	}

	return cfg, nil
}

// RegisterFlags binds flags overriding the loaded values to fs.
func (cfg *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "database driver, postgres or sqlite3 (overrides $SURVEY_DB_DRIVER)")
	fs.StringVar(&cfg.DBUrl, "db-url", cfg.DBUrl, "database URL or SQLite file (overrides $SURVEY_DB_URL)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log at DEBUG level (overrides $SURVEY_DEBUG)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent validation workers for uploads (overrides $SURVEY_WORKERS)")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "validation jobs queued per upload (overrides $SURVEY_QUEUE_SIZE)")
	fs.IntVar(&cfg.UploadRetries, "upload-retries", cfg.UploadRetries, "attempts made to store each response (overrides $SURVEY_UPLOAD_RETRIES)")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "wait between storage attempts (overrides $SURVEY_RETRY_DELAY)")
}

func (cfg Config) Validate() error {
	var errs []error
	switch cfg.DBDriver {
	case store.DriverPostgres, store.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver '%s'", cfg.DBDriver))
	}
	if cfg.DBUrl == "" {
		errs = append(errs, errors.New("missing database URL"))
	}
	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", cfg.Workers))
	}
	if cfg.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue size cannot be negative, got %d", cfg.QueueSize))
	}
	if cfg.UploadRetries < 1 {
		errs = append(errs, fmt.Errorf("upload retries must be positive, got %d", cfg.UploadRetries))
	}
	if cfg.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry delay cannot be negative, got %s", cfg.RetryDelay))
	}
	return errors.Join(errs...)
}

// DetectDriver guesses the driver from a database URL: Postgres URLs and
// key/value DSNs select postgres, anything else is a SQLite file.
func DetectDriver(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") || strings.Contains(url, "host=") {
		return store.DriverPostgres
	}
	return store.DriverSQLite
}

func envInt(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func envBool(name string, def bool) (bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
