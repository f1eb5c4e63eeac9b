package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type envConfig struct {
	APP_PORT      string
	LOG_FILE_PATH string
	LOG_LEVEL     string

	DEFAULT_TIMEZONE string
	DATE_TIME_FORMAT string
	DEFINITIONS_DIR  string
	QUERIES_FILE     string

	DB_DRIVER            string
	DB_DSN               string
	DB_MAX_OPEN_CONNS    int
	DB_MAX_IDLE_CONNS    int
	DB_CONN_MAX_LIFETIME time.Duration

	ELASTICSEARCH_URL string
	GCP_PROJECT_ID    string

	SOURCE_WORKERS     int
	SOURCE_MAX_RETRIES int
}

// DefaultEnvConfig holds the configuration loaded by LoadEnvConfig.
var DefaultEnvConfig = defaults()

func defaults() envConfig {
	return envConfig{
		APP_PORT:             "8080",
		LOG_LEVEL:            "info",
		DB_DRIVER:            "postgres",
		DB_MAX_OPEN_CONNS:    10,
		DB_MAX_IDLE_CONNS:    5,
		DB_CONN_MAX_LIFETIME: 5 * time.Minute,
		SOURCE_WORKERS:       4,
		SOURCE_MAX_RETRIES:   2,
	}
}

// LoadEnvConfig reads an optional .env file, then the process environment.
func LoadEnvConfig(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := defaults()
	var err error

	str(&cfg.APP_PORT, "APP_PORT")
	str(&cfg.LOG_FILE_PATH, "LOG_FILE_PATH")
	str(&cfg.LOG_LEVEL, "LOG_LEVEL")
	str(&cfg.DEFAULT_TIMEZONE, "DEFAULT_TIMEZONE")
	str(&cfg.DATE_TIME_FORMAT, "DATE_TIME_FORMAT")
	str(&cfg.DEFINITIONS_DIR, "DEFINITIONS_DIR")
	str(&cfg.QUERIES_FILE, "QUERIES_FILE")
	str(&cfg.DB_DRIVER, "DB_DRIVER")
	str(&cfg.DB_DSN, "DB_DSN")
	str(&cfg.ELASTICSEARCH_URL, "ELASTICSEARCH_URL")
	str(&cfg.GCP_PROJECT_ID, "GCP_PROJECT_ID")

	if err = num(&cfg.DB_MAX_OPEN_CONNS, "DB_MAX_OPEN_CONNS"); err != nil {
		return err
	}
	if err = num(&cfg.DB_MAX_IDLE_CONNS, "DB_MAX_IDLE_CONNS"); err != nil {
		return err
	}
	if err = num(&cfg.SOURCE_WORKERS, "SOURCE_WORKERS"); err != nil {
		return err
	}
	if err = num(&cfg.SOURCE_MAX_RETRIES, "SOURCE_MAX_RETRIES"); err != nil {
		return err
	}
	if v := os.Getenv("DB_CONN_MAX_LIFETIME"); v != "" {
		if cfg.DB_CONN_MAX_LIFETIME, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("DB_CONN_MAX_LIFETIME: %w", err)
		}
	}

	if cfg.DEFAULT_TIMEZONE != "" {
		if _, err = time.LoadLocation(cfg.DEFAULT_TIMEZONE); err != nil {
			return fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
		}
	}
	if cfg.SOURCE_WORKERS < 1 {
		return fmt.Errorf("SOURCE_WORKERS must be at least 1, got %d", cfg.SOURCE_WORKERS)
	}

	DefaultEnvConfig = cfg
	return nil
}

// Location returns the configured default time zone, or time.Local.
func (c envConfig) Location() *time.Location {
	if c.DEFAULT_TIMEZONE == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.DEFAULT_TIMEZONE)
	if err != nil {
		return time.Local
	}
	return loc
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func num(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
