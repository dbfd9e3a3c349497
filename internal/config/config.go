package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP sync triggers
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Remote document store
	RemoteBackend       string // memory | firestore
	FirestoreProjectID  string
	FirestoreDatabaseID string
	GoogleCredsFile     string

	// Blob storage for invoice uploads
	BlobBackend   string // local | gcs
	GCSBucket     string
	LocalBlobDir  string
	LocalBlobBase string // base URL local blobs are served under

	// Connectivity probing
	ProbeURL      string
	ProbeInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pocketbook.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pocketbook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_triggers"),

		RemoteBackend:       getEnv("REMOTE_BACKEND", "memory"),
		FirestoreProjectID:  getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreDatabaseID: getEnv("FIRESTORE_DATABASE_ID", "(default)"),
		GoogleCredsFile:     getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		BlobBackend:   getEnv("BLOB_BACKEND", "local"),
		GCSBucket:     getEnv("GCS_BUCKET", ""),
		LocalBlobDir:  getEnv("LOCAL_BLOB_DIR", "./data/invoices"),
		LocalBlobBase: getEnv("LOCAL_BLOB_BASE", "file://invoices"),

		ProbeURL:      getEnv("PROBE_URL", "https://clients3.google.com/generate_204"),
		ProbeInterval: getEnvDuration("PROBE_INTERVAL", 15*time.Second),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	switch c.RemoteBackend {
	case "memory":
	case "firestore":
		if c.FirestoreProjectID == "" {
			errs = append(errs, "FIRESTORE_PROJECT_ID is required when using the firestore backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid remote backend '%s': must be one of [memory firestore]", c.RemoteBackend))
	}

	switch c.BlobBackend {
	case "local":
		if c.LocalBlobDir == "" {
			errs = append(errs, "LOCAL_BLOB_DIR cannot be empty when using the local blob backend")
		}
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, "GCS_BUCKET is required when using the gcs blob backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid blob backend '%s': must be one of [local gcs]", c.BlobBackend))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ProbeURL != "" {
		if parsed, err := url.Parse(c.ProbeURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("invalid probe URL '%s'", c.ProbeURL))
		}
	}
	if c.ProbeInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid probe interval %v: must be at least 1 second", c.ProbeInterval))
	} else if c.ProbeInterval > time.Hour {
		errs = append(errs, fmt.Sprintf("invalid probe interval %v: must be at most 1 hour", c.ProbeInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
