package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/models"
)

// Config holds runtime settings.
type Config struct {
	DatabaseDSN string

	BlobBackend    string
	BlobDir        string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	ConfirmationIntervalDays int
	MaxPasswordAttempts      int
	AutoWipe                 bool
	PollInterval             time.Duration
	KDFIterations            int

	// AuthRate is sustained authentication attempts per second; AuthBurst
	// is how many may be made back to back.
	AuthRate  float64
	AuthBurst int

	LogBackend string
	LogLevel   string
	LogFormat  string
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "vault.db"
	c.BlobBackend = "fs"
	c.BlobDir = "blobs"
	c.S3Region = "us-east-1"
	c.ConfirmationIntervalDays = models.DefaultConfirmationIntervalDays
	c.MaxPasswordAttempts = 5
	c.AutoWipe = false
	c.PollInterval = time.Hour
	c.KDFIterations = 100_000
	c.AuthRate = 1
	c.AuthBurst = 3
	c.LogBackend = "slog"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig applies defaults, JSON, environment and flags in that order.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting that would leave the vault unusable.
func (c *Config) Validate() error {
	var errs []error
	if err := models.ValidatePolicy(c.ConfirmationIntervalDays, c.MaxPasswordAttempts); err != nil {
		errs = append(errs, err)
	}
	switch c.BlobBackend {
	case "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("unknown blob backend %q", c.BlobBackend))
	}
	if c.BlobBackend == "s3" && c.S3Bucket == "" {
		errs = append(errs, errors.New("s3 blob backend needs a bucket"))
	}
	switch c.LogBackend {
	case "slog", "zap", "zerolog":
	default:
		errs = append(errs, fmt.Errorf("unknown log backend %q", c.LogBackend))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.KDFIterations <= 0 {
		errs = append(errs, fmt.Errorf("kdf iterations must be positive, got %d", c.KDFIterations))
	}
	if c.AuthRate <= 0 {
		errs = append(errs, fmt.Errorf("auth rate must be positive, got %g", c.AuthRate))
	}
	if c.AuthBurst < 1 && !math.IsInf(c.AuthRate, 1) {
		errs = append(errs, fmt.Errorf("auth burst must be at least 1, got %d", c.AuthBurst))
	}
	return errors.Join(errs...)
}
