package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/heirvault/internal/flagx"
	"github.com/dmitrijs2005/heirvault/internal/timex"
)

// JsonConfig is the JSON file shape. Pointer fields distinguish "absent"
// from zero so a file only overrides what it names.
type JsonConfig struct {
	DatabaseDSN              *string         `json:"database_dsn"`
	BlobBackend              *string         `json:"blob_backend"`
	BlobDir                  *string         `json:"blob_dir"`
	S3Bucket                 *string         `json:"s3_bucket"`
	S3Region                 *string         `json:"s3_region"`
	S3BaseEndpoint           *string         `json:"s3_base_endpoint"`
	S3AccessKey              *string         `json:"s3_access_key"`
	S3SecretKey              *string         `json:"s3_secret_key"`
	ConfirmationIntervalDays *int            `json:"confirmation_interval_days"`
	MaxPasswordAttempts      *int            `json:"max_password_attempts"`
	AutoWipe                 *bool           `json:"auto_wipe"`
	PollInterval             *timex.Duration `json:"poll_interval"`
	KDFIterations            *int            `json:"kdf_iterations"`
	AuthRate                 *float64        `json:"auth_rate"`
	AuthBurst                *int            `json:"auth_burst"`
	LogBackend               *string         `json:"log_backend"`
	LogLevel                 *string         `json:"log_level"`
	LogFormat                *string         `json:"log_format"`
}

// parseJson overlays cfg with the file named by -c/-config, if any.
func parseJson(cfg *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setIf(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setIf(&cfg.BlobBackend, jc.BlobBackend)
	setIf(&cfg.BlobDir, jc.BlobDir)
	setIf(&cfg.S3Bucket, jc.S3Bucket)
	setIf(&cfg.S3Region, jc.S3Region)
	setIf(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setIf(&cfg.S3AccessKey, jc.S3AccessKey)
	setIf(&cfg.S3SecretKey, jc.S3SecretKey)
	setIf(&cfg.ConfirmationIntervalDays, jc.ConfirmationIntervalDays)
	setIf(&cfg.MaxPasswordAttempts, jc.MaxPasswordAttempts)
	setIf(&cfg.AutoWipe, jc.AutoWipe)
	if jc.PollInterval != nil {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	setIf(&cfg.KDFIterations, jc.KDFIterations)
	setIf(&cfg.AuthRate, jc.AuthRate)
	setIf(&cfg.AuthBurst, jc.AuthBurst)
	setIf(&cfg.LogBackend, jc.LogBackend)
	setIf(&cfg.LogLevel, jc.LogLevel)
	setIf(&cfg.LogFormat, jc.LogFormat)
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
