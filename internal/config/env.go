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

const envPrefix = "HEIRVAULT_"

// parseEnv loads the optional .env file and overlays HEIRVAULT_* variables.
// Variables already set in the process environment win over the file.
func parseEnv(cfg *Config) error {
	file := os.Getenv(envPrefix + "ENV_FILE")
	if file == "" {
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", file, err)
	}

	envString("DATABASE_DSN", &cfg.DatabaseDSN)
	envString("BLOB_BACKEND", &cfg.BlobBackend)
	envString("BLOB_DIR", &cfg.BlobDir)
	envString("S3_BUCKET", &cfg.S3Bucket)
	envString("S3_REGION", &cfg.S3Region)
	envString("S3_BASE_ENDPOINT", &cfg.S3BaseEndpoint)
	envString("S3_ACCESS_KEY", &cfg.S3AccessKey)
	envString("S3_SECRET_KEY", &cfg.S3SecretKey)
	envString("LOG_BACKEND", &cfg.LogBackend)
	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("LOG_FORMAT", &cfg.LogFormat)

	parsers := []func() error{
		func() error {
			return envParse("CONFIRMATION_INTERVAL_DAYS", &cfg.ConfirmationIntervalDays, strconv.Atoi)
		},
		func() error { return envParse("MAX_PASSWORD_ATTEMPTS", &cfg.MaxPasswordAttempts, strconv.Atoi) },
		func() error { return envParse("AUTO_WIPE", &cfg.AutoWipe, strconv.ParseBool) },
		func() error { return envParse("POLL_INTERVAL", &cfg.PollInterval, time.ParseDuration) },
		func() error { return envParse("KDF_ITERATIONS", &cfg.KDFIterations, strconv.Atoi) },
		func() error { return envParse("AUTH_BURST", &cfg.AuthBurst, strconv.Atoi) },
		func() error {
			return envParse("AUTH_RATE", &cfg.AuthRate, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		},
	}
	for _, p := range parsers {
		if err := p(); err != nil {
			return err
		}
	}
	return nil
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
		*dst = v
	}
}

func envParse[T any](name string, dst *T, parse func(string) (T, error)) error {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return nil
	}
	parsed, err := parse(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s=%q: %w", envPrefix, name, v, err)
	}
	*dst = parsed
	return nil
}
