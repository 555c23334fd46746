package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"heirvault"}, args...)
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HEIRVAULT_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()
	require.Equal(t, "vault.db", c.DatabaseDSN)
	require.Equal(t, 90, c.ConfirmationIntervalDays)
	require.Equal(t, 5, c.MaxPasswordAttempts)
	require.False(t, c.AutoWipe)
	require.Equal(t, time.Hour, c.PollInterval)
	require.Equal(t, 100_000, c.KDFIterations)
}

func TestLoadConfig_DefaultsOnly(t *testing.T) {
	withArgs(t)
	isolateEnv(t)

	got, err := LoadConfig()
	require.NoError(t, err)
	if diff := cmp.Diff(defaults(), *got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"database_dsn": "json.db",
		"max_password_attempts": 7,
		"poll_interval": "5m",
		"auto_wipe": true,
		"log_backend": "zap"
	}`), 0o600))

	withArgs(t, "-c", jsonPath, "-d", "flag.db", "-i", "30")
	isolateEnv(t)
	t.Setenv("HEIRVAULT_DATABASE_DSN", "env.db")
	t.Setenv("HEIRVAULT_MAX_PASSWORD_ATTEMPTS", "9")

	got, err := LoadConfig()
	require.NoError(t, err)

	want := defaults()
	want.DatabaseDSN = "flag.db"
	want.MaxPasswordAttempts = 9
	want.PollInterval = 5 * time.Minute
	want.AutoWipe = true
	want.LogBackend = "zap"
	want.ConfirmationIntervalDays = 30

	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEnv_DotEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("HEIRVAULT_BLOB_BACKEND=s3\nHEIRVAULT_S3_BUCKET=heirs\nHEIRVAULT_AUTH_RATE=0.5\n"), 0o600))
	t.Setenv("HEIRVAULT_ENV_FILE", envFile)
	// godotenv sets these for the process; make sure they are removed afterwards.
	for _, k := range []string{"HEIRVAULT_BLOB_BACKEND", "HEIRVAULT_S3_BUCKET", "HEIRVAULT_AUTH_RATE"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	c := defaults()
	require.NoError(t, parseEnv(&c))
	require.Equal(t, "s3", c.BlobBackend)
	require.Equal(t, "heirs", c.S3Bucket)
	require.Equal(t, 0.5, c.AuthRate)
}

func TestParseEnv_InvalidValue(t *testing.T) {
	isolateEnv(t)
	t.Setenv("HEIRVAULT_AUTO_WIPE", "perhaps")

	c := defaults()
	err := parseEnv(&c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "HEIRVAULT_AUTO_WIPE")
}

func TestParseJson_Errors(t *testing.T) {
	dir := t.TempDir()

	withArgs(t, "-c", filepath.Join(dir, "absent.json"))
	c := defaults()
	require.Error(t, parseJson(&c))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{nope"), 0o600))
	withArgs(t, "-config", bad)
	require.Error(t, parseJson(&c))
}

func TestParseFlags_SwitchAndUnknown(t *testing.T) {
	withArgs(t, "-w", "-unknown", "x", "-m", "2", "-b", "s3")
	c := defaults()
	require.NoError(t, parseFlags(&c))
	require.True(t, c.AutoWipe)
	require.Equal(t, 2, c.MaxPasswordAttempts)
	require.Equal(t, "s3", c.BlobBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(c *Config)
		wants string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unlimited rate ignores burst", func(c *Config) { c.AuthRate, c.AuthBurst = math.Inf(1), 0 }, ""},
		{"zero burst", func(c *Config) { c.AuthBurst = 0 }, "auth burst"},
		{"zero rate", func(c *Config) { c.AuthRate = 0 }, "auth rate"},
		{"short interval", func(c *Config) { c.ConfirmationIntervalDays = 7 }, "interval"},
		{"overflowing interval", func(c *Config) { c.ConfirmationIntervalDays = 200_000 }, "interval"},
		{"negative attempts", func(c *Config) { c.MaxPasswordAttempts = -1 }, "attempt"},
		{"unknown blob backend", func(c *Config) { c.BlobBackend = "ftp" }, "blob backend"},
		{"s3 without bucket", func(c *Config) { c.BlobBackend = "s3" }, "bucket"},
		{"unknown log backend", func(c *Config) { c.LogBackend = "logrus" }, "log backend"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll interval"},
		{"zero kdf iterations", func(c *Config) { c.KDFIterations = 0 }, "kdf iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.edit(&c)
			err := c.Validate()
			if tt.wants == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wants)
		})
	}
}

func TestLoadConfig_RejectsZeroBurst(t *testing.T) {
	withArgs(t)
	isolateEnv(t)
	t.Setenv("HEIRVAULT_AUTH_BURST", "0")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "auth burst")
}

func TestLoadConfig_RejectsIntervalFlag(t *testing.T) {
	withArgs(t, "-i", "200000")
	isolateEnv(t)

	_, err := LoadConfig()
	require.ErrorIs(t, err, common.ErrInvalidPolicy)
}
