// Package config loads HeirVault runtime configuration.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file named by -c or -config.
//  3. Environment variables prefixed HEIRVAULT_, after loading an optional
//     .env file (path from HEIRVAULT_ENV_FILE, default ".env").
//  4. Command-line flags.
//
// # JSON schema
//
// Durations use timex.Duration, so "1h" and integer nanoseconds both work:
//
//	{
//	  "database_dsn": "vault.db",
//	  "blob_backend": "fs",
//	  "blob_dir": "blobs",
//	  "confirmation_interval_days": 90,
//	  "max_password_attempts": 5,
//	  "auto_wipe": false,
//	  "poll_interval": "1h",
//	  "kdf_iterations": 100000,
//	  "log_backend": "slog"
//	}
//
// # Flags
//
//	-d string   database DSN (SQLite path or postgres:// URL)
//	-b string   blob backend: fs or s3
//	-f string   blob directory for the fs backend
//	-i int      confirmation interval in days
//	-m int      maximum failed password attempts
//	-w          enable autodestruct after too many failures
//	-l string   log level
package config
