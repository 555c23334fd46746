package config

import (
	"flag"
	"io"
	"os"

	"github.com/dmitrijs2005/heirvault/internal/flagx"
)

// parseFlags overlays cfg with the flags it knows about. Other arguments are
// filtered out first so unrelated flags never break parsing.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-b", "-f", "-i", "-m", "-l"}, "-w")

	fs := flag.NewFlagSet("heirvault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN (SQLite path or postgres:// URL)")
	fs.StringVar(&cfg.BlobBackend, "b", cfg.BlobBackend, "blob backend: fs or s3")
	fs.StringVar(&cfg.BlobDir, "f", cfg.BlobDir, "blob directory for the fs backend")
	fs.IntVar(&cfg.ConfirmationIntervalDays, "i", cfg.ConfirmationIntervalDays, "confirmation interval in days")
	fs.IntVar(&cfg.MaxPasswordAttempts, "m", cfg.MaxPasswordAttempts, "maximum failed password attempts")
	fs.BoolVar(&cfg.AutoWipe, "w", cfg.AutoWipe, "wipe secrets after too many failed attempts")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	return fs.Parse(args)
}
