package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/heirvault/internal/audit"
	"github.com/dmitrijs2005/heirvault/internal/auth"
	"github.com/dmitrijs2005/heirvault/internal/blobstore"
	"github.com/dmitrijs2005/heirvault/internal/buildinfo"
	"github.com/dmitrijs2005/heirvault/internal/cli"
	"github.com/dmitrijs2005/heirvault/internal/compartments"
	"github.com/dmitrijs2005/heirvault/internal/config"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/services"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/dmitrijs2005/heirvault/internal/store"
	"github.com/dmitrijs2005/heirvault/internal/timex"
	"github.com/dmitrijs2005/heirvault/internal/vaultcipher"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(logging.Options{
		Backend: cfg.LogBackend,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  os.Stderr,
	})
	if err != nil {
		return err
	}
	if z, ok := logger.(*logging.ZapLogger); ok {
		defer func() { _ = z.Sync() }()
	}

	st, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, err := blobstore.Open(ctx, blobstore.Options{
		Backend: cfg.BlobBackend,
		Dir:     cfg.BlobDir,
		S3: blobstore.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		},
	})
	if err != nil {
		return err
	}

	clock := timex.SystemClock{}
	sess := session.New()
	rec := audit.NewRecorder(st.Repos().AuditLog, clock, logger)
	comps := compartments.NewManager(st, sess, rec, clock, logger)
	cipher := vaultcipher.New(clock)
	hasher := cryptox.DefaultPasswordHasher()

	engine := auth.NewEngine(st, sess, comps, services.NewWiper(st, blobs, logger), auth.Options{
		Switch: models.DeadManSwitchConfig{
			ConfirmationIntervalDays: cfg.ConfirmationIntervalDays,
			MaxPasswordAttempts:      cfg.MaxPasswordAttempts,
			AutoWipeEnabled:          cfg.AutoWipe,
		},
		KDFIterations: cfg.KDFIterations,
		Hasher:        hasher,
		Limiter:       rate.NewLimiter(rate.Limit(cfg.AuthRate), cfg.AuthBurst),
		Clock:         clock,
		Log:           logger,
		Audit:         rec,
	})

	app := cli.NewApp(cli.Deps{
		Engine:       engine,
		Compartments: comps,
		Vault:        services.NewVaultService(st, blobs, sess, cipher, logger),
		Passwords:    services.NewPasswordService(st, sess, cipher, hasher, cfg.KDFIterations, rec, logger),
		Backups:      services.NewBackupService(st, blobs, sess, clock, rec, logger),
		Audit:        rec,
		Log:          logger,
	})

	watcher := auth.NewWatcher(engine, cfg.PollInterval)
	watcher.Subscribe(app.OnInheritanceChange)
	go watcher.Run(ctx)

	// the REPL blocks on stdin, so a signal ends the program from here
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		engine.Logout(context.Background())
		logger.Info(context.Background(), "interrupted")
	}
	return nil
}
