package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/heirvault/internal/audit"
	"github.com/dmitrijs2005/heirvault/internal/backup"
	"github.com/dmitrijs2005/heirvault/internal/blobstore"
	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/dmitrijs2005/heirvault/internal/store"
	"github.com/dmitrijs2005/heirvault/internal/timex"
)

// RestoreResult summarises what a restore brought back.
type RestoreResult struct {
	Compartments int
	Secrets      int
	Blobs        int
}

type BackupService interface {
	Create(ctx context.Context, w io.Writer) error
	Restore(ctx context.Context, r io.Reader, password []byte) (*RestoreResult, error)
}

type backupService struct {
	store *store.Store
	blobs blobstore.Store
	sess  *session.Session
	clock timex.Clock
	audit *audit.Recorder
	log   logging.Logger
}

func NewBackupService(st *store.Store, blobs blobstore.Store, sess *session.Session, clock timex.Clock, rec *audit.Recorder, log logging.Logger) BackupService {
	if log == nil {
		log = logging.Nop{}
	}
	return &backupService{store: st, blobs: blobs, sess: sess, clock: clock, audit: rec, log: log}
}

// Create writes an encrypted snapshot of the whole vault to w. The backup
// key is the session's master key, so the backup opens with the primary
// password current at the time of writing.
func (s *backupService) Create(ctx context.Context, w io.Writer) error {
	if err := s.sess.Require(session.ModeNormal); err != nil {
		return err
	}
	masterKey, err := s.sess.MasterKey()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(masterKey)

	r := s.store.Repos()
	u, err := r.Users.Get(ctx)
	if err != nil {
		return common.Storage("get user", err)
	}
	comps, err := r.Compartments.List(ctx)
	if err != nil {
		return common.Storage("list compartments", err)
	}
	secrets, err := r.Secrets.ListAll(ctx)
	if err != nil {
		return common.Storage("list secrets", err)
	}
	settings, err := r.Metadata.List(ctx)
	if err != nil {
		return common.Storage("list settings", err)
	}

	a := &backup.Archive{
		Snapshot: backup.Snapshot{
			CreatedAt:    s.clock.Now().UTC(),
			Credential:   *u,
			Compartments: comps,
			Secrets:      secrets,
			Settings:     settings,
		},
		Blobs: make(map[string][]byte),
	}
	for _, rec := range secrets {
		if rec.BlobName == "" {
			continue
		}
		data, err := s.blobs.Read(ctx, rec.BlobName)
		if err != nil {
			return fmt.Errorf("read blob of %s: %w", rec.ID, err)
		}
		a.Blobs[rec.BlobName] = data
	}

	zipped, err := backup.Pack(a)
	if err != nil {
		return err
	}
	if err := backup.Write(w, zipped, masterKey, u.PrimarySalt, u.KDFIterations, s.clock.Now()); err != nil {
		return err
	}

	s.log.Info(ctx, "backup created", "secrets", len(secrets), "blobs", len(a.Blobs))
	s.audit.Record(ctx, audit.BackupCreated, fmt.Sprintf("%d secrets", len(secrets)))
	return nil
}

// Restore replaces the vault with the backup read from r. It is allowed on a
// vault with no owner yet or from a normal session, and ends any session.
func (s *backupService) Restore(ctx context.Context, r io.Reader, password []byte) (*RestoreResult, error) {
	if err := s.sess.Require(session.ModeNormal); err != nil {
		if _, uerr := s.store.Repos().Users.Get(ctx); !errors.Is(uerr, common.ErrorNotFound) {
			return nil, err
		}
	}

	f, err := backup.Read(r)
	if err != nil {
		return nil, err
	}
	key, err := f.Key(password)
	if err != nil {
		return nil, err
	}
	zipped, err := f.Open(key)
	common.WipeByteArray(key)
	if err != nil {
		return nil, err
	}
	a, err := backup.Unpack(zipped)
	if err != nil {
		return nil, err
	}

	snap := a.Snapshot
	if ok, err := cryptox.Verify(password, snap.Credential.PrimarySalt, snap.Credential.PrimaryHash); err != nil || !ok {
		return nil, common.ErrInvalidCredential
	}

	current, _, err := store.LoadSwitchConfig(ctx, s.store.Repos().Metadata,
		models.DeadManSwitchConfig{ConfirmationIntervalDays: models.DefaultConfirmationIntervalDays})
	if err != nil {
		return nil, common.Storage("load switch config", err)
	}

	previous, err := s.store.Repos().Secrets.ListAll(ctx)
	if err != nil {
		return nil, common.Storage("list secrets", err)
	}

	for name, data := range a.Blobs {
		if err := s.blobs.Write(ctx, name, data); err != nil {
			return nil, err
		}
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if _, err := r.Secrets.DeleteAll(ctx); err != nil {
			return err
		}
		if err := r.Compartments.DeleteAll(ctx); err != nil {
			return err
		}
		if err := r.Users.Delete(ctx); err != nil {
			return err
		}
		if err := r.Metadata.Clear(ctx); err != nil {
			return err
		}

		if err := r.Users.Create(ctx, &snap.Credential); err != nil {
			return err
		}
		for i := range snap.Compartments {
			if err := r.Compartments.Create(ctx, &snap.Compartments[i]); err != nil {
				return err
			}
		}
		for i := range snap.Secrets {
			if err := r.Secrets.CreateOrUpdate(ctx, &snap.Secrets[i]); err != nil {
				return err
			}
		}
		for k, v := range snap.Settings {
			if err := r.Metadata.Set(ctx, k, v); err != nil {
				return err
			}
		}

		// Restoring with the primary password counts as a confirmation.
		restored, found, err := store.LoadSwitchConfig(ctx, r.Metadata, current)
		if err != nil {
			return err
		}
		if !found || restored.Validate() != nil {
			restored = current
		}
		restored.LastConfirmation = s.clock.Now().UTC()
		return store.SaveSwitchConfig(ctx, r.Metadata, restored)
	})
	if err != nil {
		return nil, common.Storage("restore", err)
	}

	for _, rec := range previous {
		if rec.BlobName == "" {
			continue
		}
		if _, kept := a.Blobs[rec.BlobName]; kept {
			continue
		}
		if err := s.blobs.Delete(ctx, rec.BlobName); err != nil {
			s.log.Warn(ctx, "stale blob not deleted", "blob", rec.BlobName, "error", err)
		}
	}

	s.sess.Logout()
	s.log.Info(ctx, "backup restored", "secrets", len(snap.Secrets))
	s.audit.Record(ctx, audit.BackupRestored, f.Header.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	return &RestoreResult{
		Compartments: len(snap.Compartments),
		Secrets:      len(snap.Secrets),
		Blobs:        len(a.Blobs),
	}, nil
}
