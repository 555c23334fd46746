package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/heirvault/internal/audit"
	"github.com/dmitrijs2005/heirvault/internal/auth"
	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/compartments"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/dmitrijs2005/heirvault/internal/store"
	"github.com/dmitrijs2005/heirvault/internal/vaultcipher"
)

// ReconfigureResult reports a password change. Records listed in Failed
// could not be opened with the old key and were left as they were, which
// makes them unreadable from now on. SkippedCompartments were not wrapped
// under the old master key and need adopting with their phrases.
// SessionEnded is set when the session could not take the new principal key
// and was logged out instead.
type ReconfigureResult struct {
	RecoveryPhrase      string
	Reencrypted         int
	Failed              map[string]error
	SkippedCompartments []string
	SessionEnded        bool
}

var switchCompartment = (*session.Session).SwitchCompartment

type PasswordService interface {
	Reconfigure(ctx context.Context, current, newPrimary, newInheritance []byte) (*ReconfigureResult, error)
}

type passwordService struct {
	store      *store.Store
	sess       *session.Session
	cipher     *vaultcipher.Cipher
	hasher     cryptox.PasswordHasher
	iterations int
	audit      *audit.Recorder
	log        logging.Logger
}

func NewPasswordService(st *store.Store, sess *session.Session, cipher *vaultcipher.Cipher, hasher cryptox.PasswordHasher, iterations int, rec *audit.Recorder, log logging.Logger) PasswordService {
	if log == nil {
		log = logging.Nop{}
	}
	return &passwordService{store: st, sess: sess, cipher: cipher, hasher: hasher, iterations: iterations, audit: rec, log: log}
}

// Reconfigure replaces both passwords. The principal compartment gets a new
// random key and its records are re-encrypted; other compartments keep their
// keys and are re-wrapped under the new master key. A new recovery phrase is
// issued because the old one wraps the retired principal key.
func (s *passwordService) Reconfigure(ctx context.Context, current, newPrimary, newInheritance []byte) (*ReconfigureResult, error) {
	if err := s.sess.Require(session.ModeNormal); err != nil {
		return nil, err
	}

	r := s.store.Repos()
	u, err := r.Users.Get(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUserNotConfigured
	}
	if err != nil {
		return nil, common.Storage("get user", err)
	}

	ok, err := cryptox.Verify(current, u.PrimarySalt, u.PrimaryHash)
	if err != nil {
		return nil, fmt.Errorf("stored primary hash: %w", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredential
	}

	oldMaster, err := auth.MasterKeyFor(u, current)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(oldMaster)
	oldPrincipal, err := compartments.UnwrapKey(u.PrincipalKeyWrapped, u.PrincipalKeyNonce, oldMaster)
	if err != nil {
		return nil, fmt.Errorf("principal key: %w", err)
	}
	defer common.WipeByteArray(oldPrincipal)

	newPrincipal := common.GenerateRandByteArray(cryptox.KeySize)
	defer common.WipeByteArray(newPrincipal)

	m, err := auth.BuildMaterial(s.hasher, s.iterations, newPrimary, newInheritance, newPrincipal)
	if err != nil {
		return nil, err
	}
	m.Apply(u)

	records, err := r.Secrets.ListByCompartment(ctx, models.PrincipalCompartment, models.SecretFilter{})
	if err != nil {
		common.WipeByteArray(m.MasterKey)
		return nil, common.Storage("list secrets", err)
	}
	re, err := s.cipher.ReencryptAll(oldPrincipal, newPrincipal, records)
	if err != nil {
		common.WipeByteArray(m.MasterKey)
		return nil, err
	}

	var skipped []string
	err = s.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if err := r.Users.Update(ctx, u); err != nil {
			return err
		}
		for i := range re.Updated {
			if err := r.Secrets.CreateOrUpdate(ctx, &re.Updated[i]); err != nil {
				return err
			}
		}
		var err error
		skipped, err = compartments.Rewrap(ctx, r.Compartments, oldMaster, m.MasterKey)
		return err
	})
	if err != nil {
		common.WipeByteArray(m.MasterKey)
		return nil, common.Storage("reconfigure", err)
	}

	for id, ferr := range re.Failed {
		s.log.Warn(ctx, "record not re-encrypted", "id", id, "error", ferr)
	}

	s.sess.ReplaceMasterKey(m.MasterKey)
	active, key, err := s.sess.ActiveCompartment()
	if err == nil {
		common.WipeByteArray(key)
		if active == models.PrincipalCompartment {
			err = switchCompartment(s.sess, active, append([]byte(nil), newPrincipal...))
		}
	}
	sessionEnded := false
	if err != nil {
		// the session would keep the retired principal key
		s.log.Error(ctx, "session not updated after password change", "error", err)
		s.sess.Logout()
		sessionEnded = true
	}

	s.audit.Record(ctx, audit.PasswordChanged, fmt.Sprintf("%d re-encrypted, %d failed", len(re.Updated), len(re.Failed)))
	return &ReconfigureResult{
		RecoveryPhrase:      m.RecoveryPhrase,
		Reencrypted:         len(re.Updated),
		Failed:              re.Failed,
		SkippedCompartments: skipped,
		SessionEnded:        sessionEnded,
	}, nil
}
