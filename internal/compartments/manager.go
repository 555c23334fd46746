// Package compartments manages independently keyed namespaces of secrets.
//
// Each compartment has a random-looking key derived from its own 12-word
// phrase. The key is also stored wrapped under the owner's master key so the
// primary password reaches every compartment, while the phrase alone unlocks
// exactly one. The principal compartment is special: its key is random and
// lives wrapped on the user credential.
package compartments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/heirvault/internal/audit"
	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/mnemonic"
	"github.com/dmitrijs2005/heirvault/internal/models"
	comprepo "github.com/dmitrijs2005/heirvault/internal/repositories/compartments"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/dmitrijs2005/heirvault/internal/store"
	"github.com/dmitrijs2005/heirvault/internal/timex"
)

var ErrEmptyName = errors.New("compartment name must not be empty")

type Manager struct {
	store *store.Store
	sess  *session.Session
	audit *audit.Recorder
	clock timex.Clock
	log   logging.Logger
}

func NewManager(st *store.Store, sess *session.Session, rec *audit.Recorder, clock timex.Clock, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop{}
	}
	return &Manager{store: st, sess: sess, audit: rec, clock: clock, log: log}
}

// Create makes a new compartment wrapped under the session's master key and
// returns its recovery phrase. The phrase is not stored anywhere; the caller
// shows it once.
func (m *Manager) Create(ctx context.Context, name, description string) (*models.Compartment, string, error) {
	if err := m.sess.Require(session.ModeNormal); err != nil {
		return nil, "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ErrEmptyName
	}
	if name == models.PrincipalCompartment {
		return nil, "", common.ErrCompartmentNameCollision
	}

	masterKey, err := m.sess.MasterKey()
	if err != nil {
		return nil, "", err
	}
	defer common.WipeByteArray(masterKey)

	repo := m.store.Repos().Compartments
	if _, err := repo.GetByName(ctx, name); err == nil {
		return nil, "", common.ErrCompartmentNameCollision
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, "", common.Storage("get compartment", err)
	}

	entropy, err := mnemonic.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", err
	}
	phrase, err := mnemonic.FromEntropy(entropy)
	common.WipeByteArray(entropy)
	if err != nil {
		return nil, "", err
	}

	id, key, err := FromPhrase(phrase)
	if err != nil {
		return nil, "", err
	}
	defer common.WipeByteArray(key)

	wrapped, nonce, err := WrapKey(key, masterKey)
	if err != nil {
		return nil, "", err
	}

	c := &models.Compartment{
		Name:          name,
		CompartmentID: id,
		WrappedKey:    wrapped,
		WrapNonce:     nonce,
		Description:   description,
		CreatedAt:     m.clock.Now().UTC(),
	}
	if err := repo.Create(ctx, c); err != nil {
		if errors.Is(err, common.ErrCompartmentNameCollision) {
			return nil, "", err
		}
		return nil, "", common.Storage("create compartment", err)
	}

	m.log.Info(ctx, "compartment created", "name", name)
	m.audit.Record(ctx, audit.CompartmentCreated, name)
	return c, phrase, nil
}

// UnlockByName unwraps a compartment key with masterKey.
func (m *Manager) UnlockByName(ctx context.Context, name string, masterKey []byte) ([]byte, error) {
	r := m.store.Repos()
	if name == models.PrincipalCompartment {
		u, err := r.Users.Get(ctx)
		if err != nil {
			return nil, userErr(err)
		}
		return UnwrapKey(u.PrincipalKeyWrapped, u.PrincipalKeyNonce, masterKey)
	}

	c, err := r.Compartments.GetByName(ctx, name)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrCompartmentNotFound
	}
	if err != nil {
		return nil, common.Storage("get compartment", err)
	}
	return UnwrapKey(c.WrappedKey, c.WrapNonce, masterKey)
}

// UnlockByMnemonic finds the compartment a phrase belongs to and derives its
// key straight from the phrase.
func (m *Manager) UnlockByMnemonic(ctx context.Context, phrase string) (string, []byte, error) {
	id, key, err := FromPhrase(phrase)
	if err != nil {
		return "", nil, err
	}
	c, err := m.store.Repos().Compartments.GetByCompartmentID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		common.WipeByteArray(key)
		return "", nil, common.ErrCompartmentNotFound
	}
	if err != nil {
		common.WipeByteArray(key)
		return "", nil, common.Storage("get compartment", err)
	}
	return c.Name, key, nil
}

// SwitchActive makes name the session's active compartment. Only normal
// sessions may switch.
func (m *Manager) SwitchActive(ctx context.Context, name string) error {
	if err := m.sess.Require(session.ModeNormal); err != nil {
		return err
	}
	masterKey, err := m.sess.MasterKey()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(masterKey)

	key, err := m.UnlockByName(ctx, name, masterKey)
	if err != nil {
		return err
	}
	if err := m.sess.SwitchCompartment(name, key); err != nil {
		return err
	}
	m.log.Debug(ctx, "active compartment switched", "name", name)
	return nil
}

// List returns the compartments visible to the session: all of them in
// normal mode, only the active one otherwise. The principal compartment comes
// first.
func (m *Manager) List(ctx context.Context) ([]models.Compartment, error) {
	if err := m.sess.Require(session.ModeNormal, session.ModeInheritance, session.ModeRestrictedCompartment); err != nil {
		return nil, err
	}
	r := m.store.Repos()

	u, err := r.Users.Get(ctx)
	if err != nil {
		return nil, userErr(err)
	}
	all := []models.Compartment{{
		Name:        models.PrincipalCompartment,
		Description: "default compartment",
		CreatedAt:   u.CreatedAt,
	}}
	rest, err := r.Compartments.List(ctx)
	if err != nil {
		return nil, common.Storage("list compartments", err)
	}
	all = append(all, rest...)

	if m.sess.Mode() == session.ModeNormal {
		return all, nil
	}
	active, _, err := m.sess.ActiveCompartment()
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.Name == active {
			return []models.Compartment{c}, nil
		}
	}
	return nil, nil
}

// Adopt re-wraps the compartment a phrase belongs to under the session's
// master key. This reconnects compartments after a recovery reset replaced
// the master key.
func (m *Manager) Adopt(ctx context.Context, phrase string) (string, error) {
	if err := m.sess.Require(session.ModeNormal); err != nil {
		return "", err
	}
	masterKey, err := m.sess.MasterKey()
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(masterKey)

	name, key, err := m.UnlockByMnemonic(ctx, phrase)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	wrapped, nonce, err := WrapKey(key, masterKey)
	if err != nil {
		return "", err
	}
	if err := m.store.Repos().Compartments.UpdateWrap(ctx, name, wrapped, nonce); err != nil {
		return "", common.Storage("update compartment", err)
	}
	m.audit.Record(ctx, audit.CompartmentAdopted, name)
	return name, nil
}

// Rewrap moves every compartment in repo from oldMaster to newMaster.
// Compartments that do not open under oldMaster, such as those not yet
// adopted after a recovery reset, are left alone and returned in skipped.
func Rewrap(ctx context.Context, repo comprepo.Repository, oldMaster, newMaster []byte) (skipped []string, err error) {
	list, err := repo.List(ctx)
	if err != nil {
		return nil, common.Storage("list compartments", err)
	}
	for _, c := range list {
		key, err := UnwrapKey(c.WrappedKey, c.WrapNonce, oldMaster)
		if errors.Is(err, common.ErrWrongMasterKey) {
			skipped = append(skipped, c.Name)
			continue
		}
		if err != nil {
			return skipped, fmt.Errorf("compartment %q: %w", c.Name, err)
		}
		wrapped, nonce, err := WrapKey(key, newMaster)
		common.WipeByteArray(key)
		if err != nil {
			return skipped, err
		}
		if err := repo.UpdateWrap(ctx, c.Name, wrapped, nonce); err != nil {
			return skipped, common.Storage("update compartment", err)
		}
	}
	return skipped, nil
}

func userErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUserNotConfigured
	}
	return common.Storage("get user", err)
}
