// Package auth implements the authentication state machine and the
// dead-man's switch.
//
// The primary password works only while the switch has not tripped; the
// inheritance password works only after it has. A compartment phrase opens a
// restricted, read-only session on that single compartment. Failed password
// attempts are counted for the life of the process and, when configured,
// trigger the autodestruct after too many.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/audit"
	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/compartments"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/dmitrijs2005/heirvault/internal/store"
	"github.com/dmitrijs2005/heirvault/internal/timex"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Wiper runs the autodestruct.
type Wiper interface {
	Wipe(ctx context.Context) error
}

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	// Switch holds the dead-man's switch policy given to new vaults.
	Switch        models.DeadManSwitchConfig
	KDFIterations int
	Hasher        cryptox.PasswordHasher
	Limiter       *rate.Limiter
	Clock         timex.Clock
	Log           logging.Logger
	Audit         *audit.Recorder
}

// Engine authenticates the vault owner and their heir.
type Engine struct {
	store *store.Store
	sess  *session.Session
	comps *compartments.Manager
	wiper Wiper

	policy     models.DeadManSwitchConfig
	iterations int
	hasher     cryptox.PasswordHasher
	limiter    *rate.Limiter
	clock      timex.Clock
	log        logging.Logger
	audit      *audit.Recorder
}

func NewEngine(st *store.Store, sess *session.Session, comps *compartments.Manager, wiper Wiper, o Options) *Engine {
	e := &Engine{
		store:      st,
		sess:       sess,
		comps:      comps,
		wiper:      wiper,
		policy:     o.Switch,
		iterations: o.KDFIterations,
		hasher:     o.Hasher,
		limiter:    o.Limiter,
		clock:      o.Clock,
		log:        o.Log,
		audit:      o.Audit,
	}
	if e.policy.ConfirmationIntervalDays <= 0 {
		e.policy.ConfirmationIntervalDays = models.DefaultConfirmationIntervalDays
	}
	if e.iterations <= 0 {
		e.iterations = cryptox.DefaultIterations
	}
	if e.hasher == (cryptox.PasswordHasher{}) {
		e.hasher = cryptox.DefaultPasswordHasher()
	}
	if e.limiter == nil {
		e.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	// A finite limiter with no burst rejects every Wait.
	if e.limiter.Limit() != rate.Inf && e.limiter.Burst() < 1 {
		e.limiter.SetBurst(1)
	}
	if e.clock == nil {
		e.clock = timex.SystemClock{}
	}
	if e.log == nil {
		e.log = logging.Nop{}
	}
	return e
}

func (e *Engine) Session() *session.Session { return e.sess }

// Setup creates the vault owner and returns the recovery phrase, which is
// shown once and never stored.
func (e *Engine) Setup(ctx context.Context, displayName string, primary, inheritance []byte) (string, error) {
	if err := e.policy.Validate(); err != nil {
		return "", err
	}
	r := e.store.Repos()
	if _, err := r.Users.Get(ctx); err == nil {
		return "", common.ErrUserAlreadyConfigured
	} else if !errors.Is(err, common.ErrorNotFound) {
		return "", common.Storage("get user", err)
	}

	principalKey := common.GenerateRandByteArray(cryptox.KeySize)
	defer common.WipeByteArray(principalKey)

	m, err := BuildMaterial(e.hasher, e.iterations, primary, inheritance, principalKey)
	if err != nil {
		return "", err
	}
	common.WipeByteArray(m.MasterKey)

	u := m.Credential
	u.ID = uuid.NewString()
	u.DisplayName = displayName
	u.CreatedAt = e.clock.Now().UTC()

	cfg := e.policy
	cfg.LastConfirmation = u.CreatedAt

	err = e.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if err := r.Users.Create(ctx, &u); err != nil {
			return err
		}
		return store.SaveSwitchConfig(ctx, r.Metadata, cfg)
	})
	if errors.Is(err, common.ErrUserAlreadyConfigured) {
		return "", err
	}
	if err != nil {
		return "", common.Storage("setup", err)
	}

	e.log.Info(ctx, "vault configured", "interval_days", cfg.ConfirmationIntervalDays)
	e.audit.Record(ctx, audit.Setup, displayName)
	return m.RecoveryPhrase, nil
}

// InheritanceDue reports whether the confirmation interval has elapsed.
func InheritanceDue(cfg models.DeadManSwitchConfig, now time.Time) bool {
	return !now.Before(cfg.Deadline())
}

// SwitchConfig returns the persisted switch configuration. found is false
// until the vault has been set up.
func (e *Engine) SwitchConfig(ctx context.Context) (cfg models.DeadManSwitchConfig, found bool, err error) {
	cfg, found, err = store.LoadSwitchConfig(ctx, e.store.Repos().Metadata, e.policy)
	if err != nil {
		return cfg, false, common.Storage("load switch config", err)
	}
	return cfg, found, nil
}

// CheckInheritanceModeDue re-evaluates the switch and updates the session's
// inheritance-eligible flag. It authenticates no one.
func (e *Engine) CheckInheritanceModeDue(ctx context.Context) (bool, error) {
	_, _, due, err := e.evaluate(ctx)
	return due, err
}

func (e *Engine) evaluate(ctx context.Context) (cfg models.DeadManSwitchConfig, found, due bool, err error) {
	cfg, found, err = e.SwitchConfig(ctx)
	if err != nil {
		return cfg, false, false, err
	}
	due = found && InheritanceDue(cfg, e.clock.Now())
	if e.sess.SetInheritanceEligible(due) && due {
		e.log.Warn(ctx, "inheritance mode is now active")
		e.audit.Record(ctx, audit.InheritanceDue, cfg.Deadline().Format(time.RFC3339))
	}
	return cfg, found, due, nil
}

// RemainingTime is the time left before inheritance mode, zero once due.
func (e *Engine) RemainingTime(ctx context.Context) (time.Duration, error) {
	cfg, found, err := e.SwitchConfig(ctx)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, common.ErrUserNotConfigured
	}
	left := cfg.Deadline().Sub(e.clock.Now())
	if left < 0 {
		left = 0
	}
	return left, nil
}

// AuthenticateWithPassword tries password as the primary and then as the
// inheritance credential and establishes the matching session.
func (e *Engine) AuthenticateWithPassword(ctx context.Context, password []byte) (session.AccessMode, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return session.ModeNone, err
	}
	e.sess.BeginAuthentication()

	cfg, found, due, err := e.evaluate(ctx)
	if err != nil {
		e.sess.Abort()
		return session.ModeNone, err
	}

	u, err := e.store.Repos().Users.Get(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		return session.ModeNone, e.fail(ctx, cfg, found, common.ErrUserNotConfigured)
	}
	if err != nil {
		e.sess.Abort()
		return session.ModeNone, common.Storage("get user", err)
	}

	ok, err := cryptox.Verify(password, u.PrimarySalt, u.PrimaryHash)
	if err != nil {
		e.sess.Abort()
		return session.ModeNone, fmt.Errorf("stored primary hash: %w", err)
	}
	if ok {
		if due {
			return session.ModeNone, e.fail(ctx, cfg, found, common.ErrPrimaryPasswordDuringInheritance)
		}
		return e.establish(ctx, u, password, session.ModeNormal)
	}

	ok, err = cryptox.Verify(password, u.InheritanceSalt, u.InheritanceHash)
	if err != nil {
		e.sess.Abort()
		return session.ModeNone, fmt.Errorf("stored inheritance hash: %w", err)
	}
	if ok {
		if !due {
			return session.ModeNone, e.fail(ctx, cfg, found, common.ErrInheritancePasswordOutsideWindow)
		}
		return e.establish(ctx, u, password, session.ModeInheritance)
	}

	return session.ModeNone, e.fail(ctx, cfg, found, common.ErrInvalidCredential)
}

func (e *Engine) establish(ctx context.Context, u *models.UserCredential, password []byte, mode session.AccessMode) (session.AccessMode, error) {
	var (
		wrapKey        []byte
		wrapped, nonce string
		err            error
	)
	if mode == session.ModeNormal {
		wrapKey, err = MasterKeyFor(u, password)
		wrapped, nonce = u.PrincipalKeyWrapped, u.PrincipalKeyNonce
	} else {
		wrapKey, err = InheritanceKeyFor(u, password)
		wrapped, nonce = u.InheritanceKeyWrapped, u.InheritanceKeyNonce
	}
	if err != nil {
		e.sess.Abort()
		return session.ModeNone, err
	}

	principalKey, err := compartments.UnwrapKey(wrapped, nonce, wrapKey)
	if err != nil {
		common.WipeByteArray(wrapKey)
		e.sess.Abort()
		return session.ModeNone, fmt.Errorf("principal key: %w", err)
	}

	if mode == session.ModeNormal {
		e.sess.Establish(mode, wrapKey, models.PrincipalCompartment, principalKey)
	} else {
		common.WipeByteArray(wrapKey)
		e.sess.Establish(mode, nil, models.PrincipalCompartment, principalKey)
	}

	e.log.Info(ctx, "login succeeded", "mode", mode.String())
	e.audit.Record(ctx, audit.LoginSuccess, mode.String())
	return mode, nil
}

// fail counts a failed password attempt and runs the autodestruct when the
// limit is reached.
func (e *Engine) fail(ctx context.Context, cfg models.DeadManSwitchConfig, found bool, cause error) error {
	n := e.sess.Fail()
	e.log.Warn(ctx, "login failed", "attempt", n, "reason", cause.Error())
	e.audit.Record(ctx, audit.LoginFailure, cause.Error())

	if !found || !cfg.AutoWipeEnabled || cfg.MaxPasswordAttempts <= 0 || n < cfg.MaxPasswordAttempts {
		return cause
	}
	if e.wiper == nil {
		return cause
	}
	if err := e.wiper.Wipe(ctx); err != nil {
		e.log.Error(ctx, "autodestruct failed", "error", err)
		return fmt.Errorf("autodestruct: %w", err)
	}
	e.sess.ResetFailures()
	e.log.Warn(ctx, "autodestruct completed", "attempts", n)
	e.audit.Record(ctx, audit.Autodestruct, fmt.Sprintf("%d failed attempts", n))
	return common.ErrMaxAttemptsExceededDataWiped
}

// AuthenticateWithMnemonic opens a restricted session on the compartment the
// phrase belongs to and returns its name. Failures count towards the attempt
// counter but never trigger the autodestruct.
func (e *Engine) AuthenticateWithMnemonic(ctx context.Context, phrase string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	e.sess.BeginAuthentication()

	name, key, err := e.comps.UnlockByMnemonic(ctx, phrase)
	if errors.Is(err, common.ErrInvalidMnemonic) || errors.Is(err, common.ErrCompartmentNotFound) {
		n := e.sess.Fail()
		e.log.Warn(ctx, "phrase login failed", "attempt", n, "reason", err.Error())
		e.audit.Record(ctx, audit.LoginFailure, err.Error())
		return "", err
	}
	if err != nil {
		e.sess.Abort()
		return "", err
	}

	e.sess.Establish(session.ModeRestrictedCompartment, nil, name, key)
	e.log.Info(ctx, "login succeeded", "mode", session.ModeRestrictedCompartment.String())
	e.audit.Record(ctx, audit.LoginSuccess, "restricted:"+name)
	return name, nil
}

// RenewPeriod confirms the owner is alive and restarts the interval. Only a
// normal session may renew; logging in never renews implicitly.
func (e *Engine) RenewPeriod(ctx context.Context) error {
	if err := e.sess.Require(session.ModeNormal); err != nil {
		return err
	}
	md := e.store.Repos().Metadata
	cfg, _, err := store.LoadSwitchConfig(ctx, md, e.policy)
	if err != nil {
		return common.Storage("load switch config", err)
	}
	cfg.LastConfirmation = e.clock.Now().UTC()
	if err := store.SaveSwitchConfig(ctx, md, cfg); err != nil {
		return common.Storage("save switch config", err)
	}
	e.sess.SetInheritanceEligible(false)
	e.audit.Record(ctx, audit.Renewal, cfg.Deadline().Format(time.RFC3339))
	return nil
}

// UpdatePolicy changes the switch interval and lockout settings.
func (e *Engine) UpdatePolicy(ctx context.Context, intervalDays, maxAttempts int, autoWipe bool) error {
	if err := e.sess.Require(session.ModeNormal); err != nil {
		return err
	}
	if err := models.ValidatePolicy(intervalDays, maxAttempts); err != nil {
		return err
	}
	md := e.store.Repos().Metadata
	cfg, _, err := store.LoadSwitchConfig(ctx, md, e.policy)
	if err != nil {
		return common.Storage("load switch config", err)
	}
	cfg.ConfirmationIntervalDays = intervalDays
	cfg.MaxPasswordAttempts = maxAttempts
	cfg.AutoWipeEnabled = autoWipe
	if err := store.SaveSwitchConfig(ctx, md, cfg); err != nil {
		return common.Storage("save switch config", err)
	}
	return nil
}

// Logout drops the session and its keys.
func (e *Engine) Logout(ctx context.Context) {
	if !e.sess.Authenticated() {
		return
	}
	e.sess.Logout()
	e.audit.Record(ctx, audit.Logout, "")
}

// ResetWithRecoveryPhrase replaces both passwords after proving possession
// of the recovery phrase, and returns a new recovery phrase. Secrets in the
// principal compartment stay readable; other compartments must be adopted
// again with their own phrases.
func (e *Engine) ResetWithRecoveryPhrase(ctx context.Context, phrase string, primary, inheritance []byte) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	r := e.store.Repos()
	u, err := r.Users.Get(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		return "", common.ErrUserNotConfigured
	}
	if err != nil {
		return "", common.Storage("get user", err)
	}

	recoveryKey, err := RecoveryKeyFor(u, phrase)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredential) {
			e.sess.Fail()
			e.audit.Record(ctx, audit.LoginFailure, "recovery phrase mismatch")
		}
		return "", err
	}
	principalKey, err := compartments.UnwrapKey(u.RecoveryKeyWrapped, u.RecoveryKeyNonce, recoveryKey)
	common.WipeByteArray(recoveryKey)
	if err != nil {
		return "", fmt.Errorf("principal key: %w", err)
	}
	defer common.WipeByteArray(principalKey)

	m, err := BuildMaterial(e.hasher, e.iterations, primary, inheritance, principalKey)
	if err != nil {
		return "", err
	}
	common.WipeByteArray(m.MasterKey)
	m.Apply(u)

	if err := r.Users.Update(ctx, u); err != nil {
		return "", common.Storage("update user", err)
	}

	e.sess.Logout()
	e.sess.ResetFailures()
	e.log.Warn(ctx, "credentials reset with recovery phrase")
	e.audit.Record(ctx, audit.RecoveryReset, "")
	return m.RecoveryPhrase, nil
}
