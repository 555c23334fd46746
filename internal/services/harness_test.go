package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/audit"
	"github.com/dmitrijs2005/heirvault/internal/auth"
	"github.com/dmitrijs2005/heirvault/internal/blobstore"
	"github.com/dmitrijs2005/heirvault/internal/compartments"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/dmitrijs2005/heirvault/internal/store"
	"github.com/dmitrijs2005/heirvault/internal/timex"
	"github.com/dmitrijs2005/heirvault/internal/vaultcipher"
	"github.com/stretchr/testify/require"
)

const (
	primaryPw     = "correcthorse1"
	inheritancePw = "batterystaple2"
	kdfRounds     = 1000
)

var fastHasher = cryptox.PasswordHasher{Time: 1, MemoryKiB: 1024, Threads: 1, KeyLength: 32}

type harness struct {
	st     *store.Store
	blobs  *blobstore.FSStore
	clock  *timex.FakeClock
	sess   *session.Session
	comps  *compartments.Manager
	engine *auth.Engine
	wiper  *Wiper
	vault  VaultService
	pw     PasswordService
	bk     BackupService
	phrase string
}

func newHarness(t *testing.T, policy models.DeadManSwitchConfig) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	blobs, err := blobstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	clock := timex.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	sess := session.New()
	rec := audit.NewRecorder(st.Repos().AuditLog, clock, nil)
	comps := compartments.NewManager(st, sess, rec, clock, nil)
	wiper := NewWiper(st, blobs, nil)
	cipher := vaultcipher.New(clock)

	if policy.ConfirmationIntervalDays == 0 {
		policy.ConfirmationIntervalDays = 90
	}
	engine := auth.NewEngine(st, sess, comps, wiper, auth.Options{
		Switch:        policy,
		KDFIterations: kdfRounds,
		Hasher:        fastHasher,
		Clock:         clock,
		Audit:         rec,
	})

	return &harness{
		st:     st,
		blobs:  blobs,
		clock:  clock,
		sess:   sess,
		comps:  comps,
		engine: engine,
		wiper:  wiper,
		vault:  NewVaultService(st, blobs, sess, cipher, nil),
		pw:     NewPasswordService(st, sess, cipher, fastHasher, kdfRounds, rec, nil),
		bk:     NewBackupService(st, blobs, sess, clock, rec, nil),
	}
}

// configured returns a harness with an owner set up and logged in normally.
func configured(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, models.DeadManSwitchConfig{})
	phrase, err := h.engine.Setup(context.Background(), "Ana", []byte(primaryPw), []byte(inheritancePw))
	require.NoError(t, err)
	h.phrase = phrase
	h.login(t, primaryPw)
	return h
}

func (h *harness) login(t *testing.T, pw string) {
	t.Helper()
	_, err := h.engine.AuthenticateWithPassword(context.Background(), []byte(pw))
	require.NoError(t, err)
}

func note(t *testing.T, title, text string) models.Envelope {
	t.Helper()
	env, err := models.Wrap(title, nil, models.Note{Text: text})
	require.NoError(t, err)
	return env
}

func noteText(t *testing.T, env *models.Envelope) string {
	t.Helper()
	v, err := env.Unwrap()
	require.NoError(t, err)
	n, ok := v.(*models.Note)
	require.True(t, ok)
	return n.Text
}
