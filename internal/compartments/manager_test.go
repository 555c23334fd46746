package compartments

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/audit"
	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/mnemonic"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/dmitrijs2005/heirvault/internal/store"
	"github.com/dmitrijs2005/heirvault/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	st           *store.Store
	sess         *session.Session
	m            *Manager
	masterKey    []byte
	principalKey []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := timex.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	masterKey := common.GenerateRandByteArray(32)
	principalKey := common.GenerateRandByteArray(32)

	wrapped, nonce, err := WrapKey(principalKey, masterKey)
	require.NoError(t, err)
	require.NoError(t, st.Repos().Users.Create(ctx, &models.UserCredential{
		ID:                  "u1",
		DisplayName:         "Ana",
		PrincipalKeyWrapped: wrapped,
		PrincipalKeyNonce:   nonce,
		CreatedAt:           clock.Now(),
	}))

	sess := session.New()
	rec := audit.NewRecorder(st.Repos().AuditLog, clock, nil)
	f := &fixture{
		st:           st,
		sess:         sess,
		m:            NewManager(st, sess, rec, clock, nil),
		masterKey:    masterKey,
		principalKey: principalKey,
	}
	f.loginNormal()
	return f
}

func (f *fixture) loginNormal() {
	f.sess.Establish(session.ModeNormal, append([]byte(nil), f.masterKey...),
		models.PrincipalCompartment, append([]byte(nil), f.principalKey...))
}

func TestCreate_AndUnlockByMnemonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, phrase, err := f.m.Create(ctx, "vault2", "second vault")
	require.NoError(t, err)
	require.Len(t, strings.Fields(phrase), 12)
	require.True(t, mnemonic.Validate(phrase))

	seed := mnemonic.Seed(phrase, "")
	require.Equal(t, hex.EncodeToString(seed[:16]), c.CompartmentID)

	name, key, err := f.m.UnlockByMnemonic(ctx, phrase)
	require.NoError(t, err)
	require.Equal(t, "vault2", name)
	require.Equal(t, cryptox.LabeledKey("compartimento", seed), key)

	byName, err := f.m.UnlockByName(ctx, "vault2", f.masterKey)
	require.NoError(t, err)
	require.Equal(t, key, byName)

	events, err := f.st.Repos().AuditLog.Recent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, audit.CompartmentCreated, events[0].Type)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.m.Create(ctx, "alpha", "")
	require.NoError(t, err)

	_, _, err = f.m.Create(ctx, "alpha", "")
	require.ErrorIs(t, err, common.ErrCompartmentNameCollision)
	_, _, err = f.m.Create(ctx, models.PrincipalCompartment, "")
	require.ErrorIs(t, err, common.ErrCompartmentNameCollision)
	_, _, err = f.m.Create(ctx, "  ", "")
	require.ErrorIs(t, err, ErrEmptyName)

	f.sess.Establish(session.ModeInheritance, nil, models.PrincipalCompartment, f.principalKey)
	_, _, err = f.m.Create(ctx, "beta", "")
	require.ErrorIs(t, err, common.ErrOperationNotPermitted)

	f.sess.Logout()
	_, _, err = f.m.Create(ctx, "beta", "")
	require.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestUnlockByName_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.m.Create(ctx, "alpha", "")
	require.NoError(t, err)

	_, err = f.m.UnlockByName(ctx, "alpha", common.GenerateRandByteArray(32))
	require.ErrorIs(t, err, common.ErrWrongMasterKey)

	_, err = f.m.UnlockByName(ctx, "ghost", f.masterKey)
	require.ErrorIs(t, err, common.ErrCompartmentNotFound)

	key, err := f.m.UnlockByName(ctx, models.PrincipalCompartment, f.masterKey)
	require.NoError(t, err)
	require.Equal(t, f.principalKey, key)
}

func TestUnlockByMnemonic_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.m.UnlockByMnemonic(ctx, "not a real phrase at all")
	require.ErrorIs(t, err, common.ErrInvalidMnemonic)

	phrase, err := mnemonic.Generate(12)
	require.NoError(t, err)
	_, _, err = f.m.UnlockByMnemonic(ctx, phrase)
	require.ErrorIs(t, err, common.ErrCompartmentNotFound)
}

func TestSwitchActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, phrase, err := f.m.Create(ctx, "alpha", "")
	require.NoError(t, err)

	require.NoError(t, f.m.SwitchActive(ctx, "alpha"))
	name, key, err := f.sess.ActiveCompartment()
	require.NoError(t, err)
	require.Equal(t, "alpha", name)
	_, want, err := FromPhrase(phrase)
	require.NoError(t, err)
	require.Equal(t, want, key)

	require.ErrorIs(t, f.m.SwitchActive(ctx, "ghost"), common.ErrCompartmentNotFound)

	f.sess.Establish(session.ModeRestrictedCompartment, nil, "alpha", want)
	require.ErrorIs(t, f.m.SwitchActive(ctx, models.PrincipalCompartment), common.ErrOperationNotPermitted)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.m.Create(ctx, "alpha", "a")
	require.NoError(t, err)
	_, _, err = f.m.Create(ctx, "beta", "b")
	require.NoError(t, err)

	all, err := f.m.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"principal", "alpha", "beta"}, names)

	f.sess.Establish(session.ModeRestrictedCompartment, nil, "beta", common.GenerateRandByteArray(32))
	only, err := f.m.List(ctx)
	require.NoError(t, err)
	require.Len(t, only, 1)
	require.Equal(t, "beta", only[0].Name)
}

func TestAdoptAndRewrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, phrase, err := f.m.Create(ctx, "alpha", "")
	require.NoError(t, err)

	newMaster := common.GenerateRandByteArray(32)
	skipped, err := Rewrap(ctx, f.st.Repos().Compartments, f.masterKey, newMaster)
	require.NoError(t, err)
	require.Empty(t, skipped)

	_, err = f.m.UnlockByName(ctx, "alpha", f.masterKey)
	require.ErrorIs(t, err, common.ErrWrongMasterKey)
	_, err = f.m.UnlockByName(ctx, "alpha", newMaster)
	require.NoError(t, err)

	// compartments that do not open under the old key are skipped
	skipped, err = Rewrap(ctx, f.st.Repos().Compartments, f.masterKey, newMaster)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, skipped)

	// the session still holds the old master key; adopting rewraps under it
	name, err := f.m.Adopt(ctx, phrase)
	require.NoError(t, err)
	require.Equal(t, "alpha", name)
	_, err = f.m.UnlockByName(ctx, "alpha", f.masterKey)
	require.NoError(t, err)
}

func TestWrapUnwrap(t *testing.T) {
	key := common.GenerateRandByteArray(32)
	wrapping := common.GenerateRandByteArray(32)
	ct, nonce, err := WrapKey(key, wrapping)
	require.NoError(t, err)

	got, err := UnwrapKey(ct, nonce, wrapping)
	require.NoError(t, err)
	require.Equal(t, key, got)

	_, err = UnwrapKey(ct, nonce, make([]byte, 16))
	require.ErrorIs(t, err, common.ErrInvalidKeyLength)

	short, shortNonce, err := cryptox.Encrypt([]byte("abcd"), wrapping)
	require.NoError(t, err)
	_, err = UnwrapKey(short, shortNonce, wrapping)
	require.ErrorIs(t, err, common.ErrInvalidKeyLength)

	notHex, notHexNonce, err := cryptox.Encrypt([]byte("zz"), wrapping)
	require.NoError(t, err)
	_, err = UnwrapKey(notHex, notHexNonce, wrapping)
	require.Error(t, err)
}
