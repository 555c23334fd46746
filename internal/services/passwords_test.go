package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/stretchr/testify/require"
)

func TestReconfigure(t *testing.T) {
	h := configured(t)
	ctx := context.Background()

	id, err := h.vault.Add(ctx, note(t, "n", "kept across password change"), nil)
	require.NoError(t, err)
	_, phrase, err := h.comps.Create(ctx, "alpha", "")
	require.NoError(t, err)

	// a record that does not open under the principal key
	bad := models.SecretRecord{ID: "broken", Kind: models.EntryTypeNote, Title: "broken",
		Ciphertext: "AAAA", Nonce: "AAAA", CompartmentName: models.PrincipalCompartment}
	require.NoError(t, h.st.Repos().Secrets.CreateOrUpdate(ctx, &bad))

	_, err = h.pw.Reconfigure(ctx, []byte("wrong"), []byte("p2"), []byte("i2"))
	require.ErrorIs(t, err, common.ErrInvalidCredential)
	_, err = h.pw.Reconfigure(ctx, []byte(primaryPw), []byte("same"), []byte("same"))
	require.ErrorIs(t, err, common.ErrPasswordsMustDiffer)

	res, err := h.pw.Reconfigure(ctx, []byte(primaryPw), []byte("newprimary"), []byte("newheir"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Reencrypted)
	require.Contains(t, res.Failed, "broken")
	require.Empty(t, res.SkippedCompartments)
	require.NotEqual(t, h.phrase, res.RecoveryPhrase)

	// the live session keeps working with the rotated key
	env, err := h.vault.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "kept across password change", noteText(t, env))
	require.NoError(t, h.comps.SwitchActive(ctx, "alpha"))
	h.engine.Logout(ctx)

	_, err = h.engine.AuthenticateWithPassword(ctx, []byte(primaryPw))
	require.ErrorIs(t, err, common.ErrInvalidCredential)
	h.login(t, "newprimary")
	env, err = h.vault.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "kept across password change", noteText(t, env))
	require.NoError(t, h.comps.SwitchActive(ctx, "alpha"))

	// compartment phrases are unaffected
	h.engine.Logout(ctx)
	name, err := h.engine.AuthenticateWithMnemonic(ctx, phrase)
	require.NoError(t, err)
	require.Equal(t, "alpha", name)

	// the new recovery phrase works, the old one does not
	_, err = h.engine.ResetWithRecoveryPhrase(ctx, h.phrase, []byte("x1"), []byte("x2"))
	require.ErrorIs(t, err, common.ErrInvalidCredential)
	_, err = h.engine.ResetWithRecoveryPhrase(ctx, res.RecoveryPhrase, []byte("x1"), []byte("x2"))
	require.NoError(t, err)
}

func TestReconfigure_SessionSwitchFailureLogsOut(t *testing.T) {
	h := configured(t)
	ctx := context.Background()
	id, err := h.vault.Add(ctx, note(t, "n", "still here"), nil)
	require.NoError(t, err)

	old := switchCompartment
	t.Cleanup(func() { switchCompartment = old })
	switchCompartment = func(_ *session.Session, _ string, key []byte) error {
		common.WipeByteArray(key)
		return errors.New("session busy")
	}

	res, err := h.pw.Reconfigure(ctx, []byte(primaryPw), []byte("newprimary"), []byte("newheir"))
	require.NoError(t, err)
	require.True(t, res.SessionEnded)
	require.NotEmpty(t, res.RecoveryPhrase)
	require.Equal(t, session.LoggedOut, h.sess.State())

	switchCompartment = old
	h.login(t, "newprimary")
	env, err := h.vault.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "still here", noteText(t, env))
}

func TestReconfigure_RequiresNormalSession(t *testing.T) {
	h := configured(t)
	h.engine.Logout(context.Background())
	_, err := h.pw.Reconfigure(context.Background(), []byte(primaryPw), []byte("a"), []byte("b"))
	require.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestAdoptAfterRecoveryReset(t *testing.T) {
	h := configured(t)
	ctx := context.Background()

	_, phrase, err := h.comps.Create(ctx, "alpha", "")
	require.NoError(t, err)
	h.engine.Logout(ctx)

	_, err = h.engine.ResetWithRecoveryPhrase(ctx, h.phrase, []byte("reset1"), []byte("reset2"))
	require.NoError(t, err)
	h.login(t, "reset1")

	require.ErrorIs(t, h.comps.SwitchActive(ctx, "alpha"), common.ErrWrongMasterKey)

	// a password change now skips the orphaned compartment
	res, err := h.pw.Reconfigure(ctx, []byte("reset1"), []byte("again1"), []byte("again2"))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, res.SkippedCompartments)

	name, err := h.comps.Adopt(ctx, phrase)
	require.NoError(t, err)
	require.Equal(t, "alpha", name)
	require.NoError(t, h.comps.SwitchActive(ctx, "alpha"))
}
