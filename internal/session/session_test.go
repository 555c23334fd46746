package session

import (
	"sync"
	"testing"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestSession_Lifecycle(t *testing.T) {
	s := New()
	require.Equal(t, Locked, s.State())
	require.ErrorIs(t, s.Require(ModeNormal), common.ErrNotAuthenticated)

	s.BeginAuthentication()
	require.Equal(t, Authenticating, s.State())

	mk := key(1)
	ck := key(2)
	s.Establish(ModeNormal, mk, "principal", ck)
	require.Equal(t, AuthenticatedNormal, s.State())
	require.True(t, s.Authenticated())
	require.NoError(t, s.Require(ModeNormal))
	require.ErrorIs(t, s.Require(ModeInheritance), common.ErrOperationNotPermitted)

	got, err := s.MasterKey()
	require.NoError(t, err)
	require.Equal(t, key(1), got)
	got[0] = 99
	again, _ := s.MasterKey()
	require.Equal(t, byte(1), again[0], "MasterKey must return a copy")

	s.Logout()
	require.Equal(t, LoggedOut, s.State())
	require.False(t, s.Authenticated())
	assert.Equal(t, make([]byte, 32), mk, "master key wiped on logout")
	assert.Equal(t, make([]byte, 32), ck, "compartment key wiped on logout")

	_, err = s.MasterKey()
	require.ErrorIs(t, err, common.ErrNotAuthenticated)

	s.Lock()
	require.Equal(t, Locked, s.State())
}

func TestSession_FailuresPersistUntilSuccess(t *testing.T) {
	s := New()
	s.BeginAuthentication()
	require.Equal(t, 1, s.Fail())
	s.BeginAuthentication()
	require.Equal(t, 2, s.Fail())
	s.Logout()
	require.Equal(t, 2, s.FailedAttempts())

	s.Establish(ModeInheritance, nil, "principal", key(3))
	require.Equal(t, 0, s.FailedAttempts())
	require.Equal(t, AuthenticatedInheritance, s.State())

	_, err := s.MasterKey()
	require.ErrorIs(t, err, common.ErrOperationNotPermitted)
}

func TestSession_SwitchCompartment(t *testing.T) {
	s := New()
	require.ErrorIs(t, s.SwitchCompartment("x", key(1)), common.ErrNotAuthenticated)

	s.Establish(ModeRestrictedCompartment, nil, "alpha", key(1))
	require.ErrorIs(t, s.SwitchCompartment("beta", key(2)), common.ErrOperationNotPermitted)
	name, _, err := s.ActiveCompartment()
	require.NoError(t, err)
	require.Equal(t, "alpha", name)

	old := key(4)
	s.Establish(ModeNormal, key(5), "alpha", old)
	require.NoError(t, s.SwitchCompartment("beta", key(6)))
	name, k, err := s.ActiveCompartment()
	require.NoError(t, err)
	require.Equal(t, "beta", name)
	require.Equal(t, key(6), k)
	require.Equal(t, make([]byte, 32), old)
}

func TestSession_InheritanceEligible(t *testing.T) {
	s := New()
	require.False(t, s.SetInheritanceEligible(false))
	require.True(t, s.SetInheritanceEligible(true))
	require.False(t, s.SetInheritanceEligible(true))
	require.True(t, s.InheritanceEligible())
	require.True(t, s.Snapshot().InheritanceEligible)
}

func TestSession_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Establish(ModeNormal, key(1), "principal", key(2))
			s.Logout()
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
			_, _, _ = s.ActiveCompartment()
		}()
	}
	wg.Wait()
	require.Equal(t, LoggedOut, s.State())
}

func TestStateAndModeStrings(t *testing.T) {
	assert.Equal(t, "authenticated (normal)", AuthenticatedNormal.String())
	assert.Equal(t, "restricted", ModeRestrictedCompartment.String())
	assert.Equal(t, "none", ModeNone.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSession_Abort(t *testing.T) {
	s := New()
	s.BeginAuthentication()
	s.Abort()
	require.Equal(t, Locked, s.State())
	require.Equal(t, 0, s.FailedAttempts())
}
