// Package session holds the in-memory state of the single vault session:
// who is authenticated, in which access mode, and which compartment key is
// active. Nothing here is ever persisted.
package session

import (
	"sync"

	"github.com/dmitrijs2005/heirvault/internal/common"
)

// State is a step of the authentication state machine.
type State int

const (
	Locked State = iota
	Authenticating
	AuthenticatedNormal
	AuthenticatedInheritance
	AuthenticatedRestricted
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Authenticating:
		return "authenticating"
	case AuthenticatedNormal:
		return "authenticated (normal)"
	case AuthenticatedInheritance:
		return "authenticated (inheritance)"
	case AuthenticatedRestricted:
		return "authenticated (restricted)"
	case LoggedOut:
		return "logged out"
	default:
		return "unknown"
	}
}

// AccessMode is the capability set of an authenticated session.
type AccessMode int

const (
	ModeNone AccessMode = iota
	ModeNormal
	ModeInheritance
	ModeRestrictedCompartment
)

func (m AccessMode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeInheritance:
		return "inheritance"
	case ModeRestrictedCompartment:
		return "restricted"
	default:
		return "none"
	}
}

// Snapshot is a copy of the session's public fields.
type Snapshot struct {
	State               State
	Mode                AccessMode
	ActiveCompartment   string
	FailedAttempts      int
	InheritanceEligible bool
}

// Session is safe for concurrent use. Key material handed in is owned by the
// session from then on and wiped on logout or replacement; key material
// handed out is a copy.
type Session struct {
	mu sync.RWMutex

	state      State
	mode       AccessMode
	masterKey  []byte
	activeName string
	activeKey  []byte
	failed     int
	eligible   bool
}

func New() *Session {
	return &Session{state: Locked}
}

// BeginAuthentication moves a locked or logged-out session to Authenticating.
// An already authenticated session is dropped first.
func (s *Session) BeginAuthentication() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearKeysLocked()
	s.state = Authenticating
	s.mode = ModeNone
}

// Establish records a successful login. masterKey may be nil for inheritance
// and restricted sessions.
func (s *Session) Establish(mode AccessMode, masterKey []byte, compartment string, compartmentKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearKeysLocked()

	s.mode = mode
	switch mode {
	case ModeNormal:
		s.state = AuthenticatedNormal
	case ModeInheritance:
		s.state = AuthenticatedInheritance
	case ModeRestrictedCompartment:
		s.state = AuthenticatedRestricted
	}
	s.masterKey = masterKey
	s.activeName = compartment
	s.activeKey = compartmentKey
	s.failed = 0
}

// Fail ends an authentication attempt unsuccessfully and returns the new
// failure count.
func (s *Session) Fail() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.state = Locked
	s.mode = ModeNone
	return s.failed
}

// Abort ends an authentication attempt that failed for reasons other than
// the credential, leaving the counter alone.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticating {
		s.state = Locked
	}
}

// ResetFailures clears the attempt counter.
func (s *Session) ResetFailures() {
	s.mu.Lock()
	s.failed = 0
	s.mu.Unlock()
}

// Logout wipes keys and ends the session.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearKeysLocked()
	s.state = LoggedOut
	s.mode = ModeNone
}

// Lock returns a logged-out session to Locked.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == LoggedOut {
		s.state = Locked
	}
}

// SwitchCompartment replaces the active compartment. Only normal sessions
// may switch.
func (s *Session) SwitchCompartment(name string, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AuthenticatedNormal {
		common.WipeByteArray(key)
		if !s.authenticatedLocked() {
			return common.ErrNotAuthenticated
		}
		return common.ErrOperationNotPermitted
	}
	common.WipeByteArray(s.activeKey)
	s.activeName = name
	s.activeKey = key
	return nil
}

// ReplaceMasterKey swaps the master key after a password change.
func (s *Session) ReplaceMasterKey(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.masterKey)
	s.masterKey = key
}

// SetInheritanceEligible flips the advisory flag and reports whether it
// changed.
func (s *Session) SetInheritanceEligible(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.eligible != v
	s.eligible = v
	return changed
}

func (s *Session) InheritanceEligible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eligible
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Mode() AccessMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) FailedAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticatedLocked()
}

// Require returns ErrNotAuthenticated when no one is logged in and
// ErrOperationNotPermitted when the session's mode is not among allowed.
func (s *Session) Require(allowed ...AccessMode) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticatedLocked() {
		return common.ErrNotAuthenticated
	}
	for _, m := range allowed {
		if m == s.mode {
			return nil
		}
	}
	return common.ErrOperationNotPermitted
}

// MasterKey returns a copy of the master key, or ErrOperationNotPermitted
// when the session has none.
func (s *Session) MasterKey() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticatedLocked() {
		return nil, common.ErrNotAuthenticated
	}
	if s.masterKey == nil {
		return nil, common.ErrOperationNotPermitted
	}
	return clone(s.masterKey), nil
}

// ActiveCompartment returns the active compartment name and a copy of its key.
func (s *Session) ActiveCompartment() (string, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticatedLocked() {
		return "", nil, common.ErrNotAuthenticated
	}
	return s.activeName, clone(s.activeKey), nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:               s.state,
		Mode:                s.mode,
		ActiveCompartment:   s.activeName,
		FailedAttempts:      s.failed,
		InheritanceEligible: s.eligible,
	}
}

func (s *Session) authenticatedLocked() bool {
	switch s.state {
	case AuthenticatedNormal, AuthenticatedInheritance, AuthenticatedRestricted:
		return true
	}
	return false
}

func (s *Session) clearKeysLocked() {
	common.WipeByteArray(s.masterKey)
	common.WipeByteArray(s.activeKey)
	s.masterKey = nil
	s.activeKey = nil
	s.activeName = ""
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
