// Package models defines the vault's persisted records and the typed
// payloads carried inside encrypted secrets.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
)

// UserCredential is the single owner account of a vault.
//
// Hashes are Argon2id PHC strings; salts are hex. The principal compartment
// key is random and stored wrapped three times so that the primary password,
// the inheritance password and the recovery phrase can each reach it.
type UserCredential struct {
	ID          string
	DisplayName string

	PrimaryHash     string
	PrimarySalt     string
	InheritanceHash string
	InheritanceSalt string

	// RecoverySeedHex is SHA-256 of the recovery seed, hex encoded. The seed
	// itself is never stored.
	RecoverySeedHex string

	PrincipalKeyWrapped   string
	PrincipalKeyNonce     string
	InheritanceKeyWrapped string
	InheritanceKeyNonce   string
	RecoveryKeyWrapped    string
	RecoveryKeyNonce      string
	KDFIterations         int
	CreatedAt             time.Time
}

// Compartment is an independently keyed namespace of secrets.
type Compartment struct {
	Name          string
	CompartmentID string
	WrappedKey    string
	WrapNonce     string
	Description   string
	CreatedAt     time.Time
}

// PrincipalCompartment is the name of the compartment every vault starts in.
const PrincipalCompartment = "principal"

// Bounds for DeadManSwitchConfig.ConfirmationIntervalDays.
const (
	DefaultConfirmationIntervalDays = 90
	MinConfirmationIntervalDays     = 30
	MaxConfirmationIntervalDays     = 365
)

// DeadManSwitchConfig drives the inheritance state machine.
type DeadManSwitchConfig struct {
	ConfirmationIntervalDays int       `json:"confirmation_interval_days"`
	LastConfirmation         time.Time `json:"last_confirmation"`
	MaxPasswordAttempts      int       `json:"max_password_attempts"`
	AutoWipeEnabled          bool      `json:"auto_wipe_enabled"`
}

// Validate checks the interval bounds and the attempt limit. Errors match
// common.ErrInvalidPolicy.
func (c DeadManSwitchConfig) Validate() error {
	return ValidatePolicy(c.ConfirmationIntervalDays, c.MaxPasswordAttempts)
}

// ValidatePolicy checks a confirmation interval and an attempt limit; zero
// attempts means no limit.
func ValidatePolicy(intervalDays, maxAttempts int) error {
	if intervalDays < MinConfirmationIntervalDays || intervalDays > MaxConfirmationIntervalDays {
		return fmt.Errorf("%w: interval must be %d-%d days, got %d",
			common.ErrInvalidPolicy, MinConfirmationIntervalDays, MaxConfirmationIntervalDays, intervalDays)
	}
	if maxAttempts < 0 {
		return fmt.Errorf("%w: negative attempt limit %d", common.ErrInvalidPolicy, maxAttempts)
	}
	return nil
}

// Deadline is the instant inheritance mode becomes due. Calendar days are
// added, so the result never wraps for any int interval.
func (c DeadManSwitchConfig) Deadline() time.Time {
	return c.LastConfirmation.AddDate(0, 0, c.ConfirmationIntervalDays)
}

// AuditEvent is one append-only log line.
type AuditEvent struct {
	ID        int64
	Type      string
	Message   string
	Timestamp time.Time
}
