// Package common defines sentinel errors and small helpers shared by every
// HeirVault layer. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Credential and session errors.
	ErrInvalidCredential                = errors.New("invalid credential")
	ErrUserNotConfigured                = errors.New("user not configured")
	ErrUserAlreadyConfigured            = errors.New("user already configured")
	ErrPasswordsMustDiffer              = errors.New("primary and inheritance passwords must differ")
	ErrPrimaryPasswordDuringInheritance = errors.New("primary password rejected: inheritance mode is active")
	ErrInheritancePasswordOutsideWindow = errors.New("inheritance password rejected: inheritance mode is not active")
	ErrMaxAttemptsExceededDataWiped     = errors.New("maximum password attempts exceeded: vault data wiped")
	ErrNotAuthenticated                 = errors.New("not authenticated")
	ErrOperationNotPermitted            = errors.New("operation not permitted in current access mode")
	ErrInvalidPolicy                    = errors.New("invalid dead man's switch policy")

	// Cipher errors.
	ErrInvalidKeyLength      = errors.New("invalid key length")
	ErrAuthenticationFailure = errors.New("authentication failure")

	// Compartment errors.
	ErrCrossCompartmentAccessDenied = errors.New("cross-compartment access denied")
	ErrCompartmentNameCollision     = errors.New("compartment name already exists")
	ErrCompartmentNotFound          = errors.New("compartment not found")
	ErrWrongMasterKey               = errors.New("wrong master key")
	ErrInvalidMnemonic              = errors.New("invalid mnemonic phrase")

	// Storage and format errors.
	ErrStorageUnavailable       = errors.New("storage unavailable")
	ErrUnsupportedBackupVersion = errors.New("unsupported backup version")
)

// StorageError attaches the failing operation and its cause to
// ErrStorageUnavailable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage unavailable: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports a match against ErrStorageUnavailable so callers can branch on
// the kind without knowing the concrete cause.
func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

// Storage wraps err as a StorageError. A nil err, or one that is already a
// storage error or a known sentinel, is returned unchanged.
func Storage(op string, err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrorNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
