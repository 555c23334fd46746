package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/session"
)

var errPasswordMismatch = errors.New("passwords do not match")

// readNewPassword asks for a password twice. The caller wipes the result.
func (a *App) readNewPassword(label string) ([]byte, error) {
	pw, err := getPassword(a.out, label)
	if err != nil {
		return nil, err
	}
	again, err := getPassword(a.out, "Repeat "+label)
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if !bytes.Equal(pw, again) {
		common.WipeByteArray(pw)
		return nil, errPasswordMismatch
	}
	return pw, nil
}

// readPasswordPair reads the primary and inheritance passwords for setup,
// recovery and password changes.
func (a *App) readPasswordPair() (primary, inheritance []byte, err error) {
	primary, err = a.readNewPassword("primary password")
	if err != nil {
		return nil, nil, err
	}
	inheritance, err = a.readNewPassword("inheritance password")
	if err != nil {
		common.WipeByteArray(primary)
		return nil, nil, err
	}
	return primary, inheritance, nil
}

func (a *App) showRecoveryPhrase(phrase string) {
	a.printf("\nRecovery phrase (write it down, it is shown only once):\n\n  %s\n\n", phrase)
}

// Setup configures the vault owner and prints the recovery phrase.
func (a *App) Setup(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter your name", a.out)
	if err != nil {
		return err
	}
	primary, inheritance, err := a.readPasswordPair()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(primary)
	defer common.WipeByteArray(inheritance)

	phrase, err := a.engine.Setup(ctx, name, primary, inheritance)
	if err != nil {
		return err
	}
	a.printf("Vault configured.\n")
	a.showRecoveryPhrase(phrase)
	return nil
}

// Login authenticates with either password and reports the access mode.
func (a *App) Login(ctx context.Context) error {
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	mode, err := a.engine.AuthenticateWithPassword(ctx, password)
	if err != nil {
		if errors.Is(err, common.ErrMaxAttemptsExceededDataWiped) {
			a.printf("Too many failed attempts. The vault contents have been destroyed.\n")
		}
		return err
	}

	switch mode {
	case session.ModeInheritance:
		a.printf("Logged in with inheritance access (read-only).\n")
	default:
		a.printf("Logged in.\n")
		if left, err := a.engine.RemainingTime(ctx); err == nil {
			a.printf("Inheritance opens in %s unless you renew.\n", formatDuration(left))
		}
	}
	return nil
}

// Phrase opens the compartment a mnemonic phrase belongs to.
func (a *App) Phrase(ctx context.Context) error {
	phrase, err := getSimpleText(a.reader, "Enter compartment phrase", a.out)
	if err != nil {
		return err
	}
	name, err := a.engine.AuthenticateWithMnemonic(ctx, phrase)
	if err != nil {
		return err
	}
	a.printf("Opened compartment %q.\n", name)
	return nil
}

// Recover replaces both passwords using the recovery phrase.
func (a *App) Recover(ctx context.Context) error {
	phrase, err := getSimpleText(a.reader, "Enter recovery phrase", a.out)
	if err != nil {
		return err
	}
	primary, inheritance, err := a.readPasswordPair()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(primary)
	defer common.WipeByteArray(inheritance)

	newPhrase, err := a.engine.ResetWithRecoveryPhrase(ctx, phrase, primary, inheritance)
	if err != nil {
		return err
	}
	a.printf("Passwords reset. Other compartments must be adopted again with their phrases.\n")
	a.showRecoveryPhrase(newPhrase)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.engine.Logout(ctx)
	a.printf("Logged out.\n")
	return nil
}

// Status prints the session and switch state.
func (a *App) Status(ctx context.Context) error {
	snap := a.session().Snapshot()
	a.printf("State: %s\n", snap.State)
	if snap.Mode != session.ModeNone {
		a.printf("Access: %s\n", snap.Mode)
		a.printf("Compartment: %s\n", snap.ActiveCompartment)
	}
	if snap.FailedAttempts > 0 {
		a.printf("Failed attempts: %d\n", snap.FailedAttempts)
	}

	cfg, found, err := a.engine.SwitchConfig(ctx)
	if err != nil {
		return err
	}
	if !found {
		a.printf("Vault is not configured. Run 'setup'.\n")
		return nil
	}
	left, err := a.engine.RemainingTime(ctx)
	if err != nil {
		return err
	}
	if left == 0 {
		a.printf("Inheritance: open since %s\n", cfg.Deadline().Format(time.DateTime))
	} else {
		a.printf("Inheritance: opens %s (in %s)\n", cfg.Deadline().Format(time.DateTime), formatDuration(left))
	}
	a.printf("Confirmation interval: %d days\n", cfg.ConfirmationIntervalDays)
	a.printf("Autodestruct: %s\n", wipePolicy(cfg.MaxPasswordAttempts, cfg.AutoWipeEnabled))
	return nil
}

// Renew confirms the owner is alive.
func (a *App) Renew(ctx context.Context) error {
	if err := a.engine.RenewPeriod(ctx); err != nil {
		return err
	}
	left, err := a.engine.RemainingTime(ctx)
	if err != nil {
		return err
	}
	a.printf("Renewed. Inheritance opens in %s.\n", formatDuration(left))
	return nil
}

// Policy edits the confirmation interval and the autodestruct settings.
func (a *App) Policy(ctx context.Context) error {
	if err := a.session().Require(session.ModeNormal); err != nil {
		return err
	}
	cfg, _, err := a.engine.SwitchConfig(ctx)
	if err != nil {
		return err
	}
	days, err := GetInt(a.reader, "Confirmation interval in days", cfg.ConfirmationIntervalDays, a.out)
	if err != nil {
		return err
	}
	maxAttempts, err := GetInt(a.reader, "Maximum failed password attempts", cfg.MaxPasswordAttempts, a.out)
	if err != nil {
		return err
	}
	wipe, err := GetYesNo(a.reader, "Destroy the vault after too many failures?", cfg.AutoWipeEnabled, a.out)
	if err != nil {
		return err
	}
	if err := a.engine.UpdatePolicy(ctx, days, maxAttempts, wipe); err != nil {
		return err
	}
	a.printf("Policy saved.\n")
	return nil
}

// Passwd replaces both passwords and rotates the principal key.
func (a *App) Passwd(ctx context.Context) error {
	if err := a.session().Require(session.ModeNormal); err != nil {
		return err
	}
	current, err := getPassword(a.out, "Current primary password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)
	primary, inheritance, err := a.readPasswordPair()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(primary)
	defer common.WipeByteArray(inheritance)

	res, err := a.passwords.Reconfigure(ctx, current, primary, inheritance)
	if err != nil {
		return err
	}
	a.printf("Passwords changed, %d secrets re-encrypted.\n", res.Reencrypted)
	for id, cause := range res.Failed {
		a.printf("  could not re-encrypt %s: %v\n", id, cause)
	}
	for _, name := range res.SkippedCompartments {
		a.printf("  compartment %q was not rewrapped; adopt it with its phrase\n", name)
	}
	a.showRecoveryPhrase(res.RecoveryPhrase)
	if res.SessionEnded {
		a.printf("Session ended. Log in again with the new primary password.\n")
	}
	return nil
}

func wipePolicy(maxAttempts int, enabled bool) string {
	if !enabled || maxAttempts <= 0 {
		return "off"
	}
	return fmt.Sprintf("after %d failed attempts", maxAttempts)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	days := d / (24 * time.Hour)
	rest := (d % (24 * time.Hour)).Truncate(time.Minute)
	if days == 0 {
		if rest == 0 {
			return d.Truncate(time.Second).String()
		}
		return rest.String()
	}
	if rest == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %s", days, rest)
}
