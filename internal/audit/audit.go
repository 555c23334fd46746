// Package audit records security relevant events. Recording is best effort:
// a failed write is logged and never changes the caller's result.
package audit

import (
	"context"

	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/repositories/auditlog"
	"github.com/dmitrijs2005/heirvault/internal/timex"
)

// Event types written to the log.
const (
	LoginSuccess       = "login_success"
	LoginFailure       = "login_failure"
	Logout             = "logout"
	Setup              = "setup"
	Renewal            = "renewal"
	InheritanceDue     = "inheritance_due"
	Autodestruct       = "autodestruct"
	CompartmentCreated = "compartment_created"
	CompartmentAdopted = "compartment_adopted"
	PasswordChanged    = "password_changed"
	RecoveryReset      = "recovery_reset"
	BackupCreated      = "backup_created"
	BackupRestored     = "backup_restored"
)

// Recorder appends events to the audit log.
type Recorder struct {
	repo  auditlog.Repository
	clock timex.Clock
	log   logging.Logger
}

func NewRecorder(repo auditlog.Repository, clock timex.Clock, log logging.Logger) *Recorder {
	if log == nil {
		log = logging.Nop{}
	}
	return &Recorder{repo: repo, clock: clock, log: log}
}

// Record appends one event. A nil Recorder is a no-op.
func (r *Recorder) Record(ctx context.Context, typ, message string) {
	if r == nil || r.repo == nil {
		return
	}
	e := models.AuditEvent{Type: typ, Message: message, Timestamp: r.clock.Now().UTC()}
	if err := r.repo.Append(ctx, e); err != nil {
		r.log.Warn(ctx, "audit write failed", "type", typ, "error", err)
	}
}

// Recent returns the newest events first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	return r.repo.Recent(ctx, limit)
}
