package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/dmitrijs2005/heirvault/internal/audit"
	"github.com/dmitrijs2005/heirvault/internal/auth"
	"github.com/dmitrijs2005/heirvault/internal/compartments"
	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/services"
	"github.com/dmitrijs2005/heirvault/internal/session"
)

// Deps are the services the front-end drives.
type Deps struct {
	Engine       *auth.Engine
	Compartments *compartments.Manager
	Vault        services.VaultService
	Passwords    services.PasswordService
	Backups      services.BackupService
	Audit        *audit.Recorder
	Log          logging.Logger
}

// App is the interactive front-end. All prompts and results go to out and
// all answers come from reader.
type App struct {
	engine    *auth.Engine
	comps     *compartments.Manager
	vault     services.VaultService
	passwords services.PasswordService
	backups   services.BackupService
	audit     *audit.Recorder
	log       logging.Logger

	reader *bufio.Reader
	out    io.Writer

	// inheritanceDue mirrors the watcher's latest verdict for the prompt.
	inheritanceDue atomic.Bool
}

func NewApp(d Deps) *App {
	log := d.Log
	if log == nil {
		log = logging.Nop{}
	}
	return &App{
		engine:    d.Engine,
		comps:     d.Compartments,
		vault:     d.Vault,
		passwords: d.Passwords,
		backups:   d.Backups,
		audit:     d.Audit,
		log:       log,
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}
}

// Run reads commands until EOF or "exit".
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to HeirVault (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
	a.engine.Logout(ctx)
	a.log.Debug(ctx, "repl finished")
}

// OnInheritanceChange is meant to be subscribed to the switch watcher.
func (a *App) OnInheritanceChange(due bool) {
	a.inheritanceDue.Store(due)
	if due {
		fmt.Fprintln(a.out, "\nNotice: the confirmation period has expired, inheritance access is now open.")
	}
}

func (a *App) session() *session.Session { return a.engine.Session() }

func (a *App) isLoggedIn() bool {
	return a.session().Authenticated()
}

func (a *App) getStatus() string {
	snap := a.session().Snapshot()
	s := snap.State.String()
	if a.isLoggedIn() {
		s = fmt.Sprintf("%s %s", snap.Mode, snap.ActiveCompartment)
	}
	if a.inheritanceDue.Load() {
		s += " !inheritance"
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
