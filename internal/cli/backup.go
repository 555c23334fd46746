package cli

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/filex"
	"github.com/dmitrijs2005/heirvault/internal/session"
)

const historySize = 20

func (a *App) pathArg(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, prompt, a.out)
}

// Backup writes an encrypted copy of the whole vault to a file.
func (a *App) Backup(ctx context.Context, args []string) error {
	path, err := a.pathArg(args, "Enter backup file path")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := a.backups.Create(ctx, &buf); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(path, buf.Bytes(), 0o600); err != nil {
		return err
	}
	a.printf("Backup written to %s (%d bytes)\n", path, buf.Len())
	return nil
}

// Restore replaces the vault with a backup. The password is the primary
// password in effect when the backup was made.
func (a *App) Restore(ctx context.Context, args []string) error {
	path, err := a.pathArg(args, "Enter backup file path")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	password, err := getPassword(a.out, "Primary password of the backup")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.backups.Restore(ctx, f, password)
	if err != nil {
		return err
	}
	a.printf("Restored %d compartments, %d secrets, %d files. Log in again.\n",
		res.Compartments, res.Secrets, res.Blobs)
	return nil
}

// History prints the latest audit events.
func (a *App) History(ctx context.Context) error {
	if err := a.session().Require(session.ModeNormal); err != nil {
		return err
	}
	events, err := a.audit.Recent(ctx, historySize)
	if err != nil {
		return err
	}
	for _, e := range events {
		a.printf("%s  %-20s %s\n", e.Timestamp.Local().Format(time.DateTime), e.Type, e.Message)
	}
	return nil
}
