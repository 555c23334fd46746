package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Setup(ctx context.Context) error
	Login(ctx context.Context) error
	Phrase(ctx context.Context) error
	Recover(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Renew(ctx context.Context) error
	Policy(ctx context.Context) error
	Passwd(ctx context.Context) error
	Compartments(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Extract(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
	History(ctx context.Context) error
	Backup(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: setup, login, phrase, recover, status, restore, exit"
	helpLoggedIn  = "Available commands: status, renew, policy, passwd, compartments [create|list|use|adopt], " +
		"add [note|login|wallet|file] [@category], (l)ist [kind] [@category] [title], show <id>, edit <id>, delete <id>, " +
		"extract <id> [path], stats, history, backup <path>, restore <path>, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the HeirVault CLI.
//
// It reads a line from in, parses the first token as the command, and
// dispatches to methods on 'a'. Unknown commands are reported back to the
// user. The loop exits on EOF or when the user types "exit" or "quit".
//
// Handler errors are printed and the loop goes on; a failed command never
// ends the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("hv %s > ", statusFn()))
		line, err := readLine(in)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				printlnFn("Error:", err)
			}
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}

		case "setup":
			cmdErr = a.Setup(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "phrase":
			cmdErr = a.Phrase(ctx)

		case "recover":
			cmdErr = a.Recover(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "status":
			cmdErr = a.Status(ctx)

		case "renew":
			cmdErr = a.Renew(ctx)

		case "policy":
			cmdErr = a.Policy(ctx)

		case "passwd":
			cmdErr = a.Passwd(ctx)

		case "compartments", "c":
			cmdErr = a.Compartments(ctx, args)

		case "add":
			if len(args) == 0 {
				printlnFn("Usage: add note|login|wallet|file [@category]")
				continue
			}
			cmdErr = a.Add(ctx, args)

		case "l", "list":
			cmdErr = a.List(ctx, args)

		case "show":
			cmdErr = a.Show(ctx, args)

		case "edit":
			cmdErr = a.Edit(ctx, args)

		case "delete":
			cmdErr = a.Delete(ctx, args)

		case "extract":
			cmdErr = a.Extract(ctx, args)

		case "stats":
			cmdErr = a.Stats(ctx)

		case "history":
			cmdErr = a.History(ctx)

		case "backup":
			cmdErr = a.Backup(ctx, args)

		case "restore":
			cmdErr = a.Restore(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
