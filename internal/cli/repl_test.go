package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	loggedIn bool
	failWith error

	calls []string
	args  [][]string
}

func (f *fakeExec) record(name string, args ...string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.failWith
}

func (f *fakeExec) isLoggedIn() bool                  { return f.loggedIn }
func (f *fakeExec) Setup(ctx context.Context) error   { return f.record("setup") }
func (f *fakeExec) Phrase(ctx context.Context) error  { return f.record("phrase") }
func (f *fakeExec) Recover(ctx context.Context) error { return f.record("recover") }
func (f *fakeExec) Status(ctx context.Context) error  { return f.record("status") }
func (f *fakeExec) Renew(ctx context.Context) error   { return f.record("renew") }
func (f *fakeExec) Policy(ctx context.Context) error  { return f.record("policy") }
func (f *fakeExec) Passwd(ctx context.Context) error  { return f.record("passwd") }
func (f *fakeExec) Stats(ctx context.Context) error   { return f.record("stats") }
func (f *fakeExec) History(ctx context.Context) error { return f.record("history") }
func (f *fakeExec) Login(ctx context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}
func (f *fakeExec) Compartments(ctx context.Context, args []string) error {
	return f.record("compartments", args...)
}
func (f *fakeExec) Add(ctx context.Context, args []string) error {
	return f.record("add", args...)
}
func (f *fakeExec) List(ctx context.Context, args []string) error {
	return f.record("list", args...)
}
func (f *fakeExec) Show(ctx context.Context, args []string) error {
	return f.record("show", args...)
}
func (f *fakeExec) Edit(ctx context.Context, args []string) error {
	return f.record("edit", args...)
}
func (f *fakeExec) Delete(ctx context.Context, args []string) error {
	return f.record("delete", args...)
}
func (f *fakeExec) Extract(ctx context.Context, args []string) error {
	return f.record("extract", args...)
}
func (f *fakeExec) Backup(ctx context.Context, args []string) error {
	return f.record("backup", args...)
}
func (f *fakeExec) Restore(ctx context.Context, args []string) error {
	return f.record("restore", args...)
}

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func lines(s ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(s, "\n") + "\n"))
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	captureOutput(t)

	in := lines(
		"setup",
		"login",
		"",
		"compartments create",
		"add note @family",
		"list login bank",
		"show abc",
		"extract abc out.bin",
		"c use family",
		"logout",
		"exit",
		"status",
	)
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, in)

	assert.Equal(t, []string{"setup", "login", "compartments", "add", "list", "show", "extract", "compartments", "logout"}, exec.calls)
	assert.Equal(t, []string{"create"}, exec.args[2])
	assert.Equal(t, []string{"note", "@family"}, exec.args[3])
	assert.Equal(t, []string{"login", "bank"}, exec.args[4])
	assert.Equal(t, []string{"abc", "out.bin"}, exec.args[6])
	assert.Equal(t, []string{"use", "family"}, exec.args[7])
}

func TestRunREPL_HelpDependsOnLogin(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, lines("help", "login", "help", "quit"))

	assert.Contains(t, *out, helpLoggedOut)
	assert.Contains(t, *out, helpLoggedIn)
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_ReportsErrorsAndUnknown(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{failWith: errors.New("boom")}
	runREPL(context.Background(), exec, func() string { return "" }, lines("renew", "frobnicate", "add"))

	require.Equal(t, []string{"renew"}, exec.calls)
	assert.Contains(t, *out, "Error: boom")
	assert.Contains(t, *out, "Unknown command: frobnicate")
	assert.Contains(t, *out, "Usage: add note|login|wallet|file [@category]")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	captureOutput(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, lines("login"))

	assert.Empty(t, exec.calls)
}
