// Package cli provides the interactive HeirVault command-line front-end.
//
// It drives the authentication engine, the compartment manager and the vault
// services from a REPL. Passwords are read from the terminal without echo;
// everything else comes from line-oriented input.
//
// Key features:
//   - Setup, login by password or compartment phrase, recovery, logout
//   - Dead-man's switch status, renewal and policy changes
//   - Compartments: create, list, switch, adopt
//   - Secrets: notes, logins, wallets, files; list, show, edit, delete, extract
//   - Password change, backup and restore, audit history
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// App.OnInheritanceChange can be subscribed to the switch watcher so the
// prompt reflects an expired confirmation period.
package cli
