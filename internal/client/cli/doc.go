// Package cli provides the interactive GophAuth command-line client.
//
// It wires configuration, the local session database, the HTTP API client
// and an interactive REPL. The session survives restarts, so "me" works in a
// new process after a previous "login".
//
// Commands:
//   - register, verify
//   - login, me, logout
//   - reset-request, reset-confirm
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
