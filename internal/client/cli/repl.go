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

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Register(ctx context.Context) error
	VerifyEmail(ctx context.Context) error
	Login(ctx context.Context) error
	Me(ctx context.Context) error
	Logout(ctx context.Context) error
	ResetRequest(ctx context.Context) error
	ResetConfirm(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// Command errors are printed and the loop continues. It returns on EOF, on
// "exit"/"quit" or when ctx is cancelled.
//
//	Not logged in:  help, register, verify, login, reset-request, reset-confirm, exit
//	Logged in:      help, me, logout, reset-request, reset-confirm, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("gophauth %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn("Available commands: me, logout, reset-request, reset-confirm, exit")
			} else {
				printlnFn("Available commands: register, verify, login, reset-request, reset-confirm, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "verify":
			cmdErr = a.VerifyEmail(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "me":
			cmdErr = a.Me(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "reset-request":
			cmdErr = a.ResetRequest(ctx)

		case "reset-confirm":
			cmdErr = a.ResetConfirm(ctx)

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
