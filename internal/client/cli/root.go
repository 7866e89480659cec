package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus(ctx context.Context) string {
	if name := a.authService.Username(ctx); name != "" {
		return fmt.Sprintf("(%s)", name)
	}
	return ""
}

// Root prints the banner and runs the REPL on the app's input.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintf(a.out, "Welcome to GophAuth CLI, server %s (type 'help' for commands)\n", a.config.ServerURL)
	runREPL(ctx, a, func() string { return a.getStatus(ctx) }, a.reader)
}
