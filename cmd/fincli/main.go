package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/fincli/cmd/fincli/commands"
	"github.com/florianilch/fincli/internal/credstore"
	"github.com/florianilch/fincli/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

// userMessage flattens the error taxonomy into the small set of stable
// outcomes a command-level caller sees.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, session.ErrSessionExpired):
		return fmt.Sprintf("error: %v", err)
	case errors.Is(err, credstore.ErrStoreBusy):
		return fmt.Sprintf("error: %v (try again in a moment)", err)
	case errors.Is(err, credstore.ErrStoreCorrupted):
		return fmt.Sprintf("error: %v (remove or repair the credential file manually)", err)
	default:
		return fmt.Sprintf("error: %v", err)
	}
}
