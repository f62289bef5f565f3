package client

import (
	"context"
	"log/slog"
)

// LoginBoundary sends the operator back to the login entry point once the session is gone.
type LoginBoundary interface {
	RedirectToLogin(ctx context.Context, cause error)
}

type LogBoundary struct{}

func (LogBoundary) RedirectToLogin(_ context.Context, cause error) {
	slog.Info("LOGIN BOUNDARY", "message", "session ended, login required", "cause", cause)
}
