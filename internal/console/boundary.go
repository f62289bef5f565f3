package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

const LoginPage string = "/login"

// Boundary is tripped when the session ends without the operator logging out. The UI reads it
// through the session endpoint and goes back to the login page.
type Boundary struct {
	lock      sync.RWMutex
	tripped   bool
	cause     string
	trippedAt time.Time
}

func NewBoundary() *Boundary {
	return &Boundary{}
}

func (b *Boundary) RedirectToLogin(ctx context.Context, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	b.lock.Lock()
	b.tripped = true
	b.cause = reason
	b.trippedAt = time.Now().UTC()
	b.lock.Unlock()
	slog.Info("LOGIN BOUNDARY", "message", "redirecting the operator to the login page", "cause", reason)
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "auth",
		Message:  "session ended: " + reason,
		Level:    sentry.LevelInfo,
	}, nil)
}

// LoginRequired reports whether the boundary was tripped since the last login, and why.
func (b *Boundary) LoginRequired() (bool, string) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.tripped, b.cause
}

func (b *Boundary) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.tripped = false
	b.cause = ""
	b.trippedAt = time.Time{}
}
