package client

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Notifier shows a failure message to the operator.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, message string) {
	slog.Warn("NOTIFICATION", "message", message)
}

// DebouncedNotifier drops the notifications that come within one window of the last one shown,
// so a burst of failing requests produces a single message.
type DebouncedNotifier struct {
	next    Notifier
	limiter *rate.Limiter
}

func NewDebouncedNotifier(next Notifier, window time.Duration) *DebouncedNotifier {
	limit := rate.Inf
	if window > 0 {
		limit = rate.Every(window)
	}
	return &DebouncedNotifier{next: next, limiter: rate.NewLimiter(limit, 1)}
}

func (d *DebouncedNotifier) Notify(ctx context.Context, message string) {
	if !d.limiter.Allow() {
		slog.Debug("NOTIFICATION", "message", "notification suppressed", "text", message)
		return
	}
	d.next.Notify(ctx, message)
}
