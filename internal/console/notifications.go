package console

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultNotificationLimit int = 20

type Notification struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifications queues the failure messages until the UI collects them. Only the newest ones are kept.
type Notifications struct {
	lock     sync.Mutex
	limit    int
	messages []Notification
}

func NewNotifications(limit int) *Notifications {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	return &Notifications{limit: limit}
}

func (n *Notifications) Notify(_ context.Context, message string) {
	slog.Warn("NOTIFICATION", "message", message)
	n.lock.Lock()
	defer n.lock.Unlock()
	n.messages = append(n.messages, Notification{Message: message, At: time.Now().UTC()})
	if len(n.messages) > n.limit {
		n.messages = n.messages[len(n.messages)-n.limit:]
	}
}

// Drain returns the queued notifications, oldest first, and empties the queue.
func (n *Notifications) Drain() []Notification {
	n.lock.Lock()
	defer n.lock.Unlock()
	output := n.messages
	n.messages = nil
	if output == nil {
		output = []Notification{}
	}
	return output
}
