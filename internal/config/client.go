package config

import (
	"fmt"
	"time"
)

type ClientConfig struct {
	// RequestTimeout bounds a single HTTP exchange, zero means no timeout
	RequestTimeout time.Duration
	// RefreshTimeout bounds the shared refresh call, waiters fail with a terminal error after it
	RefreshTimeout time.Duration
	// NotifyDebounce is the minimum time between two error notifications
	NotifyDebounce time.Duration
	// VerifyInterval is the period of the background session check, zero disables it
	VerifyInterval time.Duration
	// RequiredRole is the value of the "roles" claim needed to login, empty disables the check
	RequiredRole string
}

func (c *ClientConfig) Validate() error {
	if c.RefreshTimeout < 0 || c.RequestTimeout < 0 || c.NotifyDebounce < 0 || c.VerifyInterval < 0 {
		return fmt.Errorf("client timeouts and intervals cannot be negative")
	}
	if c.RequestTimeout > 0 && c.RefreshTimeout > 0 && c.RefreshTimeout < c.RequestTimeout {
		return fmt.Errorf(
			"the refresh timeout (%s) cannot be shorter than the request timeout (%s)",
			c.RefreshTimeout,
			c.RequestTimeout,
		)
	}
	return nil
}
