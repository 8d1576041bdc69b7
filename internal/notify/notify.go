// Package notify publishes user-facing notification events. Delivery is
// best-effort: callers log failures and carry on, a failed "login succeeded"
// email must never fail the login itself.
package notify

import "context"

const (
	EventUserRegistered         = "user_registered"
	EventUserLoggedIn           = "user_logged_in"
	EventAccountLocked          = "account_locked"
	EventTooManySessions        = "too_many_sessions"
	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordReset          = "password_reset"
	EventVerifyEmailRequested   = "verify_email_requested"
	EventEmailVerified          = "email_verified"
)

type Event struct {
	Type   string         `json:"type"`
	UserID uint           `json:"user_id"`
	Email  string         `json:"email"`
	Data   map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Noop drops every event. Used when no broker is configured and in tests.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }
