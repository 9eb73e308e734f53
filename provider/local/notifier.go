package local

import (
	"context"

	auth "github.com/goliatone/go-console-auth"
)

// Message is an outgoing account email.
type Message struct {
	Kind string
	To   string
	Link string
}

// Message kinds.
const (
	KindVerifyEmail   = "verify_email"
	KindPasswordReset = "password_reset"
)

// Notifier delivers account emails.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Notify(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// LogNotifier writes links to the logger instead of sending mail.
type LogNotifier struct {
	Logger auth.Logger
}

func (n LogNotifier) Notify(_ context.Context, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = auth.DefaultLogger()
	}
	logger.Info("account mail %s to %s: %s", msg.Kind, msg.To, msg.Link)
	return nil
}
