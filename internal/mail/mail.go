// Package mail delivers registration codes through SendGrid or Resend.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotConfigured is returned when no provider has credentials.
var ErrNotConfigured = errors.New("no email service configured")

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Provider is one email transport.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher tries each configured provider in order until one succeeds.
type Dispatcher struct {
	providers []Provider
}

func NewDispatcher(providers ...Provider) *Dispatcher {
	return &Dispatcher{providers: providers}
}

// Send returns ErrNotConfigured when there is nothing to try, or every
// provider error joined when all of them failed.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if len(d.providers) == 0 {
		return ErrNotConfigured
	}
	var errs []error
	for _, p := range d.providers {
		err := p.Send(ctx, msg)
		if err == nil {
			return nil
		}
		slog.Warn("email provider failed", "provider", p.Name(), "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CodeMessage renders the registration code email.
func CodeMessage(to, code string) Message {
	return Message{
		To:      to,
		Subject: "BugDex Forum verification code",
		HTML: fmt.Sprintf(`<div style="font-family: sans-serif">
<h2>BugDex Forum</h2>
<p>Your verification code is:</p>
<p style="font-size: 24px; font-weight: bold; letter-spacing: 4px">%s</p>
<p>The code expires in 5 minutes. If you did not request it, ignore this email.</p>
</div>`, code),
	}
}
