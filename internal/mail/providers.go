package mail

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	SendGridURL = "https://api.sendgrid.com"
	ResendURL   = "https://api.resend.com"

	sendTimeout = 10 * time.Second
)

// SendGrid delivers through the v3 mail/send API.
type SendGrid struct {
	endpoint string
	apiKey   string
	from     string
}

func NewSendGrid(baseURL, apiKey, from string) *SendGrid {
	return &SendGrid{
		endpoint: strings.TrimRight(baseURL, "/") + "/v3/mail/send",
		apiKey:   apiKey,
		from:     from,
	}
}

// client is built per send; sendgrid.Client keeps the request body on itself.
func (s *SendGrid) client() *sendgrid.Client {
	c := sendgrid.NewSendClient(s.apiKey)
	c.BaseURL = s.endpoint
	return c
}

func (s *SendGrid) Name() string { return "sendgrid" }

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	m := sgmail.NewV3MailInit(
		sgmail.NewEmail("", s.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		sgmail.NewContent("text/html", msg.HTML),
	)
	resp, err := s.client().SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid /v3/mail/send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := resp.Body
		if len(body) > 4096 {
			body = body[:4096]
		}
		return fmt.Errorf("sendgrid /v3/mail/send returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Resend delivers through the /emails API.
type Resend struct {
	client *resend.Client
	from   string
}

func NewResend(baseURL, apiKey, from string) *Resend {
	c := resend.NewCustomClient(&http.Client{Timeout: sendTimeout}, apiKey)
	if u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/"); err == nil {
		c.BaseURL = u
	}
	return &Resend{client: c, from: from}
}

func (r *Resend) Name() string { return "resend" }

func (r *Resend) Send(ctx context.Context, msg Message) error {
	_, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend /emails: %w", err)
	}
	return nil
}

// FromConfig builds a Dispatcher with every provider that has both a key
// and a sender address, SendGrid first.
func FromConfig(sendgridKey, sendgridFrom, resendKey, resendFrom string) *Dispatcher {
	var providers []Provider
	if sendgridKey != "" && sendgridFrom != "" {
		providers = append(providers, NewSendGrid(SendGridURL, sendgridKey, sendgridFrom))
	}
	if resendKey != "" && resendFrom != "" {
		providers = append(providers, NewResend(ResendURL, resendKey, resendFrom))
	}
	return NewDispatcher(providers...)
}
