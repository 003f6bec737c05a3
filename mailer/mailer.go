// Package mailer sends transactional and bulk club email through SendGrid.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"

	templates "github.com/leoportal/leo-portal-api/templates/html"
)

// ErrNotConfigured is returned when no SendGrid API key is set
var ErrNotConfigured = errors.New("email is not configured")

// Recipient is the name and address an email is delivered to
type Recipient struct {
	Name  string
	Email string
}

// Mailer delivers a rendered message to one recipient
type Mailer interface {
	Send(ctx context.Context, to Recipient, msg templates.Message) error
}

// SendGrid is a Mailer backed by the SendGrid v3 API
type SendGrid struct {
	apiKey   string
	fromName string
	fromAddr string
}

// NewSendGrid returns a SendGrid mailer. An empty apiKey yields a mailer that
// fails every send with ErrNotConfigured.
func NewSendGrid(apiKey, fromName, fromAddr string) *SendGrid {
	return &SendGrid{apiKey: apiKey, fromName: fromName, fromAddr: fromAddr}
}

// Send delivers msg to the recipient
func (s *SendGrid) Send(ctx context.Context, to Recipient, msg templates.Message) error {
	if s.apiKey == "" {
		return ErrNotConfigured
	}
	from := mail.NewEmail(s.fromName, s.fromAddr)
	message := mail.NewSingleEmail(from, msg.Subject, mail.NewEmail(to.Name, to.Email), msg.Plain, msg.HTML)
	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", to.Email)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	return nil
}

// Result counts the outcome of a bulk send
type Result struct {
	Recipients int
	Sent       int
	Failed     int
}

// SendAll delivers msg to every recipient one at a time. A failure for one
// recipient does not stop the rest.
func SendAll(ctx context.Context, m Mailer, recipients []Recipient, msg templates.Message) Result {
	res := Result{Recipients: len(recipients)}
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			res.Failed += res.Recipients - res.Sent - res.Failed
			break
		}
		if err := m.Send(ctx, r, msg); err != nil {
			zap.S().Warnw("failed to send bulk email", "to", r.Email, "error", err)
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res
}

// mdRenderer escapes raw HTML in the source; the sanitizer below is a second pass.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var policy = bluemonday.UGCPolicy()

// RenderMarkdown turns a markdown body into sanitized HTML
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

// MarkdownMessage builds a branded message from a markdown body
func MarkdownMessage(subject, body string) (templates.Message, error) {
	safe, err := RenderMarkdown(body)
	if err != nil {
		return templates.Message{}, err
	}
	return templates.Message{
		Subject: subject,
		Plain:   body,
		HTML:    templates.RenderHTMLEmail(subject, safe),
	}, nil
}
