package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	templates "github.com/leoportal/leo-portal-api/templates/html"
)

type fakeMailer struct {
	sent []Recipient
	fail map[string]bool
}

func (f *fakeMailer) Send(_ context.Context, to Recipient, _ templates.Message) error {
	if f.fail[to.Email] {
		return errors.New("bounced")
	}
	f.sent = append(f.sent, to)
	return nil
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Meeting\n**Bring** gloves\nsee you")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Meeting</h1>")
	assert.Contains(t, out, "<strong>Bring</strong> gloves<br>")
}

func TestRenderMarkdownStripsScripts(t *testing.T) {
	out, err := RenderMarkdown("hello <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestMarkdownMessage(t *testing.T) {
	msg, err := MarkdownMessage("Newsletter", "_hi_")
	require.NoError(t, err)
	assert.Equal(t, "Newsletter", msg.Subject)
	assert.Equal(t, "_hi_", msg.Plain)
	assert.Contains(t, msg.HTML, "<em>hi</em>")
}

func TestSendAllCountsFailures(t *testing.T) {
	m := &fakeMailer{fail: map[string]bool{"b@example.com": true}}
	rs := []Recipient{{Email: "a@example.com"}, {Email: "b@example.com"}, {Email: "c@example.com"}}

	res := SendAll(context.Background(), m, rs, templates.Message{Subject: "s"})

	assert.Equal(t, Result{Recipients: 3, Sent: 2, Failed: 1}, res)
	assert.Len(t, m.sent, 2)
}

func TestSendAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := SendAll(ctx, &fakeMailer{}, []Recipient{{Email: "a@example.com"}, {Email: "b@example.com"}}, templates.Message{})
	assert.Equal(t, Result{Recipients: 2, Sent: 0, Failed: 2}, res)
}

func TestSendGridNotConfigured(t *testing.T) {
	err := NewSendGrid("", "Club", "club@example.com").Send(context.Background(), Recipient{Email: "a@example.com"}, templates.Message{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
