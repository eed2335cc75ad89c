package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hrerp/internal/platform/config"
)

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	mailer := New(config.Config{EmailEnabled: false, SMTPHost: "smtp.example.com"})
	_, ok := mailer.(noopMailer)
	assert.True(t, ok)
	assert.NoError(t, mailer.Send(context.Background(), "a@example.com", "b@example.com", "s", "b"))

	_, ok = New(config.Config{EmailEnabled: true, SMTPHost: "smtp.example.com"}).(*smtpMailer)
	assert.True(t, ok)
}

func TestBuildMessageStripsHeaderBreaks(t *testing.T) {
	sent := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
	msg := string(buildMessage("hr@example.com", "eve@example.com", "Approved\r\nBcc: x@example.com", "body", sent))

	head, body, found := strings.Cut(msg, "\r\n\r\n")
	assert.True(t, found)
	assert.Equal(t, "body", body)
	assert.Contains(t, head, "Subject: Approved  Bcc: x@example.com")
	assert.NotContains(t, head, "\r\nBcc:")
	assert.Contains(t, head, "Date: Wed, 04 Mar 2026 09:00:00 +0000")
}
