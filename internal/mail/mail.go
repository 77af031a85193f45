// Package mail sends notification emails through SendGrid, or logs them when no API key is set.
package mail

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is one outgoing email.
type Message struct {
	ToAddress string
	ToName    string
	Subject   string
	Body      string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns a SendGrid sender when apiKey is set and a LogSender otherwise.
func NewSender(apiKey, fromName, fromAddress string, logger *zap.Logger) Sender {
	if apiKey == "" {
		if logger != nil {
			logger.Warn("SENDGRID_API_KEY not set, emails will only be logged")
		}
		return NewLogSender(logger)
	}
	return NewSendGrid(apiKey, fromName, fromAddress)
}

// SendGrid sends email through the SendGrid v3 API.
type SendGrid struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
}

// NewSendGrid creates a SendGrid sender.
func NewSendGrid(apiKey, fromName, fromAddress string) *SendGrid {
	return &SendGrid{
		client:     sendgrid.NewSendClient(apiKey),
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: "[" + fromName + "] ",
	}
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	to := sgmail.NewEmail(msg.ToName, msg.ToAddress)
	return sgmail.NewSingleEmail(s.from, s.subjPrefix+msg.Subject, to, msg.Body, HTMLBody(msg.Body))
}

// Send implements Sender. Any 4xx or 5xx answer is an error so the job is retried.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	res, err := s.client.SendWithContext(ctx, s.prepare(msg))
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, strings.TrimSpace(res.Body))
	}
	return nil
}

// HTMLBody renders a plain text body as escaped HTML paragraphs.
func HTMLBody(text string) string {
	var b strings.Builder
	for _, p := range strings.Split(strings.TrimSpace(text), "\n\n") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// LogSender writes messages to the log. Used in development.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Info("email",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
