package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

// Mailer delivers queued notification emails over SMTP.
type Mailer struct {
	addr   string
	from   string
	logger *slog.Logger
	send   func(addr, from string, to []string, msg []byte) error
}

// NewMailer builds a Mailer pointed at host:port.
func NewMailer(host string, port int, from string, logger *slog.Logger) *Mailer {
	return &Mailer{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Handle processes TaskTypeSendEmail tasks.
func (m *Mailer) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + payload.To,
		"Subject: " + payload.Subject,
		"",
		payload.Body,
	}, "\r\n")
	if err := m.send(m.addr, m.from, []string{payload.To}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", payload.To, err)
	}
	m.logger.Info("notification sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
