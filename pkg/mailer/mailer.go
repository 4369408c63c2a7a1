// pkg/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages to recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var errFromRequired = errors.New("mailer from address is required")

// SMTPSender delivers mail over a plain SMTP relay.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(cfg config.MailerConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return nil, errFromRequired
	}
	if strings.TrimSpace(cfg.SMTPAddr) == "" {
		return nil, errors.New("mailer smtp address is required")
	}
	return &SMTPSender{addr: cfg.SMTPAddr, from: cfg.FromAddress}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient address is required")
	}
	payload := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, msg.To, msg.Subject, msg.Body)
	if err := smtp.SendMail(s.addr, nil, s.from, []string{msg.To}, []byte(payload)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used in
// development where no relay is configured.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("mail (dev): to=%s subject=%q", msg.To, msg.Subject))
	}
	return nil
}

// FromConfig picks the SMTP sender when a relay is configured and falls back
// to the log sender otherwise.
func FromConfig(cfg config.MailerConfig, logg *logger.Logger) (Sender, error) {
	if strings.TrimSpace(cfg.SMTPAddr) == "" {
		return NewLogSender(logg), nil
	}
	return NewSMTPSender(cfg)
}
