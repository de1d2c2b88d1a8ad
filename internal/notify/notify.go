// Package notify delivers password reset links to users.
//
// A Notifier either sends mail directly (SMTP, SendGrid), writes it to the
// log during development, or queues it on Kafka for cmd/mailer. Every
// provider reports delivery failures to the caller; none retries.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"clinic-booking-api/internal/logx"
)

const ResetSubject = "Password Reset Request - Clinic Booking"

type Notifier interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// Mail is a rendered plain-text message.
type Mail struct {
	To      string
	Subject string
	Text    string
}

// Mailer sends one rendered message.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// ResetLink builds <baseURL>/reset-password?token=<token>.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func ResetEmailBody(link string, ttl time.Duration) string {
	var b strings.Builder
	b.WriteString("Dear User,\n\n")
	b.WriteString("We received a request to reset the password of your Clinic Booking account.\n\n")
	b.WriteString("Open the link below to choose a new password:\n")
	b.WriteString(link + "\n\n")
	fmt.Fprintf(&b, "The link expires in %s and works only once.\n\n", humanDuration(ttl))
	b.WriteString("If you did not request a password reset, ignore this email. ")
	b.WriteString("Your password stays unchanged.\n\n")
	b.WriteString("Best regards,\nThe Clinic Booking Team")
	return b.String()
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// MailNotifier renders reset mail and hands it to a Mailer.
type MailNotifier struct {
	mailer Mailer
	ttl    time.Duration
}

func NewMailNotifier(m Mailer, tokenTTL time.Duration) *MailNotifier {
	return &MailNotifier{mailer: m, ttl: tokenTTL}
}

func (n *MailNotifier) SendPasswordReset(ctx context.Context, to, link string) error {
	return n.mailer.Send(ctx, Mail{
		To:      to,
		Subject: ResetSubject,
		Text:    ResetEmailBody(link, n.ttl),
	})
}

// LogNotifier writes the reset link to the log instead of sending it.
// The link itself only goes out at debug level since it grants a password
// change. Config refuses this notifier in prod.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, to, link string) error {
	logger := n.logger
	if logger == nil {
		logger = logx.FromContext(ctx)
	}
	logger.InfoContext(ctx, "password reset link issued", "to", logx.MaskEmail(to))
	logger.DebugContext(ctx, "password reset link", "to", logx.MaskEmail(to), "link", link)
	return nil
}

// NewMailer picks the mail transport for provider "smtp" or "sendgrid".
func NewMailer(provider string, smtp SMTPConfig, sendGridKey string) (Mailer, error) {
	switch provider {
	case "smtp":
		return NewSMTPMailer(smtp), nil
	case "sendgrid":
		return NewSendGridMailer(sendGridKey, smtp.From, smtp.FromName), nil
	default:
		return nil, fmt.Errorf("no mailer for provider %q", provider)
	}
}
