package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/taskpad/internal/auth"
	"github.com/charlesng35/taskpad/pkg/logger"
	"github.com/charlesng35/taskpad/pkg/mail"
)

// Email kinds, used as the metrics label for delivery failures.
const (
	EmailKindVerification  = "verification"
	EmailKindWelcome       = "welcome"
	EmailKindPasswordReset = "password_reset"
)

// AccountNotifier delivers account lifecycle emails.
type AccountNotifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordResetCode(ctx context.Context, email, code string) error
}

// MailNotifierOption customises a MailNotifier.
type MailNotifierOption func(*MailNotifier)

// WithAppName sets the product name used in subjects and bodies.
func WithAppName(name string) MailNotifierOption {
	return func(n *MailNotifier) {
		if name != "" {
			n.appName = name
		}
	}
}

// WithAllowDisabledDelivery makes a disabled mailer count as delivered. It is
// meant for local development without an SMTP relay.
func WithAllowDisabledDelivery(allow bool) MailNotifierOption {
	return func(n *MailNotifier) {
		n.allowDisabled = allow
	}
}

// MailNotifier renders plain-text account emails and sends them through a mail.Mailer.
type MailNotifier struct {
	mailer        mail.Mailer
	appName       string
	allowDisabled bool
	log           *zap.Logger
}

var _ AccountNotifier = (*MailNotifier)(nil)

func NewMailNotifier(mailer mail.Mailer, opts ...MailNotifierOption) *MailNotifier {
	n := &MailNotifier{
		mailer:  mailer,
		appName: "Taskpad",
		log:     logger.WithModule("notifier"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *MailNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	body := fmt.Sprintf(
		"Welcome to %s!\n\nYour verification code is: %s\n\nIt expires in %d minutes. If you did not sign up, you can ignore this message.\n",
		n.appName, code, int(auth.OTPTTL.Minutes()),
	)
	return n.send(ctx, EmailKindVerification, email, fmt.Sprintf("Verify your %s account", n.appName), body)
}

func (n *MailNotifier) SendWelcome(ctx context.Context, email, name string) error {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nYour email is verified and your %s account is ready. Happy planning!\n",
		name, n.appName,
	)
	return n.send(ctx, EmailKindWelcome, email, fmt.Sprintf("Welcome to %s", n.appName), body)
}

func (n *MailNotifier) SendPasswordResetCode(ctx context.Context, email, code string) error {
	body := fmt.Sprintf(
		"We received a request to reset your %s password.\n\nYour reset code is: %s\n\nIt expires in %d minutes. If you did not ask for this, you can ignore this message.\n",
		n.appName, code, int(auth.OTPTTL.Minutes()),
	)
	return n.send(ctx, EmailKindPasswordReset, email, fmt.Sprintf("Reset your %s password", n.appName), body)
}

func (n *MailNotifier) send(ctx context.Context, kind, email, subject, body string) error {
	if n.mailer == nil {
		return n.disabled(kind)
	}

	err := n.mailer.Send(ctx, mail.Message{
		To:      []string{email},
		Subject: subject,
		Body:    body,
	})
	if errors.Is(err, mail.ErrSMTPDisabled) {
		return n.disabled(kind)
	}
	return err
}

func (n *MailNotifier) disabled(kind string) error {
	if n.allowDisabled {
		n.log.Warn("email delivery skipped, smtp disabled", zap.String("kind", kind))
		return nil
	}
	return mail.ErrSMTPDisabled
}
