package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// Mailer delivers one-time passcodes to users.
type Mailer interface {
	SendOTP(ctx context.Context, to, otp string, validFor time.Duration) error
}

// Options configures SMTP delivery.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// SMTPMailer sends mail through an authenticated SMTP relay.
type SMTPMailer struct {
	opts   Options
	logger *logrus.Logger
}

// NewSMTPMailer returns a mailer for opts. No connection is made until the
// first message is sent.
func NewSMTPMailer(opts Options, logger *logrus.Logger) *SMTPMailer {
	if opts.From == "" {
		opts.From = opts.Username
	}
	if opts.Subject == "" {
		opts.Subject = "Your Verification Code"
	}
	return &SMTPMailer{opts: opts, logger: logger}
}

// SendOTP sends the verification code to the given address.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, otp string, validFor time.Duration) error {
	msg := mail.NewMsg()
	if err := msg.From(m.opts.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(m.opts.Subject)
	msg.SetBodyString(mail.TypeTextPlain, otpBody(otp, validFor))

	client, err := mail.NewClient(m.opts.Host,
		mail.WithPort(m.opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.opts.Username),
		mail.WithPassword(m.opts.Password),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.WithError(err).WithField("to", to).Error("Failed to send OTP email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.WithField("to", to).Info("OTP email sent")
	return nil
}

func otpBody(otp string, validFor time.Duration) string {
	return fmt.Sprintf("Your OTP for account verification is: %s\n\nIt will expire in %d minutes.\n",
		otp, int(validFor.Minutes()))
}

// LogMailer writes codes to the log instead of sending them. It is used
// when no SMTP account is configured.
type LogMailer struct {
	logger *logrus.Logger
}

// NewLogMailer returns a mailer that only logs.
func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendOTP logs the code at warn level so it is visible in development.
func (m *LogMailer) SendOTP(_ context.Context, to, otp string, validFor time.Duration) error {
	m.logger.WithFields(logrus.Fields{
		"to":        to,
		"otp":       otp,
		"valid_for": validFor.String(),
	}).Warn("Mail delivery disabled, OTP written to log")
	return nil
}
