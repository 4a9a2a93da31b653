package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"lease-service/pkg/config"
)

// Sender delivers signing OTP codes out-of-band. Delivery is best-effort:
// callers log failures but do not roll back the stored code.
type Sender interface {
	SendSigningOTP(ctx context.Context, email, code string, agreementID uint) error
}

// New returns a Sender for the configured mail mode
func New(cfg *config.MailConfig) Sender {
	if cfg.Mode == "smtp" {
		return &smtpSender{cfg: cfg}
	}
	return &logSender{}
}

// logSender writes codes to the application log instead of sending.
// Used in local development where no SMTP relay is available.
type logSender struct{}

func (s *logSender) SendSigningOTP(_ context.Context, email, code string, agreementID uint) error {
	zap.L().Info("Signing OTP (log mail mode)",
		zap.String("email", email),
		zap.String("code", code),
		zap.Uint("agreement_id", agreementID))
	return nil
}

// smtpSender delivers codes through a plain SMTP relay
type smtpSender struct {
	cfg *config.MailConfig
}

func (s *smtpSender) SendSigningOTP(_ context.Context, email, code string, agreementID uint) error {
	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your lease signing code\r\n\r\n"+
		"Your one-time code for signing lease agreement #%d is: %s\r\n"+
		"The code expires shortly. If you did not request it, ignore this email.\r\n",
		s.cfg.From, email, agreementID, code)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("send signing OTP mail: %w", err)
	}
	return nil
}
