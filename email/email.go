package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers account mail. Admin depends on this so tests can record
// messages instead of dialing SMTP.
type Sender interface {
	SendVerificationEmail(to, token string) error
}

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	// Domain is the public base URL used in links, e.g. https://restosite.app
	Domain string
}

type EmailService struct {
	cfg Config
}

func NewEmailService(cfg Config) *EmailService {
	if cfg.Domain == "" {
		cfg.Domain = "http://localhost:8080"
	}
	return &EmailService{cfg: cfg}
}

// VerificationLink is the confirmation URL mailed after registration.
func (e *EmailService) VerificationLink(token string) string {
	return fmt.Sprintf("%s/api/auth/confirm/%s", strings.TrimRight(e.cfg.Domain, "/"), token)
}

func (e *EmailService) verificationMessage(to, token string) []byte {
	subject := "Confirm your email - Restosite"
	body := fmt.Sprintf(`
Hello!

Thanks for signing up to Restosite.

To confirm your email and activate your restaurant page, open the link below:

%s

If you did not sign up, ignore this email.

---
Restosite - Restaurant websites
`, e.VerificationLink(token))

	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", e.cfg.From, to, subject, body))
}

func (e *EmailService) SendVerificationEmail(to, token string) error {
	if e.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)
	addr := fmt.Sprintf("%s:%s", e.cfg.Host, e.cfg.Port)

	if err := smtp.SendMail(addr, auth, e.cfg.From, []string{to}, e.verificationMessage(to, token)); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}
