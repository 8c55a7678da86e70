package release

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/localnerve/spacelink/internal/config"
)

// Mailer sends release summary emails over plain SMTP.
type Mailer struct {
	addr string
	from string
}

// NewMailer creates a Mailer from configuration. Returns nil when no
// SMTP host is configured, which disables summary mail.
func NewMailer(cfg *config.Config) *Mailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	return &Mailer{
		addr: cfg.SMTPHost + ":" + cfg.SMTPPort,
		from: cfg.SMTPFrom,
	}
}

// SendSummary emails the per-domain outcome of a release run.
func (m *Mailer) SendSummary(to, masterDomain string, manager *Manager) error {
	body := summaryBody(masterDomain, manager)
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		fmt.Sprintf("Subject: Release summary for %s", masterDomain),
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg))
}

func summaryBody(masterDomain string, manager *Manager) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Release from %s finished.\r\n", masterDomain)
	fmt.Fprintf(&b, "Domains with errors: %d\r\n\r\n", manager.ErrorDomainCount())

	for _, domain := range manager.Domains() {
		fmt.Fprintf(&b, "%s:\r\n", domain)
		for _, message := range manager.SuccessesForDomain(domain) {
			fmt.Fprintf(&b, "  ok: %s\r\n", message)
		}
		for _, message := range manager.ErrorsForDomain(domain) {
			fmt.Fprintf(&b, "  error: %s\r\n", message)
		}
	}
	return b.String()
}
