// Package mail delivers ranking reports over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/report"
	"amazon-monitor/pkg/utils"
)

// Notifier sends HTML ranking reports via SMTP with STARTTLS. It is safe
// to construct without credentials; Configured reports whether delivery is
// possible.
type Notifier struct {
	server         string
	port           int
	senderEmail    string
	senderPassword string
	affiliateTag   string
	log            *logrus.Logger

	// send is swapped in tests to avoid a live SMTP connection.
	send func(e *email.Email, addr string, auth smtp.Auth, tlsCfg *tls.Config) error
}

// NewNotifier builds a notifier from SMTP settings and sender credentials.
func NewNotifier(cfg config.SMTPConfig, senderEmail, senderPassword, affiliateTag string, log *logrus.Logger) *Notifier {
	return &Notifier{
		server:         cfg.Server,
		port:           cfg.Port,
		senderEmail:    senderEmail,
		senderPassword: senderPassword,
		affiliateTag:   affiliateTag,
		log:            log,
		send: func(e *email.Email, addr string, auth smtp.Auth, tlsCfg *tls.Config) error {
			return e.SendWithStartTLS(addr, auth, tlsCfg)
		},
	}
}

// Configured reports whether sender credentials are present.
func (n *Notifier) Configured() bool {
	return n.senderEmail != "" && n.senderPassword != ""
}

// SendReport renders the result as an HTML report and emails it to the
// recipient. The Markdown rendition rides along as the plain-text part.
func (n *Notifier) SendReport(ctx context.Context, to, keyword string, result models.RankingResult) error {
	if !n.Configured() {
		return fmt.Errorf("%w: sender credentials not configured", utils.ErrNotification)
	}
	if to == "" {
		return fmt.Errorf("%w: recipient address is empty", utils.ErrNotification)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	htmlBody, err := report.HTML(result, keyword, n.affiliateTag)
	if err != nil {
		return fmt.Errorf("%w: %w", utils.ErrNotification, err)
	}

	e := email.NewEmail()
	e.From = n.senderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Amazon Product Monitoring Report - %s", keyword)
	e.Text = []byte(report.Markdown(result, keyword, n.affiliateTag))
	e.HTML = []byte(htmlBody)

	addr := fmt.Sprintf("%s:%d", n.server, n.port)
	auth := smtp.PlainAuth("", n.senderEmail, n.senderPassword, n.server)

	if err := n.send(e, addr, auth, &tls.Config{ServerName: n.server}); err != nil {
		n.log.WithFields(logrus.Fields{"to": to, "server": addr}).WithError(err).Error("Email delivery failed")
		return fmt.Errorf("%w: sending to %s: %w", utils.ErrNotification, to, err)
	}

	n.log.WithFields(logrus.Fields{"to": to, "keyword": keyword}).Info("Report email delivered")
	return nil
}
