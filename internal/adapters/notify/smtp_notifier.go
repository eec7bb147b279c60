package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/scan-insights/internal/core"
)

// SMTPNotifier mails an alert digest whenever a published list contains
// warning or error alerts. Delivery is best-effort; failures are logged
// and never reach the engine.
type SMTPNotifier struct {
	addr     string
	username string
	password string
	from     string
	to       []string
	logger   *zap.Logger
}

// NewSMTPNotifier creates a notifier delivering through the given SMTP
// server. Username may be empty for unauthenticated relays.
func NewSMTPNotifier(addr, username, password, from string, to []string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
		to:       to,
		logger:   logger,
	}
}

// Notify sends a digest of the user's warning and error alerts. An
// all-info list sends nothing.
func (n *SMTPNotifier) Notify(ctx context.Context, userID string, alerts []core.Alert) error {
	var notable []core.Alert
	for _, a := range alerts {
		if a.Severity == core.SeverityWarning || a.Severity == core.SeverityError {
			notable = append(notable, a)
		}
	}
	if len(notable) == 0 || len(n.to) == 0 {
		return nil
	}

	msg := n.buildMessage(userID, notable)

	var auth sasl.Client
	if n.username != "" {
		auth = sasl.NewPlainClient("", n.username, n.password)
	}

	if err := smtp.SendMail(n.addr, auth, n.from, n.to, strings.NewReader(msg)); err != nil {
		n.logger.Warn("Failed to send alert digest",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.Int("alerts", len(notable)))
		return fmt.Errorf("failed to send alert digest: %w", err)
	}

	n.logger.Info("Sent alert digest",
		zap.String("user_id", userID),
		zap.Int("alerts", len(notable)))
	return nil
}

func (n *SMTPNotifier) buildMessage(userID string, alerts []core.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.to, ", "))
	fmt.Fprintf(&b, "Subject: Scan safety alerts for %s\r\n", userID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("\r\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "[%s] %s\r\n", strings.ToUpper(string(a.Severity)), a.Message)
	}
	return b.String()
}
