package factory

import (
	"github.com/mikey/scan-insights/internal/adapters/notify"
	"github.com/mikey/scan-insights/internal/config"
	"github.com/mikey/scan-insights/internal/ports"
	"go.uber.org/zap"
)

// NotifierFactory creates the outbound alert notifier based on configuration
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAlertNotifier returns the configured notifier, or nil when
// notifications are disabled
func (f *NotifierFactory) CreateAlertNotifier() ports.AlertNotifier {
	if !f.cfg.GetBool("notifier.enabled") {
		return nil
	}
	return notify.NewSMTPNotifier(
		f.cfg.GetString("notifier.smtp_address"),
		f.cfg.GetString("notifier.username"),
		f.cfg.GetString("notifier.password"),
		f.cfg.GetString("notifier.from"),
		f.cfg.GetStringSlice("notifier.to"),
		f.logger,
	)
}
