package factory

import (
	"fmt"

	"github.com/mikey/scan-insights/internal/adapters/history"
	"github.com/mikey/scan-insights/internal/config"
	"github.com/mikey/scan-insights/internal/core"
	"go.uber.org/zap"
)

// HistoryFactory creates the scan-history source based on configuration
type HistoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHistoryFactory creates a new history factory
func NewHistoryFactory(cfg *config.Config, logger *zap.Logger) *HistoryFactory {
	return &HistoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// historySource is both the repository and its change feed; every
// concrete adapter implements the pair together.
type historySource interface {
	core.HistoryRepository
	core.ChangeFeed
}

// CreateHistorySource creates the history repository and change feed
// based on the configuration
func (f *HistoryFactory) CreateHistorySource() (core.HistoryRepository, core.ChangeFeed, error) {
	historyType := f.cfg.GetString("history.type")

	var src historySource
	switch historyType {
	case "memory":
		src = history.NewMemoryHistory()
	case "mysql":
		pollFreq, err := f.cfg.GetDuration("history.poll_frequency")
		if err != nil {
			return nil, nil, fmt.Errorf("invalid history poll frequency: %w", err)
		}
		mysqlDSN := f.cfg.GetString("history.mysql_dsn")
		src, err = history.NewMySQLHistory(mysqlDSN, f.logger, pollFreq)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unsupported history type: %s", historyType)
	}

	return src, src, nil
}
