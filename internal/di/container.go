package di

import (
	"context"
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/scan-insights/internal/adapters/api"
	"github.com/mikey/scan-insights/internal/config"
	"github.com/mikey/scan-insights/internal/core"
	"github.com/mikey/scan-insights/internal/factory"
	"github.com/mikey/scan-insights/internal/logging"
	"github.com/mikey/scan-insights/internal/ports"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewHistoryFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return nil, err
	}

	// Register dismissal repository
	if err := container.Provide(func(f *factory.StoreFactory) (core.DismissalRepository, error) {
		return f.CreateDismissalRepository()
	}); err != nil {
		return nil, err
	}

	// Register history source and its change feed
	if err := container.Provide(func(f *factory.HistoryFactory) (core.HistoryRepository, core.ChangeFeed, error) {
		return f.CreateHistorySource()
	}); err != nil {
		return nil, err
	}

	// Register alert notifier (nil when disabled)
	if err := container.Provide(func(f *factory.NotifierFactory) ports.AlertNotifier {
		return f.CreateAlertNotifier()
	}); err != nil {
		return nil, err
	}

	// Register policy thresholds
	if err := container.Provide(func(cfg *config.Config) core.Thresholds {
		return core.Thresholds{
			TrendWindowDays:     cfg.GetInt("insights.trend_window_days"),
			HighRiskRatio:       cfg.GetFloat64("insights.high_risk_ratio"),
			MediumRiskRatio:     cfg.GetFloat64("insights.medium_risk_ratio"),
			SpikePercent:        cfg.GetInt("insights.spike_percent"),
			WeeklyActivityLimit: cfg.GetInt("insights.weekly_activity_limit"),
		}
	}); err != nil {
		return nil, err
	}

	// Register calculator and alert generator
	if err := container.Provide(core.NewCalculator); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewGenerator); err != nil {
		return nil, err
	}

	// Register the engine
	if err := container.Provide(func(
		cfg *config.Config,
		historyRepo core.HistoryRepository,
		feed core.ChangeFeed,
		dismissals core.DismissalRepository,
		calculator *core.Calculator,
		generator *core.Generator,
		notifier ports.AlertNotifier,
		logger *zap.Logger,
	) (*core.Engine, error) {
		resync, err := cfg.GetDuration("engine.resync_interval")
		if err != nil {
			return nil, fmt.Errorf("invalid resync interval: %w", err)
		}
		fetchTimeout, err := cfg.GetDuration("engine.fetch_timeout")
		if err != nil {
			return nil, fmt.Errorf("invalid fetch timeout: %w", err)
		}

		opts := []core.EngineOption{
			core.WithResyncInterval(resync),
			core.WithFetchTimeout(fetchTimeout),
		}
		if notifier != nil {
			opts = append(opts, core.WithPublishHook(func(userID string, alerts []core.Alert) {
				if err := notifier.Notify(context.Background(), userID, alerts); err != nil {
					logger.Warn("Alert notification failed", zap.Error(err))
				}
			}))
		}

		return core.NewEngine(historyRepo, feed, dismissals, calculator, generator, logger, opts...), nil
	}); err != nil {
		return nil, err
	}

	// Register the HTTP server
	if err := container.Provide(func(cfg *config.Config, engine *core.Engine, logger *zap.Logger) *api.Server {
		return api.NewServer(engine, cfg.GetString("server.listen_address"), logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
