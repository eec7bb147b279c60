package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/scan-insights/internal/adapters/api"
	"github.com/mikey/scan-insights/internal/core"
	"github.com/mikey/scan-insights/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	engine *core.Engine,
	server *api.Server,
	historyRepo core.HistoryRepository,
	dismissals core.DismissalRepository,
) error {
	defer logger.Sync()

	// Start the HTTP surface; sessions spin up lazily on first contact
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start HTTP server", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	engine.Stop()

	// Close any resources that need closing
	if stopper, ok := historyRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	if closer, ok := dismissals.(interface{ Close() }); ok {
		closer.Close()
	}

	logger.Info("Shutdown complete")
	return nil
}
