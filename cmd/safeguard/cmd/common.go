package cmd

import (
	"context"
	"os"

	"github.com/spf13/viper"

	"github.com/flockops/safeguard/internal/config"
	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/engine"
	"github.com/flockops/safeguard/internal/events"
	"github.com/flockops/safeguard/internal/logging"
	"github.com/flockops/safeguard/internal/ministrysafe"
	"github.com/flockops/safeguard/internal/store"
)

// runtime bundles the wired components a command needs.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *store.Store
	vendor *ministrysafe.Client
	engine *engine.Engine
	bus    *events.EventBus
}

func newLogger() *logging.Logger {
	return logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stdout,
	})
}

func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	return loader.Load()
}

// buildRuntime wires config, store, vendor client and engine. The caller owns
// the returned runtime and must call close.
func buildRuntime(logger *logging.Logger) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	vendor := ministrysafe.New(ministrysafe.Config{
		BaseURL:     cfg.Vendor.BaseURL,
		AccessToken: cfg.Vendor.AccessToken,
		Timeout:     cfg.Vendor.Timeout,
		RateLimit: ministrysafe.RateLimiterConfig{
			MaxTokens:  float64(cfg.Vendor.Burst),
			RefillRate: cfg.Vendor.RatePerSecond,
		},
	}, logger)

	bus := events.New(100)

	eng := engine.New(engine.Deps{
		Records:   st,
		Workflows: st,
		Persons:   st,
		Files:     st,
		Processor: noopProcessor(logger),
		Vendor:    vendor,
		Bus:       bus,
		Logger:    logger,
	})

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  st,
		vendor: vendor,
		engine: eng,
		bus:    bus,
	}, nil
}

// noopProcessor stands in for the host platform's workflow processing step.
// Running standalone there is nothing to re-run; subscribers on the event bus
// see the completed reconciliation instead.
func noopProcessor(logger *logging.Logger) core.WorkflowProcessor {
	return core.ProcessorFunc(func(_ context.Context, workflowID int64) []error {
		logger.Debug("workflow reprocess requested", "workflow_id", workflowID)
		return nil
	})
}

func (rt *runtime) close() {
	rt.bus.Close()
	if err := rt.store.Close(); err != nil {
		rt.logger.Warn("closing store", "error", err)
	}
}
