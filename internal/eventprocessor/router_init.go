// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

//go:build nats

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// RouterComponents holds the Router-based event processing components.
type RouterComponents struct {
	Router        *Router
	DuckDBHandler *DuckDBHandler
	Logger        watermill.LoggerAdapter
}

// RouterComponentsConfig holds configuration for creating RouterComponents.
type RouterComponentsConfig struct {
	// RouterConfig for the Watermill Router (pointer to avoid copy overhead)
	RouterConfig *RouterConfig

	// DuckDBHandlerConfig for event persistence
	DuckDBHandlerConfig DuckDBHandlerConfig

	// PoisonQueuePublisher is used for routing failed messages.
	// Set to nil to disable poison queue.
	PoisonQueuePublisher message.Publisher
}

// DefaultRouterComponentsConfig returns production defaults.
func DefaultRouterComponentsConfig() RouterComponentsConfig {
	defaultRouterCfg := DefaultRouterConfig()
	return RouterComponentsConfig{
		RouterConfig:        &defaultRouterCfg,
		DuckDBHandlerConfig: DefaultDuckDBHandlerConfig(),
	}
}

// NewRouterComponents creates the Router-based components wired together.
// This is the recommended way to initialize the event processing system.
//
// Usage example:
//
//	cfg := DefaultRouterComponentsConfig()
//	components, err := NewRouterComponents(&cfg, appender, duckdbSubscriber, nil)
//	ctx := context.Background()
//	if err := components.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer components.Stop()
func NewRouterComponents(
	cfg *RouterComponentsConfig,
	appender *Appender,
	duckdbSubscriber message.Subscriber,
	logger watermill.LoggerAdapter,
) (*RouterComponents, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg == nil {
		defaultCfg := DefaultRouterComponentsConfig()
		cfg = &defaultCfg
	}

	components := &RouterComponents{
		Logger: logger,
	}

	router, err := NewRouter(cfg.RouterConfig, cfg.PoisonQueuePublisher, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	components.Router = router

	if appender != nil && duckdbSubscriber != nil {
		duckdbHandler, err := NewDuckDBHandler(appender, cfg.DuckDBHandlerConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("create duckdb handler: %w", err)
		}
		components.DuckDBHandler = duckdbHandler

		router.AddConsumerHandler(
			"duckdb-consumer",
			"omnifeed.>",
			duckdbSubscriber,
			duckdbHandler.Handle,
		)
	}

	return components, nil
}

// Start begins processing events.
func (c *RouterComponents) Start(ctx context.Context) error {
	if c.DuckDBHandler != nil {
		c.DuckDBHandler.StartCleanup(ctx)
	}

	go func() {
		if err := c.Router.Run(ctx); err != nil {
			c.Logger.Error("Router error", err, nil)
		}
	}()

	<-c.Router.Running()

	c.Logger.Info("Router components started", watermill.LogFields{
		"handlers": len(c.Router.handlers),
	})

	return nil
}

// Stop gracefully stops all components.
func (c *RouterComponents) Stop() error {
	if c.Router == nil {
		return nil
	}

	if err := c.Router.Close(); err != nil {
		return fmt.Errorf("close router: %w", err)
	}

	c.Logger.Info("Router components stopped", nil)
	return nil
}

// IsRunning returns whether components are active.
func (c *RouterComponents) IsRunning() bool {
	return c.Router != nil && c.Router.IsRunning()
}

// Stats returns combined statistics from all components.
func (c *RouterComponents) Stats() RouterComponentsStats {
	stats := RouterComponentsStats{}

	if c.Router != nil {
		stats.Router = c.Router.Metrics()
	}
	if c.DuckDBHandler != nil {
		stats.DuckDB = c.DuckDBHandler.Stats()
	}

	return stats
}

// RouterComponentsStats holds combined statistics.
type RouterComponentsStats struct {
	Router *RouterMetrics
	DuckDB DuckDBHandlerStats
}

// MigrationGuide documents the Router-based approach versus the older manual
// subscribe-loop approach still used by Subscriber.NewMessageHandler.
//
// Manual loop:
//
//	subscriber.NewMessageHandler("omnifeed.>").
//	    Handle(func(ctx context.Context, msg *message.Message) error {
//	        return nil
//	    }).
//	    Run(ctx)
//
// Router-based:
//
//	cfg := DefaultRouterComponentsConfig()
//	components, _ := NewRouterComponents(&cfg, appender, sub, nil)
//	components.Start(ctx)
//
// Benefits: automatic Ack/Nack, exponential backoff retry, poison queue
// routing, panic recovery, and optional rate limiting/deduplication at the
// middleware level.
type MigrationGuide struct{}
