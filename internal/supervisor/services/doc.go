// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

/*
Package services provides suture.Service wrappers for omnifeed components.

This package adapts existing application components to the suture v4 supervision
model, translating various lifecycle patterns (Start/Stop, ListenAndServe) into
suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WAL Services (WALRetryLoopService, WALCompactorService):
  - Wraps wal.RetryLoop and wal.Compactor
  - Build tag: wal (disabled by default)

NATS Components (NATSComponentsService):
  - Wraps the embedded NATS JetStream components that back the optional
    feedback-event bus (§9)
  - Build tag: nats (disabled by default)

The feed scheduler and model training loop are not wrapped here: they hold a
direct reference to *engine.Engine and live in internal/supervisor as
FeedSchedulerService and ModelTrainingService.

# Lifecycle Patterns

Start/Stop Pattern:

	type StartStopper interface {
	    Start(ctx context.Context) error
	    Stop() error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    if err := s.component.Start(ctx); err != nil {
	        return err
	    }
	    <-ctx.Done()
	    return s.component.Stop()
	}

ListenAndServe Pattern:

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

All services implement fmt.Stringer for logging:

	func (s *HTTPServerService) String() string {
	    return "http-server"
	}

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/wal: WAL retry/compaction components
*/
package services
