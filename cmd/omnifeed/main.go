// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Command omnifeed runs the discovery/ranking engine under a supervised
// process tree: a feed scheduler that walks the retriever DAG, a model
// training scheduler, and an ops-only HTTP surface (health, readiness,
// metrics). The product surface (add_source, get_feed, rate_content, ...)
// is a Go-level contract on *engine.Engine, not an HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/omnifeed/internal/adapter/rssref"
	"github.com/tomtom215/omnifeed/internal/config"
	"github.com/tomtom215/omnifeed/internal/embedding"
	"github.com/tomtom215/omnifeed/internal/engine"
	"github.com/tomtom215/omnifeed/internal/logging"
	"github.com/tomtom215/omnifeed/internal/modelregistry"
	"github.com/tomtom215/omnifeed/internal/orchestrator"
	"github.com/tomtom215/omnifeed/internal/retriever"
	"github.com/tomtom215/omnifeed/internal/search/bandcamp"
	"github.com/tomtom215/omnifeed/internal/store"
	"github.com/tomtom215/omnifeed/internal/store/duckdbstore"
	"github.com/tomtom215/omnifeed/internal/supervisor"
	"github.com/tomtom215/omnifeed/internal/supervisor/services"
)

// defaultModelName is the single registered ranking model. §4.7 allows
// multiple named models; this build wires the one every objective shares.
const defaultModelName = "default"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.SetLevelString(cfg.Logging.Level)

	st, err := duckdbstore.Open(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	eng, trainSource := buildEngine(cfg, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build supervisor tree")
	}

	tree.AddMessagingService(supervisor.NewFeedSchedulerService(eng, logging.Logger(), cfg.Retriever.InvokeTimeout*4, orchestrator.Context{
		MaxDepth:        cfg.Retriever.MaxDepth,
		Limit:           cfg.Retriever.FeedLimit,
		IncludeDisabled: cfg.Retriever.IncludeDisabled,
	}))
	tree.AddMessagingService(supervisor.NewModelTrainingService(eng, logging.Logger(), cfg.Ranking.TrainInterval, defaultModelName))
	_ = trainSource // registered with the model registry inside buildEngine

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      opsRouter(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("starting omnifeed")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
	}
	logging.Info().Msg("omnifeed stopped gracefully")
}

// buildEngine wires every collaborator the engine facade needs: adapter and
// handler registries, the embedding service and fuser, and the model
// registry backed by disk-persisted snapshots.
func buildEngine(cfg *config.Config, st store.Store) (*engine.Engine, *modelregistry.StoreTrainingSource) {
	adapters := retriever.NewAdapterRegistry()
	adapters.Register(rssref.New())

	handlers := retriever.NewHandlerRegistry()
	handlers.Register(retriever.NewSourceWrapperHandler(adapters))

	search := retriever.NewSearchRegistry()
	search.Register(bandcamp.New())
	handlers.Register(retriever.NewExploratoryHandler(search))
	handlers.Register(retriever.NewStrategyHandler(search))

	embed := embedding.NewHashingService(cfg.Ranking.OutputDim)
	fuser := embedding.NewFuser(cfg.Ranking.OutputDim)

	diskStore, err := modelregistry.NewDiskStore(cfg.Ranking.ModelDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open model disk store")
	}
	models := modelregistry.New(diskStore)
	trainSource := modelregistry.NewStoreTrainingSource(st, fuser)
	models.Register(defaultModelName, trainSource, true, true)
	if err := models.LoadPersisted(defaultModelName); err != nil {
		logging.Warn().Err(err).Msg("no persisted model snapshot yet")
	}

	eng := engine.New(engine.Config{
		Store:    st,
		Adapters: adapters,
		Handlers: handlers,
		Search:   search,
		Embed:    embed,
		Fuser:    fuser,
		Models:   models,
		Logger:   logging.Logger(),
	})
	return eng, trainSource
}

// opsRouter serves health, readiness, and Prometheus metrics only. The
// product surface (add_source, get_feed, rate_content, train) is reached
// through *engine.Engine directly, never over HTTP.
func opsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
