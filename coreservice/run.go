// Package coreservice boots the marketplace core HTTP service: it wires
// storage, cache, model providers, rankers and the chat engine, then
// serves the public API until shutdown.
package coreservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openlot/openlot/core/internal/api"
	"github.com/openlot/openlot/core/internal/api/recovery"
	"github.com/openlot/openlot/core/internal/cache"
	"github.com/openlot/openlot/core/internal/chat"
	"github.com/openlot/openlot/core/internal/completions"
	"github.com/openlot/openlot/core/internal/config"
	emb "github.com/openlot/openlot/core/internal/embeddings"
	"github.com/openlot/openlot/core/internal/factory"
	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/health"
	"github.com/openlot/openlot/core/internal/interactions"
	"github.com/openlot/openlot/core/internal/logger"
	"github.com/openlot/openlot/core/internal/rank"
	"github.com/openlot/openlot/core/internal/services"
	"github.com/openlot/openlot/core/internal/store"
)

// Run starts the core service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("core-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("cache_backend", cfg.CacheBackend).
		Int("http_port", cfg.HTTPPort).
		Str("embed_provider", cfg.EmbedProvider).
		Str("completion_provider", cfg.CompletionProvider).
		Msg("Core service starting")

	// Cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}

	router := buildRouter(deps, cfg, log)

	if err := waitUntilHealthy(ctx, cfg, deps.svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// dependencies groups everything buildRouter needs so Run stays readable.
type dependencies struct {
	store     store.Store
	cache     cache.Cache
	embedder  emb.Provider
	completer completions.Provider
	svcHealth *health.ServiceHealthChecker
}

// initDependencies constructs required components and enforces fail-fast on
// missing deps, then starts the background health probes over them.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}

	c, err := factory.NewCache(cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Cache backend unavailable")
		return nil, err
	}

	embProvider := factory.NewEmbeddingProvider(ctx, cfg, log)
	if embProvider == nil {
		return nil, fmt.Errorf("embedding provider not configured")
	}
	completer := factory.NewCompletionProvider(cfg, log)
	if completer == nil {
		return nil, fmt.Errorf("completion provider not configured")
	}

	deps := &dependencies{store: st, cache: c, embedder: embProvider, completer: completer}
	deps.svcHealth = startHealthCheckers(ctx, cfg, log, deps)
	return deps, nil
}

// buildRouter wires HTTP routes to handlers.
func buildRouter(deps *dependencies, cfg *config.Config, log zerolog.Logger) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	fs := features.NewStore(deps.store.Vehicles(), cfg.CacheTTL)
	agg := interactions.NewAggregator(deps.store.Interactions(), deps.cache, cfg.CacheTTL, cfg.PopularityLambda())

	popularity := rank.NewPopularityRanker(agg, fs, cfg.RatingPriorWeight)
	similarity := rank.NewSimilarityRanker(fs)
	personalized := rank.NewPersonalizationRanker(agg, fs, deps.cache, rank.ProfileParams{
		Window:     cfg.ProfileWindow,
		MinHistory: cfg.MinHistory,
		Lambda:     cfg.ProfileLambda(),
		Alpha:      cfg.ProfileAlpha,
		CacheTTL:   cfg.CacheTTL,
	})
	hybrid := rank.NewHybridComposer(popularity, personalized, similarity, fs, rank.FusionWeights{
		Popularity:   cfg.PopularityWeight,
		Personalized: cfg.PersonalizedWeight,
		Similarity:   cfg.SimilarityWeight,
	}, cfg.DiversityCapDivisor)

	// Interactions
	interactionSvc := services.NewInteractionService(agg)
	interactionHandler := api.NewInteractionHandler(interactionSvc)
	root.HandleFunc("/api/interactions", interactionHandler.Record).Methods("POST")

	// Recommendations
	recSvc := services.NewRecommendationService(popularity, similarity, personalized, hybrid, fs, agg)
	rec := api.NewRecommendationHandler(recSvc)
	root.HandleFunc("/api/recommendations/popular", rec.Popular).Methods("GET")
	root.HandleFunc("/api/recommendations/similar/{vehicleId}", rec.Similar).Methods("GET")
	root.HandleFunc("/api/recommendations/personalized/{userId}", rec.Personalized).Methods("GET")
	root.HandleFunc("/api/recommendations/hybrid", rec.Hybrid).Methods("GET")
	root.HandleFunc("/api/recommendations/refresh", rec.Refresh).Methods("POST")

	// Chat
	engine := chat.NewEngine(deps.store.Conversations(), deps.store.Messages(), deps.store.Vehicles(),
		deps.embedder, deps.completer, similarity, chat.Params{
			RetrievalK:    cfg.RetrievalK,
			ContextWindow: cfg.ContextWindow,
			MaxCitations:  cfg.MaxCitations,
		}, log)
	chatSvc := services.NewChatService(engine, deps.store.Conversations(), deps.store.Messages())
	chatHandler := api.NewChatHandler(chatSvc)
	root.HandleFunc("/api/chat/messages", chatHandler.SendMessage).Methods("POST")
	root.HandleFunc("/api/chat/conversations", chatHandler.ListConversations).Methods("GET")
	root.HandleFunc("/api/chat/conversations/{conversationId}/messages", chatHandler.ListMessages).Methods("GET")
	root.HandleFunc("/api/chat/conversations/{conversationId}", chatHandler.DeleteConversation).Methods("DELETE")

	// Health and metrics
	healthHandler := api.NewHealthHandler(deps.svcHealth.IsHealthy)
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	root.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return root
}

// startHealthCheckers starts component checkers and the service-level
// aggregator. Components that do not expose a ping (the in-memory cache)
// are skipped.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, deps *dependencies) *health.ServiceHealthChecker {
	var checkers []health.HealthChecker

	add := func(name string, pinger health.HealthPinger) {
		checker := health.NewPingChecker(log, name, pinger, cfg.HealthProbeTimeout)
		go checker.Start(ctx, cfg.HealthInterval)
		checkers = append(checkers, checker)
	}

	add("store", deps.store)
	if p, ok := deps.cache.(health.HealthPinger); ok {
		add("cache", p)
	}
	if p, ok := deps.embedder.(health.HealthPinger); ok {
		add("embeddings", p)
	}
	if p, ok := deps.completer.(health.HealthPinger); ok {
		add("completions", p)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, cfg.HealthInterval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// startupHealthTimeout allows the checkers at least two probe cycles,
// with a 60 second floor.
func startupHealthTimeout(interval time.Duration) time.Duration {
	timeout := interval * 2
	if timeout < time.Minute {
		return time.Minute
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup
// window expires. Checkers start unhealthy until their first probe lands.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeout := startupHealthTimeout(cfg.HealthInterval)
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
