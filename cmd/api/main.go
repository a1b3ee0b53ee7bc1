package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bestsellers/internal/app"
	"bestsellers/internal/config"
	"bestsellers/internal/httpx"
	"bestsellers/internal/ingest"
	"bestsellers/internal/logger"

	"github.com/rs/zerolog"
)

const internalSecretHeader = "X-Internal-Secret"

func main() {
	log := logger.NewJSON()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.InternalSecret == "" {
		log.Warn().Msg("INTERNAL_SECRET is empty, internal endpoints are unprotected")
	}

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot start pipeline")
	}
	defer a.Close()

	handler := ingest.NewHTTPHandler(a.Service, a.Audits)
	router := newRouter(log, handler, a.Pool.Ping, cfg.InternalSecret)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Minute, // a triggered run holds the request open
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("starting server")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}

func newRouter(log zerolog.Logger, h *ingest.HTTPHandler, ping func(context.Context) error, secret string) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Only the trigger is throttled; reads are cheap.
	trigger := httpx.NewRateLimitMiddleware(1.0/60, 2)
	internal := http.NewServeMux()
	internal.Handle("/internal/jobs/ingest", trigger.Middleware(http.HandlerFunc(h.Ingest)))
	internal.HandleFunc("GET /internal/runs/last", h.LastRun)
	internal.HandleFunc("GET /internal/audits", h.Audits)
	router.Handle("/internal/", httpx.RequireSecret(internalSecretHeader, secret)(internal))

	return httpx.Chain(router,
		httpx.LoggerMiddleware(log),
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.RequestSizeLimitMiddleware(1<<20),
	)
}
