package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timeoff-bot/internal/app"
	"timeoff-bot/internal/config"
	"timeoff-bot/internal/handler"
	"timeoff-bot/internal/logger"
	"timeoff-bot/internal/queue"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer bot.Close(context.Background())

	// Webhook -> queue -> workers
	q, err := bot.Queue(ctx)
	if err != nil {
		log.Error("failed to open event queue", "error", err)
		os.Exit(1)
	}
	worker := queue.NewWorker(q, bot.Service.HandleEnvelope, log,
		queue.WithWorkerCount(cfg.WorkerCount),
		queue.WithReceiveWaitSeconds(cfg.QueueWaitSeconds),
	)
	worker.Start(ctx)

	var dedup handler.Deduper
	if d := bot.Deduper(); d != nil {
		dedup = d
	}

	// Routes
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(handler.LoggingMiddleware)
	r.Use(chiMiddleware.Recoverer)

	handler.NewSlackHandler(cfg.SlackSigningSecret, queue.NewPublisher(q), dedup, bot.Metrics, log).RegisterRoutes(r)
	handler.NewHealthHandler(bot.Checks).RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(bot.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("bot service started", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	worker.Wait()
}
