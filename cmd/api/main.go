package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/fixmate-service/internal/api/http"
	"github.com/spec-kit/fixmate-service/internal/api/http/handlers"
	"github.com/spec-kit/fixmate-service/internal/auth"
	"github.com/spec-kit/fixmate-service/internal/config"
	"github.com/spec-kit/fixmate-service/internal/events"
	"github.com/spec-kit/fixmate-service/internal/observability"
	"github.com/spec-kit/fixmate-service/internal/session"
	"github.com/spec-kit/fixmate-service/internal/store"
	"github.com/spec-kit/fixmate-service/internal/summary"
	"github.com/spec-kit/fixmate-service/internal/worker"
	"github.com/spec-kit/fixmate-service/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotifier(dispatcher, logger)

	wf := workflow.NewService(st, dispatcher, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	sessions := session.NewManager(st, tokens)
	summarizer := summary.NewService(cfg.Summary, logger)

	poller := worker.NewIssuePoller(st, metrics, logger, cfg.Poll.Interval())
	go poller.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Version),
		Auth:           handlers.NewAuthHandler(sessions),
		Issues:         handlers.NewIssuesHandler(wf),
		Admin:          handlers.NewAdminHandler(wf, summarizer, poller),
		Messages:       handlers.NewMessagesHandler(wf),
		AuthMiddleware: auth.NewMiddleware(tokens, st),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
