package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/eternisai/enchanted-chat/internal/config"
	apierrors "github.com/eternisai/enchanted-chat/internal/errors"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/title_generation"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	log.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	generator, err := title_generation.NewGenerator(cfg)
	if err != nil {
		log.Error("failed to create title generator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	metrics := title_generation.NewMetrics()
	titleHandler := title_generation.NewHandler(generator, metrics, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(log))
	router.NoRoute(apierrors.NotFound)

	titleHandler.RegisterRoutes(router)

	// The chat UI is served from a different origin during development.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", logger.RequestIDHeader},
		ExposedHeaders: []string{logger.RequestIDHeader},
	}).Handler(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	log.Info("title server listening",
		slog.String("addr", srv.Addr),
		slog.String("ollama_base_url", cfg.OllamaBaseURL),
		slog.String("default_model", cfg.TitleDefaultModel))

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server exited")
}
