package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stockinsight/backend-go/internal/config"
	"stockinsight/backend-go/internal/handlers"
	internalhttp "stockinsight/backend-go/internal/http"
	"stockinsight/backend-go/internal/insight"
	"stockinsight/backend-go/internal/logging"
	"stockinsight/backend-go/internal/services"
	"stockinsight/backend-go/internal/session"
)

func main() {
	_ = godotenv.Load(
		".env",
		".env.local",
		"../.env",
		"../.env.local",
		"backend-go/.env",
		"backend-go/.env.local",
	)
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.Must(cfg.LogLevel, cfg.LogDevelopment)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := services.NewCache(cfg, log)

	var (
		client insight.ModelClient = services.UnconfiguredClient{}
		info   handlers.ModelInfo
	)
	gemini, err := services.NewGeminiClient(ctx, cfg, log)
	if err != nil {
		log.Warn("gemini client unavailable, insight requests will fail", zap.Error(err))
	} else {
		client = gemini
		info = gemini
	}

	pipeline := insight.NewPipeline(
		client,
		insight.NewRequestBuilder(cfg.ChangeWindow),
		insight.NewChartSynthesizer(cfg.ChartPoints),
		log.Named("pipeline"),
	)
	reports := services.NewReportService(cfg, cache, pipeline, session.NewStore(cfg.SessionIdleTTL), log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           internalhttp.NewRouter(cfg, cache, reports, info, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("stockinsight backend listening",
		zap.String("addr", srv.Addr),
		zap.String("model", cfg.GeminiModel),
		zap.String("cache", cache.Backend()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", zap.Error(err))
	}
}
