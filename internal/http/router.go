package http

import (
	"net/http"

	"go.uber.org/zap"

	"stockinsight/backend-go/internal/config"
	"stockinsight/backend-go/internal/handlers"
	"stockinsight/backend-go/internal/services"
)

func NewRouter(cfg config.Config, cache services.Cache, reports *services.ReportService, model handlers.ModelInfo, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	api := handlers.New(cfg, cache, reports, model, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", api.Health)
	mux.HandleFunc("GET /api/v1/suggestions", api.Suggestions)
	mux.HandleFunc("GET /api/v1/insight", api.Insight)
	mux.HandleFunc("GET /api/v1/insight/stream", api.StreamInsight)
	mux.HandleFunc("GET /api/v1/session", api.Session)

	h := http.Handler(mux)
	h = withRecovery(log)(h)
	h = withLogging(log.Named("http"))(h)
	h = withRateLimit(cfg.RateLimitPerMin)(h)
	h = withCORS(h)
	h = withRequestID(h)
	return h
}
