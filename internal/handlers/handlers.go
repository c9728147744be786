package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockinsight/backend-go/internal/config"
	"stockinsight/backend-go/internal/services"
)

// ModelInfo describes the configured model client for the health check.
type ModelInfo interface {
	Model() string
	GoogleSearchEnabled() bool
}

type API struct {
	cfg     config.Config
	cache   services.Cache
	reports *services.ReportService
	model   ModelInfo
	log     *zap.Logger
}

func New(cfg config.Config, cache services.Cache, reports *services.ReportService, model ModelInfo, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		cfg:     cfg,
		cache:   cache,
		reports: reports,
		model:   model,
		log:     log.Named("api"),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// sessionID takes the session from the query string first, then from the
// X-Session-ID header.
func sessionID(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("session")); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func timeboxed(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
