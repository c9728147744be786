package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"stockinsight/backend-go/internal/models"
)

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := []string{}
	missing := []string{}
	depsStatus := map[string]models.DepStatus{}

	if a.model == nil {
		missing = append(missing, "model_unconfigured")
		depsStatus["gemini"] = models.DepStatus{Ok: false, Error: "GEMINI_API_KEY not set"}
	} else {
		deps = append(deps, "gemini:"+a.model.Model())
		depsStatus["gemini"] = models.DepStatus{Ok: true}
	}

	if a.cache != nil {
		if err := a.cache.Ping(ctx); err != nil {
			missing = append(missing, "cache_unreachable")
			depsStatus["cache"] = models.DepStatus{Ok: false, Error: err.Error()}
		} else {
			deps = append(deps, "cache:"+a.cache.Backend())
			depsStatus["cache"] = models.DepStatus{Ok: true}
		}
	}

	resp := models.HealthResponse{
		Ok:          len(missing) == 0,
		TsISO:       nowISO(),
		Service:     "stockinsight-api",
		Version:     os.Getenv("SERVICE_VERSION"),
		Deps:        deps,
		DepsStatus:  depsStatus,
		DataMissing: missing,
		Features: map[string]bool{
			"google_search_grounding": a.model != nil && a.model.GoogleSearchEnabled(),
			"redis_cache":             a.cache != nil && a.cache.Backend() == "redis",
		},
	}
	writeJSON(w, http.StatusOK, resp)
}
