package handlers

import (
	"net/http"

	"stockinsight/backend-go/internal/models"
)

func (a *API) Insight(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	res, err := a.reports.Search(ctx, sessionID(r), ticker)
	if err != nil {
		writeInsightError(w, err, &res.Meta)
		return
	}
	writeJSON(w, http.StatusOK, models.InsightResponse{
		TsISO:  nowISO(),
		Report: res.Report,
		Meta:   res.Meta,
	})
}
