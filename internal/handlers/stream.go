package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"stockinsight/backend-go/internal/insight"
	"stockinsight/backend-go/internal/models"
	"stockinsight/backend-go/internal/session"
)

// StreamInsight runs one search over server-sent events: a "state" event
// with status loading, then either a "report" or an "error" event.
func (a *API) StreamInsight(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusBadRequest)
		return
	}

	ticker := r.URL.Query().Get("ticker")
	sid := sessionID(r)
	if sid == "" {
		sid = session.NewID()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	send := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	send("state", models.SessionState{
		SessionID:  sid,
		Status:     string(session.StatusLoading),
		Ticker:     strings.ToUpper(strings.TrimSpace(ticker)),
		UpdatedISO: nowISO(),
	})

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()
	res, err := a.reports.Search(ctx, sid, ticker)
	if r.Context().Err() != nil {
		return
	}
	if err != nil {
		send("error", models.ErrorResponse{
			Error:     err.Error(),
			Kind:      string(insight.KindOf(err)),
			Retryable: insight.Retryable(err),
			Meta:      &res.Meta,
		})
		return
	}
	send("report", models.InsightResponse{
		TsISO:  nowISO(),
		Report: res.Report,
		Meta:   res.Meta,
	})
}
