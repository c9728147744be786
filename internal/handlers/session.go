package handlers

import (
	"net/http"
	"time"

	"stockinsight/backend-go/internal/models"
)

func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "session required"})
		return
	}
	st, ok := a.reports.Sessions().Get(sid)
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "unknown session"})
		return
	}
	writeJSON(w, http.StatusOK, models.SessionState{
		SessionID:  sid,
		Status:     string(st.Status),
		Ticker:     st.Ticker,
		Generation: st.Generation,
		Message:    st.Message,
		Report:     st.Report,
		UpdatedISO: st.Updated.UTC().Format(time.RFC3339),
	})
}

func (a *API) Suggestions(w http.ResponseWriter, r *http.Request) {
	tickers := a.cfg.Suggestions
	if tickers == nil {
		tickers = []string{}
	}
	writeJSON(w, http.StatusOK, models.SuggestionsResponse{TsISO: nowISO(), Tickers: tickers})
}
