package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"

	"stockinsight/backend-go/internal/insight"
	"stockinsight/backend-go/internal/models"
	"stockinsight/backend-go/internal/services"
)

// writeInsightError maps pipeline failures onto HTTP statuses: bad input is
// 400, a reply that could not be turned into a report is 422, and model
// call failures follow the upstream status.
func writeInsightError(w http.ResponseWriter, err error, meta *models.SearchMeta) {
	resp := models.ErrorResponse{
		Error:     err.Error(),
		Kind:      string(insight.KindOf(err)),
		Retryable: insight.Retryable(err),
		Meta:      meta,
	}
	switch insight.KindOf(err) {
	case insight.KindInvalidTicker:
		writeJSON(w, http.StatusBadRequest, resp)
	case insight.KindModelCallFailed:
		writeUpstreamError(w, err, resp)
	case "":
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	}
}

func writeUpstreamError(w http.ResponseWriter, err error, resp models.ErrorResponse) {
	var upErr *services.UpstreamError
	if errors.As(err, &upErr) && upErr.Status != 0 {
		resp.UpstreamStatus = upErr.Status
		if upErr.Status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, resp)
			return
		}
		if upErr.Status == http.StatusRequestTimeout || upErr.Status == http.StatusGatewayTimeout {
			writeJSON(w, http.StatusGatewayTimeout, resp)
			return
		}
		if upErr.Status >= 400 && upErr.Status < 500 {
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		resp.Error = "upstream_timeout"
		writeJSON(w, http.StatusGatewayTimeout, resp)
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		resp.Error = "upstream_timeout"
		writeJSON(w, http.StatusGatewayTimeout, resp)
		return
	}
	writeJSON(w, http.StatusBadGateway, resp)
}
