package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/observability/metrics"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
)

const invalidScoreDetail = "upstream returned invalid score data"

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Get().WithError(err).Error("failed to write json response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writePlanningError maps planning failures onto HTTP statuses and records
// the outcome.
func writePlanningError(w http.ResponseWriter, r *http.Request, err error) {
	entry := logger.WithField("request_id", r.Header.Get("X-Request-ID")).WithError(err)

	var upErr *planning.UpstreamError
	switch {
	case planning.IsValidationError(err):
		metrics.ObservePlan(metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, err.Error())
	case planning.IsDataIntegrityError(err):
		metrics.ObservePlan(metrics.OutcomeInvalidScore)
		entry.Error("Planning service returned invalid score data")
		writeError(w, http.StatusBadGateway, invalidScoreDetail)
	case errors.As(err, &upErr):
		metrics.ObservePlan(metrics.OutcomeUpstream)
		metrics.ObserveUpstreamFailure(upErr.StatusCode)
		status := http.StatusBadGateway
		if upErr.StatusCode == 0 {
			status = http.StatusServiceUnavailable
		}
		entry.WithField("upstream_status", upErr.StatusCode).Warn("Planning service call failed")
		writeError(w, status, upErr.Detail)
	default:
		entry.Error("Planning request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
