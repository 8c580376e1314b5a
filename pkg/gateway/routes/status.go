package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/health"
)

type StatusHandler struct {
	monitor *health.Monitor
}

type statusDetail struct {
	CheckedAt time.Time             `json:"checked_at"`
	Overall   health.Status         `json:"overall"`
	Counts    map[health.Status]int `json:"counts"`
	Services  []health.ProbeResult  `json:"services"`
}

func NewStatusHandler(monitor *health.Monitor) *StatusHandler {
	return &StatusHandler{monitor: monitor}
}

func (h *StatusHandler) Register(r *mux.Router) {
	r.HandleFunc("/service_status", h.handleServiceStatus).Methods(http.MethodGet)
}

// handleServiceStatus runs a fresh cycle per request. ?cached=true answers
// from the newest accepted snapshot and only probes when there is none yet.
// ?detail=true adds display names, latency and errors.
func (h *StatusHandler) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		snap health.Snapshot
		ok   bool
	)
	if cached, _ := strconv.ParseBool(query.Get("cached")); cached {
		snap, ok = h.monitor.Latest()
	}
	if !ok {
		var err error
		snap, _, err = h.monitor.RunCycle(r.Context())
		if err != nil {
			logger.Get().WithError(err).Warn("Health cycle bookkeeping failed")
		}
	}

	if detail, _ := strconv.ParseBool(query.Get("detail")); detail {
		writeJSON(w, http.StatusOK, statusDetail{
			CheckedAt: snap.CheckedAt,
			Overall:   snap.Overall(),
			Counts:    snap.Counts(),
			Services:  snap.Results,
		})
		return
	}
	writeJSON(w, http.StatusOK, snap.Services)
}
