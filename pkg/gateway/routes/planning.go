package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"github.com/synaptica-ai/rwe-planner/pkg/observability/metrics"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
)

// PlanHistory lists archived plans; satisfied by planning.Repository.
type PlanHistory interface {
	Recent(ctx context.Context, limit int) ([]planning.PlanRecord, error)
}

type PlanningHandler struct {
	service        *planning.Service
	history        PlanHistory
	maxRequestBody int64
	chartSites     int
}

func NewPlanningHandler(service *planning.Service, history PlanHistory, maxRequestBody int64) *PlanningHandler {
	if service == nil {
		panic("planning handler requires a service")
	}
	return &PlanningHandler{
		service:        service,
		history:        history,
		maxRequestBody: maxRequestBody,
		chartSites:     planning.DefaultChartSites,
	}
}

func (h *PlanningHandler) Register(r *mux.Router) {
	r.HandleFunc("/plan_rwe_study", h.handlePlan).Methods(http.MethodPost)
	r.HandleFunc("/quick_assessment", h.handleQuickAssessment).Methods(http.MethodPost)
	r.HandleFunc("/plans", h.handleRecentPlans).Methods(http.MethodGet)
}

func (h *PlanningHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := r.Body
	if h.maxRequestBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxRequestBody)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		logger.Get().WithError(err).Warn("Failed to decode request")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *PlanningHandler) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Plan(r.Context(), planning.FromRequest(req))
	if err != nil {
		writePlanningError(w, r, err)
		return
	}

	metrics.ObservePlan(metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, planning.View(result, h.chartSites))
}

func (h *PlanningHandler) handleQuickAssessment(w http.ResponseWriter, r *http.Request) {
	var req models.QuickAssessmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.QuickAssess(r.Context(), req)
	if err != nil {
		writePlanningError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PlanningHandler) handleRecentPlans(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "plan history is not enabled")
		return
	}

	limit := 20
	if val := r.URL.Query().Get("limit"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		logger.Get().WithError(err).Error("failed to list plans")
		writeError(w, http.StatusInternalServerError, "failed to list plans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": records})
}
