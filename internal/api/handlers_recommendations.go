// Package api is the HTTP transport over the service layer.
package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openlot/openlot/core/internal/api/respond"
	"github.com/openlot/openlot/core/internal/metrics"
	"github.com/openlot/openlot/core/internal/services"
)

// RecommendationHandler is a thin HTTP transport over the
// RecommendationService.
type RecommendationHandler struct {
	svc *services.RecommendationService
}

func NewRecommendationHandler(svc *services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{svc: svc}
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Popular GET /api/recommendations/popular
func (h *RecommendationHandler) Popular(w http.ResponseWriter, r *http.Request) {
	metrics.RecommendationRequests.WithLabelValues("popular").Inc()
	limit, ok := parseLimit(r)
	if !ok {
		respond.WriteBadRequest(w, "invalid limit")
		return
	}
	out, err := h.svc.Popular(r.Context(), limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"vehicles": out, "count": len(out)})
}

// Similar GET /api/recommendations/similar/{vehicleId}
func (h *RecommendationHandler) Similar(w http.ResponseWriter, r *http.Request) {
	metrics.RecommendationRequests.WithLabelValues("similar").Inc()
	limit, ok := parseLimit(r)
	if !ok {
		respond.WriteBadRequest(w, "invalid limit")
		return
	}
	out, err := h.svc.Similar(r.Context(), mux.Vars(r)["vehicleId"], limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"vehicles": out, "count": len(out)})
}

// Personalized GET /api/recommendations/personalized/{userId}
func (h *RecommendationHandler) Personalized(w http.ResponseWriter, r *http.Request) {
	metrics.RecommendationRequests.WithLabelValues("personalized").Inc()
	limit, ok := parseLimit(r)
	if !ok {
		respond.WriteBadRequest(w, "invalid limit")
		return
	}
	out, err := h.svc.Personalized(r.Context(), mux.Vars(r)["userId"], limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"vehicles": out, "count": len(out)})
}

// Hybrid GET /api/recommendations/hybrid?userId=&seedVehicleId=&limit=
func (h *RecommendationHandler) Hybrid(w http.ResponseWriter, r *http.Request) {
	metrics.RecommendationRequests.WithLabelValues("hybrid").Inc()
	limit, ok := parseLimit(r)
	if !ok {
		respond.WriteBadRequest(w, "invalid limit")
		return
	}
	var userID *string
	if uid := r.URL.Query().Get("userId"); uid != "" {
		userID = &uid
	}
	out, err := h.svc.Hybrid(r.Context(), userID, r.URL.Query().Get("seedVehicleId"), limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"vehicles": out, "count": len(out)})
}

// Refresh POST /api/recommendations/refresh
func (h *RecommendationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
