package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/openlot/openlot/core/internal/api/respond"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/services"
)

// InteractionHandler records listing interactions.
type InteractionHandler struct {
	svc *services.InteractionService
}

func NewInteractionHandler(svc *services.InteractionService) *InteractionHandler {
	return &InteractionHandler{svc: svc}
}

// Record POST /api/interactions
func (h *InteractionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     *string   `json:"userId"`
		VehicleID  string    `json:"vehicleId"`
		Type       string    `json:"type"`
		OccurredAt time.Time `json:"occurredAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	err := h.svc.Record(r.Context(), services.RecordRequest{
		UserID:     req.UserID,
		VehicleID:  req.VehicleID,
		Type:       model.InteractionType(req.Type),
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}
