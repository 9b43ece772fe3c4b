package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/services"
	"github.com/username/goldfolio/backend/src/utils"
)

type ModelsHandler struct {
	registry *services.ModelRegistry
}

func NewModelsHandler(registry *services.ModelRegistry) *ModelsHandler {
	return &ModelsHandler{registry: registry}
}

// HandleGetAvailable lists the selectable models plus use-case
// recommendations.
func (h *ModelsHandler) HandleGetAvailable(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, map[string]any{
		"models":          h.registry.Available(),
		"recommendations": h.registry.Recommended(),
	})
}

// HandleGetCurrent reports the active model.
func (h *ModelsHandler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	modelID, settings := h.registry.Current()
	utils.SendJSON(w, http.StatusOK, map[string]any{
		"modelId":     modelID,
		"maxTokens":   settings.MaxTokens,
		"temperature": settings.Temperature,
		"description": settings.Description,
	})
}

// HandleGetPricing serves the approximate per-token cost table.
func (h *ModelsHandler) HandleGetPricing(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, map[string]any{
		"pricing": h.registry.Pricing(),
		"note":    "Prices are approximate and may vary. Check OpenRouter for current pricing.",
	})
}

// HandleGetModel serves one model looked up by registry key or model id.
func (h *ModelsHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelId")
	if modelID == "" {
		utils.SendJSONError(w, "modelId is required", http.StatusBadRequest)
		return
	}

	info, err := h.registry.Get(modelID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, info)
}

type switchModelRequest struct {
	ModelKey string `json:"modelKey"`
}

// HandleSwitch selects a different model by registry key.
func (h *ModelsHandler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ModelKey == "" {
		utils.SendJSONError(w, "modelKey is required", http.StatusBadRequest)
		return
	}

	info, err := h.registry.Switch(req.ModelKey)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Switched inference model", "modelKey", info.Key, "modelId", info.ModelID)
	utils.SendJSON(w, http.StatusOK, info)
}
