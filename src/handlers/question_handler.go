package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/username/goldfolio/backend/src/database"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/models"
	"github.com/username/goldfolio/backend/src/services"
	"github.com/username/goldfolio/backend/src/utils"
)

const maxQuestionLength = 1000

type QuestionHandler struct {
	classifier services.ClassifierService
	sanitizer  *bluemonday.Policy
}

func NewQuestionHandler(classifier services.ClassifierService) *QuestionHandler {
	return &QuestionHandler{
		classifier: classifier,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

type analyzeQuestionRequest struct {
	Question  string `json:"question"`
	UserEmail string `json:"userEmail"`
}

// HandleAnalyzeQuestion classifies a free-form question as gold-related or
// not and appends the decision to the classification log.
func (h *QuestionHandler) HandleAnalyzeQuestion(w http.ResponseWriter, r *http.Request) {
	var req analyzeQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	question := strings.TrimSpace(h.sanitizer.Sanitize(req.Question))
	if question == "" {
		utils.SendJSONError(w, "Question is required", http.StatusBadRequest)
		return
	}
	if len(question) > maxQuestionLength {
		utils.SendJSONError(w, "Question exceeds maximum length of 1000 characters", http.StatusBadRequest)
		return
	}

	classification := h.classifier.Classify(r.Context(), question)

	logEntry := &models.ClassificationLog{
		LogID:            "LOG_" + uuid.New().String(),
		Question:         question,
		IsGoldRelated:    classification.IsGoldRelated,
		Confidence:       classification.Confidence,
		Reasoning:        sql.NullString{String: classification.Reasoning, Valid: classification.Reasoning != ""},
		AIResponse:       classification.Response,
		SuggestedAction:  classification.SuggestedAction,
		DecisionSource:   classification.DecisionSource,
		ProcessingTimeMs: classification.ProcessingTime.Milliseconds(),
	}
	if email := strings.TrimSpace(req.UserEmail); email != "" {
		logEntry.UserEmail = sql.NullString{String: email, Valid: true}
	}
	if err := models.InsertClassificationLog(database.DB, logEntry); err != nil {
		// The decision is still valid; losing the audit row is not fatal.
		logger.FromContext(r.Context()).Error("Failed to persist classification log", "error", err)
	}

	utils.SendJSON(w, http.StatusOK, map[string]any{
		"logId":            logEntry.LogID,
		"question":         question,
		"isGoldRelated":    classification.IsGoldRelated,
		"confidence":       classification.Confidence,
		"reasoning":        classification.Reasoning,
		"suggestedAction":  classification.SuggestedAction,
		"aiResponse":       classification.Response,
		"decisionSource":   classification.DecisionSource,
		"processingTimeMs": classification.ProcessingTime.Milliseconds(),
	})
}

// HandleGetLogs serves a page of classification logs, newest first.
func (h *QuestionHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.ClassificationFilter{
		UserEmail: q.Get("userEmail"),
		Page:      1,
		Limit:     50,
	}
	if pageStr := q.Get("page"); pageStr != "" {
		v, err := strconv.Atoi(pageStr)
		if err != nil || v <= 0 {
			utils.SendJSONError(w, "Invalid page parameter", http.StatusBadRequest)
			return
		}
		filter.Page = v
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v <= 0 || v > 200 {
			utils.SendJSONError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		filter.Limit = v
	}
	if goldStr := q.Get("isGoldRelated"); goldStr != "" {
		v, err := strconv.ParseBool(goldStr)
		if err != nil {
			utils.SendJSONError(w, "Invalid isGoldRelated parameter", http.StatusBadRequest)
			return
		}
		filter.IsGoldRelated = &v
	}

	logs, total, err := models.ListClassificationLogs(database.DB, filter)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.ClassificationLog{}
	}

	utils.SendJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"page":  filter.Page,
		"limit": filter.Limit,
		"total": total,
	})
}
