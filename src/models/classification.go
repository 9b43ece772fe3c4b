package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Suggested actions recorded with a classification.
const (
	ActionPurchaseGold  = "PURCHASE_GOLD"
	ActionRedirectOther = "REDIRECT_TO_OTHER_API"
	ActionGeneralInfo   = "GENERAL_INFO"
)

// Decision sources for a classification.
const (
	DecisionSourceModel     = "model"
	DecisionSourceHeuristic = "heuristic"
)

// ClassificationLog is an append-only record of one classify call. Rows are
// written once and never updated.
type ClassificationLog struct {
	ID               int64          `json:"-"`
	LogID            string         `json:"logId"`
	UserEmail        sql.NullString `json:"userEmail"`
	Question         string         `json:"question"`
	IsGoldRelated    bool           `json:"isGoldRelated"`
	Confidence       float64        `json:"confidence"`
	Reasoning        sql.NullString `json:"reasoning"`
	AIResponse       string         `json:"aiResponse"`
	SuggestedAction  string         `json:"suggestedAction"`
	DecisionSource   string         `json:"decisionSource"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// InsertClassificationLog appends one classification record.
func InsertClassificationLog(db *sql.DB, l *ClassificationLog) error {
	l.CreatedAt = time.Now().UTC()
	res, err := db.Exec(`
		INSERT INTO classification_logs (
			log_id, user_email, question, is_gold_related, confidence,
			reasoning, ai_response, suggested_action, decision_source,
			processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.LogID, l.UserEmail, l.Question, l.IsGoldRelated, l.Confidence,
		l.Reasoning, l.AIResponse, l.SuggestedAction, l.DecisionSource,
		l.ProcessingTimeMs, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert classification log: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// ClassificationFilter narrows ListClassificationLogs.
type ClassificationFilter struct {
	UserEmail     string
	IsGoldRelated *bool
	Page          int
	Limit         int
}

// ListClassificationLogs returns a page of logs newest-first plus the total
// count matching the filter.
func ListClassificationLogs(db *sql.DB, filter ClassificationFilter) ([]ClassificationLog, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	conditions := []string{}
	args := []any{}
	if strings.TrimSpace(filter.UserEmail) != "" {
		conditions = append(conditions, "user_email = ?")
		args = append(args, filter.UserEmail)
	}
	if filter.IsGoldRelated != nil {
		conditions = append(conditions, "is_gold_related = ?")
		args = append(args, *filter.IsGoldRelated)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM classification_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count classification logs: %w", err)
	}

	rows, err := db.Query(`
		SELECT id, log_id, user_email, question, is_gold_related, confidence,
		       reasoning, ai_response, suggested_action, decision_source,
		       processing_time_ms, created_at
		FROM classification_logs`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query classification logs: %w", err)
	}
	defer rows.Close()

	var logs []ClassificationLog
	for rows.Next() {
		var l ClassificationLog
		if err := rows.Scan(
			&l.ID, &l.LogID, &l.UserEmail, &l.Question, &l.IsGoldRelated, &l.Confidence,
			&l.Reasoning, &l.AIResponse, &l.SuggestedAction, &l.DecisionSource,
			&l.ProcessingTimeMs, &l.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan classification log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
