package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/database"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/models"
	"github.com/username/goldfolio/backend/src/services"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	config.LoadConfig()
	logger.InitLogger("error")
	os.Exit(m.Run())
}

type stubOracle struct {
	quote services.Quote
}

func (s stubOracle) CurrentQuote() services.Quote { return s.quote }

func (s stubOracle) Refresh(ctx context.Context, preferLive bool) (services.RefreshResult, error) {
	return services.RefreshResult{
		Source:             s.quote.Source,
		NewPricePerGramUSD: s.quote.PricePerGramUSD,
		LastUpdated:        s.quote.AsOf,
	}, nil
}

func (s stubOracle) PriceHistory(days int, currency string) []services.HistoryPoint {
	return []services.HistoryPoint{{Date: "2026-01-01", Price: s.quote.PricePerGramUSD, Currency: "USD"}}
}

func newTestPriceHandler() *PriceHandler {
	oracle := stubOracle{quote: services.Quote{
		PricePerGramUSD:  65.50,
		PricePerOunceUSD: 2037.28,
		AsOf:             time.Now().UTC(),
		Source:           "stub",
	}}
	return NewPriceHandler(oracle, services.NewPricingEngine(oracle))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	handler(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHandleGetPrice(t *testing.T) {
	h := newTestPriceHandler()

	rec, env := doJSON(t, h.HandleGetPrice, http.MethodGet, "/api/gold/price?unit=gram&currency=USD", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var data struct {
		Primary services.PriceView `json:"primary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 65.50, data.Primary.Price)
	assert.Equal(t, "USD", data.Primary.Currency)
	assert.Equal(t, "per gram", data.Primary.Unit)
}

func TestHandleGetPriceUnknownUnit(t *testing.T) {
	h := newTestPriceHandler()

	rec, env := doJSON(t, h.HandleGetPrice, http.MethodGet, "/api/gold/price?unit=kilogram", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestHandleCalculateGoldAmount(t *testing.T) {
	h := newTestPriceHandler()

	rec, env := doJSON(t, h.HandleCalculate, http.MethodPost, "/api/gold/calculate",
		map[string]any{"goldAmount": 10, "currency": "USD"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var data services.CostBreakdown
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 655.0, data.TotalCost)
	assert.Equal(t, 65.50, data.GoldPricePerGram)
}

func TestHandleCalculateMoneyAmount(t *testing.T) {
	h := newTestPriceHandler()

	rec, env := doJSON(t, h.HandleCalculate, http.MethodPost, "/api/gold/calculate",
		map[string]any{"moneyAmount": 655, "currency": "USD"})
	require.Equal(t, http.StatusOK, rec.Code)

	var data services.MassBreakdown
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 10.0, data.GoldAmount)
}

func TestHandleCalculateRejectsAmbiguousInput(t *testing.T) {
	h := newTestPriceHandler()

	// Both amounts present.
	rec, env := doJSON(t, h.HandleCalculate, http.MethodPost, "/api/gold/calculate",
		map[string]any{"goldAmount": 10, "moneyAmount": 655})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	// Neither amount present.
	rec, env = doJSON(t, h.HandleCalculate, http.MethodPost, "/api/gold/calculate",
		map[string]any{"currency": "USD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestHandleCalculateValidationError(t *testing.T) {
	h := newTestPriceHandler()

	rec, env := doJSON(t, h.HandleCalculate, http.MethodPost, "/api/gold/calculate",
		map[string]any{"goldAmount": 1001, "currency": "USD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestModelsHandlerSwitch(t *testing.T) {
	h := NewModelsHandler(services.NewModelRegistry("anthropic/claude-3.5-sonnet"))

	rec, env := doJSON(t, h.HandleSwitch, http.MethodPost, "/api/ai-models/switch",
		map[string]any{"modelKey": "gpt4o"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = doJSON(t, h.HandleSwitch, http.MethodPost, "/api/ai-models/switch",
		map[string]any{"modelKey": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestModelsHandlerPricing(t *testing.T) {
	h := NewModelsHandler(services.NewModelRegistry("anthropic/claude-3.5-sonnet"))

	rec, env := doJSON(t, h.HandleGetPricing, http.MethodGet, "/api/ai-models/pricing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var data struct {
		Pricing map[string]services.ModelPricing `json:"pricing"`
		Note    string                           `json:"note"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data.Pricing, "anthropic/claude-3.5-sonnet")
	assert.NotEmpty(t, data.Note)
}

func TestModelsHandlerGetModel(t *testing.T) {
	h := NewModelsHandler(services.NewModelRegistry("anthropic/claude-3.5-sonnet"))
	router := chi.NewRouter()
	router.Get("/api/ai-models/model/{modelId}", h.HandleGetModel)

	req := httptest.NewRequest(http.MethodGet, "/api/ai-models/model/gpt4o", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var info services.ModelInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "openai/gpt-4o", info.ModelID)

	req = httptest.NewRequest(http.MethodGet, "/api/ai-models/model/no-such-model", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func setupQuestionDB(t *testing.T) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
		CREATE TABLE classification_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			log_id TEXT NOT NULL UNIQUE,
			user_email TEXT,
			question TEXT NOT NULL,
			is_gold_related INTEGER NOT NULL,
			confidence REAL NOT NULL,
			reasoning TEXT,
			ai_response TEXT NOT NULL,
			suggested_action TEXT NOT NULL,
			decision_source TEXT NOT NULL,
			processing_time_ms INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`)
	require.NoError(t, err)

	orig := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = orig
		db.Close()
	})
}

func newTestQuestionHandler() *QuestionHandler {
	registry := services.NewModelRegistry(config.Cfg.DefaultModel)
	return NewQuestionHandler(services.NewClassifierService(registry))
}

func TestHandleAnalyzeQuestion(t *testing.T) {
	setupQuestionDB(t)
	h := newTestQuestionHandler()

	rec, env := doJSON(t, h.HandleAnalyzeQuestion, http.MethodPost, "/api/gold/question/analyze",
		map[string]any{"question": "Should I buy digital gold?", "userEmail": "buyer@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var data struct {
		LogID         string `json:"logId"`
		IsGoldRelated bool   `json:"isGoldRelated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.IsGoldRelated)
	assert.Contains(t, data.LogID, "LOG_")

	// The decision is persisted.
	logs, total, err := models.ListClassificationLogs(database.DB, models.ClassificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, data.LogID, logs[0].LogID)
	assert.Equal(t, "buyer@example.com", logs[0].UserEmail.String)
}

func TestHandleAnalyzeQuestionStripsMarkup(t *testing.T) {
	setupQuestionDB(t)
	h := newTestQuestionHandler()

	rec, env := doJSON(t, h.HandleAnalyzeQuestion, http.MethodPost, "/api/gold/question/analyze",
		map[string]any{"question": "<script>alert(1)</script>gold price?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Question string `json:"question"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "gold price?", data.Question)
}

func TestHandleAnalyzeQuestionEmpty(t *testing.T) {
	setupQuestionDB(t)
	h := newTestQuestionHandler()

	rec, env := doJSON(t, h.HandleAnalyzeQuestion, http.MethodPost, "/api/gold/question/analyze",
		map[string]any{"question": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	// A question that is nothing but markup sanitizes to empty.
	rec, env = doJSON(t, h.HandleAnalyzeQuestion, http.MethodPost, "/api/gold/question/analyze",
		map[string]any{"question": "<b></b>"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}
