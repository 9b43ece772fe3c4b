package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/services"
	"github.com/username/goldfolio/backend/src/utils"
)

type PriceHandler struct {
	oracle  services.PriceOracle
	pricing services.PricingEngine
}

func NewPriceHandler(oracle services.PriceOracle, pricing services.PricingEngine) *PriceHandler {
	return &PriceHandler{oracle: oracle, pricing: pricing}
}

// HandleGetPrice serves the current gold price for a unit/currency/basis,
// optionally refreshing the quote from the live providers first.
func (h *PriceHandler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	currency := strings.ToUpper(q.Get("currency"))
	if currency == "" {
		currency = config.Cfg.DefaultCurrency
	}
	basis := strings.ToLower(q.Get("basis"))
	if basis == "" {
		basis = "spot"
	}

	var markupPercent *float64
	markupStr := q.Get("markupPercent")
	if markupStr == "" {
		markupStr = q.Get("markup")
	}
	if markupStr != "" {
		v, err := strconv.ParseFloat(markupStr, 64)
		if err != nil {
			utils.SendJSONError(w, "Invalid markupPercent", http.StatusBadRequest)
			return
		}
		markupPercent = &v
	}

	req := services.QuoteRequest{
		Unit:          q.Get("unit"),
		Currency:      currency,
		Basis:         basis,
		MarkupPercent: markupPercent,
		Refresh:       q.Get("refresh") == "true",
	}

	primary, err := h.pricing.Quote(r.Context(), req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	perGram, err := h.pricing.Quote(r.Context(), services.QuoteRequest{
		Unit: "gram", Currency: currency, Basis: basis, MarkupPercent: markupPercent})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	perOunce, err := h.pricing.Quote(r.Context(), services.QuoteRequest{
		Unit: "ounce", Currency: currency, Basis: basis, MarkupPercent: markupPercent})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	utils.SendJSON(w, http.StatusOK, map[string]any{
		"primary":  primary,
		"perGram":  perGram,
		"perOunce": perOunce,
		"facts":    services.InvestmentFacts(),
	})
}

// CalculateRequest carries exactly one of goldAmount / moneyAmount.
type CalculateRequest struct {
	GoldAmount  float64 `json:"goldAmount"`
	MoneyAmount float64 `json:"moneyAmount"`
	Currency    string  `json:"currency"`
}

// HandleCalculate converts between a gold mass and its cost. A request
// naming both or neither amount is ambiguous and rejected.
func (h *PriceHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	hasGold := req.GoldAmount != 0
	hasMoney := req.MoneyAmount != 0
	if hasGold == hasMoney {
		utils.SendJSONError(w, "Provide exactly one of goldAmount or moneyAmount", http.StatusBadRequest)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = config.Cfg.DefaultCurrency
	}

	if hasGold {
		breakdown, err := h.pricing.CostOf(req.GoldAmount, currency)
		if err != nil {
			sendServiceError(w, r, err)
			return
		}
		utils.SendJSON(w, http.StatusOK, breakdown)
		return
	}

	breakdown, err := h.pricing.MassFor(req.MoneyAmount, currency)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, breakdown)
}

// HandleGetHistory serves the simulated daily price history.
func (h *PriceHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		v, err := strconv.Atoi(daysStr)
		if err != nil || v <= 0 || v > 365 {
			utils.SendJSONError(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		days = v
	}
	currency := r.URL.Query().Get("currency")

	history := h.oracle.PriceHistory(days, currency)
	utils.SendJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"days":    days,
	})
}

// HandleGetFacts serves the static gold investment facts.
func (h *PriceHandler) HandleGetFacts(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, services.InvestmentFacts())
}

// HandleRefreshPrice forces a live refresh and reports the outcome.
func (h *PriceHandler) HandleRefreshPrice(w http.ResponseWriter, r *http.Request) {
	result, err := h.oracle.Refresh(r.Context(), true)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Manual price refresh", "source", result.Source, "pricePerGramUsd", result.NewPricePerGramUSD)
	utils.SendJSON(w, http.StatusOK, result)
}
