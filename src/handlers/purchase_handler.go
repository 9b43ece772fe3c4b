package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/goldfolio/backend/src/models"
	"github.com/username/goldfolio/backend/src/services"
	"github.com/username/goldfolio/backend/src/utils"
)

type PurchaseHandler struct {
	purchases services.PurchaseService
}

func NewPurchaseHandler(purchases services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

type initiatePurchaseRequest struct {
	UserEmail     string  `json:"userEmail"`
	GoldAmount    float64 `json:"goldAmount"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"paymentMethod"`
	Notes         string  `json:"notes"`
}

type processPaymentRequest struct {
	TransactionID  string                  `json:"transactionId"`
	PaymentDetails services.PaymentDetails `json:"paymentDetails"`
}

type transactionIDRequest struct {
	TransactionID string `json:"transactionId"`
}

// transactionView flattens a transaction plus its optional certificate into
// the response shape.
func transactionView(t *models.GoldTransaction) map[string]any {
	view := map[string]any{
		"transactionId":     t.TransactionID,
		"transactionType":   t.TransactionType,
		"goldAmount":        t.GoldAmount,
		"goldPrice":         t.GoldPrice,
		"totalAmount":       t.TotalAmount,
		"currency":          t.Currency,
		"paymentMethod":     t.PaymentMethod,
		"paymentStatus":     t.PaymentStatus,
		"transactionStatus": t.TransactionStatus,
		"createdAt":         t.CreatedAt,
		"updatedAt":         t.UpdatedAt,
	}
	if t.UserEmail.Valid {
		view["userEmail"] = t.UserEmail.String
	}
	if t.Notes.Valid {
		view["notes"] = t.Notes.String
	}
	if cert := t.Certificate(); cert != nil {
		view["certificate"] = cert
	}
	return view
}

// HandleInitiate creates a new purchase in INITIATED state with the price
// locked at the current quote.
func (h *PurchaseHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	transaction, err := h.purchases.Initiate(r.Context(), services.PurchaseRequest{
		UserEmail:     req.UserEmail,
		GoldAmount:    req.GoldAmount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, transactionView(transaction))
}

// HandleProcessPayment runs payment for an initiated purchase. Retrying a
// transaction whose payment already completed reports a conflict with the
// original certificate intact.
func (h *PurchaseHandler) HandleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TransactionID == "" {
		utils.SendJSONError(w, "transactionId is required", http.StatusBadRequest)
		return
	}

	transaction, err := h.purchases.ProcessPayment(r.Context(), req.TransactionID, req.PaymentDetails)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, transactionView(transaction))
}

// HandleComplete finalizes a paid purchase and credits the buyer's holdings.
func (h *PurchaseHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req transactionIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TransactionID == "" {
		utils.SendJSONError(w, "transactionId is required", http.StatusBadRequest)
		return
	}

	transaction, err := h.purchases.Complete(r.Context(), req.TransactionID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, transactionView(transaction))
}

// HandleCancel cancels a purchase that has not entered payment yet.
func (h *PurchaseHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req transactionIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TransactionID == "" {
		utils.SendJSONError(w, "transactionId is required", http.StatusBadRequest)
		return
	}

	transaction, err := h.purchases.Cancel(r.Context(), req.TransactionID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, transactionView(transaction))
}

// HandlePurchase runs the whole initiate/pay/complete flow in one call.
func (h *PurchaseHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	var req initiatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	transaction, err := h.purchases.Purchase(r.Context(), services.PurchaseRequest{
		UserEmail:     req.UserEmail,
		GoldAmount:    req.GoldAmount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, transactionView(transaction))
}

// HandleGetTransaction serves one transaction by its public id.
func (h *PurchaseHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")
	if transactionID == "" {
		utils.SendJSONError(w, "transactionId is required", http.StatusBadRequest)
		return
	}

	transaction, err := h.purchases.GetByID(transactionID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, transactionView(transaction))
}

// HandleListTransactions serves a page of transactions, newest first.
func (h *PurchaseHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.TransactionFilter{
		UserEmail: q.Get("userEmail"),
		Page:      1,
		Limit:     20,
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
		if err != nil || v <= 0 || v > 100 {
			utils.SendJSONError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		filter.Limit = v
	}

	transactions, total, err := h.purchases.List(filter)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	views := make([]map[string]any, 0, len(transactions))
	for i := range transactions {
		views = append(views, transactionView(&transactions[i]))
	}

	utils.SendJSON(w, http.StatusOK, map[string]any{
		"transactions": views,
		"page":         filter.Page,
		"limit":        filter.Limit,
		"total":        total,
	})
}
