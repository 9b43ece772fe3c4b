package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/goldfolio/backend/src/models"
)

// Common service errors. Handlers map these onto HTTP status codes; anything
// not in this taxonomy surfaces as a generic internal failure.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflicting state transition")
	ErrUpstreamUnavailable = errors.New("upstream providers unavailable")
	ErrPaymentDeclined     = errors.New("payment declined")
)

// Quote is an immutable snapshot of the spot price. A refresh publishes a new
// Quote wholesale; nothing ever mutates one in place.
type Quote struct {
	PricePerGramUSD  float64   `json:"pricePerGramUsd"`
	PricePerOunceUSD float64   `json:"pricePerOunceUsd"`
	AsOf             time.Time `json:"asOf"`
	Source           string    `json:"source"`
}

// RefreshResult reports the outcome of a price refresh.
type RefreshResult struct {
	Source             string    `json:"source"`
	NewPricePerGramUSD float64   `json:"newPricePerGramUsd"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

// HistoryPoint is one day of (simulated) price history.
type HistoryPoint struct {
	Date     string  `json:"date"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// PriceOracle owns the current best-known spot price.
type PriceOracle interface {
	// CurrentQuote never fails; before any refresh it returns the seeded value.
	CurrentQuote() Quote
	// Refresh resolves a fresh price through the provider chain. With
	// preferLive it always produces a usable price, simulating one when every
	// provider is down; without it, exhaustion returns ErrUpstreamUnavailable.
	Refresh(ctx context.Context, preferLive bool) (RefreshResult, error)
	// PriceHistory returns a simulated daily walk around the current price.
	PriceHistory(days int, currency string) []HistoryPoint
}

// PriceView is a converted, marked-up price for one unit.
type PriceView struct {
	Price                float64   `json:"price"`
	Currency             string    `json:"currency"`
	Unit                 string    `json:"unit"`
	LastUpdated          time.Time `json:"lastUpdated"`
	MarkupAppliedPercent float64   `json:"markupAppliedPercent,omitempty"`
}

// CostBreakdown answers "what does this much gold cost".
type CostBreakdown struct {
	GoldAmount       float64   `json:"goldAmount"`
	GoldPricePerGram float64   `json:"goldPricePerGram"`
	TotalCost        float64   `json:"totalCost"`
	Currency         string    `json:"currency"`
	CalculationDate  time.Time `json:"calculationDate"`
}

// MassBreakdown answers "how much gold does this money buy".
type MassBreakdown struct {
	MoneyAmount      float64   `json:"moneyAmount"`
	GoldAmount       float64   `json:"goldAmount"`
	GoldPricePerGram float64   `json:"goldPricePerGram"`
	Currency         string    `json:"currency"`
	CalculationDate  time.Time `json:"calculationDate"`
}

// PricingEngine composes the oracle with unit/currency conversion and markup.
type PricingEngine interface {
	Quote(ctx context.Context, req QuoteRequest) (PriceView, error)
	CostOf(massGrams float64, currency string) (CostBreakdown, error)
	MassFor(moneyAmount float64, currency string) (MassBreakdown, error)
	ValidateAmount(massGrams float64) error
}

// QuoteRequest carries caller input for a price view. MarkupPercent nil means
// "use the default for the basis": retail gets the configured markup, spot
// gets none.
type QuoteRequest struct {
	Unit          string
	Currency      string
	Basis         string // "spot" or "retail"
	MarkupPercent *float64
	Refresh       bool
}

// PaymentDetails is the opaque payload forwarded to the payment collaborator.
type PaymentDetails struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// PaymentProcessor is the external payment collaborator: possibly slow,
// possibly failing, treated as a black box.
type PaymentProcessor interface {
	Process(ctx context.Context, t *models.GoldTransaction, details PaymentDetails) (bool, error)
}

// PurchaseRequest carries caller input for initiating a purchase.
type PurchaseRequest struct {
	UserEmail     string
	GoldAmount    float64
	Currency      string
	PaymentMethod string
	Notes         string
}

// PurchaseService drives the purchase state machine.
type PurchaseService interface {
	Initiate(ctx context.Context, req PurchaseRequest) (*models.GoldTransaction, error)
	ProcessPayment(ctx context.Context, transactionID string, details PaymentDetails) (*models.GoldTransaction, error)
	Complete(ctx context.Context, transactionID string) (*models.GoldTransaction, error)
	Cancel(ctx context.Context, transactionID string) (*models.GoldTransaction, error)
	// Purchase runs the whole flow in one call with the same invariants as
	// the three-step path.
	Purchase(ctx context.Context, req PurchaseRequest) (*models.GoldTransaction, error)
	GetByID(transactionID string) (*models.GoldTransaction, error)
	List(filter models.TransactionFilter) ([]models.GoldTransaction, int, error)
}

// Classification is the decision for one question.
type Classification struct {
	IsGoldRelated   bool          `json:"isGoldRelated"`
	Confidence      float64       `json:"confidence"`
	Reasoning       string        `json:"reasoning"`
	SuggestedAction string        `json:"suggestedAction"`
	Response        string        `json:"aiResponse"`
	DecisionSource  string        `json:"decisionSource"`
	ProcessingTime  time.Duration `json:"-"`
}

// ClassifierService decides whether free-form text is gold-investment
// related, preferring the remote model and degrading to the keyword
// heuristic. Classify is total: it always returns a decision.
type ClassifierService interface {
	Classify(ctx context.Context, question string) Classification
}
