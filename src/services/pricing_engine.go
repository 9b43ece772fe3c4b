package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/gold"
	"github.com/username/goldfolio/backend/src/logger"
)

// Computed price views are cached briefly; a refreshed or newly published
// quote becomes visible after at most this TTL.
const (
	viewCacheTTL     = 30 * time.Second
	viewCacheCleanup = 5 * time.Minute
)

type pricingEngineImpl struct {
	oracle PriceOracle

	rateMu    sync.RWMutex
	converter gold.CurrencyConverter

	defaultMarkupPercent float64
	minGrams             float64
	maxGrams             float64

	viewCache *cache.Cache
}

// NewPricingEngine wires the oracle to unit/currency conversion and the
// markup policy from config.
func NewPricingEngine(oracle PriceOracle) *pricingEngineImpl {
	return &pricingEngineImpl{
		oracle: oracle,
		converter: gold.CurrencyConverter{
			DefaultCurrency: config.Cfg.DefaultCurrency,
			USDToINRRate:    config.Cfg.USDToINRRate,
		},
		defaultMarkupPercent: config.Cfg.DefaultMarkupPercent,
		minGrams:             config.Cfg.MinPurchaseGrams,
		maxGrams:             config.Cfg.MaxPurchaseGrams,
		viewCache:            cache.New(viewCacheTTL, viewCacheCleanup),
	}
}

// NewPricingStack builds the price oracle and the pricing engine together,
// registering the engine as the oracle's exchange-rate sink.
func NewPricingStack() (PriceOracle, PricingEngine) {
	engine := NewPricingEngine(nil)
	oracle := NewPriceService(engine)
	engine.oracle = oracle
	return oracle, engine
}

// SetUSDToINRRate lets the oracle push a fresher exchange rate.
func (e *pricingEngineImpl) SetUSDToINRRate(rate float64) {
	if rate <= 0 {
		return
	}
	e.rateMu.Lock()
	e.converter.USDToINRRate = rate
	e.rateMu.Unlock()
}

func (e *pricingEngineImpl) currencyConverter() gold.CurrencyConverter {
	e.rateMu.RLock()
	defer e.rateMu.RUnlock()
	return e.converter
}

// resolveMarkup picks the markup for a request: an explicit value always
// wins, otherwise retail basis gets the configured default and spot gets 0.
func (e *pricingEngineImpl) resolveMarkup(basis string, explicit *float64) float64 {
	if explicit != nil {
		return *explicit
	}
	if strings.ToLower(basis) == "retail" {
		return e.defaultMarkupPercent
	}
	return 0
}

func (e *pricingEngineImpl) Quote(ctx context.Context, req QuoteRequest) (PriceView, error) {
	unit, err := gold.ParseUnit(req.Unit)
	if err != nil {
		return PriceView{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	markup := e.resolveMarkup(req.Basis, req.MarkupPercent)

	if req.Refresh {
		if _, err := e.oracle.Refresh(ctx, true); err != nil {
			// Refresh failure is non-fatal; quote from the cached value.
			logger.L.Warn("Price refresh failed, quoting from cached value", "error", err)
		}
	}

	cacheKey := fmt.Sprintf("%s|%s|%.4f", unit, strings.ToUpper(req.Currency), markup)
	if !req.Refresh {
		if cached, found := e.viewCache.Get(cacheKey); found {
			return cached.(PriceView), nil
		}
	}

	quote := e.oracle.CurrentQuote()
	perGram := e.currencyConverter().FromUSD(quote.PricePerGramUSD, req.Currency)
	price := gold.ApplyMarkup(gold.RoundMoney(gold.PricePerUnit(perGram.Value, unit)), markup)

	view := PriceView{
		Price:                price,
		Currency:             perGram.Currency,
		Unit:                 unit.Label(),
		LastUpdated:          quote.AsOf,
		MarkupAppliedPercent: markup,
	}
	e.viewCache.Set(cacheKey, view, cache.DefaultExpiration)
	return view, nil
}

// ValidateAmount enforces the configured [min, max] purchase band in grams.
func (e *pricingEngineImpl) ValidateAmount(massGrams float64) error {
	if massGrams <= 0 {
		return fmt.Errorf("%w: gold amount must be greater than 0", ErrValidation)
	}
	if massGrams < e.minGrams {
		return fmt.Errorf("%w: minimum gold amount is %g grams", ErrValidation, e.minGrams)
	}
	if massGrams > e.maxGrams {
		return fmt.Errorf("%w: maximum gold amount is %g grams", ErrValidation, e.maxGrams)
	}
	return nil
}

func (e *pricingEngineImpl) CostOf(massGrams float64, currency string) (CostBreakdown, error) {
	if err := e.ValidateAmount(massGrams); err != nil {
		return CostBreakdown{}, err
	}

	quote := e.oracle.CurrentQuote()
	converter := e.currencyConverter()
	perGram := converter.FromUSD(quote.PricePerGramUSD, currency)
	total := converter.FromUSD(massGrams*quote.PricePerGramUSD, currency)

	return CostBreakdown{
		GoldAmount:       massGrams,
		GoldPricePerGram: gold.RoundMoney(perGram.Value),
		TotalCost:        gold.RoundMoney(total.Value),
		Currency:         total.Currency,
		CalculationDate:  time.Now().UTC(),
	}, nil
}

func (e *pricingEngineImpl) MassFor(moneyAmount float64, currency string) (MassBreakdown, error) {
	if moneyAmount <= 0 {
		return MassBreakdown{}, fmt.Errorf("%w: money amount must be greater than 0", ErrValidation)
	}

	quote := e.oracle.CurrentQuote()
	converter := e.currencyConverter()
	if strings.TrimSpace(currency) == "" {
		currency = converter.DefaultCurrency
	}
	moneyUSD := converter.ToUSD(moneyAmount, currency)
	perGram := converter.FromUSD(quote.PricePerGramUSD, currency)

	return MassBreakdown{
		MoneyAmount:      moneyAmount,
		GoldAmount:       gold.RoundMass(moneyUSD / quote.PricePerGramUSD),
		GoldPricePerGram: gold.RoundMoney(perGram.Value),
		Currency:         perGram.Currency,
		CalculationDate:  time.Now().UTC(),
	}, nil
}
