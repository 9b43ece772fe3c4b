package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/goldfolio/backend/src/config"
)

func TestQuoteUnits(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(65.50))
	ctx := context.Background()

	gram, err := engine.Quote(ctx, QuoteRequest{Unit: "gram", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 65.50, gram.Price)
	assert.Equal(t, "USD", gram.Currency)
	assert.Equal(t, "per gram", gram.Unit)

	ounce, err := engine.Quote(ctx, QuoteRequest{Unit: "oz", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 2037.28, ounce.Price)
	assert.Equal(t, "per ounce", ounce.Unit)

	tenGram, err := engine.Quote(ctx, QuoteRequest{Unit: "10g", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 655.0, tenGram.Price)
	assert.Equal(t, "per 10 grams", tenGram.Unit)

	tola, err := engine.Quote(ctx, QuoteRequest{Unit: "tola", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 763.98, tola.Price)
	assert.Equal(t, "per tola", tola.Unit)
}

func TestQuoteCurrencyConversion(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(65.50))

	inr, err := engine.Quote(context.Background(), QuoteRequest{Unit: "gram", Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, "INR", inr.Currency)
	assert.Equal(t, 5436.5, inr.Price)

	// Unknown currencies fall back to USD rather than failing.
	unknown, err := engine.Quote(context.Background(), QuoteRequest{Unit: "gram", Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "USD", unknown.Currency)
	assert.Equal(t, 65.50, unknown.Price)
}

func TestQuoteUnknownUnit(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(65.50))

	_, err := engine.Quote(context.Background(), QuoteRequest{Unit: "kilogram", Currency: "USD"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestQuoteMarkupResolution(t *testing.T) {
	originalMarkup := config.Cfg.DefaultMarkupPercent
	config.Cfg.DefaultMarkupPercent = 3
	defer func() { config.Cfg.DefaultMarkupPercent = originalMarkup }()

	engine := NewPricingEngine(newStubOracle(65.50))
	ctx := context.Background()

	spot, err := engine.Quote(ctx, QuoteRequest{Unit: "gram", Currency: "USD", Basis: "spot"})
	require.NoError(t, err)
	assert.Equal(t, 65.50, spot.Price)
	assert.Equal(t, 0.0, spot.MarkupAppliedPercent)

	retail, err := engine.Quote(ctx, QuoteRequest{Unit: "gram", Currency: "USD", Basis: "retail"})
	require.NoError(t, err)
	assert.Equal(t, 67.47, retail.Price)
	assert.Equal(t, 3.0, retail.MarkupAppliedPercent)

	// An explicit markup always wins, whatever the basis.
	explicit := 10.0
	spotMarked, err := engine.Quote(ctx, QuoteRequest{Unit: "gram", Currency: "USD", Basis: "spot", MarkupPercent: &explicit})
	require.NoError(t, err)
	assert.Equal(t, 72.05, spotMarked.Price)
	assert.Equal(t, 10.0, spotMarked.MarkupAppliedPercent)
}

func TestValidateAmount(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(65.50))

	assert.NoError(t, engine.ValidateAmount(0.001))
	assert.NoError(t, engine.ValidateAmount(10))
	assert.NoError(t, engine.ValidateAmount(1000))

	for _, grams := range []float64{0, -1, 0.0005, 1000.001} {
		err := engine.ValidateAmount(grams)
		require.Error(t, err, "grams %g", grams)
		assert.True(t, errors.Is(err, ErrValidation), "grams %g", grams)
	}
}

func TestCostOf(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(65.50))

	cost, err := engine.CostOf(10, "USD")
	require.NoError(t, err)
	assert.Equal(t, 10.0, cost.GoldAmount)
	assert.Equal(t, 65.50, cost.GoldPricePerGram)
	assert.Equal(t, 655.0, cost.TotalCost)
	assert.Equal(t, "USD", cost.Currency)

	_, err = engine.CostOf(0, "USD")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestMassFor(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(65.50))

	mass, err := engine.MassFor(655, "USD")
	require.NoError(t, err)
	assert.Equal(t, 10.0, mass.GoldAmount)
	assert.Equal(t, 65.50, mass.GoldPricePerGram)
	assert.Equal(t, "USD", mass.Currency)

	_, err = engine.MassFor(0, "USD")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestMassForDefaultCurrency(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(65.50))

	// Blank currency means the configured default on both sides of the
	// conversion, so the per-gram price and the amount stay consistent.
	mass, err := engine.MassFor(5436.5, "")
	require.NoError(t, err)
	assert.Equal(t, "INR", mass.Currency)
	assert.Equal(t, 5436.5, mass.GoldPricePerGram)
	assert.InDelta(t, 1.0, mass.GoldAmount, 0.001)
}

func TestCostOfMassForRoundTrip(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(65.50))

	cost, err := engine.CostOf(2.5, "USD")
	require.NoError(t, err)

	mass, err := engine.MassFor(cost.TotalCost, "USD")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mass.GoldAmount, 0.001)
}

func TestSetUSDToINRRate(t *testing.T) {
	engine := NewPricingEngine(newStubOracle(100))
	engine.SetUSDToINRRate(80)

	cost, err := engine.CostOf(1, "INR")
	require.NoError(t, err)
	assert.Equal(t, 8000.0, cost.TotalCost)

	// Non-positive pushes are ignored.
	engine.SetUSDToINRRate(0)
	cost, err = engine.CostOf(1, "INR")
	require.NoError(t, err)
	assert.Equal(t, 8000.0, cost.TotalCost)
}
