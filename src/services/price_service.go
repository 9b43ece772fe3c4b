package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/gold"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/resilience"
	"golang.org/x/net/publicsuffix"
)

// --- API Response Structs ---

type goldAPIResponse struct {
	Price float64 `json:"price"` // USD per troy ounce
}

type metalsAPIResponse struct {
	Success bool               `json:"success"`
	Rates   map[string]float64 `json:"rates"` // rates.XAU = XAU per 1 USD
}

type metalpriceAPIResponse struct {
	Success bool               `json:"success"`
	Rates   map[string]float64 `json:"rates"`
}

// RateSink receives opportunistic exchange-rate refreshes discovered while
// talking to a price provider.
type RateSink interface {
	SetUSDToINRRate(rate float64)
}

// --- Service Implementation ---

type priceServiceImpl struct {
	httpClient http.Client
	rateSink   RateSink

	mu    sync.RWMutex
	quote Quote

	// Overridable in tests; defaults point at the real provider endpoints.
	goldAPIURL       string
	metalsAPIURL     string
	metalpriceAPIURL string
}

// NewPriceService seeds the oracle with the configured per-gram price so
// CurrentQuote is usable before the first refresh. rateSink may be nil.
func NewPriceService(rateSink RateSink) PriceOracle {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	perGram := config.Cfg.SeedPricePerGramUSD
	s := &priceServiceImpl{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
		rateSink: rateSink,
		quote: Quote{
			PricePerGramUSD:  gold.RoundMoney(perGram),
			PricePerOunceUSD: gold.RoundMoney(perGram * gold.GramsPerTroyOunce),
			AsOf:             time.Now().UTC(),
			Source:           "seed",
		},
		goldAPIURL:       "https://www.goldapi.io/api/XAU/USD",
		metalsAPIURL:     "https://metals-api.com/api/latest",
		metalpriceAPIURL: "https://api.metalpriceapi.com/v1/latest",
	}
	return s
}

func (s *priceServiceImpl) CurrentQuote() Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quote
}

// publish atomically replaces the cached quote. Readers either see the old
// quote or the new one, never a mix.
func (s *priceServiceImpl) publish(perGramUSD float64, source string) Quote {
	q := Quote{
		PricePerGramUSD:  gold.RoundMoney(perGramUSD),
		PricePerOunceUSD: gold.RoundMoney(perGramUSD * gold.GramsPerTroyOunce),
		AsOf:             time.Now().UTC(),
		Source:           source,
	}
	s.mu.Lock()
	s.quote = q
	s.mu.Unlock()
	return q
}

// simulatedPerGram perturbs the last known per-gram price within ±2%.
func (s *priceServiceImpl) simulatedPerGram() float64 {
	current := s.CurrentQuote().PricePerGramUSD
	variation := (rand.Float64() - 0.5) * 0.04
	return gold.RoundMoney(current * (1 + variation))
}

func (s *priceServiceImpl) Refresh(ctx context.Context, preferLive bool) (RefreshResult, error) {
	if !preferLive {
		q := s.publish(s.simulatedPerGram(), "simulated")
		return RefreshResult{Source: q.Source, NewPricePerGramUSD: q.PricePerGramUSD, LastUpdated: q.AsOf}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, config.Cfg.RefreshDeadline)
	defer cancel()

	chain := resilience.Chain[float64]{
		Name:           "gold-price",
		AttemptTimeout: config.Cfg.ProviderTimeout,
		Attempts:       s.providerAttempts(),
		Fallback: func() (float64, string) {
			return s.simulatedPerGram() * gold.GramsPerTroyOunce, "simulated"
		},
	}

	result, err := chain.Execute(ctx)
	if err != nil {
		// Only reachable with the fallback disabled; keep the cached quote.
		return RefreshResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	q := s.publish(result.Value/gold.GramsPerTroyOunce, result.Source)
	logger.L.Info("Gold price refreshed", "source", q.Source, "pricePerGramUsd", q.PricePerGramUSD)
	return RefreshResult{Source: q.Source, NewPricePerGramUSD: q.PricePerGramUSD, LastUpdated: q.AsOf}, nil
}

// providerAttempts builds the configured chain, in order. Each attempt
// returns USD per troy ounce.
func (s *priceServiceImpl) providerAttempts() []resilience.Attempt[float64] {
	var attempts []resilience.Attempt[float64]
	for _, name := range config.Cfg.PriceProviders {
		switch name {
		case "goldapi":
			if config.Cfg.GoldAPIKey != "" {
				attempts = append(attempts, resilience.Attempt[float64]{Name: "goldapi", Run: s.fetchGoldAPI})
			}
		case "metalsapi":
			if config.Cfg.MetalsAPIKey != "" {
				attempts = append(attempts, resilience.Attempt[float64]{Name: "metalsapi", Run: s.fetchMetalsAPI})
			}
		case "metalpriceapi":
			if config.Cfg.MetalpriceAPIKey != "" {
				attempts = append(attempts, resilience.Attempt[float64]{Name: "metalpriceapi", Run: s.fetchMetalpriceAPI})
			}
		default:
			logger.L.Warn("Unknown price provider in chain, skipping", "provider", name)
		}
	}
	return attempts
}

func (s *priceServiceImpl) fetchGoldAPI(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.goldAPIURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-access-token", config.Cfg.GoldAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call goldapi: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("goldapi returned non-OK status %d", resp.StatusCode)
	}

	var data goldAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("failed to decode goldapi response: %w", err)
	}
	if data.Price <= 0 {
		return 0, fmt.Errorf("goldapi returned non-positive price %g", data.Price)
	}
	return data.Price, nil
}

func (s *priceServiceImpl) fetchMetalsAPI(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s?access_key=%s&base=USD&symbols=XAU", s.metalsAPIURL, config.Cfg.MetalsAPIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call metals-api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("metals-api returned non-OK status %d", resp.StatusCode)
	}

	var data metalsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("failed to decode metals-api response: %w", err)
	}
	// rates.XAU is how many troy ounces one USD buys; invert for USD per ounce.
	xauPerUSD := data.Rates["XAU"]
	if xauPerUSD <= 0 {
		return 0, fmt.Errorf("metals-api returned non-positive XAU rate %g", xauPerUSD)
	}
	return 1 / xauPerUSD, nil
}

func (s *priceServiceImpl) fetchMetalpriceAPI(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s?api_key=%s&base=USD&currencies=XAU", s.metalpriceAPIURL, config.Cfg.MetalpriceAPIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call metalpriceapi: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("metalpriceapi returned non-OK status %d", resp.StatusCode)
	}

	var data metalpriceAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("failed to decode metalpriceapi response: %w", err)
	}
	xauPerUSD := data.Rates["XAU"]
	if xauPerUSD <= 0 {
		return 0, fmt.Errorf("metalpriceapi returned non-positive XAU rate %g", xauPerUSD)
	}

	// Opportunistically refresh the USD->INR rate from the same provider to
	// improve INR quoting accuracy. Failures here never fail the price fetch.
	if s.rateSink != nil {
		go s.refreshINRRate(config.Cfg.MetalpriceAPIKey)
	}

	return 1 / xauPerUSD, nil
}

func (s *priceServiceImpl) refreshINRRate(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), config.Cfg.ProviderTimeout)
	defer cancel()

	url := fmt.Sprintf("%s?api_key=%s&base=USD&currencies=INR", s.metalpriceAPIURL, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("Failed to refresh USD/INR rate", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}
	var data metalpriceAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return
	}
	if rate := data.Rates["INR"]; rate > 0 {
		s.rateSink.SetUSDToINRRate(rate)
		logger.L.Info("USD/INR rate refreshed from provider", "rate", rate)
	}
}

// PriceHistory simulates a daily walk within ±5% of the current price, oldest
// first, ending today.
func (s *priceServiceImpl) PriceHistory(days int, currency string) []HistoryPoint {
	if days <= 0 {
		days = 30
	}
	base := s.CurrentQuote().PricePerGramUSD
	converter := gold.CurrencyConverter{
		DefaultCurrency: config.Cfg.DefaultCurrency,
		USDToINRRate:    config.Cfg.USDToINRRate,
	}

	history := make([]HistoryPoint, 0, days+1)
	for i := days; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		variation := (rand.Float64() - 0.5) * 0.1
		converted := converter.FromUSD(base*(1+variation), currency)
		history = append(history, HistoryPoint{
			Date:     date.Format("2006-01-02"),
			Price:    gold.RoundMoney(converted.Value),
			Currency: converted.Currency,
		})
	}
	return history
}
