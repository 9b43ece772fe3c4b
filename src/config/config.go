package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Pricing settings
	DefaultCurrency      string
	USDToINRRate         float64
	SeedPricePerGramUSD  float64
	DefaultMarkupPercent float64

	// Purchase limits (grams)
	MinPurchaseGrams float64
	MaxPurchaseGrams float64

	// Certificate settings
	CertificateValidity time.Duration

	// Live price provider settings
	PriceProviders   []string // ordered chain: goldapi | metalsapi | metalpriceapi
	GoldAPIKey       string
	MetalsAPIKey     string
	MetalpriceAPIKey string
	ProviderTimeout  time.Duration
	RefreshDeadline  time.Duration

	// Payment simulator settings
	PaymentDelay       time.Duration
	PaymentSuccessRate float64

	// AI / classification settings
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	DefaultModel      string
	ClassifierTimeout time.Duration
	SiteURL           string
	SiteTitle         string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// Try the current directory first, then the parent (common when running from /backend).
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./goldfolio.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Pricing
		DefaultCurrency:      strings.ToUpper(getEnv("DEFAULT_CURRENCY", "INR")),
		USDToINRRate:         getEnvAsFloat("EXCHANGE_RATE_USD_INR", 83.0),
		SeedPricePerGramUSD:  getEnvAsFloat("GOLD_PRICE_PER_GRAM_USD", 65.50),
		DefaultMarkupPercent: getEnvAsFloat("PRICE_MARKUP_PERCENT", 0),

		// Purchase limits
		MinPurchaseGrams: getEnvAsFloat("MIN_PURCHASE_GRAMS", 0.001),
		MaxPurchaseGrams: getEnvAsFloat("MAX_PURCHASE_GRAMS", 1000),

		// Certificates
		CertificateValidity: getEnvAsDuration("CERTIFICATE_VALIDITY", 365*24*time.Hour),

		// Price providers
		PriceProviders:   getProviderChain("GOLD_PRICE_PROVIDER"),
		GoldAPIKey:       getEnv("GOLDAPI_KEY", ""),
		MetalsAPIKey:     getEnv("METALS_API_KEY", ""),
		MetalpriceAPIKey: getEnv("METALPRICE_API_KEY", ""),
		ProviderTimeout:  getEnvAsDuration("PRICE_PROVIDER_TIMEOUT", 5*time.Second),
		RefreshDeadline:  getEnvAsDuration("PRICE_REFRESH_DEADLINE", 15*time.Second),

		// Payment simulator
		PaymentDelay:       getEnvAsDuration("PAYMENT_PROCESSING_DELAY", 1*time.Second),
		PaymentSuccessRate: getEnvAsFloat("PAYMENT_SUCCESS_RATE", 0.95),

		// AI / classification
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		DefaultModel:      getEnv("DEFAULT_AI_MODEL", "anthropic/claude-3.5-sonnet"),
		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		SiteURL:           getEnv("SITE_URL", "https://gold-investment-api.com"),
		SiteTitle:         getEnv("SITE_TITLE", "Gold Investment API"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, DefaultCurrency=%s, Providers=%v",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.DefaultCurrency, Cfg.PriceProviders)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getProviderChain retrieves and parses the comma-separated, ordered list of price providers.
func getProviderChain(key string) []string {
	chainStr := strings.ToLower(getEnv(key, ""))
	if chainStr == "" {
		return []string{}
	}
	providers := strings.Split(chainStr, ",")
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
