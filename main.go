package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/database"
	"github.com/username/goldfolio/backend/src/handlers"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
			"http://localhost:5173": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Goldfolio backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	registry := services.NewModelRegistry(config.Cfg.DefaultModel)
	oracle, pricingEngine := services.NewPricingStack()
	paymentProcessor := services.NewSimulatedPaymentProcessor()
	purchaseService := services.NewPurchaseService(database.DB, pricingEngine, paymentProcessor)
	classifierService := services.NewClassifierService(registry)

	// Warm the oracle in the background so the first request already sees a
	// live price when any provider is reachable.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.Cfg.RefreshDeadline)
		defer cancel()
		if _, err := oracle.Refresh(ctx, true); err != nil {
			logger.L.Warn("Initial price refresh failed, serving seeded price", "error", err)
		}
	}()

	priceHandler := handlers.NewPriceHandler(oracle, pricingEngine)
	questionHandler := handlers.NewQuestionHandler(classifierService)
	purchaseHandler := handlers.NewPurchaseHandler(purchaseService)
	modelsHandler := handlers.NewModelsHandler(registry)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Goldfolio Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/gold", func(r chi.Router) {
			r.Get("/price", priceHandler.HandleGetPrice)
			r.Post("/price/refresh", priceHandler.HandleRefreshPrice)
			r.Post("/calculate", priceHandler.HandleCalculate)
			r.Get("/history", priceHandler.HandleGetHistory)
			r.Get("/facts", priceHandler.HandleGetFacts)

			r.Post("/question/analyze", questionHandler.HandleAnalyzeQuestion)
			r.Get("/question/logs", questionHandler.HandleGetLogs)

			r.Route("/purchase", func(r chi.Router) {
				r.Post("/initiate", purchaseHandler.HandleInitiate)
				r.Post("/process-payment", purchaseHandler.HandleProcessPayment)
				r.Post("/complete", purchaseHandler.HandleComplete)
				r.Post("/purchase", purchaseHandler.HandlePurchase)
				r.Post("/cancel", purchaseHandler.HandleCancel)
				r.Get("/transactions", purchaseHandler.HandleListTransactions)
				r.Get("/transaction/{transactionId}", purchaseHandler.HandleGetTransaction)
			})
		})

		r.Route("/ai-models", func(r chi.Router) {
			r.Get("/available", modelsHandler.HandleGetAvailable)
			r.Get("/current", modelsHandler.HandleGetCurrent)
			r.Get("/pricing", modelsHandler.HandleGetPricing)
			r.Get("/model/{modelId}", modelsHandler.HandleGetModel)
			r.Post("/switch", modelsHandler.HandleSwitch)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
