package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/models"
)

// simulatedPaymentProcessor stands in for a real payment gateway: it takes a
// configurable amount of time and declines a configurable fraction of
// payments. A success rate >= 1 makes it deterministic for tests.
type simulatedPaymentProcessor struct {
	delay       time.Duration
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedPaymentProcessor() PaymentProcessor {
	return &simulatedPaymentProcessor{
		delay:       config.Cfg.PaymentDelay,
		successRate: config.Cfg.PaymentSuccessRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *simulatedPaymentProcessor) Process(ctx context.Context, t *models.GoldTransaction, details PaymentDetails) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(p.delay):
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()

	success := roll < p.successRate
	logger.L.Info("Payment processed",
		"transactionId", t.TransactionID,
		"method", details.Method,
		"amount", t.TotalAmount,
		"currency", t.Currency,
		"success", success)
	return success, nil
}
