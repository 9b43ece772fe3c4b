package services

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/goldfolio/backend/src/models"
)

func newTestPurchaseService(t *testing.T, db *sql.DB, successRate float64) PurchaseService {
	t.Helper()
	engine := NewPricingEngine(newStubOracle(65.50))
	processor := &simulatedPaymentProcessor{
		delay:       0,
		successRate: successRate,
		rng:         rand.New(rand.NewSource(1)),
	}
	return NewPurchaseService(db, engine, processor)
}

func TestPurchaseLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)
	ctx := context.Background()

	// Initiate locks the price.
	tx, err := svc.Initiate(ctx, PurchaseRequest{
		UserEmail:  "buyer@example.com",
		GoldAmount: 10,
		Currency:   "USD",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx.TransactionID, "TXN_"))
	assert.Equal(t, 10.0, tx.GoldAmount)
	assert.Equal(t, 65.50, tx.GoldPrice)
	assert.Equal(t, 655.0, tx.TotalAmount)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, models.PaymentPending, tx.PaymentStatus)
	assert.Equal(t, models.StatusInitiated, tx.TransactionStatus)
	assert.Nil(t, tx.Certificate())

	// Payment attaches the certificate atomically with the state flip.
	tx, err = svc.ProcessPayment(ctx, tx.TransactionID, PaymentDetails{Method: "WALLET"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, tx.PaymentStatus)
	assert.Equal(t, models.StatusProcessing, tx.TransactionStatus)

	cert := tx.Certificate()
	require.NotNil(t, cert)
	assert.True(t, strings.HasPrefix(cert.CertificateID, "DGC_"))
	assert.InDelta(t, 365*24*time.Hour, cert.ExpiresAt.Sub(cert.IssuedAt), float64(time.Minute))

	// Completion credits holdings exactly once.
	tx, err = svc.Complete(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, tx.TransactionStatus)
	assert.True(t, tx.HoldingsCredited)

	account, err := models.GetAccountByEmail(db, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, 10.0, account.TotalGoldPurchased)
}

func TestProcessPaymentIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)
	ctx := context.Background()

	tx, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "buyer@example.com", GoldAmount: 1, Currency: "USD"})
	require.NoError(t, err)

	paid, err := svc.ProcessPayment(ctx, tx.TransactionID, PaymentDetails{})
	require.NoError(t, err)
	firstCert := paid.Certificate()
	require.NotNil(t, firstCert)

	// A retry is rejected and the original certificate stands.
	again, err := svc.ProcessPayment(ctx, tx.TransactionID, PaymentDetails{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	require.NotNil(t, again)
	require.NotNil(t, again.Certificate())
	assert.Equal(t, firstCert.CertificateID, again.Certificate().CertificateID)
}

func TestCompleteIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)
	ctx := context.Background()

	tx, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "buyer@example.com", GoldAmount: 2, Currency: "USD"})
	require.NoError(t, err)
	_, err = svc.ProcessPayment(ctx, tx.TransactionID, PaymentDetails{})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, tx.TransactionID)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, tx.TransactionID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	// Holdings were credited exactly once.
	account, err := models.GetAccountByEmail(db, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2.0, account.TotalGoldPurchased)
}

func TestCompleteRequiresPayment(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)
	ctx := context.Background()

	tx, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "buyer@example.com", GoldAmount: 1, Currency: "USD"})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, tx.TransactionID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestProcessPaymentDeclined(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 0)
	ctx := context.Background()

	tx, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "buyer@example.com", GoldAmount: 1, Currency: "USD"})
	require.NoError(t, err)

	failed, err := svc.ProcessPayment(ctx, tx.TransactionID, PaymentDetails{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaymentDeclined))
	require.NotNil(t, failed)
	assert.Equal(t, models.PaymentFailed, failed.PaymentStatus)
	assert.Equal(t, models.StatusFailed, failed.TransactionStatus)
	assert.Nil(t, failed.Certificate())
}

func TestCancel(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)
	ctx := context.Background()

	tx, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "buyer@example.com", GoldAmount: 1, Currency: "USD"})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.TransactionStatus)

	// Payment is no longer possible after cancellation.
	_, err = svc.ProcessPayment(ctx, tx.TransactionID, PaymentDetails{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestCancelAfterPaymentRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)
	ctx := context.Background()

	tx, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "buyer@example.com", GoldAmount: 1, Currency: "USD"})
	require.NoError(t, err)
	_, err = svc.ProcessPayment(ctx, tx.TransactionID, PaymentDetails{})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, tx.TransactionID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestInitiateValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "", GoldAmount: 1, Currency: "USD"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.Initiate(ctx, PurchaseRequest{UserEmail: "buyer@example.com", GoldAmount: 0, Currency: "USD"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.Initiate(ctx, PurchaseRequest{UserEmail: "buyer@example.com", GoldAmount: 1001, Currency: "USD"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestGetByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)

	_, err := svc.GetByID("TXN_does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPurchaseOneShot(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)

	tx, err := svc.Purchase(context.Background(), PurchaseRequest{
		UserEmail:  "buyer@example.com",
		GoldAmount: 5,
		Currency:   "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, tx.TransactionStatus)
	assert.Equal(t, models.PaymentCompleted, tx.PaymentStatus)
	require.NotNil(t, tx.Certificate())

	account, err := models.GetAccountByEmail(db, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, 5.0, account.TotalGoldPurchased)
}

func TestListTransactions(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPurchaseService(t, db, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "a@example.com", GoldAmount: 1, Currency: "USD"})
		require.NoError(t, err)
	}
	_, err := svc.Initiate(ctx, PurchaseRequest{UserEmail: "b@example.com", GoldAmount: 1, Currency: "USD"})
	require.NoError(t, err)

	all, total, err := svc.List(models.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, all, 4)

	onlyA, total, err := svc.List(models.TransactionFilter{UserEmail: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, onlyA, 3)

	page, total, err := svc.List(models.TransactionFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, page, 1)
}
