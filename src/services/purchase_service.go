package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/models"
)

type purchaseServiceImpl struct {
	db        *sql.DB
	pricing   PricingEngine
	processor PaymentProcessor
}

// NewPurchaseService wires the purchase state machine to the pricing engine
// and the payment collaborator.
func NewPurchaseService(db *sql.DB, pricing PricingEngine, processor PaymentProcessor) PurchaseService {
	return &purchaseServiceImpl{db: db, pricing: pricing, processor: processor}
}

func newTransactionID() string {
	return "TXN_" + uuid.New().String()
}

func newCertificate() models.Certificate {
	now := time.Now().UTC()
	return models.Certificate{
		CertificateID: "DGC_" + uuid.New().String(),
		IssuedAt:      now,
		ExpiresAt:     now.Add(config.Cfg.CertificateValidity),
	}
}

// Initiate locks the current quote into a new transaction. The locked total
// is computed exactly once here; later market moves never change it.
func (s *purchaseServiceImpl) Initiate(ctx context.Context, req PurchaseRequest) (*models.GoldTransaction, error) {
	email := strings.ToLower(strings.TrimSpace(req.UserEmail))
	if email == "" {
		return nil, fmt.Errorf("%w: user email is required", ErrValidation)
	}

	cost, err := s.pricing.CostOf(req.GoldAmount, req.Currency)
	if err != nil {
		return nil, err
	}

	account, err := models.FindOrCreateAccount(s.db, email)
	if err != nil {
		return nil, err
	}

	paymentMethod := strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	if paymentMethod == "" {
		paymentMethod = "WALLET"
	}
	notes := req.Notes
	if notes == "" {
		notes = fmt.Sprintf("Digital gold purchase of %g grams", req.GoldAmount)
	}

	t := &models.GoldTransaction{
		TransactionID:     newTransactionID(),
		AccountID:         sql.NullInt64{Int64: account.ID, Valid: true},
		UserEmail:         sql.NullString{String: email, Valid: true},
		TransactionType:   "PURCHASE",
		GoldAmount:        cost.GoldAmount,
		GoldPrice:         cost.GoldPricePerGram,
		TotalAmount:       cost.TotalCost,
		Currency:          cost.Currency,
		PaymentMethod:     paymentMethod,
		PaymentStatus:     models.PaymentPending,
		TransactionStatus: models.StatusInitiated,
		Notes:             sql.NullString{String: notes, Valid: true},
	}

	if err := models.InsertTransaction(s.db, t); err != nil {
		return nil, err
	}

	logger.L.Info("Purchase initiated",
		"transactionId", t.TransactionID,
		"goldAmount", t.GoldAmount,
		"lockedTotal", t.TotalAmount,
		"currency", t.Currency)
	return t, nil
}

// ProcessPayment invokes the payment collaborator and, on success, attaches
// the certificate in the same database transaction as the state flip. A
// transaction whose payment already completed is rejected with ErrConflict
// and returned unchanged, certificate included.
func (s *purchaseServiceImpl) ProcessPayment(ctx context.Context, transactionID string, details PaymentDetails) (*models.GoldTransaction, error) {
	t, err := s.GetByID(transactionID)
	if err != nil {
		return nil, err
	}

	if t.PaymentStatus == models.PaymentCompleted {
		return t, fmt.Errorf("%w: payment already completed for transaction %s", ErrConflict, transactionID)
	}
	if t.TransactionStatus != models.StatusInitiated {
		return t, fmt.Errorf("%w: transaction %s is %s, payment is no longer possible", ErrConflict, transactionID, t.TransactionStatus)
	}

	success, procErr := s.processor.Process(ctx, t, details)
	if procErr != nil {
		logger.L.Error("Payment processor error", "transactionId", transactionID, "error", procErr)
	}

	if procErr != nil || !success {
		if err := s.inTx(func(tx *sql.Tx) error {
			_, err := models.MarkPaymentFailed(tx, transactionID)
			return err
		}); err != nil {
			return nil, err
		}
		t, err = s.GetByID(transactionID)
		if err != nil {
			return nil, err
		}
		return t, fmt.Errorf("%w: transaction %s", ErrPaymentDeclined, transactionID)
	}

	cert := newCertificate()
	var rows int64
	if err := s.inTx(func(tx *sql.Tx) error {
		var err error
		rows, err = models.MarkPaymentCompleted(tx, transactionID, cert)
		return err
	}); err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost a race with a concurrent retry; the winner's certificate stands.
		t, err = s.GetByID(transactionID)
		if err != nil {
			return nil, err
		}
		return t, fmt.Errorf("%w: payment already completed for transaction %s", ErrConflict, transactionID)
	}

	logger.L.Info("Payment completed, certificate issued",
		"transactionId", transactionID,
		"certificateId", cert.CertificateID,
		"expiresAt", cert.ExpiresAt)
	return s.GetByID(transactionID)
}

// Complete finalizes a paid transaction and credits the buyer's holdings
// exactly once, both inside one database transaction.
func (s *purchaseServiceImpl) Complete(ctx context.Context, transactionID string) (*models.GoldTransaction, error) {
	t, err := s.GetByID(transactionID)
	if err != nil {
		return nil, err
	}

	if t.TransactionStatus == models.StatusCompleted {
		return t, fmt.Errorf("%w: transaction %s already completed", ErrConflict, transactionID)
	}
	if t.PaymentStatus != models.PaymentCompleted {
		return t, fmt.Errorf("%w: payment must be completed before finalizing transaction %s", ErrConflict, transactionID)
	}

	var rows int64
	if err := s.inTx(func(tx *sql.Tx) error {
		var err error
		rows, err = models.FinalizeTransaction(tx, transactionID)
		if err != nil || rows == 0 {
			return err
		}
		if t.AccountID.Valid {
			return models.AddHoldings(tx, t.AccountID.Int64, t.GoldAmount)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if rows == 0 {
		t, err = s.GetByID(transactionID)
		if err != nil {
			return nil, err
		}
		return t, fmt.Errorf("%w: transaction %s already completed", ErrConflict, transactionID)
	}

	logger.L.Info("Purchase completed", "transactionId", transactionID, "goldAmount", t.GoldAmount)
	return s.GetByID(transactionID)
}

// Cancel aborts a transaction that has not entered payment.
func (s *purchaseServiceImpl) Cancel(ctx context.Context, transactionID string) (*models.GoldTransaction, error) {
	rows, err := models.CancelTransaction(s.db, transactionID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		t, err := s.GetByID(transactionID)
		if err != nil {
			return nil, err
		}
		return t, fmt.Errorf("%w: transaction %s is %s and cannot be cancelled", ErrConflict, transactionID, t.TransactionStatus)
	}
	return s.GetByID(transactionID)
}

// Purchase runs initiate, payment and completion back to back through the
// same guarded transitions as the three-step path.
func (s *purchaseServiceImpl) Purchase(ctx context.Context, req PurchaseRequest) (*models.GoldTransaction, error) {
	t, err := s.Initiate(ctx, req)
	if err != nil {
		return nil, err
	}

	details := PaymentDetails{Method: t.PaymentMethod, Reference: "one-shot"}
	t, err = s.ProcessPayment(ctx, t.TransactionID, details)
	if err != nil {
		return t, err
	}

	return s.Complete(ctx, t.TransactionID)
}

func (s *purchaseServiceImpl) GetByID(transactionID string) (*models.GoldTransaction, error) {
	t, err := models.GetTransactionByID(s.db, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, transactionID)
		}
		return nil, err
	}
	return t, nil
}

func (s *purchaseServiceImpl) List(filter models.TransactionFilter) ([]models.GoldTransaction, int, error) {
	return models.ListTransactions(s.db, filter)
}

// inTx runs fn inside a database transaction, rolling back on any error so a
// failed step never leaves a half-updated row behind.
func (s *purchaseServiceImpl) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
