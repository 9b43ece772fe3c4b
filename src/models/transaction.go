package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Payment states for a gold transaction.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// Workflow states for a gold transaction.
const (
	StatusInitiated  = "INITIATED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
)

// Certificate is the proof-of-ownership record attached to a paid transaction.
type Certificate struct {
	CertificateID string    `json:"certificateId"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// GoldTransaction represents a row in the gold_transactions table. The price
// fields are locked at initiation and never recomputed from a later quote.
type GoldTransaction struct {
	ID                   int64          `json:"-"`
	TransactionID        string         `json:"transactionId"`
	AccountID            sql.NullInt64  `json:"-"`
	UserEmail            sql.NullString `json:"userEmail"`
	TransactionType      string         `json:"transactionType"`
	GoldAmount           float64        `json:"goldAmount"`
	GoldPrice            float64        `json:"goldPrice"`
	TotalAmount          float64        `json:"totalAmount"`
	Currency             string         `json:"currency"`
	PaymentMethod        string         `json:"paymentMethod"`
	PaymentStatus        string         `json:"paymentStatus"`
	TransactionStatus    string         `json:"transactionStatus"`
	CertificateID        sql.NullString `json:"-"`
	CertificateIssuedAt  sql.NullTime   `json:"-"`
	CertificateExpiresAt sql.NullTime   `json:"-"`
	HoldingsCredited     bool           `json:"-"`
	Notes                sql.NullString `json:"notes"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// Certificate returns the attached certificate, or nil when none was issued.
func (t *GoldTransaction) Certificate() *Certificate {
	if !t.CertificateID.Valid {
		return nil
	}
	return &Certificate{
		CertificateID: t.CertificateID.String,
		IssuedAt:      t.CertificateIssuedAt.Time,
		ExpiresAt:     t.CertificateExpiresAt.Time,
	}
}

const transactionColumns = `id, transaction_id, account_id, user_email, transaction_type,
	gold_amount, gold_price, total_amount, currency, payment_method,
	payment_status, transaction_status, certificate_id, certificate_issued_at,
	certificate_expires_at, holdings_credited, notes, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*GoldTransaction, error) {
	var t GoldTransaction
	err := row.Scan(
		&t.ID, &t.TransactionID, &t.AccountID, &t.UserEmail, &t.TransactionType,
		&t.GoldAmount, &t.GoldPrice, &t.TotalAmount, &t.Currency, &t.PaymentMethod,
		&t.PaymentStatus, &t.TransactionStatus, &t.CertificateID, &t.CertificateIssuedAt,
		&t.CertificateExpiresAt, &t.HoldingsCredited, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTransaction persists a freshly initiated transaction.
func InsertTransaction(db *sql.DB, t *GoldTransaction) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	res, err := db.Exec(`
		INSERT INTO gold_transactions (
			transaction_id, account_id, user_email, transaction_type,
			gold_amount, gold_price, total_amount, currency, payment_method,
			payment_status, transaction_status, certificate_id, certificate_issued_at,
			certificate_expires_at, holdings_credited, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TransactionID, t.AccountID, t.UserEmail, t.TransactionType,
		t.GoldAmount, t.GoldPrice, t.TotalAmount, t.Currency, t.PaymentMethod,
		t.PaymentStatus, t.TransactionStatus, t.CertificateID, t.CertificateIssuedAt,
		t.CertificateExpiresAt, t.HoldingsCredited, t.Notes, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

// GetTransactionByID fetches a transaction by its public transaction id.
// Returns sql.ErrNoRows when it does not exist.
func GetTransactionByID(db *sql.DB, transactionID string) (*GoldTransaction, error) {
	row := db.QueryRow(`SELECT `+transactionColumns+` FROM gold_transactions WHERE transaction_id = ?`, transactionID)
	return scanTransaction(row)
}

// MarkPaymentCompleted flips a pending transaction to payment COMPLETED /
// workflow PROCESSING and attaches the certificate, in one guarded update.
// The WHERE clause is the compare-and-swap: a transaction whose payment is no
// longer PENDING is left untouched and 0 rows are reported.
func MarkPaymentCompleted(tx *sql.Tx, transactionID string, cert Certificate) (int64, error) {
	res, err := tx.Exec(`
		UPDATE gold_transactions
		SET payment_status = ?, transaction_status = ?,
		    certificate_id = ?, certificate_issued_at = ?, certificate_expires_at = ?,
		    updated_at = ?
		WHERE transaction_id = ? AND payment_status = ? AND transaction_status = ?`,
		PaymentCompleted, StatusProcessing,
		cert.CertificateID, cert.IssuedAt, cert.ExpiresAt,
		time.Now().UTC(),
		transactionID, PaymentPending, StatusInitiated)
	if err != nil {
		return 0, fmt.Errorf("failed to mark payment completed: %w", err)
	}
	return res.RowsAffected()
}

// MarkPaymentFailed moves a pending transaction to FAILED on both axes.
func MarkPaymentFailed(tx *sql.Tx, transactionID string) (int64, error) {
	res, err := tx.Exec(`
		UPDATE gold_transactions
		SET payment_status = ?, transaction_status = ?, updated_at = ?
		WHERE transaction_id = ? AND payment_status = ?`,
		PaymentFailed, StatusFailed, time.Now().UTC(),
		transactionID, PaymentPending)
	if err != nil {
		return 0, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return res.RowsAffected()
}

// FinalizeTransaction advances PROCESSING to COMPLETED and records that the
// buyer's holdings were credited. Guarded so a completed transaction can
// never be finalized twice.
func FinalizeTransaction(tx *sql.Tx, transactionID string) (int64, error) {
	res, err := tx.Exec(`
		UPDATE gold_transactions
		SET transaction_status = ?, holdings_credited = 1, updated_at = ?
		WHERE transaction_id = ? AND payment_status = ? AND transaction_status = ? AND holdings_credited = 0`,
		StatusCompleted, time.Now().UTC(),
		transactionID, PaymentCompleted, StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to finalize transaction: %w", err)
	}
	return res.RowsAffected()
}

// CancelTransaction cancels a transaction that has not yet entered payment.
func CancelTransaction(db *sql.DB, transactionID string) (int64, error) {
	res, err := db.Exec(`
		UPDATE gold_transactions
		SET transaction_status = ?, updated_at = ?
		WHERE transaction_id = ? AND transaction_status = ? AND payment_status = ?`,
		StatusCancelled, time.Now().UTC(),
		transactionID, StatusInitiated, PaymentPending)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel transaction: %w", err)
	}
	return res.RowsAffected()
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	UserEmail string
	Page      int
	Limit     int
}

// ListTransactions returns a page of transactions newest-first plus the total
// count matching the filter.
func ListTransactions(db *sql.DB, filter TransactionFilter) ([]GoldTransaction, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	where := ""
	args := []any{}
	if strings.TrimSpace(filter.UserEmail) != "" {
		where = " WHERE user_email = ?"
		args = append(args, filter.UserEmail)
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM gold_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := db.Query(`SELECT `+transactionColumns+` FROM gold_transactions`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []GoldTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}
