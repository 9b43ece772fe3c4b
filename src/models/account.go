package models

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Account is the external buyer record this service keeps a holdings counter
// on. Identity management proper lives elsewhere; an account here is just an
// email plus the cumulative grams purchased.
type Account struct {
	ID                 int64          `json:"-"`
	Email              string         `json:"email"`
	Name               sql.NullString `json:"name"`
	TotalGoldPurchased float64        `json:"totalGoldPurchased"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// GetAccountByEmail returns sql.ErrNoRows when no account exists.
func GetAccountByEmail(db *sql.DB, email string) (*Account, error) {
	var a Account
	err := db.QueryRow(`
		SELECT id, email, name, total_gold_purchased, created_at, updated_at
		FROM accounts WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))).
		Scan(&a.ID, &a.Email, &a.Name, &a.TotalGoldPurchased, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindOrCreateAccount looks an account up by email and creates it when absent.
func FindOrCreateAccount(db *sql.DB, email string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}

	account, err := GetAccountByEmail(db, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	now := time.Now().UTC()
	res, err := db.Exec(`
		INSERT INTO accounts (email, total_gold_purchased, created_at, updated_at)
		VALUES (?, 0, ?, ?)`, email, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Account{ID: id, Email: email, CreatedAt: now, UpdatedAt: now}, nil
}

// AddHoldings increments the cumulative holdings counter inside the caller's
// database transaction so the credit commits or rolls back with the workflow
// state change.
func AddHoldings(tx *sql.Tx, accountID int64, grams float64) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET total_gold_purchased = total_gold_purchased + ?, updated_at = ?
		WHERE id = ?`, grams, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to add holdings: %w", err)
	}
	return nil
}
