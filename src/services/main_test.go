package services

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	config.LoadConfig()
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// stubOracle serves a fixed quote so pricing and purchase tests are
// deterministic.
type stubOracle struct {
	quote Quote
}

func newStubOracle(perGramUSD float64) stubOracle {
	return stubOracle{quote: Quote{
		PricePerGramUSD:  perGramUSD,
		PricePerOunceUSD: perGramUSD * 31.1034768,
		AsOf:             time.Now().UTC(),
		Source:           "stub",
	}}
}

func (s stubOracle) CurrentQuote() Quote { return s.quote }

func (s stubOracle) Refresh(ctx context.Context, preferLive bool) (RefreshResult, error) {
	return RefreshResult{
		Source:             s.quote.Source,
		NewPricePerGramUSD: s.quote.PricePerGramUSD,
		LastUpdated:        s.quote.AsOf,
	}, nil
}

func (s stubOracle) PriceHistory(days int, currency string) []HistoryPoint { return nil }

const testSchema = `
CREATE TABLE accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    name TEXT,
    total_gold_purchased REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE gold_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transaction_id TEXT NOT NULL UNIQUE,
    account_id INTEGER REFERENCES accounts(id),
    user_email TEXT,
    transaction_type TEXT NOT NULL DEFAULT 'PURCHASE',
    gold_amount REAL NOT NULL,
    gold_price REAL NOT NULL,
    total_amount REAL NOT NULL,
    currency TEXT NOT NULL,
    payment_method TEXT NOT NULL DEFAULT 'WALLET',
    payment_status TEXT NOT NULL DEFAULT 'PENDING',
    transaction_status TEXT NOT NULL DEFAULT 'INITIATED',
    certificate_id TEXT,
    certificate_issued_at TIMESTAMP,
    certificate_expires_at TIMESTAMP,
    holdings_credited INTEGER NOT NULL DEFAULT 0,
    notes TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE classification_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    log_id TEXT NOT NULL UNIQUE,
    user_email TEXT,
    question TEXT NOT NULL,
    is_gold_related INTEGER NOT NULL,
    confidence REAL NOT NULL,
    reasoning TEXT,
    ai_response TEXT NOT NULL,
    suggested_action TEXT NOT NULL,
    decision_source TEXT NOT NULL,
    processing_time_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// newTestDB opens an in-memory database with the full schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
