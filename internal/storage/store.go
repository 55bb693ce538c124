// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/groupexchange/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a save races with another writer.
	ErrConflict = errors.New("record was modified concurrently")

	// ErrBatchMismatch is returned when a ledger batch key is reposted with
	// different entries.
	ErrBatchMismatch = errors.New("ledger batch key already posted with different entries")

	// ErrBatchAcknowledged is returned when voiding a batch whose
	// transactions an exchange already records.
	ErrBatchAcknowledged = errors.New("ledger batch is recorded by an exchange")
)

// Store defines the interface for exchange storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the engine.
type Store interface {
	// CreateExchange persists a new exchange with its participants and the
	// history entry describing its creation. The exchange's ID, timestamps
	// and Version are populated by the store.
	CreateExchange(ctx context.Context, exchange *models.Exchange, entry models.HistoryEntry) error

	// GetExchange retrieves an exchange with its participants and
	// transaction IDs. Returns ErrNotFound if it does not exist.
	GetExchange(ctx context.Context, exchangeID string) (*models.Exchange, error)

	// SaveExchange writes the exchange, replaces its participant rows and
	// appends entry, all in one transaction. It fails with ErrConflict when
	// exchange.Version no longer matches the stored version; on success
	// exchange.Version is incremented.
	SaveExchange(ctx context.Context, exchange *models.Exchange, entry models.HistoryEntry) error

	// ListExchangesForUser returns exchanges in tenantID that userID
	// organizes or participates in, newest first. An empty status matches all.
	ListExchangesForUser(ctx context.Context, tenantID, userID string, status models.Status) ([]*models.Exchange, error)

	// ListHistory returns the history of an exchange, oldest first.
	ListHistory(ctx context.Context, exchangeID string) ([]models.HistoryEntry, error)

	// Close releases any resources held by the store.
	Close() error
}
