package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupexchange/internal/models"
	"github.com/mmynk/groupexchange/internal/storage"
)

// PostBatch records every entry of batch as a ledger transaction in one
// database transaction and returns the new transaction IDs in entry order.
// Posting a key that was already posted with the same entries returns the
// original IDs without writing anything; different entries fail with
// storage.ErrBatchMismatch.
func (s *SQLiteStore) PostBatch(ctx context.Context, batch models.LedgerBatch) ([]string, error) {
	if batch.Key == "" {
		return nil, errors.New("ledger batch key must not be empty")
	}
	if len(batch.Entries) == 0 {
		return nil, errors.New("ledger batch has no entries")
	}
	for i, entry := range batch.Entries {
		if !entry.Hours.IsPositive() {
			return nil, fmt.Errorf("ledger entry %d: hours must be positive, got %s", i, entry.Hours)
		}
		if entry.FromUserID == entry.ToUserID {
			return nil, fmt.Errorf("ledger entry %d: sender and recipient are the same user", i)
		}
	}

	var ids []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := queryLedgerTransactions(ctx, tx, batch.Key)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			if !sameEntries(existing, batch.Entries) {
				return fmt.Errorf("%w: %s", storage.ErrBatchMismatch, batch.Key)
			}
			ids = make([]string, len(existing))
			for i, t := range existing {
				ids[i] = t.ID
			}
			return nil
		}

		now := time.Now().Unix()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_batches (batch_key, tenant_id, created_at) VALUES (?, ?, ?)`,
			batch.Key, batch.TenantID, now,
		); err != nil {
			return fmt.Errorf("failed to insert ledger batch: %w", err)
		}

		ids = make([]string, 0, len(batch.Entries))
		for i, entry := range batch.Entries {
			id := uuid.New().String()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ledger_transactions
				 (id, batch_key, position, tenant_id, from_user_id, to_user_id, hours, description, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, batch.Key, i, batch.TenantID, entry.FromUserID, entry.ToUserID,
				entry.Hours, entry.Description, now,
			); err != nil {
				return fmt.Errorf("failed to insert ledger transaction: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// VoidBatch deletes the transactions posted under batchKey. Voiding a key
// that was never posted is a no-op. A batch whose transactions are recorded
// on an exchange is never voided.
func (s *SQLiteStore) VoidBatch(ctx context.Context, batchKey string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var recorded int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM exchange_transactions
			 WHERE transaction_id IN (SELECT id FROM ledger_transactions WHERE batch_key = ?)`,
			batchKey,
		).Scan(&recorded); err != nil {
			return fmt.Errorf("failed to check ledger batch: %w", err)
		}
		if recorded > 0 {
			return fmt.Errorf("%w: %s", storage.ErrBatchAcknowledged, batchKey)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_transactions WHERE batch_key = ?`, batchKey); err != nil {
			return fmt.Errorf("failed to delete ledger transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_batches WHERE batch_key = ?`, batchKey); err != nil {
			return fmt.Errorf("failed to delete ledger batch: %w", err)
		}
		return nil
	})
}

// ListLedgerTransactions returns the transactions posted under batchKey in
// entry order.
func (s *SQLiteStore) ListLedgerTransactions(ctx context.Context, batchKey string) ([]models.LedgerTransaction, error) {
	return queryLedgerTransactions(ctx, s.db, batchKey)
}

// Balance returns hours received minus hours given by userID in tenantID.
func (s *SQLiteStore) Balance(ctx context.Context, tenantID, userID string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_user_id, hours FROM ledger_transactions
		 WHERE tenant_id = ? AND (from_user_id = ? OR to_user_id = ?)`,
		tenantID, userID, userID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query balance: %w", err)
	}
	defer rows.Close()

	// Summed in Go: SQLite would coerce the TEXT amounts to floating point.
	balance := decimal.Zero
	for rows.Next() {
		var from string
		var hours decimal.Decimal
		if err := rows.Scan(&from, &hours); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan ledger amount: %w", err)
		}
		if from == userID {
			balance = balance.Sub(hours)
		} else {
			balance = balance.Add(hours)
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating ledger amounts: %w", err)
	}
	return balance, nil
}

func queryLedgerTransactions(ctx context.Context, q querier, batchKey string) ([]models.LedgerTransaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, batch_key, position, tenant_id, from_user_id, to_user_id, hours, description, created_at
		 FROM ledger_transactions WHERE batch_key = ? ORDER BY position`,
		batchKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.LedgerTransaction
	for rows.Next() {
		var t models.LedgerTransaction
		if err := rows.Scan(&t.ID, &t.BatchKey, &t.Position, &t.TenantID, &t.FromUserID,
			&t.ToUserID, &t.Hours, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger transactions: %w", err)
	}
	return txs, nil
}

func sameEntries(posted []models.LedgerTransaction, entries []models.LedgerEntry) bool {
	if len(posted) != len(entries) {
		return false
	}
	for i, e := range entries {
		p := posted[i]
		if p.FromUserID != e.FromUserID || p.ToUserID != e.ToUserID || !p.Hours.Equal(e.Hours) {
			return false
		}
	}
	return true
}
