package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/groupexchange/internal/models"
	"github.com/mmynk/groupexchange/internal/storage"
)

const exchangeColumns = `id, tenant_id, title, description, organizer_id, listing_id, status, split_type,
	total_hours, broker_id, broker_notes, completed_at, created_at, updated_at, version`

// CreateExchange persists a new exchange with its participants and the
// creation history entry.
func (s *SQLiteStore) CreateExchange(ctx context.Context, exchange *models.Exchange, entry models.HistoryEntry) error {
	if exchange.ID == "" {
		exchange.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if exchange.CreatedAt == 0 {
		exchange.CreatedAt = now
	}
	if exchange.UpdatedAt == 0 {
		exchange.UpdatedAt = exchange.CreatedAt
	}
	exchange.Version = 1

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exchanges (`+exchangeColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			exchange.ID, exchange.TenantID, exchange.Title, exchange.Description,
			exchange.OrganizerID, exchange.ListingID, string(exchange.Status), string(exchange.SplitType),
			exchange.TotalHours, exchange.BrokerID, exchange.BrokerNotes,
			exchange.CompletedAt, exchange.CreatedAt, exchange.UpdatedAt, exchange.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to insert exchange: %w", err)
		}

		if err := insertParticipants(ctx, tx, exchange); err != nil {
			return err
		}
		return insertHistory(ctx, tx, exchange, entry)
	})
}

// GetExchange retrieves an exchange with its participants and transaction IDs.
func (s *SQLiteStore) GetExchange(ctx context.Context, exchangeID string) (*models.Exchange, error) {
	return getExchange(ctx, s.db, exchangeID)
}

// SaveExchange writes exchange, replacing its participants, and appends entry.
// The write only applies if the stored version still matches.
func (s *SQLiteStore) SaveExchange(ctx context.Context, exchange *models.Exchange, entry models.HistoryEntry) error {
	if exchange.UpdatedAt == 0 {
		exchange.UpdatedAt = time.Now().Unix()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE exchanges
			 SET title = ?, description = ?, listing_id = ?, status = ?, split_type = ?, total_hours = ?,
			     broker_id = ?, broker_notes = ?, completed_at = ?, updated_at = ?, version = version + 1
			 WHERE id = ? AND version = ?`,
			exchange.Title, exchange.Description, exchange.ListingID,
			string(exchange.Status), string(exchange.SplitType), exchange.TotalHours,
			exchange.BrokerID, exchange.BrokerNotes, exchange.CompletedAt, exchange.UpdatedAt,
			exchange.ID, exchange.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update exchange: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM exchanges WHERE id = ?`, exchange.ID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to check exchange: %w", err)
			}
			return storage.ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM exchange_participants WHERE exchange_id = ?`, exchange.ID); err != nil {
			return fmt.Errorf("failed to delete participants: %w", err)
		}
		if err := insertParticipants(ctx, tx, exchange); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM exchange_transactions WHERE exchange_id = ?`, exchange.ID); err != nil {
			return fmt.Errorf("failed to delete transaction ids: %w", err)
		}
		for i, txID := range exchange.TransactionIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO exchange_transactions (exchange_id, position, transaction_id) VALUES (?, ?, ?)`,
				exchange.ID, i, txID,
			); err != nil {
				return fmt.Errorf("failed to insert transaction id: %w", err)
			}
		}

		return insertHistory(ctx, tx, exchange, entry)
	})
	if err != nil {
		return err
	}

	exchange.Version++
	return nil
}

// ListExchangesForUser returns exchanges the user organizes or participates in.
func (s *SQLiteStore) ListExchangesForUser(ctx context.Context, tenantID, userID string, status models.Status) ([]*models.Exchange, error) {
	query := `
		SELECT DISTINCT e.id, e.created_at
		FROM exchanges e
		LEFT JOIN exchange_participants p ON p.exchange_id = e.id
		WHERE e.tenant_id = ? AND (e.organizer_id = ? OR p.user_id = ?)`
	args := []any{tenantID, userID, userID}
	if status != "" {
		query += ` AND e.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY e.created_at DESC, e.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}

	// Collect IDs first; the single connection cannot serve nested queries
	// while rows are open.
	var ids []string
	for rows.Next() {
		var id string
		var createdAt int64
		if err := rows.Scan(&id, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan exchange id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating exchanges: %w", err)
	}
	rows.Close()

	exchanges := make([]*models.Exchange, 0, len(ids))
	for _, id := range ids {
		exchange, err := getExchange(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, exchange)
	}
	return exchanges, nil
}

// ListHistory returns the history of an exchange, oldest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, exchangeID string) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exchange_id, action, actor_id, old_status, new_status, notes, created_at
		 FROM exchange_history WHERE exchange_id = ? ORDER BY id`,
		exchangeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var oldStatus, newStatus string
		if err := rows.Scan(&entry.ID, &entry.ExchangeID, &entry.Action, &entry.ActorID,
			&oldStatus, &newStatus, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.OldStatus = models.Status(oldStatus)
		entry.NewStatus = models.Status(newStatus)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

func getExchange(ctx context.Context, q querier, exchangeID string) (*models.Exchange, error) {
	exchange := &models.Exchange{}
	var status, splitType string
	err := q.QueryRowContext(ctx,
		`SELECT `+exchangeColumns+` FROM exchanges WHERE id = ?`, exchangeID,
	).Scan(
		&exchange.ID, &exchange.TenantID, &exchange.Title, &exchange.Description,
		&exchange.OrganizerID, &exchange.ListingID, &status, &splitType,
		&exchange.TotalHours, &exchange.BrokerID, &exchange.BrokerNotes,
		&exchange.CompletedAt, &exchange.CreatedAt, &exchange.UpdatedAt, &exchange.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}
	exchange.Status = models.Status(status)
	exchange.SplitType = models.SplitType(splitType)

	exchange.Participants, err = loadParticipants(ctx, q, exchangeID)
	if err != nil {
		return nil, err
	}

	exchange.TransactionIDs, err = loadTransactionIDs(ctx, q, exchangeID)
	if err != nil {
		return nil, err
	}

	return exchange, nil
}

func loadParticipants(ctx context.Context, q querier, exchangeID string) ([]models.Participant, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT exchange_id, user_id, role, hours, weight, confirmed, confirmed_at, notes, joined_at
		 FROM exchange_participants WHERE exchange_id = ? ORDER BY position`,
		exchangeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		var role string
		if err := rows.Scan(&p.ExchangeID, &p.UserID, &role, &p.Hours, &p.Weight,
			&p.Confirmed, &p.ConfirmedAt, &p.Notes, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Role = models.Role(role)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return participants, nil
}

func loadTransactionIDs(ctx context.Context, q querier, exchangeID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT transaction_id FROM exchange_transactions WHERE exchange_id = ? ORDER BY position`,
		exchangeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction ids: %w", err)
	}
	return ids, nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, exchange *models.Exchange) error {
	for i := range exchange.Participants {
		p := &exchange.Participants[i]
		p.ExchangeID = exchange.ID
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exchange_participants
			 (exchange_id, user_id, position, role, hours, weight, confirmed, confirmed_at, notes, joined_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			exchange.ID, p.UserID, i, string(p.Role), p.Hours, p.Weight,
			p.Confirmed, p.ConfirmedAt, p.Notes, p.JoinedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, exchange *models.Exchange, entry models.HistoryEntry) error {
	if entry.Action == "" {
		return nil
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = exchange.UpdatedAt
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO exchange_history (exchange_id, action, actor_id, old_status, new_status, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exchange.ID, entry.Action, entry.ActorID, string(entry.OldStatus), string(entry.NewStatus),
		entry.Notes, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}
