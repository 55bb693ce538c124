package exchange

import (
	"context"
	"fmt"

	"github.com/mmynk/groupexchange/internal/calculator"
	"github.com/mmynk/groupexchange/internal/models"
)

// Complete settles the exchange: it recomputes the split from persisted
// participant values, posts one ledger transaction per positive allocation as
// a single batch and marks the exchange completed. It returns the ledger
// transaction IDs in allocation order.
//
// On any failure the exchange stays pending_confirmation and the ledger holds
// no transactions for it. Calling Complete on an already completed exchange
// returns the recorded IDs without touching the ledger.
func (e *Engine) Complete(ctx context.Context, exchangeID, actorID string) (txIDs []string, err error) {
	defer func() { e.metrics.RecordCommand(string(ActionComplete), err) }()

	started := e.now()
	var (
		x            *models.Exchange
		shortCircuit bool
		settled      []models.Allocation
	)

	err = e.withExchange(ctx, exchangeID, func(loaded *models.Exchange) error {
		x = loaded
		if x.Status == models.StatusCompleted {
			txIDs = append([]string(nil), x.TransactionIDs...)
			shortCircuit = true
			return nil
		}
		if err := transition(x.Status, ActionComplete, models.StatusCompleted); err != nil {
			return err
		}
		if !x.AllConfirmed() {
			confirmed := 0
			for _, p := range x.Participants {
				if p.Confirmed {
					confirmed++
				}
			}
			return fmt.Errorf("%w: %d of %d participants confirmed",
				ErrWrongState, confirmed, len(x.Participants))
		}

		allocations := calculator.Positive(calculator.ComputeAllocations(x.Participants, x.SplitType, x.TotalHours))
		if len(allocations) == 0 {
			return fmt.Errorf("%w: %s split of %s hours yields no transfers",
				ErrNothingToSettle, x.SplitType, x.TotalHours)
		}

		if err := e.voidOrphan(ctx, x); err != nil {
			return err
		}
		ids, err := e.post(ctx, x, allocations)
		if err != nil {
			return err
		}

		entry := newEntry(x, actorID, ActionComplete)
		entry.Notes = fmt.Sprintf("%d ledger transactions", len(ids))
		x.Status = models.StatusCompleted
		x.TransactionIDs = ids
		x.CompletedAt = e.now().Unix()

		// A posted batch is either recorded on the exchange or voided,
		// whatever happens to the caller's context.
		saveCtx := context.WithoutCancel(ctx)
		if err := e.save(saveCtx, x, entry); err != nil {
			e.compensate(saveCtx, x, err)
			return err
		}

		txIDs = ids
		settled = allocations
		return nil
	})
	if err != nil {
		return nil, err
	}

	if shortCircuit {
		e.metrics.RecordShortCircuit()
		e.logger.InfoContext(ctx, "Exchange already completed",
			"exchange_id", exchangeID,
			"transactions", len(txIDs),
		)
		return txIDs, nil
	}

	elapsed := e.now().Sub(started)
	hours, _ := calculator.Total(settled).Float64()
	e.metrics.RecordSettlement(elapsed, len(txIDs), hours)
	e.logger.InfoContext(ctx, "Exchange settled",
		"exchange_id", x.ID,
		"tenant_id", x.TenantID,
		"transactions", len(txIDs),
		"hours", calculator.Total(settled).String(),
		"duration", elapsed,
	)
	e.notify(ctx, x, "completed", append([]string{x.OrganizerID}, participantIDs(x)...),
		fmt.Sprintf("%q was completed and %s hours were transferred", x.Title, calculator.Total(settled)))

	return txIDs, nil
}

// compensate voids the batch of an exchange whose completion could not be
// saved. When voiding fails too, the next Complete or Cancel voids it.
func (e *Engine) compensate(ctx context.Context, x *models.Exchange, saveErr error) {
	if err := e.void(ctx, x); err != nil {
		e.logger.ErrorContext(ctx, "Failed to void ledger batch after failed save",
			"exchange_id", x.ID,
			"save_error", saveErr,
			"error", err,
		)
		return
	}
	e.logger.WarnContext(ctx, "Voided ledger batch after failed save",
		"exchange_id", x.ID,
		"save_error", saveErr,
	)
}

// voidOrphan removes any batch an earlier, unrecorded settlement left behind.
func (e *Engine) voidOrphan(ctx context.Context, x *models.Exchange) error {
	if err := e.void(ctx, x); err != nil {
		e.logger.ErrorContext(ctx, "Ledger void failed",
			"exchange_id", x.ID,
			"retryable", IsRetryable(err),
			"error", err,
		)
		return err
	}
	return nil
}

func (e *Engine) void(ctx context.Context, x *models.Exchange) error {
	voidCtx, cancel := context.WithTimeout(ctx, e.ledgerTimeout)
	defer cancel()

	if err := e.ledger.VoidBatch(voidCtx, x.ID); err != nil {
		lerr := newLedgerError(err)
		e.metrics.RecordLedgerFailure(lerr.Retryable)
		return lerr
	}
	return nil
}

// post submits allocations as one ledger batch keyed by the exchange ID.
func (e *Engine) post(ctx context.Context, x *models.Exchange, allocations []models.Allocation) ([]string, error) {
	batch := models.LedgerBatch{
		Key:      x.ID,
		TenantID: x.TenantID,
		Entries:  make([]models.LedgerEntry, 0, len(allocations)),
	}
	description := "Group exchange: " + x.Title
	for _, a := range allocations {
		batch.Entries = append(batch.Entries, models.LedgerEntry{
			FromUserID:  a.ProviderID,
			ToUserID:    a.ReceiverID,
			Hours:       a.Amount,
			Description: description,
		})
	}

	postCtx, cancel := context.WithTimeout(ctx, e.ledgerTimeout)
	defer cancel()

	ids, err := e.ledger.PostBatch(postCtx, batch)
	if err != nil {
		lerr := newLedgerError(err)
		e.metrics.RecordLedgerFailure(lerr.Retryable)
		e.logger.ErrorContext(ctx, "Ledger posting failed",
			"exchange_id", x.ID,
			"entries", len(batch.Entries),
			"retryable", lerr.Retryable,
			"error", err,
		)
		return nil, lerr
	}
	if len(ids) != len(batch.Entries) {
		e.metrics.RecordLedgerFailure(false)
		return nil, &LedgerError{
			Err: fmt.Errorf("ledger returned %d transaction ids for %d entries", len(ids), len(batch.Entries)),
		}
	}
	return ids, nil
}
