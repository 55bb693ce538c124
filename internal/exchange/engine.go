// Package exchange implements the group exchange engine: the participant
// registry, the lifecycle state machine and the settlement committer.
//
// Every mutating command runs under an exchange-scoped lock and is applied to
// freshly loaded state, so concurrent confirmations, roster edits and
// completions on one exchange are serialized. Authorization is the caller's
// job; the engine enforces state and data invariants only.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupexchange/internal/calculator"
	"github.com/mmynk/groupexchange/internal/lock"
	"github.com/mmynk/groupexchange/internal/models"
	"github.com/mmynk/groupexchange/internal/notify"
	"github.com/mmynk/groupexchange/internal/observability"
	"github.com/mmynk/groupexchange/internal/storage"
)

// Ledger posts a batch of transfers atomically. Posting the same batch twice
// must return the transactions created the first time. VoidBatch removes a
// batch no exchange has recorded and is a no-op for unknown keys.
type Ledger interface {
	PostBatch(ctx context.Context, batch models.LedgerBatch) ([]string, error)
	VoidBatch(ctx context.Context, key string) error
}

// Locker provides exchange-scoped mutual exclusion.
type Locker interface {
	Lock(ctx context.Context, key string) (lock.Unlock, error)
}

// Notifier dispatches notifications. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// UserLookup resolves users. A nil user with a nil error means not found.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// BrokerPolicy decides whether an exchange needs broker sign-off before
// confirmations are collected.
type BrokerPolicy struct {
	// MaxHoursWithoutApproval routes exchanges above this total to
	// pending_broker. Zero disables broker approval.
	MaxHoursWithoutApproval decimal.Decimal
}

// RequiresApproval reports whether total exceeds the threshold.
func (p BrokerPolicy) RequiresApproval(total decimal.Decimal) bool {
	return p.MaxHoursWithoutApproval.IsPositive() && total.GreaterThan(p.MaxHoursWithoutApproval)
}

// DefaultLedgerTimeout bounds a single ledger post.
const DefaultLedgerTimeout = 10 * time.Second

// Engine applies commands to exchanges.
type Engine struct {
	store         storage.Store
	ledger        Ledger
	locker        Locker
	users         UserLookup
	notifier      Notifier
	metrics       *observability.Metrics
	policy        BrokerPolicy
	ledgerTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker replaces the default in-process lock.
func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }

// WithUserLookup makes AddParticipant resolve users in the exchange's tenant.
func WithUserLookup(u UserLookup) Option { return func(e *Engine) { e.users = u } }

// WithNotifier sets the notification dispatcher.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithMetrics records engine metrics.
func WithMetrics(m *observability.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithBrokerPolicy enables the broker approval branch.
func WithBrokerPolicy(p BrokerPolicy) Option { return func(e *Engine) { e.policy = p } }

// WithLedgerTimeout bounds each ledger post.
func WithLedgerTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ledgerTimeout = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// New creates an engine over store that settles into ledger.
func New(store storage.Store, ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		ledger:        ledger,
		locker:        lock.NewLocal(),
		notifier:      notify.Discard{},
		ledgerTimeout: DefaultLedgerTimeout,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateParams describes a new exchange.
type CreateParams struct {
	TenantID     string
	OrganizerID  string
	Title        string
	Description  string
	ListingID    string
	SplitType    models.SplitType
	TotalHours   decimal.Decimal
	Participants []NewParticipant
}

// Create stores a new exchange in draft, or in pending_participants when
// initial participants are given.
func (e *Engine) Create(ctx context.Context, p CreateParams) (x *models.Exchange, err error) {
	defer func() { e.metrics.RecordCommand(string(ActionCreate), err) }()

	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidValue)
	}
	if p.OrganizerID == "" {
		return nil, fmt.Errorf("%w: organizer is required", ErrInvalidValue)
	}
	if !p.TotalHours.IsPositive() {
		return nil, fmt.Errorf("%w: total hours must be positive, got %s", ErrInvalidValue, p.TotalHours)
	}
	splitType, perr := models.ParseSplitType(string(p.SplitType))
	if perr != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSplitType, p.SplitType)
	}

	now := e.now().Unix()
	x = &models.Exchange{
		TenantID:    p.TenantID,
		Title:       title,
		Description: p.Description,
		OrganizerID: p.OrganizerID,
		ListingID:   p.ListingID,
		Status:      models.StatusDraft,
		SplitType:   splitType,
		TotalHours:  p.TotalHours,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, in := range p.Participants {
		if err := e.addParticipant(ctx, x, in, now); err != nil {
			return nil, err
		}
	}

	entry := models.HistoryEntry{
		Action:    string(ActionCreate),
		ActorID:   p.OrganizerID,
		NewStatus: x.Status,
		CreatedAt: now,
	}
	if err := e.store.CreateExchange(ctx, x, entry); err != nil {
		return nil, fmt.Errorf("failed to create exchange: %w", err)
	}

	e.logger.InfoContext(ctx, "Exchange created",
		"exchange_id", x.ID,
		"tenant_id", x.TenantID,
		"organizer_id", x.OrganizerID,
		"split_type", x.SplitType,
		"total_hours", x.TotalHours.String(),
		"participants", len(x.Participants),
	)
	return x, nil
}

// DetailsUpdate is a partial update of exchange details. Nil fields are left
// unchanged.
type DetailsUpdate struct {
	Title       *string
	Description *string
	ListingID   *string
	// TotalHours may change only while the roster is editable.
	TotalHours *decimal.Decimal
	// SplitType may change only in draft.
	SplitType *models.SplitType
}

// UpdateDetails edits title, description, listing, total hours or split type.
func (e *Engine) UpdateDetails(ctx context.Context, exchangeID, actorID string, u DetailsUpdate) (*models.Exchange, error) {
	return e.mutate(ctx, exchangeID, actorID, ActionUpdateDetails, func(x *models.Exchange, _ *models.HistoryEntry) (bool, error) {
		if x.Status.IsTerminal() {
			return false, fmt.Errorf("%w: exchange is %s", ErrWrongState, x.Status)
		}
		if u.Title != nil {
			title := strings.TrimSpace(*u.Title)
			if title == "" {
				return false, fmt.Errorf("%w: title is required", ErrInvalidValue)
			}
			x.Title = title
		}
		if u.Description != nil {
			x.Description = *u.Description
		}
		if u.ListingID != nil {
			x.ListingID = *u.ListingID
		}
		if u.TotalHours != nil && !u.TotalHours.Equal(x.TotalHours) {
			if !u.TotalHours.IsPositive() {
				return false, fmt.Errorf("%w: total hours must be positive, got %s", ErrInvalidValue, u.TotalHours)
			}
			if !x.Status.RosterEditable() {
				return false, fmt.Errorf("%w: total hours are fixed once the exchange is %s", ErrWrongState, x.Status)
			}
			x.TotalHours = *u.TotalHours
		}
		if u.SplitType != nil && *u.SplitType != x.SplitType {
			splitType, err := models.ParseSplitType(string(*u.SplitType))
			if err != nil {
				return false, fmt.Errorf("%w: %q", ErrInvalidSplitType, *u.SplitType)
			}
			if x.Status != models.StatusDraft {
				return false, fmt.Errorf("%w: split type is fixed once the exchange leaves %s", ErrWrongState, models.StatusDraft)
			}
			x.SplitType = splitType
		}
		return true, nil
	})
}

// AddParticipant attaches a user to the exchange.
func (e *Engine) AddParticipant(ctx context.Context, exchangeID, actorID string, in NewParticipant) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, actorID, ActionAddParticipant, func(x *models.Exchange, entry *models.HistoryEntry) (bool, error) {
		if err := e.addParticipant(ctx, x, in, e.now().Unix()); err != nil {
			return false, err
		}
		entry.Notes = fmt.Sprintf("%s as %s", in.UserID, in.Role)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, x, "participant_added", []string{in.UserID},
		fmt.Sprintf("You were added to %q as %s", x.Title, in.Role))
	return x, nil
}

func (e *Engine) addParticipant(ctx context.Context, x *models.Exchange, in NewParticipant, now int64) error {
	if err := checkAdd(x, in); err != nil {
		return err
	}
	if e.users != nil {
		user, err := e.users.GetUserByID(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("failed to look up user: %w", err)
		}
		if user == nil || user.TenantID != x.TenantID {
			return fmt.Errorf("%w: %s", ErrUnknownUser, in.UserID)
		}
	}
	return applyAdd(x, in, now)
}

// RemoveParticipant detaches a user while the roster is editable.
func (e *Engine) RemoveParticipant(ctx context.Context, exchangeID, actorID, userID string) (*models.Exchange, error) {
	return e.mutate(ctx, exchangeID, actorID, ActionRemoveParticipant, func(x *models.Exchange, entry *models.HistoryEntry) (bool, error) {
		if err := removeParticipant(x, userID); err != nil {
			return false, err
		}
		entry.Notes = userID
		return true, nil
	})
}

// UpdateParticipantValues changes a participant's declared hours, weight or
// notes. A change to hours or weight withdraws every confirmation.
func (e *Engine) UpdateParticipantValues(ctx context.Context, exchangeID, actorID, userID string, v Values) (*models.Exchange, error) {
	var reset bool
	x, err := e.mutate(ctx, exchangeID, actorID, ActionUpdateValues, func(x *models.Exchange, entry *models.HistoryEntry) (bool, error) {
		hadConfirmations := anyConfirmed(x.Participants)
		changed, err := updateValues(x, userID, v)
		if err != nil {
			return false, err
		}
		if !changed && v.Notes == nil {
			return false, nil
		}
		reset = changed && hadConfirmations
		entry.Notes = userID
		if reset {
			entry.Notes += "; confirmations reset"
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if reset {
		e.notify(ctx, x, "confirmations_reset", participantIDs(x),
			fmt.Sprintf("Values in %q changed; please review and confirm again", x.Title))
	}
	return x, nil
}

// SetDeclaredHours sets the hours a participant declares under the custom split.
func (e *Engine) SetDeclaredHours(ctx context.Context, exchangeID, actorID, userID string, hours decimal.Decimal) (*models.Exchange, error) {
	return e.UpdateParticipantValues(ctx, exchangeID, actorID, userID, Values{Hours: &hours})
}

// SetDeclaredWeight sets the weight a participant declares under the weighted split.
func (e *Engine) SetDeclaredWeight(ctx context.Context, exchangeID, actorID, userID string, weight decimal.Decimal) (*models.Exchange, error) {
	return e.UpdateParticipantValues(ctx, exchangeID, actorID, userID, Values{Weight: &weight})
}

// Start closes the roster. The exchange moves to pending_confirmation, or to
// pending_broker when the broker policy requires sign-off.
func (e *Engine) Start(ctx context.Context, exchangeID, actorID string) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, actorID, ActionStart, func(x *models.Exchange, _ *models.HistoryEntry) (bool, error) {
		if !CanTransition(x.Status, ActionStart) {
			return false, &TransitionError{From: x.Status, Action: ActionStart, To: models.StatusPendingConfirmation}
		}
		if err := checkSettleable(x); err != nil {
			return false, err
		}

		to := models.StatusPendingConfirmation
		if e.policy.RequiresApproval(x.TotalHours) {
			to = models.StatusPendingBroker
		}
		if err := transition(x.Status, ActionStart, to); err != nil {
			return false, err
		}
		x.Status = to
		resetConfirmations(x)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if x.Status == models.StatusPendingBroker {
		e.notify(ctx, x, "approval_requested", nil,
			fmt.Sprintf("%q (%s hours) needs broker approval", x.Title, x.TotalHours))
	} else {
		e.notify(ctx, x, "confirmation_requested", participantIDs(x),
			fmt.Sprintf("Please confirm your part in %q", x.Title))
	}
	return x, nil
}

// Approve records broker sign-off and activates the exchange.
func (e *Engine) Approve(ctx context.Context, exchangeID, brokerID, notes string) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, brokerID, ActionApprove, func(x *models.Exchange, entry *models.HistoryEntry) (bool, error) {
		if err := e.step(x, ActionApprove); err != nil {
			return false, err
		}
		x.BrokerID = brokerID
		x.BrokerNotes = notes
		entry.Notes = notes
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, x, "approved", []string{x.OrganizerID}, fmt.Sprintf("%q was approved", x.Title))
	return x, nil
}

// Reject records a broker refusal and cancels the exchange.
func (e *Engine) Reject(ctx context.Context, exchangeID, brokerID, notes string) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, brokerID, ActionReject, func(x *models.Exchange, entry *models.HistoryEntry) (bool, error) {
		if err := e.step(x, ActionReject); err != nil {
			return false, err
		}
		x.BrokerID = brokerID
		x.BrokerNotes = notes
		entry.Notes = notes
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, x, "rejected", append([]string{x.OrganizerID}, participantIDs(x)...),
		fmt.Sprintf("%q was rejected by a broker", x.Title))
	return x, nil
}

// RequestConfirmation moves an approved exchange to pending_confirmation.
func (e *Engine) RequestConfirmation(ctx context.Context, exchangeID, actorID string) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, actorID, ActionRequestConfirmation, func(x *models.Exchange, _ *models.HistoryEntry) (bool, error) {
		if err := e.step(x, ActionRequestConfirmation); err != nil {
			return false, err
		}
		resetConfirmations(x)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, x, "confirmation_requested", participantIDs(x),
		fmt.Sprintf("Please confirm your part in %q", x.Title))
	return x, nil
}

// Confirm records userID's confirmation. Confirming twice is a no-op.
func (e *Engine) Confirm(ctx context.Context, exchangeID, userID string) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, userID, ActionConfirm, func(x *models.Exchange, _ *models.HistoryEntry) (bool, error) {
		return confirm(x, userID, e.now().Unix())
	})
	if err != nil {
		return nil, err
	}

	if x.AllConfirmed() {
		e.notify(ctx, x, "ready_to_complete", []string{x.OrganizerID},
			fmt.Sprintf("Everyone confirmed %q; it can be completed", x.Title))
	}
	return x, nil
}

// Dispute blocks completion until a broker resolves it.
func (e *Engine) Dispute(ctx context.Context, exchangeID, userID, reason string) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, userID, ActionDispute, func(x *models.Exchange, entry *models.HistoryEntry) (bool, error) {
		if _, ok := x.Participant(userID); !ok {
			return false, fmt.Errorf("%w: %s", ErrNotAParticipant, userID)
		}
		if strings.TrimSpace(reason) == "" {
			return false, fmt.Errorf("%w: a dispute needs a reason", ErrInvalidValue)
		}
		if err := e.step(x, ActionDispute); err != nil {
			return false, err
		}
		entry.Notes = reason
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, x, "disputed", []string{x.OrganizerID},
		fmt.Sprintf("%q was disputed: %s", x.Title, reason))
	return x, nil
}

// Resolve closes a dispute. Confirmations are collected again from scratch.
func (e *Engine) Resolve(ctx context.Context, exchangeID, brokerID, notes string) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, brokerID, ActionResolve, func(x *models.Exchange, entry *models.HistoryEntry) (bool, error) {
		if err := e.step(x, ActionResolve); err != nil {
			return false, err
		}
		resetConfirmations(x)
		x.BrokerID = brokerID
		x.BrokerNotes = notes
		entry.Notes = notes
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, x, "dispute_resolved", append([]string{x.OrganizerID}, participantIDs(x)...),
		fmt.Sprintf("The dispute on %q was resolved; please confirm again", x.Title))
	return x, nil
}

// Cancel permanently cancels a non-terminal exchange. No ledger transactions
// are ever created for a cancelled exchange.
func (e *Engine) Cancel(ctx context.Context, exchangeID, actorID, reason string) (*models.Exchange, error) {
	x, err := e.mutate(ctx, exchangeID, actorID, ActionCancel, func(x *models.Exchange, entry *models.HistoryEntry) (bool, error) {
		if err := e.step(x, ActionCancel); err != nil {
			return false, err
		}
		if err := e.voidOrphan(ctx, x); err != nil {
			return false, err
		}
		entry.Notes = reason
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, x, "cancelled", participantIDs(x), fmt.Sprintf("%q was cancelled", x.Title))
	return x, nil
}

// View is the read model of an exchange.
type View struct {
	Exchange *models.Exchange

	// Allocations is recomputed from the current participant values on every
	// read. It is empty when the split cannot be calculated.
	Allocations    []models.Allocation
	AllocatedTotal decimal.Decimal
	Totals         []calculator.MemberTotal
	Matrix         map[string]map[string]decimal.Decimal
	AllowedActions []Action
}

// Calculable reports whether the current values produce any transfer.
func (v *View) Calculable() bool {
	return len(v.Allocations) > 0
}

// Get returns the exchange with a live allocation preview.
func (e *Engine) Get(ctx context.Context, exchangeID string) (*View, error) {
	x, err := e.store.GetExchange(ctx, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange %s: %w", exchangeID, err)
	}

	allocations := calculator.Positive(calculator.ComputeAllocations(x.Participants, x.SplitType, x.TotalHours))
	return &View{
		Exchange:       x,
		Allocations:    allocations,
		AllocatedTotal: calculator.Total(allocations),
		Totals:         calculator.Summarize(allocations),
		Matrix:         calculator.Matrix(allocations),
		AllowedActions: AllowedActions(x.Status),
	}, nil
}

// List returns the exchanges userID organizes or participates in.
func (e *Engine) List(ctx context.Context, tenantID, userID string, status models.Status) ([]*models.Exchange, error) {
	exchanges, err := e.store.ListExchangesForUser(ctx, tenantID, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	return exchanges, nil
}

// History returns the audit trail of an exchange, oldest first.
func (e *Engine) History(ctx context.Context, exchangeID string) ([]models.HistoryEntry, error) {
	if _, err := e.store.GetExchange(ctx, exchangeID); err != nil {
		return nil, fmt.Errorf("failed to get exchange %s: %w", exchangeID, err)
	}
	entries, err := e.store.ListHistory(ctx, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// mutateFunc applies a command to freshly loaded state. It returns false to
// skip the save, for commands that turn out to be no-ops.
type mutateFunc func(x *models.Exchange, entry *models.HistoryEntry) (bool, error)

// mutate loads the exchange under its lock, applies fn and saves the result
// together with a history entry.
func (e *Engine) mutate(ctx context.Context, exchangeID, actorID string, action Action, fn mutateFunc) (x *models.Exchange, err error) {
	defer func() { e.metrics.RecordCommand(string(action), err) }()

	err = e.withExchange(ctx, exchangeID, func(loaded *models.Exchange) error {
		entry := newEntry(loaded, actorID, action)
		changed, err := fn(loaded, &entry)
		if err != nil {
			return err
		}
		if changed {
			if err := e.save(ctx, loaded, entry); err != nil {
				return err
			}
		}
		x = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return x, nil
}

// withExchange holds the exchange lock while fn runs on freshly loaded state.
func (e *Engine) withExchange(ctx context.Context, exchangeID string, fn func(x *models.Exchange) error) error {
	unlock, err := e.locker.Lock(ctx, lockKey(exchangeID))
	if err != nil {
		return fmt.Errorf("failed to lock exchange %s: %w", exchangeID, err)
	}
	defer unlock()

	x, err := e.store.GetExchange(ctx, exchangeID)
	if err != nil {
		return fmt.Errorf("failed to get exchange %s: %w", exchangeID, err)
	}
	return fn(x)
}

func newEntry(x *models.Exchange, actorID string, action Action) models.HistoryEntry {
	return models.HistoryEntry{
		ExchangeID: x.ID,
		Action:     string(action),
		ActorID:    actorID,
		OldStatus:  x.Status,
	}
}

// save persists x with entry appended to its history.
func (e *Engine) save(ctx context.Context, x *models.Exchange, entry models.HistoryEntry) error {
	now := e.now().Unix()
	x.UpdatedAt = now
	entry.NewStatus = x.Status
	entry.CreatedAt = now
	if err := e.store.SaveExchange(ctx, x, entry); err != nil {
		return fmt.Errorf("failed to save exchange %s: %w", x.ID, err)
	}

	if entry.OldStatus != entry.NewStatus {
		e.logger.InfoContext(ctx, "Exchange status changed",
			"exchange_id", x.ID,
			"action", entry.Action,
			"actor_id", entry.ActorID,
			"from", entry.OldStatus,
			"to", entry.NewStatus,
		)
	}
	return nil
}

// step moves x along the default edge for action.
func (e *Engine) step(x *models.Exchange, action Action) error {
	to, err := target(x.Status, action)
	if err != nil {
		return err
	}
	x.Status = to
	return nil
}

func (e *Engine) notify(ctx context.Context, x *models.Exchange, kind string, recipients []string, message string) {
	e.notifier.Notify(ctx, models.Notification{
		Kind:       kind,
		ExchangeID: x.ID,
		TenantID:   x.TenantID,
		Title:      x.Title,
		Recipients: recipients,
		Message:    message,
	})
}

func lockKey(exchangeID string) string {
	return "exchange:" + exchangeID
}

func participantIDs(x *models.Exchange) []string {
	ids := make([]string, 0, len(x.Participants))
	for _, p := range x.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

func anyConfirmed(ps []models.Participant) bool {
	for _, p := range ps {
		if p.Confirmed {
			return true
		}
	}
	return false
}
