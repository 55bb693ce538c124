package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupexchange/internal/access"
	"github.com/mmynk/groupexchange/internal/auth"
	"github.com/mmynk/groupexchange/internal/exchange"
	"github.com/mmynk/groupexchange/internal/middleware"
	"github.com/mmynk/groupexchange/internal/models"
	"github.com/mmynk/groupexchange/pkg/api"
)

// UserDirectory resolves display names for participants.
type UserDirectory interface {
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// BalanceReader reads a member's ledger balance.
type BalanceReader interface {
	Balance(ctx context.Context, tenantID, userID string) (decimal.Decimal, error)
}

// ExchangeService implements the Connect ExchangeService. It authenticates
// the caller, applies the access policy and delegates to the engine.
type ExchangeService struct {
	engine   *exchange.Engine
	policy   *access.Policy
	users    UserDirectory
	balances BalanceReader
	logger   *slog.Logger
}

var _ api.ExchangeServiceHandler = (*ExchangeService)(nil)

// NewExchangeService creates a new ExchangeService.
func NewExchangeService(engine *exchange.Engine, policy *access.Policy, users UserDirectory, balances BalanceReader, logger *slog.Logger) *ExchangeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExchangeService{
		engine:   engine,
		policy:   policy,
		users:    users,
		balances: balances,
		logger:   logger,
	}
}

// CreateExchange creates an exchange organized by the caller.
func (s *ExchangeService) CreateExchange(ctx context.Context, req *connect.Request[api.CreateExchangeRequest]) (*connect.Response[api.ExchangeResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "CreateExchange request received",
		"user_id", actor.UserID,
		"title", req.Msg.Title,
		"split_type", req.Msg.SplitType,
		"participants_count", len(req.Msg.Participants),
	)

	params := exchange.CreateParams{
		TenantID:    actor.TenantID,
		OrganizerID: actor.UserID,
		Title:       req.Msg.Title,
		Description: req.Msg.Description,
		ListingID:   req.Msg.ListingID,
		SplitType:   models.SplitType(req.Msg.SplitType),
		TotalHours:  req.Msg.TotalHours,
	}
	for _, in := range req.Msg.Participants {
		params.Participants = append(params.Participants, toNewParticipant(in))
	}

	x, err := s.engine.Create(ctx, params)
	if err != nil {
		return nil, s.fail(ctx, "CreateExchange", err)
	}
	return s.exchangeResponse(ctx, x), nil
}

// GetExchange returns the exchange with its live allocation preview.
func (s *ExchangeService) GetExchange(ctx context.Context, req *connect.Request[api.GetExchangeRequest]) (*connect.Response[api.GetExchangeResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	view, err := s.engine.Get(ctx, req.Msg.ExchangeID)
	if err != nil {
		return nil, s.fail(ctx, "GetExchange", err)
	}
	if err := s.policy.CanView(actor, view.Exchange); err != nil {
		return nil, s.fail(ctx, "GetExchange", err)
	}

	names := s.displayNames(ctx, view.Exchange)
	resp := &api.GetExchangeResponse{
		Exchange:       toAPIExchange(view.Exchange, names),
		Allocations:    make([]api.Allocation, 0, len(view.Allocations)),
		AllocatedTotal: view.AllocatedTotal,
		Totals:         make([]api.MemberTotal, 0, len(view.Totals)),
		Matrix:         view.Matrix,
		Calculable:     view.Calculable(),
		AllowedActions: s.actionsFor(actor, view),
	}
	for _, a := range view.Allocations {
		resp.Allocations = append(resp.Allocations, api.Allocation{
			ProviderID: a.ProviderID,
			ReceiverID: a.ReceiverID,
			Amount:     a.Amount,
		})
	}
	for _, t := range view.Totals {
		resp.Totals = append(resp.Totals, api.MemberTotal{
			UserID:   t.UserID,
			Given:    t.Given,
			Received: t.Received,
			Net:      t.Net,
		})
	}
	return connect.NewResponse(resp), nil
}

// ListExchanges lists the exchanges the caller organizes or participates in.
func (s *ExchangeService) ListExchanges(ctx context.Context, req *connect.Request[api.ListExchangesRequest]) (*connect.Response[api.ListExchangesResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	var status models.Status
	if req.Msg.Status != "" {
		if status, err = models.ParseStatus(req.Msg.Status); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
	}

	exchanges, err := s.engine.List(ctx, actor.TenantID, actor.UserID, status)
	if err != nil {
		return nil, s.fail(ctx, "ListExchanges", err)
	}

	out := make([]*api.Exchange, len(exchanges))
	for i, x := range exchanges {
		out[i] = toAPIExchange(x, nil)
	}
	s.logger.InfoContext(ctx, "ListExchanges successful", "user_id", actor.UserID, "count", len(out))
	return connect.NewResponse(&api.ListExchangesResponse{Exchanges: out}), nil
}

// UpdateExchange edits the exchange details.
func (s *ExchangeService) UpdateExchange(ctx context.Context, req *connect.Request[api.UpdateExchangeRequest]) (*connect.Response[api.ExchangeResponse], error) {
	u := exchange.DetailsUpdate{
		Title:       req.Msg.Title,
		Description: req.Msg.Description,
		ListingID:   req.Msg.ListingID,
		TotalHours:  req.Msg.TotalHours,
	}
	if req.Msg.SplitType != nil {
		st := models.SplitType(*req.Msg.SplitType)
		u.SplitType = &st
	}
	return s.command(ctx, "UpdateExchange", req.Msg.ExchangeID, exchange.ActionUpdateDetails, "",
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.UpdateDetails(ctx, req.Msg.ExchangeID, actor.UserID, u)
		})
}

// AddParticipant attaches a member to the exchange.
func (s *ExchangeService) AddParticipant(ctx context.Context, req *connect.Request[api.AddParticipantRequest]) (*connect.Response[api.ExchangeResponse], error) {
	in := toNewParticipant(req.Msg.Participant)
	return s.command(ctx, "AddParticipant", req.Msg.ExchangeID, exchange.ActionAddParticipant, in.UserID,
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.AddParticipant(ctx, req.Msg.ExchangeID, actor.UserID, in)
		})
}

// RemoveParticipant detaches a member from the exchange.
func (s *ExchangeService) RemoveParticipant(ctx context.Context, req *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "RemoveParticipant", req.Msg.ExchangeID, exchange.ActionRemoveParticipant, req.Msg.UserID,
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.RemoveParticipant(ctx, req.Msg.ExchangeID, actor.UserID, req.Msg.UserID)
		})
}

// UpdateParticipant changes declared hours, weight or notes. Without a user
// ID the caller's own values are updated.
func (s *ExchangeService) UpdateParticipant(ctx context.Context, req *connect.Request[api.UpdateParticipantRequest]) (*connect.Response[api.ExchangeResponse], error) {
	subjectID := req.Msg.UserID
	if subjectID == "" {
		subjectID = middleware.GetUserID(ctx)
	}
	v := exchange.Values{
		Hours:  req.Msg.Hours,
		Weight: req.Msg.Weight,
		Notes:  req.Msg.Notes,
	}
	return s.command(ctx, "UpdateParticipant", req.Msg.ExchangeID, exchange.ActionUpdateValues, subjectID,
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.UpdateParticipantValues(ctx, req.Msg.ExchangeID, actor.UserID, subjectID, v)
		})
}

// StartExchange locks the roster.
func (s *ExchangeService) StartExchange(ctx context.Context, req *connect.Request[api.ExchangeActionRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "StartExchange", req.Msg.ExchangeID, exchange.ActionStart, "",
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.Start(ctx, req.Msg.ExchangeID, actor.UserID)
		})
}

// ApproveExchange is the broker sign-off.
func (s *ExchangeService) ApproveExchange(ctx context.Context, req *connect.Request[api.ExchangeActionRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "ApproveExchange", req.Msg.ExchangeID, exchange.ActionApprove, "",
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.Approve(ctx, req.Msg.ExchangeID, actor.UserID, req.Msg.Notes)
		})
}

// RejectExchange is the broker refusal. It cancels the exchange.
func (s *ExchangeService) RejectExchange(ctx context.Context, req *connect.Request[api.ExchangeActionRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "RejectExchange", req.Msg.ExchangeID, exchange.ActionReject, "",
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.Reject(ctx, req.Msg.ExchangeID, actor.UserID, req.Msg.Notes)
		})
}

// RequestConfirmation moves an approved exchange to confirmation collection.
func (s *ExchangeService) RequestConfirmation(ctx context.Context, req *connect.Request[api.ExchangeActionRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "RequestConfirmation", req.Msg.ExchangeID, exchange.ActionRequestConfirmation, "",
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.RequestConfirmation(ctx, req.Msg.ExchangeID, actor.UserID)
		})
}

// ConfirmExchange records the caller's confirmation.
func (s *ExchangeService) ConfirmExchange(ctx context.Context, req *connect.Request[api.ExchangeActionRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "ConfirmExchange", req.Msg.ExchangeID, exchange.ActionConfirm, middleware.GetUserID(ctx),
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.Confirm(ctx, req.Msg.ExchangeID, actor.UserID)
		})
}

// DisputeExchange raises a dispute. Notes carries the reason.
func (s *ExchangeService) DisputeExchange(ctx context.Context, req *connect.Request[api.ExchangeActionRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "DisputeExchange", req.Msg.ExchangeID, exchange.ActionDispute, middleware.GetUserID(ctx),
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.Dispute(ctx, req.Msg.ExchangeID, actor.UserID, req.Msg.Notes)
		})
}

// ResolveDispute returns a disputed exchange to confirmation collection.
func (s *ExchangeService) ResolveDispute(ctx context.Context, req *connect.Request[api.ExchangeActionRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "ResolveDispute", req.Msg.ExchangeID, exchange.ActionResolve, "",
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.Resolve(ctx, req.Msg.ExchangeID, actor.UserID, req.Msg.Notes)
		})
}

// CancelExchange cancels the exchange. Notes carries the reason.
func (s *ExchangeService) CancelExchange(ctx context.Context, req *connect.Request[api.ExchangeActionRequest]) (*connect.Response[api.ExchangeResponse], error) {
	return s.command(ctx, "CancelExchange", req.Msg.ExchangeID, exchange.ActionCancel, "",
		func(actor access.Actor) (*models.Exchange, error) {
			return s.engine.Cancel(ctx, req.Msg.ExchangeID, actor.UserID, req.Msg.Notes)
		})
}

// CompleteExchange settles the exchange on the ledger.
func (s *ExchangeService) CompleteExchange(ctx context.Context, req *connect.Request[api.CompleteExchangeRequest]) (*connect.Response[api.CompleteExchangeResponse], error) {
	actor, err := s.authorize(ctx, req.Msg.ExchangeID, exchange.ActionComplete, "")
	if err != nil {
		return nil, s.fail(ctx, "CompleteExchange", err)
	}

	txIDs, err := s.engine.Complete(ctx, req.Msg.ExchangeID, actor.UserID)
	if err != nil {
		return nil, s.fail(ctx, "CompleteExchange", err)
	}

	view, err := s.engine.Get(ctx, req.Msg.ExchangeID)
	if err != nil {
		return nil, s.fail(ctx, "CompleteExchange", err)
	}

	s.logger.InfoContext(ctx, "CompleteExchange successful",
		"exchange_id", req.Msg.ExchangeID,
		"transactions", len(txIDs),
	)
	return connect.NewResponse(&api.CompleteExchangeResponse{
		TransactionIDs: txIDs,
		Exchange:       toAPIExchange(view.Exchange, s.displayNames(ctx, view.Exchange)),
	}), nil
}

// GetExchangeHistory returns the audit trail, oldest first.
func (s *ExchangeService) GetExchangeHistory(ctx context.Context, req *connect.Request[api.GetExchangeHistoryRequest]) (*connect.Response[api.GetExchangeHistoryResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	view, err := s.engine.Get(ctx, req.Msg.ExchangeID)
	if err != nil {
		return nil, s.fail(ctx, "GetExchangeHistory", err)
	}
	if err := s.policy.CanView(actor, view.Exchange); err != nil {
		return nil, s.fail(ctx, "GetExchangeHistory", err)
	}

	history, err := s.engine.History(ctx, req.Msg.ExchangeID)
	if err != nil {
		return nil, s.fail(ctx, "GetExchangeHistory", err)
	}

	entries := make([]api.HistoryEntry, len(history))
	for i, h := range history {
		entries[i] = api.HistoryEntry{
			Action:    h.Action,
			ActorID:   h.ActorID,
			OldStatus: string(h.OldStatus),
			NewStatus: string(h.NewStatus),
			Notes:     h.Notes,
			CreatedAt: h.CreatedAt,
		}
	}
	return connect.NewResponse(&api.GetExchangeHistoryResponse{Entries: entries}), nil
}

// GetBalance returns the caller's ledger balance.
func (s *ExchangeService) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.balances.Balance(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, s.fail(ctx, "GetBalance", err)
	}
	return connect.NewResponse(&api.GetBalanceResponse{Balance: balance}), nil
}

type commandFunc func(actor access.Actor) (*models.Exchange, error)

// command authorizes the caller for action and runs fn.
func (s *ExchangeService) command(ctx context.Context, op, exchangeID string, action exchange.Action, subjectID string, fn commandFunc) (*connect.Response[api.ExchangeResponse], error) {
	s.logger.InfoContext(ctx, op+" request received", "exchange_id", exchangeID)

	actor, err := s.authorize(ctx, exchangeID, action, subjectID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	x, err := fn(actor)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	s.logger.InfoContext(ctx, op+" successful", "exchange_id", x.ID, "status", x.Status)
	return s.exchangeResponse(ctx, x), nil
}

func (s *ExchangeService) authorize(ctx context.Context, exchangeID string, action exchange.Action, subjectID string) (access.Actor, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return actor, err
	}
	view, err := s.engine.Get(ctx, exchangeID)
	if err != nil {
		return actor, err
	}
	return actor, s.policy.Authorize(actor, action, view.Exchange, subjectID)
}

// actionsFor narrows the state-allowed actions to those the actor may issue.
func (s *ExchangeService) actionsFor(actor access.Actor, view *exchange.View) []string {
	_, participant := view.Exchange.Participant(actor.UserID)
	out := make([]string, 0, len(view.AllowedActions))
	for _, a := range view.AllowedActions {
		if (a == exchange.ActionConfirm || a == exchange.ActionDispute) && !participant {
			continue
		}
		if s.policy.Authorize(actor, a, view.Exchange, actor.UserID) != nil {
			continue
		}
		out = append(out, string(a))
	}
	return out
}

func (s *ExchangeService) exchangeResponse(ctx context.Context, x *models.Exchange) *connect.Response[api.ExchangeResponse] {
	return connect.NewResponse(&api.ExchangeResponse{Exchange: toAPIExchange(x, s.displayNames(ctx, x))})
}

// displayNames is best effort; a lookup failure leaves names empty.
func (s *ExchangeService) displayNames(ctx context.Context, x *models.Exchange) map[string]string {
	if s.users == nil || len(x.Participants) == 0 {
		return nil
	}
	ids := make([]string, len(x.Participants))
	for i, p := range x.Participants {
		ids[i] = p.UserID
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to resolve display names", "exchange_id", x.ID, "error", err)
		return nil
	}
	names := make(map[string]string, len(users))
	for id, u := range users {
		names[id] = u.DisplayName
	}
	return names
}

// fail logs err and converts it to a Connect error.
func (s *ExchangeService) fail(ctx context.Context, op string, err error) error {
	cerr := toConnectError(err)
	switch cerr.Code() {
	case connect.CodeInternal, connect.CodeUnavailable, connect.CodeUnknown:
		s.logger.ErrorContext(ctx, op+" failed", "code", cerr.Code().String(), "error", err)
	default:
		s.logger.WarnContext(ctx, op+" rejected", "code", cerr.Code().String(), "error", err)
	}
	return cerr
}

func actorFrom(ctx context.Context) (access.Actor, error) {
	actor := access.Actor{
		UserID:   middleware.GetUserID(ctx),
		TenantID: middleware.GetTenantID(ctx),
	}
	if actor.UserID == "" {
		return actor, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return actor, nil
}

func toNewParticipant(in api.ParticipantInput) exchange.NewParticipant {
	return exchange.NewParticipant{
		UserID: in.UserID,
		Role:   models.Role(in.Role),
		Hours:  in.Hours,
		Weight: in.Weight,
		Notes:  in.Notes,
	}
}

func toAPIExchange(x *models.Exchange, names map[string]string) *api.Exchange {
	out := &api.Exchange{
		ID:             x.ID,
		TenantID:       x.TenantID,
		Title:          x.Title,
		Description:    x.Description,
		OrganizerID:    x.OrganizerID,
		ListingID:      x.ListingID,
		Status:         string(x.Status),
		SplitType:      string(x.SplitType),
		TotalHours:     x.TotalHours,
		BrokerID:       x.BrokerID,
		BrokerNotes:    x.BrokerNotes,
		TransactionIDs: x.TransactionIDs,
		Participants:   make([]api.Participant, len(x.Participants)),
		CompletedAt:    x.CompletedAt,
		CreatedAt:      x.CreatedAt,
		UpdatedAt:      x.UpdatedAt,
		Version:        x.Version,
	}
	for i, p := range x.Participants {
		out.Participants[i] = api.Participant{
			UserID:      p.UserID,
			DisplayName: names[p.UserID],
			Role:        string(p.Role),
			Hours:       p.Hours,
			Weight:      p.Weight,
			Confirmed:   p.Confirmed,
			ConfirmedAt: p.ConfirmedAt,
			Notes:       p.Notes,
			JoinedAt:    p.JoinedAt,
		}
	}
	return out
}
