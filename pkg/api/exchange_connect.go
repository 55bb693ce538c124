package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ExchangeServiceName is the fully-qualified name of the ExchangeService service.
const ExchangeServiceName = "groupexchange.v1.ExchangeService"

// Procedure paths of ExchangeService.
const (
	ExchangeServiceCreateExchangeProcedure      = "/groupexchange.v1.ExchangeService/CreateExchange"
	ExchangeServiceGetExchangeProcedure         = "/groupexchange.v1.ExchangeService/GetExchange"
	ExchangeServiceListExchangesProcedure       = "/groupexchange.v1.ExchangeService/ListExchanges"
	ExchangeServiceUpdateExchangeProcedure      = "/groupexchange.v1.ExchangeService/UpdateExchange"
	ExchangeServiceAddParticipantProcedure      = "/groupexchange.v1.ExchangeService/AddParticipant"
	ExchangeServiceRemoveParticipantProcedure   = "/groupexchange.v1.ExchangeService/RemoveParticipant"
	ExchangeServiceUpdateParticipantProcedure   = "/groupexchange.v1.ExchangeService/UpdateParticipant"
	ExchangeServiceStartExchangeProcedure       = "/groupexchange.v1.ExchangeService/StartExchange"
	ExchangeServiceApproveExchangeProcedure     = "/groupexchange.v1.ExchangeService/ApproveExchange"
	ExchangeServiceRejectExchangeProcedure      = "/groupexchange.v1.ExchangeService/RejectExchange"
	ExchangeServiceRequestConfirmationProcedure = "/groupexchange.v1.ExchangeService/RequestConfirmation"
	ExchangeServiceConfirmExchangeProcedure     = "/groupexchange.v1.ExchangeService/ConfirmExchange"
	ExchangeServiceDisputeExchangeProcedure     = "/groupexchange.v1.ExchangeService/DisputeExchange"
	ExchangeServiceResolveDisputeProcedure      = "/groupexchange.v1.ExchangeService/ResolveDispute"
	ExchangeServiceCompleteExchangeProcedure    = "/groupexchange.v1.ExchangeService/CompleteExchange"
	ExchangeServiceCancelExchangeProcedure      = "/groupexchange.v1.ExchangeService/CancelExchange"
	ExchangeServiceGetExchangeHistoryProcedure  = "/groupexchange.v1.ExchangeService/GetExchangeHistory"
	ExchangeServiceGetBalanceProcedure          = "/groupexchange.v1.ExchangeService/GetBalance"
)

// ExchangeServiceHandler is implemented by the server.
type ExchangeServiceHandler interface {
	CreateExchange(context.Context, *connect.Request[CreateExchangeRequest]) (*connect.Response[ExchangeResponse], error)
	GetExchange(context.Context, *connect.Request[GetExchangeRequest]) (*connect.Response[GetExchangeResponse], error)
	ListExchanges(context.Context, *connect.Request[ListExchangesRequest]) (*connect.Response[ListExchangesResponse], error)
	UpdateExchange(context.Context, *connect.Request[UpdateExchangeRequest]) (*connect.Response[ExchangeResponse], error)
	AddParticipant(context.Context, *connect.Request[AddParticipantRequest]) (*connect.Response[ExchangeResponse], error)
	RemoveParticipant(context.Context, *connect.Request[RemoveParticipantRequest]) (*connect.Response[ExchangeResponse], error)
	UpdateParticipant(context.Context, *connect.Request[UpdateParticipantRequest]) (*connect.Response[ExchangeResponse], error)
	StartExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	ApproveExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	RejectExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	RequestConfirmation(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	ConfirmExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	DisputeExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	ResolveDispute(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	CompleteExchange(context.Context, *connect.Request[CompleteExchangeRequest]) (*connect.Response[CompleteExchangeResponse], error)
	CancelExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	GetExchangeHistory(context.Context, *connect.Request[GetExchangeHistoryRequest]) (*connect.Response[GetExchangeHistoryResponse], error)
	GetBalance(context.Context, *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error)
}

// NewExchangeServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself. The JSON codec is always installed.
func NewExchangeServiceHandler(svc ExchangeServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	routes := map[string]http.Handler{
		ExchangeServiceCreateExchangeProcedure:      connect.NewUnaryHandler(ExchangeServiceCreateExchangeProcedure, svc.CreateExchange, opts...),
		ExchangeServiceGetExchangeProcedure:         connect.NewUnaryHandler(ExchangeServiceGetExchangeProcedure, svc.GetExchange, opts...),
		ExchangeServiceListExchangesProcedure:       connect.NewUnaryHandler(ExchangeServiceListExchangesProcedure, svc.ListExchanges, opts...),
		ExchangeServiceUpdateExchangeProcedure:      connect.NewUnaryHandler(ExchangeServiceUpdateExchangeProcedure, svc.UpdateExchange, opts...),
		ExchangeServiceAddParticipantProcedure:      connect.NewUnaryHandler(ExchangeServiceAddParticipantProcedure, svc.AddParticipant, opts...),
		ExchangeServiceRemoveParticipantProcedure:   connect.NewUnaryHandler(ExchangeServiceRemoveParticipantProcedure, svc.RemoveParticipant, opts...),
		ExchangeServiceUpdateParticipantProcedure:   connect.NewUnaryHandler(ExchangeServiceUpdateParticipantProcedure, svc.UpdateParticipant, opts...),
		ExchangeServiceStartExchangeProcedure:       connect.NewUnaryHandler(ExchangeServiceStartExchangeProcedure, svc.StartExchange, opts...),
		ExchangeServiceApproveExchangeProcedure:     connect.NewUnaryHandler(ExchangeServiceApproveExchangeProcedure, svc.ApproveExchange, opts...),
		ExchangeServiceRejectExchangeProcedure:      connect.NewUnaryHandler(ExchangeServiceRejectExchangeProcedure, svc.RejectExchange, opts...),
		ExchangeServiceRequestConfirmationProcedure: connect.NewUnaryHandler(ExchangeServiceRequestConfirmationProcedure, svc.RequestConfirmation, opts...),
		ExchangeServiceConfirmExchangeProcedure:     connect.NewUnaryHandler(ExchangeServiceConfirmExchangeProcedure, svc.ConfirmExchange, opts...),
		ExchangeServiceDisputeExchangeProcedure:     connect.NewUnaryHandler(ExchangeServiceDisputeExchangeProcedure, svc.DisputeExchange, opts...),
		ExchangeServiceResolveDisputeProcedure:      connect.NewUnaryHandler(ExchangeServiceResolveDisputeProcedure, svc.ResolveDispute, opts...),
		ExchangeServiceCompleteExchangeProcedure:    connect.NewUnaryHandler(ExchangeServiceCompleteExchangeProcedure, svc.CompleteExchange, opts...),
		ExchangeServiceCancelExchangeProcedure:      connect.NewUnaryHandler(ExchangeServiceCancelExchangeProcedure, svc.CancelExchange, opts...),
		ExchangeServiceGetExchangeHistoryProcedure:  connect.NewUnaryHandler(ExchangeServiceGetExchangeHistoryProcedure, svc.GetExchangeHistory, opts...),
		ExchangeServiceGetBalanceProcedure:          connect.NewUnaryHandler(ExchangeServiceGetBalanceProcedure, svc.GetBalance, opts...),
	}
	return "/" + ExchangeServiceName + "/", routeHandler(routes)
}

// ExchangeServiceClient calls ExchangeService.
type ExchangeServiceClient interface {
	CreateExchange(context.Context, *connect.Request[CreateExchangeRequest]) (*connect.Response[ExchangeResponse], error)
	GetExchange(context.Context, *connect.Request[GetExchangeRequest]) (*connect.Response[GetExchangeResponse], error)
	ListExchanges(context.Context, *connect.Request[ListExchangesRequest]) (*connect.Response[ListExchangesResponse], error)
	UpdateExchange(context.Context, *connect.Request[UpdateExchangeRequest]) (*connect.Response[ExchangeResponse], error)
	AddParticipant(context.Context, *connect.Request[AddParticipantRequest]) (*connect.Response[ExchangeResponse], error)
	RemoveParticipant(context.Context, *connect.Request[RemoveParticipantRequest]) (*connect.Response[ExchangeResponse], error)
	UpdateParticipant(context.Context, *connect.Request[UpdateParticipantRequest]) (*connect.Response[ExchangeResponse], error)
	StartExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	ApproveExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	RejectExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	RequestConfirmation(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	ConfirmExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	DisputeExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	ResolveDispute(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	CompleteExchange(context.Context, *connect.Request[CompleteExchangeRequest]) (*connect.Response[CompleteExchangeResponse], error)
	CancelExchange(context.Context, *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error)
	GetExchangeHistory(context.Context, *connect.Request[GetExchangeHistoryRequest]) (*connect.Response[GetExchangeHistoryResponse], error)
	GetBalance(context.Context, *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error)
}

// NewExchangeServiceClient constructs a client for ExchangeService at baseURL
// (for example, http://localhost:8080). The JSON codec is always installed.
func NewExchangeServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ExchangeServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &exchangeServiceClient{
		createExchange:      connect.NewClient[CreateExchangeRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceCreateExchangeProcedure, opts...),
		getExchange:         connect.NewClient[GetExchangeRequest, GetExchangeResponse](httpClient, baseURL+ExchangeServiceGetExchangeProcedure, opts...),
		listExchanges:       connect.NewClient[ListExchangesRequest, ListExchangesResponse](httpClient, baseURL+ExchangeServiceListExchangesProcedure, opts...),
		updateExchange:      connect.NewClient[UpdateExchangeRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceUpdateExchangeProcedure, opts...),
		addParticipant:      connect.NewClient[AddParticipantRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceAddParticipantProcedure, opts...),
		removeParticipant:   connect.NewClient[RemoveParticipantRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceRemoveParticipantProcedure, opts...),
		updateParticipant:   connect.NewClient[UpdateParticipantRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceUpdateParticipantProcedure, opts...),
		startExchange:       connect.NewClient[ExchangeActionRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceStartExchangeProcedure, opts...),
		approveExchange:     connect.NewClient[ExchangeActionRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceApproveExchangeProcedure, opts...),
		rejectExchange:      connect.NewClient[ExchangeActionRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceRejectExchangeProcedure, opts...),
		requestConfirmation: connect.NewClient[ExchangeActionRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceRequestConfirmationProcedure, opts...),
		confirmExchange:     connect.NewClient[ExchangeActionRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceConfirmExchangeProcedure, opts...),
		disputeExchange:     connect.NewClient[ExchangeActionRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceDisputeExchangeProcedure, opts...),
		resolveDispute:      connect.NewClient[ExchangeActionRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceResolveDisputeProcedure, opts...),
		completeExchange:    connect.NewClient[CompleteExchangeRequest, CompleteExchangeResponse](httpClient, baseURL+ExchangeServiceCompleteExchangeProcedure, opts...),
		cancelExchange:      connect.NewClient[ExchangeActionRequest, ExchangeResponse](httpClient, baseURL+ExchangeServiceCancelExchangeProcedure, opts...),
		getExchangeHistory:  connect.NewClient[GetExchangeHistoryRequest, GetExchangeHistoryResponse](httpClient, baseURL+ExchangeServiceGetExchangeHistoryProcedure, opts...),
		getBalance:          connect.NewClient[GetBalanceRequest, GetBalanceResponse](httpClient, baseURL+ExchangeServiceGetBalanceProcedure, opts...),
	}
}

type exchangeServiceClient struct {
	createExchange      *connect.Client[CreateExchangeRequest, ExchangeResponse]
	getExchange         *connect.Client[GetExchangeRequest, GetExchangeResponse]
	listExchanges       *connect.Client[ListExchangesRequest, ListExchangesResponse]
	updateExchange      *connect.Client[UpdateExchangeRequest, ExchangeResponse]
	addParticipant      *connect.Client[AddParticipantRequest, ExchangeResponse]
	removeParticipant   *connect.Client[RemoveParticipantRequest, ExchangeResponse]
	updateParticipant   *connect.Client[UpdateParticipantRequest, ExchangeResponse]
	startExchange       *connect.Client[ExchangeActionRequest, ExchangeResponse]
	approveExchange     *connect.Client[ExchangeActionRequest, ExchangeResponse]
	rejectExchange      *connect.Client[ExchangeActionRequest, ExchangeResponse]
	requestConfirmation *connect.Client[ExchangeActionRequest, ExchangeResponse]
	confirmExchange     *connect.Client[ExchangeActionRequest, ExchangeResponse]
	disputeExchange     *connect.Client[ExchangeActionRequest, ExchangeResponse]
	resolveDispute      *connect.Client[ExchangeActionRequest, ExchangeResponse]
	completeExchange    *connect.Client[CompleteExchangeRequest, CompleteExchangeResponse]
	cancelExchange      *connect.Client[ExchangeActionRequest, ExchangeResponse]
	getExchangeHistory  *connect.Client[GetExchangeHistoryRequest, GetExchangeHistoryResponse]
	getBalance          *connect.Client[GetBalanceRequest, GetBalanceResponse]
}

func (c *exchangeServiceClient) CreateExchange(ctx context.Context, req *connect.Request[CreateExchangeRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.createExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) GetExchange(ctx context.Context, req *connect.Request[GetExchangeRequest]) (*connect.Response[GetExchangeResponse], error) {
	return c.getExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) ListExchanges(ctx context.Context, req *connect.Request[ListExchangesRequest]) (*connect.Response[ListExchangesResponse], error) {
	return c.listExchanges.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) UpdateExchange(ctx context.Context, req *connect.Request[UpdateExchangeRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.updateExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) AddParticipant(ctx context.Context, req *connect.Request[AddParticipantRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.addParticipant.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) RemoveParticipant(ctx context.Context, req *connect.Request[RemoveParticipantRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.removeParticipant.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) UpdateParticipant(ctx context.Context, req *connect.Request[UpdateParticipantRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.updateParticipant.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) StartExchange(ctx context.Context, req *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.startExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) ApproveExchange(ctx context.Context, req *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.approveExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) RejectExchange(ctx context.Context, req *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.rejectExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) RequestConfirmation(ctx context.Context, req *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.requestConfirmation.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) ConfirmExchange(ctx context.Context, req *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.confirmExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) DisputeExchange(ctx context.Context, req *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.disputeExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) ResolveDispute(ctx context.Context, req *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.resolveDispute.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) CompleteExchange(ctx context.Context, req *connect.Request[CompleteExchangeRequest]) (*connect.Response[CompleteExchangeResponse], error) {
	return c.completeExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) CancelExchange(ctx context.Context, req *connect.Request[ExchangeActionRequest]) (*connect.Response[ExchangeResponse], error) {
	return c.cancelExchange.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) GetExchangeHistory(ctx context.Context, req *connect.Request[GetExchangeHistoryRequest]) (*connect.Response[GetExchangeHistoryResponse], error) {
	return c.getExchangeHistory.CallUnary(ctx, req)
}

func (c *exchangeServiceClient) GetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	return c.getBalance.CallUnary(ctx, req)
}

// routeHandler dispatches on the exact procedure path.
func routeHandler(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}
