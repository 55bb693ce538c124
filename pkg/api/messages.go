package api

import "github.com/shopspring/decimal"

// User is a member account.
type User struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

// Participant is one member's place in an exchange.
type Participant struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName,omitempty"`
	Role        string          `json:"role"`
	Hours       decimal.Decimal `json:"hours"`
	Weight      decimal.Decimal `json:"weight"`
	Confirmed   bool            `json:"confirmed"`
	ConfirmedAt int64           `json:"confirmedAt,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	JoinedAt    int64           `json:"joinedAt"`
}

// Exchange is the full state of a group exchange.
type Exchange struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenantId"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	OrganizerID    string          `json:"organizerId"`
	ListingID      string          `json:"listingId,omitempty"`
	Status         string          `json:"status"`
	SplitType      string          `json:"splitType"`
	TotalHours     decimal.Decimal `json:"totalHours"`
	BrokerID       string          `json:"brokerId,omitempty"`
	BrokerNotes    string          `json:"brokerNotes,omitempty"`
	TransactionIDs []string        `json:"transactionIds,omitempty"`
	Participants   []Participant   `json:"participants"`
	CompletedAt    int64           `json:"completedAt,omitempty"`
	CreatedAt      int64           `json:"createdAt"`
	UpdatedAt      int64           `json:"updatedAt"`
	Version        int64           `json:"version"`
}

// Allocation is one computed provider to receiver transfer.
type Allocation struct {
	ProviderID string          `json:"providerId"`
	ReceiverID string          `json:"receiverId"`
	Amount     decimal.Decimal `json:"amount"`
}

// MemberTotal sums a member's allocations.
type MemberTotal struct {
	UserID   string          `json:"userId"`
	Given    decimal.Decimal `json:"given"`
	Received decimal.Decimal `json:"received"`
	Net      decimal.Decimal `json:"net"`
}

// HistoryEntry is one audit record.
type HistoryEntry struct {
	Action    string `json:"action"`
	ActorID   string `json:"actorId"`
	OldStatus string `json:"oldStatus,omitempty"`
	NewStatus string `json:"newStatus"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// ParticipantInput adds a participant. Hours default to 0 and weight to 1.
type ParticipantInput struct {
	UserID string           `json:"userId"`
	Role   string           `json:"role"`
	Hours  *decimal.Decimal `json:"hours,omitempty"`
	Weight *decimal.Decimal `json:"weight,omitempty"`
	Notes  string           `json:"notes,omitempty"`
}

type CreateExchangeRequest struct {
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	ListingID    string             `json:"listingId,omitempty"`
	SplitType    string             `json:"splitType"`
	TotalHours   decimal.Decimal    `json:"totalHours"`
	Participants []ParticipantInput `json:"participants,omitempty"`
}

type GetExchangeRequest struct {
	ExchangeID string `json:"exchangeId"`
}

type GetExchangeResponse struct {
	Exchange       *Exchange                             `json:"exchange"`
	Allocations    []Allocation                          `json:"allocations"`
	AllocatedTotal decimal.Decimal                       `json:"allocatedTotal"`
	Totals         []MemberTotal                         `json:"totals"`
	Matrix         map[string]map[string]decimal.Decimal `json:"matrix"`
	// Calculable is false when the current values produce no transfer.
	Calculable     bool     `json:"calculable"`
	AllowedActions []string `json:"allowedActions"`
}

type ListExchangesRequest struct {
	// Status filters by status when set.
	Status string `json:"status,omitempty"`
}

type ListExchangesResponse struct {
	Exchanges []*Exchange `json:"exchanges"`
}

type UpdateExchangeRequest struct {
	ExchangeID  string           `json:"exchangeId"`
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	ListingID   *string          `json:"listingId,omitempty"`
	TotalHours  *decimal.Decimal `json:"totalHours,omitempty"`
	SplitType   *string          `json:"splitType,omitempty"`
}

type AddParticipantRequest struct {
	ExchangeID  string           `json:"exchangeId"`
	Participant ParticipantInput `json:"participant"`
}

type RemoveParticipantRequest struct {
	ExchangeID string `json:"exchangeId"`
	UserID     string `json:"userId"`
}

type UpdateParticipantRequest struct {
	ExchangeID string `json:"exchangeId"`
	// UserID defaults to the caller.
	UserID string           `json:"userId,omitempty"`
	Hours  *decimal.Decimal `json:"hours,omitempty"`
	Weight *decimal.Decimal `json:"weight,omitempty"`
	Notes  *string          `json:"notes,omitempty"`
}

// ExchangeActionRequest drives a lifecycle action. Notes carries the
// dispute reason, cancel reason or broker notes.
type ExchangeActionRequest struct {
	ExchangeID string `json:"exchangeId"`
	Notes      string `json:"notes,omitempty"`
}

// ExchangeResponse returns the exchange after a command.
type ExchangeResponse struct {
	Exchange *Exchange `json:"exchange"`
}

type CompleteExchangeRequest struct {
	ExchangeID string `json:"exchangeId"`
}

type CompleteExchangeResponse struct {
	TransactionIDs []string  `json:"transactionIds"`
	Exchange       *Exchange `json:"exchange"`
}

type GetExchangeHistoryRequest struct {
	ExchangeID string `json:"exchangeId"`
}

type GetExchangeHistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

type GetBalanceRequest struct{}

// GetBalanceResponse is hours received minus hours given by the caller.
type GetBalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type RegisterRequest struct {
	TenantID    string `json:"tenantId,omitempty"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}
