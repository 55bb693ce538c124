package models

// HistoryEntry records one mutating command applied to an exchange.
type HistoryEntry struct {
	ID         int64
	ExchangeID string
	Action     string
	ActorID    string
	OldStatus  Status
	NewStatus  Status
	Notes      string
	CreatedAt  int64
}

// Notification is a fire-and-forget message about an exchange.
type Notification struct {
	Kind       string
	ExchangeID string
	TenantID   string
	Title      string
	Recipients []string
	Message    string
}
