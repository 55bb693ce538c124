package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered member account.
// Users are looked up to resolve identities when they join an exchange.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// TenantID is the community the user belongs to.
	TenantID string

	// Email is the user's email address (unique).
	Email string

	// DisplayName is shown to other members.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	CreatedAt int64
	UpdatedAt int64
}

// NewUser builds a user with a fresh ID and timestamps.
func NewUser(tenantID, email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
