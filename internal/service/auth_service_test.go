package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/groupexchange/internal/access"
	"github.com/mmynk/groupexchange/internal/exchange"
	"github.com/mmynk/groupexchange/internal/models"
	"github.com/mmynk/groupexchange/pkg/api"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "Frank@Example.com",
		DisplayName: "Frank",
		Password:    "password123",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Msg.Token == "" {
		t.Fatal("expected a token")
	}
	if reg.Msg.User.Email != "frank@example.com" {
		t.Errorf("expected normalized email, got %q", reg.Msg.User.Email)
	}
	if reg.Msg.User.TenantID != testTenant {
		t.Errorf("expected default tenant %q, got %q", testTenant, reg.Msg.User.TenantID)
	}

	login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "frank@example.com",
		Password: "password123",
	}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Msg.User.ID != reg.Msg.User.ID {
		t.Errorf("expected user %s, got %s", reg.Msg.User.ID, login.Msg.User.ID)
	}

	req := connect.NewRequest(&api.GetCurrentUserRequest{})
	req.Header().Set("Authorization", "Bearer "+login.Msg.Token)
	me, err := env.auth.GetCurrentUser(ctx, req)
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.DisplayName != "Frank" {
		t.Errorf("expected display name Frank, got %q", me.Msg.User.DisplayName)
	}

	if _, err := env.auth.Logout(ctx, connect.NewRequest(&api.LogoutRequest{})); err != nil {
		t.Errorf("Logout failed: %v", err)
	}
}

func TestAuthService_Errors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "alice@example.com",
		DisplayName: "Alice again",
		Password:    "password123",
	}))
	expectCode(t, err, connect.CodeAlreadyExists)

	_, err = env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "short@example.com",
		DisplayName: "Short",
		Password:    "short",
	}))
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "nobody@example.com"}))
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	}))
	expectCode(t, err, connect.CodeUnauthenticated)

	_, err = env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "ghost@example.com",
		Password: "password123",
	}))
	expectCode(t, err, connect.CodeUnauthenticated)

	// Without a token the optional interceptor lets the call through and the
	// handler rejects it.
	_, err = env.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	expectCode(t, err, connect.CodeUnauthenticated)
}

func TestToConnectError(t *testing.T) {
	passthrough := connect.NewError(connect.CodeResourceExhausted, errors.New("quota"))
	if got := toConnectError(passthrough); got != passthrough {
		t.Errorf("expected the same error back, got %v", got)
	}

	tests := []struct {
		err  error
		code connect.Code
	}{
		{fmt.Errorf("wrapped: %w", access.ErrPermissionDenied), connect.CodePermissionDenied},
		{exchange.ErrNotFound, connect.CodeNotFound},
		{exchange.ErrConflict, connect.CodeAborted},
		{&exchange.TransitionError{From: models.StatusCompleted, Action: exchange.ActionCancel}, connect.CodeFailedPrecondition},
		{&exchange.LedgerError{Err: context.DeadlineExceeded, Retryable: true}, connect.CodeUnavailable},
		{&exchange.LedgerError{Err: errors.New("constraint failed")}, connect.CodeInternal},
		{context.Canceled, connect.CodeCanceled},
		{errors.New("boom"), connect.CodeInternal},
	}
	for _, tt := range tests {
		if got := toConnectError(tt.err).Code(); got != tt.code {
			t.Errorf("toConnectError(%v) = %s, want %s", tt.err, got, tt.code)
		}
	}
}
