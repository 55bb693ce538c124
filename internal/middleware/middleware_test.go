package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/groupexchange/internal/auth"
	"github.com/mmynk/groupexchange/internal/models"
)

type ping struct{}

// captureNext records the identity the handler sees.
func captureNext(userID, tenantID *string) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		*userID = GetUserID(ctx)
		*tenantID = GetTenantID(ctx)
		return connect.NewResponse(&ping{}), nil
	}
}

func newToken(t *testing.T, m *auth.JWTManager) string {
	t.Helper()
	token, err := m.Generate(&models.User{ID: "u-1", TenantID: "t-1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"Bearer a b", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	m := auth.NewJWTManager("secret", time.Hour)
	interceptor := RequireAuth(m)

	var userID, tenantID string
	handler := interceptor(captureNext(&userID, &tenantID))

	req := connect.NewRequest(&ping{})
	req.Header().Set("Authorization", "Bearer "+newToken(t, m))
	if _, err := handler(context.Background(), req); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if userID != "u-1" || tenantID != "t-1" {
		t.Errorf("expected u-1/t-1 in context, got %q/%q", userID, tenantID)
	}

	for _, header := range []string{"", "Bearer", "Bearer not-a-jwt"} {
		req := connect.NewRequest(&ping{})
		if header != "" {
			req.Header().Set("Authorization", header)
		}
		_, err := handler(context.Background(), req)
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("header %q: expected unauthenticated, got %v", header, err)
		}
	}

	other := auth.NewJWTManager("other-secret", time.Hour)
	req = connect.NewRequest(&ping{})
	req.Header().Set("Authorization", "Bearer "+newToken(t, other))
	if _, err := handler(context.Background(), req); connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("expected a foreign token to be rejected, got %v", err)
	}
}

func TestOptionalAuth(t *testing.T) {
	m := auth.NewJWTManager("secret", time.Hour)

	var userID, tenantID string
	handler := OptionalAuth(m)(captureNext(&userID, &tenantID))

	if _, err := handler(context.Background(), connect.NewRequest(&ping{})); err != nil {
		t.Fatalf("anonymous call should pass: %v", err)
	}
	if userID != "" {
		t.Errorf("expected no user, got %q", userID)
	}

	req := connect.NewRequest(&ping{})
	req.Header().Set("Authorization", "Bearer garbage")
	if _, err := handler(context.Background(), req); err != nil {
		t.Fatalf("invalid token should be ignored: %v", err)
	}

	req = connect.NewRequest(&ping{})
	req.Header().Set("Authorization", "Bearer "+newToken(t, m))
	if _, err := handler(context.Background(), req); err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if userID != "u-1" {
		t.Errorf("expected u-1, got %q", userID)
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	interceptor := LoggingInterceptor(logger)

	ctx := WithClaims(context.Background(), &auth.Claims{UserID: "u-1", TenantID: "t-1"})
	ok := interceptor(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return connect.NewResponse(&ping{}), nil
	})
	if _, err := ok(ctx, connect.NewRequest(&ping{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, `"msg":"RPC ok"`) || !strings.Contains(out, `"tenant_id":"t-1"`) {
		t.Errorf("expected RPC ok with tenant, got %s", out)
	}

	buf.Reset()
	denied := interceptor(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("nope"))
	})
	if _, err := denied(ctx, connect.NewRequest(&ping{})); err == nil {
		t.Fatal("expected the error to pass through")
	}
	if out := buf.String(); !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("client errors should log at warn, got %s", out)
	}

	buf.Reset()
	broken := interceptor(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("ledger down"))
	})
	_, _ = broken(ctx, connect.NewRequest(&ping{}))
	if out := buf.String(); !strings.Contains(out, `"level":"ERROR"`) {
		t.Errorf("server faults should log at error, got %s", out)
	}
}
