package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gastos-cloud/internal/keyvalue"
	"gastos-cloud/internal/remote"
)

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestSessionService_LoginInstallsAndPersists(t *testing.T) {
	ctx := context.Background()
	storage := keyvalue.NewMemoryStore()
	identity := &remote.MockIdentity{Response: remote.AuthResponse{
		Token:     "tok-1",
		Email:     "user@example.com",
		ExpiresIn: "3600",
		UserID:    "uid-1",
	}}
	svc := NewSessionService(nil, identity, storage)

	cred, err := svc.Login(ctx, "  User@Example.com  ", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if cred.UserID != "uid-1" || cred.Token != "tok-1" {
		t.Fatalf("unexpected credential %+v", cred)
	}

	remaining := time.Until(cred.ExpiresAt)
	if remaining < 59*time.Minute || remaining > 61*time.Minute {
		t.Fatalf("expected ~1h expiry, got %v", remaining)
	}
	if !svc.IsAuthenticated() {
		t.Fatalf("expected authenticated session")
	}

	raw, ok, err := storage.Get(ctx, "authData")
	if err != nil || !ok {
		t.Fatalf("expected persisted session, got %v,%v", ok, err)
	}
	var stored storedSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("unmarshal stored session: %v", err)
	}
	if stored.UserID != "uid-1" || stored.Token != "tok-1" || stored.Email != "user@example.com" {
		t.Fatalf("unexpected stored session %+v", stored)
	}
	if _, err := time.Parse(time.RFC3339, stored.TokenExpirationDate); err != nil {
		t.Fatalf("stored expiry must be RFC3339: %v", err)
	}
}

func TestSessionService_LoginFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	storage := keyvalue.NewMemoryStore()
	identity := &remote.MockIdentity{Err: &remote.IdentityError{Code: remote.CodeInvalidPassword, Status: 400}}
	svc := NewSessionService(nil, identity, storage)

	_, err := svc.Login(ctx, "user@example.com", "wrong")
	var identityErr *remote.IdentityError
	if !errors.As(err, &identityErr) {
		t.Fatalf("expected IdentityError, got %v", err)
	}
	if svc.IsAuthenticated() {
		t.Fatalf("failed login must not authenticate")
	}
	if _, ok, _ := storage.Get(ctx, "authData"); ok {
		t.Fatalf("failed login must not persist anything")
	}
}

func TestSessionService_EmptyCredentialsRejectedLocally(t *testing.T) {
	svc := NewSessionService(nil, &remote.MockIdentity{}, nil)

	for _, tc := range []struct{ email, password string }{
		{"", "pw"},
		{"   ", "pw"},
		{"user@example.com", ""},
	} {
		if _, err := svc.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("email=%q password=%q: expected ErrInvalidCredentials, got %v", tc.email, tc.password, err)
		}
	}
}

func TestSessionService_ExpiresInFallbackToTokenClaim(t *testing.T) {
	expiresAt := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	identity := &remote.MockIdentity{Response: remote.AuthResponse{
		Token:     signedToken(t, "uid-1", expiresAt),
		Email:     "user@example.com",
		ExpiresIn: "garbage",
		UserID:    "uid-1",
	}}
	svc := NewSessionService(nil, identity, nil)

	cred, err := svc.Login(context.Background(), "user@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !cred.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expected expiry from token claim %v, got %v", expiresAt, cred.ExpiresAt)
	}
}

func TestSessionService_AutoLogoutOnExpiry(t *testing.T) {
	ctx := context.Background()
	storage := keyvalue.NewMemoryStore()
	identity := &remote.MockIdentity{Response: remote.AuthResponse{
		Token:     signedToken(t, "uid-1", time.Now().UTC().Add(100*time.Millisecond)),
		Email:     "user@example.com",
		ExpiresIn: "garbage",
		UserID:    "uid-1",
	}}
	svc := NewSessionService(nil, identity, storage)

	if _, err := svc.Login(ctx, "user@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !svc.IsAuthenticated() {
		t.Fatalf("expected live session right after login")
	}

	deadline := time.Now().Add(2 * time.Second)
	for svc.IsAuthenticated() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if svc.IsAuthenticated() {
		t.Fatalf("expected auto-logout after token expiry")
	}
	if _, ok, _ := storage.Get(ctx, "authData"); ok {
		t.Fatalf("auto-logout must clear persisted session")
	}
	if cred, ok := svc.Credentials().Current(); !ok || cred != nil {
		t.Fatalf("expected nil credential published after auto-logout, got %v,%v", cred, ok)
	}
}

func TestSessionService_RestoreValidSession(t *testing.T) {
	ctx := context.Background()
	storage := keyvalue.NewMemoryStore()
	data, _ := json.Marshal(storedSession{
		UserID:              "uid-1",
		Token:               "tok-1",
		TokenExpirationDate: time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		Email:               "user@example.com",
	})
	_ = storage.Set(ctx, "authData", string(data))

	svc := NewSessionService(nil, &remote.MockIdentity{}, storage)
	restored, err := svc.Restore(ctx)
	if err != nil || !restored {
		t.Fatalf("expected restore, got %v,%v", restored, err)
	}

	cred, ok := svc.Credential()
	if !ok || cred.UserID != "uid-1" || cred.Email != "user@example.com" {
		t.Fatalf("unexpected restored credential %+v,%v", cred, ok)
	}
}

func TestSessionService_RestoreRejectsExpiredAndCorrupt(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
	}{
		{"expired", mustStoredJSON(t, storedSession{
			UserID:              "uid-1",
			Token:               "tok-1",
			TokenExpirationDate: time.Now().UTC().Add(-time.Minute).Format(time.RFC3339),
			Email:               "user@example.com",
		})},
		{"corrupt", "{not json"},
		{"missing token", mustStoredJSON(t, storedSession{
			UserID:              "uid-1",
			TokenExpirationDate: time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		})},
		{"bad date", `{"userId":"uid-1","token":"tok-1","tokenExpirationDate":"ayer"}`},
	}

	for _, tc := range tests {
		storage := keyvalue.NewMemoryStore()
		_ = storage.Set(ctx, "authData", tc.raw)

		svc := NewSessionService(nil, &remote.MockIdentity{}, storage)
		restored, err := svc.Restore(ctx)
		if err != nil || restored {
			t.Fatalf("%s: expected no restore, got %v,%v", tc.name, restored, err)
		}
		if svc.IsAuthenticated() {
			t.Fatalf("%s: expected unauthenticated session", tc.name)
		}
	}
}

func TestSessionService_RestoreWithoutStoredSession(t *testing.T) {
	svc := NewSessionService(nil, &remote.MockIdentity{}, keyvalue.NewMemoryStore())
	restored, err := svc.Restore(context.Background())
	if err != nil || restored {
		t.Fatalf("expected false,nil for empty storage, got %v,%v", restored, err)
	}
}

func TestSessionService_LogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := keyvalue.NewMemoryStore()
	identity := &remote.MockIdentity{Response: remote.AuthResponse{
		Token:     "tok-1",
		Email:     "user@example.com",
		ExpiresIn: "3600",
		UserID:    "uid-1",
	}}
	svc := NewSessionService(nil, identity, storage)

	if _, err := svc.Login(ctx, "user@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.Logout(ctx)
	svc.Logout(ctx)

	if svc.IsAuthenticated() {
		t.Fatalf("expected logged out session")
	}
	if _, ok, _ := storage.Get(ctx, "authData"); ok {
		t.Fatalf("expected persisted session removed")
	}
}

func TestSessionService_FeedReplaysCurrentCredential(t *testing.T) {
	ctx := context.Background()
	identity := &remote.MockIdentity{Response: remote.AuthResponse{
		Token:     "tok-1",
		Email:     "user@example.com",
		ExpiresIn: "3600",
		UserID:    "uid-1",
	}}
	svc := NewSessionService(nil, identity, nil)

	if _, err := svc.Login(ctx, "user@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	ch, cancel := svc.Credentials().Subscribe()
	defer cancel()
	select {
	case cred := <-ch:
		if cred == nil || cred.UserID != "uid-1" {
			t.Fatalf("expected replay of live credential, got %+v", cred)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for replay")
	}
}

func mustStoredJSON(t *testing.T, stored storedSession) string {
	t.Helper()
	data, err := json.Marshal(stored)
	if err != nil {
		t.Fatalf("marshal stored session: %v", err)
	}
	return string(data)
}
