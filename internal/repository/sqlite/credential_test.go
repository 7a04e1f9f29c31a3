package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/model"
)

// newTestDB returns an in-memory database closed when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndGet(t *testing.T) {
	db := newTestDB(t)
	expiry := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	err := db.Save(context.Background(), "session-1", &model.Credential{
		AccessToken:  "ya29.abc",
		TokenType:    "Bearer",
		RefreshToken: "1//refresh",
		Expiry:       expiry,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := db.Get(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AccessToken != "ya29.abc" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "ya29.abc")
	}
	if got.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want %q", got.TokenType, "Bearer")
	}
	if got.RefreshToken != "1//refresh" {
		t.Errorf("RefreshToken = %q, want %q", got.RefreshToken, "1//refresh")
	}
	if !got.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", got.Expiry, expiry)
	}
}

func TestSave_ZeroExpiry(t *testing.T) {
	db := newTestDB(t)

	if err := db.Save(context.Background(), "s", &model.Credential{AccessToken: "tok"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := db.Get(context.Background(), "s")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Expiry.IsZero() {
		t.Errorf("Expiry = %v, want zero", got.Expiry)
	}
}

func TestSave_ReplacesExisting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Save(ctx, "s", &model.Credential{AccessToken: "first"}); err != nil {
		t.Fatalf("Save() first: %v", err)
	}
	if err := db.Save(ctx, "s", &model.Credential{AccessToken: "second"}); err != nil {
		t.Fatalf("Save() second: %v", err)
	}

	got, err := db.Get(ctx, "s")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AccessToken != "second" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "second")
	}
}

func TestSave_Validation(t *testing.T) {
	db := newTestDB(t)

	tests := []struct {
		name      string
		sessionID string
		cred      *model.Credential
	}{
		{"empty session", "", &model.Credential{AccessToken: "tok"}},
		{"nil credential", "s", nil},
		{"empty token", "s", &model.Credential{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Save(context.Background(), tt.sessionID, tt.cred)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Save() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Get(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Save(ctx, "s", &model.Credential{AccessToken: "tok"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := db.Delete(ctx, "s"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Get(ctx, "s"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is a no-op.
	if err := db.Delete(ctx, "s"); err != nil {
		t.Errorf("Delete() of missing credential error = %v", err)
	}
}
