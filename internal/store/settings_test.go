package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/teren/internal/db"
)

func TestGetJWTSecretPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("secret length = %d, want 64 hex chars", len(first))
	}

	second, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret (second call): %v", err)
	}
	if first != second {
		t.Error("secret changed between calls")
	}
}

func TestAmendWindow(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	window, err := GetAmendWindow(ctx, database)
	if err != nil {
		t.Fatalf("GetAmendWindow: %v", err)
	}
	if window != DefaultAmendWindow {
		t.Errorf("default window = %v, want %v", window, DefaultAmendWindow)
	}

	if err := SetAmendWindow(ctx, database, 45); err != nil {
		t.Fatalf("SetAmendWindow: %v", err)
	}
	window, _ = GetAmendWindow(ctx, database)
	if window != 45*time.Minute {
		t.Errorf("window = %v, want 45m", window)
	}

	if err := SetAmendWindow(ctx, database, 0); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest for zero window, got %v", err)
	}
}
