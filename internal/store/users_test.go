package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/teren/internal/db"
	"github.com/erazemk/teren/internal/model"
)

func TestCreateUserDuplicateUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "ana", "hash", model.RoleTechnician); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := CreateUser(ctx, database, "ana", "hash", model.RoleTechnician)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateUserRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "ana", "hash", model.RoleTechnician)
	if err := UpdateUserRole(ctx, database, user.ID, model.RoleManager); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.Role != model.RoleManager {
		t.Errorf("role = %s, want manager", got.Role)
	}

	if err := UpdateUserRole(ctx, database, 999, model.RoleManager); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestDeleteUserSoftDeletes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "ana", "hash", model.RoleTechnician)
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	// Gone from the active list, still resolvable by username for audit.
	users, _ := ListUsers(ctx, database)
	if len(users) != 0 {
		t.Errorf("expected empty user list, got %d", len(users))
	}
	got, _ := GetUserByUsername(ctx, database, "ana")
	if got == nil || got.DeletedAt == nil {
		t.Errorf("soft-deleted user not resolvable: %+v", got)
	}

	// Deleting twice reports not found.
	if err := DeleteUser(ctx, database, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
