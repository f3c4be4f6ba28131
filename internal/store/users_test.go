package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/zapuscina/internal/db"
	"github.com/erazemk/zapuscina/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "ana", "hash123", model.RoleStaff)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "ana" || user.Role != model.RoleStaff {
		t.Errorf("unexpected user %+v", user)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "ana" || got.PasswordHash != "hash123" {
		t.Errorf("unexpected user %+v", got)
	}

	missing, err := GetUser(ctx, database, 999)
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing id, got %+v %v", missing, err)
	}
}

func TestStoredAccountsExcludeBidders(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "5551234567", "hash", model.RoleBidder); !errors.Is(err, ErrAccountRole) {
		t.Errorf("expected ErrAccountRole on create, got %v", err)
	}
	user, _ := CreateUser(ctx, database, "ana", "hash", model.RoleStaff)
	if err := UpdateUser(ctx, database, user.ID, model.RoleBidder); !errors.Is(err, ErrAccountRole) {
		t.Errorf("expected ErrAccountRole on update, got %v", err)
	}
	if err := UpdateUser(ctx, database, user.ID, model.RoleAdmin); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, _ := GetUser(ctx, database, user.ID)
	if got.Role != model.RoleAdmin {
		t.Errorf("expected admin, got %q", got.Role)
	}
}

func TestGetUserByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "alice", "hash", model.RoleAdmin)

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil || user.Username != "alice" {
		t.Fatalf("expected alice, got %+v", user)
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsersAdminsFirst(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "ana", "hash", model.RoleStaff)
	CreateUser(ctx, database, "zoran", "hash", model.RoleAdmin)
	CreateUser(ctx, database, "bojan", "hash", model.RoleStaff)

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	want := []string{"zoran", "ana", "bojan"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}

func TestDeleteUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "deleteme", "hash", model.RoleStaff)
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	users, _ := ListUsers(ctx, database)
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}
	if err := DeleteUser(ctx, database, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound on second delete, got %v", err)
	}
	if err := UpdateUserPassword(ctx, database, user.ID, "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for deleted account, got %v", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "oldhash", model.RoleStaff)
	if err := UpdateUserPassword(ctx, database, user.ID, "newhash"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}

func TestGetUserByUsernamePrefersActive(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	old, _ := CreateUser(ctx, database, "ana", "oldhash", model.RoleStaff)
	DeleteUser(ctx, database, old.ID)
	fresh, err := CreateUser(ctx, database, "ana", "newhash", model.RoleAdmin)
	if err != nil {
		t.Fatalf("reusing a deleted username: %v", err)
	}

	got, err := GetUserByUsername(ctx, database, "ana")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != fresh.ID || got.DeletedAt != nil {
		t.Errorf("expected active user %d, got %d", fresh.ID, got.ID)
	}
}
