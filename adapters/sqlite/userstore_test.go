package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/luminote/luminote/ports"
)

func TestUserStore_CreateAndGet(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	u := ports.User{
		ID:           "u1",
		Username:     "alice",
		PasswordHash: []byte("hash"),
		TokenBalance: 500,
	}
	if err := store.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "alice" || got.TokenBalance != 500 {
		t.Errorf("got = %+v", got)
	}
	if got.Status != "active" {
		t.Errorf("status = %q, want active by default", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestUserStore_GetByUsername(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	store.Create(ctx, ports.User{ID: "u1", Username: "alice", PasswordHash: []byte("h")})

	got, err := store.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("id = %q, want u1", got.ID)
	}

	if _, err := store.GetByUsername(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserStore_GetMissing(t *testing.T) {
	db := testDB(t)
	if _, err := NewUserStore(db).Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserStore_DuplicateUsername(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	store.Create(ctx, ports.User{ID: "u1", Username: "alice", PasswordHash: []byte("h")})
	err := store.Create(ctx, ports.User{ID: "u2", Username: "alice", PasswordHash: []byte("h")})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestUserStore_UpdateProfile(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	store.Create(ctx, ports.User{ID: "u1", Username: "alice", PasswordHash: []byte("h")})

	if err := store.UpdateProfile(ctx, "u1", "prefers worked examples"); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if err := store.UpdateProfilePicture(ctx, "u1", "https://cdn.example.com/p.png"); err != nil {
		t.Fatalf("update picture: %v", err)
	}

	got, _ := store.Get(ctx, "u1")
	if got.Profile != "prefers worked examples" {
		t.Errorf("profile = %q", got.Profile)
	}
	if got.ProfilePicture != "https://cdn.example.com/p.png" {
		t.Errorf("picture = %q", got.ProfilePicture)
	}

	if err := store.UpdateProfile(ctx, "ghost", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserStore_ListActive(t *testing.T) {
	db := testDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	store.Create(ctx, ports.User{ID: "u1", Username: "alice", PasswordHash: []byte("h")})
	store.Create(ctx, ports.User{ID: "u2", Username: "bob", PasswordHash: []byte("h"), Status: "disabled"})
	store.Create(ctx, ports.User{ID: "u3", Username: "carol", PasswordHash: []byte("h")})

	users, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	for _, u := range users {
		if u.Status != "active" {
			t.Errorf("user %s status = %q", u.ID, u.Status)
		}
	}
}
