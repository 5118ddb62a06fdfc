package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "newsletter.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestCreateUserKeepsTopicOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "jane@example.com", "Jane", "Doe", []string{"golang", "astronomy", "cooking"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if u.ID == "" {
		t.Error("created user has no id")
	}
	if u.Email != "jane@example.com" || u.FirstName != "Jane" || u.LastName != "Doe" {
		t.Errorf("user = %+v, want the submitted fields", u)
	}
	if !u.Subscribed {
		t.Error("new user is not subscribed")
	}
	want := []string{"golang", "astronomy", "cooking"}
	if len(u.Topics) != len(want) {
		t.Fatalf("topics = %v, want %v", u.Topics, want)
	}
	for i := range want {
		if u.Topics[i] != want[i] {
			t.Errorf("topics[%d] = %q, want %q", i, u.Topics[i], want[i])
		}
	}
}

func TestCreateUserNewEmail(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "new@example.com", "New", "", []string{"golang"})
	if err != nil {
		t.Fatalf("CreateUser() for a brand-new email error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("created user has no id")
	}

	// The row and its topics must be findable under the new id afterwards.
	loaded, err := s.UserByEmail(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("UserByEmail() after create error = %v", err)
	}
	if loaded.ID != created.ID {
		t.Errorf("loaded id = %q, want %q", loaded.ID, created.ID)
	}
	if len(loaded.Topics) != 1 || loaded.Topics[0] != "golang" {
		t.Errorf("loaded topics = %v, want [golang]", loaded.Topics)
	}
}

func TestCreateUserResubscribes(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.CreateUser(ctx, "jane@example.com", "Jane", "", []string{"golang"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.Unsubscribe(ctx, "jane@example.com"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	// Subscribing again reuses the row, re-enables it, and appends the new
	// topic after the existing one.
	second, err := s.CreateUser(ctx, "jane@example.com", "Jane", "", []string{"cooking"})
	if err != nil {
		t.Fatalf("CreateUser() again error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("resubscribe created a new user: id %q != %q", second.ID, first.ID)
	}
	if !second.Subscribed {
		t.Error("resubscribed user is not subscribed")
	}
	if len(second.Topics) != 2 || second.Topics[0] != "golang" || second.Topics[1] != "cooking" {
		t.Errorf("topics = %v, want [golang cooking]", second.Topics)
	}
}

func TestCreateUserDuplicateTopicIsNoOp(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "jane@example.com", "Jane", "", []string{"golang", "golang"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if len(u.Topics) != 1 || u.Topics[0] != "golang" {
		t.Errorf("topics = %v, want [golang]", u.Topics)
	}
}

func TestUserByEmailNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.UserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UserByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUnsubscribeUnknownEmail(t *testing.T) {
	s := testStore(t)

	err := s.Unsubscribe(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Unsubscribe() error = %v, want ErrNotFound", err)
	}
}

func TestListSubscribedExcludesUnsubscribed(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "a@example.com", "A", "", []string{"golang"}); err != nil {
		t.Fatalf("CreateUser(a) error = %v", err)
	}
	if _, err := s.CreateUser(ctx, "b@example.com", "B", "", []string{"cooking"}); err != nil {
		t.Fatalf("CreateUser(b) error = %v", err)
	}
	if err := s.Unsubscribe(ctx, "a@example.com"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	users, err := s.ListSubscribed(ctx)
	if err != nil {
		t.Fatalf("ListSubscribed() error = %v", err)
	}
	if len(users) != 1 || users[0].Email != "b@example.com" {
		t.Fatalf("subscribed users = %+v, want only b@example.com", users)
	}
	if len(users[0].Topics) != 1 || users[0].Topics[0] != "cooking" {
		t.Errorf("topics = %v, want [cooking]", users[0].Topics)
	}
}

func TestDeliveryLogRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	done, err := s.WasDelivered(ctx, "u1", "2026-09-01")
	if err != nil {
		t.Fatalf("WasDelivered() error = %v", err)
	}
	if done {
		t.Fatal("WasDelivered() = true before any delivery")
	}

	if err := s.MarkDelivered(ctx, "u1", "2026-09-01"); err != nil {
		t.Fatalf("MarkDelivered() error = %v", err)
	}
	// Idempotent: a racing redelivery marks the same pair again.
	if err := s.MarkDelivered(ctx, "u1", "2026-09-01"); err != nil {
		t.Fatalf("MarkDelivered() twice error = %v", err)
	}

	done, err = s.WasDelivered(ctx, "u1", "2026-09-01")
	if err != nil {
		t.Fatalf("WasDelivered() error = %v", err)
	}
	if !done {
		t.Error("WasDelivered() = false after marking")
	}

	// Other days and users stay unmarked.
	if done, _ := s.WasDelivered(ctx, "u1", "2026-09-02"); done {
		t.Error("WasDelivered() = true for a different day")
	}
	if done, _ := s.WasDelivered(ctx, "u2", "2026-09-01"); done {
		t.Error("WasDelivered() = true for a different user")
	}
}
