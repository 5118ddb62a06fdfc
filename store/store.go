// Package store persists users, the subreddits they follow, and the
// per-cycle delivery log in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"reddit-newsletter/pkg/newsletter"
)

// ErrNotFound is returned when no user matches the given email.
var ErrNotFound = errors.New("user not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	subscribed INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (user_id, name)
);

CREATE TABLE IF NOT EXISTS deliveries (
	user_id TEXT NOT NULL,
	day TEXT NOT NULL,
	delivered_at TEXT NOT NULL,
	PRIMARY KEY (user_id, day)
);
`

// Store is a sqlite-backed repository.
type Store struct {
	db *sqlx.DB
}

// New creates a Store and applies the schema.
func New(db *sqlx.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

type userRow struct {
	ID         string `db:"id"`
	Email      string `db:"email"`
	FirstName  string `db:"first_name"`
	LastName   string `db:"last_name"`
	Subscribed bool   `db:"subscribed"`
	CreatedAt  string `db:"created_at"`
}

func (r userRow) user(topics []string) newsletter.User {
	return newsletter.User{
		ID:         r.ID,
		Email:      r.Email,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Subscribed: r.Subscribed,
		Topics:     topics,
	}
}

// CreateUser inserts a user with their topics. The email is unique across
// the system; subscribing an existing address re-enables it and appends any
// new topics.
func (s *Store) CreateUser(ctx context.Context, email, firstName, lastName string, topics []string) (newsletter.User, error) {
	existing, err := s.UserByEmail(ctx, email)
	isNew := errors.Is(err, ErrNotFound)
	if err != nil && !isNew {
		return newsletter.User{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return newsletter.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	id := existing.ID
	if isNew {
		id = uuid.NewString()
		const q = `INSERT INTO users (id, email, first_name, last_name, subscribed, created_at)
		VALUES (?, ?, ?, ?, 1, ?);`
		if _, err := tx.ExecContext(ctx, q, id, email, firstName, lastName, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return newsletter.User{}, fmt.Errorf("insert user: %w", err)
		}
	} else {
		const q = `UPDATE users SET subscribed = 1 WHERE id = ?;`
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return newsletter.User{}, fmt.Errorf("resubscribe user: %w", err)
		}
	}

	for _, topic := range topics {
		const q = `INSERT INTO topics (user_id, name, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM topics WHERE user_id = ?))
		ON CONFLICT (user_id, name) DO NOTHING;`
		if _, err := tx.ExecContext(ctx, q, id, topic, id); err != nil {
			return newsletter.User{}, fmt.Errorf("insert topic %q: %w", topic, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return newsletter.User{}, fmt.Errorf("commit: %w", err)
	}

	return s.UserByEmail(ctx, email)
}

// UserByEmail loads a user with their topics.
func (s *Store) UserByEmail(ctx context.Context, email string) (newsletter.User, error) {
	const q = `SELECT * FROM users WHERE email = ?;`

	var row userRow
	err := s.db.GetContext(ctx, &row, q, email)
	if errors.Is(err, sql.ErrNoRows) {
		return newsletter.User{}, ErrNotFound
	}
	if err != nil {
		return newsletter.User{}, fmt.Errorf("select user: %w", err)
	}

	topics, err := s.topicsFor(ctx, row.ID)
	if err != nil {
		return newsletter.User{}, err
	}

	return row.user(topics), nil
}

// Unsubscribe clears the subscription flag. The user and their topics are
// kept so resubscribing restores them.
func (s *Store) Unsubscribe(ctx context.Context, email string) error {
	const q = `UPDATE users SET subscribed = 0 WHERE email = ?;`

	res, err := s.db.ExecContext(ctx, q, email)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSubscribed returns every subscribed user with their topics in
// configured order. Used as the job's user source.
func (s *Store) ListSubscribed(ctx context.Context) ([]newsletter.User, error) {
	const q = `SELECT * FROM users WHERE subscribed = 1 ORDER BY created_at, id;`

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("select subscribed users: %w", err)
	}

	users := make([]newsletter.User, 0, len(rows))
	for _, row := range rows {
		topics, err := s.topicsFor(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		users = append(users, row.user(topics))
	}

	return users, nil
}

func (s *Store) topicsFor(ctx context.Context, userID string) ([]string, error) {
	const q = `SELECT name FROM topics WHERE user_id = ? ORDER BY position;`

	var topics []string
	if err := s.db.SelectContext(ctx, &topics, q, userID); err != nil {
		return nil, fmt.Errorf("select topics: %w", err)
	}
	return topics, nil
}

// WasDelivered reports whether a digest was already sent to the user on the
// given UTC day.
func (s *Store) WasDelivered(ctx context.Context, userID, day string) (bool, error) {
	const q = `SELECT COUNT(*) FROM deliveries WHERE user_id = ? AND day = ?;`

	var n int
	if err := s.db.GetContext(ctx, &n, q, userID, day); err != nil {
		return false, fmt.Errorf("select delivery: %w", err)
	}
	return n > 0, nil
}

// MarkDelivered records a successful send for the user and UTC day. Marking
// twice is a no-op, so a racing redelivery cannot fail here.
func (s *Store) MarkDelivered(ctx context.Context, userID, day string) error {
	const q = `INSERT INTO deliveries (user_id, day, delivered_at) VALUES (?, ?, ?)
	ON CONFLICT (user_id, day) DO NOTHING;`

	if _, err := s.db.ExecContext(ctx, q, userID, day, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}
