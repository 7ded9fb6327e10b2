package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/luminote/luminote/ports"
)

// ErrNotFound is returned when an entity is not found.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint is violated.
var ErrDuplicate = errors.New("already exists")

// UserStore implements ports.UserStore using SQLite.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new SQLite user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, username, password_hash, profile, profile_picture, token_balance, status, created_at, updated_at`

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (ports.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = ?
	`, id)
	return scanUser(row)
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (ports.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = ?
	`, username)
	return scanUser(row)
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, u ports.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	if u.Status == "" {
		u.Status = "active"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, profile, profile_picture, token_balance, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.PasswordHash, u.Profile, u.ProfilePicture, u.TokenBalance, u.Status, u.CreatedAt, u.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateProfile replaces the model-maintained learner portrait.
func (s *UserStore) UpdateProfile(ctx context.Context, id, profile string) error {
	return s.updateColumn(ctx, id, "profile", profile)
}

// UpdateProfilePicture replaces the hosted picture URL.
func (s *UserStore) UpdateProfilePicture(ctx context.Context, id, pictureURL string) error {
	return s.updateColumn(ctx, id, "profile_picture", pictureURL)
}

func (s *UserStore) updateColumn(ctx context.Context, id, column, value string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?
	`, value, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns all active users.
func (s *UserStore) ListActive(ctx context.Context) ([]ports.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE status = 'active'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []ports.User
	for rows.Next() {
		var u ports.User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.PasswordHash, &u.Profile, &u.ProfilePicture,
			&u.TokenBalance, &u.Status, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row *sql.Row) (ports.User, error) {
	var u ports.User
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Profile, &u.ProfilePicture,
		&u.TokenBalance, &u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.User{}, ErrNotFound
	}
	if err != nil {
		return ports.User{}, err
	}
	return u, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure interface compliance.
var _ ports.UserStore = (*UserStore)(nil)
