package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"carebase/internal/db"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, created_at, updated_at`

type Store struct {
	db     *sql.DB
	hasher Hasher

	dummyOnce sync.Once
	dummyHash string
}

func NewStore(conn *sql.DB, hasher Hasher) *Store {
	return &Store{db: conn, hasher: hasher}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, db.Time(&u.CreatedAt), db.Time(&u.UpdatedAt)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, email))
}

func (s *Store) FindByID(ctx context.Context, id int64) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, id))
}

// Create hashes the password and inserts the user. Uniqueness is decided by
// the users.email constraint inside the insert, so concurrent registrations
// of one address yield exactly one row and ErrDuplicateEmail for the rest.
func (s *Store) Create(ctx context.Context, nu NewUser) (*User, error) {
	role := nu.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	hash, err := s.hasher.Hash(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	q := `
		INSERT INTO users (email, password_hash, first_name, last_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	now := time.Now().UTC()
	u, err := scanUser(s.db.QueryRowContext(ctx, q,
		nu.Email, hash, nu.FirstName, nu.LastName, string(role), now, now))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

// ValidatePassword returns the user with PasswordHash cleared, or
// ErrInvalidCredentials whether the email is unknown or the password wrong.
func (s *Store) ValidatePassword(ctx context.Context, email, password string) (*User, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.burnVerify(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	u.PasswordHash = ""
	return u, nil
}

func (s *Store) CountByRole(ctx context.Context, role Role) (int, error) {
	const q = `SELECT COUNT(*) FROM users WHERE role = $1`
	var n int
	if err := s.db.QueryRowContext(ctx, q, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// burnVerify spends one hash comparison so unknown emails take as long as
// wrong passwords.
func (s *Store) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("carebase-unknown-user")
	})
	if s.dummyHash != "" {
		_ = s.hasher.Verify(password, s.dummyHash)
	}
}
