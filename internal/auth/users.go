package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gkchatty/gkchatty-local/internal/db"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Sentinel errors callers branch on.
var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User is an account that can log in to the API.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Store manages persistence of user accounts.
type Store struct {
	db *db.DB
}

// NewStore creates a new user store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new user. The password is hashed before storage.
func (s *Store) Create(ctx context.Context, username, email, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if role == "" {
		role = RoleMember
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

// Authenticate verifies a username/password pair and returns the user.
// Returns ErrInvalidCredentials for both unknown users and bad passwords so
// callers cannot distinguish the two.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetByUsername retrieves a user by username.
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, created_at, last_login_at
		 FROM users WHERE username = ?`, username))
}

// GetByID retrieves a user by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, created_at, last_login_at
		 FROM users WHERE id = ?`, id))
}

func (s *Store) scanOne(row *sql.Row) (*User, error) {
	var u User
	var email sql.NullString
	var lastLogin sql.NullTime

	err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.Role, &u.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Email = email.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// List returns users, optionally filtered by a username prefix.
func (s *Store) List(ctx context.Context, prefix string, limit int) ([]User, error) {
	query := `SELECT id, username, email, password_hash, role, created_at, last_login_at FROM users`
	args := []interface{}{}
	if prefix != "" {
		query += ` WHERE username LIKE ?`
		args = append(args, prefix+"%")
	}
	query += ` ORDER BY username`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var email sql.NullString
		var lastLogin sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.Role, &u.CreatedAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.Email = email.String
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLoginAt = &t
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// TouchLogin records a successful login time.
func (s *Store) TouchLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// Count returns the total number of users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Delete removes a user and, via cascade, their documents and sessions.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedAdmin creates the admin account if no users exist yet. Returns the
// created user, or nil if the database already has users.
func (s *Store) SeedAdmin(ctx context.Context, username, password string) (*User, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return nil, nil
	}
	return s.Create(ctx, username, "", password, RoleAdmin)
}
