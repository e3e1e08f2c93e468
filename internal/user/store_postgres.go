package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"choregate/pkg/platform/sentinel"
)

// PostgresStore persists users in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE users (
//	    id            TEXT PRIMARY KEY,
//	    username      TEXT NOT NULL UNIQUE,
//	    password_hash TEXT NOT NULL,
//	    account_type  TEXT NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, u User) error {
	query := `
		INSERT INTO users (id, username, password_hash, account_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			account_type = EXCLUDED.account_type
	`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Username, u.PasswordHash, string(u.AccountType), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.scanOne(ctx, `SELECT id, username, password_hash, account_type, created_at FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	return s.scanOne(ctx, `SELECT id, username, password_hash, account_type, created_at FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) scanOne(ctx context.Context, query, arg string) (User, error) {
	var u User
	var accountType string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &accountType, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %q: %w", arg, sentinel.ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	u.AccountType = AccountType(accountType)
	return u, nil
}
