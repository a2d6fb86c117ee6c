// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package auth manages user accounts and bearer tokens. Accounts live in a
// SQLite table with bcrypt password hashes; tokens are HS256 JWTs carrying
// the username and role.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// User is an account. The password hash never leaves this package.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Service stores and authenticates users.
type Service struct {
	db *sql.DB
}

// Open opens (or creates) the user database at dbPath.
func Open(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "opening user db")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "pinging user db")
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL
)`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "creating users table")
	}

	return &Service{db: db}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Create adds a new user. Usernames are unique; a second create with the
// same name fails with a conflict.
func (s *Service) Create(ctx context.Context, username, password, role string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return dserr.New(dserr.CodeAuthUserInvalid, "username must not be empty")
	}
	if password == "" {
		return dserr.New(dserr.CodeAuthUserInvalid, "password must not be empty",
			dserr.FieldUsername(username))
	}
	if strings.TrimSpace(role) == "" {
		return dserr.New(dserr.CodeAuthUserInvalid, "role must not be empty",
			dserr.FieldUsername(username))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "hashing password")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users(username, password_hash, role) VALUES (?, ?, ?)`,
		username, string(hash), strings.TrimSpace(role))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return dserr.New(dserr.CodeAuthUserConflict, "user already exists",
				dserr.FieldUsername(username))
		}
		return dserr.Wrapf(err, dserr.CodeAuthDatabaseFailure, "inserting user %s", username)
	}
	return nil
}

// Authenticate verifies username and password. Unknown users and wrong
// passwords return the same error so callers cannot probe for accounts.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var (
		user User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role FROM users WHERE username = ?`,
		strings.TrimSpace(username)).Scan(&user.Username, &hash, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dserr.New(dserr.CodeAuthCredentialsInvalid, "invalid credentials")
	}
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "querying user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, dserr.New(dserr.CodeAuthCredentialsInvalid, "invalid credentials")
	}
	return &user, nil
}

// Get returns a user by name.
func (s *Service) Get(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, role FROM users WHERE username = ?`,
		strings.TrimSpace(username)).Scan(&user.Username, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dserr.New(dserr.CodeAuthUserNotFound, "user not found",
			dserr.FieldUsername(username))
	}
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "querying user")
	}
	return &user, nil
}

// List returns all users ordered by username.
func (s *Service) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, role FROM users ORDER BY username`)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "listing users")
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Username, &u.Role); err != nil {
			return nil, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "scanning user row")
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "iterating user rows")
	}
	return users, nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, username, role string) error {
	if strings.TrimSpace(role) == "" {
		return dserr.New(dserr.CodeAuthUserInvalid, "role must not be empty",
			dserr.FieldUsername(username))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE username = ?`,
		strings.TrimSpace(role), strings.TrimSpace(username))
	if err != nil {
		return dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "updating user role")
	}
	return requireOneRow(res, username)
}

// SetPassword changes a user's password.
func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return dserr.New(dserr.CodeAuthUserInvalid, "password must not be empty",
			dserr.FieldUsername(username))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "hashing password")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE username = ?`,
		string(hash), strings.TrimSpace(username))
	if err != nil {
		return dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "updating user password")
	}
	return requireOneRow(res, username)
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = ?`, strings.TrimSpace(username))
	if err != nil {
		return dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "deleting user")
	}
	return requireOneRow(res, username)
}

// CountByRole reports how many users hold role. The comparison is
// case-insensitive, matching every other role check.
func (s *Service) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE LOWER(role) = LOWER(?)`, strings.TrimSpace(role)).Scan(&n)
	if err != nil {
		return 0, dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "counting users by role")
	}
	return n, nil
}

// Seed creates any of the given users that do not exist yet. Existing
// accounts are left untouched.
func (s *Service) Seed(ctx context.Context, users []SeedUser) (created int, err error) {
	for _, u := range users {
		err := s.Create(ctx, u.Username, u.Password, u.Role)
		if dserr.HasCode(err, dserr.CodeAuthUserConflict) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// SeedUser is an account to create at bootstrap.
type SeedUser struct {
	Username string
	Password string
	Role     string
}

func requireOneRow(res sql.Result, username string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dserr.Wrap(err, dserr.CodeAuthDatabaseFailure, "checking rows affected")
	}
	if n == 0 {
		return dserr.New(dserr.CodeAuthUserNotFound, "user not found",
			dserr.FieldUsername(username))
	}
	return nil
}
