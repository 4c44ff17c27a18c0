// Copyright 2026 The Scriptora Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/scriptora/scriptora/internal/identity"
)

// UserRepository implements identity.Repository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user identity
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT id, email, name, created_at, updated_at, deleted_at
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`, id))
}

// GetByEmail retrieves a user by normalized email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT id, email, name, created_at, updated_at, deleted_at
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`, email))
}

func (r *UserRepository) scanOne(row pgx.Row) (*identity.User, error) {
	var user identity.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

// AddCredentials adds credentials for a user
func (r *UserRepository) AddCredentials(ctx context.Context, credentials *identity.Credentials) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`, credentials.UserID, credentials.PasswordHash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert credentials: %w", err)
	}
	return nil
}

// GetCredentials retrieves user credentials
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	var credentials identity.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at
		FROM credentials
		WHERE user_id = $1
	`, userID).Scan(&credentials.UserID, &credentials.PasswordHash, &credentials.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credentials: %w", err)
	}
	return &credentials, nil
}

// CollaborationRepository implements identity.CollaborationRepository
type CollaborationRepository struct {
	db *DB
}

// NewCollaborationRepository creates a new collaboration repository
func NewCollaborationRepository(db *DB) *CollaborationRepository {
	return &CollaborationRepository{db: db}
}

// Add links collaboratorID to userID
func (r *CollaborationRepository) Add(ctx context.Context, userID, collaboratorID string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO collaborations (user_id, collaborator_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, collaboratorID)
	if err != nil {
		return fmt.Errorf("failed to insert collaboration: %w", err)
	}
	return nil
}

// List returns the collaborator ids linked to userID
func (r *CollaborationRepository) List(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT collaborator_id FROM collaborations WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborations: %w", err)
	}
	defer rows.Close()

	var collaborators []string
	for rows.Next() {
		var collaboratorID string
		if err := rows.Scan(&collaboratorID); err != nil {
			return nil, fmt.Errorf("failed to scan collaboration: %w", err)
		}
		collaborators = append(collaborators, collaboratorID)
	}
	return collaborators, rows.Err()
}
