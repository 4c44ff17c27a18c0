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
	"github.com/scriptora/scriptora/internal/invitation"
	"github.com/scriptora/scriptora/internal/role"
)

// InvitationTokenRepository implements invitation.TokenRepository
type InvitationTokenRepository struct {
	db *DB
}

// NewInvitationTokenRepository creates a new invitation token repository
func NewInvitationTokenRepository(db *DB) *InvitationTokenRepository {
	return &InvitationTokenRepository{db: db}
}

// GetByID retrieves a token by id
func (r *InvitationTokenRepository) GetByID(ctx context.Context, tokenID string) (*invitation.Token, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT id, container_id, role, created_at, updated_at, expires_at
		FROM invitation_tokens
		WHERE id = $1
	`, tokenID))
}

// Get retrieves the token for a (container, role) pair
func (r *InvitationTokenRepository) Get(ctx context.Context, containerID string, tokenRole role.Role) (*invitation.Token, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT id, container_id, role, created_at, updated_at, expires_at
		FROM invitation_tokens
		WHERE container_id = $1 AND role = $2
	`, containerID, string(tokenRole)))
}

func (r *InvitationTokenRepository) scanOne(row pgx.Row) (*invitation.Token, error) {
	var token invitation.Token
	var tokenRole string
	err := row.Scan(&token.ID, &token.ContainerID, &tokenRole, &token.CreatedAt, &token.UpdatedAt, &token.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, invitation.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invitation token: %w", err)
	}
	token.Role = role.Role(tokenRole)
	return &token, nil
}

// Create stores a new token
func (r *InvitationTokenRepository) Create(ctx context.Context, token *invitation.Token) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO invitation_tokens (id, container_id, role, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token.ID, token.ContainerID, string(token.Role), token.CreatedAt, token.UpdatedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert invitation token: %w", err)
	}
	return nil
}

// Touch extends the expiry of an existing token
func (r *InvitationTokenRepository) Touch(ctx context.Context, tokenID string, expiresAt time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE invitation_tokens SET expires_at = $2, updated_at = $3 WHERE id = $1
	`, tokenID, expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to touch invitation token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invitation.ErrTokenNotFound
	}
	return nil
}

// Remove deletes a token
func (r *InvitationTokenRepository) Remove(ctx context.Context, tokenID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM invitation_tokens WHERE id = $1
	`, tokenID)
	if err != nil {
		return fmt.Errorf("failed to delete invitation token: %w", err)
	}
	return nil
}

// ListExpired returns tokens whose expiry is before the cutoff
func (r *InvitationTokenRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]*invitation.Token, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, container_id, role, created_at, updated_at, expires_at
		FROM invitation_tokens
		WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired invitation tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*invitation.Token
	for rows.Next() {
		token, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
