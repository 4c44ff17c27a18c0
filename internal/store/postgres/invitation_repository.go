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

// InvitationRepository implements invitation.Repository
type InvitationRepository struct {
	db *DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `
	id, inviting_user_id, invited_user_email, invited_user_name,
	container_id, role, message, created_at, updated_at, expires_at, accepted_at`

// GetByID retrieves an invitation by id
func (r *InvitationRepository) GetByID(ctx context.Context, invitationID string) (*invitation.Invitation, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE id = $1
	`, invitationID)
	inv, err := scanInvitation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, invitation.ErrInvitationNotFound
	}
	return inv, err
}

// Create stores a new invitation
func (r *InvitationRepository) Create(ctx context.Context, inv *invitation.Invitation) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO invitations (
			id, inviting_user_id, invited_user_email, invited_user_name,
			container_id, role, message, created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		inv.ID, inv.InvitingUserID, inv.InvitedUserEmail, inv.InvitedUserName,
		inv.ContainerID, string(inv.Role), inv.Message,
		inv.CreatedAt, inv.UpdatedAt, inv.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

// Patch updates the role, message, and expiry of an existing invitation
func (r *InvitationRepository) Patch(ctx context.Context, invitationID string, invRole role.Role, message string, expiresAt time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE invitations SET role = $2, message = $3, expires_at = $4, updated_at = $5 WHERE id = $1
	`, invitationID, string(invRole), message, expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to patch invitation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invitation.ErrInvitationNotFound
	}
	return nil
}

// MarkAccepted records the acceptance time on an invitation
func (r *InvitationRepository) MarkAccepted(ctx context.Context, invitationID string, at time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE invitations SET accepted_at = $2, updated_at = $2 WHERE id = $1
	`, invitationID, at)
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invitation.ErrInvitationNotFound
	}
	return nil
}

// Remove deletes an invitation
func (r *InvitationRepository) Remove(ctx context.Context, invitationID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM invitations WHERE id = $1
	`, invitationID)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return nil
}

// ListForContainerEmail returns pending invitations for a container,
// optionally narrowed to one invited email
func (r *InvitationRepository) ListForContainerEmail(ctx context.Context, containerID, email string) ([]*invitation.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE container_id = $1 AND accepted_at IS NULL`
	args := []any{containerID}
	if email != "" {
		query += ` AND invited_user_email = $2`
		args = append(args, email)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()
	return scanInvitations(rows)
}

// ListByEmail returns all pending invitations addressed to email
func (r *InvitationRepository) ListByEmail(ctx context.Context, email string) ([]*invitation.Invitation, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE invited_user_email = $1 AND accepted_at IS NULL
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()
	return scanInvitations(rows)
}

// ListExpired returns invitations whose expiry is before the cutoff
func (r *InvitationRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]*invitation.Invitation, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired invitations: %w", err)
	}
	defer rows.Close()
	return scanInvitations(rows)
}

func scanInvitation(row pgx.Row) (*invitation.Invitation, error) {
	var inv invitation.Invitation
	var invRole string
	err := row.Scan(
		&inv.ID, &inv.InvitingUserID, &inv.InvitedUserEmail, &inv.InvitedUserName,
		&inv.ContainerID, &invRole, &inv.Message,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.ExpiresAt, &inv.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Role = role.Role(invRole)
	return &inv, nil
}

func scanInvitations(rows pgx.Rows) ([]*invitation.Invitation, error) {
	var invitations []*invitation.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}
