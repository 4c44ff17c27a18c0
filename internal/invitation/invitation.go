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

package invitation

import (
	"context"
	"errors"
	"time"

	"github.com/scriptora/scriptora/internal/id"
	"github.com/scriptora/scriptora/internal/identity"
	"github.com/scriptora/scriptora/internal/role"
)

// Domain errors
var (
	ErrInvitationNotFound    = errors.New("invitation no longer exists")
	ErrTokenNotFound         = errors.New("invitation token no longer exists")
	ErrNoInvitees            = errors.New("at least one invited email is required")
	ErrSelfInvite            = errors.New("users cannot invite themselves")
	ErrAlreadyMember         = errors.New("invited user is already a member of the container")
	ErrEmailMismatch         = errors.New("invitation was addressed to a different email")
	ErrMissingAccountDetails = errors.New("name and password are required to provision a new account")
)

// Invitation is a pending, addressed offer. A personal invitation
// (ContainerID empty) offers a collaborator link; a container invitation
// offers Role on ContainerID. The id is a deterministic hash of the
// (inviter, invitee, container) triple, so re-inviting the same pair
// collides with the earlier record instead of duplicating it.
type Invitation struct {
	ID               string
	InvitingUserID   string
	InvitedUserEmail string
	InvitedUserName  string
	ContainerID      string
	Role             role.Role
	Message          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        time.Time
	AcceptedAt       *time.Time
}

// IsContainerInvite reports whether the invitation targets a container.
func (i *Invitation) IsContainerInvite() bool {
	return i.ContainerID != ""
}

// NewID derives the deterministic invitation id. The key order
// inviter:invitee:container is load-bearing for dedup and must not change.
func NewID(invitingUserID, invitedEmail, containerID string) string {
	return id.Deterministic("invitation", invitingUserID, identity.NormalizeEmail(invitedEmail), containerID)
}

// Token is a link-based, role-bound, container-bound offer not addressed to
// a specific email. Any authenticated user presenting it may claim the role.
// One token exists per (container, role) pair.
type Token struct {
	ID          string
	ContainerID string
	Role        role.Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// NewTokenID derives the deterministic token id for a (container, role) pair.
func NewTokenID(containerID string, r role.Role) string {
	return id.Deterministic("container-token", containerID, string(r))
}

// Repository defines the interface for invitation storage.
type Repository interface {
	// GetByID retrieves an invitation by id.
	GetByID(ctx context.Context, invitationID string) (*Invitation, error)

	// Create stores a new invitation.
	Create(ctx context.Context, inv *Invitation) error

	// Patch updates the offered role, message, and expiry of an existing
	// invitation. Re-inviting a colliding pair routes through this.
	Patch(ctx context.Context, invitationID string, r role.Role, message string, expiresAt time.Time) error

	// MarkAccepted records the acceptance time on an invitation.
	MarkAccepted(ctx context.Context, invitationID string, at time.Time) error

	// Remove deletes an invitation.
	Remove(ctx context.Context, invitationID string) error

	// ListForContainerEmail returns all pending invitations addressed to
	// email for the given container, regardless of inviter.
	ListForContainerEmail(ctx context.Context, containerID, email string) ([]*Invitation, error)

	// ListByEmail returns all pending invitations addressed to email.
	ListByEmail(ctx context.Context, email string) ([]*Invitation, error)

	// ListExpired returns invitations whose expiry is before the cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]*Invitation, error)
}

// TokenRepository defines the interface for invitation token storage.
type TokenRepository interface {
	// GetByID retrieves a token by id.
	GetByID(ctx context.Context, tokenID string) (*Token, error)

	// Get retrieves the token for a (container, role) pair.
	Get(ctx context.Context, containerID string, r role.Role) (*Token, error)

	// Create stores a new token.
	Create(ctx context.Context, token *Token) error

	// Touch extends the expiry of an existing token.
	Touch(ctx context.Context, tokenID string, expiresAt time.Time) error

	// Remove deletes a token.
	Remove(ctx context.Context, tokenID string) error

	// ListExpired returns tokens whose expiry is before the cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]*Token, error)
}

// Sender delivers invitation notifications. Delivery is best effort: a
// failure after a membership mutation has been committed is reported to the
// caller but never rolls the mutation back.
type Sender interface {
	SendInvitation(ctx context.Context, email, inviterName, message, invitationID string) error
	SendContainerInvitation(ctx context.Context, email, inviterName, containerTitle string, r role.Role, message, invitationID string) error
	SendCollaboratorJoined(ctx context.Context, ownerEmail, collaboratorName, containerTitle string) error
}

// Outcome reports the result of an accept operation. Redundant accepts are
// successful no-ops carrying an explanatory message, so racing or retried
// accepts stay idempotent instead of noisy.
type Outcome struct {
	Message string    `json:"message"`
	Role    role.Role `json:"role,omitempty"`
	Changed bool      `json:"changed"`
}

// Outcome messages
const (
	MsgAccessGranted   = "access granted"
	MsgAlreadyAccepted = "invitation already accepted"
	MsgSameRole        = "you already have this role"
	MsgHigherPrivilege = "your current role already grants higher privilege"
)
