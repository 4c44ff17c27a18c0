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
	"fmt"
	"log/slog"
	"time"

	"github.com/scriptora/scriptora/internal/audit"
	"github.com/scriptora/scriptora/internal/container"
	"github.com/scriptora/scriptora/internal/identity"
	"github.com/scriptora/scriptora/internal/observability/logger"
	"github.com/scriptora/scriptora/internal/role"
)

// Invitee identifies a user being invited to a container.
type Invitee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// InviteResult pairs an invited email with the id of the invitation that was
// created or touched for it.
type InviteResult struct {
	Email        string `json:"email"`
	InvitationID string `json:"invitation_id"`
}

// Service reconciles pending invitations and invitation tokens against
// container membership. All mutating operations are a single
// read-decide-write sequence; concurrency control is deferred to the
// backing store.
type Service struct {
	invitations Repository
	tokens      TokenRepository
	containers  container.Repository
	access      *container.AccessService
	users       *identity.Service
	sender      Sender
	auditLogger audit.Logger

	invitationTTL time.Duration
	tokenTTL      time.Duration
}

// NewService creates a new invitation service.
func NewService(
	invitations Repository,
	tokens TokenRepository,
	containers container.Repository,
	access *container.AccessService,
	users *identity.Service,
	sender Sender,
	auditLogger audit.Logger,
	invitationTTL, tokenTTL time.Duration,
) *Service {
	return &Service{
		invitations:   invitations,
		tokens:        tokens,
		containers:    containers,
		access:        access,
		users:         users,
		sender:        sender,
		auditLogger:   auditLogger,
		invitationTTL: invitationTTL,
		tokenTTL:      tokenTTL,
	}
}

// Invite creates or refreshes personal collaboration invitations for each
// address in invitedEmails. Re-inviting the same address extends the expiry
// of the earlier invitation instead of duplicating it.
func (s *Service) Invite(ctx context.Context, invitingUserID string, invitedEmails []string, message string) ([]InviteResult, error) {
	inviter, err := s.users.GetUser(ctx, invitingUserID)
	if err != nil {
		return nil, err
	}
	if len(invitedEmails) == 0 {
		return nil, ErrNoInvitees
	}
	for _, email := range invitedEmails {
		if identity.NormalizeEmail(email) == identity.NormalizeEmail(inviter.Email) {
			return nil, ErrSelfInvite
		}
	}

	results := make([]InviteResult, 0, len(invitedEmails))
	for _, email := range invitedEmails {
		email = identity.NormalizeEmail(email)
		inv, err := s.upsert(ctx, &Invitation{
			ID:               NewID(inviter.ID, email, ""),
			InvitingUserID:   inviter.ID,
			InvitedUserEmail: email,
			Message:          message,
		})
		if err != nil {
			return nil, err
		}

		if err := s.sender.SendInvitation(ctx, email, inviter.Name, message, inv.ID); err != nil {
			return nil, fmt.Errorf("failed to send invitation: %w", err)
		}

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeInviteSent,
			ActorID:  inviter.ID,
			Resource: inv.ID,
			Metadata: map[string]any{audit.AttrEmail: email},
		})
		results = append(results, InviteResult{Email: email, InvitationID: inv.ID})
	}
	return results, nil
}

// InviteToContainer creates or refreshes invitations offering r on
// containerID for each invitee. Only a current owner of the container may
// invite; inviting an existing member is a conflict.
func (s *Service) InviteToContainer(ctx context.Context, invitingUserID string, invited []Invitee, containerID string, r role.Role, message string, skipEmail bool) ([]InviteResult, error) {
	inviter, err := s.users.GetUser(ctx, invitingUserID)
	if err != nil {
		return nil, err
	}
	if len(invited) == 0 {
		return nil, ErrNoInvitees
	}
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", container.ErrInvalidRole, r)
	}
	for _, invitee := range invited {
		if identity.NormalizeEmail(invitee.Email) == identity.NormalizeEmail(inviter.Email) {
			return nil, ErrSelfInvite
		}
	}

	c, err := s.containers.GetByID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if !s.access.IsOwner(c, inviter.ID) {
		return nil, fmt.Errorf("%w: only owners may invite to a container", container.ErrNotAuthorized)
	}

	results := make([]InviteResult, 0, len(invited))
	for _, invitee := range invited {
		email := identity.NormalizeEmail(invitee.Email)

		// An invitee with an account that is already a member needs no
		// invitation; surface the conflict instead of a silent no-op. Only
		// a missing account skips the check.
		existing, err := s.users.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up invitee: %w", err)
		}
		if existing != nil {
			current, err := s.access.UserRole(c, existing.ID)
			if err != nil {
				return nil, err
			}
			if current != role.None {
				return nil, fmt.Errorf("%w: %s", ErrAlreadyMember, email)
			}
		}

		inv, err := s.upsert(ctx, &Invitation{
			ID:               NewID(inviter.ID, email, c.ID),
			InvitingUserID:   inviter.ID,
			InvitedUserEmail: email,
			InvitedUserName:  invitee.Name,
			ContainerID:      c.ID,
			Role:             r,
			Message:          message,
		})
		if err != nil {
			return nil, err
		}

		if !skipEmail {
			if err := s.sender.SendContainerInvitation(ctx, email, inviter.Name, c.Title, r, message, inv.ID); err != nil {
				return nil, fmt.Errorf("failed to send invitation: %w", err)
			}
		}

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeInviteSent,
			ActorID:  inviter.ID,
			Resource: c.ID,
			Metadata: map[string]any{
				audit.AttrEmail: email,
				audit.AttrRole:  string(r),
			},
		})
		results = append(results, InviteResult{Email: email, InvitationID: inv.ID})
	}
	return results, nil
}

// upsert creates inv or, when an invitation with the same deterministic id
// already exists, refreshes it: the expiry always extends, the message is
// replaced, and the offered role reconciles to the least limiting of the old
// and new offers so a re-invite at a higher role escalates the pending offer.
func (s *Service) upsert(ctx context.Context, inv *Invitation) (*Invitation, error) {
	now := time.Now()
	expiry := now.Add(s.invitationTTL)

	existing, err := s.invitations.GetByID(ctx, inv.ID)
	if err == nil && existing != nil {
		best := role.LeastLimiting(existing.Role, inv.Role)
		if err := s.invitations.Patch(ctx, existing.ID, best, inv.Message, expiry); err != nil {
			return nil, fmt.Errorf("failed to refresh invitation: %w", err)
		}
		existing.Role = best
		existing.Message = inv.Message
		existing.UpdatedAt = now
		existing.ExpiresAt = expiry
		return existing, nil
	}

	inv.CreatedAt = now
	inv.UpdatedAt = now
	inv.ExpiresAt = expiry
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	return inv, nil
}

// Accept resolves a personal invitation. When the invited address has no
// account yet, name and password are required and a new account is
// provisioned. On success the collaborator link is created and the
// invitation removed.
func (s *Service) Accept(ctx context.Context, invitationID, name, password string) (*identity.User, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil || inv == nil {
		return nil, ErrInvitationNotFound
	}

	user, err := s.users.GetByEmail(ctx, inv.InvitedUserEmail)
	if err != nil || user == nil {
		if name == "" || password == "" {
			return nil, ErrMissingAccountDetails
		}
		user, err = s.users.Provision(ctx, inv.InvitedUserEmail, name, password)
		if err != nil {
			return nil, err
		}
	}

	if err := s.users.AddCollaborator(ctx, inv.InvitingUserID, user.ID); err != nil {
		return nil, err
	}
	if err := s.invitations.Remove(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("failed to remove invitation: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeInviteAccepted,
		ActorID:  user.ID,
		Resource: inv.ID,
	})
	return user, nil
}

// AcceptContainerInvite accepts a container invitation on behalf of
// acceptingUser. All pending invitations for the same (container, email)
// pair are reconciled: the least limiting offered role wins, and every offer
// for the pair is consumed. Accepting a redundant or inferior offer is a
// successful no-op.
func (s *Service) AcceptContainerInvite(ctx context.Context, invitationID string, acceptingUser *identity.User) (*Outcome, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil || inv == nil {
		return nil, ErrInvitationNotFound
	}

	// Invitations are not transferable.
	if identity.NormalizeEmail(acceptingUser.Email) != identity.NormalizeEmail(inv.InvitedUserEmail) {
		return nil, ErrEmailMismatch
	}

	c, err := s.containers.GetByID(ctx, inv.ContainerID)
	if err != nil {
		return nil, err
	}

	if inv.AcceptedAt != nil {
		return &Outcome{Message: MsgAlreadyAccepted, Role: inv.Role}, nil
	}

	offers, err := s.pendingOffers(ctx, c.ID, inv)
	if err != nil {
		return nil, err
	}
	best := role.None
	for _, offer := range offers {
		best = role.LeastLimiting(best, offer.Role)
	}

	granted, current, err := s.access.GrantAtLeast(ctx, c, acceptingUser.ID, best)
	if err != nil {
		return nil, err
	}

	if err := s.invitations.MarkAccepted(ctx, inv.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	for _, offer := range offers {
		if err := s.invitations.Remove(ctx, offer.ID); err != nil {
			return nil, fmt.Errorf("failed to remove invitation: %w", err)
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeInviteAccepted,
		ActorID:  acceptingUser.ID,
		Resource: c.ID,
		Metadata: map[string]any{audit.AttrRole: string(best)},
	})

	if granted {
		// Best-effort owner notification; the membership change is final.
		s.notifyOwners(ctx, c, acceptingUser)
	}

	return outcomeFor(granted, current, best), nil
}

// AcceptInvitationToken claims the role offered by a link token. Pending
// addressed invitations for the same (container, email) pair participate in
// the reconciliation: when one of them offers a better role than the token,
// the invitation wins.
func (s *Service) AcceptInvitationToken(ctx context.Context, tokenID, acceptingUserID string) (*Outcome, error) {
	tok, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil || tok == nil {
		return nil, ErrTokenNotFound
	}
	user, err := s.users.GetUser(ctx, acceptingUserID)
	if err != nil {
		return nil, err
	}
	if !tok.Role.Valid() {
		return nil, fmt.Errorf("%w: token role %q", container.ErrInvalidRole, tok.Role)
	}

	c, err := s.containers.GetByID(ctx, tok.ContainerID)
	if err != nil {
		return nil, err
	}

	offers, err := s.pendingOffers(ctx, c.ID, nil)
	if err != nil {
		return nil, err
	}
	best := tok.Role
	for _, offer := range offers {
		if identity.NormalizeEmail(offer.InvitedUserEmail) != identity.NormalizeEmail(user.Email) {
			continue
		}
		best = role.LeastLimiting(best, offer.Role)
	}

	granted, current, err := s.access.GrantAtLeast(ctx, c, user.ID, best)
	if err != nil {
		return nil, err
	}

	// Consume the addressed offers the token acceptance supersedes; the
	// token itself stays valid for other users until it expires.
	for _, offer := range offers {
		if identity.NormalizeEmail(offer.InvitedUserEmail) != identity.NormalizeEmail(user.Email) {
			continue
		}
		if err := s.invitations.Remove(ctx, offer.ID); err != nil {
			return nil, fmt.Errorf("failed to remove invitation: %w", err)
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenAccepted,
		ActorID:  user.ID,
		Resource: c.ID,
		Metadata: map[string]any{audit.AttrRole: string(best)},
	})

	if granted {
		s.notifyOwners(ctx, c, user)
	}

	return outcomeFor(granted, current, best), nil
}

// pendingOffers returns the pending invitations for (containerID, email of
// accepted), including accepted itself exactly once. When accepted is nil
// the list covers all emails; callers filter.
func (s *Service) pendingOffers(ctx context.Context, containerID string, accepted *Invitation) ([]*Invitation, error) {
	if accepted == nil {
		all, err := s.invitations.ListForContainerEmail(ctx, containerID, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list invitations: %w", err)
		}
		return all, nil
	}

	pending, err := s.invitations.ListForContainerEmail(ctx, containerID, identity.NormalizeEmail(accepted.InvitedUserEmail))
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	offers := []*Invitation{accepted}
	for _, p := range pending {
		if p.ID != accepted.ID {
			offers = append(offers, p)
		}
	}
	return offers, nil
}

// ListPending returns the pending invitations addressed to email, personal
// and container-bound alike.
func (s *Service) ListPending(ctx context.Context, email string) ([]*Invitation, error) {
	pending, err := s.invitations.ListByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return pending, nil
}

// Reject removes a pending invitation unconditionally. No role comparison
// is involved; only the rejected record is consumed.
func (s *Service) Reject(ctx context.Context, invitationID string) error {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil || inv == nil {
		return ErrInvitationNotFound
	}
	if err := s.invitations.Remove(ctx, inv.ID); err != nil {
		return fmt.Errorf("failed to remove invitation: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeInviteRejected,
		Resource: inv.ID,
		Metadata: map[string]any{audit.AttrEmail: inv.InvitedUserEmail},
	})
	return nil
}

// RequestToken mints the link token offering r on containerID, or extends
// its expiry when one already exists for the pair. Only an owner may mint.
func (s *Service) RequestToken(ctx context.Context, requestingUserID, containerID string, r role.Role) (*Token, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", container.ErrInvalidRole, r)
	}
	c, err := s.containers.GetByID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if !s.access.IsOwner(c, requestingUserID) {
		return nil, fmt.Errorf("%w: only owners may mint invitation tokens", container.ErrNotAuthorized)
	}

	now := time.Now()
	expiry := now.Add(s.tokenTTL)

	existing, err := s.tokens.Get(ctx, c.ID, r)
	if err == nil && existing != nil {
		if err := s.tokens.Touch(ctx, existing.ID, expiry); err != nil {
			return nil, fmt.Errorf("failed to extend invitation token: %w", err)
		}
		existing.ExpiresAt = expiry
		return existing, nil
	}

	tok := &Token{
		ID:          NewTokenID(c.ID, r),
		ContainerID: c.ID,
		Role:        r,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   expiry,
	}
	if err := s.tokens.Create(ctx, tok); err != nil {
		return nil, fmt.Errorf("failed to create invitation token: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenMinted,
		ActorID:  requestingUserID,
		Resource: c.ID,
		Metadata: map[string]any{audit.AttrRole: string(r)},
	})
	return tok, nil
}

// RefreshToken extends the link token for (containerID, r), minting it when
// absent. Same owner gate and extend-on-recreate semantics as RequestToken.
func (s *Service) RefreshToken(ctx context.Context, requestingUserID, containerID string, r role.Role) (*Token, error) {
	return s.RequestToken(ctx, requestingUserID, containerID, r)
}

// notifyOwners tells the other owners about a new collaborator. Failures are
// logged and swallowed; the membership mutation is already committed.
func (s *Service) notifyOwners(ctx context.Context, c *container.Container, joined *identity.User) {
	for _, ownerID := range c.Owners {
		if ownerID == joined.ID {
			continue
		}
		owner, err := s.users.GetUser(ctx, ownerID)
		if err != nil {
			slog.WarnContext(ctx, "failed to resolve owner for notification",
				logger.UserID(ownerID), logger.Error(err))
			continue
		}
		if err := s.sender.SendCollaboratorJoined(ctx, owner.Email, joined.Name, c.Title); err != nil {
			slog.WarnContext(ctx, "failed to notify owner of new collaborator",
				logger.UserID(ownerID), logger.Error(err))
		}
	}
}

func outcomeFor(granted bool, current, offered role.Role) *Outcome {
	if granted {
		return &Outcome{Message: MsgAccessGranted, Role: offered, Changed: true}
	}
	if current == offered {
		return &Outcome{Message: MsgSameRole, Role: current}
	}
	return &Outcome{Message: MsgHigherPrivilege, Role: current}
}
