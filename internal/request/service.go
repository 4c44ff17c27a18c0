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

package request

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scriptora/scriptora/internal/audit"
	"github.com/scriptora/scriptora/internal/container"
	"github.com/scriptora/scriptora/internal/identity"
	"github.com/scriptora/scriptora/internal/invitation"
	"github.com/scriptora/scriptora/internal/observability/logger"
	"github.com/scriptora/scriptora/internal/role"
)

// Service handles the owner-approved access request workflow: a non-member
// asks for a role, an owner accepts or rejects.
type Service struct {
	requests    Repository
	containers  container.Repository
	access      *container.AccessService
	users       *identity.Service
	sender      Sender
	auditLogger audit.Logger
}

// NewService creates a new access request service.
func NewService(
	requests Repository,
	containers container.Repository,
	access *container.AccessService,
	users *identity.Service,
	sender Sender,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		requests:    requests,
		containers:  containers,
		access:      access,
		users:       users,
		sender:      sender,
		auditLogger: auditLogger,
	}
}

// Create records a request by requestingUser for r on containerID, or
// refreshes the pending request for the same (user, container) pair.
// Requests must escalate privilege: asking for a role the requester already
// holds, or a more limiting one, is rejected. (The accept path, by contrast,
// treats a redundant grant as a harmless no-op; requests are stricter on
// purpose.)
func (s *Service) Create(ctx context.Context, requestingUser *identity.User, containerID string, r role.Role) (*Request, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", container.ErrInvalidRole, r)
	}

	c, err := s.containers.GetByID(ctx, containerID)
	if err != nil {
		return nil, err
	}

	current, err := s.access.UserRole(c, requestingUser.ID)
	if err != nil {
		return nil, err
	}
	if current != role.None && !role.IsMoreLimiting(current, r) {
		return nil, fmt.Errorf("%w: current role %q, requested %q", ErrRoleNotEscalated, current, r)
	}

	now := time.Now()
	req := &Request{
		ID:          NewID(requestingUser.ID, c.ID),
		UserID:      requestingUser.ID,
		ContainerID: c.ID,
		Role:        r,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if existing, err := s.requests.GetByID(ctx, req.ID); err == nil && existing != nil {
		if err := s.requests.Patch(ctx, existing.ID, r, now); err != nil {
			return nil, fmt.Errorf("failed to refresh container request: %w", err)
		}
		existing.Role = r
		existing.UpdatedAt = now
		req = existing
	} else if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create container request: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccessRequested,
		ActorID:  requestingUser.ID,
		Resource: c.ID,
		Metadata: map[string]any{audit.AttrRole: string(r)},
	})

	// Best-effort owner notification.
	for _, ownerID := range c.Owners {
		owner, err := s.users.GetUser(ctx, ownerID)
		if err != nil {
			slog.WarnContext(ctx, "failed to resolve owner for notification",
				logger.UserID(ownerID), logger.Error(err))
			continue
		}
		if err := s.sender.SendAccessRequest(ctx, owner.Email, requestingUser.Name, c.Title, r); err != nil {
			slog.WarnContext(ctx, "failed to notify owner of access request",
				logger.UserID(ownerID), logger.Error(err))
		}
	}

	return req, nil
}

// Respond resolves a pending request. Only an owner of the target container
// may respond. On accept the requested role is applied with the same
// add/update/no-op comparison as invitation acceptance; the request record
// is removed whichever way the owner decides. A notification failure after
// the grant has been committed does not roll the grant back.
func (s *Service) Respond(ctx context.Context, requestID string, actingUser *identity.User, accept bool) (*invitation.Outcome, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil || req == nil {
		return nil, ErrRequestNotFound
	}

	requester, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRequesterGone, req.UserID)
	}

	c, err := s.containers.GetByID(ctx, req.ContainerID)
	if err != nil {
		return nil, err
	}
	if !s.access.IsOwner(c, actingUser.ID) {
		return nil, fmt.Errorf("%w: only owners may respond to access requests", container.ErrNotAuthorized)
	}

	outcome := &invitation.Outcome{Message: "access request rejected"}
	if accept {
		granted, current, err := s.access.GrantAtLeast(ctx, c, requester.ID, req.Role)
		if err != nil {
			return nil, err
		}
		outcome = outcomeFor(granted, current, req.Role)
	}

	if err := s.requests.Remove(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("failed to remove container request: %w", err)
	}

	eventType := audit.TypeAccessDenied
	if accept {
		eventType = audit.TypeAccessGranted
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		ActorID:  actingUser.ID,
		Resource: c.ID,
		Metadata: map[string]any{
			"user_id":      requester.ID,
			audit.AttrRole: string(req.Role),
		},
	})

	if err := s.sender.SendAccessResponse(ctx, requester.Email, c.Title, accept, req.Role); err != nil {
		// The grant, if any, is already committed; report and move on.
		slog.WarnContext(ctx, "failed to notify requester of access response",
			logger.UserID(requester.ID), logger.Error(err))
	}

	return outcome, nil
}

func outcomeFor(granted bool, current, offered role.Role) *invitation.Outcome {
	if granted {
		return &invitation.Outcome{Message: invitation.MsgAccessGranted, Role: offered, Changed: true}
	}
	if current == offered {
		return &invitation.Outcome{Message: invitation.MsgSameRole, Role: current}
	}
	return &invitation.Outcome{Message: invitation.MsgHigherPrivilege, Role: current}
}
