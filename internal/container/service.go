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

package container

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/scriptora/scriptora/internal/audit"
	"github.com/scriptora/scriptora/internal/role"
)

// AccessService decides who may read, write, or own a container and applies
// role changes while preserving the membership invariants.
type AccessService struct {
	repo         Repository
	auditLogger  audit.Logger
	serverSecret string
}

// NewAccessService creates a new container access control service.
// serverSecret authorizes server-to-server role management; an empty secret
// disables that path entirely.
func NewAccessService(repo Repository, auditLogger audit.Logger, serverSecret string) *AccessService {
	return &AccessService{
		repo:         repo,
		auditLogger:  auditLogger,
		serverSecret: serverSecret,
	}
}

// GetContainer retrieves a container by id.
func (s *AccessService) GetContainer(ctx context.Context, containerID string) (*Container, error) {
	return s.repo.GetByID(ctx, containerID)
}

// CreateContainer stores a new container owned by ownerID.
func (s *AccessService) CreateContainer(ctx context.Context, kind, title, ownerID string) (*Container, error) {
	if kind != KindProject && kind != KindLibrary {
		return nil, fmt.Errorf("unknown container kind %q", kind)
	}
	now := time.Now()
	c := &Container{
		ID:        NewID(kind),
		Title:     title,
		Owners:    []string{ownerID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	return c, nil
}

// UserRole returns the role userID holds in c, or role.None when the user is
// not a member. A user present in more than one member set is a
// data-integrity fault and is reported as ErrAmbiguousMembership rather than
// silently resolved.
func (s *AccessService) UserRole(c *Container, userID string) (role.Role, error) {
	found := role.None
	for _, r := range role.All() {
		if !contains(c.members(r), userID) {
			continue
		}
		if found != role.None {
			return role.None, fmt.Errorf("%w: user %s in container %s", ErrAmbiguousMembership, userID, c.ID)
		}
		found = r
	}
	return found, nil
}

// IsOwner reports whether userID owns c.
func (s *AccessService) IsOwner(c *Container, userID string) bool {
	r, err := s.UserRole(c, userID)
	return err == nil && r == role.Owner
}

// AddUser places userID into the member set matching r, removing it from any
// other set first, and persists the result.
func (s *AccessService) AddUser(ctx context.Context, c *Container, r role.Role, userID string) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, r)
	}
	for _, other := range role.All() {
		if other != r {
			c.setMembers(other, remove(c.members(other), userID))
		}
	}
	if !contains(c.members(r), userID) {
		c.setMembers(r, append(c.members(r), userID))
	}
	if err := s.repo.UpdateMembers(ctx, c); err != nil {
		return fmt.Errorf("failed to update container members: %w", err)
	}
	return nil
}

// UpdateUser moves userID to the newRole member set, or revokes membership
// entirely when newRole is role.None. The mutation is rejected with
// ErrLastOwner if it would remove the last remaining owner. This invariant is
// enforced here and nowhere else; callers must not re-implement it.
func (s *AccessService) UpdateUser(ctx context.Context, c *Container, userID string, newRole role.Role) error {
	if newRole != role.None && !newRole.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, newRole)
	}

	current, err := s.UserRole(c, userID)
	if err != nil {
		return err
	}
	if current == role.Owner && newRole != role.Owner && len(c.Owners) == 1 {
		return ErrLastOwner
	}

	if newRole == role.None {
		if current == role.None {
			return ErrUserNotMember
		}
		for _, r := range role.All() {
			c.setMembers(r, remove(c.members(r), userID))
		}
		if err := s.repo.UpdateMembers(ctx, c); err != nil {
			return fmt.Errorf("failed to update container members: %w", err)
		}
		return nil
	}

	return s.AddUser(ctx, c, newRole, userID)
}

// GrantAtLeast applies offered to userID unless the user already holds an
// equal or less limiting role. It returns whether membership was mutated and
// the role held before the call. Holding an equal or better role is not an
// error; the caller reports it as an informational outcome.
func (s *AccessService) GrantAtLeast(ctx context.Context, c *Container, userID string, offered role.Role) (bool, role.Role, error) {
	if !offered.Valid() {
		return false, role.None, fmt.Errorf("%w: %q", ErrInvalidRole, offered)
	}
	current, err := s.UserRole(c, userID)
	if err != nil {
		return false, role.None, err
	}
	if current != role.None && !role.IsMoreLimiting(current, offered) {
		return false, current, nil
	}

	if current == role.None {
		err = s.AddUser(ctx, c, offered, userID)
	} else {
		err = s.UpdateUser(ctx, c, userID, offered)
	}
	if err != nil {
		return false, current, err
	}
	return true, current, nil
}

// ManageRole is the authorization gate for role changes: only a container
// owner, or a caller presenting the server-to-server secret, may change
// another user's role. The mutation itself is delegated to UpdateUser.
func (s *AccessService) ManageRole(ctx context.Context, actingUserID, containerID, managedUserID string, newRole role.Role, secret string) error {
	c, err := s.repo.GetByID(ctx, containerID)
	if err != nil {
		return err
	}

	if !s.authorizedToManage(c, actingUserID, secret) {
		return fmt.Errorf("%w: only owners may manage roles", ErrNotAuthorized)
	}

	if err := s.UpdateUser(ctx, c, managedUserID, newRole); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleChanged,
		ActorID:  actingUserID,
		Resource: containerID,
		Metadata: map[string]any{
			"user_id":  managedUserID,
			"new_role": string(newRole),
		},
	})
	return nil
}

func (s *AccessService) authorizedToManage(c *Container, actingUserID, secret string) bool {
	if s.IsOwner(c, actingUserID) {
		return true
	}
	if s.serverSecret == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.serverSecret)) == 1
}
