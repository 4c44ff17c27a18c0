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
	"testing"
	"time"

	"github.com/scriptora/scriptora/internal/audit"
	"github.com/scriptora/scriptora/internal/container"
	"github.com/scriptora/scriptora/internal/identity"
	"github.com/scriptora/scriptora/internal/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory fakes. Each mirrors the pending-only listing semantics of the
// postgres implementation.

type memInvitationRepo struct {
	invitations map[string]*Invitation
}

func newMemInvitationRepo() *memInvitationRepo {
	return &memInvitationRepo{invitations: make(map[string]*Invitation)}
}

func (m *memInvitationRepo) GetByID(ctx context.Context, invitationID string) (*Invitation, error) {
	inv, ok := m.invitations[invitationID]
	if !ok {
		return nil, ErrInvitationNotFound
	}
	return inv, nil
}

func (m *memInvitationRepo) Create(ctx context.Context, inv *Invitation) error {
	m.invitations[inv.ID] = inv
	return nil
}

func (m *memInvitationRepo) Patch(ctx context.Context, invitationID string, r role.Role, message string, expiresAt time.Time) error {
	inv, ok := m.invitations[invitationID]
	if !ok {
		return ErrInvitationNotFound
	}
	inv.Role = r
	inv.Message = message
	inv.ExpiresAt = expiresAt
	inv.UpdatedAt = time.Now()
	return nil
}

func (m *memInvitationRepo) MarkAccepted(ctx context.Context, invitationID string, at time.Time) error {
	inv, ok := m.invitations[invitationID]
	if !ok {
		return ErrInvitationNotFound
	}
	inv.AcceptedAt = &at
	return nil
}

func (m *memInvitationRepo) Remove(ctx context.Context, invitationID string) error {
	delete(m.invitations, invitationID)
	return nil
}

func (m *memInvitationRepo) ListForContainerEmail(ctx context.Context, containerID, email string) ([]*Invitation, error) {
	var out []*Invitation
	for _, inv := range m.invitations {
		if inv.ContainerID != containerID || inv.AcceptedAt != nil {
			continue
		}
		if email != "" && inv.InvitedUserEmail != email {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memInvitationRepo) ListByEmail(ctx context.Context, email string) ([]*Invitation, error) {
	var out []*Invitation
	for _, inv := range m.invitations {
		if inv.InvitedUserEmail == email && inv.AcceptedAt == nil {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memInvitationRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]*Invitation, error) {
	var out []*Invitation
	for _, inv := range m.invitations {
		if inv.ExpiresAt.Before(cutoff) {
			out = append(out, inv)
		}
	}
	return out, nil
}

type memTokenRepo struct {
	tokens map[string]*Token
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*Token)}
}

func (m *memTokenRepo) GetByID(ctx context.Context, tokenID string) (*Token, error) {
	tok, ok := m.tokens[tokenID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return tok, nil
}

func (m *memTokenRepo) Get(ctx context.Context, containerID string, r role.Role) (*Token, error) {
	for _, tok := range m.tokens {
		if tok.ContainerID == containerID && tok.Role == r {
			return tok, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (m *memTokenRepo) Create(ctx context.Context, token *Token) error {
	m.tokens[token.ID] = token
	return nil
}

func (m *memTokenRepo) Touch(ctx context.Context, tokenID string, expiresAt time.Time) error {
	tok, ok := m.tokens[tokenID]
	if !ok {
		return ErrTokenNotFound
	}
	tok.ExpiresAt = expiresAt
	return nil
}

func (m *memTokenRepo) Remove(ctx context.Context, tokenID string) error {
	delete(m.tokens, tokenID)
	return nil
}

func (m *memTokenRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]*Token, error) {
	var out []*Token
	for _, tok := range m.tokens {
		if tok.ExpiresAt.Before(cutoff) {
			out = append(out, tok)
		}
	}
	return out, nil
}

type memContainerRepo struct {
	containers map[string]*container.Container
}

func newMemContainerRepo() *memContainerRepo {
	return &memContainerRepo{containers: make(map[string]*container.Container)}
}

func (m *memContainerRepo) Create(ctx context.Context, c *container.Container) error {
	m.containers[c.ID] = c
	return nil
}

func (m *memContainerRepo) GetByID(ctx context.Context, containerID string) (*container.Container, error) {
	c, ok := m.containers[containerID]
	if !ok {
		return nil, container.ErrContainerNotFound
	}
	return c, nil
}

func (m *memContainerRepo) UpdateMembers(ctx context.Context, c *container.Container) error {
	m.containers[c.ID] = c
	return nil
}

func (m *memContainerRepo) Delete(ctx context.Context, containerID string) error {
	delete(m.containers, containerID)
	return nil
}

type memUserRepo struct {
	users       map[string]*identity.User
	credentials map[string]*identity.Credentials

	// lookupErr, when set, is returned by GetByEmail to simulate a
	// store failure.
	lookupErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:       make(map[string]*identity.User),
		credentials: make(map[string]*identity.Credentials),
	}
}

func (m *memUserRepo) Create(ctx context.Context, user *identity.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (*identity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *memUserRepo) AddCredentials(ctx context.Context, credentials *identity.Credentials) error {
	m.credentials[credentials.UserID] = credentials
	return nil
}

func (m *memUserRepo) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	c, ok := m.credentials[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return c, nil
}

type memCollabRepo struct {
	links map[string][]string
}

func newMemCollabRepo() *memCollabRepo {
	return &memCollabRepo{links: make(map[string][]string)}
}

func (m *memCollabRepo) Add(ctx context.Context, userID, collaboratorID string) error {
	m.links[userID] = append(m.links[userID], collaboratorID)
	return nil
}

func (m *memCollabRepo) List(ctx context.Context, userID string) ([]string, error) {
	return m.links[userID], nil
}

// recordingSender counts notification deliveries.
type recordingSender struct {
	invitations          int
	containerInvitations int
	collaboratorJoined   int
}

func (r *recordingSender) SendInvitation(ctx context.Context, email, inviterName, message, invitationID string) error {
	r.invitations++
	return nil
}

func (r *recordingSender) SendContainerInvitation(ctx context.Context, email, inviterName, containerTitle string, ro role.Role, message, invitationID string) error {
	r.containerInvitations++
	return nil
}

func (r *recordingSender) SendCollaboratorJoined(ctx context.Context, ownerEmail, collaboratorName, containerTitle string) error {
	r.collaboratorJoined++
	return nil
}

type fixture struct {
	service    *Service
	users      *identity.Service
	access     *container.AccessService
	inviteRepo *memInvitationRepo
	tokenRepo  *memTokenRepo
	userRepo   *memUserRepo
	collabs    *memCollabRepo
	sender     *recordingSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	inviteRepo := newMemInvitationRepo()
	tokenRepo := newMemTokenRepo()
	containerRepo := newMemContainerRepo()
	userRepo := newMemUserRepo()
	collabs := newMemCollabRepo()
	sender := &recordingSender{}
	auditLogger := audit.NewSlogLogger()

	hasher := identity.NewPasswordHasher(8*1024, 1, 1, 16, 32)
	users := identity.NewService(userRepo, collabs, hasher, auditLogger)
	access := container.NewAccessService(containerRepo, auditLogger, "")

	service := NewService(
		inviteRepo, tokenRepo, containerRepo, access, users, sender, auditLogger,
		30*24*time.Hour, 14*24*time.Hour,
	)
	return &fixture{
		service:    service,
		users:      users,
		access:     access,
		inviteRepo: inviteRepo,
		tokenRepo:  tokenRepo,
		userRepo:   userRepo,
		collabs:    collabs,
		sender:     sender,
	}
}

func (f *fixture) user(t *testing.T, email, name string) *identity.User {
	t.Helper()
	u, err := f.users.Provision(context.Background(), email, name, "pw")
	require.NoError(t, err)
	return u
}

func (f *fixture) container(t *testing.T, ownerID string) *container.Container {
	t.Helper()
	c, err := f.access.CreateContainer(context.Background(), container.KindProject, "Doc", ownerID)
	require.NoError(t, err)
	return c
}

func TestInvitation_NewID_Deterministic(t *testing.T) {
	a := NewID("user-1", "Friend@Example.com", "project:1")
	b := NewID("user-1", "friend@example.com", "project:1")
	assert.Equal(t, a, b, "email normalization must not change the id")

	c := NewID("user-2", "friend@example.com", "project:1")
	assert.NotEqual(t, a, c, "different inviters produce different ids")

	assert.Equal(t, NewTokenID("project:1", role.Writer), NewTokenID("project:1", role.Writer))
	assert.NotEqual(t, NewTokenID("project:1", role.Writer), NewTokenID("project:1", role.Viewer))
}

// TestPurpose: Validates personal invitation creation, re-invite deduplication, and guard clauses.
// Scope: Unit Test
// Security: Self-invitation is rejected; re-invites extend rather than duplicate records.
// Expected: One record per (inviter, email) pair whose expiry moves forward on re-invite.
// Test Case ID: INV-01
func TestInvitation_Invite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inviter := f.user(t, "host@example.com", "Host")

	results, err := f.service.Invite(ctx, inviter.ID, []string{"Friend@Example.com"}, "join me")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "friend@example.com", results[0].Email)
	assert.Equal(t, 1, f.sender.invitations)

	first := f.inviteRepo.invitations[results[0].InvitationID]
	require.NotNil(t, first)
	firstExpiry := first.ExpiresAt

	// Re-inviting touches the same record.
	time.Sleep(5 * time.Millisecond)
	again, err := f.service.Invite(ctx, inviter.ID, []string{"friend@example.com"}, "join me")
	require.NoError(t, err)
	assert.Equal(t, results[0].InvitationID, again[0].InvitationID)
	assert.Len(t, f.inviteRepo.invitations, 1)
	assert.True(t, f.inviteRepo.invitations[results[0].InvitationID].ExpiresAt.After(firstExpiry))

	_, err = f.service.Invite(ctx, inviter.ID, nil, "")
	assert.ErrorIs(t, err, ErrNoInvitees)

	_, err = f.service.Invite(ctx, inviter.ID, []string{"HOST@example.com"}, "")
	assert.ErrorIs(t, err, ErrSelfInvite)
}

// TestPurpose: Validates personal invitation acceptance, including account provisioning for invitees without one.
// Scope: Unit Test
// Security: Provisioning through acceptance requires explicit account details.
// Expected: A new account is created when details are supplied, the collaborator link is bidirectional, and the invitation is consumed.
// Test Case ID: INV-02
func TestInvitation_Accept_ProvisionsAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inviter := f.user(t, "host@example.com", "Host")

	results, err := f.service.Invite(ctx, inviter.ID, []string{"v@example.com"}, "")
	require.NoError(t, err)
	invitationID := results[0].InvitationID

	// No account and no details: rejected.
	_, err = f.service.Accept(ctx, invitationID, "", "")
	assert.ErrorIs(t, err, ErrMissingAccountDetails)

	invited, err := f.service.Accept(ctx, invitationID, "V", "pw")
	require.NoError(t, err)
	assert.Equal(t, "v@example.com", invited.Email)
	assert.Equal(t, "V", invited.Name)

	// The link is recorded in both directions and the invitation is gone.
	hostLinks, _ := f.collabs.List(ctx, inviter.ID)
	invitedLinks, _ := f.collabs.List(ctx, invited.ID)
	assert.Contains(t, hostLinks, invited.ID)
	assert.Contains(t, invitedLinks, inviter.ID)
	assert.Empty(t, f.inviteRepo.invitations)

	_, err = f.service.Accept(ctx, invitationID, "", "")
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestInvitation_Accept_ExistingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inviter := f.user(t, "host@example.com", "Host")
	existing := f.user(t, "friend@example.com", "Friend")

	results, err := f.service.Invite(ctx, inviter.ID, []string{"friend@example.com"}, "")
	require.NoError(t, err)

	// Details are ignored when the account already exists.
	accepted, err := f.service.Accept(ctx, results[0].InvitationID, "", "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, accepted.ID)
}

func TestInvitation_InviteToContainer_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	viewer := f.user(t, "viewer@example.com", "Viewer")
	c := f.container(t, owner.ID)
	require.NoError(t, f.access.AddUser(ctx, c, role.Viewer, viewer.ID))

	// Only owners may invite.
	_, err := f.service.InviteToContainer(ctx, viewer.ID, []Invitee{{Email: "x@example.com"}}, c.ID, role.Viewer, "", true)
	assert.ErrorIs(t, err, container.ErrNotAuthorized)

	// Inviting a current member is a conflict.
	_, err = f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: "viewer@example.com"}}, c.ID, role.Writer, "", true)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	// Role must be valid.
	_, err = f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: "x@example.com"}}, c.ID, "admin", "", true)
	assert.ErrorIs(t, err, container.ErrInvalidRole)

	// skip_email suppresses delivery but still records the invitation.
	results, err := f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: "x@example.com"}}, c.ID, role.Writer, "", true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, f.sender.containerInvitations)

	_, err = f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: "y@example.com"}}, c.ID, role.Writer, "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.sender.containerInvitations)

	// A store failure during the invitee lookup propagates; it must not be
	// mistaken for a missing account and bypass the member check.
	f.userRepo.lookupErr = errors.New("connection reset")
	before := len(f.inviteRepo.invitations)
	_, err = f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: "z@example.com"}}, c.ID, role.Writer, "", true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyMember)
	assert.Len(t, f.inviteRepo.invitations, before)
	f.userRepo.lookupErr = nil
}

// TestPurpose: Validates that re-inviting a colliding (inviter, invitee, container) triple escalates the pending offer.
// Scope: Unit Test
// Security: A repeated invite must not silently discard the newly offered role.
// Expected: The stored offer reconciles to the least limiting role across invites, the message refreshes, and acceptance grants the escalated role.
// Test Case ID: INV-06
func TestInvitation_InviteToContainer_ReinviteEscalatesRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	dave := f.user(t, "dave@example.com", "Dave")
	c := f.container(t, owner.ID)

	first, err := f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: dave.Email}}, c.ID, role.Writer, "come write", true)
	require.NoError(t, err)
	firstExpiry := f.inviteRepo.invitations[first[0].InvitationID].ExpiresAt

	// Same inviter, same invitee, higher role: the single pending record
	// escalates instead of staying at the first offer.
	time.Sleep(5 * time.Millisecond)
	second, err := f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: dave.Email}}, c.ID, role.Owner, "come own", true)
	require.NoError(t, err)
	assert.Equal(t, first[0].InvitationID, second[0].InvitationID)
	require.Len(t, f.inviteRepo.invitations, 1)

	stored := f.inviteRepo.invitations[second[0].InvitationID]
	assert.Equal(t, role.Owner, stored.Role)
	assert.Equal(t, "come own", stored.Message)
	assert.True(t, stored.ExpiresAt.After(firstExpiry))

	// A later, weaker invite refreshes expiry but never downgrades the offer.
	_, err = f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: dave.Email}}, c.ID, role.Viewer, "", true)
	require.NoError(t, err)
	assert.Equal(t, role.Owner, f.inviteRepo.invitations[second[0].InvitationID].Role)

	outcome, err := f.service.AcceptContainerInvite(ctx, second[0].InvitationID, dave)
	require.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.Equal(t, role.Owner, outcome.Role)

	got, err := f.access.UserRole(c, dave.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Owner, got)
}

// TestPurpose: Validates reconciliation of concurrent offers for the same invitee on acceptance.
// Scope: Unit Test
// Security: Privilege is granted once per reconciliation; every pending offer for the pair is consumed.
// Expected: The least limiting offered role wins regardless of which offer is accepted, and both records are removed.
// Test Case ID: INV-03
func TestInvitation_AcceptContainerInvite_LeastLimitingWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@example.com", "Alice")
	bob := f.user(t, "bob@example.com", "Bob")
	carol := f.user(t, "carol@example.com", "Carol")
	c := f.container(t, alice.ID)
	require.NoError(t, f.access.AddUser(ctx, c, role.Owner, bob.ID))

	viewerOffer, err := f.service.InviteToContainer(ctx, alice.ID, []Invitee{{Email: carol.Email}}, c.ID, role.Viewer, "", true)
	require.NoError(t, err)
	_, err = f.service.InviteToContainer(ctx, bob.ID, []Invitee{{Email: carol.Email}}, c.ID, role.Writer, "", true)
	require.NoError(t, err)
	require.Len(t, f.inviteRepo.invitations, 2)

	// Carol accepts the weaker offer; the stronger pending one still wins.
	outcome, err := f.service.AcceptContainerInvite(ctx, viewerOffer[0].InvitationID, carol)
	require.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.Equal(t, role.Writer, outcome.Role)
	assert.Equal(t, MsgAccessGranted, outcome.Message)

	got, err := f.access.UserRole(c, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Writer, got)

	// Both offers are consumed.
	assert.Empty(t, f.inviteRepo.invitations)
	// Every owner is told about the new collaborator.
	assert.Equal(t, 2, f.sender.collaboratorJoined)
}

func TestInvitation_AcceptContainerInvite_EmailMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	mallory := f.user(t, "mallory@example.com", "Mallory")
	c := f.container(t, owner.ID)

	results, err := f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: "carol@example.com"}}, c.ID, role.Writer, "", true)
	require.NoError(t, err)

	_, err = f.service.AcceptContainerInvite(ctx, results[0].InvitationID, mallory)
	assert.ErrorIs(t, err, ErrEmailMismatch)

	// The invitation survives a failed acceptance.
	assert.Len(t, f.inviteRepo.invitations, 1)
}

func TestInvitation_AcceptContainerInvite_AlreadyAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	carol := f.user(t, "carol@example.com", "Carol")
	c := f.container(t, owner.ID)

	// An accepted record that survived its removal window.
	accepted := time.Now().Add(-time.Hour)
	inv := &Invitation{
		ID:               NewID(owner.ID, carol.Email, c.ID),
		InvitingUserID:   owner.ID,
		InvitedUserEmail: carol.Email,
		ContainerID:      c.ID,
		Role:             role.Writer,
		AcceptedAt:       &accepted,
	}
	require.NoError(t, f.inviteRepo.Create(ctx, inv))

	outcome, err := f.service.AcceptContainerInvite(ctx, inv.ID, carol)
	require.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.Equal(t, MsgAlreadyAccepted, outcome.Message)

	// No membership was granted by the stale record.
	got, err := f.access.UserRole(c, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, role.None, got)
}

func TestInvitation_AcceptContainerInvite_RedundantNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	carol := f.user(t, "carol@example.com", "Carol")
	c := f.container(t, owner.ID)

	results, err := f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: carol.Email}}, c.ID, role.Viewer, "", true)
	require.NoError(t, err)

	// Carol is promoted to writer before she accepts the viewer offer.
	require.NoError(t, f.access.AddUser(ctx, c, role.Writer, carol.ID))

	outcome, err := f.service.AcceptContainerInvite(ctx, results[0].InvitationID, carol)
	require.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.Equal(t, MsgHigherPrivilege, outcome.Message)
	assert.Equal(t, role.Writer, outcome.Role)

	// The inferior offer is still consumed.
	assert.Empty(t, f.inviteRepo.invitations)
	assert.Equal(t, 0, f.sender.collaboratorJoined)
}

// TestPurpose: Validates link-token redemption and its reconciliation with pending addressed invitations.
// Scope: Unit Test
// Security: Tokens are multi-use; only the redeeming user's addressed invitations are consumed.
// Expected: The better of token role and pending invitation roles is granted; the token survives, other users' invitations survive.
// Test Case ID: INV-04
func TestInvitation_AcceptInvitationToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	carol := f.user(t, "carol@example.com", "Carol")
	dave := f.user(t, "dave@example.com", "Dave")
	c := f.container(t, owner.ID)

	tok, err := f.service.RequestToken(ctx, owner.ID, c.ID, role.Viewer)
	require.NoError(t, err)

	// A pending writer invitation for carol outranks the viewer token.
	_, err = f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: carol.Email}}, c.ID, role.Writer, "", true)
	require.NoError(t, err)
	// Dave has his own pending invitation that must not be touched.
	daveResults, err := f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: dave.Email}}, c.ID, role.Viewer, "", true)
	require.NoError(t, err)

	outcome, err := f.service.AcceptInvitationToken(ctx, tok.ID, carol.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.Equal(t, role.Writer, outcome.Role)

	got, err := f.access.UserRole(c, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Writer, got)

	// Carol's addressed invitation is consumed; dave's remains; the token
	// stays redeemable.
	assert.Len(t, f.inviteRepo.invitations, 1)
	assert.Contains(t, f.inviteRepo.invitations, daveResults[0].InvitationID)
	assert.Contains(t, f.tokenRepo.tokens, tok.ID)

	// Redeeming again with no pending offers is a harmless no-op.
	outcome, err = f.service.AcceptInvitationToken(ctx, tok.ID, carol.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.Equal(t, MsgHigherPrivilege, outcome.Message)
}

func TestInvitation_ListPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	carol := f.user(t, "carol@example.com", "Carol")
	c := f.container(t, owner.ID)

	_, err := f.service.Invite(ctx, owner.ID, []string{carol.Email}, "hi")
	require.NoError(t, err)
	offered, err := f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: carol.Email}}, c.ID, role.Viewer, "", true)
	require.NoError(t, err)

	// Both the personal and the container invitation are listed; the lookup
	// email is normalized.
	pending, err := f.service.ListPending(ctx, "Carol@Example.com")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// Accepting consumes the container offer and shrinks the listing.
	_, err = f.service.AcceptContainerInvite(ctx, offered[0].InvitationID, carol)
	require.NoError(t, err)
	pending, err = f.service.ListPending(ctx, carol.Email)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].ContainerID)
}

func TestInvitation_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	c := f.container(t, owner.ID)

	results, err := f.service.InviteToContainer(ctx, owner.ID, []Invitee{{Email: "carol@example.com"}}, c.ID, role.Writer, "", true)
	require.NoError(t, err)

	require.NoError(t, f.service.Reject(ctx, results[0].InvitationID))
	assert.Empty(t, f.inviteRepo.invitations)

	assert.ErrorIs(t, f.service.Reject(ctx, results[0].InvitationID), ErrInvitationNotFound)
}

// TestPurpose: Validates link-token minting, the owner-only gate, and extend-on-re-request semantics.
// Scope: Unit Test
// Security: Only owners may mint shareable role grants.
// Expected: One token per (container, role) pair whose expiry moves forward on re-request.
// Test Case ID: INV-05
func TestInvitation_RequestToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Owner")
	viewer := f.user(t, "viewer@example.com", "Viewer")
	c := f.container(t, owner.ID)
	require.NoError(t, f.access.AddUser(ctx, c, role.Viewer, viewer.ID))

	_, err := f.service.RequestToken(ctx, viewer.ID, c.ID, role.Viewer)
	assert.ErrorIs(t, err, container.ErrNotAuthorized)

	_, err = f.service.RequestToken(ctx, owner.ID, c.ID, "admin")
	assert.ErrorIs(t, err, container.ErrInvalidRole)

	tok, err := f.service.RequestToken(ctx, owner.ID, c.ID, role.Writer)
	require.NoError(t, err)
	assert.Equal(t, NewTokenID(c.ID, role.Writer), tok.ID)
	firstExpiry := tok.ExpiresAt

	// Re-requesting the same pair extends the existing token.
	time.Sleep(5 * time.Millisecond)
	again, err := f.service.RefreshToken(ctx, owner.ID, c.ID, role.Writer)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, again.ID)
	assert.True(t, again.ExpiresAt.After(firstExpiry))
	assert.Len(t, f.tokenRepo.tokens, 1)

	// A different role mints a distinct token.
	other, err := f.service.RequestToken(ctx, owner.ID, c.ID, role.Viewer)
	require.NoError(t, err)
	assert.NotEqual(t, tok.ID, other.ID)
	assert.Len(t, f.tokenRepo.tokens, 2)
}
