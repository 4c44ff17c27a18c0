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

package identity

import (
	"context"
	"testing"

	"github.com/scriptora/scriptora/internal/audit"
)

// MockUserRepository is a simple in-memory implementation of Repository
type MockUserRepository struct {
	users       map[string]*User
	credentials map[string]*Credentials
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:       make(map[string]*User),
		credentials: make(map[string]*Credentials),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MockUserRepository) AddCredentials(ctx context.Context, credentials *Credentials) error {
	m.credentials[credentials.UserID] = credentials
	return nil
}

func (m *MockUserRepository) GetCredentials(ctx context.Context, userID string) (*Credentials, error) {
	c, ok := m.credentials[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return c, nil
}

// MockCollaborationRepository is a simple in-memory implementation of
// CollaborationRepository
type MockCollaborationRepository struct {
	links map[string][]string
}

func NewMockCollaborationRepository() *MockCollaborationRepository {
	return &MockCollaborationRepository{links: make(map[string][]string)}
}

func (m *MockCollaborationRepository) Add(ctx context.Context, userID, collaboratorID string) error {
	for _, existing := range m.links[userID] {
		if existing == collaboratorID {
			return nil
		}
	}
	m.links[userID] = append(m.links[userID], collaboratorID)
	return nil
}

func (m *MockCollaborationRepository) List(ctx context.Context, userID string) ([]string, error) {
	return m.links[userID], nil
}

func newTestService() (*Service, *MockUserRepository, *MockCollaborationRepository) {
	repo := NewMockUserRepository()
	collabs := NewMockCollaborationRepository()
	hasher := NewPasswordHasher(65536, 3, 4, 16, 32)
	return NewService(repo, collabs, hasher, audit.NewSlogLogger()), repo, collabs
}

// TestPurpose: Validates the user authentication flow against provisioned credentials.
// Scope: Unit Test
// Security: Authentication mechanisms and credential verification
// Expected: Successful login for correct credentials, ErrInvalidCredentials otherwise.
// Test Case ID: IDN-01
func TestIdentity_Service_Authenticate(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	email := "test@example.com"
	password := "SecurePassword123"

	user, err := s.Provision(ctx, email, "Test User", password)
	if err != nil {
		t.Fatalf("failed to provision: %v", err)
	}

	authed, err := s.Authenticate(ctx, email, password)
	if err != nil {
		t.Fatalf("expected success, got err: %v", err)
	}
	if authed.ID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, authed.ID)
	}

	// Email comparison is case-insensitive.
	if _, err := s.Authenticate(ctx, "Test@Example.COM", password); err != nil {
		t.Errorf("expected normalized email to authenticate, got %v", err)
	}

	if _, err := s.Authenticate(ctx, email, "WrongPassword"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody@example.com", password); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

// TestPurpose: Validates that provisioning fails if a user with the same email already exists.
// Scope: Unit Test
// Security: Data Integrity and Unique Constraint Enforcement
// Expected: ErrUserAlreadyExists when the email is already registered.
// Test Case ID: IDN-02
func TestIdentity_Service_Provision_Conflict(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	if _, err := s.Provision(ctx, "conflict@example.com", "First", "pw1"); err != nil {
		t.Fatalf("failed to provision: %v", err)
	}
	if _, err := s.Provision(ctx, "conflict@example.com", "Second", "pw2"); err != ErrUserAlreadyExists {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}
	// Case variants of the same address collide too.
	if _, err := s.Provision(ctx, "Conflict@Example.com", "Third", "pw3"); err != ErrUserAlreadyExists {
		t.Errorf("expected ErrUserAlreadyExists for case variant, got %v", err)
	}
}

func TestIdentity_Service_Provision_Validation(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	if _, err := s.Provision(ctx, "not-an-email", "User", "pw"); err != ErrInvalidEmail {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := s.Provision(ctx, "user@example.com", "User", ""); err != ErrWeakPassword {
		t.Errorf("expected ErrWeakPassword for empty password, got %v", err)
	}
}

func TestIdentity_Service_AddCollaborator(t *testing.T) {
	s, _, collabs := newTestService()
	ctx := context.Background()

	a, err := s.Provision(ctx, "a@example.com", "A", "pw")
	if err != nil {
		t.Fatalf("failed to provision: %v", err)
	}
	b, err := s.Provision(ctx, "b@example.com", "B", "pw")
	if err != nil {
		t.Fatalf("failed to provision: %v", err)
	}

	if err := s.AddCollaborator(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("failed to link collaborators: %v", err)
	}

	// The link is bidirectional.
	aLinks, _ := collabs.List(ctx, a.ID)
	bLinks, _ := collabs.List(ctx, b.ID)
	if len(aLinks) != 1 || aLinks[0] != b.ID {
		t.Errorf("expected a linked to b, got %v", aLinks)
	}
	if len(bLinks) != 1 || bLinks[0] != a.ID {
		t.Errorf("expected b linked to a, got %v", bLinks)
	}

	// Re-linking the same pair does not duplicate.
	if err := s.AddCollaborator(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("failed to relink collaborators: %v", err)
	}
	aLinks, _ = collabs.List(ctx, a.ID)
	if len(aLinks) != 1 {
		t.Errorf("expected one link, got %v", aLinks)
	}
}

func TestIdentity_PasswordHasher_RoundTrip(t *testing.T) {
	hasher := NewPasswordHasher(65536, 3, 4, 16, 32)

	encoded, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}

	ok, err := hasher.Verify("correct horse battery staple", encoded)
	if err != nil || !ok {
		t.Errorf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong password", encoded)
	if err != nil || ok {
		t.Errorf("expected mismatch, got ok=%v err=%v", ok, err)
	}

	if _, err := hasher.Verify("anything", "not-an-encoded-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"  User@Example.COM ": "user@example.com",
		"plain@example.com":   "plain@example.com",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
