package container

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/scriptora/scriptora/internal/id"
	"github.com/scriptora/scriptora/internal/role"
)

// Domain errors
var (
	ErrContainerNotFound   = errors.New("container not found")
	ErrNotAuthorized       = errors.New("user does not have permission for this operation")
	ErrLastOwner           = errors.New("container must retain at least one owner")
	ErrInvalidRole         = errors.New("invalid container role")
	ErrAmbiguousMembership = errors.New("user appears in more than one role set")
	ErrUserNotMember       = errors.New("user is not a member of the container")
)

// Container kinds. Container ids are typed: "<kind>:<opaque-id>".
const (
	KindProject = "project"
	KindLibrary = "library"
)

// Container is a shared resource (project or library) with role-based
// membership. A user belongs to at most one of the three member sets.
type Container struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Owners    []string  `json:"owners"`
	Writers   []string  `json:"writers"`
	Viewers   []string  `json:"viewers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID mints a typed container id for the given kind.
func NewID(kind string) string {
	return kind + ":" + id.NewUUIDv7()
}

// Kind extracts the type prefix from a container id.
func Kind(containerID string) string {
	if i := strings.IndexByte(containerID, ':'); i > 0 {
		return containerID[:i]
	}
	return ""
}

// members returns the set holding r, or nil for an invalid role.
func (c *Container) members(r role.Role) []string {
	switch r {
	case role.Owner:
		return c.Owners
	case role.Writer:
		return c.Writers
	case role.Viewer:
		return c.Viewers
	}
	return nil
}

// setMembers replaces the set holding r.
func (c *Container) setMembers(r role.Role, users []string) {
	switch r {
	case role.Owner:
		c.Owners = users
	case role.Writer:
		c.Writers = users
	case role.Viewer:
		c.Viewers = users
	}
}

func contains(users []string, userID string) bool {
	for _, u := range users {
		if u == userID {
			return true
		}
	}
	return false
}

func remove(users []string, userID string) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u != userID {
			out = append(out, u)
		}
	}
	return out
}

// Repository defines the interface for container storage. Implementations
// are responsible for per-document concurrency control; the service layer
// performs a single read-decide-write sequence per operation.
type Repository interface {
	// Create stores a new container.
	Create(ctx context.Context, c *Container) error

	// GetByID retrieves a container by its typed id.
	GetByID(ctx context.Context, containerID string) (*Container, error)

	// UpdateMembers persists the three member sets of a container.
	UpdateMembers(ctx context.Context, c *Container) error

	// Delete removes a container.
	Delete(ctx context.Context, containerID string) error
}
