package request

import (
	"context"
	"errors"
	"time"

	"github.com/scriptora/scriptora/internal/id"
	"github.com/scriptora/scriptora/internal/role"
)

// Domain errors
var (
	ErrRequestNotFound  = errors.New("container request no longer exists")
	ErrRequesterGone    = errors.New("requesting user no longer exists")
	ErrRoleNotEscalated = errors.New("requested role must exceed the current role")
)

// Request is a non-member's pending request for Role on ContainerID,
// awaiting an owner's response. The id is a deterministic hash of
// (user, container), so a repeated request patches the earlier record
// instead of duplicating it.
type Request struct {
	ID          string
	UserID      string
	ContainerID string
	Role        role.Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewID derives the deterministic request id for a (user, container) pair.
func NewID(userID, containerID string) string {
	return id.Deterministic("container-request", userID, containerID)
}

// Repository defines the interface for container request storage.
type Repository interface {
	// GetByID retrieves a request by id.
	GetByID(ctx context.Context, requestID string) (*Request, error)

	// Create stores a new request.
	Create(ctx context.Context, req *Request) error

	// Patch updates the role and refresh time of an existing request.
	Patch(ctx context.Context, requestID string, r role.Role, updatedAt time.Time) error

	// Remove deletes a request.
	Remove(ctx context.Context, requestID string) error
}

// Sender delivers access-request notifications. Best effort only; a failure
// never reverses a membership change that is already committed.
type Sender interface {
	SendAccessRequest(ctx context.Context, ownerEmail, requesterName, containerTitle string, r role.Role) error
	SendAccessResponse(ctx context.Context, requesterEmail, containerTitle string, accepted bool, r role.Role) error
}
