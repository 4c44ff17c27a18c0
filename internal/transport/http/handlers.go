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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/scriptora/scriptora/internal/audit"
	"github.com/scriptora/scriptora/internal/auth"
	"github.com/scriptora/scriptora/internal/container"
	"github.com/scriptora/scriptora/internal/identity"
	"github.com/scriptora/scriptora/internal/invitation"
	"github.com/scriptora/scriptora/internal/observability/logger"
	"github.com/scriptora/scriptora/internal/request"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService   *identity.Service
	accessService     *container.AccessService
	invitationService *invitation.Service
	requestService    *request.Service
	issuer            *auth.Issuer
	auditLogger       audit.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	accessService *container.AccessService,
	invitationService *invitation.Service,
	requestService *request.Service,
	issuer *auth.Issuer,
	auditLogger audit.Logger,
) *Handler {
	return &Handler{
		identityService:   identityService,
		accessService:     accessService,
		invitationService: invitationService,
		requestService:    requestService,
		issuer:            issuer,
		auditLogger:       auditLogger,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Personal invitations: accept may provision a brand-new account,
		// so both accept and reject are reachable without a token.
		r.Post("/invitations/{invitationID}/accept", h.AcceptInvitation)
		r.Post("/invitations/{invitationID}/reject", h.RejectInvitation)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/auth/me", h.GetCurrentUser)

			// Collaborator invitations
			r.Post("/collaborators/invitations", h.Invite)
			r.Get("/invitations", h.ListInvitations)

			// Containers and membership
			r.Route("/containers", func(r chi.Router) {
				r.Post("/", h.CreateContainer)
				r.Route("/{containerID}", func(r chi.Router) {
					r.Get("/", h.GetContainer)
					r.Put("/users/{userID}", h.ManageRole)
					r.Post("/invitations", h.InviteToContainer)
					r.Post("/tokens", h.RequestToken)
					r.Put("/tokens", h.RefreshToken)
					r.Post("/requests", h.CreateAccessRequest)
				})
			})

			// Container invitation and token acceptance
			r.Post("/containers/invitations/{invitationID}/accept", h.AcceptContainerInvite)
			r.Post("/tokens/{tokenID}/accept", h.AcceptInvitationToken)

			// Access request responses
			r.Post("/requests/{requestID}/respond", h.RespondAccessRequest)
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "scriptora",
	})
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Provision(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to provision user",
			logger.Error(err),
			logger.Email(req.Email),
		)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and returns a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeLoginFailed,
			Resource:  req.Email,
			IPAddress: getClientIP(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{"reason": "invalid_credentials"},
		})
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.issuer.Issue(user.ID, user.Email)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeLoginSuccess,
		ActorID:   user.ID,
		Resource:  "token",
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token,
	})
}

// GetCurrentUser returns the current authenticated user identity
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	user, err := h.identityService.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"name":    user.Name,
	})
}

// actingUser resolves the authenticated user record for handlers that need
// the full identity, not just the id.
func (h *Handler) actingUser(w http.ResponseWriter, r *http.Request) (*identity.User, bool) {
	user, err := h.identityService.GetUser(r.Context(), GetUserID(r.Context()))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "user not found")
		return nil, false
	}
	return user, true
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps domain sentinel errors to HTTP statuses.
// Services wrap sentinels with context, so matching is via errors.Is.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, container.ErrContainerNotFound),
		errors.Is(err, invitation.ErrInvitationNotFound),
		errors.Is(err, invitation.ErrTokenNotFound),
		errors.Is(err, request.ErrRequestNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, container.ErrNotAuthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, identity.ErrUserAlreadyExists),
		errors.Is(err, invitation.ErrAlreadyMember),
		errors.Is(err, container.ErrLastOwner):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, container.ErrInvalidRole),
		errors.Is(err, container.ErrUserNotMember),
		errors.Is(err, invitation.ErrNoInvitees),
		errors.Is(err, invitation.ErrSelfInvite),
		errors.Is(err, invitation.ErrEmailMismatch),
		errors.Is(err, invitation.ErrMissingAccountDetails),
		errors.Is(err, request.ErrRequesterGone),
		errors.Is(err, request.ErrRoleNotEscalated):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
