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
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scriptora/scriptora/internal/invitation"
	"github.com/scriptora/scriptora/internal/role"
)

// InviteRequest represents a personal collaborator invitation
type InviteRequest struct {
	Emails  []string `json:"emails"`
	Message string   `json:"message"`
}

// Invite sends personal collaborator invitations
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.invitationService.Invite(r.Context(), GetUserID(r.Context()), req.Emails, req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"invitations": results,
	})
}

// InviteToContainerRequest represents a container invitation batch
type InviteToContainerRequest struct {
	Invited   []invitation.Invitee `json:"invited"`
	Role      role.Role            `json:"role"`
	Message   string               `json:"message"`
	SkipEmail bool                 `json:"skip_email"`
}

// InviteToContainer invites users into a container at a given role
func (h *Handler) InviteToContainer(w http.ResponseWriter, r *http.Request) {
	var req InviteToContainerRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.invitationService.InviteToContainer(
		r.Context(),
		GetUserID(r.Context()),
		req.Invited,
		chi.URLParam(r, "containerID"),
		req.Role,
		req.Message,
		req.SkipEmail,
	)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"invitations": results,
	})
}

// ListInvitations returns the pending invitations addressed to the caller
func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.invitationService.ListPending(r.Context(), GetUserEmail(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, map[string]any{
			"invitation_id": inv.ID,
			"container_id":  inv.ContainerID,
			"role":          inv.Role,
			"message":       inv.Message,
			"expires_at":    inv.ExpiresAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"invitations": out,
	})
}

// AcceptInvitationRequest carries account details for invitees without an
// existing account
type AcceptInvitationRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AcceptInvitation accepts a personal collaborator invitation, provisioning
// an account when the invitee does not have one yet
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req AcceptInvitationRequest

	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	user, err := h.invitationService.Accept(r.Context(), chi.URLParam(r, "invitationID"), req.Name, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// RejectInvitation declines and removes a pending invitation
func (h *Handler) RejectInvitation(w http.ResponseWriter, r *http.Request) {
	if err := h.invitationService.Reject(r.Context(), chi.URLParam(r, "invitationID")); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "invitation rejected",
	})
}

// AcceptContainerInvite accepts a container invitation addressed to the caller
func (h *Handler) AcceptContainerInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	outcome, err := h.invitationService.AcceptContainerInvite(r.Context(), chi.URLParam(r, "invitationID"), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// AcceptInvitationToken redeems a shareable container token for the caller
func (h *Handler) AcceptInvitationToken(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.invitationService.AcceptInvitationToken(r.Context(), chi.URLParam(r, "tokenID"), GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// TokenRequest represents a shareable token request
type TokenRequest struct {
	Role role.Role `json:"role"`
}

// RequestToken returns the container's shareable token for a role, minting
// one if none exists
func (h *Handler) RequestToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.invitationService.RequestToken(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "containerID"), req.Role)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse(token))
}

// RefreshToken extends the lifetime of a container's shareable token
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.invitationService.RefreshToken(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "containerID"), req.Role)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse(token))
}

func tokenResponse(t *invitation.Token) map[string]any {
	return map[string]any{
		"token_id":     t.ID,
		"container_id": t.ContainerID,
		"role":         t.Role,
		"expires_at":   t.ExpiresAt,
	}
}
