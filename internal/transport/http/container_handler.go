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
	"github.com/scriptora/scriptora/internal/container"
	"github.com/scriptora/scriptora/internal/role"
)

// CreateContainerRequest represents container creation data
type CreateContainerRequest struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

// CreateContainer creates a container owned by the caller
func (h *Handler) CreateContainer(w http.ResponseWriter, r *http.Request) {
	var req CreateContainerRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind != container.KindProject && req.Kind != container.KindLibrary {
		respondError(w, http.StatusBadRequest, "kind must be project or library")
		return
	}

	c, err := h.accessService.CreateContainer(r.Context(), req.Kind, req.Title, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, containerResponse(c, role.Owner))
}

// GetContainer returns a container's membership sets. Members only.
func (h *Handler) GetContainer(w http.ResponseWriter, r *http.Request) {
	c, err := h.accessService.GetContainer(r.Context(), chi.URLParam(r, "containerID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	callerRole, err := h.accessService.UserRole(c, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if callerRole == role.None {
		respondError(w, http.StatusForbidden, "not a member of this container")
		return
	}

	respondJSON(w, http.StatusOK, containerResponse(c, callerRole))
}

// ManageRoleRequest represents a membership change
type ManageRoleRequest struct {
	Role role.Role `json:"role"`
}

// ManageRole sets or revokes a member's role. Owners only, or trusted
// services presenting the shared server secret.
func (h *Handler) ManageRole(w http.ResponseWriter, r *http.Request) {
	var req ManageRoleRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.accessService.ManageRole(
		r.Context(),
		GetUserID(r.Context()),
		chi.URLParam(r, "containerID"),
		chi.URLParam(r, "userID"),
		req.Role,
		r.Header.Get("X-Server-Secret"),
	)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "membership updated",
	})
}

func containerResponse(c *container.Container, callerRole role.Role) map[string]any {
	return map[string]any{
		"container_id": c.ID,
		"title":        c.Title,
		"owners":       c.Owners,
		"writers":      c.Writers,
		"viewers":      c.Viewers,
		"caller_role":  callerRole,
		"created_at":   c.CreatedAt,
		"updated_at":   c.UpdatedAt,
	}
}
