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
	"github.com/scriptora/scriptora/internal/role"
)

// AccessRequestBody represents an access escalation request
type AccessRequestBody struct {
	Role role.Role `json:"role"`
}

// CreateAccessRequest records the caller's request for a higher role on a
// container and notifies its owners
func (h *Handler) CreateAccessRequest(w http.ResponseWriter, r *http.Request) {
	var req AccessRequestBody

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	rec, err := h.requestService.Create(r.Context(), user, chi.URLParam(r, "containerID"), req.Role)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"request_id":   rec.ID,
		"container_id": rec.ContainerID,
		"role":         rec.Role,
	})
}

// AccessResponseBody represents an owner's decision on an access request
type AccessResponseBody struct {
	Accept bool `json:"accept"`
}

// RespondAccessRequest resolves a pending access request. Owners only.
func (h *Handler) RespondAccessRequest(w http.ResponseWriter, r *http.Request) {
	var req AccessResponseBody

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	outcome, err := h.requestService.Respond(r.Context(), chi.URLParam(r, "requestID"), user, req.Accept)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}
