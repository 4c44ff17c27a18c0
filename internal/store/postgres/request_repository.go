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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/scriptora/scriptora/internal/request"
	"github.com/scriptora/scriptora/internal/role"
)

// ContainerRequestRepository implements request.Repository
type ContainerRequestRepository struct {
	db *DB
}

// NewContainerRequestRepository creates a new container request repository
func NewContainerRequestRepository(db *DB) *ContainerRequestRepository {
	return &ContainerRequestRepository{db: db}
}

// GetByID retrieves a request by id
func (r *ContainerRequestRepository) GetByID(ctx context.Context, requestID string) (*request.Request, error) {
	var req request.Request
	var reqRole string
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, container_id, role, created_at, updated_at
		FROM container_requests
		WHERE id = $1
	`, requestID).Scan(&req.ID, &req.UserID, &req.ContainerID, &reqRole, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, request.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan container request: %w", err)
	}
	req.Role = role.Role(reqRole)
	return &req, nil
}

// Create stores a new request
func (r *ContainerRequestRepository) Create(ctx context.Context, req *request.Request) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO container_requests (id, user_id, container_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.ID, req.UserID, req.ContainerID, string(req.Role), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert container request: %w", err)
	}
	return nil
}

// Patch updates the role and refresh time of an existing request
func (r *ContainerRequestRepository) Patch(ctx context.Context, requestID string, reqRole role.Role, updatedAt time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE container_requests SET role = $2, updated_at = $3 WHERE id = $1
	`, requestID, string(reqRole), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to patch container request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return request.ErrRequestNotFound
	}
	return nil
}

// Remove deletes a request
func (r *ContainerRequestRepository) Remove(ctx context.Context, requestID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM container_requests WHERE id = $1
	`, requestID)
	if err != nil {
		return fmt.Errorf("failed to delete container request: %w", err)
	}
	return nil
}
