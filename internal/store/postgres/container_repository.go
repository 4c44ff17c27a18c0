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
	"github.com/scriptora/scriptora/internal/container"
)

// ContainerRepository implements container.Repository
type ContainerRepository struct {
	db *DB
}

// NewContainerRepository creates a new container repository
func NewContainerRepository(db *DB) *ContainerRepository {
	return &ContainerRepository{db: db}
}

// Create stores a new container
func (r *ContainerRepository) Create(ctx context.Context, c *container.Container) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO containers (id, title, owners, writers, viewers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Title, c.Owners, c.Writers, c.Viewers, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert container: %w", err)
	}
	return nil
}

// GetByID retrieves a container by its typed id
func (r *ContainerRepository) GetByID(ctx context.Context, containerID string) (*container.Container, error) {
	var c container.Container
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, title, owners, writers, viewers, created_at, updated_at
		FROM containers
		WHERE id = $1
	`, containerID).Scan(&c.ID, &c.Title, &c.Owners, &c.Writers, &c.Viewers, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, container.ErrContainerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan container: %w", err)
	}
	return &c, nil
}

// UpdateMembers persists the three member sets of a container
func (r *ContainerRepository) UpdateMembers(ctx context.Context, c *container.Container) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE containers
		SET owners = $2, writers = $3, viewers = $4, updated_at = $5
		WHERE id = $1
	`, c.ID, c.Owners, c.Writers, c.Viewers, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update container members: %w", err)
	}
	if result.RowsAffected() == 0 {
		return container.ErrContainerNotFound
	}
	return nil
}

// Delete removes a container
func (r *ContainerRepository) Delete(ctx context.Context, containerID string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM containers WHERE id = $1
	`, containerID)
	if err != nil {
		return fmt.Errorf("failed to delete container: %w", err)
	}
	if result.RowsAffected() == 0 {
		return container.ErrContainerNotFound
	}
	return nil
}
