// Copyright 2026 The Gatehouse Authors
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

	"github.com/gatehouse/gatehouse/internal/org"
	"github.com/jackc/pgx/v5"
)

// OrgRepository implements org.Repository
type OrgRepository struct {
	db *DB
}

// NewOrgRepository creates a new organization repository
func NewOrgRepository(db *DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// Create creates a new organization
func (r *OrgRepository) Create(ctx context.Context, o *org.Organization) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, o.ID, o.Name, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return org.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to insert organization: %w", err)
	}

	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrgRepository) GetByID(ctx context.Context, id string) (*org.Organization, error) {
	var o org.Organization
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, org.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}

// List retrieves organizations with pagination
func (r *OrgRepository) List(ctx context.Context, limit, offset int) ([]*org.Organization, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM organizations
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var out []*org.Organization
	for rows.Next() {
		var o org.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// Delete removes an organization
func (r *OrgRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return org.ErrOrganizationNotFound
	}
	return nil
}
