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
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/jackc/pgx/v5"
)

// RoleRepository implements registry.Repository. A role's permission set is
// stored as child rows; reads assemble them back into the role and writes
// replace them inside the role's transaction so readers see the old set or
// the new set, never a mix.
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create creates a new role with its permission set
func (r *RoleRepository) Create(ctx context.Context, role *registry.Role) error {
	now := time.Now()

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO roles (id, organization_id, profile, label, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, role.ID, role.OrganizationID, role.Profile, role.Label, role.Value, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return registry.ErrDuplicateValue
		}
		return fmt.Errorf("failed to insert role: %w", err)
	}

	if err := insertPermissions(ctx, tx, role.ID, role.Permissions); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetByID retrieves a role with its permission set
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*registry.Role, error) {
	roles, err := r.queryRoles(ctx, `WHERE r.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, registry.ErrRoleNotFound
	}
	return roles[0], nil
}

// GetByValue retrieves a role by its (organization, profile, value) key
func (r *RoleRepository) GetByValue(ctx context.Context, organizationID, profile, value string) (*registry.Role, error) {
	roles, err := r.queryRoles(ctx,
		`WHERE r.organization_id = $1 AND r.profile = $2 AND r.value = $3`,
		organizationID, profile, value)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, registry.ErrRoleNotFound
	}
	return roles[0], nil
}

// GetByIDs retrieves the roles matching ids; missing IDs are skipped
func (r *RoleRepository) GetByIDs(ctx context.Context, ids []string) ([]*registry.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryRoles(ctx, `WHERE r.id = ANY($1)`, ids)
}

// ListByOrganization retrieves all roles scoped to an organization
func (r *RoleRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*registry.Role, error) {
	return r.queryRoles(ctx, `WHERE r.organization_id = $1`, organizationID)
}

// CountByOrganization reports how many roles an organization defines
func (r *RoleRepository) CountByOrganization(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM roles WHERE organization_id = $1
	`, organizationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return count, nil
}

// ReplacePermissions swaps the role's permission set in one transaction
func (r *RoleRepository) ReplacePermissions(ctx context.Context, roleID string, perms catalog.PermissionSet) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE roles SET updated_at = now() WHERE id = $1
	`, roleID)
	if err != nil {
		return fmt.Errorf("failed to touch role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return registry.ErrRoleNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear permissions: %w", err)
	}
	if err := insertPermissions(ctx, tx, roleID, perms); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit permission replacement: %w", err)
	}
	return nil
}

// Delete removes a role; role_permissions rows cascade
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return registry.ErrRoleNotFound
	}
	return nil
}

func insertPermissions(ctx context.Context, tx pgx.Tx, roleID string, perms catalog.PermissionSet) error {
	for p := range perms {
		_, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, operation, object)
			VALUES ($1, $2, $3)
		`, roleID, string(p.Operation), string(p.Object))
		if err != nil {
			return fmt.Errorf("failed to insert permission %s: %w", p, err)
		}
	}
	return nil
}

func (r *RoleRepository) queryRoles(ctx context.Context, where string, args ...any) ([]*registry.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT r.id, r.organization_id, r.profile, r.label, r.value,
			r.created_at, r.updated_at, p.operation, p.object
		FROM roles r
		LEFT JOIN role_permissions p ON p.role_id = r.id
	`+where+` ORDER BY r.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*registry.Role)
	var order []string
	for rows.Next() {
		var (
			role      registry.Role
			operation *string
			object    *string
		)
		if err := rows.Scan(
			&role.ID, &role.OrganizationID, &role.Profile, &role.Label, &role.Value,
			&role.CreatedAt, &role.UpdatedAt, &operation, &object,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}

		existing, ok := byID[role.ID]
		if !ok {
			role.Permissions = catalog.NewPermissionSet()
			byID[role.ID] = &role
			order = append(order, role.ID)
			existing = &role
		}
		if operation != nil && object != nil {
			existing.Permissions[catalog.Permission{
				Operation: catalog.Operation(*operation),
				Object:    catalog.Object(*object),
			}] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}

	out := make([]*registry.Role, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}
