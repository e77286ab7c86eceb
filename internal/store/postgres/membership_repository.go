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

	"github.com/gatehouse/gatehouse/internal/membership"
)

// MembershipRepository implements membership.Repository
type MembershipRepository struct {
	db *DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Assign stores a membership edge. ON CONFLICT DO NOTHING makes concurrent
// assigns of the same (user, role) pair settle on a single row.
func (r *MembershipRepository) Assign(ctx context.Context, edge *membership.UserRole) (bool, error) {
	result, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_roles (id, user_id, role_id, granted_at, granted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, edge.ID, edge.UserID, edge.RoleID, edge.GrantedAt, edge.GrantedBy)
	if err != nil {
		return false, fmt.Errorf("failed to insert membership: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Revoke removes a membership edge
func (r *MembershipRepository) Revoke(ctx context.Context, userID, roleID string) (bool, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2
	`, userID, roleID)
	if err != nil {
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListForUser retrieves all membership edges held by a user
func (r *MembershipRepository) ListForUser(ctx context.Context, userID string) ([]*membership.UserRole, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, role_id, granted_at, granted_by
		FROM user_roles
		WHERE user_id = $1
		ORDER BY granted_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var out []*membership.UserRole
	for rows.Next() {
		var edge membership.UserRole
		if err := rows.Scan(&edge.ID, &edge.UserID, &edge.RoleID, &edge.GrantedAt, &edge.GrantedBy); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, &edge)
	}
	return out, rows.Err()
}

// CountByRole reports how many users currently hold the role
func (r *MembershipRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_roles WHERE role_id = $1
	`, roleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return count, nil
}

// DeleteByRole removes every edge referencing the role and returns the IDs
// of the users that held it, so callers can re-check their active profiles.
func (r *MembershipRepository) DeleteByRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		DELETE FROM user_roles WHERE role_id = $1 RETURNING user_id
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete memberships: %w", err)
	}
	defer rows.Close()

	var affected []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		affected = append(affected, userID)
	}
	return affected, rows.Err()
}
