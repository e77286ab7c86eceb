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

package membership

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/google/uuid"
)

// SnapshotInvalidator lets the membership store drop a user's cached
// membership snapshot after a write.
type SnapshotInvalidator interface {
	InvalidateUser(userID string)
}

// Service provides membership business logic: role assignment and revocation
// plus the derived user-to-roles, user-to-profiles and user-to-organizations
// views.
type Service struct {
	repo        Repository
	roles       registry.Repository
	users       identity.Repository
	locks       *UserLocks
	snapshots   SnapshotInvalidator
	auditLogger audit.Logger
}

// NewService creates a new membership service. snapshots may be nil when no
// evaluator cache is wired.
func NewService(repo Repository, roles registry.Repository, users identity.Repository, locks *UserLocks, snapshots SnapshotInvalidator, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		roles:       roles,
		users:       users,
		locks:       locks,
		snapshots:   snapshots,
		auditLogger: auditLogger,
	}
}

// AssignRole grants a role to a user. Idempotent: assigning an already-held
// role is a no-op. The user's active profile is never touched here; acting
// under a newly reachable profile always requires an explicit switch.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string, actorID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	created, err := s.repo.Assign(ctx, &UserRole{
		ID:        uuid.NewString(),
		UserID:    userID,
		RoleID:    roleID,
		GrantedAt: time.Now(),
		GrantedBy: actorID,
	})
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	if !created {
		return nil
	}

	s.invalidate(userID)

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleAssigned,
		OrganizationID: role.OrganizationID,
		ActorID:        actorID,
		Resource:       roleID,
		Metadata:       map[string]any{"user_id": userID, "profile": role.Profile},
	})

	return nil
}

// RevokeRole removes a role from a user. Idempotent: revoking a role the user
// does not hold is a no-op. When the revocation removes the user's last role
// under their active profile, the active profile is cleared to unset; every
// permission check then denies until the user switches again.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID string, actorID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	removed, err := s.repo.Revoke(ctx, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	if !removed {
		return nil
	}

	s.invalidate(userID)

	if err := s.clearProfileIfUnheld(ctx, userID, actorID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  actorID,
		Resource: roleID,
		Metadata: map[string]any{"user_id": userID},
	})

	return nil
}

// CountByRole reports how many users currently hold the role.
func (s *Service) CountByRole(ctx context.Context, roleID string) (int, error) {
	return s.repo.CountByRole(ctx, roleID)
}

// DeleteByRole removes every membership edge referencing the role and runs
// the same clear-on-last-revoke transition as RevokeRole for each affected
// user. The role registry calls this during cascade deletion so that nobody
// keeps acting under an active profile their remaining roles no longer cover.
func (s *Service) DeleteByRole(ctx context.Context, roleID string, actorID string) (int, error) {
	userIDs, err := s.repo.DeleteByRole(ctx, roleID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete role memberships: %w", err)
	}

	for _, userID := range userIDs {
		s.invalidate(userID)

		unlock := s.locks.Lock(userID)
		err := s.clearProfileIfUnheld(ctx, userID, actorID)
		unlock()
		if err != nil {
			return len(userIDs), err
		}
	}

	return len(userIDs), nil
}

// RolesFor retrieves all roles held by a user, optionally narrowed to one
// organization. An empty organizationID means no narrowing.
func (s *Service) RolesFor(ctx context.Context, userID, organizationID string) ([]*registry.Role, error) {
	edges, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.RoleID)
	}

	roles, err := s.roles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles: %w", err)
	}

	if organizationID == "" {
		return roles, nil
	}

	filtered := roles[:0]
	for _, r := range roles {
		if r.OrganizationID == organizationID {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// ProfilesFor retrieves the distinct profile values across all roles the user
// holds, regardless of the active profile. This is the candidate set for a
// profile switch.
func (s *Service) ProfilesFor(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.RolesFor(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		seen[r.Profile] = struct{}{}
	}

	profiles := make([]string, 0, len(seen))
	for p := range seen {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)
	return profiles, nil
}

// OrganizationsFor retrieves the distinct organization IDs across all roles
// the user holds.
func (s *Service) OrganizationsFor(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.RolesFor(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		seen[r.OrganizationID] = struct{}{}
	}

	orgs := make([]string, 0, len(seen))
	for o := range seen {
		orgs = append(orgs, o)
	}
	sort.Strings(orgs)
	return orgs, nil
}

// clearProfileIfUnheld clears the user's active profile when no remaining
// role carries it. Callers must hold the user's lock.
func (s *Service) clearProfileIfUnheld(ctx context.Context, userID, actorID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.ActiveProfile == "" {
		return nil
	}

	held, err := s.holdsProfile(ctx, userID, user.ActiveProfile)
	if err != nil {
		return err
	}
	if held {
		return nil
	}

	if err := s.users.SetActiveProfile(ctx, userID, ""); err != nil {
		return fmt.Errorf("failed to clear active profile: %w", err)
	}
	s.invalidate(userID)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProfileCleared,
		ActorID:  actorID,
		Resource: userID,
		Metadata: map[string]any{"profile": user.ActiveProfile},
	})
	return nil
}

// holdsProfile reports whether the user still holds at least one role under
// the profile.
func (s *Service) holdsProfile(ctx context.Context, userID, profile string) (bool, error) {
	roles, err := s.RolesFor(ctx, userID, "")
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.Profile == profile {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) invalidate(userID string) {
	if s.snapshots != nil {
		s.snapshots.InvalidateUser(userID)
	}
}
