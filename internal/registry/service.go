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

package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/oklog/ulid/v2"
)

// SnapshotInvalidator lets the registry drop cached membership snapshots
// after a role's permission set changes.
type SnapshotInvalidator interface {
	InvalidateAll()
}

// Service provides role administration business logic
type Service struct {
	catalog     *catalog.Catalog
	repo        Repository
	memberships MembershipCounter
	snapshots   SnapshotInvalidator
	auditLogger audit.Logger
}

// NewService creates a new role registry service. snapshots may be nil when
// no evaluator cache is wired.
func NewService(cat *catalog.Catalog, repo Repository, memberships MembershipCounter, snapshots SnapshotInvalidator, auditLogger audit.Logger) *Service {
	return &Service{
		catalog:     cat,
		repo:        repo,
		memberships: memberships,
		snapshots:   snapshots,
		auditLogger: auditLogger,
	}
}

// CreateRole creates a role scoped to an organization and profile. Every
// permission in the set must be assignable under the profile; the role value
// must be unique within (organization, profile).
func (s *Service) CreateRole(ctx context.Context, organizationID, profile, label, value string, perms catalog.PermissionSet, actorID string) (*Role, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("organization id is required")
	}
	if value == "" {
		return nil, fmt.Errorf("role value is required")
	}

	if _, err := s.catalog.Profile(profile); err != nil {
		return nil, fmt.Errorf("unknown profile %q: %w", profile, err)
	}

	if err := s.validatePermissions(profile, perms); err != nil {
		return nil, err
	}

	now := time.Now()
	role := &Role{
		ID:             ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		OrganizationID: organizationID,
		Profile:        profile,
		Label:          label,
		Value:          value,
		Permissions:    perms.Clone(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, role); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleCreated,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       role.ID,
		Metadata: map[string]any{
			"profile":     profile,
			"value":       value,
			"permissions": len(perms),
		},
	})

	return role, nil
}

// UpdateRolePermissions replaces the role's permission set atomically,
// applying the same profile validation as CreateRole.
func (s *Service) UpdateRolePermissions(ctx context.Context, roleID string, perms catalog.PermissionSet, actorID string) error {
	role, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.validatePermissions(role.Profile, perms); err != nil {
		return err
	}

	if err := s.repo.ReplacePermissions(ctx, roleID, perms.Clone()); err != nil {
		return err
	}

	if s.snapshots != nil {
		s.snapshots.InvalidateAll()
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleUpdated,
		OrganizationID: role.OrganizationID,
		ActorID:        actorID,
		Resource:       roleID,
		Metadata:       map[string]any{"permissions": len(perms)},
	})

	return nil
}

// DeleteRole removes a role that no user currently holds. Callers that want
// referencing memberships removed as well must use DeleteRoleCascade.
func (s *Service) DeleteRole(ctx context.Context, roleID string, actorID string) error {
	role, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}

	count, err := s.memberships.CountByRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to count role memberships: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d membership(s)", ErrRoleInUse, count)
	}

	if err := s.repo.Delete(ctx, roleID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleDeleted,
		OrganizationID: role.OrganizationID,
		ActorID:        actorID,
		Resource:       roleID,
	})

	return nil
}

// DeleteRoleCascade removes a role together with every membership edge that
// references it. This is a distinct operation so that a plain delete can
// never silently strip users of a role. The membership side of the cascade
// also clears the active profile of any user whose last role under it was
// the deleted one, exactly as a direct revocation would.
func (s *Service) DeleteRoleCascade(ctx context.Context, roleID string, actorID string) error {
	role, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}

	removed, err := s.memberships.DeleteByRole(ctx, roleID, actorID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, roleID); err != nil {
		return err
	}

	if s.snapshots != nil {
		s.snapshots.InvalidateAll()
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleDeleted,
		OrganizationID: role.OrganizationID,
		ActorID:        actorID,
		Resource:       roleID,
		Metadata:       map[string]any{"cascaded_memberships": removed},
	})

	return nil
}

// GetRole retrieves a role by ID
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	return s.repo.GetByID(ctx, roleID)
}

// ListRoles retrieves all roles scoped to an organization
func (s *Service) ListRoles(ctx context.Context, organizationID string) ([]*Role, error) {
	return s.repo.ListByOrganization(ctx, organizationID)
}

// validatePermissions checks every permission against the catalog and the
// profile validity mapping, reporting the first offender by name so the
// administrator can fix the input.
func (s *Service) validatePermissions(profile string, perms catalog.PermissionSet) error {
	for p := range perms {
		if _, err := s.catalog.PermissionOf(p.Operation, p.Object); err != nil {
			return fmt.Errorf("%w: %s is not a registered permission", ErrInvalidPermissionForProfile, p)
		}
		if !s.catalog.ValidForProfile(p, profile) {
			return fmt.Errorf("%w: %s under profile %q", ErrInvalidPermissionForProfile, p, profile)
		}
	}
	return nil
}
