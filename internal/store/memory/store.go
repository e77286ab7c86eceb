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

// Package memory provides an in-process implementation of every repository,
// used by tests and single-node deployments. Role permission sets are
// replaced by pointer swap, never mutated in place, so concurrent readers
// observe a set entirely before or entirely after an update.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/decisionlog"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/membership"
	"github.com/gatehouse/gatehouse/internal/org"
	"github.com/gatehouse/gatehouse/internal/registry"
)

// Store holds all entities behind one read-write mutex. It implements
// org.Repository, identity.Repository, registry.Repository,
// membership.Repository and decisionlog.Sink.
type Store struct {
	mu sync.RWMutex

	orgs       map[string]*org.Organization
	users      map[string]*identity.User
	roles      map[string]*registry.Role
	roleValues map[string]string                          // valueKey -> role ID
	edges      map[string]map[string]*membership.UserRole // user ID -> role ID -> edge
	decisions  []*decisionlog.Record
}

// New creates an empty store
func New() *Store {
	return &Store{
		orgs:       make(map[string]*org.Organization),
		users:      make(map[string]*identity.User),
		roles:      make(map[string]*registry.Role),
		roleValues: make(map[string]string),
		edges:      make(map[string]map[string]*membership.UserRole),
	}
}

func valueKey(organizationID, profile, value string) string {
	return strings.Join([]string{organizationID, profile, value}, "\x00")
}

// ---------------------------------------------------------------------------
// org.Repository
// ---------------------------------------------------------------------------

// Organizations returns a view of the store satisfying org.Repository
func (s *Store) Organizations() org.Repository { return (*orgStore)(s) }

type orgStore Store

func (s *orgStore) Create(ctx context.Context, o *org.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[o.ID]; exists {
		return org.ErrOrganizationAlreadyExists
	}
	cp := *o
	s.orgs[o.ID] = &cp
	return nil
}

func (s *orgStore) GetByID(ctx context.Context, id string) (*org.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return nil, org.ErrOrganizationNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *orgStore) List(ctx context.Context, limit, offset int) ([]*org.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.orgs))
	for id := range s.orgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*org.Organization
	for i, id := range ids {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *s.orgs[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *orgStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[id]; !ok {
		return org.ErrOrganizationNotFound
	}
	delete(s.orgs, id)
	return nil
}

// ---------------------------------------------------------------------------
// identity.Repository
// ---------------------------------------------------------------------------

// Users returns a view of the store satisfying identity.Repository
func (s *Store) Users() identity.Repository { return (*userStore)(s) }

type userStore Store

func (s *userStore) Create(ctx context.Context, u *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return identity.ErrUserAlreadyExists
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return identity.ErrUserAlreadyExists
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) GetByID(ctx context.Context, id string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (s *userStore) List(ctx context.Context, limit, offset int) ([]*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*identity.User
	for i, id := range ids {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *s.users[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *userStore) SetActiveProfile(ctx context.Context, userID, profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.ActiveProfile = profile
	u.UpdatedAt = time.Now()
	return nil
}

// ---------------------------------------------------------------------------
// registry.Repository
// ---------------------------------------------------------------------------

// Roles returns a view of the store satisfying registry.Repository
func (s *Store) Roles() registry.Repository { return (*roleStore)(s) }

type roleStore Store

func (s *roleStore) Create(ctx context.Context, role *registry.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := valueKey(role.OrganizationID, role.Profile, role.Value)
	if _, exists := s.roleValues[key]; exists {
		return registry.ErrDuplicateValue
	}

	cp := *role
	cp.Permissions = role.Permissions.Clone()
	s.roles[role.ID] = &cp
	s.roleValues[key] = role.ID
	return nil
}

func (s *roleStore) GetByID(ctx context.Context, id string) (*registry.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, registry.ErrRoleNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *roleStore) GetByValue(ctx context.Context, organizationID, profile, value string) (*registry.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.roleValues[valueKey(organizationID, profile, value)]
	if !ok {
		return nil, registry.ErrRoleNotFound
	}
	cp := *s.roles[id]
	return &cp, nil
}

func (s *roleStore) ReplacePermissions(ctx context.Context, roleID string, perms catalog.PermissionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[roleID]
	if !ok {
		return registry.ErrRoleNotFound
	}

	// Swap in a fresh role value rather than mutating the stored one:
	// copies handed out earlier keep the old set intact.
	cp := *role
	cp.Permissions = perms.Clone()
	cp.UpdatedAt = time.Now()
	s.roles[roleID] = &cp
	return nil
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return registry.ErrRoleNotFound
	}
	delete(s.roleValues, valueKey(role.OrganizationID, role.Profile, role.Value))
	delete(s.roles, id)
	return nil
}

func (s *roleStore) ListByOrganization(ctx context.Context, organizationID string) ([]*registry.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*registry.Role
	for _, role := range s.roles {
		if role.OrganizationID == organizationID {
			cp := *role
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *roleStore) GetByIDs(ctx context.Context, ids []string) ([]*registry.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*registry.Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := s.roles[id]; ok {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *roleStore) CountByOrganization(ctx context.Context, organizationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, role := range s.roles {
		if role.OrganizationID == organizationID {
			count++
		}
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// membership.Repository
// ---------------------------------------------------------------------------

// Memberships returns a view of the store satisfying membership.Repository
func (s *Store) Memberships() membership.Repository { return (*membershipStore)(s) }

type membershipStore Store

func (s *membershipStore) Assign(ctx context.Context, edge *membership.UserRole) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRole, ok := s.edges[edge.UserID]
	if !ok {
		byRole = make(map[string]*membership.UserRole)
		s.edges[edge.UserID] = byRole
	}
	if _, exists := byRole[edge.RoleID]; exists {
		return false, nil
	}
	cp := *edge
	byRole[edge.RoleID] = &cp
	return true, nil
}

func (s *membershipStore) Revoke(ctx context.Context, userID, roleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRole, ok := s.edges[userID]
	if !ok {
		return false, nil
	}
	if _, exists := byRole[roleID]; !exists {
		return false, nil
	}
	delete(byRole, roleID)
	return true, nil
}

func (s *membershipStore) ListForUser(ctx context.Context, userID string) ([]*membership.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*membership.UserRole
	for _, edge := range s.edges[userID] {
		cp := *edge
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func (s *membershipStore) CountByRole(ctx context.Context, roleID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, byRole := range s.edges {
		if _, ok := byRole[roleID]; ok {
			count++
		}
	}
	return count, nil
}

func (s *membershipStore) DeleteByRole(ctx context.Context, roleID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected []string
	for userID, byRole := range s.edges {
		if _, ok := byRole[roleID]; ok {
			delete(byRole, roleID)
			affected = append(affected, userID)
		}
		if len(byRole) == 0 {
			delete(s.edges, userID)
		}
	}
	return affected, nil
}

// ---------------------------------------------------------------------------
// decisionlog.Sink
// ---------------------------------------------------------------------------

// Decisions returns a view of the store satisfying decisionlog.Sink
func (s *Store) Decisions() decisionlog.Sink { return (*decisionStore)(s) }

type decisionStore Store

func (s *decisionStore) Write(ctx context.Context, rec *decisionlog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.decisions = append(s.decisions, &cp)
	return nil
}

func (s *decisionStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.decisions[:0]
	var removed int64
	for _, rec := range s.decisions {
		if rec.CheckedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.decisions = kept
	return removed, nil
}

// DecisionCount reports how many decision records are stored; used by tests
func (s *Store) DecisionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}
