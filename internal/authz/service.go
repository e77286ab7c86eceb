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

// Package authz is the permission evaluator: the read path answering
// "is this user acting as profile P" and "may this user perform operation Op
// on object O, optionally within organization G".
//
// Grants are strictly additive. A user's effective permissions under the
// active profile are the union of the permission sets of every qualifying
// role; there is no deny, no precedence and no shadowing, so evaluation
// order can never change a decision.
//
// Every unresolvable lookup is a denial. Can returns a bare boolean and
// never an error: an internal failure must deny, not surface as an exception
// to the authorization guard.
package authz

import (
	"context"
	"time"

	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/decisionlog"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/membership"
	"github.com/gatehouse/gatehouse/internal/registry"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MembershipReader is the slice of the membership store the evaluator reads
type MembershipReader interface {
	ListForUser(ctx context.Context, userID string) ([]*membership.UserRole, error)
}

// RoleReader resolves role IDs to roles
type RoleReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]*registry.Role, error)
}

// UserReader resolves user IDs to users
type UserReader interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
}

// snapshot is an immutable view of one user's memberships. Roles carry their
// permission sets by value of the replacement pointer: an update swaps the
// whole set, so a snapshot observes it entirely before or entirely after.
type snapshot struct {
	activeProfile string
	roles         []*registry.Role
	fetchedAt     time.Time
}

// Service evaluates permission checks against membership snapshots
type Service struct {
	catalog     *catalog.Catalog
	memberships MembershipReader
	roles       RoleReader
	users       UserReader
	decisions   *decisionlog.Service

	cache *lru.Cache[string, *snapshot]
	ttl   time.Duration
}

// NewService creates a new evaluator. cacheSize bounds the number of cached
// per-user snapshots; ttl bounds their staleness across processes sharing a
// store. decisions may be nil to disable decision recording.
func NewService(cat *catalog.Catalog, memberships MembershipReader, roles RoleReader, users UserReader, decisions *decisionlog.Service, cacheSize int, ttl time.Duration) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, *snapshot](cacheSize)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		catalog:     cat,
		memberships: memberships,
		roles:       roles,
		users:       users,
		decisions:   decisions,
		cache:       cache,
		ttl:         ttl,
	}, nil
}

// Is reports whether the user is currently acting as the given profile
func (s *Service) Is(ctx context.Context, userID, profile string) bool {
	snap, err := s.snapshotFor(ctx, userID)
	if err != nil {
		return false
	}
	return snap.activeProfile != "" && snap.activeProfile == profile
}

// Can reports whether the user may perform the operation on the object,
// optionally narrowed to one organization (empty organizationID aggregates
// across every organization the user has a qualifying role in).
//
// The decision is fail-closed at every step: unset active profile, unknown
// (operation, object) pair, and any lookup failure all deny.
func (s *Service) Can(ctx context.Context, userID string, op catalog.Operation, obj catalog.Object, organizationID string) bool {
	allowed, reason, profile := s.evaluate(ctx, userID, op, obj, organizationID)

	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	decisionsTotal.WithLabelValues(outcome).Inc()

	if s.decisions != nil {
		s.decisions.Record(&decisionlog.Record{
			UserID:         userID,
			Profile:        profile,
			Operation:      string(op),
			Object:         string(obj),
			OrganizationID: organizationID,
			Allowed:        allowed,
			Reason:         reason,
			CheckedAt:      time.Now(),
		})
	}

	return allowed
}

func (s *Service) evaluate(ctx context.Context, userID string, op catalog.Operation, obj catalog.Object, organizationID string) (allowed bool, reason, profile string) {
	snap, err := s.snapshotFor(ctx, userID)
	if err != nil {
		return false, decisionlog.ReasonLookupFailed, ""
	}

	if snap.activeProfile == "" {
		return false, decisionlog.ReasonNoActiveProfile, ""
	}

	perm, err := s.catalog.PermissionOf(op, obj)
	if err != nil {
		return false, decisionlog.ReasonUnknownPermission, snap.activeProfile
	}

	// Union step: the permission is granted if ANY qualifying role carries
	// it. Absence in one role never suppresses presence in another.
	for _, role := range snap.roles {
		if role.Profile != snap.activeProfile {
			continue
		}
		if organizationID != "" && role.OrganizationID != organizationID {
			continue
		}
		if role.HasPermission(perm) {
			return true, decisionlog.ReasonGranted, snap.activeProfile
		}
	}

	return false, decisionlog.ReasonNoMatchingRole, snap.activeProfile
}

// snapshotFor returns the user's membership snapshot, serving from cache
// while fresh.
func (s *Service) snapshotFor(ctx context.Context, userID string) (*snapshot, error) {
	if snap, ok := s.cache.Get(userID); ok && time.Since(snap.fetchedAt) < s.ttl {
		snapshotHits.Inc()
		return snap, nil
	}
	snapshotMisses.Inc()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	edges, err := s.memberships.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.RoleID)
	}

	roles, err := s.roles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		activeProfile: user.ActiveProfile,
		roles:         roles,
		fetchedAt:     time.Now(),
	}
	s.cache.Add(userID, snap)
	return snap, nil
}

// InvalidateUser drops the cached snapshot for one user. Called by the
// membership store and profile switcher after writes.
func (s *Service) InvalidateUser(userID string) {
	s.cache.Remove(userID)
}

// InvalidateAll drops every cached snapshot. Called by the role registry
// after a permission-set change, which can affect any holder.
func (s *Service) InvalidateAll() {
	s.cache.Purge()
}
