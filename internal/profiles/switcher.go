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

// Package profiles controls the user's active profile: the single profile a
// user is acting as at any moment. The state machine is Unset or
// ActiveAs(profile); a switch requires the user to hold at least one role
// under the target, and the only implicit transition is the clear to Unset
// performed by the membership store when the last role under the active
// profile is revoked.
package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/membership"
)

// ErrNoRoleInProfile rejects a switch to a profile the user holds no role in
var ErrNoRoleInProfile = errors.New("user holds no role under target profile")

// ProfileLister is the slice of the membership store the switcher needs
type ProfileLister interface {
	ProfilesFor(ctx context.Context, userID string) ([]string, error)
}

// SnapshotInvalidator lets the switcher drop a user's cached membership
// snapshot after a switch.
type SnapshotInvalidator interface {
	InvalidateUser(userID string)
}

// Switcher validates and performs active-profile transitions
type Switcher struct {
	memberships ProfileLister
	users       identity.Repository
	locks       *membership.UserLocks
	snapshots   SnapshotInvalidator
	auditLogger audit.Logger
}

// NewSwitcher creates a new profile switcher. locks must be the same instance
// the membership service uses, so that a switch serializes against a
// concurrent clear-on-last-revoke. snapshots may be nil.
func NewSwitcher(memberships ProfileLister, users identity.Repository, locks *membership.UserLocks, snapshots SnapshotInvalidator, auditLogger audit.Logger) *Switcher {
	return &Switcher{
		memberships: memberships,
		users:       users,
		locks:       locks,
		snapshots:   snapshots,
		auditLogger: auditLogger,
	}
}

// Switch sets the user's active profile to target. Fails with
// ErrNoRoleInProfile, leaving the current state untouched, when the user
// holds no role under the target profile.
func (s *Switcher) Switch(ctx context.Context, userID, target string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	held, err := s.memberships.ProfilesFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to enumerate profiles: %w", err)
	}

	found := false
	for _, p := range held {
		if p == target {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrNoRoleInProfile, target)
	}

	if user.ActiveProfile == target {
		return nil
	}

	if err := s.users.SetActiveProfile(ctx, userID, target); err != nil {
		return fmt.Errorf("failed to set active profile: %w", err)
	}

	if s.snapshots != nil {
		s.snapshots.InvalidateUser(userID)
	}

	switchesTotal.WithLabelValues(target).Inc()

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProfileSwitched,
		ActorID:  userID,
		Resource: userID,
		Metadata: map[string]any{"from": user.ActiveProfile, "to": target},
	})

	return nil
}

// ActiveProfile returns the user's current active profile, empty when unset
func (s *Switcher) ActiveProfile(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.ActiveProfile, nil
}
