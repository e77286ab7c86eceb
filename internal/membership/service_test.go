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

package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/membership"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/gatehouse/gatehouse/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	store       *memory.Store
	memberships *membership.Service
	user        *identity.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	svc := membership.NewService(store.Memberships(), store.Roles(), store.Users(), membership.NewUserLocks(), nil, audit.NewSlogLogger())

	u := &identity.User{ID: "user-1", Email: "u@example.com", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.Users().Create(context.Background(), u))

	return &env{store: store, memberships: svc, user: u}
}

func (e *env) addRole(t *testing.T, id, orgID, profile string) *registry.Role {
	t.Helper()
	role := &registry.Role{
		ID:             id,
		OrganizationID: orgID,
		Profile:        profile,
		Label:          id,
		Value:          id,
		Permissions:    catalog.NewPermissionSet(catalog.Permission{Operation: catalog.OpRead, Object: catalog.ObjInvoice}),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, e.store.Roles().Create(context.Background(), role))
	return role
}

func TestAssignRole_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.addRole(t, "role-a", "org-1", catalog.ProfileClient)

	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, role.ID, "admin"))
	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, role.ID, "admin"))

	roles, err := e.memberships.RolesFor(ctx, e.user.ID, "")
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestAssignRole_UnknownUserOrRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.addRole(t, "role-a", "org-1", catalog.ProfileClient)

	err := e.memberships.AssignRole(ctx, "ghost", role.ID, "admin")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	err = e.memberships.AssignRole(ctx, e.user.ID, "no-such-role", "admin")
	assert.ErrorIs(t, err, registry.ErrRoleNotFound)
}

func TestAssignRole_LeavesActiveProfileUnset(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.addRole(t, "role-a", "org-1", catalog.ProfileClient)

	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, role.ID, "admin"))

	u, err := e.store.Users().GetByID(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Empty(t, u.ActiveProfile)
}

func TestRevokeRole_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.addRole(t, "role-a", "org-1", catalog.ProfileClient)

	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, role.ID, "admin"))
	require.NoError(t, e.memberships.RevokeRole(ctx, e.user.ID, role.ID, "admin"))
	require.NoError(t, e.memberships.RevokeRole(ctx, e.user.ID, role.ID, "admin"))

	roles, err := e.memberships.RolesFor(ctx, e.user.ID, "")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestRevokeRole_ClearsProfileOnlyWhenLastRoleUnderIt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roleA := e.addRole(t, "role-a", "org-1", catalog.ProfileClient)
	roleB := e.addRole(t, "role-b", "org-2", catalog.ProfileClient)

	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, roleA.ID, "admin"))
	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, roleB.ID, "admin"))
	require.NoError(t, e.store.Users().SetActiveProfile(ctx, e.user.ID, catalog.ProfileClient))

	// Another role still carries the active profile: keep it
	require.NoError(t, e.memberships.RevokeRole(ctx, e.user.ID, roleA.ID, "admin"))
	u, err := e.store.Users().GetByID(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.ProfileClient, u.ActiveProfile)

	// Last role under the profile gone: clear it
	require.NoError(t, e.memberships.RevokeRole(ctx, e.user.ID, roleB.ID, "admin"))
	u, err = e.store.Users().GetByID(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Empty(t, u.ActiveProfile)
}

func TestRevokeRole_InactiveProfileDoesNotClear(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	clientRole := e.addRole(t, "role-a", "org-1", catalog.ProfileClient)
	adminRole := e.addRole(t, "role-b", "org-1", catalog.ProfileAdministrator)

	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, clientRole.ID, "admin"))
	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, adminRole.ID, "admin"))
	require.NoError(t, e.store.Users().SetActiveProfile(ctx, e.user.ID, catalog.ProfileClient))

	require.NoError(t, e.memberships.RevokeRole(ctx, e.user.ID, adminRole.ID, "admin"))

	u, err := e.store.Users().GetByID(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.ProfileClient, u.ActiveProfile)
}

func TestDeleteByRole_ClearsProfileOnlyForUsersLeftWithout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roleA := e.addRole(t, "role-a", "org-1", catalog.ProfileClient)
	roleB := e.addRole(t, "role-b", "org-2", catalog.ProfileClient)

	other := &identity.User{ID: "user-2", Email: "u2@example.com", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, e.store.Users().Create(ctx, other))

	// user-1 holds only role-a; user-2 holds role-a and role-b. Both act as
	// client.
	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, roleA.ID, "admin"))
	require.NoError(t, e.memberships.AssignRole(ctx, other.ID, roleA.ID, "admin"))
	require.NoError(t, e.memberships.AssignRole(ctx, other.ID, roleB.ID, "admin"))
	require.NoError(t, e.store.Users().SetActiveProfile(ctx, e.user.ID, catalog.ProfileClient))
	require.NoError(t, e.store.Users().SetActiveProfile(ctx, other.ID, catalog.ProfileClient))

	removed, err := e.memberships.DeleteByRole(ctx, roleA.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// user-1 lost their last client role with the cascade
	u, err := e.store.Users().GetByID(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Empty(t, u.ActiveProfile)

	// user-2 still holds role-b under client and keeps acting as it
	u, err = e.store.Users().GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.ProfileClient, u.ActiveProfile)
}

func TestRolesFor_OrganizationNarrowing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roleA := e.addRole(t, "role-a", "org-1", catalog.ProfileClient)
	roleB := e.addRole(t, "role-b", "org-2", catalog.ProfileClient)

	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, roleA.ID, "admin"))
	require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, roleB.ID, "admin"))

	all, err := e.memberships.RolesFor(ctx, e.user.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := e.memberships.RolesFor(ctx, e.user.ID, "org-2")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, roleB.ID, scoped[0].ID)

	none, err := e.memberships.RolesFor(ctx, e.user.ID, "org-9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProfilesFor_DistinctSorted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, spec := range []struct{ id, org, profile string }{
		{"role-a", "org-1", catalog.ProfileEmployee},
		{"role-b", "org-2", catalog.ProfileClient},
		{"role-c", "org-1", catalog.ProfileClient},
	} {
		role := e.addRole(t, spec.id, spec.org, spec.profile)
		require.NoError(t, e.memberships.AssignRole(ctx, e.user.ID, role.ID, "admin"))
	}

	profiles, err := e.memberships.ProfilesFor(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.ProfileClient, catalog.ProfileEmployee}, profiles)

	orgs, err := e.memberships.OrganizationsFor(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"org-1", "org-2"}, orgs)
}

func TestProfilesFor_NoRoles(t *testing.T) {
	e := newEnv(t)

	profiles, err := e.memberships.ProfilesFor(context.Background(), e.user.ID)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
