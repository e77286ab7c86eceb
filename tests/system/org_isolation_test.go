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

// Package system provides integration tests that run against a real PostgreSQL database.
//
// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	docker compose up -d postgres
//
// Test Categories:
//   - ORG-*: Organization isolation tests
//   - DEC-*: Decision evaluation tests
package system

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/authz"
	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/membership"
	"github.com/gatehouse/gatehouse/internal/org"
	"github.com/gatehouse/gatehouse/internal/profiles"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/gatehouse/gatehouse/internal/store/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDB is the shared database connection for integration tests
var testDB *postgres.DB

// TestMain sets up and tears down the test database connection
func TestMain(m *testing.M) {
	// Skip if not integration test
	if os.Getenv("INTEGRATION_TEST") != "true" {
		os.Exit(0)
	}

	// Setup database
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("DB_HOST", "localhost"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "gatehouse"),
		Password:     getEnvOrDefault("DB_PASSWORD", "gatehouse_dev_password"),
		Database:     getEnvOrDefault("DB_NAME", "gatehouse"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	testDB = db

	// Apply migrations
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		// Ignore errors for already existing tables
		_ = err
	}

	// Run tests
	code := m.Run()

	// Cleanup
	testDB.Close()
	os.Exit(code)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// stack holds a full service graph over the shared test database.
type stack struct {
	identities  *identity.Service
	orgs        *org.Service
	registry    *registry.Service
	memberships *membership.Service
	switcher    *profiles.Switcher
	evaluator   *authz.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()

	auditLogger := audit.NewSlogLogger()
	userRepo := postgres.NewUserRepository(testDB)
	roleRepo := postgres.NewRoleRepository(testDB)
	edgeRepo := postgres.NewMembershipRepository(testDB)
	orgRepo := postgres.NewOrgRepository(testDB)

	cat := catalog.MustBuiltin()
	evaluator, err := authz.NewService(cat, edgeRepo, roleRepo, userRepo, nil, 128, time.Minute)
	require.NoError(t, err)

	locks := membership.NewUserLocks()
	memberships := membership.NewService(edgeRepo, roleRepo, userRepo, locks, evaluator, auditLogger)

	return &stack{
		identities:  identity.NewService(userRepo, auditLogger),
		orgs:        org.NewService(orgRepo, roleRepo, auditLogger),
		registry:    registry.NewService(cat, roleRepo, memberships, evaluator, auditLogger),
		memberships: memberships,
		switcher:    profiles.NewSwitcher(memberships, userRepo, locks, evaluator, auditLogger),
		evaluator:   evaluator,
	}
}

// suffix returns a short unique tag so tests can re-run against a dirty database.
func suffix() string {
	return uuid.NewString()[:8]
}

// =============================================================================
// ORGANIZATION ISOLATION TESTS
// =============================================================================

// TestPurpose: Validates that a role granted in organization A carries no weight in organization B.
// Scope: Integration Test
// Security: Organization boundary enforcement (prevents cross-organization access)
// Expected: Permission checks narrowed to organization B deny the user, and role
// listings narrowed to organization B come back empty.
// Test Case ID: ORG-01
func TestOrganization_Isolation_RoleInOrgACarriesNothingInOrgB(t *testing.T) {
	if testDB == nil {
		t.Skip("Integration test requires database (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	s := newStack(t)
	tag := suffix()

	orgA, err := s.orgs.Create(ctx, "org-a-"+tag, "Org A "+tag, "system")
	require.NoError(t, err, "ORG-01: Failed to create organization A")
	orgB, err := s.orgs.Create(ctx, "org-b-"+tag, "Org B "+tag, "system")
	require.NoError(t, err, "ORG-01: Failed to create organization B")

	perms := catalog.NewPermissionSet(catalog.Permission{Operation: catalog.OpRead, Object: catalog.ObjInvoice})
	role, err := s.registry.CreateRole(ctx, orgA.ID, catalog.ProfileEmployee, "Clerk", "clerk-"+tag, perms, "system")
	require.NoError(t, err, "ORG-01: Failed to create role in organization A")

	user, err := s.identities.Provision(ctx, "iso-"+tag+"@example.com", "Iso User", "system")
	require.NoError(t, err)

	require.NoError(t, s.memberships.AssignRole(ctx, user.ID, role.ID, "system"))
	require.NoError(t, s.switcher.Switch(ctx, user.ID, catalog.ProfileEmployee))

	assert.True(t, s.evaluator.Can(ctx, user.ID, catalog.OpRead, catalog.ObjInvoice, orgA.ID),
		"ORG-01: Role must grant its permission inside its own organization")

	// CRITICAL: the same check narrowed to organization B must deny.
	assert.False(t, s.evaluator.Can(ctx, user.ID, catalog.OpRead, catalog.ObjInvoice, orgB.ID),
		"ORG-01 SECURITY: Role from organization A MUST NOT grant anything in organization B")

	rolesB, err := s.memberships.RolesFor(ctx, user.ID, orgB.ID)
	require.NoError(t, err)
	assert.Len(t, rolesB, 0,
		"ORG-01 SECURITY: User MUST NOT hold any roles narrowed to organization B")
}

// TestPurpose: Validates that role value uniqueness is scoped per organization and profile.
// Scope: Integration Test
// Expected: The same role value is accepted in a second organization and rejected
// as a duplicate within the first.
// Test Case ID: ORG-02
func TestOrganization_RoleValues_ScopedPerOrganization(t *testing.T) {
	if testDB == nil {
		t.Skip("Integration test requires database")
	}

	ctx := context.Background()
	s := newStack(t)
	tag := suffix()

	orgA, err := s.orgs.Create(ctx, "val-a-"+tag, "Val A "+tag, "system")
	require.NoError(t, err)
	orgB, err := s.orgs.Create(ctx, "val-b-"+tag, "Val B "+tag, "system")
	require.NoError(t, err)

	perms := catalog.NewPermissionSet(catalog.Permission{Operation: catalog.OpRead, Object: catalog.ObjSchedule})
	_, err = s.registry.CreateRole(ctx, orgA.ID, catalog.ProfileEmployee, "Planner", "planner-"+tag, perms, "system")
	require.NoError(t, err)

	_, err = s.registry.CreateRole(ctx, orgB.ID, catalog.ProfileEmployee, "Planner", "planner-"+tag, perms, "system")
	assert.NoError(t, err,
		"ORG-02: The same role value must be usable by a different organization")

	_, err = s.registry.CreateRole(ctx, orgA.ID, catalog.ProfileEmployee, "Planner Again", "planner-"+tag, perms, "system")
	assert.ErrorIs(t, err, registry.ErrDuplicateValue,
		"ORG-02: Duplicate role value within one organization and profile must be rejected")
}

// =============================================================================
// DECISION EVALUATION TESTS
// =============================================================================

// TestPurpose: Validates the fail-closed default against a real database: an account
// with roles but no active profile is denied everything.
// Scope: Integration Test
// Security: Fail-closed evaluation
// Expected: Checks deny until an explicit profile switch, and deny again after the
// last role under the active profile is revoked.
// Test Case ID: DEC-01
func TestDecision_FailClosed_NoActiveProfileDeniesEverything(t *testing.T) {
	if testDB == nil {
		t.Skip("Integration test requires database")
	}

	ctx := context.Background()
	s := newStack(t)
	tag := suffix()

	o, err := s.orgs.Create(ctx, "dec-"+tag, "Dec "+tag, "system")
	require.NoError(t, err)

	perms := catalog.NewPermissionSet(catalog.Permission{Operation: catalog.OpEdit, Object: catalog.ObjWorkOrder})
	role, err := s.registry.CreateRole(ctx, o.ID, catalog.ProfileEmployee, "Dispatcher", "dispatcher-"+tag, perms, "system")
	require.NoError(t, err)

	user, err := s.identities.Provision(ctx, "dec-"+tag+"@example.com", "Dec User", "system")
	require.NoError(t, err)
	require.NoError(t, s.memberships.AssignRole(ctx, user.ID, role.ID, "system"))

	// Assignment alone never activates a profile.
	assert.False(t, s.evaluator.Can(ctx, user.ID, catalog.OpEdit, catalog.ObjWorkOrder, ""),
		"DEC-01 SECURITY: Checks MUST deny while no profile is active")

	require.NoError(t, s.switcher.Switch(ctx, user.ID, catalog.ProfileEmployee))
	assert.True(t, s.evaluator.Can(ctx, user.ID, catalog.OpEdit, catalog.ObjWorkOrder, ""),
		"DEC-01: Check must allow once the granting profile is active")

	// Revoking the last role under the active profile clears it.
	require.NoError(t, s.memberships.RevokeRole(ctx, user.ID, role.ID, "system"))
	assert.False(t, s.evaluator.Is(ctx, user.ID, catalog.ProfileEmployee),
		"DEC-01 SECURITY: Active profile MUST clear when its last role is revoked")
	assert.False(t, s.evaluator.Can(ctx, user.ID, catalog.OpEdit, catalog.ObjWorkOrder, ""),
		"DEC-01 SECURITY: Checks MUST deny after the last role is revoked")
}
