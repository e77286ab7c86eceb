package org_test

import (
	"context"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/org"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/gatehouse/gatehouse/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrgService(t *testing.T) (*org.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return org.NewService(store.Organizations(), store.Roles(), audit.NewSlogLogger()), store
}

func TestCreate_GeneratesIDWhenEmpty(t *testing.T) {
	svc, _ := newOrgService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "", "Tom's Plumbing", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "Tom's Plumbing", o.Name)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Name, got.Name)
}

func TestCreate_ExplicitIDAndDuplicates(t *testing.T) {
	svc, _ := newOrgService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "org-tom", "Tom's Plumbing", "admin")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "org-tom", "Someone Else", "admin")
	assert.ErrorIs(t, err, org.ErrOrganizationAlreadyExists)

	_, err = svc.Create(ctx, "org-jack", "", "admin")
	assert.Error(t, err)
}

func TestDelete_RefusesWhileRolesExist(t *testing.T) {
	svc, store := newOrgService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "org-tom", "Tom's Plumbing", "admin")
	require.NoError(t, err)

	role := &registry.Role{
		ID:             "r1",
		OrganizationID: "org-tom",
		Profile:        catalog.ProfileClient,
		Label:          "Billing",
		Value:          "billing",
		Permissions:    catalog.NewPermissionSet(catalog.Permission{Operation: catalog.OpRead, Object: catalog.ObjInvoice}),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, store.Roles().Create(ctx, role))

	err = svc.Delete(ctx, "org-tom", "admin")
	assert.ErrorIs(t, err, org.ErrOrganizationInUse)

	require.NoError(t, store.Roles().Delete(ctx, "r1"))
	require.NoError(t, svc.Delete(ctx, "org-tom", "admin"))

	_, err = svc.Get(ctx, "org-tom")
	assert.ErrorIs(t, err, org.ErrOrganizationNotFound)
}
