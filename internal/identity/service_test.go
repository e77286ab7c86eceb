package identity_test

import (
	"context"
	"testing"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentity(t *testing.T) *identity.Service {
	t.Helper()
	return identity.NewService(memory.New().Users(), audit.NewSlogLogger())
}

func TestProvision_Success(t *testing.T) {
	svc := newIdentity(t)
	ctx := context.Background()

	u, err := svc.Provision(ctx, "  Tom@Example.COM ", "Tom", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "tom@example.com", u.Email)
	assert.Empty(t, u.ActiveProfile)

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
}

func TestProvision_DuplicateEmail(t *testing.T) {
	svc := newIdentity(t)
	ctx := context.Background()

	_, err := svc.Provision(ctx, "tom@example.com", "Tom", "admin")
	require.NoError(t, err)

	// Normalization applies before the uniqueness check
	_, err = svc.Provision(ctx, "TOM@example.com", "Tom Again", "admin")
	assert.ErrorIs(t, err, identity.ErrUserAlreadyExists)
}

func TestProvision_InvalidEmail(t *testing.T) {
	svc := newIdentity(t)
	ctx := context.Background()

	for _, email := range []string{"", "no-at-sign", "@example.com", "tom@", "a@b@c"} {
		_, err := svc.Provision(ctx, email, "Tom", "admin")
		assert.ErrorIs(t, err, identity.ErrInvalidEmail, "email %q", email)
	}
}

func TestGetByEmail_Normalizes(t *testing.T) {
	svc := newIdentity(t)
	ctx := context.Background()

	u, err := svc.Provision(ctx, "tom@example.com", "Tom", "admin")
	require.NoError(t, err)

	got, err := svc.GetByEmail(ctx, " TOM@EXAMPLE.COM ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}
