package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_PermissionOf(t *testing.T) {
	c := MustBuiltin()

	p, err := c.PermissionOf(OpRead, ObjInvoice)
	require.NoError(t, err)
	assert.Equal(t, OpRead, p.Operation)
	assert.Equal(t, ObjInvoice, p.Object)
	assert.Equal(t, "read:invoice", p.String())
}

func TestCatalog_PermissionOf_Unknown(t *testing.T) {
	c := MustBuiltin()

	_, err := c.PermissionOf("approve", ObjInvoice)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.PermissionOf(OpRead, "rocket")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_ValidForProfile(t *testing.T) {
	c := MustBuiltin()

	edit, err := c.PermissionOf(OpEdit, ObjInvoiceLineItem)
	require.NoError(t, err)
	del, err := c.PermissionOf(OpDelete, ObjCustomer)
	require.NoError(t, err)

	assert.True(t, c.ValidForProfile(edit, ProfileClient))
	assert.True(t, c.ValidForProfile(del, ProfileAdministrator))

	// Clients may never be granted customer deletion
	assert.False(t, c.ValidForProfile(del, ProfileClient))

	// Unknown profile is never valid
	assert.False(t, c.ValidForProfile(edit, "intruder"))
}

func TestCatalog_Profile(t *testing.T) {
	c := MustBuiltin()

	p, err := c.Profile(ProfileClient)
	require.NoError(t, err)
	assert.Equal(t, "Client", p.Label)

	_, err = c.Profile("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, c.Profiles(), 3)
}

func TestSeed_Validate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		seed Seed
	}{
		{
			name: "permission with unknown operation",
			seed: Seed{
				Operations:  []string{"read"},
				Objects:     []string{"invoice"},
				Permissions: []SeedPermission{{Operation: "edit", Object: "invoice"}},
			},
		},
		{
			name: "permission with unknown object",
			seed: Seed{
				Operations:  []string{"read"},
				Objects:     []string{"invoice"},
				Permissions: []SeedPermission{{Operation: "read", Object: "customer"}},
			},
		},
		{
			name: "profile permission with unknown profile",
			seed: Seed{
				Operations:  []string{"read"},
				Objects:     []string{"invoice"},
				Permissions: []SeedPermission{{Operation: "read", Object: "invoice"}},
				ProfilePermissions: []SeedProfilePermission{
					{Profile: "ghost", Operation: "read", Object: "invoice"},
				},
			},
		},
		{
			name: "duplicate profile",
			seed: Seed{
				Profiles: []SeedProfile{{Value: "client"}, {Value: "client"}},
			},
		},
		{
			name: "duplicate operation",
			seed: Seed{Operations: []string{"read", "read"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.seed)
			assert.ErrorIs(t, err, ErrInvalidSeed)
		})
	}
}

func TestLoadSeed_RoundTrip(t *testing.T) {
	data, err := json.Marshal(BuiltinSeed())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)

	c, err := New(seed)
	require.NoError(t, err)

	p, err := c.PermissionOf(OpEdit, ObjInvoiceLineItem)
	require.NoError(t, err)
	assert.True(t, c.ValidForProfile(p, ProfileClient))
}

func TestLoadSeed_MissingFile(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestPermissionSet(t *testing.T) {
	read := Permission{Operation: OpRead, Object: ObjInvoice}
	edit := Permission{Operation: OpEdit, Object: ObjInvoice}

	set := NewPermissionSet(read)
	assert.True(t, set.Has(read))
	assert.False(t, set.Has(edit))

	clone := set.Clone()
	clone[edit] = struct{}{}
	assert.False(t, set.Has(edit), "clone must not alias the original")
	assert.Len(t, clone.Slice(), 2)
}
