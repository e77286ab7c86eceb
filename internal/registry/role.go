package registry

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse/gatehouse/internal/catalog"
)

// Domain errors
var (
	ErrRoleNotFound                = errors.New("role not found")
	ErrDuplicateValue              = errors.New("role value already exists for organization and profile")
	ErrInvalidPermissionForProfile = errors.New("permission not assignable under profile")
	ErrRoleInUse                   = errors.New("role is assigned to one or more users")
)

// Role is an organization- and profile-scoped bundle of permissions, defined
// by an organization administrator at runtime. The permission set is replaced
// wholesale on update; holders of a *Role never observe a partial set.
type Role struct {
	ID             string // ULID, sortable by creation time
	OrganizationID string
	Profile        string // catalog profile value
	Label          string
	Value          string // human-referenceable slug, unique per (organization, profile)
	Permissions    catalog.PermissionSet
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPermission checks if the role grants a specific permission
func (r *Role) HasPermission(p catalog.Permission) bool {
	return r.Permissions.Has(p)
}

// Repository defines the interface for role persistence
type Repository interface {
	// Create stores a new role. Returns ErrDuplicateValue when
	// (organization, profile, value) is already taken.
	Create(ctx context.Context, role *Role) error

	// GetByID retrieves a role by ID
	GetByID(ctx context.Context, id string) (*Role, error)

	// GetByValue retrieves a role by its (organization, profile, value) key
	GetByValue(ctx context.Context, organizationID, profile, value string) (*Role, error)

	// ReplacePermissions atomically swaps the role's permission set.
	// Concurrent readers observe either the previous or the new set.
	ReplacePermissions(ctx context.Context, roleID string, perms catalog.PermissionSet) error

	// Delete removes a role
	Delete(ctx context.Context, id string) error

	// ListByOrganization retrieves all roles scoped to an organization
	ListByOrganization(ctx context.Context, organizationID string) ([]*Role, error)

	// GetByIDs resolves a batch of role IDs, skipping unknown ones
	GetByIDs(ctx context.Context, ids []string) ([]*Role, error)

	// CountByOrganization reports how many roles an organization has
	CountByOrganization(ctx context.Context, organizationID string) (int, error)
}

// MembershipCounter is the slice of the membership service the registry needs
// to guard and cascade deletions.
type MembershipCounter interface {
	// CountByRole reports how many users currently hold the role
	CountByRole(ctx context.Context, roleID string) (int, error)

	// DeleteByRole removes every membership edge referencing the role,
	// returning the number of removed edges. Implementations must clear the
	// active profile of any user left without a role under it, the same way
	// a direct revocation would.
	DeleteByRole(ctx context.Context, roleID string, actorID string) (int, error)
}
