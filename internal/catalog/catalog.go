package catalog

import "errors"

// Domain errors
var (
	ErrNotFound    = errors.New("catalog entry not found")
	ErrInvalidSeed = errors.New("invalid catalog seed")
)

// Operation is an action kind (read, edit, create, ...)
type Operation string

// Object is a resource kind being acted upon (invoice, customer, ...)
type Object string

// Permission is the atomic grantable unit: an (operation, object) pair
type Permission struct {
	Operation Operation
	Object    Object
}

// String renders the permission in "operation:object" form
func (p Permission) String() string {
	return string(p.Operation) + ":" + string(p.Object)
}

// Profile represents a builder-defined user type
type Profile struct {
	Value string // stable machine-facing identifier
	Label string // human-facing display name
}

// PermissionSet is a set of permissions keyed by (operation, object)
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the permission is in the set
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy of the set
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Slice returns the permissions in the set in unspecified order
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

// Catalog is the immutable reference vocabulary: operations, objects,
// permissions, profiles and the permission-to-profile validity mapping.
// It is built once at startup and is safe for unsynchronized concurrent reads.
type Catalog struct {
	operations         map[Operation]struct{}
	objects            map[Object]struct{}
	permissions        map[Permission]struct{}
	profiles           map[string]Profile
	profilePermissions map[string]PermissionSet
}

// New builds a catalog from a seed, validating all cross references
func New(seed Seed) (*Catalog, error) {
	c := &Catalog{
		operations:         make(map[Operation]struct{}, len(seed.Operations)),
		objects:            make(map[Object]struct{}, len(seed.Objects)),
		permissions:        make(map[Permission]struct{}, len(seed.Permissions)),
		profiles:           make(map[string]Profile, len(seed.Profiles)),
		profilePermissions: make(map[string]PermissionSet, len(seed.Profiles)),
	}

	if err := seed.validate(); err != nil {
		return nil, err
	}

	for _, op := range seed.Operations {
		c.operations[Operation(op)] = struct{}{}
	}
	for _, obj := range seed.Objects {
		c.objects[Object(obj)] = struct{}{}
	}
	for _, sp := range seed.Permissions {
		c.permissions[Permission{Operation: Operation(sp.Operation), Object: Object(sp.Object)}] = struct{}{}
	}
	for _, p := range seed.Profiles {
		c.profiles[p.Value] = Profile{Value: p.Value, Label: p.Label}
		c.profilePermissions[p.Value] = make(PermissionSet)
	}
	for _, pp := range seed.ProfilePermissions {
		perm := Permission{Operation: Operation(pp.Operation), Object: Object(pp.Object)}
		c.profilePermissions[pp.Profile][perm] = struct{}{}
	}

	return c, nil
}

// PermissionOf resolves the permission registered for (operation, object).
// Returns ErrNotFound when no such permission exists in the catalog.
func (c *Catalog) PermissionOf(op Operation, obj Object) (Permission, error) {
	p := Permission{Operation: op, Object: obj}
	if _, ok := c.permissions[p]; !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

// ValidForProfile reports whether the permission is assignable under the profile
func (c *Catalog) ValidForProfile(p Permission, profile string) bool {
	set, ok := c.profilePermissions[profile]
	if !ok {
		return false
	}
	return set.Has(p)
}

// Profile resolves a profile by its value
func (c *Catalog) Profile(value string) (Profile, error) {
	p, ok := c.profiles[value]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// Profiles returns all profiles in the catalog in unspecified order
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	return out
}

// PermissionsForProfile returns a copy of the permissions assignable under the profile
func (c *Catalog) PermissionsForProfile(profile string) PermissionSet {
	set, ok := c.profilePermissions[profile]
	if !ok {
		return nil
	}
	return set.Clone()
}
