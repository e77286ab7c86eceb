package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Seed is the serializable form of the catalog, loaded once at deployment.
// Entries are append-only: values referenced by stored roles must never be
// removed or renamed.
type Seed struct {
	Operations         []string                `json:"operations"`
	Objects            []string                `json:"objects"`
	Permissions        []SeedPermission        `json:"permissions"`
	Profiles           []SeedProfile           `json:"profiles"`
	ProfilePermissions []SeedProfilePermission `json:"profile_permissions"`
}

// SeedPermission declares a grantable (operation, object) pair
type SeedPermission struct {
	Operation string `json:"operation"`
	Object    string `json:"object"`
}

// SeedProfile declares a user type with its display label
type SeedProfile struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SeedProfilePermission declares that a permission is assignable under a profile
type SeedProfilePermission struct {
	Profile   string `json:"profile"`
	Operation string `json:"operation"`
	Object    string `json:"object"`
}

// LoadSeed reads a JSON seed file
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to read catalog seed: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	return seed, nil
}

// validate checks internal consistency of the seed before the catalog is built
func (s Seed) validate() error {
	ops := make(map[string]struct{}, len(s.Operations))
	for _, op := range s.Operations {
		if op == "" {
			return fmt.Errorf("%w: empty operation", ErrInvalidSeed)
		}
		if _, dup := ops[op]; dup {
			return fmt.Errorf("%w: duplicate operation %q", ErrInvalidSeed, op)
		}
		ops[op] = struct{}{}
	}

	objs := make(map[string]struct{}, len(s.Objects))
	for _, obj := range s.Objects {
		if obj == "" {
			return fmt.Errorf("%w: empty object", ErrInvalidSeed)
		}
		if _, dup := objs[obj]; dup {
			return fmt.Errorf("%w: duplicate object %q", ErrInvalidSeed, obj)
		}
		objs[obj] = struct{}{}
	}

	perms := make(map[SeedPermission]struct{}, len(s.Permissions))
	for _, p := range s.Permissions {
		if _, ok := ops[p.Operation]; !ok {
			return fmt.Errorf("%w: permission references unknown operation %q", ErrInvalidSeed, p.Operation)
		}
		if _, ok := objs[p.Object]; !ok {
			return fmt.Errorf("%w: permission references unknown object %q", ErrInvalidSeed, p.Object)
		}
		if _, dup := perms[p]; dup {
			return fmt.Errorf("%w: duplicate permission %s:%s", ErrInvalidSeed, p.Operation, p.Object)
		}
		perms[p] = struct{}{}
	}

	profiles := make(map[string]struct{}, len(s.Profiles))
	for _, p := range s.Profiles {
		if p.Value == "" {
			return fmt.Errorf("%w: profile with empty value", ErrInvalidSeed)
		}
		if _, dup := profiles[p.Value]; dup {
			return fmt.Errorf("%w: duplicate profile %q", ErrInvalidSeed, p.Value)
		}
		profiles[p.Value] = struct{}{}
	}

	for _, pp := range s.ProfilePermissions {
		if _, ok := profiles[pp.Profile]; !ok {
			return fmt.Errorf("%w: profile permission references unknown profile %q", ErrInvalidSeed, pp.Profile)
		}
		if _, ok := perms[SeedPermission{Operation: pp.Operation, Object: pp.Object}]; !ok {
			return fmt.Errorf("%w: profile permission references unknown permission %s:%s", ErrInvalidSeed, pp.Operation, pp.Object)
		}
	}

	return nil
}
