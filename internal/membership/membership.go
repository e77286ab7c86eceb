package membership

import (
	"context"
	"time"
)

// UserRole is a membership edge between a user and a role. Holding the edge
// transitively associates the user with the role's organization and profile.
type UserRole struct {
	ID        string // UUID
	UserID    string
	RoleID    string
	GrantedAt time.Time
	GrantedBy string
}

// Repository defines the interface for membership persistence
type Repository interface {
	// Assign stores a membership edge. Returns false when the (user, role)
	// pair is already present; the call is a no-op in that case.
	Assign(ctx context.Context, edge *UserRole) (bool, error)

	// Revoke removes a membership edge. Returns false when no such edge
	// existed.
	Revoke(ctx context.Context, userID, roleID string) (bool, error)

	// ListForUser retrieves all membership edges held by a user
	ListForUser(ctx context.Context, userID string) ([]*UserRole, error)

	// CountByRole reports how many users currently hold the role
	CountByRole(ctx context.Context, roleID string) (int, error)

	// DeleteByRole removes every edge referencing the role, returning the
	// IDs of the users that held it. Callers that care about the active
	// profile invariant must re-check each returned user.
	DeleteByRole(ctx context.Context, roleID string) ([]string, error)
}
