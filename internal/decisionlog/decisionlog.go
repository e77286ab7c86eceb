package decisionlog

import (
	"context"
	"time"
)

// Decision reasons, recorded for operators only. Callers of the evaluator
// get a bare boolean; reasons must never leak to an unauthorized actor.
const (
	ReasonGranted           = "granted"
	ReasonNoActiveProfile   = "no_active_profile"
	ReasonUnknownPermission = "unknown_permission"
	ReasonNoMatchingRole    = "no_matching_role"
	ReasonLookupFailed      = "lookup_failed"
)

// Record is one permission-check evaluation
type Record struct {
	ID             string // ULID
	UserID         string
	Profile        string
	Operation      string
	Object         string
	OrganizationID string // empty for unscoped checks
	Allowed        bool
	Reason         string
	CheckedAt      time.Time
}

// Sink persists decision records
type Sink interface {
	// Write stores one record
	Write(ctx context.Context, rec *Record) error

	// Prune deletes records checked before the cutoff, returning how many
	// were removed
	Prune(ctx context.Context, before time.Time) (int64, error)
}
