package org

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrOrganizationInUse         = errors.New("organization has roles defined")
)

// Organization is a bare grouping entity. It carries no business attributes;
// it exists solely to scope roles. Business data about the organization lives
// with the external tenant-management collaborator that creates it.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines the interface for organization persistence
type Repository interface {
	// Create creates a new organization
	Create(ctx context.Context, o *Organization) error

	// GetByID retrieves an organization by ID
	GetByID(ctx context.Context, id string) (*Organization, error)

	// List retrieves organizations with pagination
	List(ctx context.Context, limit, offset int) ([]*Organization, error)

	// Delete removes an organization
	Delete(ctx context.Context, id string) error
}
