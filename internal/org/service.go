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

package org

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/google/uuid"
)

// RoleCounter is the slice of the role registry the service needs to guard
// deletions.
type RoleCounter interface {
	CountByOrganization(ctx context.Context, organizationID string) (int, error)
}

// Service provides organization management business logic. This is the
// integration point for the external tenant-management collaborator.
type Service struct {
	repo        Repository
	roles       RoleCounter
	auditLogger audit.Logger
}

// NewService creates a new organization service
func NewService(repo Repository, roles RoleCounter, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		roles:       roles,
		auditLogger: auditLogger,
	}
}

// Create creates a new organization. An empty id lets the core generate one;
// collaborators that manage their own identifiers pass them through.
func (s *Service) Create(ctx context.Context, id, name string, actorID string) (*Organization, error) {
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	if _, err := s.repo.GetByID(ctx, id); err == nil {
		return nil, ErrOrganizationAlreadyExists
	} else if !errors.Is(err, ErrOrganizationNotFound) {
		return nil, fmt.Errorf("failed to check organization: %w", err)
	}

	now := time.Now()
	o := &Organization{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeOrganizationCreated,
		OrganizationID: id,
		ActorID:        actorID,
		Resource:       id,
		Metadata:       map[string]any{"name": name},
	})

	return o, nil
}

// Get retrieves an organization by ID
func (s *Service) Get(ctx context.Context, id string) (*Organization, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves organizations with pagination
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Organization, error) {
	return s.repo.List(ctx, limit, offset)
}

// Delete removes an organization that has no roles defined. Roles must be
// deleted first; this keeps role deletion semantics (plain vs cascade) in
// one place.
func (s *Service) Delete(ctx context.Context, id string, actorID string) error {
	count, err := s.roles.CountByOrganization(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count organization roles: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d role(s)", ErrOrganizationInUse, count)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeOrganizationDeleted,
		OrganizationID: id,
		ActorID:        actorID,
		Resource:       id,
	})

	return nil
}
