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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/observability/logger"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/go-chi/chi/v5"
)

// PermissionInput names a permission by its operation and object values
type PermissionInput struct {
	Operation string `json:"operation"`
	Object    string `json:"object"`
}

// CreateRoleRequest represents role creation data
type CreateRoleRequest struct {
	Profile     string            `json:"profile"`
	Label       string            `json:"label"`
	Value       string            `json:"value"`
	Permissions []PermissionInput `json:"permissions"`
}

// CreateRole creates a role scoped to the organization in the path
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.registryService.CreateRole(r.Context(),
		chi.URLParam(r, "orgID"), req.Profile, req.Label, req.Value,
		permissionSet(req.Permissions), GetActorID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateValue):
			respondError(w, http.StatusConflict, "role value already in use")
		case errors.Is(err, registry.ErrInvalidPermissionForProfile), errors.Is(err, catalog.ErrNotFound):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			slog.ErrorContext(r.Context(), "failed to create role", logger.Error(err))
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, roleResponse(role))
}

// GetRole retrieves a role by ID
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.registryService.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "role not found")
		return
	}
	respondJSON(w, http.StatusOK, roleResponse(role))
}

// ListRoles retrieves the organization's roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.registryService.ListRoles(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}

	out := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse(role))
	}
	respondJSON(w, http.StatusOK, map[string]any{"roles": out})
}

// UpdateRolePermissionsRequest carries the replacement permission set
type UpdateRolePermissionsRequest struct {
	Permissions []PermissionInput `json:"permissions"`
}

// UpdateRolePermissions replaces the role's permission set atomically
func (h *Handler) UpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	var req UpdateRolePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roleID := chi.URLParam(r, "roleID")
	err := h.registryService.UpdateRolePermissions(r.Context(), roleID,
		permissionSet(req.Permissions), GetActorID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, registry.ErrInvalidPermissionForProfile):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			slog.ErrorContext(r.Context(), "failed to update role permissions",
				logger.Error(err),
				logger.RoleID(roleID),
			)
			respondError(w, http.StatusInternalServerError, "failed to update role")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "permissions updated"})
}

// DeleteRole removes a role. Plain deletion refuses while users hold the
// role; pass cascade=true to remove the memberships as well.
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	actorID := GetActorID(r.Context())

	var err error
	if r.URL.Query().Get("cascade") == "true" {
		err = h.registryService.DeleteRoleCascade(r.Context(), roleID, actorID)
	} else {
		err = h.registryService.DeleteRole(r.Context(), roleID, actorID)
	}
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, registry.ErrRoleInUse):
			respondError(w, http.StatusConflict, "role is still assigned; revoke memberships or use cascade=true")
		default:
			slog.ErrorContext(r.Context(), "failed to delete role",
				logger.Error(err),
				logger.RoleID(roleID),
			)
			respondError(w, http.StatusInternalServerError, "failed to delete role")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "role deleted"})
}

func permissionSet(inputs []PermissionInput) catalog.PermissionSet {
	perms := make([]catalog.Permission, 0, len(inputs))
	for _, in := range inputs {
		perms = append(perms, catalog.Permission{
			Operation: catalog.Operation(in.Operation),
			Object:    catalog.Object(in.Object),
		})
	}
	return catalog.NewPermissionSet(perms...)
}

func roleResponse(role *registry.Role) map[string]any {
	perms := make([]string, 0, len(role.Permissions))
	for p := range role.Permissions {
		perms = append(perms, p.String())
	}
	sort.Strings(perms)

	return map[string]any{
		"id":              role.ID,
		"organization_id": role.OrganizationID,
		"profile":         role.Profile,
		"label":           role.Label,
		"value":           role.Value,
		"permissions":     perms,
		"created_at":      role.CreatedAt.Format(time.RFC3339),
	}
}
