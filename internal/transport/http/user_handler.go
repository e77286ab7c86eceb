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
	"strconv"
	"time"

	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/observability/logger"
	"github.com/gatehouse/gatehouse/internal/profiles"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/go-chi/chi/v5"
)

// ProvisionUserRequest represents user provisioning data
type ProvisionUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// ProvisionUser creates a user with no roles and no active profile
func (h *Handler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	var req ProvisionUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Provision(r.Context(), req.Email, req.DisplayName, GetActorID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, identity.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid email address")
		default:
			slog.ErrorContext(r.Context(), "failed to provision user",
				logger.Error(err),
				logger.Email(req.Email),
			)
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, userResponse(user))
}

// GetUser retrieves a user by ID
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, userResponse(user))
}

// ListUsers retrieves users with pagination
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, err := h.identityService.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": out})
}

// GetActiveProfile returns the user's active profile, empty when unset
func (h *Handler) GetActiveProfile(w http.ResponseWriter, r *http.Request) {
	active, err := h.switcher.ActiveProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"active_profile": active})
}

// SwitchProfileRequest carries the target profile
type SwitchProfileRequest struct {
	Profile string `json:"profile"`
}

// SwitchProfile sets the user's active profile
func (h *Handler) SwitchProfile(w http.ResponseWriter, r *http.Request) {
	var req SwitchProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Profile == "" {
		respondError(w, http.StatusBadRequest, "profile is required")
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.switcher.Switch(r.Context(), userID, req.Profile); err != nil {
		switch {
		case errors.Is(err, identity.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, profiles.ErrNoRoleInProfile):
			respondError(w, http.StatusConflict, "user holds no role under target profile")
		default:
			slog.ErrorContext(r.Context(), "failed to switch profile",
				logger.Error(err),
				logger.UserID(userID),
				logger.Profile(req.Profile),
			)
			respondError(w, http.StatusInternalServerError, "failed to switch profile")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"active_profile": req.Profile})
}

// ListProfiles returns the profiles the user can switch into
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.membershipService.ProfilesFor(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profiles": list})
}

// ListUserOrganizations returns the organizations the user holds roles in
func (h *Handler) ListUserOrganizations(w http.ResponseWriter, r *http.Request) {
	list, err := h.membershipService.OrganizationsFor(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"organizations": list})
}

// ListUserRoles returns the user's roles, optionally narrowed by the
// organization_id query parameter
func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.membershipService.RolesFor(r.Context(), chi.URLParam(r, "userID"), r.URL.Query().Get("organization_id"))
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

// AssignRoleRequest carries the role to grant
type AssignRoleRequest struct {
	RoleID string `json:"role_id"`
}

// AssignRole grants a role to the user. Idempotent.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "role_id is required")
		return
	}

	userID := chi.URLParam(r, "userID")
	err := h.membershipService.AssignRole(r.Context(), userID, req.RoleID, GetActorID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, registry.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		default:
			slog.ErrorContext(r.Context(), "failed to assign role",
				logger.Error(err),
				logger.UserID(userID),
				logger.RoleID(req.RoleID),
			)
			respondError(w, http.StatusInternalServerError, "failed to assign role")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "role assigned"})
}

// RevokeRole removes a role from the user. Idempotent.
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	roleID := chi.URLParam(r, "roleID")

	if err := h.membershipService.RevokeRole(r.Context(), userID, roleID, GetActorID(r.Context())); err != nil {
		slog.ErrorContext(r.Context(), "failed to revoke role",
			logger.Error(err),
			logger.UserID(userID),
			logger.RoleID(roleID),
		)
		respondError(w, http.StatusInternalServerError, "failed to revoke role")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "role revoked"})
}

func userResponse(u *identity.User) map[string]any {
	return map[string]any{
		"user_id":        u.ID,
		"email":          u.Email,
		"display_name":   u.DisplayName,
		"active_profile": u.ActiveProfile,
		"created_at":     u.CreatedAt.Format(time.RFC3339),
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
