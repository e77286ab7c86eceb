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
	"time"

	"github.com/gatehouse/gatehouse/internal/observability/logger"
	"github.com/gatehouse/gatehouse/internal/org"
	"github.com/go-chi/chi/v5"
)

// CreateOrganizationRequest represents organization creation data. ID is
// optional; collaborators that manage their own identifiers pass it through.
type CreateOrganizationRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// CreateOrganization creates an organization
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orgService.Create(r.Context(), req.ID, req.Name, GetActorID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, org.ErrOrganizationAlreadyExists):
			respondError(w, http.StatusConflict, "organization already exists")
		default:
			slog.ErrorContext(r.Context(), "failed to create organization", logger.Error(err))
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, orgResponse(o))
}

// GetOrganization retrieves an organization by ID
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	o, err := h.orgService.Get(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "organization not found")
		return
	}
	respondJSON(w, http.StatusOK, orgResponse(o))
}

// ListOrganizations retrieves organizations with pagination
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := h.orgService.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}

	out := make([]map[string]any, 0, len(list))
	for _, o := range list {
		out = append(out, orgResponse(o))
	}
	respondJSON(w, http.StatusOK, map[string]any{"organizations": out})
}

// DeleteOrganization removes an organization that has no roles defined
func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	if err := h.orgService.Delete(r.Context(), orgID, GetActorID(r.Context())); err != nil {
		switch {
		case errors.Is(err, org.ErrOrganizationNotFound):
			respondError(w, http.StatusNotFound, "organization not found")
		case errors.Is(err, org.ErrOrganizationInUse):
			respondError(w, http.StatusConflict, "organization still has roles")
		default:
			slog.ErrorContext(r.Context(), "failed to delete organization",
				logger.Error(err),
				logger.OrganizationID(orgID),
			)
			respondError(w, http.StatusInternalServerError, "failed to delete organization")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "organization deleted"})
}

func orgResponse(o *org.Organization) map[string]any {
	return map[string]any{
		"id":         o.ID,
		"name":       o.Name,
		"created_at": o.CreatedAt.Format(time.RFC3339),
	}
}
