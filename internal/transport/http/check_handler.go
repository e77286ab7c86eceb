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
	"net/http"

	"github.com/gatehouse/gatehouse/internal/catalog"
)

// CheckRequest asks whether a user may perform an operation on an object.
// UserID defaults to the authenticated caller. OrganizationID narrows the
// aggregation to roles from that organization; empty means all of them.
type CheckRequest struct {
	UserID         string `json:"user_id,omitempty"`
	Operation      string `json:"operation"`
	Object         string `json:"object"`
	OrganizationID string `json:"organization_id,omitempty"`
	Profile        string `json:"profile,omitempty"`
}

// CheckResponse carries the decision and nothing else. Denials are not
// explained to callers; the decision log holds the reason.
type CheckResponse struct {
	Allowed bool `json:"allowed"`
}

// Check evaluates a permission check. When Profile is set the request is an
// acting-as test instead: allowed reports whether the user's active profile
// equals it.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = GetActorID(r.Context())
	}

	if req.Profile != "" {
		respondJSON(w, http.StatusOK, CheckResponse{
			Allowed: h.evaluator.Is(r.Context(), userID, req.Profile),
		})
		return
	}

	if req.Operation == "" || req.Object == "" {
		respondError(w, http.StatusBadRequest, "operation and object are required")
		return
	}

	allowed := h.evaluator.Can(r.Context(), userID,
		catalog.Operation(req.Operation), catalog.Object(req.Object), req.OrganizationID)

	respondJSON(w, http.StatusOK, CheckResponse{Allowed: allowed})
}
