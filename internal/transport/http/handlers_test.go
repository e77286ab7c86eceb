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

package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/authz"
	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/membership"
	"github.com/gatehouse/gatehouse/internal/org"
	"github.com/gatehouse/gatehouse/internal/profiles"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/gatehouse/gatehouse/internal/store/memory"
	gatehousehttp "github.com/gatehouse/gatehouse/internal/transport/http"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "gatehouse-test"
)

type api struct {
	server *httptest.Server
	token  string
}

func newAPI(t *testing.T) *api {
	t.Helper()

	cat := catalog.MustBuiltin()
	store := memory.New()
	auditLogger := audit.NewSlogLogger()

	evaluator, err := authz.NewService(cat, store.Memberships(), store.Roles(), store.Users(), nil, 128, time.Minute)
	require.NoError(t, err)

	locks := membership.NewUserLocks()
	memberships := membership.NewService(store.Memberships(), store.Roles(), store.Users(), locks, evaluator, auditLogger)
	switcher := profiles.NewSwitcher(memberships, store.Users(), locks, evaluator, auditLogger)
	reg := registry.NewService(cat, store.Roles(), memberships, evaluator, auditLogger)
	orgs := org.NewService(store.Organizations(), store.Roles(), auditLogger)
	identities := identity.NewService(store.Users(), auditLogger)

	h := gatehousehttp.NewHandler(identities, orgs, reg, memberships, switcher, evaluator, gatehousehttp.AuthConfig{
		JWTSecret: testSecret,
		JWTIssuer: testIssuer,
	})
	router := gatehousehttp.NewRouter(h, gatehousehttp.NewRateLimiter(1000, 1000))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &api{server: server, token: mintToken(t, "admin-user")}
}

func mintToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testIssuer,
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (a *api) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	a := newAPI(t)

	resp, err := a.server.Client().Post(a.server.URL+"/api/v1/check", "application/json",
		bytes.NewBufferString(`{"operation":"read","object":"invoice"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Garbage token
	req, _ := http.NewRequest(http.MethodPost, a.server.URL+"/api/v1/check",
		bytes.NewBufferString(`{"operation":"read","object":"invoice"}`))
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp2, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestAPI_HealthIsPublic(t *testing.T) {
	a := newAPI(t)

	resp, err := a.server.Client().Get(a.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// Full lifecycle through the API: organization, role, user, assignment,
// profile switch, permission check.
func TestAPI_DecisionLifecycle(t *testing.T) {
	a := newAPI(t)

	resp, _ := a.do(t, http.MethodPost, "/api/v1/organizations", map[string]any{
		"id": "org-tom", "name": "Tom's Plumbing",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, role := a.do(t, http.MethodPost, "/api/v1/organizations/org-tom/roles", map[string]any{
		"profile": "client",
		"label":   "Billing",
		"value":   "billing",
		"permissions": []map[string]string{
			{"operation": "read", "object": "invoice"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	roleID := role["id"].(string)

	resp, user := a.do(t, http.MethodPost, "/api/v1/users", map[string]any{
		"email": "tomer@example.com", "display_name": "Tomer",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID := user["user_id"].(string)

	// Denied before any role or switch
	resp, decision := a.do(t, http.MethodPost, "/api/v1/check", map[string]any{
		"user_id": userID, "operation": "read", "object": "invoice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decision["allowed"])

	resp, _ = a.do(t, http.MethodPost, "/api/v1/users/"+userID+"/roles", map[string]any{
		"role_id": roleID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Assignment alone never activates the profile
	resp, active := a.do(t, http.MethodGet, "/api/v1/users/"+userID+"/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", active["active_profile"])

	resp, decision = a.do(t, http.MethodPost, "/api/v1/check", map[string]any{
		"user_id": userID, "operation": "read", "object": "invoice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decision["allowed"])

	resp, _ = a.do(t, http.MethodPut, "/api/v1/users/"+userID+"/profile", map[string]any{
		"profile": "client",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, decision = a.do(t, http.MethodPost, "/api/v1/check", map[string]any{
		"user_id": userID, "operation": "read", "object": "invoice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decision["allowed"])

	// Scoped to an organization that granted nothing
	resp, decision = a.do(t, http.MethodPost, "/api/v1/check", map[string]any{
		"user_id": userID, "operation": "read", "object": "invoice", "organization_id": "org-other",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decision["allowed"])

	// Acting-as test
	resp, decision = a.do(t, http.MethodPost, "/api/v1/check", map[string]any{
		"user_id": userID, "profile": "client",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decision["allowed"])
}

func TestAPI_SwitchToUnheldProfile(t *testing.T) {
	a := newAPI(t)

	resp, user := a.do(t, http.MethodPost, "/api/v1/users", map[string]any{
		"email": "idle@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID := user["user_id"].(string)

	resp, _ = a.do(t, http.MethodPut, "/api/v1/users/"+userID+"/profile", map[string]any{
		"profile": "client",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_RoleValidation(t *testing.T) {
	a := newAPI(t)

	resp, _ := a.do(t, http.MethodPost, "/api/v1/organizations", map[string]any{
		"id": "org-1", "name": "Org",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Client profile may not carry delete:customer
	resp, _ = a.do(t, http.MethodPost, "/api/v1/organizations/org-1/roles", map[string]any{
		"profile": "client",
		"label":   "Too Broad",
		"value":   "too-broad",
		"permissions": []map[string]string{
			{"operation": "delete", "object": "customer"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	create := func() (*http.Response, map[string]any) {
		return a.do(t, http.MethodPost, "/api/v1/organizations/org-1/roles", map[string]any{
			"profile": "client",
			"label":   "Billing",
			"value":   "billing",
			"permissions": []map[string]string{
				{"operation": "read", "object": "invoice"},
			},
		})
	}

	resp, _ = create()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = create()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_DeleteRoleInUse(t *testing.T) {
	a := newAPI(t)

	resp, _ := a.do(t, http.MethodPost, "/api/v1/organizations", map[string]any{
		"id": "org-1", "name": "Org",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, role := a.do(t, http.MethodPost, "/api/v1/organizations/org-1/roles", map[string]any{
		"profile": "employee",
		"label":   "Dispatcher",
		"value":   "dispatcher",
		"permissions": []map[string]string{
			{"operation": "edit", "object": "schedule"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	roleID := role["id"].(string)

	resp, user := a.do(t, http.MethodPost, "/api/v1/users", map[string]any{
		"email": "worker@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID := user["user_id"].(string)

	resp, _ = a.do(t, http.MethodPost, "/api/v1/users/"+userID+"/roles", map[string]any{
		"role_id": roleID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/api/v1/roles/"+roleID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/roles/%s?cascade=true", roleID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, roles := a.do(t, http.MethodGet, "/api/v1/users/"+userID+"/roles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, roles["roles"])
}
