package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gatehouse/gatehouse/internal/authz"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/membership"
	"github.com/gatehouse/gatehouse/internal/org"
	"github.com/gatehouse/gatehouse/internal/profiles"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService   *identity.Service
	orgService        *org.Service
	registryService   *registry.Service
	membershipService *membership.Service
	switcher          *profiles.Switcher
	evaluator         *authz.Service
	auth              AuthConfig
}

// AuthConfig holds bearer-token verification settings
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	orgService *org.Service,
	registryService *registry.Service,
	membershipService *membership.Service,
	switcher *profiles.Switcher,
	evaluator *authz.Service,
	auth AuthConfig,
) *Handler {
	return &Handler{
		identityService:   identityService,
		orgService:        orgService,
		registryService:   registryService,
		membershipService: membershipService,
		switcher:          switcher,
		evaluator:         evaluator,
		auth:              auth,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check and metrics
	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		// Permission checks
		r.Post("/check", h.Check)

		// User directory and per-user state
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.ProvisionUser)
			r.Get("/", h.ListUsers)

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Get("/profile", h.GetActiveProfile)
				r.Put("/profile", h.SwitchProfile)
				r.Get("/profiles", h.ListProfiles)
				r.Get("/organizations", h.ListUserOrganizations)
				r.Get("/roles", h.ListUserRoles)
				r.Post("/roles", h.AssignRole)
				r.Delete("/roles/{roleID}", h.RevokeRole)
			})
		})

		// Organization directory
		r.Route("/organizations", func(r chi.Router) {
			r.Post("/", h.CreateOrganization)
			r.Get("/", h.ListOrganizations)

			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", h.GetOrganization)
				r.Delete("/", h.DeleteOrganization)
				r.Post("/roles", h.CreateRole)
				r.Get("/roles", h.ListRoles)
			})
		})

		// Role registry: roles are addressed by ID once created
		r.Route("/roles/{roleID}", func(r chi.Router) {
			r.Get("/", h.GetRole)
			r.Put("/permissions", h.UpdateRolePermissions)
			r.Delete("/", h.DeleteRole)
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "gatehouse",
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
