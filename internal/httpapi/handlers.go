package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"moldash.org/internal/auth"
	"moldash.org/internal/jobs"
	"moldash.org/internal/obs"
	"moldash.org/internal/tenant"
)

// ReadyProbe — readiness check (database ping when a pool is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API — HTTP layer over the session service and the job service.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	sessions   *auth.Service
	jobs       *jobs.Service
	log        *zap.Logger
}

func New(rp ReadyProbe, version string, sessions *auth.Service, jobSvc *jobs.Service, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sessions:   sessions,
		jobs:       jobSvc,
		log:        log,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// sessions
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/revoke", a.handleRevokeAll)

	// docking jobs
	a.mux.HandleFunc("/v1/jobs", a.handleJobs)
	a.mux.HandleFunc("/v1/jobs/", a.handleJobByID)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the http.Handler for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "moldash-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "moldash-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, code int, msg, errCode string) {
	writeJSON(w, code, errorBody{Error: msg, Code: errCode})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
}

// writeDomainError maps the error taxonomy to HTTP. All access token
// failures collapse to one 401 so a caller cannot distinguish a bad
// signature from an expired or malformed token.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials", "invalid_credentials")
	case errors.Is(err, auth.ErrOrganizationSuspended):
		writeError(w, http.StatusForbidden, "organization is suspended", "organization_suspended")
	case errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrExpired),
		errors.Is(err, auth.ErrMalformedToken),
		errors.Is(err, auth.ErrUnknownToken),
		errors.Is(err, auth.ErrReuseDetected):
		writeError(w, http.StatusUnauthorized, "invalid token", "invalid_token")
	case errors.Is(err, auth.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied", "permission_denied")
	case errors.Is(err, tenant.ErrCrossTenantViolation):
		writeError(w, http.StatusForbidden, "organization scope violation", "cross_tenant_violation")
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "not_found")
	case errors.Is(err, jobs.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input", "invalid_input")
	case errors.Is(err, jobs.ErrNotCancelable):
		writeError(w, http.StatusConflict, "job is not cancelable", "not_cancelable")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "conflict")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}
