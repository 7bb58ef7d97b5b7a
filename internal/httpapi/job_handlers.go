package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"moldash.org/internal/audit"
	"moldash.org/internal/auth"
	"moldash.org/internal/tenant"
)

type submitJobRequest struct {
	OrganizationID string `json:"organization_id,omitempty"`
	Name           string `json:"name"`
	Engine         string `json:"engine"`
}

func (a *API) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitJob(w, r)
	case http.MethodGet:
		a.listJobs(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (a *API) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		a.getJob(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		a.cancelJob(w, r, id)
	case action == "":
		methodNotAllowed(w, http.MethodGet)
	case action == "cancel":
		methodNotAllowed(w, http.MethodPost)
	default:
		http.NotFound(w, r)
	}
}

func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.requireScope(w, r, auth.ScopeJobCreate)
	if !ok {
		return
	}
	var req submitJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "bad_request")
		return
	}

	// A job belongs to exactly one organization, so a root caller must
	// name the target explicitly.
	scope, err := tenant.Bind(claims, strings.TrimSpace(req.OrganizationID), false)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	job, err := a.jobs.Submit(r.Context(), scope, req.Name, req.Engine)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	audit.Event(r.Context(), a.log, "job_submitted",
		zap.String("job_id", job.ID),
		zap.String("organization_id", job.OrganizationID),
		zap.String("engine", job.Engine))
	writeJSON(w, http.StatusCreated, job)
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.requireScope(w, r, auth.ScopeJobRead)
	if !ok {
		return
	}
	scope, err := tenant.Bind(claims, strings.TrimSpace(r.URL.Query().Get("organization_id")), true)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	list, err := a.jobs.List(r.Context(), scope)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := a.requireScope(w, r, auth.ScopeJobRead)
	if !ok {
		return
	}
	scope, err := tenant.Bind(claims, strings.TrimSpace(r.URL.Query().Get("organization_id")), true)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	job, err := a.jobs.Get(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := a.requireScope(w, r, auth.ScopeJobCancel)
	if !ok {
		return
	}
	scope, err := tenant.Bind(claims, strings.TrimSpace(r.URL.Query().Get("organization_id")), true)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	job, err := a.jobs.Cancel(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	audit.Event(r.Context(), a.log, "job_canceled",
		zap.String("job_id", job.ID),
		zap.String("organization_id", job.OrganizationID))
	writeJSON(w, http.StatusOK, job)
}
