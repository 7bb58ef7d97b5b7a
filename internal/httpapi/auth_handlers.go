package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"moldash.org/internal/audit"
	"moldash.org/internal/auth"
	"moldash.org/internal/obs"
)

type loginRequest struct {
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	Password       string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	TokenPair auth.TokenPair `json:"tokens"`
	Subject   string         `json:"subject"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "bad_request")
		return
	}

	fingerprint := clientFingerprint(r)
	pair, user, err := a.sessions.Login(r.Context(), strings.TrimSpace(req.OrganizationID), req.Email, req.Password, fingerprint)
	if err != nil {
		obs.CountLogin("failure")
		audit.Event(r.Context(), a.log, "login_failed", zap.String("organization_id", req.OrganizationID))
		writeDomainError(w, err)
		return
	}

	obs.CountLogin("success")
	audit.Event(r.Context(), a.log, "login",
		zap.String("subject", user.ID),
		zap.String("organization_id", user.OrganizationID))
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, Subject: user.ID})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "malformed request body", "bad_request")
		return
	}

	pair, user, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrReuseDetected) {
			obs.CountReuseDetected()
			obs.CountRotation("reuse_detected")
		} else {
			obs.CountRotation("failure")
		}
		writeDomainError(w, err)
		return
	}

	obs.CountRotation("success")
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, Subject: user.ID})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "malformed request body", "bad_request")
		return
	}

	if err := a.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// clientFingerprint is advisory metadata recorded on the refresh token
// family. Never used as a security check.
func clientFingerprint(r *http.Request) string {
	ua := r.Header.Get("User-Agent")
	if len(ua) > 120 {
		ua = ua[:120]
	}
	return ua
}

type revokeRequest struct {
	Subject string `json:"subject"`
}

// handleRevokeAll terminates every live session of one subject. Requires
// the token.revoke scope.
func (a *API) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := a.requireScope(w, r, auth.ScopeTokenRevoke); !ok {
		return
	}
	var req revokeRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Subject) == "" {
		writeError(w, http.StatusBadRequest, "malformed request body", "bad_request")
		return
	}

	revoked, err := a.sessions.RevokeAllForSubject(r.Context(), req.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	audit.Event(r.Context(), a.log, "sessions_revoked",
		zap.String("target_subject", req.Subject),
		zap.Int64("revoked", revoked))
	writeJSON(w, http.StatusOK, map[string]any{"revoked": revoked})
}
