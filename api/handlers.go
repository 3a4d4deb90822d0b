package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/signet/internal/util"
	"github.com/jmcleod/signet/request"
	"github.com/jmcleod/signet/storage"
)

// Register creates a standard user account and returns its bearer token.
// Admin accounts are provisioned at server startup, never over the wire.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(util.Normalize(req.Email)))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if role := strings.ToUpper(strings.TrimSpace(req.Role)); role != "" && role != string(request.RoleUser) {
		writeError(w, http.StatusForbidden, "only standard users can self-register")
		return
	}

	user, err := a.users.Save(r.Context(), request.User{Email: email, Role: request.RoleUser})
	if err != nil {
		mapError(w, err)
		return
	}

	token, err := a.tokens.Issue(user.Email)
	if err != nil {
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditRegister, r, user.Email)
	writeJSON(w, http.StatusCreated, RegisterResponse{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		Token:  token,
	})
}

// Bootstrap provisions a principal with the given role and returns a bearer
// token for it. Called by server startup to seed the initial admin; not
// reachable over HTTP.
func (a *API) Bootstrap(ctx context.Context, email string, role request.Role) (string, error) {
	user, err := a.users.Save(ctx, request.User{Email: email, Role: role})
	if err != nil {
		// The principal may already exist from a previous run; a fresh
		// token against the existing account is still useful.
		existing, findErr := a.users.FindByEmail(ctx, email)
		if findErr != nil {
			return "", err
		}
		user = existing
	}
	return a.tokens.Issue(user.Email)
}

// CreateRequest submits a new certificate request on behalf of the
// authenticated principal.
func (a *API) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.CommonName) == "" {
		writeError(w, http.StatusBadRequest, "common_name is required")
		return
	}

	principal := principalFromContext(r.Context())
	created, err := a.engine.Create(r.Context(), request.CreateInput{
		CertificateType: req.CertificateType,
		IssuerSerial:    req.IssuerSerial,
		Duration:        req.Duration,
		CommonName:      req.CommonName,
	}, principal)
	if err != nil {
		if errors.Is(err, request.ErrIssuanceFailed) {
			a.audit.logEvent(AuditIssuanceFailed, r, principal,
				slog.Int64("request_id", created.ID))
		}
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditRequestCreated, r, principal,
		slog.Int64("request_id", created.ID),
		slog.String("type", string(created.Type)),
		slog.String("status", string(created.Status)))
	writeJSON(w, http.StatusCreated, viewOf(created))
}

// ListAllRequests returns every request. Admin only.
func (a *API) ListAllRequests(w http.ResponseWriter, r *http.Request) {
	user, err := a.principalUser(r)
	if err != nil {
		mapError(w, err)
		return
	}
	if !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	reqs, err := a.engine.ListAll(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(reqs))
}

// ListMyRequests returns the requests submitted by the authenticated
// principal.
func (a *API) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	user, err := a.principalUser(r)
	if err != nil {
		mapError(w, err)
		return
	}

	reqs, err := a.engine.ListForRequester(r.Context(), user.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(reqs))
}

// ListPendingRequests returns the requests awaiting a decision by the
// authenticated principal as issuer owner.
func (a *API) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	user, err := a.principalUser(r)
	if err != nil {
		mapError(w, err)
		return
	}

	reqs, err := a.engine.ListPendingForIssuer(r.Context(), user.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(reqs))
}

// AcceptRequest accepts a pending request and triggers issuance.
func (a *API) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "requestID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	principal := principalFromContext(r.Context())
	accepted, err := a.engine.Accept(r.Context(), requestID, principal)
	if err != nil {
		if errors.Is(err, request.ErrIssuanceFailed) {
			a.audit.logEvent(AuditIssuanceFailed, r, principal,
				slog.Int64("request_id", requestID))
		}
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditRequestAccepted, r, principal,
		slog.Int64("request_id", accepted.ID))
	writeJSON(w, http.StatusOK, viewOf(accepted))
}

// RejectRequest rejects a pending request with a reason.
func (a *API) RejectRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "requestID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body RejectRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Reason) == "" {
		writeError(w, http.StatusBadRequest, "a rejection reason is required")
		return
	}

	principal := principalFromContext(r.Context())
	rejected, err := a.engine.Reject(r.Context(), requestID, body.Reason, principal)
	if err != nil {
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditRequestRejected, r, principal,
		slog.Int64("request_id", rejected.ID),
		slog.String("reason", body.Reason))
	writeJSON(w, http.StatusOK, viewOf(rejected))
}

// GetCertificate returns an issued certificate by serial number. The
// private key is never included in the response.
func (a *API) GetCertificate(w http.ResponseWriter, r *http.Request) {
	serial, err := pathID(r, "serial")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cert, err := a.certs.FindBySerial(r.Context(), serial)
	if err != nil {
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditCertAccessed, r, principalFromContext(r.Context()),
		slog.Int64("serial", serial))
	writeJSON(w, http.StatusOK, certViewOf(cert))
}

func (a *API) principalUser(r *http.Request) (request.User, error) {
	email := principalFromContext(r.Context())
	user, err := a.users.FindByEmail(r.Context(), email)
	if errors.Is(err, storage.ErrNotFound) {
		return request.User{}, fmt.Errorf("%w: %s", request.ErrPrincipalNotFound, email)
	}
	return user, err
}

func pathID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", param, raw)
	}
	return id, nil
}
