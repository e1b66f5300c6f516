package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storegate/internal/audit"
	"storegate/internal/captoken/models"
	"storegate/internal/captoken/service"
	"storegate/internal/gateway"
	"storegate/internal/ratelimit"
	id "storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
	httpErrors "storegate/pkg/http-errors"
)

// Service is the token lifecycle surface the handler needs.
type Service interface {
	Issue(ctx context.Context, req service.IssueRequest) (models.Plaintext, *models.Record, error)
	Validate(ctx context.Context, plaintext models.Plaintext) (*service.Validation, error)
	Consume(ctx context.Context, plaintext models.Plaintext, required models.Scope) (*service.Validation, error)
	Revoke(ctx context.Context, tenantID id.TenantID, tokenID id.TokenID) error
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Record, error)
}

// Lockout guards the public token endpoints against guessing.
type Lockout interface {
	Check(ctx context.Context, key string) ratelimit.Result
	RecordFailure(ctx context.Context, key string)
	Clear(ctx context.Context, key string)
}

// Handler is the thin HTTP layer over the token service.
type Handler struct {
	svc     Service
	lockout Lockout
	audit   *audit.Publisher
	logger  *slog.Logger
}

func New(svc Service, lockout Lockout, auditPub *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, lockout: lockout, audit: auditPub, logger: logger}
}

// RegisterPublic mounts the client-facing magic-link endpoints. These are
// always-public routes; the token itself is the credential.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/c/{token}", h.handleStatus)
	r.Post("/c/{token}/act", h.handleAct)
}

// RegisterOperator mounts the session-gated token management API.
func (h *Handler) RegisterOperator(r chi.Router) {
	r.Post("/api/tokens", h.handleIssue)
	r.Get("/api/tokens", h.handleList)
	r.Delete("/api/tokens/{id}", h.handleRevoke)
}

// handleStatus reports token validity without consuming a use; a page
// displaying link status must never burn the budget.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	if res := h.lockout.Check(r.Context(), key); !res.Allowed {
		writeLocked(w, res.RetryAfter)
		return
	}

	plaintext := models.Plaintext(chi.URLParam(r, "token"))
	v, err := h.svc.Validate(r.Context(), plaintext)
	if err != nil {
		h.failToken(w, r, key, err)
		return
	}
	h.lockout.Clear(r.Context(), key)

	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "valid",
		TenantSlug:    v.Tenant.Slug,
		SubjectName:   v.Subject.Name,
		Scopes:        v.Record.Scopes,
		ExpiresAt:     v.Record.ExpiresAt,
		UsesRemaining: v.Record.UsesRemaining(),
	})
}

// handleAct performs a scope-gated action, spending exactly one use on
// success.
func (h *Handler) handleAct(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	if res := h.lockout.Check(r.Context(), key); !res.Allowed {
		writeLocked(w, res.RetryAfter)
		return
	}

	var req actRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(httpErrors.CodeInvalidInput), "malformed request body")
		return
	}
	scopes := models.FilterScopes([]string{req.Action})
	if len(scopes) == 0 {
		writeError(w, http.StatusBadRequest, string(httpErrors.CodeInvalidInput), "unknown action")
		return
	}

	plaintext := models.Plaintext(chi.URLParam(r, "token"))
	v, err := h.svc.Consume(r.Context(), plaintext, scopes[0])
	if err != nil {
		h.failToken(w, r, key, err)
		return
	}
	h.lockout.Clear(r.Context(), key)

	if h.audit != nil {
		h.audit.Emit(r.Context(), "capability_token_action",
			"token_id", v.Record.ID.String(),
			"tenant_id", v.Record.TenantID.String(),
			"action", req.Action,
			"device", audit.DeviceSummary(r.UserAgent()),
		)
	}
	writeJSON(w, http.StatusOK, actResponse{
		Status:        "ok",
		Action:        req.Action,
		TenantSlug:    v.Tenant.Slug,
		UsesRemaining: v.Record.UsesRemaining(),
	})
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	sess, ok := gateway.SessionFrom(r.Context())
	if !ok || !sess.HasTenant() {
		writeError(w, http.StatusUnauthorized, string(httpErrors.CodeUnauthorized), "operator session required")
		return
	}

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(httpErrors.CodeInvalidInput), "malformed request body")
		return
	}
	subjectID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(httpErrors.CodeInvalidInput), "invalid subject ID")
		return
	}
	var linked *uuid.UUID
	if req.LinkedResourceID != "" {
		parsed, err := uuid.Parse(req.LinkedResourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(httpErrors.CodeInvalidInput), "invalid linked resource ID")
			return
		}
		linked = &parsed
	}

	plaintext, rec, err := h.svc.Issue(r.Context(), service.IssueRequest{
		TenantID:         sess.TenantID,
		SubjectID:        subjectID,
		TTLDays:          req.TTLDays,
		MaxUses:          req.MaxUses,
		Scopes:           req.Scopes,
		LinkedResourceID: linked,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The only place plaintext ever leaves the process.
	writeJSON(w, http.StatusCreated, issueResponse{
		Token:  plaintext.Reveal(),
		Link:   "/c/" + plaintext.Reveal(),
		Record: rec,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := gateway.SessionFrom(r.Context())
	if !ok || !sess.HasTenant() {
		writeError(w, http.StatusUnauthorized, string(httpErrors.CodeUnauthorized), "operator session required")
		return
	}
	recs, err := h.svc.List(r.Context(), sess.TenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Tokens: recs})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	sess, ok := gateway.SessionFrom(r.Context())
	if !ok || !sess.HasTenant() {
		writeError(w, http.StatusUnauthorized, string(httpErrors.CodeUnauthorized), "operator session required")
		return
	}
	tokenID, err := id.ParseTokenID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(httpErrors.CodeInvalidInput), "invalid token ID")
		return
	}
	if err := h.svc.Revoke(r.Context(), sess.TenantID, tokenID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// failToken writes the uniform 403 for token failures and charges the probe
// counter. Two exceptions: backend failures surface as 503 without a penalty,
// and a scope refusal on a valid token is not a probe, so a holder retrying
// a wrong action cannot lock themselves out.
func (h *Handler) failToken(w http.ResponseWriter, r *http.Request, key string, err error) {
	code, status := httpErrors.FromDomain(err)
	if status == http.StatusForbidden && !dErrors.HasCode(err, dErrors.CodeForbidden) {
		h.lockout.RecordFailure(r.Context(), key)
	}
	if status >= 500 || dErrors.HasCode(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(r.Context(), "token endpoint backend failure", "error", err)
		writeError(w, http.StatusServiceUnavailable, string(httpErrors.CodeUnavailable), "temporarily unavailable")
		return
	}
	writeError(w, status, string(code), "")
}

// clientKey identifies the probing client. Remote IP without port; good
// enough for a guard whose real security lives in the token entropy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusResponse struct {
	Status        string         `json:"status"`
	TenantSlug    string         `json:"tenant_slug"`
	SubjectName   string         `json:"subject_name,omitempty"`
	Scopes        []models.Scope `json:"scopes"`
	ExpiresAt     time.Time      `json:"expires_at"`
	UsesRemaining *int           `json:"uses_remaining,omitempty"`
}

type actRequest struct {
	Action     string `json:"action"`
	ResourceID string `json:"resource_id,omitempty"`
}

type actResponse struct {
	Status        string `json:"status"`
	Action        string `json:"action"`
	TenantSlug    string `json:"tenant_slug"`
	UsesRemaining *int   `json:"uses_remaining,omitempty"`
}

type issueRequest struct {
	SubjectID        string   `json:"subject_id"`
	TTLDays          int      `json:"ttl_days,omitempty"`
	MaxUses          *int     `json:"max_uses,omitempty"`
	Scopes           []string `json:"scopes"`
	LinkedResourceID string   `json:"linked_resource_id,omitempty"`
}

type issueResponse struct {
	Token  string         `json:"token"`
	Link   string         `json:"link"`
	Record *models.Record `json:"record"`
}

type listResponse struct {
	Tokens []*models.Record `json:"tokens"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": code}
	if description != "" {
		resp["error_description"] = description
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeDomainError(w http.ResponseWriter, err error) {
	code, status := httpErrors.FromDomain(err)
	writeError(w, status, string(code), "")
}

func writeLocked(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many failed attempts")
}
