package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"storegate/internal/captoken/handler/mocks"
	"storegate/internal/captoken/models"
	"storegate/internal/captoken/service"
	"storegate/internal/gateway"
	"storegate/internal/ratelimit"
	"storegate/internal/session"
	tenantmodels "storegate/internal/tenant/models"
	id "storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	ctrl        *gomock.Controller
	mockService *mocks.MockService
	mockLockout *mocks.MockLockout
	tenantID    id.TenantID
	sess        *session.Session
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	s.mockLockout = mocks.NewMockLockout(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.mockService, s.mockLockout, nil, logger)

	s.tenantID = id.TenantID(uuid.New())
	s.sess = &session.Session{
		UserID:   id.UserID(uuid.New()),
		TenantID: s.tenantID,
	}

	r := chi.NewRouter()
	h.RegisterPublic(r)

	// Operator routes behind a stand-in for the gateway's session injection.
	r.Group(func(gr chi.Router) {
		gr.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if req.Header.Get("X-Test-Session") != "" {
					req = req.WithContext(gateway.WithSession(req.Context(), s.sess))
				}
				next.ServeHTTP(w, req)
			})
		})
		h.RegisterOperator(gr)
	})

	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) validation() *service.Validation {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &service.Validation{
		Record: &models.Record{
			ID:        id.TokenID(uuid.New()),
			TenantID:  s.tenantID,
			TokenHash: "hash",
			IssuedAt:  now,
			ExpiresAt: now.AddDate(0, 0, 30),
			Scopes:    []models.Scope{models.ScopeView, models.ScopePay},
		},
		Tenant:  &tenantmodels.Tenant{ID: s.tenantID, Slug: "acme", Name: "Acme"},
		Subject: &models.Subject{Name: "Pat Client"},
	}
}

func (s *HandlerSuite) TestStatus_Valid() {
	s.mockLockout.EXPECT().Check(gomock.Any(), gomock.Any()).Return(ratelimit.Result{Allowed: true})
	s.mockService.EXPECT().Validate(gomock.Any(), models.Plaintext("tok123")).Return(s.validation(), nil)
	s.mockLockout.EXPECT().Clear(gomock.Any(), gomock.Any())

	req := httptest.NewRequest(http.MethodGet, "/c/tok123", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusOK, rec.Code)
	var body map[string]any
	assert.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(s.T(), "valid", body["status"])
	assert.Equal(s.T(), "acme", body["tenant_slug"])
}

func (s *HandlerSuite) TestStatus_InvalidTokenReasons() {
	cases := map[dErrors.Code]string{
		dErrors.CodeTokenNotFound:  "not_found",
		dErrors.CodeTokenRevoked:   "revoked",
		dErrors.CodeTokenExpired:   "expired",
		dErrors.CodeTokenExhausted: "exhausted",
	}
	for domainCode, reason := range cases {
		s.mockLockout.EXPECT().Check(gomock.Any(), gomock.Any()).Return(ratelimit.Result{Allowed: true})
		s.mockService.EXPECT().Validate(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(domainCode, "nope"))
		s.mockLockout.EXPECT().RecordFailure(gomock.Any(), gomock.Any())

		req := httptest.NewRequest(http.MethodGet, "/c/bad", nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		assert.Equal(s.T(), http.StatusForbidden, rec.Code,
			"all token failures must be a uniform 403")
		var body map[string]string
		assert.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(s.T(), reason, body["error"])
	}
}

func (s *HandlerSuite) TestAct_ScopeRefusalDoesNotChargeLockout() {
	s.mockLockout.EXPECT().Check(gomock.Any(), gomock.Any()).Return(ratelimit.Result{Allowed: true})
	s.mockService.EXPECT().Consume(gomock.Any(), models.Plaintext("tok123"), models.ScopePay).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "scope not granted"))
	// No RecordFailure expectation: the holder presented a real token, a
	// wrong action is not a hash-guessing probe.

	body := bytes.NewReader([]byte(`{"action":"pay"}`))
	req := httptest.NewRequest(http.MethodPost, "/c/tok123/act", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusForbidden, rec.Code)
	var respBody map[string]string
	assert.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&respBody))
	assert.Equal(s.T(), "forbidden", respBody["error"])
}

func (s *HandlerSuite) TestStatus_BackendFailureIs503WithoutPenalty() {
	s.mockLockout.EXPECT().Check(gomock.Any(), gomock.Any()).Return(ratelimit.Result{Allowed: true})
	s.mockService.EXPECT().Validate(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "db down"))
	// No RecordFailure expectation: an infrastructure failure is not a probe.

	req := httptest.NewRequest(http.MethodGet, "/c/tok", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlerSuite) TestStatus_LockedOut() {
	s.mockLockout.EXPECT().Check(gomock.Any(), gomock.Any()).
		Return(ratelimit.Result{Allowed: false, RetryAfter: 90 * time.Second})

	req := httptest.NewRequest(http.MethodGet, "/c/tok", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusTooManyRequests, rec.Code)
	assert.Equal(s.T(), "90", rec.Header().Get("Retry-After"))
}

func (s *HandlerSuite) TestAct_ConsumesUse() {
	s.mockLockout.EXPECT().Check(gomock.Any(), gomock.Any()).Return(ratelimit.Result{Allowed: true})
	v := s.validation()
	v.Record.UseCount = 1
	s.mockService.EXPECT().Consume(gomock.Any(), models.Plaintext("tok123"), models.ScopePay).Return(v, nil)
	s.mockLockout.EXPECT().Clear(gomock.Any(), gomock.Any())

	body := bytes.NewReader([]byte(`{"action":"pay"}`))
	req := httptest.NewRequest(http.MethodPost, "/c/tok123/act", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestAct_UnknownAction() {
	s.mockLockout.EXPECT().Check(gomock.Any(), gomock.Any()).Return(ratelimit.Result{Allowed: true})

	body := bytes.NewReader([]byte(`{"action":"launch-missiles"}`))
	req := httptest.NewRequest(http.MethodPost, "/c/tok123/act", body)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestAct_InvalidJSON() {
	s.mockLockout.EXPECT().Check(gomock.Any(), gomock.Any()).Return(ratelimit.Result{Allowed: true})

	req := httptest.NewRequest(http.MethodPost, "/c/tok123/act",
		bytes.NewReader([]byte("not valid json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestIssue_RequiresSession() {
	req := httptest.NewRequest(http.MethodPost, "/api/tokens",
		bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestIssue_Created() {
	subjectID := uuid.New()
	v := s.validation()
	s.mockService.EXPECT().Issue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req service.IssueRequest) (models.Plaintext, *models.Record, error) {
			assert.Equal(s.T(), s.tenantID, req.TenantID, "tenant must come from the session")
			assert.Equal(s.T(), subjectID.String(), req.SubjectID.String())
			return models.Plaintext("secret-tok"), v.Record, nil
		})

	payload, _ := json.Marshal(map[string]any{
		"subject_id": subjectID.String(),
		"scopes":     []string{"view"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/tokens", bytes.NewReader(payload))
	req.Header.Set("X-Test-Session", "1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusCreated, rec.Code)
	var body map[string]any
	assert.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(s.T(), "secret-tok", body["token"])
	assert.Equal(s.T(), "/c/secret-tok", body["link"])
}

func (s *HandlerSuite) TestList() {
	s.mockService.EXPECT().List(gomock.Any(), s.tenantID).Return([]*models.Record{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tokens", nil)
	req.Header.Set("X-Test-Session", "1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestRevoke() {
	tokenID := uuid.New()
	s.mockService.EXPECT().Revoke(gomock.Any(), s.tenantID, id.TokenID(tokenID)).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/tokens/"+tokenID.String(), nil)
	req.Header.Set("X-Test-Session", "1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestRevoke_InvalidID() {
	req := httptest.NewRequest(http.MethodDelete, "/api/tokens/not-a-uuid", nil)
	req.Header.Set("X-Test-Session", "1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}
