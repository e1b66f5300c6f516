// Package session introspects the auth provider's session credential. The
// credential is a signed JWT carried in a cookie; verification is local, so
// the only backend dependency is the shared verification key loaded at start.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	id "storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
)

// CookieName is the auth provider's session cookie.
const CookieName = "sg_session"

// Session is the introspected credential. TenantID is zero for users who
// have not finished onboarding into a tenant.
type Session struct {
	UserID    id.UserID
	SessionID id.SessionID
	TenantID  id.TenantID
}

// HasTenant reports whether the session is attached to a tenant.
func (s *Session) HasTenant() bool {
	return s != nil && !s.TenantID.IsNil()
}

// Introspector validates a session credential. Implementations must return
// CodeUnauthorized for credentials that fail validation and CodeUnavailable
// only for infrastructure failures, so callers can fail closed correctly.
type Introspector interface {
	Introspect(ctx context.Context, credential string) (*Session, error)
}

// FromRequest extracts the raw session credential from the request, if any.
func FromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// JWTIntrospector verifies HS256-signed session cookies.
type JWTIntrospector struct {
	key    []byte
	logger *slog.Logger
}

func NewJWTIntrospector(key string, logger *slog.Logger) *JWTIntrospector {
	return &JWTIntrospector{key: []byte(key), logger: logger}
}

type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	TenantID  string `json:"tid,omitempty"`
}

// Introspect parses and verifies the credential. Expiry is enforced by the
// jwt library; a malformed or expired cookie is unauthorized, never an
// infrastructure failure.
func (i *JWTIntrospector) Introspect(_ context.Context, credential string) (*Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid session credential")
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "session subject is not a user ID")
	}
	sess := &Session{UserID: userID}
	if claims.SessionID != "" {
		if sid, err := id.ParseSessionID(claims.SessionID); err == nil {
			sess.SessionID = sid
		}
	}
	if claims.TenantID != "" {
		tid, err := id.ParseTenantID(claims.TenantID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "session tenant claim is malformed")
		}
		sess.TenantID = tid
	}
	return sess, nil
}
