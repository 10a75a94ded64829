package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Roles a signed-in user can hold. Every account is exactly one of these.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// CookieName is the cookie carrying the signed session token.
const CookieName = "portal_session"

type contextKey string

const (
	SessionIDKey contextKey = "session_id"
	UserIDKey    contextKey = "user_id"
	UserRoleKey  contextKey = "user_role"
)

// Claims is the JWT payload for a browser session.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	Role      string `json:"role"`
}

// Manager issues and verifies session cookies. Tokens are HS256-signed;
// transient per-session state (OTP codes, staged onboarding data) lives in
// the Store keyed by the session id, so clearing the store entry is enough to
// invalidate a session's server-side state.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	store  Store
}

func NewManager(secret []byte, ttl time.Duration, secure bool, store Store) *Manager {
	return &Manager{secret: secret, ttl: ttl, secure: secure, store: store}
}

// Store exposes the backing state store for per-session values.
func (m *Manager) Store() Store { return m.store }

// Issue creates a new session for the given user and sets the cookie on the
// response. It returns the new session id.
func (m *Manager) Issue(c echo.Context, userID, role string) (string, error) {
	sid := uuid.New().String()
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		SessionID: sid,
		UserID:    userID,
		Role:      role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sid, nil
}

// IssueAnonymous creates a session that is not yet bound to a user. The
// signup and OTP flows need somewhere to stage state before an account exists.
func (m *Manager) IssueAnonymous(c echo.Context) (string, error) {
	return m.Issue(c, "", "")
}

// Clear expires the session cookie and drops all server-side state for the
// session.
func (m *Manager) Clear(c echo.Context) error {
	var sid string
	if claims, err := m.parse(c); err == nil {
		sid = claims.SessionID
	}

	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if sid != "" {
		return m.store.DeletePrefix(c.Request().Context(), sid+":")
	}
	return nil
}

func (m *Manager) parse(c echo.Context) (*Claims, error) {
	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, fmt.Errorf("no session cookie")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

// Middleware parses the session cookie when present and places the session id,
// user id and role on the request context. Requests without a valid session
// pass through unauthenticated; access control is enforced by RequireAuth and
// RequireRole on the routes that need it.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := m.parse(c)
			if err != nil {
				return next(c)
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAuth rejects requests that do not carry a session bound to a user.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if UserIDFromContext(c.Request().Context()) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// RequireRole rejects requests whose session role is not one of the given
// roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			have := RoleFromContext(c.Request().Context())
			if UserIDFromContext(c.Request().Context()) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, r := range roles {
				if have == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// SessionIDFromContext returns the session id, or "" when unauthenticated.
func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(SessionIDKey).(string)
	return sid
}

// UserIDFromContext returns the signed-in user's id, or "" when the session
// is anonymous or missing.
func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// RoleFromContext returns the signed-in user's role, or "".
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}
