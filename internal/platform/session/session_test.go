package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager() *Manager {
	return NewManager(testSecret, time.Hour, false, NewMemoryStore())
}

func issueCookie(t *testing.T, m *Manager, userID, role string) (*http.Cookie, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	sid, err := m.Issue(c, userID, role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cookies := rec.Result().Cookies()
	for _, ck := range cookies {
		if ck.Name == CookieName {
			return ck, sid
		}
	}
	t.Fatal("session cookie not set")
	return nil, ""
}

func TestManager_IssueAndMiddleware(t *testing.T) {
	m := newTestManager()
	cookie, sid := issueCookie(t, m, "user-1", RolePatient)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotSID, gotUID, gotRole string
	h := m.Middleware()(func(c echo.Context) error {
		ctx := c.Request().Context()
		gotSID = SessionIDFromContext(ctx)
		gotUID = UserIDFromContext(ctx)
		gotRole = RoleFromContext(ctx)
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}

	if gotSID != sid {
		t.Errorf("session id = %q, want %q", gotSID, sid)
	}
	if gotUID != "user-1" || gotRole != RolePatient {
		t.Errorf("identity = (%q, %q), want (user-1, patient)", gotUID, gotRole)
	}
}

func TestManager_Middleware_InvalidToken(t *testing.T) {
	m := newTestManager()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := m.Middleware()(func(c echo.Context) error {
		if UserIDFromContext(c.Request().Context()) != "" {
			t.Error("expected anonymous context for invalid token")
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
}

func TestManager_TamperedTokenRejected(t *testing.T) {
	m := newTestManager()
	other := NewManager([]byte("ffffffffffffffffffffffffffffffff"), time.Hour, false, NewMemoryStore())
	cookie, _ := issueCookie(t, other, "user-1", RoleDoctor)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := m.Middleware()(func(c echo.Context) error {
		if UserIDFromContext(c.Request().Context()) != "" {
			t.Error("token signed with a different secret must not authenticate")
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := req.Context()
	ctx = context.WithValue(ctx, UserIDKey, "user-1")
	ctx = context.WithValue(ctx, UserRoleKey, RolePatient)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ok := false
	h := RequireRole(RolePatient)(func(c echo.Context) error {
		ok = true
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("RequireRole(patient): %v", err)
	}
	if !ok {
		t.Fatal("handler not invoked")
	}

	h = RequireRole(RoleDoctor)(func(c echo.Context) error { return nil })
	err := h(c)
	he, isHTTP := err.(*echo.HTTPError)
	if !isHTTP || he.Code != http.StatusForbidden {
		t.Fatalf("RequireRole(doctor) = %v, want 403", err)
	}
}

func TestRequireAuth_Anonymous(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequireAuth()(func(c echo.Context) error { return nil })
	err := h(c)
	he, isHTTP := err.(*echo.HTTPError)
	if !isHTTP || he.Code != http.StatusUnauthorized {
		t.Fatalf("RequireAuth anonymous = %v, want 401", err)
	}
}

func TestManager_Clear_DropsStoreState(t *testing.T) {
	m := newTestManager()
	cookie, sid := issueCookie(t, m, "user-1", RolePatient)

	ctx := context.Background()
	if err := m.Store().Set(ctx, sid+":otp", "123456", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := m.Clear(c); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, err := m.Store().Get(ctx, sid+":otp"); err != ErrNotFound {
		t.Fatalf("Get after Clear = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := s.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("Get = (%q, %v), want (v, nil)", v, err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := s.Get(ctx, "k"); err != ErrNotFound {
		t.Fatalf("Get after expiry = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_DeletePrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "sid-a:otp", "1", 0)
	s.Set(ctx, "sid-a:staged_patient", "{}", 0)
	s.Set(ctx, "sid-b:otp", "2", 0)

	if err := s.DeletePrefix(ctx, "sid-a:"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}

	if _, err := s.Get(ctx, "sid-a:otp"); err != ErrNotFound {
		t.Fatal("sid-a:otp should be gone")
	}
	if v, err := s.Get(ctx, "sid-b:otp"); err != nil || v != "2" {
		t.Fatal("sid-b:otp should survive")
	}
}
