package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/texresolve/accounts-api/internal/core/domain"
	"github.com/texresolve/accounts-api/internal/infrastructure/security"
)

type stubLedger struct {
	at  time.Time
	ok  bool
	err error
}

func (l stubLedger) MarkChanged(context.Context, string, time.Time) error { return nil }

func (l stubLedger) ChangedAt(context.Context, string) (time.Time, bool, error) {
	return l.at, l.ok, l.err
}

func runAuth(t *testing.T, header string, verifier *security.TokenManager, ledger *stubLedger) (domain.Identity, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var (
		got    domain.Identity
		called bool
	)
	mw := Auth(verifier, nil)
	if ledger != nil {
		mw = Auth(verifier, ledger)
	}
	err := mw(func(c echo.Context) error {
		called = true
		got, _ = domain.IdentityFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})(c)
	return got, called, err
}

func assertRejected(t *testing.T, err error, status int, message string) {
	t.Helper()
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *domain.Error, got %v", err)
	}
	if de.Status != status || de.Message != message {
		t.Fatalf("expected %d %q, got %d %q", status, message, de.Status, de.Message)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tm := security.NewTokenManager("secret", time.Hour)
	token, _, err := tm.Issue("u1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	id, called, err := runAuth(t, "Bearer "+token, tm, nil)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if id.SubjectID != "u1" || id.Role != domain.RoleAdmin {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	_, called, err := runAuth(t, "", security.NewTokenManager("secret", time.Hour), nil)
	if called {
		t.Fatalf("should not reach next")
	}
	assertRejected(t, err, http.StatusUnauthorized, "Authentication Failed")
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	for _, header := range []string{"Token abc", "Bearer", "Bearer   "} {
		_, called, err := runAuth(t, header, security.NewTokenManager("secret", time.Hour), nil)
		if called {
			t.Fatalf("%q: should not reach next", header)
		}
		assertRejected(t, err, http.StatusBadRequest, "Access token not valid")
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	_, called, err := runAuth(t, "Bearer not-a-token", security.NewTokenManager("secret", time.Hour), nil)
	if called {
		t.Fatalf("should not reach next")
	}
	assertRejected(t, err, http.StatusBadRequest, "Access token not valid")
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	token, _, _ := security.NewTokenManager("other", time.Hour).Issue("u1", domain.RoleSales)

	_, _, err := runAuth(t, "Bearer "+token, security.NewTokenManager("secret", time.Hour), nil)
	assertRejected(t, err, http.StatusBadRequest, "Access token not valid")
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{
		"userId": "u1",
		"role":   "admin",
		"exp":    time.Now().Add(-time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, _, err = runAuth(t, "Bearer "+signed, security.NewTokenManager("secret", time.Hour), nil)
	assertRejected(t, err, http.StatusBadRequest, "Access token not valid")
}

func TestAuthMiddleware_MissingSubject(t *testing.T) {
	claims := jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, _, err = runAuth(t, "Bearer "+signed, security.NewTokenManager("secret", time.Hour), nil)
	assertRejected(t, err, http.StatusBadRequest, "User ID not found in token")
}

func TestAuthMiddleware_Revocation(t *testing.T) {
	tm := security.NewTokenManager("secret", time.Hour)
	token, _, _ := tm.Issue("u1", domain.RoleSales)

	t.Run("changed after issue", func(t *testing.T) {
		ledger := &stubLedger{at: time.Now().Add(time.Minute), ok: true}
		_, called, err := runAuth(t, "Bearer "+token, tm, ledger)
		if called {
			t.Fatalf("revoked token reached next")
		}
		assertRejected(t, err, http.StatusUnauthorized, "Access token revoked")
	})

	t.Run("changed before issue", func(t *testing.T) {
		ledger := &stubLedger{at: time.Now().Add(-time.Minute), ok: true}
		if _, called, err := runAuth(t, "Bearer "+token, tm, ledger); err != nil || !called {
			t.Fatalf("expected pass, got called=%v err=%v", called, err)
		}
	})

	t.Run("no mark", func(t *testing.T) {
		if _, called, err := runAuth(t, "Bearer "+token, tm, &stubLedger{}); err != nil || !called {
			t.Fatalf("expected pass, got called=%v err=%v", called, err)
		}
	})

	t.Run("ledger down", func(t *testing.T) {
		ledger := &stubLedger{err: errors.New("connection refused")}
		if _, called, err := runAuth(t, "Bearer "+token, tm, ledger); err != nil || !called {
			t.Fatalf("expected pass, got called=%v err=%v", called, err)
		}
	})
}
