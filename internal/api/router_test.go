package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/texresolve/accounts-api/internal/core/domain"
	"github.com/texresolve/accounts-api/internal/core/service"
	"github.com/texresolve/accounts-api/internal/infrastructure/security"
)

// memUserRepo is an in-memory ports.UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
	seq   int
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.seq++
	u := *user
	u.ID = strconv.Itoa(r.seq)
	r.users[u.ID] = u
	return &u, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash, u.UpdatedAt = hash, at
	r.users[id] = u
	return nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	u.UpdatedAt = at
	r.users[id] = u
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, &domain.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
	}
	return out, nil
}

func (r *memUserRepo) CountByRole(_ context.Context) (*domain.RoleStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.RoleStats{}
	for _, u := range r.users {
		stats.Add(u.Role, 1)
	}
	return stats, nil
}

type testServer struct {
	e    *echo.Echo
	repo *memUserRepo
}

func newTestServer() *testServer {
	repo := &memUserRepo{users: make(map[string]domain.User)}
	tokens := security.NewTokenManager("test-secret", time.Hour)
	accounts := service.NewAccountService(service.AccountDependencies{
		Users:  repo,
		Hasher: security.NewBcryptHasher(bcrypt.MinCost),
		Tokens: tokens,
	}, zerolog.Nop())

	e := NewRouter(Dependencies{
		Accounts: accounts,
		Tokens:   tokens,
		Logger:   zerolog.Nop(),
		Registry: prometheus.NewRegistry(),
	})
	return &testServer{e: e, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var resp map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: invalid json %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	code, resp := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d %v", email, code, resp)
	}
	token, _ := resp["accesstoken"].(string)
	if token == "" {
		t.Fatalf("login %s: no token in %v", email, resp)
	}
	return token
}

func expectFailure(t *testing.T, code int, resp map[string]any, wantCode int, wantMessage string) {
	t.Helper()
	if code != wantCode {
		t.Fatalf("expected %d, got %d %v", wantCode, code, resp)
	}
	if resp["success"] != false || resp["message"] != wantMessage {
		t.Fatalf("expected envelope with %q, got %v", wantMessage, resp)
	}
}

func TestRouter_RegisterTwiceRejectsSecond(t *testing.T) {
	s := newTestServer()

	code, resp := s.do(t, http.MethodPost, "/auth/register", "", `{"name":"A","email":"a@x.com","password":"p1"}`)
	if code != http.StatusCreated || resp["message"] != "User account created successfully" {
		t.Fatalf("first register: %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodPost, "/auth/register", "", `{"name":"B","email":"a@x.com","password":"p2"}`)
	expectFailure(t, code, resp, http.StatusBadRequest, "Email already exists")

	if len(s.repo.users) != 1 {
		t.Fatalf("expected one stored user, got %d", len(s.repo.users))
	}
}

func TestRouter_WrongPassword(t *testing.T) {
	s := newTestServer()
	s.do(t, http.MethodPost, "/auth/register", "", `{"name":"A","email":"a@x.com","password":"p1"}`)

	code, resp := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"a@x.com","password":"nope"}`)
	expectFailure(t, code, resp, http.StatusForbidden, "Invalid email or password")

	code, resp = s.do(t, http.MethodPost, "/auth/login", "", `{"email":"a@x.com"}`)
	expectFailure(t, code, resp, http.StatusForbidden, "Invalid credentials")
}

func TestRouter_SelfPromotionNeedsFreshLogin(t *testing.T) {
	s := newTestServer()
	s.do(t, http.MethodPost, "/auth/register", "", `{"name":"A","email":"a@x.com","password":"p1","role":"sales"}`)
	s.do(t, http.MethodPost, "/auth/register", "", `{"name":"B","email":"b@x.com","password":"p2","role":"inventory"}`)
	salesToken := s.login(t, "a@x.com", "p1")

	code, resp := s.do(t, http.MethodGet, "/auth/analytics", salesToken, "")
	expectFailure(t, code, resp, http.StatusForbidden, "Role: sales is not allowed to access this resource")

	code, resp = s.do(t, http.MethodPut, "/auth/update", salesToken, `{"role":"admin"}`)
	if code != http.StatusOK || resp["message"] != "User updated successfully" {
		t.Fatalf("update: %d %v", code, resp)
	}

	// The old token still carries the sales role.
	code, resp = s.do(t, http.MethodGet, "/auth/analytics", salesToken, "")
	expectFailure(t, code, resp, http.StatusForbidden, "Role: sales is not allowed to access this resource")

	adminToken := s.login(t, "a@x.com", "p1")
	code, resp = s.do(t, http.MethodGet, "/auth/analytics", adminToken, "")
	if code != http.StatusOK {
		t.Fatalf("analytics: %d %v", code, resp)
	}
	stats := resp["stats"].(map[string]any)
	if stats["totalUsers"] != float64(2) || stats["admin"] != float64(1) || stats["inventory"] != float64(1) || stats["sales"] != float64(0) {
		t.Fatalf("unexpected stats %v", stats)
	}

	code, resp = s.do(t, http.MethodGet, "/auth/all", adminToken, "")
	if code != http.StatusOK {
		t.Fatalf("list: %d %v", code, resp)
	}
	if users := resp["users"].([]any); len(users) != 2 {
		t.Fatalf("expected 2 users, got %v", users)
	}
}

func TestRouter_DeleteThenStaleTokenUpdate(t *testing.T) {
	s := newTestServer()
	s.do(t, http.MethodPost, "/auth/register", "", `{"name":"A","email":"a@x.com","password":"p1","role":"admin"}`)
	token := s.login(t, "a@x.com", "p1")

	code, resp := s.do(t, http.MethodDelete, "/auth/delete", token, "")
	if code != http.StatusOK || resp["message"] != "User deleted successfully" {
		t.Fatalf("delete: %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodPut, "/auth/update", token, `{"name":"ghost"}`)
	expectFailure(t, code, resp, http.StatusNotFound, "User not found")
}

func TestRouter_DeleteRequiresAdmin(t *testing.T) {
	s := newTestServer()
	s.do(t, http.MethodPost, "/auth/register", "", `{"name":"A","email":"a@x.com","password":"p1","role":"sales"}`)
	token := s.login(t, "a@x.com", "p1")

	code, resp := s.do(t, http.MethodDelete, "/auth/delete", token, "")
	expectFailure(t, code, resp, http.StatusForbidden, "Role: sales is not allowed to access this resource")
	if len(s.repo.users) != 1 {
		t.Fatalf("user must not be deleted")
	}
}

func TestRouter_AuthFailures(t *testing.T) {
	s := newTestServer()

	code, resp := s.do(t, http.MethodGet, "/auth/all", "", "")
	expectFailure(t, code, resp, http.StatusUnauthorized, "Authentication Failed")

	code, resp = s.do(t, http.MethodPut, "/auth/update", "garbage", `{"name":"x"}`)
	expectFailure(t, code, resp, http.StatusBadRequest, "Access token not valid")
}

func TestRouter_ValidationEnvelope(t *testing.T) {
	s := newTestServer()

	code, resp := s.do(t, http.MethodPost, "/auth/register", "", `{"name":"A","email":"not-an-email","password":"p"}`)
	expectFailure(t, code, resp, http.StatusBadRequest, "please enter a valid email")
}

func TestRouter_Probes(t *testing.T) {
	s := newTestServer()

	code, resp := s.do(t, http.MethodGet, "/test", "", "")
	if code != http.StatusOK || resp["success"] != true || resp["message"] != "API is working" {
		t.Fatalf("/test: %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodGet, "/health/ready", "", "")
	if code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("/health/ready: %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodGet, "/nowhere", "", "")
	if code != http.StatusNotFound || resp["success"] != false {
		t.Fatalf("unknown route: %d %v", code, resp)
	}
}
