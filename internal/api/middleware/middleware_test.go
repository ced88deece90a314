package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apierrors "github.com/sourabh1428/query-editor/internal/api/errors"
	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/token"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTokenService(t *testing.T) *token.Service {
	t.Helper()
	s, err := token.NewService(token.Key{ID: "k1", Secret: []byte("middleware-test-secret")}, nil, time.Hour, 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierrors.Body {
	t.Helper()
	var body apierrors.Body
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("тело ответа не JSON: %v", err)
	}
	return body
}

// --- JWTAuth ---

func TestJWTAuth_ValidToken(t *testing.T) {
	svc := newTokenService(t)
	tok, _, err := svc.Issue(&model.User{ID: 3, Username: "bob", Email: "bob@example.com", Role: model.RoleRegularUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var got *token.Identity
	h := NewJWTAuth(svc, testLogger()).Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, ожидался 204", rec.Code)
	}
	if got == nil || got.UserID != 3 || got.Role != model.RoleRegularUser {
		t.Errorf("Identity = %+v", got)
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	svc := newTokenService(t)
	other, err := token.NewService(token.Key{ID: "k1", Secret: []byte("some-other-secret-value")}, nil, time.Hour, 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	forged, _, err := other.Issue(&model.User{ID: 1, Role: model.RoleAdminUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"без заголовка", ""},
		{"не Bearer", "Basic dXNlcjpwYXNz"},
		{"пустой Bearer", "Bearer "},
		{"мусор", "Bearer abc.def.ghi"},
		{"чужая подпись", "Bearer " + forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewJWTAuth(svc, testLogger()).Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/queries/history", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if called {
				t.Error("обработчик не должен вызываться")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, ожидался 401", rec.Code)
			}
			body := decodeError(t, rec)
			if body.Code != apierrors.CodeUnauthorized || body.Message != MsgInvalidToken {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

// expiredParser всегда сообщает об истёкшем токене.
type expiredParser struct{}

func (expiredParser) Parse(context.Context, string) (*token.Identity, error) {
	return nil, token.ErrExpired
}

func TestJWTAuth_Expired(t *testing.T) {
	h := NewJWTAuth(expiredParser{}, testLogger()).Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("обработчик не должен вызываться")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, ожидался 401", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != apierrors.CodeTokenExpired || body.Message != MsgTokenExpired {
		t.Errorf("body = %+v", body)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), ожидалось (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

// --- RequestID / RequestLogger ---

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	// входящий идентификатор сохраняется
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get(HeaderRequestID) != "abc-123" {
		t.Errorf("request id = %q / %q, ожидался abc-123", seen, rec.Header().Get(HeaderRequestID))
	}

	// без заголовка генерируется UUID
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 || rec.Header().Get(HeaderRequestID) != seen {
		t.Errorf("сгенерированный request id = %q", seen)
	}

	// слишком длинный заменяется
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", 500))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) != 36 {
		t.Errorf("длинный request id не заменён: %d символов", len(seen))
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot || rec.Body.String() != "tea" {
		t.Errorf("ответ изменён: %d %q", rec.Code, rec.Body.String())
	}
}

// --- Metrics ---

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/api/queries/execute", "/api/queries/execute"},
		{"/api/queries/history", "/api/queries/history"},
		{"/api/queries/42", "/api/queries/{id}"},
		{"/api/queries/42/favorite", "/api/queries/{id}/favorite"},
		{"/api/queries/42/favorite/name", "/api/queries/{id}/favorite/name"},
		{"/api/queries/42/download", "/api/queries/{id}/download"},
		{"/api/queries/42/unknown", "other"},
		{"/api/queries/abc", "other"},
		{"/api/schema/tables", "/api/schema/tables"},
		{"/api/schema/tables/users", "/api/schema/tables/{name}"},
		{"/api/schema/tables/users/x", "other"},
		{"/wp-login.php", "other"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидался %q", tt.path, got, tt.want)
		}
	}
}

// --- RateLimiter ---

func TestRateLimiter_ConcurrentFirstRequests(t *testing.T) {
	const burst, clients = 3, 64
	rl := NewRateLimiter(0.001, burst, testLogger())

	var allowed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if rl.Allow("10.0.0.9") {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := allowed.Load(); got != burst {
		t.Errorf("пропущено %d запросов, ожидалось %d", got, burst)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, testLogger())
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if c := do("10.0.0.1:1111"); c != http.StatusOK {
		t.Errorf("1-й запрос: %d", c)
	}
	if c := do("10.0.0.1:2222"); c != http.StatusOK {
		t.Errorf("2-й запрос: %d", c)
	}
	if c := do("10.0.0.1:3333"); c != http.StatusTooManyRequests {
		t.Errorf("3-й запрос сверх burst: %d, ожидался 429", c)
	}
	if c := do("10.0.0.2:1111"); c != http.StatusOK {
		t.Errorf("другой IP: %d, ожидался 200", c)
	}
}
