package openapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/sourabh1428/query-editor/internal/api/errors"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	doc, err := Load(context.Background())
	require.NoError(t, err)
	v, err := NewValidator(doc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return v
}

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	for _, path := range []string{
		"/api/auth/register", "/api/auth/login", "/api/auth/me",
		"/api/queries/execute", "/api/queries/history", "/api/queries/favorites",
		"/api/queries/{id}", "/api/queries/{id}/favorite", "/api/queries/{id}/favorite/name",
		"/api/queries/{id}/download", "/api/schema/tables", "/api/schema/tables/{name}",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "путь %s отсутствует в контракте", path)
	}
}

func TestValidator_Middleware(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"корректное тело", http.MethodPost, "/api/queries/execute", `{"query":"SELECT 1"}`, http.StatusNoContent},
		{"пустой объект допускается", http.MethodPost, "/api/queries/execute", `{}`, http.StatusNoContent},
		{"неверный тип поля", http.MethodPost, "/api/queries/execute", `{"query":42}`, http.StatusBadRequest},
		{"не JSON", http.MethodPost, "/api/auth/login", `not json`, http.StatusBadRequest},
		{"корректный id", http.MethodPut, "/api/queries/5/favorite", "", http.StatusNoContent},
		{"нечисловой id", http.MethodPut, "/api/queries/abc/favorite", "", http.StatusBadRequest},
		{"нулевой id", http.MethodDelete, "/api/queries/0", "", http.StatusBadRequest},
		{"путь вне контракта", http.MethodGet, "/health/live", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody string
			h := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Body != nil {
					b, _ := io.ReadAll(r.Body)
					gotBody = string(b)
				}
				w.WriteHeader(http.StatusNoContent)
			}))

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusBadRequest {
				var e apierrors.Body
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
				assert.Equal(t, apierrors.CodeValidationError, e.Code)
				assert.NotEmpty(t, e.Message)
			}
			if tt.want == http.StatusNoContent && tt.body != "" {
				assert.Equal(t, tt.body, gotBody, "тело должно быть доступно обработчику после проверки")
			}
		})
	}
}

func TestHandler(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)
	h, err := Handler(doc)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&parsed))
	assert.Equal(t, "3.0.3", parsed["openapi"])
}
