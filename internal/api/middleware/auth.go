// auth.go — Bearer JWT middleware.
// Проверяет токен через token.Service и кладёт Identity в контекст запроса.
// Отсутствующий, повреждённый и чужой токен неотличимы для клиента;
// просроченный токен сообщается отдельно.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/sourabh1428/query-editor/internal/api/errors"
	"github.com/sourabh1428/query-editor/internal/token"
)

// Сообщения 401.
const (
	MsgInvalidToken = "Access denied. Invalid or missing token."
	MsgTokenExpired = "Token expired."
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const contextKeyIdentity contextKey = "identity"

// TokenParser проверяет строку токена.
type TokenParser interface {
	Parse(ctx context.Context, tokenString string) (*token.Identity, error)
}

// JWTAuth — middleware аутентификации по Bearer-токену.
type JWTAuth struct {
	parser TokenParser
	logger *slog.Logger
}

// NewJWTAuth создаёт middleware аутентификации.
func NewJWTAuth(parser TokenParser, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		parser: parser,
		logger: logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware: извлекает Bearer token,
// проверяет его и помещает Identity в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				apierrors.Unauthorized(w, MsgInvalidToken)
				return
			}

			id, err := j.parser.Parse(r.Context(), tokenString)
			if err != nil {
				if errors.Is(err, token.ErrExpired) {
					apierrors.TokenExpired(w, MsgTokenExpired)
					return
				}
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, MsgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// bearerToken извлекает токен из заголовка "Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// --- Context helpers ---

// WithIdentity возвращает контекст с Identity вызывающего.
func WithIdentity(ctx context.Context, id *token.Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// IdentityFromContext извлекает Identity из контекста.
// Возвращает nil, если запрос не прошёл JWTAuth.
func IdentityFromContext(ctx context.Context) *token.Identity {
	id, _ := ctx.Value(contextKeyIdentity).(*token.Identity)
	return id
}
