// handler.go — основной обработчик API.
// Объединяет health и бизнес-обработчики, делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/sourabh1428/query-editor/internal/api/errors"
	"github.com/sourabh1428/query-editor/internal/api/middleware"
	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/service"
	"github.com/sourabh1428/query-editor/internal/token"
)

// maxBodyBytes — предельный размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// --- Зависимости обработчика ---

// AuthUseCase — регистрация, вход и профиль.
type AuthUseCase interface {
	Register(ctx context.Context, in service.NewUserInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Me(ctx context.Context, userID int64) (*model.User, error)
}

// QueryUseCase — выполнение SQL.
type QueryUseCase interface {
	Execute(ctx context.Context, userID int64, role model.Role, sqlText string) (*service.ExecuteResult, error)
}

// HistoryUseCase — история и избранное.
type HistoryUseCase interface {
	List(ctx context.Context, userID int64) ([]*model.QueryRecord, error)
	ListFavorites(ctx context.Context, userID int64) ([]*model.QueryRecord, error)
	ToggleFavorite(ctx context.Context, id, userID int64) (bool, error)
	Rename(ctx context.Context, id, userID int64, name string) (*model.QueryRecord, error)
	Delete(ctx context.Context, id, userID int64) error
	DownloadTable(ctx context.Context, id, userID int64) (*model.ResultSet, error)
}

// SchemaUseCase — интроспекция схемы.
type SchemaUseCase interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, name string) (*model.TableSchema, error)
}

// APIHandler — обработчик API Query Editor.
type APIHandler struct {
	auth     AuthUseCase
	queries  QueryUseCase
	history  HistoryUseCase
	schema   SchemaUseCase
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	auth AuthUseCase,
	queries QueryUseCase,
	history HistoryUseCase,
	schema SchemaUseCase,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		auth:     auth,
		queries:  queries,
		history:  history,
		schema:   schema,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// AuthenticatedFunc — обработчик, получающий Identity вызывающего явно.
type AuthenticatedFunc func(w http.ResponseWriter, r *http.Request, id *token.Identity)

// Authenticated адаптирует AuthenticatedFunc к http.HandlerFunc.
// Запрос без Identity в контексте получает 401.
func Authenticated(fn AuthenticatedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := middleware.IdentityFromContext(r.Context())
		if id == nil {
			apierrors.Unauthorized(w, middleware.MsgInvalidToken)
			return
		}
		fn(w, r, id)
	}
}

// --- Ответы ---

// userResponse — пользователь в ответах API (без хэша пароля).
type userResponse struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// queryRecordResponse — запись истории в ответах API.
type queryRecordResponse struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	QueryText    string    `json:"query_text"`
	CreatedAt    time.Time `json:"created_at"`
	IsFavorite   bool      `json:"is_favorite"`
	FavoriteName *string   `json:"favorite_name"`
}

func toQueryRecordResponse(rec *model.QueryRecord) queryRecordResponse {
	return queryRecordResponse{
		ID:           rec.ID,
		UserID:       rec.UserID,
		QueryText:    rec.QueryText,
		CreatedAt:    rec.CreatedAt,
		IsFavorite:   rec.IsFavorite,
		FavoriteName: rec.FavoriteName,
	}
}

func toQueryRecordList(records []*model.QueryRecord) []queryRecordResponse {
	out := make([]queryRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toQueryRecordResponse(rec))
	}
	return out
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
// Ответ сериализуется до отправки заголовка: при ошибке клиент получает 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Ошибка сериализации ответа", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// decodeJSON читает тело запроса в dst. Пустое тело — "No data provided".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			apierrors.ValidationError(w, "No data provided")
			return false
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.ValidationError(w, "Request body is too large")
			return false
		}
		apierrors.ValidationError(w, "Invalid JSON in request body")
		return false
	}
	return true
}

// internalError логирует ошибку и отвечает 500 без подробностей.
func (h *APIHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, "Internal server error")
}
