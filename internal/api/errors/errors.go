// Пакет errors — конструкторы HTTP-ответов с ошибками.
// Единый формат: {"code": "...", "message": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeQueryDenied     = "QUERY_DENIED"
	CodeNotFound        = "NOT_FOUND"
	CodeNoData          = "NO_DATA"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeBadCredentials  = "INVALID_CREDENTIALS"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeExecutionError  = "EXECUTION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Body — тело ответа с ошибкой.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Body{Code: code, Message: message})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// QueryDenied — 400 запрос отклонён политикой доступа.
func QueryDenied(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeQueryDenied, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// NoData — 404 повторное выполнение не вернуло строк.
func NoData(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNoData, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// TokenExpired — 401 срок действия токена истёк.
func TokenExpired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeTokenExpired, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 400 пользователь уже существует.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeConflict, message)
}

// InvalidCredentials — 400 неверный email или пароль.
func InvalidCredentials(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeBadCredentials, message)
}

// TooManyRequests — 429 превышен лимит запросов.
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeTooManyRequests, message)
}

// ExecutionError — 500 ошибка СУБД, сообщение передаётся без изменений.
func ExecutionError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeExecutionError, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
