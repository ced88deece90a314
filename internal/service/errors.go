// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден или принадлежит другому пользователю.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — username или email уже заняты.
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidCredentials — неверный email или пароль (без уточнения, что именно).
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrNoData — повторное выполнение запроса не вернуло строк.
	ErrNoData = errors.New("нет данных для выгрузки")
)

// ExecutionError — ошибка выполнения пользовательского SQL.
// Message — сообщение СУБД без изменений, возвращается клиенту как есть.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
