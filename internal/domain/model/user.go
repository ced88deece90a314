// Пакет model — доменные модели Query Editor.
package model

import "time"

// Role — уровень доступа пользователя. Единственная ось авторизации.
type Role string

const (
	// RoleRegularUser — может выполнять только SELECT
	RoleRegularUser Role = "regular_user"
	// RoleAdminUser — может выполнять любые команды
	RoleAdminUser Role = "admin_user"
)

// Valid проверяет, что роль входит в допустимый набор.
func (r Role) Valid() bool {
	return r == RoleRegularUser || r == RoleAdminUser
}

// IsAdmin возвращает true для admin_user.
func (r Role) IsAdmin() bool {
	return r == RoleAdminUser
}

// User — учётная запись, таблица users.
type User struct {
	// ID — суррогатный ключ
	ID int64
	// Username — уникальное имя пользователя
	Username string
	// Email — уникальный адрес электронной почты (логин)
	Email string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// Role — regular_user или admin_user
	Role Role
	// CreatedAt — время регистрации
	CreatedAt time.Time
	// LastLoginAt — время последнего успешного входа
	LastLoginAt *time.Time
}
