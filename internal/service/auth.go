// auth.go — регистрация, вход и профиль пользователя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/repository"
)

// TokenIssuer выпускает токен доступа для пользователя.
type TokenIssuer interface {
	Issue(u *model.User) (string, time.Time, error)
}

// NewUserInput — данные новой учётной записи.
type NewUserInput struct {
	Username string
	Email    string
	Password string
}

// AuthResult — пользователь и выпущенный для него токен.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// AuthService — учётные записи и выпуск токенов.
type AuthService struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	bcryptCost int
	logger     *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.With(slog.String("component", "auth_service")),
	}
}

// Register создаёт пользователя с ролью regular_user и выпускает токен.
// Занятые username или email — ErrConflict.
func (s *AuthService) Register(ctx context.Context, in NewUserInput) (*AuthResult, error) {
	u, err := s.CreateUser(ctx, in, model.RoleRegularUser)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login проверяет email и пароль и выпускает токен.
// Неизвестный email и неверный пароль неотличимы: ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// выравнивание времени ответа с веткой существующего пользователя
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("поиск пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Неудачная попытка входа", slog.Int64("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		s.logger.Warn("Не удалось обновить last_login_at",
			slog.Int64("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	} else {
		now := time.Now().UTC()
		u.LastLoginAt = &now
	}

	return s.issue(u)
}

// Me перечитывает пользователя из базы. Удалённый пользователь — ErrNotFound.
func (s *AuthService) Me(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "получение пользователя")
	}
	return u, nil
}

// CreateUser создаёт учётную запись с указанной ролью без выпуска токена.
func (s *AuthService) CreateUser(ctx context.Context, in NewUserInput, role model.Role) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("проверка пользователя: %w", err)
	}
	if exists {
		return nil, ErrConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password is too long", ErrValidation)
		}
		return nil, fmt.Errorf("хэширование пароля: %w", err)
	}

	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
	}
	// гонка между проверкой и вставкой ловится уникальным индексом
	if err := s.users.Create(ctx, u); err != nil {
		return nil, mapRepoError(err, "создание пользователя")
	}

	s.logger.Info("Пользователь создан",
		slog.Int64("user_id", u.ID),
		slog.String("username", u.Username),
		slog.String("role", string(u.Role)),
	)
	return u, nil
}

func (s *AuthService) issue(u *model.User) (*AuthResult, error) {
	tok, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("выпуск токена: %w", err)
	}
	return &AuthResult{User: u, Token: tok, ExpiresAt: exp}, nil
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue []byte
)

func dummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHashValue, _ = bcrypt.GenerateFromPassword([]byte("query-editor-dummy"), bcrypt.DefaultCost)
	})
	return dummyHashValue
}
