// auth.go — обработчики /api/auth: регистрация, вход, профиль.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/sourabh1428/query-editor/internal/api/errors"
	"github.com/sourabh1428/query-editor/internal/service"
	"github.com/sourabh1428/query-editor/internal/token"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

// Register — POST /api/auth/register.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, registerValidationMessage(err))
		return
	}

	res, err := h.auth.Register(r.Context(), service.NewUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, "User already exists")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, "Username, email, and password are required")
		default:
			h.internalError(w, r, "Ошибка регистрации", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message:   "User registered successfully",
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUserResponse(res.User),
	})
}

// registerValidationMessage переводит ошибки validator в сообщение клиенту.
func registerValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return "Username, email, and password are required"
		}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "email":
		return "Invalid email address"
	case "max":
		return fe.Field() + " is too long"
	}
	return "Invalid request"
}

// Login — POST /api/auth/login.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Email and password are required")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apierrors.InvalidCredentials(w, "Invalid email or password")
			return
		}
		h.internalError(w, r, "Ошибка входа", err)
		return
	}

	h.logger.Info("Пользователь вошёл", slog.Int64("user_id", res.User.ID))
	writeJSON(w, http.StatusOK, authResponse{
		Message:   "Login successful",
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUserResponse(res.User),
	})
}

// Me — GET /api/auth/me. Пользователь перечитывается из базы.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request, id *token.Identity) {
	u, err := h.auth.Me(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.Unauthorized(w, "User not found")
			return
		}
		h.internalError(w, r, "Ошибка получения пользователя", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(u)})
}
