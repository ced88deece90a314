// Пакет server — HTTP-сервер Query Editor с graceful shutdown.
// Без TLS: TLS termination на reverse proxy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sourabh1428/query-editor/internal/api/handlers"
	"github.com/sourabh1428/query-editor/internal/api/middleware"
	"github.com/sourabh1428/query-editor/internal/config"
)

// Handlers — обработчики, из которых собираются маршруты.
type Handlers struct {
	API     *handlers.APIHandler
	Health  *handlers.HealthHandler
	OpenAPI http.Handler
}

// Middlewares — middleware групп маршрутов.
type Middlewares struct {
	// Auth — проверка Bearer-токена для защищённой группы
	Auth func(http.Handler) http.Handler
	// RateLimit — ограничение частоты /api/auth/register и /api/auth/login
	RateLimit func(http.Handler) http.Handler
	// Validate — проверка запросов по OpenAPI-контракту
	Validate func(http.Handler) http.Handler
}

// Server — HTTP-сервер Query Editor.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, mw Middlewares) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, logger, h, mw),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер со всеми маршрутами API.
//
// Порядок middleware: request id → логирование → метрики → recover → CORS.
// Публичная группа (register, login): rate limit → OpenAPI.
// Защищённая группа: JWT → OpenAPI → обработчик с явной Identity.
func NewRouter(cfg *config.Config, logger *slog.Logger, h Handlers, mw Middlewares) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware())
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposedHeaders:   []string{"Content-Disposition", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Служебные endpoints
	r.Get("/", h.Health.Root)
	r.Get("/health/live", h.Health.HealthLive)
	r.Get("/health/ready", h.Health.HealthReady)
	r.Get("/metrics", h.Health.GetMetrics)
	if h.OpenAPI != nil {
		r.Method(http.MethodGet, "/api/openapi.json", h.OpenAPI)
	}

	// Публичные endpoints аутентификации
	r.Group(func(r chi.Router) {
		use(r, mw.RateLimit, mw.Validate)
		r.Post("/api/auth/register", h.API.Register)
		r.Post("/api/auth/login", h.API.Login)
	})

	// Защищённые endpoints
	r.Group(func(r chi.Router) {
		use(r, mw.Auth, mw.Validate)

		r.Get("/api/auth/me", handlers.Authenticated(h.API.Me))

		r.Route("/api/queries", func(r chi.Router) {
			r.Post("/execute", handlers.Authenticated(h.API.ExecuteQuery))
			r.Get("/history", handlers.Authenticated(h.API.ListHistory))
			r.Get("/favorites", handlers.Authenticated(h.API.ListFavorites))
			r.Put("/{id}/favorite", handlers.Authenticated(h.API.ToggleFavorite))
			r.Put("/{id}/favorite/name", handlers.Authenticated(h.API.RenameFavorite))
			r.Get("/{id}/download", handlers.Authenticated(h.API.DownloadQuery))
			r.Delete("/{id}", handlers.Authenticated(h.API.DeleteQuery))
		})

		r.Get("/api/schema/tables", handlers.Authenticated(h.API.ListTables))
		r.Get("/api/schema/tables/{name}", handlers.Authenticated(h.API.DescribeTable))
	})

	return r
}

// use подключает middleware группы, пропуская незаданные.
func use(r chi.Router, mws ...func(http.Handler) http.Handler) {
	for _, mw := range mws {
		if mw != nil {
			r.Use(mw)
		}
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. После этого выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
