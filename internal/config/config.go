// Пакет config — загрузка и валидация конфигурации Query Editor
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые бэкенды кэша результатов.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Минимальная длина секрета подписи JWT (HS256).
const minJWTSecretLen = 16

// Максимально допустимый TTL кэша результатов.
const maxCacheTTL = time.Hour

// JWTKey — ключ подписи/проверки токенов с идентификатором (kid).
type JWTKey struct {
	ID     string
	Secret string
}

// Config содержит все параметры конфигурации Query Editor.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений
	DBMaxConns int

	// --- JWT ---

	// Активный ключ подписи
	JWTSecret string
	// kid активного ключа
	JWTKeyID string
	// Предыдущие ключи, которые ещё принимаются при проверке (ротация)
	JWTPreviousKeys []JWTKey
	// Время жизни токена (по умолчанию 24h)
	JWTTTL time.Duration
	// Допуск рассинхронизации часов
	JWTLeeway time.Duration

	// --- Кэш результатов ---

	// Бэкенд: memory, redis, none
	CacheBackend string
	// TTL записи кэша (по умолчанию 300s, не более 1h)
	CacheTTL time.Duration
	// Размер in-memory кэша
	CacheMaxEntries int
	// Адрес Redis (host:port)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// --- Выполнение запросов ---

	// Таймаут выполнения пользовательского SQL (0 — без ограничения)
	QueryTimeout time.Duration

	// --- HTTP ---

	// Разрешённые CORS-источники
	CORSOrigins []string
	// Лимит запросов к /api/auth/* на клиента (в секунду)
	AuthRateLimit float64
	// Допустимый всплеск запросов к /api/auth/*
	AuthRateBurst int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Мониторинг зависимостей ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// QE_PORT — порт HTTP-сервера (по умолчанию 5000)
	cfg.Port, err = getEnvInt("QE_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("QE_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("QE_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// QE_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("QE_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("QE_LOG_LEVEL: %w", err)
	}

	// QE_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("QE_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("QE_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	if err := cfg.loadDatabase(); err != nil {
		return nil, err
	}

	// --- JWT ---

	// QE_JWT_SECRET — обязательный, не короче 16 байт
	cfg.JWTSecret, err = getEnvRequired("QE_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return nil, fmt.Errorf("QE_JWT_SECRET: длина секрета должна быть не менее %d байт", minJWTSecretLen)
	}

	// QE_JWT_KEY_ID — kid активного ключа (по умолчанию default)
	cfg.JWTKeyID = getEnvDefault("QE_JWT_KEY_ID", "default")

	// QE_JWT_PREVIOUS_SECRETS — kid:secret через запятую
	cfg.JWTPreviousKeys, err = parseKeys(getEnvDefault("QE_JWT_PREVIOUS_SECRETS", ""))
	if err != nil {
		return nil, fmt.Errorf("QE_JWT_PREVIOUS_SECRETS: %w", err)
	}
	for _, k := range cfg.JWTPreviousKeys {
		if k.ID == cfg.JWTKeyID {
			return nil, fmt.Errorf("QE_JWT_PREVIOUS_SECRETS: kid %q совпадает с QE_JWT_KEY_ID", k.ID)
		}
	}

	// QE_JWT_TTL — время жизни токена (по умолчанию 24h)
	cfg.JWTTTL, err = getEnvDuration("QE_JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("QE_JWT_TTL: %w", err)
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("QE_JWT_TTL: значение должно быть > 0")
	}

	// QE_JWT_LEEWAY — допуск рассинхронизации часов (по умолчанию 5s)
	cfg.JWTLeeway, err = getEnvDuration("QE_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("QE_JWT_LEEWAY: %w", err)
	}

	// --- Кэш ---

	if err := cfg.loadCache(); err != nil {
		return nil, err
	}

	// QE_QUERY_TIMEOUT — таймаут выполнения SQL (по умолчанию 0, без ограничения)
	cfg.QueryTimeout, err = getEnvDuration("QE_QUERY_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("QE_QUERY_TIMEOUT: %w", err)
	}
	if cfg.QueryTimeout < 0 {
		return nil, fmt.Errorf("QE_QUERY_TIMEOUT: значение должно быть >= 0")
	}

	// --- HTTP ---

	cfg.CORSOrigins = parseCSV(getEnvDefault("QE_CORS_ORIGINS",
		"http://localhost:3000,http://localhost:5173,http://127.0.0.1:5173"))

	cfg.AuthRateLimit, err = getEnvFloat("QE_AUTH_RATE_LIMIT", 5)
	if err != nil {
		return nil, fmt.Errorf("QE_AUTH_RATE_LIMIT: %w", err)
	}
	if cfg.AuthRateLimit <= 0 {
		return nil, fmt.Errorf("QE_AUTH_RATE_LIMIT: значение должно быть > 0")
	}

	cfg.AuthRateBurst, err = getEnvInt("QE_AUTH_RATE_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("QE_AUTH_RATE_BURST: %w", err)
	}
	if cfg.AuthRateBurst < 1 {
		return nil, fmt.Errorf("QE_AUTH_RATE_BURST: значение должно быть >= 1")
	}

	// QE_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("QE_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("QE_HTTP_READ_TIMEOUT: %w", err)
	}

	// QE_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("QE_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("QE_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// QE_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("QE_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("QE_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("QE_DEPHEALTH_GROUP", "query-editor")

	// QE_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("QE_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("QE_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// QE_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("QE_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("QE_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// LoadDatabase загружает только параметры PostgreSQL и логирования.
// Используется командами CLI (migrate, user create), которым не нужен JWT и кэш.
func LoadDatabase() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("QE_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("QE_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("QE_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("QE_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	if err := cfg.loadDatabase(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDatabase читает переменные QE_DB_*.
func (c *Config) loadDatabase() error {
	var err error

	// QE_DB_HOST — обязательный
	c.DBHost, err = getEnvRequired("QE_DB_HOST")
	if err != nil {
		return err
	}

	// QE_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	c.DBPort, err = getEnvInt("QE_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("QE_DB_PORT: %w", err)
	}

	c.DBName, err = getEnvRequired("QE_DB_NAME")
	if err != nil {
		return err
	}
	c.DBUser, err = getEnvRequired("QE_DB_USER")
	if err != nil {
		return err
	}
	c.DBPassword, err = getEnvRequired("QE_DB_PASSWORD")
	if err != nil {
		return err
	}

	// QE_DB_SSL_MODE — режим SSL (по умолчанию disable)
	c.DBSSLMode = getEnvDefault("QE_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[c.DBSSLMode] {
		return fmt.Errorf("QE_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", c.DBSSLMode)
	}

	// QE_DB_MAX_CONNS — размер пула (по умолчанию 10)
	c.DBMaxConns, err = getEnvInt("QE_DB_MAX_CONNS", 10)
	if err != nil {
		return fmt.Errorf("QE_DB_MAX_CONNS: %w", err)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("QE_DB_MAX_CONNS: значение должно быть >= 1")
	}
	return nil
}

// loadCache читает переменные кэша результатов и Redis.
func (c *Config) loadCache() error {
	var err error

	// QE_CACHE_BACKEND — memory, redis, none (по умолчанию memory)
	c.CacheBackend = strings.ToLower(getEnvDefault("QE_CACHE_BACKEND", CacheBackendMemory))
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendNone:
	default:
		return fmt.Errorf("QE_CACHE_BACKEND: недопустимое значение %q, допустимые: memory, redis, none", c.CacheBackend)
	}

	// QE_CACHE_TTL — TTL записи (по умолчанию 300s, диапазон 1s-1h)
	c.CacheTTL, err = getEnvDuration("QE_CACHE_TTL", 300*time.Second)
	if err != nil {
		return fmt.Errorf("QE_CACHE_TTL: %w", err)
	}
	if c.CacheTTL < time.Second || c.CacheTTL > maxCacheTTL {
		return fmt.Errorf("QE_CACHE_TTL: значение %s вне допустимого диапазона 1s-1h", c.CacheTTL)
	}

	// QE_CACHE_MAX_ENTRIES — размер in-memory кэша (по умолчанию 1000)
	c.CacheMaxEntries, err = getEnvInt("QE_CACHE_MAX_ENTRIES", 1000)
	if err != nil {
		return fmt.Errorf("QE_CACHE_MAX_ENTRIES: %w", err)
	}
	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("QE_CACHE_MAX_ENTRIES: значение должно быть >= 1")
	}

	c.RedisAddr = getEnvDefault("QE_REDIS_ADDR", "localhost:6379")
	c.RedisPassword = getEnvDefault("QE_REDIS_PASSWORD", "")
	c.RedisDB, err = getEnvInt("QE_REDIS_DB", 0)
	if err != nil {
		return fmt.Errorf("QE_REDIS_DB: %w", err)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("QE_REDIS_DB: значение должно быть >= 0")
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL с указанной схемой
// (postgres:// для dephealth, pgx5:// для golang-migrate).
func (c *Config) DatabaseURL(scheme string) string {
	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvFloat возвращает дробное значение переменной окружения или значение по умолчанию.
func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseKeys разбирает список "kid:secret,kid:secret".
func parseKeys(s string) ([]JWTKey, error) {
	var keys []JWTKey
	seen := make(map[string]bool)
	for i, item := range parseCSV(s) {
		kid, secret, ok := strings.Cut(item, ":")
		kid = strings.TrimSpace(kid)
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("некорректный элемент #%d, ожидается kid:secret", i+1)
		}
		if len(secret) < minJWTSecretLen {
			return nil, fmt.Errorf("секрет ключа %q короче %d байт", kid, minJWTSecretLen)
		}
		if seen[kid] {
			return nil, fmt.Errorf("повторяющийся kid %q", kid)
		}
		seen[kid] = true
		keys = append(keys, JWTKey{ID: kid, Secret: secret})
	}
	return keys, nil
}
