// query.go — выполнение пользовательского SQL.
// Координирует проверку политики, кэш результатов, исполнитель и историю.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sourabh1428/query-editor/internal/cache"
	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/domain/querypolicy"
	"github.com/sourabh1428/query-editor/internal/repository"
)

var queryDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qe_query_denied_total",
	Help: "Количество запросов, отклонённых политикой доступа.",
}, []string{"command"})

// ExecuteResult — результат выполнения запроса.
type ExecuteResult struct {
	// Rows — строки результата; nil для команды без набора строк
	Rows *model.ResultSet
	// Cached — результат взят из кэша
	Cached bool
	// Record — созданная запись истории
	Record *model.QueryRecord
	// Command — слово команды
	Command string
}

// QueryService — сервис выполнения запросов.
type QueryService struct {
	executor QueryExecutor
	queries  repository.QueryRepository
	cache    cache.ResultCache
	logger   *slog.Logger
}

// NewQueryService создаёт сервис выполнения запросов.
func NewQueryService(
	executor QueryExecutor,
	queries repository.QueryRepository,
	resultCache cache.ResultCache,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		executor: executor,
		queries:  queries,
		cache:    resultCache,
		logger:   logger.With(slog.String("component", "query_service")),
	}
}

// Execute проверяет и выполняет SQL от имени пользователя.
//
// Порядок: валидация → (SELECT) кэш → исполнитель → история → (SELECT) запись в кэш.
// Отказ политики возвращается как *querypolicy.DeniedError и в историю не попадает.
// Ошибка СУБД — *ExecutionError; попытка при этом остаётся в истории.
func (s *QueryService) Execute(ctx context.Context, userID int64, role model.Role, sqlText string) (*ExecuteResult, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, fmt.Errorf("%w: SQL query is required", ErrValidation)
	}

	outcome := querypolicy.Validate(sqlText, role)
	if !outcome.Allowed {
		queryDeniedTotal.WithLabelValues(outcome.Command).Inc()
		s.logger.Info("Запрос отклонён политикой",
			slog.Int64("user_id", userID),
			slog.String("role", string(role)),
			slog.String("command", outcome.Command),
		)
		return nil, outcome.Err()
	}

	cacheable := outcome.Command == querypolicy.CommandSelect

	if cacheable {
		if rs, ok := s.cache.Get(ctx, userID, outcome.Query); ok {
			rec, err := s.record(ctx, userID, outcome.Query)
			if err != nil {
				return nil, err
			}
			return &ExecuteResult{Rows: rs, Cached: true, Record: rec, Command: outcome.Command}, nil
		}
	}

	rs, execErr := s.executor.Execute(ctx, outcome.Query)

	rec, err := s.record(ctx, userID, outcome.Query)
	if err != nil {
		return nil, err
	}
	if execErr != nil {
		return nil, execErr
	}

	if cacheable && rs != nil {
		s.cache.Set(ctx, userID, outcome.Query, rs)
	}

	return &ExecuteResult{Rows: rs, Record: rec, Command: outcome.Command}, nil
}

func (s *QueryService) record(ctx context.Context, userID int64, queryText string) (*model.QueryRecord, error) {
	rec, err := s.queries.Create(ctx, userID, queryText)
	if err != nil {
		return nil, fmt.Errorf("запись истории: %w", err)
	}
	return rec, nil
}
