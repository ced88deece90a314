// executor.go — выполнение произвольного SQL пользователя.
// Один вызов — одно выделенное соединение и одна транзакция:
// при ошибке откат, при успехе коммит, соединение всегда возвращается.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sourabh1428/query-editor/internal/domain/model"
)

// Prometheus-метрики выполнения запросов.
var (
	queryExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qe_query_executions_total",
		Help: "Общее количество выполнений пользовательского SQL.",
	}, []string{"status"})
	queryExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qe_query_execution_duration_seconds",
		Help:    "Длительность выполнения пользовательского SQL.",
		Buckets: prometheus.DefBuckets,
	})
)

// QueryExecutor выполняет SQL-текст.
// nil-результат без ошибки означает успешную команду без набора строк.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (*model.ResultSet, error)
}

// SQLExecutor — QueryExecutor поверх database/sql.
type SQLExecutor struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// NewSQLExecutor создаёт исполнитель. timeout == 0 — без ограничения времени.
func NewSQLExecutor(db *sql.DB, timeout time.Duration, logger *slog.Logger) *SQLExecutor {
	return &SQLExecutor{
		db:      db,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "sql_executor")),
	}
}

// Execute выполняет запрос. Ошибки СУБД возвращаются как *ExecutionError
// с исходным сообщением.
func (e *SQLExecutor) Execute(ctx context.Context, query string) (*model.ResultSet, error) {
	start := time.Now()
	rs, err := e.execute(ctx, query)
	queryExecutionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		queryExecutionsTotal.WithLabelValues("error").Inc()
		e.logger.Debug("Ошибка выполнения запроса",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, &ExecutionError{Message: err.Error(), Err: err}
	}

	queryExecutionsTotal.WithLabelValues("ok").Inc()
	return rs, nil
}

func (e *SQLExecutor) execute(ctx context.Context, query string) (rs *model.ResultSet, err error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				e.logger.Warn("Ошибка отката транзакции", slog.String("error", rbErr.Error()))
			}
		}
	}()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	rs, err = collectRows(rows)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return rs, nil
}

// collectRows читает все строки и закрывает rows.
// Запрос без описанных колонок даёт nil.
func collectRows(rows *sql.Rows) (*model.ResultSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, rows.Err()
	}

	rs := &model.ResultSet{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = model.NormalizeValue(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return rs, nil
}
