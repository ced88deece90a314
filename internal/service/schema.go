// schema.go — интроспекция схемы базы для боковой панели редактора.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/repository"
)

// sampleRowsLimit — количество строк-примеров в описании таблицы.
const sampleRowsLimit = 5

// SchemaService — список таблиц и их описание.
type SchemaService struct {
	schema   repository.SchemaRepository
	executor QueryExecutor
	logger   *slog.Logger
}

// NewSchemaService создаёт сервис интроспекции.
func NewSchemaService(schema repository.SchemaRepository, executor QueryExecutor, logger *slog.Logger) *SchemaService {
	return &SchemaService{
		schema:   schema,
		executor: executor,
		logger:   logger.With(slog.String("component", "schema_service")),
	}
}

// ListTables возвращает базовые таблицы схемы public.
func (s *SchemaService) ListTables(ctx context.Context) ([]string, error) {
	tables, err := s.schema.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("список таблиц: %w", err)
	}
	return tables, nil
}

// DescribeTable возвращает колонки, ключи и до 5 строк таблицы.
// Несуществующая таблица — ErrNotFound.
func (s *SchemaService) DescribeTable(ctx context.Context, name string) (*model.TableSchema, error) {
	exists, err := s.schema.TableExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("проверка таблицы: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	columns, err := s.schema.Columns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("колонки таблицы: %w", err)
	}
	pks, err := s.schema.PrimaryKeys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("первичный ключ таблицы: %w", err)
	}
	fks, err := s.schema.ForeignKeys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("внешние ключи таблицы: %w", err)
	}

	sample, err := s.executor.Execute(ctx, sampleQuery(name))
	if err != nil {
		return nil, fmt.Errorf("строки-примеры: %w", err)
	}
	if sample == nil {
		sample = &model.ResultSet{Columns: []string{}, Rows: [][]any{}}
	}

	return &model.TableSchema{
		Name:        name,
		Columns:     columns,
		PrimaryKeys: pks,
		ForeignKeys: fks,
		SampleData:  sample,
	}, nil
}

// sampleQuery строит SELECT с экранированным идентификатором таблицы.
func sampleQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", pgx.Identifier{"public", table}.Sanitize(), sampleRowsLimit)
}
