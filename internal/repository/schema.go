package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sourabh1428/query-editor/internal/domain/model"
)

// SchemaRepository — интроспекция схемы public через information_schema.
type SchemaRepository interface {
	// ListTables возвращает имена базовых таблиц схемы public по алфавиту.
	ListTables(ctx context.Context) ([]string, error)
	// TableExists проверяет наличие базовой таблицы в схеме public.
	TableExists(ctx context.Context, table string) (bool, error)
	// Columns возвращает колонки таблицы в порядке ordinal_position.
	Columns(ctx context.Context, table string) ([]model.ColumnInfo, error)
	// PrimaryKeys возвращает колонки первичного ключа.
	PrimaryKeys(ctx context.Context, table string) ([]string, error)
	// ForeignKeys возвращает внешние ключи таблицы.
	ForeignKeys(ctx context.Context, table string) ([]model.ForeignKey, error)
}

type schemaRepo struct {
	db DBTX
}

// NewSchemaRepository создаёт репозиторий интроспекции схемы.
func NewSchemaRepository(db DBTX) SchemaRepository {
	return &schemaRepo{db: db}
}

func (r *schemaRepo) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка таблиц: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка таблиц: %w", err)
	}
	return tables, nil
}

func (r *schemaRepo) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_type = 'BASE TABLE' AND table_name = $1
		)`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки таблицы: %w", err)
	}
	return exists, nil
}

func (r *schemaRepo) Columns(ctx context.Context, table string) ([]model.ColumnInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения колонок: %w", err)
	}
	defer rows.Close()

	columns := make([]model.ColumnInfo, 0)
	for rows.Next() {
		var c model.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.Default); err != nil {
			return nil, fmt.Errorf("ошибка чтения колонки: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации колонок: %w", err)
	}
	return columns, nil
}

func (r *schemaRepo) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		 WHERE tc.constraint_type = 'PRIMARY KEY'
		   AND tc.table_schema = 'public'
		   AND tc.table_name = $1
		 ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения первичного ключа: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения первичного ключа: %w", err)
	}
	return keys, nil
}

func (r *schemaRepo) ForeignKeys(ctx context.Context, table string) ([]model.ForeignKey, error) {
	rows, err := r.db.Query(ctx,
		`SELECT kcu.column_name,
		        ccu.table_name AS foreign_table_name,
		        ccu.column_name AS foreign_column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		 JOIN information_schema.constraint_column_usage ccu
		   ON ccu.constraint_name = tc.constraint_name
		  AND ccu.table_schema = tc.table_schema
		 WHERE tc.constraint_type = 'FOREIGN KEY'
		   AND tc.table_schema = 'public'
		   AND tc.table_name = $1
		 ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения внешних ключей: %w", err)
	}
	defer rows.Close()

	fks := make([]model.ForeignKey, 0)
	for rows.Next() {
		var fk model.ForeignKey
		if err := rows.Scan(&fk.ColumnName, &fk.ForeignTableName, &fk.ForeignColumnName); err != nil {
			return nil, fmt.Errorf("ошибка чтения внешнего ключа: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации внешних ключей: %w", err)
	}
	return fks, nil
}
