package model

import "time"

// QueryRecord — запись истории запросов пользователя, таблица queries.
// Одна запись на каждую прошедшую валидацию попытку выполнения.
type QueryRecord struct {
	// ID — суррогатный ключ
	ID int64
	// UserID — владелец записи
	UserID int64
	// QueryText — выполненный текст (после переписывания INSERT)
	QueryText string
	// CreatedAt — время попытки выполнения
	CreatedAt time.Time
	// IsFavorite — отмечен ли запрос как избранный
	IsFavorite bool
	// FavoriteName — пользовательское имя избранного запроса
	FavoriteName *string
}

// ColumnInfo — описание колонки таблицы из information_schema.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable string
	Default    *string
}

// ForeignKey — внешний ключ таблицы.
type ForeignKey struct {
	ColumnName        string
	ForeignTableName  string
	ForeignColumnName string
}

// TableSchema — полное описание таблицы для редактора.
type TableSchema struct {
	Name        string
	Columns     []ColumnInfo
	PrimaryKeys []string
	ForeignKeys []ForeignKey
	// SampleData — до 5 строк таблицы
	SampleData *ResultSet
}
