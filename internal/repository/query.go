package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sourabh1428/query-editor/internal/domain/model"
)

// queryColumns — список столбцов таблицы queries для SELECT-запросов.
const queryColumns = `id, user_id, query_text, created_at, is_favorite, favorite_name`

// QueryRepository — история запросов и избранное.
// Все операции над существующей записью фильтруют по (id, user_id):
// чужая запись неотличима от несуществующей (ErrNotFound).
type QueryRepository interface {
	// Create добавляет запись истории (is_favorite=false, favorite_name=NULL).
	Create(ctx context.Context, userID int64, queryText string) (*model.QueryRecord, error)
	// ListByUser возвращает записи пользователя, новые первыми.
	ListByUser(ctx context.Context, userID int64, favoritesOnly bool) ([]*model.QueryRecord, error)
	// GetOwned возвращает запись, принадлежащую пользователю.
	GetOwned(ctx context.Context, id, userID int64) (*model.QueryRecord, error)
	// ToggleFavorite атомарно инвертирует is_favorite и возвращает новое значение.
	ToggleFavorite(ctx context.Context, id, userID int64) (bool, error)
	// SetFavoriteName задаёт favorite_name независимо от is_favorite.
	SetFavoriteName(ctx context.Context, id, userID int64, name string) (*model.QueryRecord, error)
	// Delete удаляет запись.
	Delete(ctx context.Context, id, userID int64) error
}

type queryRepo struct {
	db DBTX
}

// NewQueryRepository создаёт репозиторий истории запросов.
func NewQueryRepository(db DBTX) QueryRepository {
	return &queryRepo{db: db}
}

func (r *queryRepo) Create(ctx context.Context, userID int64, queryText string) (*model.QueryRecord, error) {
	rec, err := scanQuery(r.db.QueryRow(ctx,
		`INSERT INTO queries (user_id, query_text)
		 VALUES ($1, $2)
		 RETURNING `+queryColumns,
		userID, queryText,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка записи истории: %w", err)
	}
	return rec, nil
}

func (r *queryRepo) ListByUser(ctx context.Context, userID int64, favoritesOnly bool) ([]*model.QueryRecord, error) {
	query := `SELECT ` + queryColumns + ` FROM queries WHERE user_id = $1`
	if favoritesOnly {
		query += ` AND is_favorite`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	records := make([]*model.QueryRecord, 0)
	for rows.Next() {
		rec, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения записи истории: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации истории: %w", err)
	}
	return records, nil
}

func (r *queryRepo) GetOwned(ctx context.Context, id, userID int64) (*model.QueryRecord, error) {
	rec, err := scanQuery(r.db.QueryRow(ctx,
		`SELECT `+queryColumns+` FROM queries WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		return nil, rowError(err, "получения запроса")
	}
	return rec, nil
}

func (r *queryRepo) ToggleFavorite(ctx context.Context, id, userID int64) (bool, error) {
	var isFavorite bool
	err := r.db.QueryRow(ctx,
		`UPDATE queries SET is_favorite = NOT is_favorite
		 WHERE id = $1 AND user_id = $2
		 RETURNING is_favorite`,
		id, userID,
	).Scan(&isFavorite)
	if err != nil {
		return false, rowError(err, "переключения избранного")
	}
	return isFavorite, nil
}

func (r *queryRepo) SetFavoriteName(ctx context.Context, id, userID int64, name string) (*model.QueryRecord, error) {
	rec, err := scanQuery(r.db.QueryRow(ctx,
		`UPDATE queries SET favorite_name = $3
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+queryColumns,
		id, userID, name,
	))
	if err != nil {
		return nil, rowError(err, "переименования запроса")
	}
	return rec, nil
}

func (r *queryRepo) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM queries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления запроса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanQuery сканирует строку в QueryRecord.
func scanQuery(row pgx.Row) (*model.QueryRecord, error) {
	rec := &model.QueryRecord{}
	err := row.Scan(&rec.ID, &rec.UserID, &rec.QueryText, &rec.CreatedAt, &rec.IsFavorite, &rec.FavoriteName)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
