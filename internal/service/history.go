// history.go — история запросов и избранное пользователя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/repository"
)

// HistoryService — просмотр и управление историей запросов.
type HistoryService struct {
	queries  repository.QueryRepository
	executor QueryExecutor
	logger   *slog.Logger
}

// NewHistoryService создаёт сервис истории.
func NewHistoryService(queries repository.QueryRepository, executor QueryExecutor, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		queries:  queries,
		executor: executor,
		logger:   logger.With(slog.String("component", "history_service")),
	}
}

// List возвращает историю пользователя, новые записи первыми.
func (s *HistoryService) List(ctx context.Context, userID int64) ([]*model.QueryRecord, error) {
	records, err := s.queries.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("получение истории: %w", err)
	}
	return records, nil
}

// ListFavorites возвращает только избранные запросы.
func (s *HistoryService) ListFavorites(ctx context.Context, userID int64) ([]*model.QueryRecord, error) {
	records, err := s.queries.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("получение избранного: %w", err)
	}
	return records, nil
}

// ToggleFavorite инвертирует флаг избранного и возвращает новое значение.
func (s *HistoryService) ToggleFavorite(ctx context.Context, id, userID int64) (bool, error) {
	fav, err := s.queries.ToggleFavorite(ctx, id, userID)
	if err != nil {
		return false, mapRepoError(err, "переключение избранного")
	}
	return fav, nil
}

// Rename задаёт имя избранного запроса. Флаг is_favorite не меняется.
func (s *HistoryService) Rename(ctx context.Context, id, userID int64, name string) (*model.QueryRecord, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	rec, err := s.queries.SetFavoriteName(ctx, id, userID, name)
	if err != nil {
		return nil, mapRepoError(err, "переименование запроса")
	}
	return rec, nil
}

// Delete удаляет запись истории.
func (s *HistoryService) Delete(ctx context.Context, id, userID int64) error {
	if err := s.queries.Delete(ctx, id, userID); err != nil {
		return mapRepoError(err, "удаление запроса")
	}
	return nil
}

// DownloadTable повторно выполняет сохранённый запрос (в обход кэша)
// и возвращает его строки. Пустой результат — ErrNoData.
func (s *HistoryService) DownloadTable(ctx context.Context, id, userID int64) (*model.ResultSet, error) {
	rec, err := s.queries.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, mapRepoError(err, "получение запроса")
	}

	rs, err := s.executor.Execute(ctx, rec.QueryText)
	if err != nil {
		return nil, err
	}
	if rs.Len() == 0 {
		return nil, ErrNoData
	}

	s.logger.Debug("Запрос выполнен повторно для выгрузки",
		slog.Int64("query_id", id),
		slog.Int("rows", rs.Len()),
	)
	return rs, nil
}

// mapRepoError переводит ошибки репозитория в ошибки сервисного слоя.
func mapRepoError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
