// queries.go — обработчики /api/queries: выполнение, история, избранное, выгрузка.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/sourabh1428/query-editor/internal/api/errors"
	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/domain/querypolicy"
	"github.com/sourabh1428/query-editor/internal/service"
	"github.com/sourabh1428/query-editor/internal/token"
)

const (
	msgQueryNotFound = "Query not found"
	msgNoResults     = "No results to download"
)

type executeRequest struct {
	Query string `json:"query" validate:"required"`
}

type executeResponse struct {
	Message  string           `json:"message"`
	Columns  []string         `json:"columns"`
	Result   *model.ResultSet `json:"result"`
	Cached   bool             `json:"cached"`
	Command  string           `json:"command"`
	QueryID  int64            `json:"query_id"`
	RowCount int              `json:"row_count"`
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// ExecuteQuery — POST /api/queries/execute.
func (h *APIHandler) ExecuteQuery(w http.ResponseWriter, r *http.Request, id *token.Identity) {
	var req executeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Query is required")
		return
	}

	res, err := h.queries.Execute(r.Context(), id.UserID, id.Role, req.Query)
	if err != nil {
		var denied *querypolicy.DeniedError
		var execErr *service.ExecutionError
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, "Query is required")
		case errors.As(err, &denied):
			apierrors.QueryDenied(w, denied.Reason)
		case errors.As(err, &execErr):
			apierrors.ExecutionError(w, execErr.Message)
		default:
			h.internalError(w, r, "Ошибка выполнения запроса", err)
		}
		return
	}

	resp := executeResponse{
		Message:  "Query executed successfully",
		Columns:  []string{},
		Result:   res.Rows,
		Cached:   res.Cached,
		Command:  res.Command,
		RowCount: res.Rows.Len(),
	}
	if res.Cached {
		resp.Message = "Query executed successfully (cached)"
	}
	if res.Rows != nil {
		resp.Columns = res.Rows.Columns
	}
	if res.Record != nil {
		resp.QueryID = res.Record.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListHistory — GET /api/queries/history.
func (h *APIHandler) ListHistory(w http.ResponseWriter, r *http.Request, id *token.Identity) {
	records, err := h.history.List(r.Context(), id.UserID)
	if err != nil {
		h.internalError(w, r, "Ошибка получения истории", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Query history retrieved successfully",
		"history": toQueryRecordList(records),
	})
}

// ListFavorites — GET /api/queries/favorites.
func (h *APIHandler) ListFavorites(w http.ResponseWriter, r *http.Request, id *token.Identity) {
	records, err := h.history.ListFavorites(r.Context(), id.UserID)
	if err != nil {
		h.internalError(w, r, "Ошибка получения избранного", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Favorite queries retrieved successfully",
		"favorites": toQueryRecordList(records),
	})
}

// ToggleFavorite — PUT /api/queries/{id}/favorite.
func (h *APIHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request, id *token.Identity) {
	queryID, ok := queryIDParam(w, r)
	if !ok {
		return
	}

	fav, err := h.history.ToggleFavorite(r.Context(), queryID, id.UserID)
	if err != nil {
		h.historyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Query favorite status updated",
		"is_favorite": fav,
	})
}

// RenameFavorite — PUT /api/queries/{id}/favorite/name.
func (h *APIHandler) RenameFavorite(w http.ResponseWriter, r *http.Request, id *token.Identity) {
	queryID, ok := queryIDParam(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Name is required")
		return
	}

	rec, err := h.history.Rename(r.Context(), queryID, id.UserID, req.Name)
	if err != nil {
		h.historyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Query name updated",
		"query":   toQueryRecordResponse(rec),
	})
}

// DeleteQuery — DELETE /api/queries/{id}.
func (h *APIHandler) DeleteQuery(w http.ResponseWriter, r *http.Request, id *token.Identity) {
	queryID, ok := queryIDParam(w, r)
	if !ok {
		return
	}
	if err := h.history.Delete(r.Context(), queryID, id.UserID); err != nil {
		h.historyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Query deleted successfully"})
}

// DownloadQuery — GET /api/queries/{id}/download. Повторно выполняет
// сохранённый запрос и отдаёт результат в CSV.
func (h *APIHandler) DownloadQuery(w http.ResponseWriter, r *http.Request, id *token.Identity) {
	queryID, ok := queryIDParam(w, r)
	if !ok {
		return
	}

	rs, err := h.history.DownloadTable(r.Context(), queryID, id.UserID)
	if err != nil {
		h.historyError(w, r, err)
		return
	}

	if err := writeCSV(w, csvFilename(queryID), rs); err != nil {
		h.logger.Warn("Ошибка записи CSV",
			slog.Int64("query_id", queryID),
			slog.String("error", err.Error()),
		)
	}
}

// historyError отображает ошибки HistoryService в HTTP-ответы.
func (h *APIHandler) historyError(w http.ResponseWriter, r *http.Request, err error) {
	var execErr *service.ExecutionError
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msgQueryNotFound)
	case errors.Is(err, service.ErrNoData):
		apierrors.NoData(w, msgNoResults)
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, "Name is required")
	case errors.As(err, &execErr):
		apierrors.ExecutionError(w, execErr.Message)
	default:
		h.internalError(w, r, "Ошибка операции с историей", err)
	}
}

// queryIDParam разбирает {id} из пути. Некорректный id — 400.
func queryIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id <= 0 {
		apierrors.ValidationError(w, "Invalid query id")
		return 0, false
	}
	return id, true
}
