// schema.go — обработчики /api/schema.
package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/sourabh1428/query-editor/internal/api/errors"
	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/service"
	"github.com/sourabh1428/query-editor/internal/token"
)

type columnResponse struct {
	ColumnName    string  `json:"column_name"`
	DataType      string  `json:"data_type"`
	IsNullable    string  `json:"is_nullable"`
	ColumnDefault *string `json:"column_default"`
}

type foreignKeyResponse struct {
	ColumnName        string `json:"column_name"`
	ForeignTableName  string `json:"foreign_table_name"`
	ForeignColumnName string `json:"foreign_column_name"`
}

type tableResponse struct {
	Message     string               `json:"message"`
	Table       string               `json:"table"`
	Columns     []columnResponse     `json:"columns"`
	PrimaryKeys []string             `json:"primaryKeys"`
	ForeignKeys []foreignKeyResponse `json:"foreignKeys"`
	SampleData  *model.ResultSet     `json:"sampleData"`
}

// ListTables — GET /api/schema/tables.
func (h *APIHandler) ListTables(w http.ResponseWriter, r *http.Request, _ *token.Identity) {
	tables, err := h.schema.ListTables(r.Context())
	if err != nil {
		h.internalError(w, r, "Ошибка получения списка таблиц", err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Tables retrieved successfully",
		"tables":  tables,
	})
}

// DescribeTable — GET /api/schema/tables/{name}.
func (h *APIHandler) DescribeTable(w http.ResponseWriter, r *http.Request, _ *token.Identity) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		apierrors.ValidationError(w, "Invalid table name")
		return
	}
	if name == "" {
		apierrors.ValidationError(w, "Table name is required")
		return
	}

	ts, err := h.schema.DescribeTable(r.Context(), name)
	if err != nil {
		var execErr *service.ExecutionError
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Table not found")
		case errors.As(err, &execErr):
			apierrors.ExecutionError(w, execErr.Message)
		default:
			h.internalError(w, r, "Ошибка получения описания таблицы", err)
		}
		return
	}

	resp := tableResponse{
		Message:     "Table schema retrieved successfully",
		Table:       ts.Name,
		Columns:     make([]columnResponse, 0, len(ts.Columns)),
		PrimaryKeys: ts.PrimaryKeys,
		ForeignKeys: make([]foreignKeyResponse, 0, len(ts.ForeignKeys)),
		SampleData:  ts.SampleData,
	}
	for _, c := range ts.Columns {
		resp.Columns = append(resp.Columns, columnResponse{
			ColumnName:    c.Name,
			DataType:      c.DataType,
			IsNullable:    c.IsNullable,
			ColumnDefault: c.Default,
		})
	}
	for _, fk := range ts.ForeignKeys {
		resp.ForeignKeys = append(resp.ForeignKeys, foreignKeyResponse(fk))
	}
	if resp.PrimaryKeys == nil {
		resp.PrimaryKeys = []string{}
	}
	if resp.SampleData == nil {
		resp.SampleData = &model.ResultSet{}
	}
	writeJSON(w, http.StatusOK, resp)
}
