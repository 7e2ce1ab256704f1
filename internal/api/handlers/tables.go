// tables.go — обработчики GET /tables, /tables/{table}, /tables/{table}/{id}.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bigkaa/chai-api/internal/api/contract"
	apierrors "github.com/bigkaa/chai-api/internal/api/errors"
	"github.com/bigkaa/chai-api/internal/service"
)

// ListTables — страница списка таблиц.
func (h *APIHandler) ListTables(w http.ResponseWriter, _ *http.Request, params contract.ListTablesParams) {
	list := h.tables.List(params.Page, params.Limit)

	writeJSON(w, http.StatusOK, contract.TableListResponse{
		TotalCount: list.TotalCount,
		Page:       list.Page,
		Limit:      list.Limit,
		TotalPages: list.TotalPages,
		Data:       list.Tables,
	})
}

// GetTable — страница строк таблицы.
func (h *APIHandler) GetTable(w http.ResponseWriter, r *http.Request, table contract.TableName, params contract.GetTableParams) {
	page, err := h.tables.Rows(r.Context(), table, params.Page, params.Limit)
	if err != nil {
		h.writeTableError(w, table, err)
		return
	}

	writeJSON(w, http.StatusOK, contract.TablePageResponse{
		Table:      page.Table,
		TotalCount: page.TotalCount,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
		Columns:    page.Columns,
		Data:       documents(page.Data),
	})
}

// GetTableRow — строка таблицы по id.
func (h *APIHandler) GetTableRow(w http.ResponseWriter, r *http.Request, table contract.TableName, id contract.RowId) {
	doc, err := h.tables.Row(r.Context(), table, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, fmt.Sprintf("no row found with id '%s' in table '%s'", id, table))
			return
		}
		h.writeTableError(w, table, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *APIHandler) writeTableError(w http.ResponseWriter, table string, err error) {
	if errors.Is(err, service.ErrUnknownTable) || errors.Is(err, service.ErrNotFound) {
		apierrors.NotFound(w, fmt.Sprintf("table '%s' not found", table))
		return
	}
	h.logger.Error("Ошибка чтения таблицы",
		slog.String("table", table),
		slog.String("error", err.Error()),
	)
	apierrors.QueryFailed(w)
}
