// Пакет contract — типы запросов/ответов и маршрутизация HTTP API chai-api
// (openapi.yaml). Структура повторяет chi-server из oapi-codegen:
// ServerInterface, обёртка с привязкой параметров и HandlerFromMux.
package contract

import (
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/chai-api/internal/projector"
)

// ProjectId — идентификатор проекта (канона).
type ProjectId = openapi_types.UUID //nolint:revive // имя из OpenAPI

// RowId — значение столбца id строки таблицы.
type RowId = openapi_types.UUID //nolint:revive // имя из OpenAPI

// TableName — имя таблицы схемы public.
type TableName = string

// ProjectName — подстрока имени проекта для поиска.
type ProjectName = string

// PaginationParams — параметры пагинации (?page=&limit=).
type PaginationParams struct {
	Page  *int `form:"page,omitempty" json:"page,omitempty"`
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// ListTablesParams — параметры GET /tables.
type ListTablesParams = PaginationParams

// GetTableParams — параметры GET /tables/{table}.
type GetTableParams = PaginationParams

// ProjectBatchRequest — тело POST /project/batch.
type ProjectBatchRequest struct {
	ProjectIds []openapi_types.UUID `json:"projectIds"`
}

// LeaderboardRequest — тело POST /leaderboard.
// Без projectIds возвращаются лучшие проекты последнего расчёта рейтинга.
// Limit обязателен; nil означает, что поле отсутствует в теле.
type LeaderboardRequest struct {
	ProjectIds *[]openapi_types.UUID `json:"projectIds,omitempty"`
	Limit      *int                  `json:"limit"`
}

// TableListResponse — страница списка таблиц.
type TableListResponse struct {
	TotalCount int64    `json:"total_count"`
	Page       int64    `json:"page"`
	Limit      int64    `json:"limit"`
	TotalPages int64    `json:"total_pages"`
	Data       []string `json:"data"`
}

// TablePageResponse — страница строк таблицы.
type TablePageResponse struct {
	Table      string                `json:"table"`
	TotalCount int64                 `json:"total_count"`
	Page       int64                 `json:"page"`
	Limit      int64                 `json:"limit"`
	TotalPages int64                 `json:"total_pages"`
	Columns    []string              `json:"columns"`
	Data       []*projector.Document `json:"data"`
}
