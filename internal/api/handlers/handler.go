// handler.go — основной обработчик API, реализующий contract.ServerInterface.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/bigkaa/chai-api/internal/api/contract"
	"github.com/bigkaa/chai-api/internal/projector"
	"github.com/bigkaa/chai-api/internal/service"
)

// maxBodyBytes — предельный размер тела запроса (1000 UUID с запасом).
const maxBodyBytes = 1 << 20

// ProjectReader — операции с проектами (service.ProjectService).
type ProjectReader interface {
	Detail(ctx context.Context, id uuid.UUID) (*projector.Document, error)
	Batch(ctx context.Context, ids []uuid.UUID) ([]*projector.Document, error)
	Search(ctx context.Context, name string) ([]*projector.Document, error)
}

// LeaderboardReader — сборка рейтинга (service.LeaderboardService).
type LeaderboardReader interface {
	Batch(ctx context.Context, ids []uuid.UUID, limit int) ([]*projector.Document, error)
	Top(ctx context.Context, limit int) ([]*projector.Document, error)
}

// TableReader — просмотр таблиц (service.TableService).
type TableReader interface {
	List(page, limit *int) service.TableList
	Rows(ctx context.Context, table string, page, limit *int) (*service.TablePage, error)
	Row(ctx context.Context, table string, id uuid.UUID) (*projector.Document, error)
}

var _ contract.ServerInterface = (*APIHandler)(nil)

// APIHandler — основной обработчик API chai-api.
type APIHandler struct {
	health      *HealthHandler
	projects    ProjectReader
	leaderboard LeaderboardReader
	tables      TableReader
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	projects ProjectReader,
	leaderboard LeaderboardReader,
	tables TableReader,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:      health,
		projects:    projects,
		leaderboard: leaderboard,
		tables:      tables,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// Heartbeat — SELECT 1 через пул.
func (h *APIHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	h.health.Heartbeat(w, r)
}

// GetOpenAPI — встроенный OpenAPI-документ.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	h.health.GetOpenAPI(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. Ошибка пригодна для ответа клиенту.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return errors.New("invalid JSON request body")
	}
	return nil
}

// documents заменяет nil на пустой срез, чтобы в ответе был [], а не null.
func documents(docs []*projector.Document) []*projector.Document {
	if docs == nil {
		return []*projector.Document{}
	}
	return docs
}
