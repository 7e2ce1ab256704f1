// projects.go — обработчики /project/{id}, /project/batch, /project/search/{name}.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/chai-api/internal/api/contract"
	apierrors "github.com/bigkaa/chai-api/internal/api/errors"
	"github.com/bigkaa/chai-api/internal/service"
)

// GetProject — карточка проекта.
func (h *APIHandler) GetProject(w http.ResponseWriter, r *http.Request, id contract.ProjectId) {
	doc, err := h.projects.Detail(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "project not found")
			return
		}
		h.logger.Error("Ошибка получения проекта",
			slog.String("project_id", id.String()),
			slog.String("error", err.Error()),
		)
		apierrors.LookupFailed(w)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// GetProjectsBatch — проекты по списку идентификаторов.
func (h *APIHandler) GetProjectsBatch(w http.ResponseWriter, r *http.Request) {
	var req contract.ProjectBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	docs, err := h.projects.Batch(r.Context(), req.ProjectIds)
	if err != nil {
		if isInputError(err) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка пакетного получения проектов",
			slog.Int("ids", len(req.ProjectIds)),
			slog.String("error", err.Error()),
		)
		apierrors.LookupFailed(w)
		return
	}

	writeJSON(w, http.StatusOK, documents(docs))
}

// SearchProjects — поиск по подстроке имени.
func (h *APIHandler) SearchProjects(w http.ResponseWriter, r *http.Request, name contract.ProjectName) {
	docs, err := h.projects.Search(r.Context(), name)
	if err != nil {
		if isInputError(err) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка поиска проектов",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		apierrors.LookupFailed(w)
		return
	}

	writeJSON(w, http.StatusOK, documents(docs))
}

// isInputError — ошибка вызвана содержимым запроса, а не зависимостями.
func isInputError(err error) bool {
	return errors.Is(err, service.ErrNoIdentifiers) ||
		errors.Is(err, service.ErrTooManyIdentifiers) ||
		errors.Is(err, service.ErrEmptySearch)
}
