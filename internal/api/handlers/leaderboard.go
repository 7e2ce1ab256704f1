// leaderboard.go — обработчик POST /leaderboard.
// С projectIds — сборка через кэш проектов, без них — лучшие проекты последнего расчёта.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/chai-api/internal/api/contract"
	apierrors "github.com/bigkaa/chai-api/internal/api/errors"
	"github.com/bigkaa/chai-api/internal/projector"
)

// GetLeaderboard — рейтинг проектов.
func (h *APIHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req contract.LeaderboardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.Limit == nil {
		apierrors.ValidationError(w, "limit is required")
		return
	}

	var (
		docs []*projector.Document
		err  error
	)
	if req.ProjectIds != nil {
		docs, err = h.leaderboard.Batch(r.Context(), *req.ProjectIds, *req.Limit)
	} else {
		docs, err = h.leaderboard.Top(r.Context(), *req.Limit)
	}
	if err != nil {
		if isInputError(err) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка сборки leaderboard",
			slog.Bool("batch", req.ProjectIds != nil),
			slog.Int("limit", *req.Limit),
			slog.String("error", err.Error()),
		)
		apierrors.LookupFailed(w)
		return
	}

	writeJSON(w, http.StatusOK, documents(docs))
}
