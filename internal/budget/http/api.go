package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/civitrack/civitrack/internal/budget"
	"github.com/civitrack/civitrack/internal/platform/httpx"
)

type summaryResponse struct {
	ProjectID        int64  `json:"project_id"`
	Amount           string `json:"amount"`
	TotalReleased    string `json:"total_released"`
	TotalBranchSpent string `json:"total_branch_spent"`
	Remaining        string `json:"remaining"`
	BottomAmount     string `json:"bottom_amount"`
}

func (h *Handler) summaryJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	summary, err := h.service.Summary(r.Context(), currentUser(r).ID, id)
	if err != nil {
		switch {
		case errors.Is(err, budget.ErrNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, budget.ErrUnauthenticated):
			httpx.RespondError(w, httpx.ErrUnauthorized)
		default:
			h.logger.Error("project summary", slog.Any("error", err), slog.Int64("project_id", id))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, summaryResponse{
		ProjectID:        id,
		Amount:           summary.Amount.StringFixed(2),
		TotalReleased:    summary.TotalReleased.StringFixed(2),
		TotalBranchSpent: summary.TotalBranchSpent.StringFixed(2),
		Remaining:        summary.Remaining.StringFixed(2),
		BottomAmount:     summary.BottomAmount.StringFixed(2),
	})
}
