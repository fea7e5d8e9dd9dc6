package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/civitrack/civitrack/internal/budget"
)

// exportTimeout bounds a shared render once it is detached from the
// request that started it.
const exportTimeout = 45 * time.Second

type exportResult struct {
	pdf []byte
}

// exportProject streams the itemized PDF. Identical concurrent requests from
// the same user share one Gotenberg render.
func (h *Handler) exportProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	if h.exporter == nil {
		http.Error(w, "PDF export is not configured", http.StatusServiceUnavailable)
		return
	}
	user := currentUser(r)
	key := fmt.Sprintf("%d:%d", user.ID, id)
	value, err, joined := h.singleflightExport(r.Context(), key, func(ctx context.Context) (any, error) {
		report, err := h.service.BuildReport(ctx, user.ID, id, user.Username, h.now())
		if err != nil {
			return nil, err
		}
		pdf, err := h.exporter.Export(ctx, report)
		if err != nil {
			return nil, fmt.Errorf("export project %d: %w", id, err)
		}
		return exportResult{pdf: pdf}, nil
	})
	if err != nil {
		if isLookupError(err) {
			h.fail(w, r, err)
			return
		}
		h.logger.Error("export project pdf", slog.Any("error", err), slog.Int64("project_id", id))
		http.Error(w, "Could not generate the PDF report, please try again.", http.StatusBadGateway)
		return
	}
	res := value.(exportResult)
	if joined {
		h.logger.Debug("export shared in-flight render", slog.Int64("project_id", id))
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=project-%d-report.pdf", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.pdf)
}

func (h *Handler) singleflightExport(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := h.exports.DoChan(key, func() (any, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.exportTimeout)
		defer cancel()
		return fn(renderCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

func isLookupError(err error) bool {
	return errors.Is(err, budget.ErrNotFound) || errors.Is(err, budget.ErrUnauthenticated)
}
