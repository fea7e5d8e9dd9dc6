package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/civitrack/civitrack/internal/budget"
	"github.com/civitrack/civitrack/internal/platform/httpx"
	"github.com/civitrack/civitrack/internal/shared"
	"github.com/civitrack/civitrack/internal/view"
)

const dateLayout = "2006-01-02"

// Service is the budget behaviour the handlers depend on.
type Service interface {
	CreateProject(ctx context.Context, userID int64, in budget.ProjectInput) (budget.Project, error)
	ListProjects(ctx context.Context, userID int64) ([]budget.Project, error)
	GetProjectDetail(ctx context.Context, userID, projectID int64) (budget.ProjectDetail, error)
	Summary(ctx context.Context, userID, projectID int64) (budget.Summary, error)
	UpdateProjectAmount(ctx context.Context, userID, projectID int64, raw string) (decimal.Decimal, error)
	DeleteProject(ctx context.Context, userID, projectID int64) error

	CreateBranch(ctx context.Context, userID, projectID int64, in budget.BranchInput) (budget.Branch, error)
	RenameBranch(ctx context.Context, userID, branchID int64, name string) error
	DeleteBranch(ctx context.Context, userID, branchID int64) (int64, error)
	GetBranchHistory(ctx context.Context, userID, branchID int64) (budget.BranchHistory, error)

	AddSubBranch(ctx context.Context, userID, branchID int64, in budget.SubBranchInput) (budget.SubBranch, error)
	GetSubBranch(ctx context.Context, userID, subBranchID int64) (budget.SubBranch, error)
	UpdateSubBranch(ctx context.Context, userID, subBranchID int64, in budget.SubBranchInput) (budget.SubBranch, error)
	DeleteSubBranch(ctx context.Context, userID, subBranchID int64) (int64, error)

	ReleaseFunds(ctx context.Context, userID, projectID int64, in budget.ReleaseInput) (budget.ReleasedHistory, error)
	GetRelease(ctx context.Context, userID, releaseID int64) (budget.ReleasedHistory, error)
	UpdateRelease(ctx context.Context, userID, releaseID int64, in budget.ReleaseInput) (budget.ReleasedHistory, error)
	DeleteRelease(ctx context.Context, userID, releaseID int64) (int64, error)
	ListReleases(ctx context.Context, userID, projectID int64) (budget.ReleaseHistory, error)

	BuildReport(ctx context.Context, userID, projectID int64, exportedBy string, now time.Time) (budget.Report, error)
}

// Exporter turns a report into PDF bytes.
type Exporter interface {
	Export(ctx context.Context, report budget.Report) ([]byte, error)
}

// Handler wires the project, branch and ledger pages.
type Handler struct {
	logger    *slog.Logger
	service   Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	exporter  Exporter
	rateLimit func(http.Handler) http.Handler
	exports   singleflight.Group
	now       func() time.Time

	exportTimeout time.Duration
}

// NewHandler constructs the budget handler.
func NewHandler(logger *slog.Logger, service Service, templates *view.Engine, csrf *shared.CSRFManager, exporter Exporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		if user, ok := shared.UserFromContext(r.Context()); ok {
			return "user:" + strconv.FormatInt(user.ID, 10), nil
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr, nil
		}
		return "ip:" + host, nil
	}))
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		exporter:  exporter,
		rateLimit: limiter,
		now:       time.Now,

		exportTimeout: exportTimeout,
	}
}

// MountRoutes registers the budget pages and the JSON summary endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(shared.RequireUser("/auth/login", nil))

		r.Get("/projects", h.listProjects)
		r.Get("/projects/new", h.showNewProject)
		r.Post("/projects/new", h.createProject)
		r.Get("/projects/{id}", h.showProject)
		r.Post("/projects/{id}", h.projectAction)
		r.Post("/projects/{id}/delete", h.deleteProject)
		r.Get("/projects/{id}/history", h.showReleases)
		r.With(h.rateLimit).Get("/projects/{id}/export", h.exportProject)
		r.Get("/projects/{id}/branches/new", h.showNewBranch)
		r.Post("/projects/{id}/branches/new", h.createBranch)

		r.Post("/branches/{id}/delete", h.deleteBranch)
		r.Get("/branches/{id}/history", h.showBranch)
		r.Post("/branches/{id}/history", h.branchAction)

		r.Get("/released/{id}/edit", h.showEditRelease)
		r.Post("/released/{id}/edit", h.updateRelease)
		r.Post("/released/{id}/delete", h.deleteRelease)

		r.Get("/subbranches/{id}/edit", h.showEditSubBranch)
		r.Post("/subbranches/{id}/edit", h.updateSubBranch)
		r.Post("/subbranches/{id}/delete", h.deleteSubBranch)
	})
	r.Group(func(r chi.Router) {
		r.Use(shared.RequireUser("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		})))
		r.Get("/api/projects/{id}/summary", h.summaryJSON)
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Username:    sess.Username(),
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// fail renders the outcome of a lookup or write that cannot continue.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, budget.ErrNotFound):
		h.notFound(w, r)
	case errors.Is(err, budget.ErrUnauthenticated):
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
	default:
		h.logger.Error("budget request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		h.render(w, r, "pages/error.html", "Error", map[string]any{"Message": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
	}
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/error.html", "Not found", map[string]any{"Message": "The page you requested does not exist."}, http.StatusNotFound)
}

func currentUser(r *http.Request) shared.CurrentUser {
	user, _ := shared.UserFromContext(r.Context())
	return user
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func projectPath(id int64) string { return "/projects/" + strconv.FormatInt(id, 10) }

func branchPath(id int64) string { return "/branches/" + strconv.FormatInt(id, 10) + "/history" }

func releasesPath(projectID int64) string { return projectPath(projectID) + "/history" }

func parseDate(raw string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	return t, err == nil
}

func today(now time.Time) string { return now.Format(dateLayout) }

// fieldErrors turns a service validation failure into per-field messages.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var vErr *budget.ValidationError
	if errors.As(err, &vErr) {
		for _, f := range vErr.Fields {
			switch f.Tag {
			case "required":
				out[f.Field] = "This field is required."
			case "max":
				out[f.Field] = "Ensure this value has at most 200 characters."
			default:
				out[f.Field] = "Enter a valid value."
			}
		}
	}
	if errors.Is(err, budget.ErrInvalidAmount) {
		out["Amount"] = "Enter a non-negative amount with at most 2 decimal places."
	}
	if len(out) == 0 {
		out["general"] = shared.UserSafeMessage(err)
	}
	return out
}

func isInputError(err error) bool {
	return errors.Is(err, budget.ErrValidation) || errors.Is(err, budget.ErrInvalidAmount)
}
