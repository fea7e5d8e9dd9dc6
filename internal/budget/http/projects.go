package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/civitrack/civitrack/internal/budget"
)

type projectForm struct {
	Name      string
	Amount    string
	StartDate string
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context(), currentUser(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "pages/projects_list.html", "Projects", map[string]any{"Projects": projects}, http.StatusOK)
}

func (h *Handler) showNewProject(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/project_new.html", "New project", map[string]any{
		"Form":   projectForm{StartDate: today(h.now())},
		"Errors": map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := projectForm{
		Name:      strings.TrimSpace(r.PostFormValue("name")),
		Amount:    strings.TrimSpace(r.PostFormValue("amount")),
		StartDate: strings.TrimSpace(r.PostFormValue("start_date")),
	}
	errs := map[string]string{}
	amount, err := budget.ParseAmount(form.Amount)
	if err != nil {
		errs["Amount"] = "Enter a non-negative amount with at most 2 decimal places."
	}
	start, ok := parseDate(form.StartDate)
	if !ok {
		errs["StartDate"] = "Enter a valid date."
	}
	if len(errs) == 0 {
		_, err = h.service.CreateProject(r.Context(), currentUser(r).ID, budget.ProjectInput{Name: form.Name, Amount: amount, StartDate: start})
		if err == nil {
			h.redirectWithFlash(w, r, "/projects", "success", "Project created successfully!")
			return
		}
		if !isInputError(err) {
			h.fail(w, r, err)
			return
		}
		errs = fieldErrors(err)
	}
	h.render(w, r, "pages/project_new.html", "New project", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
}

func (h *Handler) showProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	detail, err := h.service.GetProjectDetail(r.Context(), currentUser(r).ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "pages/project_detail.html", detail.Project.Name, map[string]any{
		"Detail": detail,
		"Today":  today(h.now()),
	}, http.StatusOK)
}

// projectAction handles the two forms on the project page.
func (h *Handler) projectAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	userID := currentUser(r).ID
	switch r.PostFormValue("action") {
	case "update_amount":
		_, err := h.service.UpdateProjectAmount(r.Context(), userID, id, r.PostFormValue("amount"))
		switch {
		case err == nil:
			h.redirectWithFlash(w, r, projectPath(id), "success", "Project amount updated!")
		case isInputError(err):
			h.redirectWithFlash(w, r, projectPath(id), "error", "Invalid amount!")
		default:
			h.fail(w, r, err)
		}
		return
	case "release_amount":
		amount, amountErr := budget.ParseAmount(r.PostFormValue("amount"))
		date, dateOK := parseDate(r.PostFormValue("date"))
		if amountErr != nil || !dateOK {
			h.redirectWithFlash(w, r, projectPath(id), "error", "Please fill all fields!")
			return
		}
		_, err := h.service.ReleaseFunds(r.Context(), userID, id, budget.ReleaseInput{Amount: amount, Date: date})
		switch {
		case err == nil:
			h.logger.Info("funds released", slog.Int64("project_id", id), slog.String("amount", amount.StringFixed(2)))
			h.redirectWithFlash(w, r, projectPath(id), "success", "Amount released successfully!")
		case isInputError(err):
			h.redirectWithFlash(w, r, projectPath(id), "error", "Please fill all fields!")
		default:
			h.fail(w, r, err)
		}
		return
	}
	http.Redirect(w, r, projectPath(id), http.StatusSeeOther)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	if err := h.service.DeleteProject(r.Context(), currentUser(r).ID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/projects", "success", "Project deleted successfully!")
}

func (h *Handler) showReleases(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	history, err := h.service.ListReleases(r.Context(), currentUser(r).ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "pages/release_history.html", "Released history", map[string]any{"History": history}, http.StatusOK)
}
