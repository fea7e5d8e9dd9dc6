package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/civitrack/civitrack/internal/budget"
)

type branchForm struct {
	Name string
}

func (h *Handler) showNewBranch(w http.ResponseWriter, r *http.Request) {
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
	h.render(w, r, "pages/branch_new.html", "New branch", map[string]any{
		"Project": detail.Project,
		"Form":    branchForm{},
		"Errors":  map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) createBranch(w http.ResponseWriter, r *http.Request) {
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
	form := branchForm{Name: strings.TrimSpace(r.PostFormValue("name"))}
	_, err := h.service.CreateBranch(r.Context(), userID, id, budget.BranchInput{Name: form.Name})
	if err == nil {
		h.redirectWithFlash(w, r, projectPath(id), "success", "Branch created successfully!")
		return
	}
	if !isInputError(err) {
		h.fail(w, r, err)
		return
	}
	detail, loadErr := h.service.GetProjectDetail(r.Context(), userID, id)
	if loadErr != nil {
		h.fail(w, r, loadErr)
		return
	}
	h.render(w, r, "pages/branch_new.html", "New branch", map[string]any{
		"Project": detail.Project,
		"Form":    form,
		"Errors":  fieldErrors(err),
	}, http.StatusBadRequest)
}

func (h *Handler) deleteBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	projectID, err := h.service.DeleteBranch(r.Context(), currentUser(r).ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, projectPath(projectID), "success", "Branch and all entries deleted successfully!")
}

func (h *Handler) showBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	history, err := h.service.GetBranchHistory(r.Context(), currentUser(r).ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "pages/branch_history.html", history.Branch.Name, map[string]any{
		"History": history,
		"Today":   today(h.now()),
	}, http.StatusOK)
}

// branchAction handles the add-entry and rename forms on the branch page.
func (h *Handler) branchAction(w http.ResponseWriter, r *http.Request) {
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
	case "add":
		amount, amountErr := budget.ParseAmount(r.PostFormValue("amount"))
		date, dateOK := parseDate(r.PostFormValue("date"))
		if amountErr != nil || !dateOK {
			h.redirectWithFlash(w, r, branchPath(id), "error", "Please fill all fields!")
			return
		}
		_, err := h.service.AddSubBranch(r.Context(), userID, id, budget.SubBranchInput{
			Name:   r.PostFormValue("name"),
			Amount: amount,
			Date:   date,
		})
		switch {
		case err == nil:
			h.redirectWithFlash(w, r, branchPath(id), "success", "Sub-branch added successfully!")
		case isInputError(err):
			h.redirectWithFlash(w, r, branchPath(id), "error", "Please fill all fields!")
		default:
			h.fail(w, r, err)
		}
		return
	case "update_name":
		err := h.service.RenameBranch(r.Context(), userID, id, r.PostFormValue("name"))
		switch {
		case err == nil:
			h.redirectWithFlash(w, r, branchPath(id), "success", "Branch name updated!")
		case errors.Is(err, budget.ErrEmptyBranchName):
			h.redirectWithFlash(w, r, branchPath(id), "error", "Branch name cannot be empty!")
		case isInputError(err):
			h.redirectWithFlash(w, r, branchPath(id), "error", "Error updating branch name!")
		default:
			h.fail(w, r, err)
		}
		return
	}
	http.Redirect(w, r, branchPath(id), http.StatusSeeOther)
}
