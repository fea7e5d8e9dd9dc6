package http

import (
	"net/http"
	"strings"

	"github.com/civitrack/civitrack/internal/budget"
)

type entryForm struct {
	Name   string
	Amount string
	Date   string
}

func (h *Handler) showEditSubBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	row, err := h.service.GetSubBranch(r.Context(), currentUser(r).ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "pages/subbranch_edit.html", "Edit entry", map[string]any{
		"SubBranch": row,
		"Form":      entryForm{Name: row.Name, Amount: row.Amount.StringFixed(2), Date: row.Date.Format(dateLayout)},
		"Errors":    map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) updateSubBranch(w http.ResponseWriter, r *http.Request) {
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
	current, err := h.service.GetSubBranch(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	form := readEntryForm(r)
	in, errs := form.subBranchInput()
	if len(errs) == 0 {
		updated, err := h.service.UpdateSubBranch(r.Context(), userID, id, in)
		if err == nil {
			h.redirectWithFlash(w, r, branchPath(updated.BranchID), "success", "Sub-branch updated successfully!")
			return
		}
		if !isInputError(err) {
			h.fail(w, r, err)
			return
		}
		errs = fieldErrors(err)
	}
	h.render(w, r, "pages/subbranch_edit.html", "Edit entry", map[string]any{
		"SubBranch": current,
		"Form":      form,
		"Errors":    errs,
	}, http.StatusBadRequest)
}

func (h *Handler) deleteSubBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	branchID, err := h.service.DeleteSubBranch(r.Context(), currentUser(r).ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, branchPath(branchID), "success", "Entry deleted successfully and amount added back!")
}

func (h *Handler) showEditRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	row, err := h.service.GetRelease(r.Context(), currentUser(r).ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "pages/release_edit.html", "Edit release", map[string]any{
		"Release": row,
		"Form":    entryForm{Amount: row.Amount.StringFixed(2), Date: row.Date.Format(dateLayout)},
		"Errors":  map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) updateRelease(w http.ResponseWriter, r *http.Request) {
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
	current, err := h.service.GetRelease(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	form := readEntryForm(r)
	in, errs := form.releaseInput()
	if len(errs) == 0 {
		updated, err := h.service.UpdateRelease(r.Context(), userID, id, in)
		if err == nil {
			h.redirectWithFlash(w, r, releasesPath(updated.ProjectID), "success", "Released history updated successfully!")
			return
		}
		if !isInputError(err) {
			h.fail(w, r, err)
			return
		}
		errs = fieldErrors(err)
	}
	h.render(w, r, "pages/release_edit.html", "Edit release", map[string]any{
		"Release": current,
		"Form":    form,
		"Errors":  errs,
	}, http.StatusBadRequest)
}

func (h *Handler) deleteRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	projectID, err := h.service.DeleteRelease(r.Context(), currentUser(r).ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, releasesPath(projectID), "success", "Released entry deleted successfully and amount added back!")
}

func readEntryForm(r *http.Request) entryForm {
	return entryForm{
		Name:   strings.TrimSpace(r.PostFormValue("name")),
		Amount: strings.TrimSpace(r.PostFormValue("amount")),
		Date:   strings.TrimSpace(r.PostFormValue("date")),
	}
}

func (f entryForm) parse() (budget.ReleaseInput, map[string]string) {
	errs := map[string]string{}
	amount, err := budget.ParseAmount(f.Amount)
	if err != nil {
		errs["Amount"] = "Enter a non-negative amount with at most 2 decimal places."
	}
	date, ok := parseDate(f.Date)
	if !ok {
		errs["Date"] = "Enter a valid date."
	}
	return budget.ReleaseInput{Amount: amount, Date: date}, errs
}

func (f entryForm) releaseInput() (budget.ReleaseInput, map[string]string) {
	return f.parse()
}

func (f entryForm) subBranchInput() (budget.SubBranchInput, map[string]string) {
	in, errs := f.parse()
	return budget.SubBranchInput{Name: f.Name, Amount: in.Amount, Date: in.Date}, errs
}
