package budget

import (
	"context"
	"time"
)

// BranchSection is one branch of the itemized report with its line items.
type BranchSection struct {
	Branch  Branch
	Entries []SubBranch
}

// Report is the itemized budget export of a single project.
type Report struct {
	Project    Project
	Summary    Summary
	Branches   []BranchSection
	Releases   []ReleasedHistory
	ExportedAt time.Time
	ExportedBy string
}

// BuildReport gathers everything the itemized export prints, read in one
// transaction so the sections agree with each other.
func (s *Service) BuildReport(ctx context.Context, userID, projectID int64, exportedBy string, now time.Time) (Report, error) {
	if err := requireUser(userID); err != nil {
		return Report{}, err
	}
	var report Report
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		project, err := tx.GetProject(ctx, userID, projectID)
		if err != nil {
			return err
		}
		branches, err := tx.ListBranches(ctx, projectID)
		if err != nil {
			return err
		}
		sections := make([]BranchSection, 0, len(branches))
		for _, b := range branches {
			entries, err := tx.ListSubBranches(ctx, b.ID)
			if err != nil {
				return err
			}
			sections = append(sections, BranchSection{Branch: b, Entries: entries})
		}
		releases, err := tx.ListReleases(ctx, projectID)
		if err != nil {
			return err
		}
		report = Report{
			Project:    project,
			Summary:    ComputeSummary(project, branches),
			Branches:   sections,
			Releases:   releases,
			ExportedAt: now,
			ExportedBy: exportedBy,
		}
		return nil
	})
	return report, err
}
