package budget

import (
	"context"
	"strings"
)

// AddSubBranch books a line item under a branch and refreshes the branch total.
func (s *Service) AddSubBranch(ctx context.Context, userID, branchID int64, in SubBranchInput) (SubBranch, error) {
	if err := requireUser(userID); err != nil {
		return SubBranch{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateInput(in, in.Amount); err != nil {
		return SubBranch{}, err
	}
	var created SubBranch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBranch(ctx, userID, branchID); err != nil {
			return err
		}
		if err := tx.LockBranch(ctx, branchID); err != nil {
			return err
		}
		row, err := tx.InsertSubBranch(ctx, branchID, in)
		if err != nil {
			return err
		}
		created = row
		_, _, err = s.recalculateTotalSpent(ctx, tx, branchID)
		return err
	})
	return created, err
}

// GetSubBranch loads a single line item.
func (s *Service) GetSubBranch(ctx context.Context, userID, subBranchID int64) (SubBranch, error) {
	if err := requireUser(userID); err != nil {
		return SubBranch{}, err
	}
	var row SubBranch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.GetSubBranch(ctx, userID, subBranchID)
		row = found
		return err
	})
	return row, err
}

// UpdateSubBranch edits a line item and refreshes the branch total.
func (s *Service) UpdateSubBranch(ctx context.Context, userID, subBranchID int64, in SubBranchInput) (SubBranch, error) {
	if err := requireUser(userID); err != nil {
		return SubBranch{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateInput(in, in.Amount); err != nil {
		return SubBranch{}, err
	}
	var updated SubBranch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSubBranch(ctx, userID, subBranchID)
		if err != nil {
			return err
		}
		if err := tx.LockBranch(ctx, current.BranchID); err != nil {
			return err
		}
		if err := tx.UpdateSubBranch(ctx, subBranchID, in); err != nil {
			return err
		}
		current.Name, current.Amount, current.Date = in.Name, in.Amount, in.Date
		updated = current
		_, _, err = s.recalculateTotalSpent(ctx, tx, current.BranchID)
		return err
	})
	return updated, err
}

// DeleteSubBranch removes a line item, refreshes the branch total and returns
// the branch id.
func (s *Service) DeleteSubBranch(ctx context.Context, userID, subBranchID int64) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	var branchID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSubBranch(ctx, userID, subBranchID)
		if err != nil {
			return err
		}
		branchID = current.BranchID
		if err := tx.LockBranch(ctx, branchID); err != nil {
			return err
		}
		if err := tx.DeleteSubBranch(ctx, subBranchID); err != nil {
			return err
		}
		_, _, err = s.recalculateTotalSpent(ctx, tx, branchID)
		return err
	})
	return branchID, err
}

// ReleaseFunds records a fund release and refreshes the project total.
func (s *Service) ReleaseFunds(ctx context.Context, userID, projectID int64, in ReleaseInput) (ReleasedHistory, error) {
	if err := requireUser(userID); err != nil {
		return ReleasedHistory{}, err
	}
	if err := s.validateInput(in, in.Amount); err != nil {
		return ReleasedHistory{}, err
	}
	var created ReleasedHistory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProject(ctx, userID, projectID); err != nil {
			return err
		}
		if err := tx.LockProject(ctx, projectID); err != nil {
			return err
		}
		row, err := tx.InsertRelease(ctx, projectID, in)
		if err != nil {
			return err
		}
		created = row
		_, _, err = s.recalculateTotalReleased(ctx, tx, projectID)
		return err
	})
	return created, err
}

// GetRelease loads a single released history row.
func (s *Service) GetRelease(ctx context.Context, userID, releaseID int64) (ReleasedHistory, error) {
	if err := requireUser(userID); err != nil {
		return ReleasedHistory{}, err
	}
	var row ReleasedHistory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.GetRelease(ctx, userID, releaseID)
		row = found
		return err
	})
	return row, err
}

// UpdateRelease edits a release and refreshes the project total.
func (s *Service) UpdateRelease(ctx context.Context, userID, releaseID int64, in ReleaseInput) (ReleasedHistory, error) {
	if err := requireUser(userID); err != nil {
		return ReleasedHistory{}, err
	}
	if err := s.validateInput(in, in.Amount); err != nil {
		return ReleasedHistory{}, err
	}
	var updated ReleasedHistory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetRelease(ctx, userID, releaseID)
		if err != nil {
			return err
		}
		if err := tx.LockProject(ctx, current.ProjectID); err != nil {
			return err
		}
		if err := tx.UpdateRelease(ctx, releaseID, in); err != nil {
			return err
		}
		current.Amount, current.Date = in.Amount, in.Date
		updated = current
		_, _, err = s.recalculateTotalReleased(ctx, tx, current.ProjectID)
		return err
	})
	return updated, err
}

// DeleteRelease removes a release, refreshes the project total and returns
// the project id.
func (s *Service) DeleteRelease(ctx context.Context, userID, releaseID int64) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	var projectID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetRelease(ctx, userID, releaseID)
		if err != nil {
			return err
		}
		projectID = current.ProjectID
		if err := tx.LockProject(ctx, projectID); err != nil {
			return err
		}
		if err := tx.DeleteRelease(ctx, releaseID); err != nil {
			return err
		}
		_, _, err = s.recalculateTotalReleased(ctx, tx, projectID)
		return err
	})
	return projectID, err
}

// ListReleases loads a project with its released history, newest first.
func (s *Service) ListReleases(ctx context.Context, userID, projectID int64) (ReleaseHistory, error) {
	if err := requireUser(userID); err != nil {
		return ReleaseHistory{}, err
	}
	var out ReleaseHistory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		project, err := tx.GetProject(ctx, userID, projectID)
		if err != nil {
			return err
		}
		history, err := tx.ListReleases(ctx, projectID)
		if err != nil {
			return err
		}
		out = ReleaseHistory{Project: project, History: history}
		return nil
	})
	return out, err
}
