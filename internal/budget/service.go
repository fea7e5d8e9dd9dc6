package budget

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service owns the ledgers and keeps the cached aggregates in step with them.
// Every mutation locks the parent row, writes the child row and re-scans the
// parent aggregate inside one transaction.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService constructs the budget service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// CreateProject registers a new project owned by userID.
func (s *Service) CreateProject(ctx context.Context, userID int64, in ProjectInput) (Project, error) {
	if err := requireUser(userID); err != nil {
		return Project{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateInput(in, in.Amount); err != nil {
		return Project{}, err
	}
	var project Project
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertProject(ctx, userID, in)
		if err != nil {
			return err
		}
		project = created
		return nil
	})
	return project, err
}

// ListProjects returns the projects of userID, newest first.
func (s *Service) ListProjects(ctx context.Context, userID int64) ([]Project, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var projects []Project
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		list, err := tx.ListProjects(ctx, userID)
		if err != nil {
			return err
		}
		projects = list
		return nil
	})
	return projects, err
}

// GetProjectDetail loads a project with its branches and derived balances.
func (s *Service) GetProjectDetail(ctx context.Context, userID, projectID int64) (ProjectDetail, error) {
	if err := requireUser(userID); err != nil {
		return ProjectDetail{}, err
	}
	var detail ProjectDetail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		project, err := tx.GetProject(ctx, userID, projectID)
		if err != nil {
			return err
		}
		branches, err := tx.ListBranches(ctx, projectID)
		if err != nil {
			return err
		}
		detail = ProjectDetail{Project: project, Branches: branches, Summary: ComputeSummary(project, branches)}
		return nil
	})
	return detail, err
}

// Summary computes the derived balances of a project.
func (s *Service) Summary(ctx context.Context, userID, projectID int64) (Summary, error) {
	detail, err := s.GetProjectDetail(ctx, userID, projectID)
	if err != nil {
		return Summary{}, err
	}
	return detail.Summary, nil
}

// UpdateProjectAmount replaces the allocated budget. Parsing happens before
// any write, so a rejected amount leaves the project untouched.
func (s *Service) UpdateProjectAmount(ctx context.Context, userID, projectID int64, raw string) (decimal.Decimal, error) {
	if err := requireUser(userID); err != nil {
		return decimal.Zero, err
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProject(ctx, userID, projectID); err != nil {
			return err
		}
		return tx.UpdateProjectAmount(ctx, projectID, amount)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// DeleteProject removes a project together with its branches, sub-branches
// and released history.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProject(ctx, userID, projectID); err != nil {
			return err
		}
		return tx.DeleteProject(ctx, projectID)
	})
}

// CreateBranch adds an expense category to a project.
func (s *Service) CreateBranch(ctx context.Context, userID, projectID int64, in BranchInput) (Branch, error) {
	if err := requireUser(userID); err != nil {
		return Branch{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateInput(in, decimal.Zero); err != nil {
		return Branch{}, err
	}
	var branch Branch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProject(ctx, userID, projectID); err != nil {
			return err
		}
		created, err := tx.InsertBranch(ctx, projectID, in)
		if err != nil {
			return err
		}
		branch = created
		return nil
	})
	return branch, err
}

// RenameBranch changes the name of a branch.
func (s *Service) RenameBranch(ctx context.Context, userID, branchID int64, name string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyBranchName
	}
	if err := s.validateInput(BranchInput{Name: name}, decimal.Zero); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBranch(ctx, userID, branchID); err != nil {
			return err
		}
		return tx.RenameBranch(ctx, branchID, name)
	})
}

// DeleteBranch removes a branch and its sub-branches and returns the owning
// project id. The project's released total is re-scanned afterwards; it does
// not depend on branches and so stays unchanged.
func (s *Service) DeleteBranch(ctx context.Context, userID, branchID int64) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	var projectID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		branch, err := tx.GetBranch(ctx, userID, branchID)
		if err != nil {
			return err
		}
		projectID = branch.ProjectID
		if err := tx.LockProject(ctx, projectID); err != nil {
			return err
		}
		if err := tx.DeleteBranch(ctx, branchID); err != nil {
			return err
		}
		_, _, err = s.recalculateTotalReleased(ctx, tx, projectID)
		return err
	})
	return projectID, err
}

// GetBranchHistory loads a branch with its project and sub-branch ledger.
func (s *Service) GetBranchHistory(ctx context.Context, userID, branchID int64) (BranchHistory, error) {
	if err := requireUser(userID); err != nil {
		return BranchHistory{}, err
	}
	var history BranchHistory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		branch, err := tx.GetBranch(ctx, userID, branchID)
		if err != nil {
			return err
		}
		project, err := tx.GetProject(ctx, userID, branch.ProjectID)
		if err != nil {
			return err
		}
		items, err := tx.ListSubBranches(ctx, branchID)
		if err != nil {
			return err
		}
		history = BranchHistory{Branch: branch, Project: project, SubBranches: items}
		return nil
	})
	return history, err
}

// RecalculateTotalSpent re-scans a branch's sub-branches and stores the sum.
func (s *Service) RecalculateTotalSpent(ctx context.Context, userID, branchID int64) (decimal.Decimal, error) {
	if err := requireUser(userID); err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBranch(ctx, userID, branchID); err != nil {
			return err
		}
		if err := tx.LockBranch(ctx, branchID); err != nil {
			return err
		}
		sum, _, err := s.recalculateTotalSpent(ctx, tx, branchID)
		total = sum
		return err
	})
	return total, err
}

// RecalculateTotalReleased re-scans a project's released history and stores the sum.
func (s *Service) RecalculateTotalReleased(ctx context.Context, userID, projectID int64) (decimal.Decimal, error) {
	if err := requireUser(userID); err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProject(ctx, userID, projectID); err != nil {
			return err
		}
		if err := tx.LockProject(ctx, projectID); err != nil {
			return err
		}
		sum, _, err := s.recalculateTotalReleased(ctx, tx, projectID)
		total = sum
		return err
	})
	return total, err
}

// Reconcile re-scans every branch and project, repairing drifted totals.
// It is not scoped to a user and is meant for the background job and CLI.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	var branchIDs, projectIDs []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if branchIDs, err = tx.ListBranchIDs(ctx); err != nil {
			return err
		}
		projectIDs, err = tx.ListProjectIDs(ctx)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("budget: list aggregates: %w", err)
	}
	for _, id := range branchIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		var changed bool
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.LockBranch(ctx, id); err != nil {
				return err
			}
			_, drifted, err := s.recalculateTotalSpent(ctx, tx, id)
			changed = drifted
			return err
		})
		if err != nil {
			// Deleted between listing and locking.
			if isNotFound(err) {
				continue
			}
			return result, fmt.Errorf("budget: reconcile branch %d: %w", id, err)
		}
		result.BranchesScanned++
		if changed {
			result.BranchesRepaired++
		}
	}
	for _, id := range projectIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		var changed bool
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.LockProject(ctx, id); err != nil {
				return err
			}
			_, drifted, err := s.recalculateTotalReleased(ctx, tx, id)
			changed = drifted
			return err
		})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return result, fmt.Errorf("budget: reconcile project %d: %w", id, err)
		}
		result.ProjectsScanned++
		if changed {
			result.ProjectsRepaired++
		}
	}
	return result, nil
}

// recalculateTotalSpent must run with the branch row locked.
func (s *Service) recalculateTotalSpent(ctx context.Context, tx TxRepository, branchID int64) (decimal.Decimal, bool, error) {
	amounts, err := tx.SubBranchAmounts(ctx, branchID)
	if err != nil {
		return decimal.Zero, false, err
	}
	total := Sum(amounts)
	cached, err := tx.BranchTotalSpent(ctx, branchID)
	if err != nil {
		return decimal.Zero, false, err
	}
	if err := tx.SetBranchTotalSpent(ctx, branchID, total); err != nil {
		return decimal.Zero, false, err
	}
	return total, !cached.Equal(total), nil
}

// recalculateTotalReleased must run with the project row locked.
func (s *Service) recalculateTotalReleased(ctx context.Context, tx TxRepository, projectID int64) (decimal.Decimal, bool, error) {
	amounts, err := tx.ReleaseAmounts(ctx, projectID)
	if err != nil {
		return decimal.Zero, false, err
	}
	total := Sum(amounts)
	cached, err := tx.ProjectTotalReleased(ctx, projectID)
	if err != nil {
		return decimal.Zero, false, err
	}
	if err := tx.SetProjectTotalReleased(ctx, projectID, total); err != nil {
		return decimal.Zero, false, err
	}
	return total, !cached.Equal(total), nil
}

func requireUser(userID int64) error {
	if userID <= 0 {
		return ErrUnauthenticated
	}
	return nil
}
