package budget

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Project is a funded civic initiative owned by a single user.
type Project struct {
	ID            int64
	UserID        int64
	Name          string
	Amount        decimal.Decimal
	StartDate     time.Time
	TotalReleased decimal.Decimal
	CreatedAt     time.Time
}

// Branch is an expense category within a project.
type Branch struct {
	ID         int64
	ProjectID  int64
	Name       string
	TotalSpent decimal.Decimal
	CreatedAt  time.Time
}

// SubBranch is a single expense line item booked under a branch.
type SubBranch struct {
	ID        int64
	BranchID  int64
	Name      string
	Amount    decimal.Decimal
	Date      time.Time
	CreatedAt time.Time
}

// ReleasedHistory records funds released to a project.
type ReleasedHistory struct {
	ID        int64
	ProjectID int64
	Amount    decimal.Decimal
	Date      time.Time
	CreatedAt time.Time
}

// Summary holds the derived balances of a project. None of it is stored.
type Summary struct {
	Amount           decimal.Decimal `json:"amount"`
	TotalReleased    decimal.Decimal `json:"total_released"`
	TotalBranchSpent decimal.Decimal `json:"total_branch_spent"`
	Remaining        decimal.Decimal `json:"remaining"`
	BottomAmount     decimal.Decimal `json:"bottom_amount"`
}

// ProjectDetail is the read model behind the project page.
type ProjectDetail struct {
	Project  Project
	Branches []Branch
	Summary  Summary
}

// BranchHistory is the read model behind the branch page.
type BranchHistory struct {
	Branch      Branch
	Project     Project
	SubBranches []SubBranch
}

// ReleaseHistory is the read model behind the released-history page.
type ReleaseHistory struct {
	Project Project
	History []ReleasedHistory
}

// ProjectInput carries the fields of a new project.
type ProjectInput struct {
	Name      string          `validate:"required,max=200"`
	Amount    decimal.Decimal `validate:"-"`
	StartDate time.Time       `validate:"required"`
}

// BranchInput carries the fields of a new branch.
type BranchInput struct {
	Name string `validate:"required,max=200"`
}

// SubBranchInput carries the editable fields of a sub-branch row.
type SubBranchInput struct {
	Name   string          `validate:"required,max=200"`
	Amount decimal.Decimal `validate:"-"`
	Date   time.Time       `validate:"required"`
}

// ReleaseInput carries the editable fields of a released history row.
type ReleaseInput struct {
	Amount decimal.Decimal `validate:"-"`
	Date   time.Time       `validate:"required"`
}

// ReconcileResult reports a full re-scan of every cached aggregate.
type ReconcileResult struct {
	BranchesScanned  int
	BranchesRepaired int
	ProjectsScanned  int
	ProjectsRepaired int
}

// Repaired returns the number of rows whose cached total had drifted.
func (r ReconcileResult) Repaired() int {
	return r.BranchesRepaired + r.ProjectsRepaired
}

var (
	// ErrNotFound covers missing rows and rows owned by another user.
	ErrNotFound = errors.New("budget: not found")
	// ErrValidation indicates malformed form input.
	ErrValidation = errors.New("budget: validation failed")
	// ErrInvalidAmount indicates an amount that cannot be stored.
	ErrInvalidAmount = errors.New("budget: invalid amount")
	// ErrEmptyBranchName is returned when renaming a branch to blank.
	ErrEmptyBranchName = errors.New("budget: branch name cannot be empty")
	// ErrUnauthenticated is returned when no acting user is supplied.
	ErrUnauthenticated = errors.New("budget: user required")
)
