package budget

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner    int64 = 7
	stranger int64 = 8
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewService(store), store
}

func mustProject(t *testing.T, svc *Service, amount string) Project {
	t.Helper()
	p, err := svc.CreateProject(context.Background(), owner, ProjectInput{Name: "Ward 12 Works", Amount: dec(t, amount), StartDate: day(1)})
	require.NoError(t, err)
	return p
}

func mustBranch(t *testing.T, svc *Service, projectID int64, name string) Branch {
	t.Helper()
	b, err := svc.CreateBranch(context.Background(), owner, projectID, BranchInput{Name: name})
	require.NoError(t, err)
	return b
}

func TestBudgetScenario_RoadsBranch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	project := mustProject(t, svc, "1000000")

	_, err := svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "400000"), Date: day(2)})
	require.NoError(t, err)

	detail, err := svc.GetProjectDetail(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.True(t, detail.Summary.TotalReleased.Equal(dec(t, "400000")))
	assert.True(t, detail.Summary.Remaining.Equal(dec(t, "600000")))

	roads := mustBranch(t, svc, project.ID, "Roads")
	line, err := svc.AddSubBranch(ctx, owner, roads.ID, SubBranchInput{Name: "Resurfacing", Amount: dec(t, "150000"), Date: day(3)})
	require.NoError(t, err)

	detail, err = svc.GetProjectDetail(ctx, owner, project.ID)
	require.NoError(t, err)
	require.Len(t, detail.Branches, 1)
	assert.True(t, detail.Branches[0].TotalSpent.Equal(dec(t, "150000")))
	assert.True(t, detail.Summary.BottomAmount.Equal(dec(t, "250000")))

	branchID, err := svc.DeleteSubBranch(ctx, owner, line.ID)
	require.NoError(t, err)
	assert.Equal(t, roads.ID, branchID)

	detail, err = svc.GetProjectDetail(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.True(t, detail.Branches[0].TotalSpent.IsZero())
	assert.True(t, detail.Summary.BottomAmount.Equal(dec(t, "400000")))
}

func TestDeleteReleaseIsDecimalExact(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "500000")

	first, err := svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "100000"), Date: day(2)})
	require.NoError(t, err)
	_, err = svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "250000"), Date: day(3)})
	require.NoError(t, err)
	assert.True(t, store.projects[project.ID].TotalReleased.Equal(dec(t, "350000")))

	projectID, err := svc.DeleteRelease(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, projectID)
	assert.Equal(t, "250000.00", store.projects[project.ID].TotalReleased.StringFixed(2))
}

func TestFractionalAmountsDoNotDrift(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "100")
	branch := mustBranch(t, svc, project.ID, "Supplies")

	for i := 0; i < 10; i++ {
		_, err := svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "pens", Amount: dec(t, "0.10"), Date: day(4)})
		require.NoError(t, err)
	}
	assert.True(t, store.branches[branch.ID].TotalSpent.Equal(decimal.NewFromInt(1)))
}

func TestLedgerSequencesKeepTotalsInSync(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "9999999")
	branch := mustBranch(t, svc, project.ID, "Drainage")
	rng := rand.New(rand.NewSource(42))

	var lines, releases []int64
	for step := 0; step < 200; step++ {
		amount := decimal.New(rng.Int63n(10_000_000), -2)
		switch op := rng.Intn(6); {
		case op == 0 || len(lines) == 0:
			row, err := svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "item", Amount: amount, Date: day(1 + rng.Intn(28))})
			require.NoError(t, err)
			lines = append(lines, row.ID)
		case op == 1:
			id := lines[rng.Intn(len(lines))]
			_, err := svc.UpdateSubBranch(ctx, owner, id, SubBranchInput{Name: "edited", Amount: amount, Date: day(5)})
			require.NoError(t, err)
		case op == 2:
			idx := rng.Intn(len(lines))
			_, err := svc.DeleteSubBranch(ctx, owner, lines[idx])
			require.NoError(t, err)
			lines = append(lines[:idx], lines[idx+1:]...)
		case op == 3 || len(releases) == 0:
			row, err := svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: amount, Date: day(1 + rng.Intn(28))})
			require.NoError(t, err)
			releases = append(releases, row.ID)
		case op == 4:
			id := releases[rng.Intn(len(releases))]
			_, err := svc.UpdateRelease(ctx, owner, id, ReleaseInput{Amount: amount, Date: day(6)})
			require.NoError(t, err)
		default:
			idx := rng.Intn(len(releases))
			_, err := svc.DeleteRelease(ctx, owner, releases[idx])
			require.NoError(t, err)
			releases = append(releases[:idx], releases[idx+1:]...)
		}

		spent, _ := store.SubBranchAmounts(ctx, branch.ID)
		released, _ := store.ReleaseAmounts(ctx, project.ID)
		require.True(t, store.branches[branch.ID].TotalSpent.Equal(Sum(spent)), "step %d: branch total drifted", step)
		require.True(t, store.projects[project.ID].TotalReleased.Equal(Sum(released)), "step %d: project total drifted", step)
	}
}

func TestDeleteBranchCascadesAndKeepsReleased(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "1000000")
	_, err := svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "300000"), Date: day(2)})
	require.NoError(t, err)

	roads := mustBranch(t, svc, project.ID, "Roads")
	parks := mustBranch(t, svc, project.ID, "Parks")
	_, err = svc.AddSubBranch(ctx, owner, roads.ID, SubBranchInput{Name: "asphalt", Amount: dec(t, "120000"), Date: day(3)})
	require.NoError(t, err)
	_, err = svc.AddSubBranch(ctx, owner, parks.ID, SubBranchInput{Name: "benches", Amount: dec(t, "30000"), Date: day(3)})
	require.NoError(t, err)

	before, err := svc.GetProjectDetail(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.True(t, before.Summary.TotalBranchSpent.Equal(dec(t, "150000")))

	projectID, err := svc.DeleteBranch(ctx, owner, roads.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, projectID)

	for _, s := range store.subBranches {
		assert.NotEqual(t, roads.ID, s.BranchID, "sub-branch of deleted branch survived")
	}
	after, err := svc.GetProjectDetail(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.True(t, after.Summary.TotalReleased.Equal(dec(t, "300000")))
	assert.True(t, after.Summary.TotalBranchSpent.Equal(dec(t, "30000")))
	assert.True(t, after.Summary.BottomAmount.Equal(dec(t, "270000")))
}

func TestSummaryIsIdempotentAndIsolated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a := mustProject(t, svc, "1000")
	b := mustProject(t, svc, "2000")
	_, err := svc.ReleaseFunds(ctx, owner, a.ID, ReleaseInput{Amount: dec(t, "400"), Date: day(2)})
	require.NoError(t, err)

	first, err := svc.Summary(ctx, owner, a.ID)
	require.NoError(t, err)
	second, err := svc.Summary(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = svc.ReleaseFunds(ctx, owner, b.ID, ReleaseInput{Amount: dec(t, "1500"), Date: day(2)})
	require.NoError(t, err)
	_, err = svc.UpdateProjectAmount(ctx, owner, b.ID, "2500")
	require.NoError(t, err)

	third, err := svc.Summary(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	project := mustProject(t, svc, "1000")
	branch := mustBranch(t, svc, project.ID, "Lighting")
	_, err := svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "bulbs", Amount: dec(t, "12.34"), Date: day(2)})
	require.NoError(t, err)

	one, err := svc.RecalculateTotalSpent(ctx, owner, branch.ID)
	require.NoError(t, err)
	two, err := svc.RecalculateTotalSpent(ctx, owner, branch.ID)
	require.NoError(t, err)
	assert.True(t, one.Equal(two))
	assert.True(t, one.Equal(dec(t, "12.34")))

	empty := mustBranch(t, svc, project.ID, "Empty")
	zero, err := svc.RecalculateTotalSpent(ctx, owner, empty.ID)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	released, err := svc.RecalculateTotalReleased(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.True(t, released.IsZero())
}

func TestOtherUsersRowsAreNotFound(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "1000")
	branch := mustBranch(t, svc, project.ID, "Roads")
	line, err := svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "gravel", Amount: dec(t, "10"), Date: day(2)})
	require.NoError(t, err)
	release, err := svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "100"), Date: day(2)})
	require.NoError(t, err)

	_, err = svc.GetProjectDetail(ctx, stranger, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddSubBranch(ctx, stranger, branch.ID, SubBranchInput{Name: "x", Amount: dec(t, "1"), Date: day(2)})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.DeleteSubBranch(ctx, stranger, line.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpdateRelease(ctx, stranger, release.ID, ReleaseInput{Amount: dec(t, "1"), Date: day(2)})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteProject(ctx, stranger, project.ID), ErrNotFound)

	_, err = svc.ListProjects(ctx, 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.Len(t, store.projects, 1)
	assert.True(t, store.branches[branch.ID].TotalSpent.Equal(dec(t, "10")))
}

func TestInvalidInputWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "1000")
	branch := mustBranch(t, svc, project.ID, "Roads")
	txBefore := store.txCount

	_, err := svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "neg", Amount: dec(t, "-1"), Date: day(2)})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "", Amount: dec(t, "1"), Date: day(2)})
	assert.ErrorIs(t, err, ErrValidation)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "Name", vErr.Fields[0].Field)
	_, err = svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "1.005"), Date: day(2)})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "1")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.UpdateProjectAmount(ctx, owner, project.ID, "lots")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Equal(t, txBefore, store.txCount)
	assert.True(t, store.projects[project.ID].Amount.Equal(dec(t, "1000")))
}

func TestRenameBranch(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "1000")
	branch := mustBranch(t, svc, project.ID, "Roads")

	require.NoError(t, svc.RenameBranch(ctx, owner, branch.ID, "  Highways "))
	assert.Equal(t, "Highways", store.branches[branch.ID].Name)
	assert.ErrorIs(t, svc.RenameBranch(ctx, owner, branch.ID, "   "), ErrEmptyBranchName)
	assert.ErrorIs(t, svc.RenameBranch(ctx, stranger, branch.ID, "Mine"), ErrNotFound)
}

func TestMutationsLockParentFirst(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "1000")
	branch := mustBranch(t, svc, project.ID, "Roads")

	store.locks = nil
	_, err := svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "cones", Amount: dec(t, "5"), Date: day(2)})
	require.NoError(t, err)
	_, err = svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "5"), Date: day(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"branch", "project"}, store.locks)
}

func TestReconcileRepairsDrift(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "1000")
	branch := mustBranch(t, svc, project.ID, "Roads")
	_, err := svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "paint", Amount: dec(t, "40"), Date: day(2)})
	require.NoError(t, err)
	_, err = svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "90"), Date: day(2)})
	require.NoError(t, err)

	clean, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{BranchesScanned: 1, ProjectsScanned: 1}, clean)

	b := store.branches[branch.ID]
	b.TotalSpent = dec(t, "999")
	store.branches[branch.ID] = b

	result, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BranchesRepaired)
	assert.Equal(t, 0, result.ProjectsRepaired)
	assert.Equal(t, 1, result.Repaired())
	assert.True(t, store.branches[branch.ID].TotalSpent.Equal(dec(t, "40")))
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	project := mustProject(t, svc, "1000")
	branch := mustBranch(t, svc, project.ID, "Roads")
	_, err := svc.AddSubBranch(ctx, owner, branch.ID, SubBranchInput{Name: "paint", Amount: dec(t, "40"), Date: day(2)})
	require.NoError(t, err)
	_, err = svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "90"), Date: day(2)})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProject(ctx, owner, project.ID))
	assert.Empty(t, store.projects)
	assert.Empty(t, store.branches)
	assert.Empty(t, store.subBranches)
	assert.Empty(t, store.releases)
}

func TestBuildReport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	project := mustProject(t, svc, "1000000")
	roads := mustBranch(t, svc, project.ID, "Roads")
	_, err := svc.AddSubBranch(ctx, owner, roads.ID, SubBranchInput{Name: "asphalt", Amount: dec(t, "150000"), Date: day(3)})
	require.NoError(t, err)
	_, err = svc.ReleaseFunds(ctx, owner, project.ID, ReleaseInput{Amount: dec(t, "400000"), Date: day(2)})
	require.NoError(t, err)

	now := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	report, err := svc.BuildReport(ctx, owner, project.ID, "asha", now)
	require.NoError(t, err)
	assert.Equal(t, "asha", report.ExportedBy)
	assert.Equal(t, now, report.ExportedAt)
	require.Len(t, report.Branches, 1)
	require.Len(t, report.Branches[0].Entries, 1)
	require.Len(t, report.Releases, 1)
	assert.True(t, report.Summary.BottomAmount.Equal(dec(t, "250000")))

	_, err = svc.BuildReport(ctx, stranger, project.ID, "eve", now)
	assert.ErrorIs(t, err, ErrNotFound)
}
