package budget

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory TxRepository. WithTx snapshots the tables and
// restores them when fn fails, mirroring a rollback.
type memStore struct {
	projects    map[int64]Project
	branches    map[int64]Branch
	subBranches map[int64]SubBranch
	releases    map[int64]ReleasedHistory
	nextID      int64
	txCount     int
	locks       []string
}

func newMemStore() *memStore {
	return &memStore{
		projects:    map[int64]Project{},
		branches:    map[int64]Branch{},
		subBranches: map[int64]SubBranch{},
		releases:    map[int64]ReleasedHistory{},
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.txCount++
	snap := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	projects    map[int64]Project
	branches    map[int64]Branch
	subBranches map[int64]SubBranch
	releases    map[int64]ReleasedHistory
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		projects:    map[int64]Project{},
		branches:    map[int64]Branch{},
		subBranches: map[int64]SubBranch{},
		releases:    map[int64]ReleasedHistory{},
	}
	for k, v := range m.projects {
		s.projects[k] = v
	}
	for k, v := range m.branches {
		s.branches[k] = v
	}
	for k, v := range m.subBranches {
		s.subBranches[k] = v
	}
	for k, v := range m.releases {
		s.releases[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.projects, m.branches, m.subBranches, m.releases = s.projects, s.branches, s.subBranches, s.releases
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) InsertProject(ctx context.Context, userID int64, in ProjectInput) (Project, error) {
	p := Project{ID: m.id(), UserID: userID, Name: in.Name, Amount: in.Amount, StartDate: in.StartDate, TotalReleased: decimal.Zero, CreatedAt: time.Now()}
	m.projects[p.ID] = p
	return p, nil
}

func (m *memStore) ListProjects(ctx context.Context, userID int64) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) GetProject(ctx context.Context, userID, projectID int64) (Project, error) {
	p, ok := m.projects[projectID]
	if !ok || p.UserID != userID {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) LockProject(ctx context.Context, projectID int64) error {
	if _, ok := m.projects[projectID]; !ok {
		return ErrNotFound
	}
	m.locks = append(m.locks, "project")
	return nil
}

func (m *memStore) UpdateProjectAmount(ctx context.Context, projectID int64, amount decimal.Decimal) error {
	p, ok := m.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	p.Amount = amount
	m.projects[projectID] = p
	return nil
}

func (m *memStore) SetProjectTotalReleased(ctx context.Context, projectID int64, total decimal.Decimal) error {
	p, ok := m.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	p.TotalReleased = total
	m.projects[projectID] = p
	return nil
}

func (m *memStore) DeleteProject(ctx context.Context, projectID int64) error {
	if _, ok := m.projects[projectID]; !ok {
		return ErrNotFound
	}
	delete(m.projects, projectID)
	for id, b := range m.branches {
		if b.ProjectID == projectID {
			_ = m.DeleteBranch(ctx, id)
		}
	}
	for id, h := range m.releases {
		if h.ProjectID == projectID {
			delete(m.releases, id)
		}
	}
	return nil
}

func (m *memStore) ListProjectIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range m.projects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) InsertBranch(ctx context.Context, projectID int64, in BranchInput) (Branch, error) {
	b := Branch{ID: m.id(), ProjectID: projectID, Name: in.Name, TotalSpent: decimal.Zero, CreatedAt: time.Now()}
	m.branches[b.ID] = b
	return b, nil
}

func (m *memStore) GetBranch(ctx context.Context, userID, branchID int64) (Branch, error) {
	b, ok := m.branches[branchID]
	if !ok {
		return Branch{}, ErrNotFound
	}
	if _, err := m.GetProject(ctx, userID, b.ProjectID); err != nil {
		return Branch{}, err
	}
	return b, nil
}

func (m *memStore) ListBranches(ctx context.Context, projectID int64) ([]Branch, error) {
	var out []Branch
	for _, b := range m.branches {
		if b.ProjectID == projectID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) LockBranch(ctx context.Context, branchID int64) error {
	if _, ok := m.branches[branchID]; !ok {
		return ErrNotFound
	}
	m.locks = append(m.locks, "branch")
	return nil
}

func (m *memStore) RenameBranch(ctx context.Context, branchID int64, name string) error {
	b, ok := m.branches[branchID]
	if !ok {
		return ErrNotFound
	}
	b.Name = name
	m.branches[branchID] = b
	return nil
}

func (m *memStore) SetBranchTotalSpent(ctx context.Context, branchID int64, total decimal.Decimal) error {
	b, ok := m.branches[branchID]
	if !ok {
		return ErrNotFound
	}
	b.TotalSpent = total
	m.branches[branchID] = b
	return nil
}

func (m *memStore) DeleteBranch(ctx context.Context, branchID int64) error {
	if _, ok := m.branches[branchID]; !ok {
		return ErrNotFound
	}
	delete(m.branches, branchID)
	for id, s := range m.subBranches {
		if s.BranchID == branchID {
			delete(m.subBranches, id)
		}
	}
	return nil
}

func (m *memStore) ListBranchIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range m.branches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) InsertSubBranch(ctx context.Context, branchID int64, in SubBranchInput) (SubBranch, error) {
	s := SubBranch{ID: m.id(), BranchID: branchID, Name: in.Name, Amount: in.Amount, Date: in.Date, CreatedAt: time.Now()}
	m.subBranches[s.ID] = s
	return s, nil
}

func (m *memStore) GetSubBranch(ctx context.Context, userID, subBranchID int64) (SubBranch, error) {
	s, ok := m.subBranches[subBranchID]
	if !ok {
		return SubBranch{}, ErrNotFound
	}
	if _, err := m.GetBranch(ctx, userID, s.BranchID); err != nil {
		return SubBranch{}, err
	}
	return s, nil
}

func (m *memStore) ListSubBranches(ctx context.Context, branchID int64) ([]SubBranch, error) {
	var out []SubBranch
	for _, s := range m.subBranches {
		if s.BranchID == branchID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *memStore) UpdateSubBranch(ctx context.Context, subBranchID int64, in SubBranchInput) error {
	s, ok := m.subBranches[subBranchID]
	if !ok {
		return ErrNotFound
	}
	s.Name, s.Amount, s.Date = in.Name, in.Amount, in.Date
	m.subBranches[subBranchID] = s
	return nil
}

func (m *memStore) DeleteSubBranch(ctx context.Context, subBranchID int64) error {
	if _, ok := m.subBranches[subBranchID]; !ok {
		return ErrNotFound
	}
	delete(m.subBranches, subBranchID)
	return nil
}

func (m *memStore) SubBranchAmounts(ctx context.Context, branchID int64) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, s := range m.subBranches {
		if s.BranchID == branchID {
			out = append(out, s.Amount)
		}
	}
	return out, nil
}

func (m *memStore) BranchTotalSpent(ctx context.Context, branchID int64) (decimal.Decimal, error) {
	b, ok := m.branches[branchID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return b.TotalSpent, nil
}

func (m *memStore) InsertRelease(ctx context.Context, projectID int64, in ReleaseInput) (ReleasedHistory, error) {
	h := ReleasedHistory{ID: m.id(), ProjectID: projectID, Amount: in.Amount, Date: in.Date, CreatedAt: time.Now()}
	m.releases[h.ID] = h
	return h, nil
}

func (m *memStore) GetRelease(ctx context.Context, userID, releaseID int64) (ReleasedHistory, error) {
	h, ok := m.releases[releaseID]
	if !ok {
		return ReleasedHistory{}, ErrNotFound
	}
	if _, err := m.GetProject(ctx, userID, h.ProjectID); err != nil {
		return ReleasedHistory{}, err
	}
	return h, nil
}

func (m *memStore) ListReleases(ctx context.Context, projectID int64) ([]ReleasedHistory, error) {
	var out []ReleasedHistory
	for _, h := range m.releases {
		if h.ProjectID == projectID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *memStore) UpdateRelease(ctx context.Context, releaseID int64, in ReleaseInput) error {
	h, ok := m.releases[releaseID]
	if !ok {
		return ErrNotFound
	}
	h.Amount, h.Date = in.Amount, in.Date
	m.releases[releaseID] = h
	return nil
}

func (m *memStore) DeleteRelease(ctx context.Context, releaseID int64) error {
	if _, ok := m.releases[releaseID]; !ok {
		return ErrNotFound
	}
	delete(m.releases, releaseID)
	return nil
}

func (m *memStore) ReleaseAmounts(ctx context.Context, projectID int64) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, h := range m.releases {
		if h.ProjectID == projectID {
			out = append(out, h.Amount)
		}
	}
	return out, nil
}

func (m *memStore) ProjectTotalReleased(ctx context.Context, projectID int64) (decimal.Decimal, error) {
	p, ok := m.projects[projectID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return p.TotalReleased, nil
}
