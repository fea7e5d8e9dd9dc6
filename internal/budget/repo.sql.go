package budget

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/civitrack/civitrack/internal/platform/db"
)

// Repository persists projects, branches and their ledgers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements available inside a transaction.
// Lookups taking a userID only match rows whose project belongs to that user.
type TxRepository interface {
	InsertProject(ctx context.Context, userID int64, in ProjectInput) (Project, error)
	ListProjects(ctx context.Context, userID int64) ([]Project, error)
	GetProject(ctx context.Context, userID, projectID int64) (Project, error)
	LockProject(ctx context.Context, projectID int64) error
	UpdateProjectAmount(ctx context.Context, projectID int64, amount decimal.Decimal) error
	SetProjectTotalReleased(ctx context.Context, projectID int64, total decimal.Decimal) error
	DeleteProject(ctx context.Context, projectID int64) error
	ListProjectIDs(ctx context.Context) ([]int64, error)

	InsertBranch(ctx context.Context, projectID int64, in BranchInput) (Branch, error)
	GetBranch(ctx context.Context, userID, branchID int64) (Branch, error)
	ListBranches(ctx context.Context, projectID int64) ([]Branch, error)
	LockBranch(ctx context.Context, branchID int64) error
	RenameBranch(ctx context.Context, branchID int64, name string) error
	SetBranchTotalSpent(ctx context.Context, branchID int64, total decimal.Decimal) error
	DeleteBranch(ctx context.Context, branchID int64) error
	ListBranchIDs(ctx context.Context) ([]int64, error)

	InsertSubBranch(ctx context.Context, branchID int64, in SubBranchInput) (SubBranch, error)
	GetSubBranch(ctx context.Context, userID, subBranchID int64) (SubBranch, error)
	ListSubBranches(ctx context.Context, branchID int64) ([]SubBranch, error)
	UpdateSubBranch(ctx context.Context, subBranchID int64, in SubBranchInput) error
	DeleteSubBranch(ctx context.Context, subBranchID int64) error
	SubBranchAmounts(ctx context.Context, branchID int64) ([]decimal.Decimal, error)
	BranchTotalSpent(ctx context.Context, branchID int64) (decimal.Decimal, error)

	InsertRelease(ctx context.Context, projectID int64, in ReleaseInput) (ReleasedHistory, error)
	GetRelease(ctx context.Context, userID, releaseID int64) (ReleasedHistory, error)
	ListReleases(ctx context.Context, projectID int64) ([]ReleasedHistory, error)
	UpdateRelease(ctx context.Context, releaseID int64, in ReleaseInput) error
	DeleteRelease(ctx context.Context, releaseID int64) error
	ReleaseAmounts(ctx context.Context, projectID int64) ([]decimal.Decimal, error)
	ProjectTotalReleased(ctx context.Context, projectID int64) (decimal.Decimal, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a read-committed transaction. Parent rows are
// locked explicitly with LockProject/LockBranch.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("budget repository not initialised")
	}
	return db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const projectColumns = `p.id, p.user_id, p.name, p.amount::text, p.start_date, p.total_released::text, p.created_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Amount, &p.StartDate, &p.TotalReleased, &p.CreatedAt); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (r *txRepository) InsertProject(ctx context.Context, userID int64, in ProjectInput) (Project, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO projects AS p (user_id, name, amount, start_date)
VALUES ($1, $2, $3, $4) RETURNING `+projectColumns, userID, in.Name, in.Amount.StringFixed(amountScale), dateOnly(in.StartDate))
	return scanProject(row)
}

func (r *txRepository) ListProjects(ctx context.Context, userID int64) ([]Project, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.user_id = $1 ORDER BY p.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *txRepository) GetProject(ctx context.Context, userID, projectID int64) (Project, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1 AND p.user_id = $2`, projectID, userID)
	p, err := scanProject(row)
	if err != nil {
		return Project{}, notFound(err)
	}
	return p, nil
}

func (r *txRepository) LockProject(ctx context.Context, projectID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&id)
	return notFound(err)
}

func (r *txRepository) UpdateProjectAmount(ctx context.Context, projectID int64, amount decimal.Decimal) error {
	return r.execOne(ctx, `UPDATE projects SET amount = $2 WHERE id = $1`, projectID, amount.StringFixed(amountScale))
}

func (r *txRepository) SetProjectTotalReleased(ctx context.Context, projectID int64, total decimal.Decimal) error {
	return r.execOne(ctx, `UPDATE projects SET total_released = $2 WHERE id = $1`, projectID, total.StringFixed(amountScale))
}

func (r *txRepository) DeleteProject(ctx context.Context, projectID int64) error {
	return r.execOne(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
}

func (r *txRepository) ListProjectIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, `SELECT id FROM projects ORDER BY id`)
}

const branchColumns = `b.id, b.project_id, b.name, b.total_spent::text, b.created_at`

func scanBranch(row pgx.Row) (Branch, error) {
	var b Branch
	if err := row.Scan(&b.ID, &b.ProjectID, &b.Name, &b.TotalSpent, &b.CreatedAt); err != nil {
		return Branch{}, err
	}
	return b, nil
}

func (r *txRepository) InsertBranch(ctx context.Context, projectID int64, in BranchInput) (Branch, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO branches AS b (project_id, name) VALUES ($1, $2) RETURNING `+branchColumns, projectID, in.Name)
	return scanBranch(row)
}

func (r *txRepository) GetBranch(ctx context.Context, userID, branchID int64) (Branch, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+branchColumns+` FROM branches b
JOIN projects p ON p.id = b.project_id
WHERE b.id = $1 AND p.user_id = $2`, branchID, userID)
	b, err := scanBranch(row)
	if err != nil {
		return Branch{}, notFound(err)
	}
	return b, nil
}

func (r *txRepository) ListBranches(ctx context.Context, projectID int64) ([]Branch, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+branchColumns+` FROM branches b WHERE b.project_id = $1 ORDER BY b.created_at DESC, b.id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var branches []Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (r *txRepository) LockBranch(ctx context.Context, branchID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM branches WHERE id = $1 FOR UPDATE`, branchID).Scan(&id)
	return notFound(err)
}

func (r *txRepository) RenameBranch(ctx context.Context, branchID int64, name string) error {
	return r.execOne(ctx, `UPDATE branches SET name = $2 WHERE id = $1`, branchID, name)
}

func (r *txRepository) SetBranchTotalSpent(ctx context.Context, branchID int64, total decimal.Decimal) error {
	return r.execOne(ctx, `UPDATE branches SET total_spent = $2 WHERE id = $1`, branchID, total.StringFixed(amountScale))
}

func (r *txRepository) DeleteBranch(ctx context.Context, branchID int64) error {
	return r.execOne(ctx, `DELETE FROM branches WHERE id = $1`, branchID)
}

func (r *txRepository) ListBranchIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, `SELECT id FROM branches ORDER BY id`)
}

const subBranchColumns = `s.id, s.branch_id, s.name, s.amount::text, s.date, s.created_at`

func scanSubBranch(row pgx.Row) (SubBranch, error) {
	var s SubBranch
	if err := row.Scan(&s.ID, &s.BranchID, &s.Name, &s.Amount, &s.Date, &s.CreatedAt); err != nil {
		return SubBranch{}, err
	}
	return s, nil
}

func (r *txRepository) InsertSubBranch(ctx context.Context, branchID int64, in SubBranchInput) (SubBranch, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO sub_branches AS s (branch_id, name, amount, date)
VALUES ($1, $2, $3, $4) RETURNING `+subBranchColumns, branchID, in.Name, in.Amount.StringFixed(amountScale), dateOnly(in.Date))
	return scanSubBranch(row)
}

func (r *txRepository) GetSubBranch(ctx context.Context, userID, subBranchID int64) (SubBranch, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+subBranchColumns+` FROM sub_branches s
JOIN branches b ON b.id = s.branch_id
JOIN projects p ON p.id = b.project_id
WHERE s.id = $1 AND p.user_id = $2`, subBranchID, userID)
	s, err := scanSubBranch(row)
	if err != nil {
		return SubBranch{}, notFound(err)
	}
	return s, nil
}

func (r *txRepository) ListSubBranches(ctx context.Context, branchID int64) ([]SubBranch, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+subBranchColumns+` FROM sub_branches s WHERE s.branch_id = $1 ORDER BY s.date DESC, s.id DESC`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SubBranch
	for rows.Next() {
		s, err := scanSubBranch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *txRepository) UpdateSubBranch(ctx context.Context, subBranchID int64, in SubBranchInput) error {
	return r.execOne(ctx, `UPDATE sub_branches SET name = $2, amount = $3, date = $4 WHERE id = $1`,
		subBranchID, in.Name, in.Amount.StringFixed(amountScale), dateOnly(in.Date))
}

func (r *txRepository) DeleteSubBranch(ctx context.Context, subBranchID int64) error {
	return r.execOne(ctx, `DELETE FROM sub_branches WHERE id = $1`, subBranchID)
}

func (r *txRepository) SubBranchAmounts(ctx context.Context, branchID int64) ([]decimal.Decimal, error) {
	return r.amounts(ctx, `SELECT amount::text FROM sub_branches WHERE branch_id = $1`, branchID)
}

func (r *txRepository) BranchTotalSpent(ctx context.Context, branchID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT total_spent::text FROM branches WHERE id = $1`, branchID).Scan(&total)
	return total, notFound(err)
}

const releaseColumns = `h.id, h.project_id, h.amount::text, h.date, h.created_at`

func scanRelease(row pgx.Row) (ReleasedHistory, error) {
	var h ReleasedHistory
	if err := row.Scan(&h.ID, &h.ProjectID, &h.Amount, &h.Date, &h.CreatedAt); err != nil {
		return ReleasedHistory{}, err
	}
	return h, nil
}

func (r *txRepository) InsertRelease(ctx context.Context, projectID int64, in ReleaseInput) (ReleasedHistory, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO released_history AS h (project_id, amount, date)
VALUES ($1, $2, $3) RETURNING `+releaseColumns, projectID, in.Amount.StringFixed(amountScale), dateOnly(in.Date))
	return scanRelease(row)
}

func (r *txRepository) GetRelease(ctx context.Context, userID, releaseID int64) (ReleasedHistory, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+releaseColumns+` FROM released_history h
JOIN projects p ON p.id = h.project_id
WHERE h.id = $1 AND p.user_id = $2`, releaseID, userID)
	h, err := scanRelease(row)
	if err != nil {
		return ReleasedHistory{}, notFound(err)
	}
	return h, nil
}

func (r *txRepository) ListReleases(ctx context.Context, projectID int64) ([]ReleasedHistory, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+releaseColumns+` FROM released_history h WHERE h.project_id = $1 ORDER BY h.date DESC, h.id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []ReleasedHistory
	for rows.Next() {
		h, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (r *txRepository) UpdateRelease(ctx context.Context, releaseID int64, in ReleaseInput) error {
	return r.execOne(ctx, `UPDATE released_history SET amount = $2, date = $3 WHERE id = $1`,
		releaseID, in.Amount.StringFixed(amountScale), dateOnly(in.Date))
}

func (r *txRepository) DeleteRelease(ctx context.Context, releaseID int64) error {
	return r.execOne(ctx, `DELETE FROM released_history WHERE id = $1`, releaseID)
}

func (r *txRepository) ReleaseAmounts(ctx context.Context, projectID int64) ([]decimal.Decimal, error) {
	return r.amounts(ctx, `SELECT amount::text FROM released_history WHERE project_id = $1`, projectID)
}

func (r *txRepository) ProjectTotalReleased(ctx context.Context, projectID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT total_released::text FROM projects WHERE id = $1`, projectID).Scan(&total)
	return total, notFound(err)
}

func (r *txRepository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) amounts(ctx context.Context, sql string, args ...any) ([]decimal.Decimal, error) {
	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []decimal.Decimal
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, rows.Err()
}

func (r *txRepository) ids(ctx context.Context, sql string) ([]int64, error) {
	rows, err := r.tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
