package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/paperhub-api/internal/domain"
)

const selectPaperColumns = `SELECT id, name, description, term, semester, exam_date, professor,
	department, question_uri, solution_uri, owner_id, created_at, updated_at FROM papers`

// listLimit caps List results at the 20 most recent matches.
const listLimit = 20

// PaperRepo provides typed Postgres operations for the papers table.
type PaperRepo struct {
	db *sql.DB
}

func NewPaperRepo(db *sql.DB) *PaperRepo {
	return &PaperRepo{db: db}
}

func (r *PaperRepo) Create(ctx context.Context, p *domain.Paper) error {
	query := `INSERT INTO papers (name, description, term, semester, exam_date, professor,
	              department, question_uri, solution_uri, owner_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Term, p.Semester, p.Date, p.Professor,
		p.Department, p.QuestionURI, p.SolutionURI, p.OwnerID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}
	return nil
}

func (r *PaperRepo) Get(ctx context.Context, paperID int64) (*domain.Paper, error) {
	rows, err := r.db.QueryContext(ctx, selectPaperColumns+` WHERE id = $1`, paperID)
	if err != nil {
		return nil, fmt.Errorf("select paper: %w", err)
	}
	papers, err := collectPapers(rows)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("paper not found: %w", domain.ErrNotFound)
	}
	return &papers[0], nil
}

// List returns the newest matches, newest first. Equality filters are
// ANDed; the search term matches case-insensitively against name,
// description and professor.
func (r *PaperRepo) List(ctx context.Context, f domain.PaperFilter) ([]domain.Paper, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Search != "" {
		pattern := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(name ILIKE %[1]s OR description ILIKE %[1]s OR professor ILIKE %[1]s)", pattern))
	}
	if f.Department != "" {
		conds = append(conds, "department = "+arg(f.Department))
	}
	if f.Term != "" {
		conds = append(conds, "term = "+arg(f.Term))
	}
	if f.Semester != "" {
		conds = append(conds, "semester = "+arg(f.Semester))
	}
	query := selectPaperColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", listLimit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	return collectPapers(rows)
}

func (r *PaperRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Paper, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPaperColumns+` WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list papers by owner: %w", err)
	}
	return collectPapers(rows)
}

// Update applies a partial field update. updated_at is refreshed on
// every call, even when no fields are supplied.
func (r *PaperRepo) Update(ctx context.Context, paperID int64, updates map[string]any) error {
	set, args := buildSetClause(updates)
	if set != "" {
		set += ", "
	}
	args = append(args, paperID)
	query := fmt.Sprintf(`UPDATE papers SET %supdated_at = now() WHERE id = $%d`, set, len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update paper: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper not found: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteWithBookmarks removes every bookmark referencing the paper and
// then the paper row, atomically. Object-store cleanup is the caller's
// concern.
func (r *PaperRepo) DeleteWithBookmarks(ctx context.Context, paperID int64) error {
	return withTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE paper_id = $1`, paperID); err != nil {
			return fmt.Errorf("delete bookmarks: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = $1`, paperID)
		if err != nil {
			return fmt.Errorf("delete paper: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("paper not found: %w", domain.ErrNotFound)
		}
		return nil
	})
}

// buildSetClause converts a field->value map into a SET clause with
// positional placeholders. Columns are sorted so the generated SQL is
// deterministic regardless of map iteration order.
func buildSetClause(updates map[string]any) (string, []any) {
	cols := make([]string, 0, len(updates))
	for col := range updates {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		args = append(args, updates[col])
		parts = append(parts, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	return strings.Join(parts, ", "), args
}

func collectPapers(rows *sql.Rows) ([]domain.Paper, error) {
	defer rows.Close()
	var papers []domain.Paper
	for rows.Next() {
		var p domain.Paper
		err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Term, &p.Semester, &p.Date,
			&p.Professor, &p.Department, &p.QuestionURI, &p.SolutionURI, &p.OwnerID,
			&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return papers, nil
}
