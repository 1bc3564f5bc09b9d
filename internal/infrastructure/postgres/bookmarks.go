package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paperhub-api/internal/domain"
)

// BookmarkRepo provides typed Postgres operations for the bookmarks table.
type BookmarkRepo struct {
	db *sql.DB
}

func NewBookmarkRepo(db *sql.DB) *BookmarkRepo {
	return &BookmarkRepo{db: db}
}

func (r *BookmarkRepo) Get(ctx context.Context, userID, paperID int64) (*domain.Bookmark, error) {
	b := &domain.Bookmark{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, paper_id, user_id, created_at FROM bookmarks WHERE user_id = $1 AND paper_id = $2`,
		userID, paperID,
	).Scan(&b.ID, &b.PaperID, &b.UserID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bookmark not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("select bookmark: %w", err)
	}
	return b, nil
}

// Create inserts the pair. The (user_id, paper_id) unique constraint
// makes a concurrent double-toggle a no-op conflict rather than a
// duplicate row.
func (r *BookmarkRepo) Create(ctx context.Context, b *domain.Bookmark) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO bookmarks (paper_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, paper_id) DO NOTHING
		 RETURNING id, created_at`,
		b.PaperID, b.UserID,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("already bookmarked: %w", domain.ErrConflict)
		}
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

func (r *BookmarkRepo) Delete(ctx context.Context, userID, paperID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE user_id = $1 AND paper_id = $2`, userID, paperID)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bookmark not found: %w", domain.ErrNotFound)
	}
	return nil
}

// ListPapers returns the papers the user has bookmarked, most recently
// bookmarked first.
func (r *BookmarkRepo) ListPapers(ctx context.Context, userID int64) ([]domain.Paper, error) {
	query := `SELECT p.id, p.name, p.description, p.term, p.semester, p.exam_date, p.professor,
	              p.department, p.question_uri, p.solution_uri, p.owner_id, p.created_at, p.updated_at
	          FROM bookmarks b
	          JOIN papers p ON p.id = b.paper_id
	          WHERE b.user_id = $1
	          ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarked papers: %w", err)
	}
	return collectPapers(rows)
}
