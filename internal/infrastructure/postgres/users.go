package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/paperhub-api/internal/domain"
)

const pgUniqueViolation = "23505"

// UserRepo provides typed Postgres operations for the users table.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts the user and fills in its assigned id and creation
// time. A duplicate email surfaces as domain.ErrConflict via the unique
// constraint, never as a read-then-write race.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (username, email, password_hash, verified, department)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.Verified, u.Department,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, username, email, password_hash, verified, department, created_at
	          FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepo) Get(ctx context.Context, userID int64) (*domain.User, error) {
	query := `SELECT id, username, email, password_hash, verified, department, created_at
	          FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// MarkVerified flips the verified flag. Repeated calls are harmless.
func (r *UserRepo) MarkVerified(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return nil
}

// ResetPassword overwrites the stored hash and consumes the reset
// token's jti in the same transaction. A jti seen before hits the
// used_tokens primary key and the whole operation fails with
// domain.ErrUnauthorized, so a reset token works exactly once.
func (r *UserRepo) ResetPassword(ctx context.Context, email, newHash, jti string, tokenExpiry time.Time) error {
	return withTx(ctx, r.db, func(tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO used_tokens (jti, expires_at) VALUES ($1, $2)`, jti, tokenExpiry)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return fmt.Errorf("reset token already used: %w", domain.ErrUnauthorized)
			}
			return fmt.Errorf("consume token: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = $1 WHERE email = $2`, newHash, email)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil
	})
}

// DeleteCascade removes the user's bookmarks, all bookmarks on the
// user's papers, the papers themselves and finally the user row, all in
// one transaction. It returns the deleted papers so the caller can
// clean up their backing objects.
func (r *UserRepo) DeleteCascade(ctx context.Context, userID int64) ([]domain.Paper, error) {
	var papers []domain.Paper
	err := withTx(ctx, r.db, func(tx DBTX) error {
		rows, err := tx.QueryContext(ctx, selectPaperColumns+` WHERE owner_id = $1`, userID)
		if err != nil {
			return fmt.Errorf("select papers: %w", err)
		}
		papers, err = collectPapers(rows)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete user bookmarks: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM bookmarks WHERE paper_id IN (SELECT id FROM papers WHERE owner_id = $1)`, userID); err != nil {
			return fmt.Errorf("delete paper bookmarks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE owner_id = $1`, userID); err != nil {
			return fmt.Errorf("delete papers: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return papers, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Verified, &u.Department, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
