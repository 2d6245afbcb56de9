package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/repository"
)

const reviewColumns = `id, user_id, ats_score, matched_keywords, missing_keywords, keyword_suggestions, improved_bullets, resume_excerpt, document_key, created_at`

type ReviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) repository.ReviewRepository {
	return &ReviewRepository{db: db}
}

// Save inserts a new review. A missing ID or timestamp is filled in.
func (r *ReviewRepository) Save(ctx context.Context, review *domain.Review) (string, error) {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	review.CreatedAt = review.CreatedAt.UTC().Truncate(time.Millisecond)

	row, err := newReviewRow(review)
	if err != nil {
		return "", err
	}

	_, err = r.db.NamedExecContext(ctx, `
INSERT INTO reviews (`+reviewColumns+`)
VALUES (:id, :user_id, :ats_score, :matched_keywords, :missing_keywords, :keyword_suggestions, :improved_bullets, :resume_excerpt, :document_key, :created_at)`,
		row,
	)
	if err != nil {
		return "", fmt.Errorf("insert review: %w", err)
	}
	return review.ID, nil
}

func (r *ReviewRepository) Get(ctx context.Context, id string, ownerID int64) (*domain.Review, error) {
	var row reviewRow
	err := r.db.GetContext(ctx, &row, `SELECT `+reviewColumns+` FROM reviews WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("review %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return row.toDomain()
}

// FindByOwner returns one page of the owner's reviews, newest first. Pages start at 1.
func (r *ReviewRepository) FindByOwner(ctx context.Context, ownerID int64, page, limit int) ([]domain.Review, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []domain.Review{}, nil
	}

	var rows []reviewRow
	err := r.db.SelectContext(ctx, &rows, `
SELECT `+reviewColumns+`
FROM reviews
WHERE user_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ? OFFSET ?`,
		ownerID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	reviews := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		review, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *review)
	}
	return reviews, nil
}

func (r *ReviewRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reviews WHERE user_id = ?`, ownerID); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return count, nil
}

func (r *ReviewRepository) AggregateByOwner(ctx context.Context, ownerID int64) (domain.ReviewAggregate, error) {
	var row struct {
		Count        int             `db:"review_count"`
		AverageScore sql.NullFloat64 `db:"average_score"`
		LastCreated  sql.NullInt64   `db:"last_created_at"`
	}
	err := r.db.GetContext(ctx, &row, `
SELECT COUNT(*) AS review_count, AVG(ats_score) AS average_score, MAX(created_at) AS last_created_at
FROM reviews
WHERE user_id = ?`,
		ownerID,
	)
	if err != nil {
		return domain.ReviewAggregate{}, fmt.Errorf("aggregate reviews: %w", err)
	}

	agg := domain.ReviewAggregate{Count: row.Count}
	if row.AverageScore.Valid {
		agg.AverageScore = row.AverageScore.Float64
	}
	if row.LastCreated.Valid {
		last := time.UnixMilli(row.LastCreated.Int64).UTC()
		agg.LastReviewAt = &last
	}
	return agg, nil
}

// DeleteByID removes the review only when ownerID owns it.
func (r *ReviewRepository) DeleteByID(ctx context.Context, id string, ownerID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return expectAffected(res, "delete review "+id)
}

func (r *ReviewRepository) DeleteByOwner(ctx context.Context, ownerID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE user_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete owner reviews: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete owner reviews rows affected: %w", err)
	}
	return n, nil
}
