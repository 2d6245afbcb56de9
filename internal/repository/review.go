package repository

import (
	"context"
	"errors"

	"resume-reviewer/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
)

// ReviewRepository is the append-mostly log of analysis results.
type ReviewRepository interface {
	Save(ctx context.Context, review *domain.Review) (string, error)
	Get(ctx context.Context, id string, ownerID int64) (*domain.Review, error)
	FindByOwner(ctx context.Context, ownerID int64, page, limit int) ([]domain.Review, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	AggregateByOwner(ctx context.Context, ownerID int64) (domain.ReviewAggregate, error)
	DeleteByID(ctx context.Context, id string, ownerID int64) error
	DeleteByOwner(ctx context.Context, ownerID int64) (int64, error)
}
