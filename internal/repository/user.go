package repository

import (
	"context"
	"time"

	"resume-reviewer/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, firstName, lastName string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	AdjustReviewCount(ctx context.Context, id int64, delta int) error
	SetReviewCount(ctx context.Context, id int64, count int) error
	ListIDs(ctx context.Context) ([]int64, error)
	Delete(ctx context.Context, id int64) error
}
