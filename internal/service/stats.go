package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// StatsAggregator derives per-user statistics from the review log on demand.
type StatsAggregator interface {
	ComputeStats(ctx context.Context, userID int64) (domain.ReviewStats, error)
}

type statsAggregator struct {
	reviews repository.ReviewRepository
	now     func() time.Time
}

func NewStatsAggregator(reviews repository.ReviewRepository) StatsAggregator {
	return &statsAggregator{reviews: reviews, now: time.Now}
}

func (s *statsAggregator) ComputeStats(ctx context.Context, userID int64) (domain.ReviewStats, error) {
	agg, err := s.reviews.AggregateByOwner(ctx, userID)
	if err != nil {
		return domain.ReviewStats{}, fmt.Errorf("aggregate reviews: %w", err)
	}
	if agg.Count == 0 {
		return domain.ReviewStats{}, nil
	}

	stats := domain.ReviewStats{
		ReviewsCount: agg.Count,
		AverageScore: int(math.Round(agg.AverageScore)),
	}
	if agg.LastReviewAt != nil {
		days := int(s.now().Sub(*agg.LastReviewAt) / (24 * time.Hour))
		if days < 0 {
			days = 0
		}
		stats.DaysSinceLastReview = &days
	}
	return stats, nil
}

// HistoryPager serves an owner's reviews newest first, one page at a time.
type HistoryPager interface {
	Page(ctx context.Context, userID int64, page, pageSize int) (*domain.HistoryPage, error)
}

type historyPager struct {
	store ReviewStore
}

func NewHistoryPager(store ReviewStore) HistoryPager {
	return &historyPager{store: store}
}

// Page never fails for an out-of-range page; it returns no reviews and the
// pagination metadata.
func (p *historyPager) Page(ctx context.Context, userID int64, page, pageSize int) (*domain.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total, err := p.store.CountByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}
	totalPages := (total + pageSize - 1) / pageSize

	reviews := []domain.Review{}
	if page <= totalPages {
		reviews, err = p.store.FindByOwner(ctx, userID, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("find reviews: %w", err)
		}
		if reviews == nil {
			reviews = []domain.Review{}
		}
	}

	return &domain.HistoryPage{
		Reviews: reviews,
		Pagination: domain.Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages,
			TotalReviews: total,
			HasNext:      page < totalPages,
			HasPrev:      page > 1,
		},
	}, nil
}
