package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/repository"
)

// ErrReviewNotFound covers both missing reviews and reviews owned by someone else.
var ErrReviewNotFound = errors.New("review not found")

// ReviewStore persists reviews and keeps the owner's review counter in step.
type ReviewStore interface {
	Save(ctx context.Context, review *domain.Review) (string, error)
	Get(ctx context.Context, id string, ownerID int64) (*domain.Review, error)
	FindByOwner(ctx context.Context, ownerID int64, page, limit int) ([]domain.Review, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	DeleteByID(ctx context.Context, id string, ownerID int64) error
}

type reviewStore struct {
	reviews repository.ReviewRepository
	users   repository.UserRepository
	archive DocumentArchive
	logger  *logrus.Logger
}

func NewReviewStore(reviews repository.ReviewRepository, users repository.UserRepository, archive DocumentArchive, logger *logrus.Logger) ReviewStore {
	return &reviewStore{
		reviews: reviews,
		users:   users,
		archive: archive,
		logger:  ensureLogger(logger),
	}
}

// Save writes the review, then bumps the owner's counter. A failed bump is
// logged and left for the reconciler.
func (s *reviewStore) Save(ctx context.Context, review *domain.Review) (string, error) {
	if review == nil {
		return "", errors.New("review is required")
	}
	review.ATSScore = domain.ClampScore(float64(review.ATSScore))
	review.ResumeExcerpt = domain.TruncateExcerpt(review.ResumeExcerpt)

	id, err := s.reviews.Save(ctx, review)
	if err != nil {
		return "", fmt.Errorf("save review: %w", err)
	}

	if review.OwnerID != nil {
		if err := s.users.AdjustReviewCount(ctx, *review.OwnerID, 1); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":   *review.OwnerID,
				"review_id": id,
			}).Warn("increment review counter failed")
		}
	}
	return id, nil
}

func (s *reviewStore) Get(ctx context.Context, id string, ownerID int64) (*domain.Review, error) {
	review, err := s.reviews.Get(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return review, nil
}

func (s *reviewStore) FindByOwner(ctx context.Context, ownerID int64, page, limit int) ([]domain.Review, error) {
	return s.reviews.FindByOwner(ctx, ownerID, page, limit)
}

func (s *reviewStore) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	return s.reviews.CountByOwner(ctx, ownerID)
}

// DeleteByID removes a review owned by ownerID. Reviews of other owners are
// reported as not found.
func (s *reviewStore) DeleteByID(ctx context.Context, id string, ownerID int64) error {
	review, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.reviews.DeleteByID(ctx, id, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("delete review: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{"user_id": ownerID, "review_id": id})
	if err := s.users.AdjustReviewCount(ctx, ownerID, -1); err != nil {
		log.WithError(err).Warn("decrement review counter failed")
	}
	if review.DocumentKey != "" && s.archive != nil && s.archive.Enabled() {
		if err := s.archive.Delete(ctx, review.DocumentKey); err != nil {
			log.WithError(err).Warn("delete archived document failed")
		}
	}
	return nil
}
