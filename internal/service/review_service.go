package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"resume-reviewer/internal/analysis"
	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/ingest"
)

var (
	// ErrReviewNotSaved means the engine produced a result that could not be persisted.
	ErrReviewNotSaved = errors.New("analysis completed but could not be saved")
	// ErrDocumentUnavailable is returned when a review has no archived document.
	ErrDocumentUnavailable = errors.New("document not available")
)

// AnalysisOutcome is a scored review and whether it reached the store.
type AnalysisOutcome struct {
	Review domain.Review
	Saved  bool
}

// DocumentLink is a time-limited URL to an archived resume.
type DocumentLink struct {
	URL       string
	ExpiresAt time.Time
}

// ReviewService runs the analyze pipeline and serves the read side.
type ReviewService interface {
	Analyze(ctx context.Context, ownerID *int64, in ingest.Input) (*AnalysisOutcome, error)
	Get(ctx context.Context, id string, ownerID int64) (*domain.Review, error)
	History(ctx context.Context, ownerID int64, page, limit int) (*domain.HistoryPage, error)
	Stats(ctx context.Context, ownerID int64) (domain.ReviewStats, error)
	Delete(ctx context.Context, id string, ownerID int64) error
	DocumentURL(ctx context.Context, id string, ownerID int64) (*DocumentLink, error)
}

type reviewService struct {
	adapter *ingest.Adapter
	engine  analysis.Client
	store   ReviewStore
	stats   StatsAggregator
	pager   HistoryPager
	archive DocumentArchive
	logger  *logrus.Logger
}

// ReviewServiceDeps groups the collaborators of NewReviewService.
type ReviewServiceDeps struct {
	Adapter *ingest.Adapter
	Engine  analysis.Client
	Store   ReviewStore
	Stats   StatsAggregator
	Pager   HistoryPager
	Archive DocumentArchive
	Logger  *logrus.Logger
}

func NewReviewService(deps ReviewServiceDeps) ReviewService {
	adapter := deps.Adapter
	if adapter == nil {
		adapter = ingest.NewAdapter(0)
	}
	return &reviewService{
		adapter: adapter,
		engine:  deps.Engine,
		store:   deps.Store,
		stats:   deps.Stats,
		pager:   deps.Pager,
		archive: deps.Archive,
		logger:  ensureLogger(deps.Logger),
	}
}

// Analyze validates the input, scores it once and persists the result. When
// persistence fails the outcome is still returned, unsaved, with an error
// wrapping ErrReviewNotSaved.
func (s *reviewService) Analyze(ctx context.Context, ownerID *int64, in ingest.Input) (*AnalysisOutcome, error) {
	payload, err := s.adapter.Normalize(in)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Analyze(ctx, payload)
	if err != nil {
		return nil, err
	}

	review := domain.Review{
		ID:                 uuid.NewString(),
		OwnerID:            ownerID,
		ATSScore:           domain.ClampScore(result.ATSScore),
		MatchedKeywords:    result.MatchedKeywords,
		MissingKeywords:    result.MissingKeywords,
		KeywordSuggestions: result.KeywordSuggestions,
		ImprovedBullets:    result.ImprovedBullets,
		ResumeExcerpt:      result.ResumeExcerpt,
		CreatedAt:          time.Now().UTC(),
	}
	if review.ResumeExcerpt == "" {
		review.ResumeExcerpt = payload.Resume.Excerpt()
	}
	review.ResumeExcerpt = domain.TruncateExcerpt(review.ResumeExcerpt)

	log := s.logger.WithFields(logrus.Fields{
		"review_id":   review.ID,
		"resume_kind": payload.Resume.Kind(),
	})
	if ownerID != nil {
		log = log.WithField("user_id", *ownerID)
	}

	if doc, ok := payload.Resume.(ingest.Document); ok && s.archive != nil && s.archive.Enabled() {
		key := s.archive.DocumentKey(ownerID, review.ID)
		if err := s.archive.Put(ctx, key, doc.ContentType, doc.Data); err != nil {
			log.WithError(err).Warn("archive resume document failed")
		} else {
			review.DocumentKey = key
		}
	}

	if _, err := s.store.Save(ctx, &review); err != nil {
		log.WithError(err).Error("persist review failed")
		if review.DocumentKey != "" {
			if derr := s.archive.Delete(ctx, review.DocumentKey); derr != nil {
				log.WithError(derr).Warn("remove orphaned document failed")
			}
			review.DocumentKey = ""
		}
		return &AnalysisOutcome{Review: review, Saved: false}, fmt.Errorf("%w: %v", ErrReviewNotSaved, err)
	}

	log.WithField("ats_score", review.ATSScore).Info("review saved")
	return &AnalysisOutcome{Review: review, Saved: true}, nil
}

func (s *reviewService) Get(ctx context.Context, id string, ownerID int64) (*domain.Review, error) {
	return s.store.Get(ctx, id, ownerID)
}

func (s *reviewService) History(ctx context.Context, ownerID int64, page, limit int) (*domain.HistoryPage, error) {
	return s.pager.Page(ctx, ownerID, page, limit)
}

func (s *reviewService) Stats(ctx context.Context, ownerID int64) (domain.ReviewStats, error) {
	return s.stats.ComputeStats(ctx, ownerID)
}

func (s *reviewService) Delete(ctx context.Context, id string, ownerID int64) error {
	return s.store.DeleteByID(ctx, id, ownerID)
}

func (s *reviewService) DocumentURL(ctx context.Context, id string, ownerID int64) (*DocumentLink, error) {
	review, err := s.store.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if review.DocumentKey == "" || s.archive == nil || !s.archive.Enabled() {
		return nil, ErrDocumentUnavailable
	}
	url, expiresAt, err := s.archive.URL(ctx, review.DocumentKey)
	if err != nil {
		return nil, fmt.Errorf("presign document: %w", err)
	}
	return &DocumentLink{URL: url, ExpiresAt: expiresAt}, nil
}
