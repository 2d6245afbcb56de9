package domain

import (
	"math"
	"time"
)

const (
	// MinATSScore and MaxATSScore bound every persisted score.
	MinATSScore = 0
	MaxATSScore = 100

	// MaxExcerptLength caps the stored resume excerpt, in characters.
	MaxExcerptLength = 500
)

// Review is a single completed analysis. It is immutable once saved.
type Review struct {
	ID                 string
	OwnerID            *int64
	ATSScore           int
	MatchedKeywords    []string
	MissingKeywords    []string
	KeywordSuggestions []string
	ImprovedBullets    []string
	ResumeExcerpt      string
	DocumentKey        string
	CreatedAt          time.Time
}

// OwnedBy reports whether the review belongs to userID.
func (r Review) OwnedBy(userID int64) bool {
	return r.OwnerID != nil && *r.OwnerID == userID
}

// ReviewAggregate is the raw aggregate of an owner's review log.
type ReviewAggregate struct {
	Count        int
	AverageScore float64
	LastReviewAt *time.Time
}

// ReviewStats is the derived per-user statistics view.
type ReviewStats struct {
	ReviewsCount        int  `json:"reviewsCount"`
	AverageScore        int  `json:"averageScore"`
	DaysSinceLastReview *int `json:"daysSinceLastReview"`
}

// Pagination describes where a history page sits in the owner's log.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalReviews int  `json:"totalReviews"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// HistoryPage is one page of an owner's reviews, newest first.
type HistoryPage struct {
	Reviews    []Review
	Pagination Pagination
}

// ClampScore rounds a raw engine score and bounds it to [MinATSScore, MaxATSScore].
func ClampScore(raw float64) int {
	if math.IsNaN(raw) {
		return MinATSScore
	}
	score := math.Round(raw)
	if score < MinATSScore {
		return MinATSScore
	}
	if score > MaxATSScore {
		return MaxATSScore
	}
	return int(score)
}

// TruncateExcerpt keeps at most MaxExcerptLength characters of s.
func TruncateExcerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxExcerptLength {
		return s
	}
	return string(runes[:MaxExcerptLength])
}
