package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"resume-reviewer/internal/domain"
)

type userRow struct {
	ID           int64        `db:"id"`
	Email        string       `db:"email"`
	PasswordHash string       `db:"password_hash"`
	FirstName    string       `db:"first_name"`
	LastName     string       `db:"last_name"`
	IsAdmin      bool         `db:"is_admin"`
	ReviewCount  int          `db:"review_count"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLoginAt  sql.NullTime `db:"last_login_at"`
}

func (r userRow) toDomain() *domain.User {
	user := &domain.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		IsAdmin:      r.IsAdmin,
		ReviewCount:  r.ReviewCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastLoginAt.Valid {
		t := r.LastLoginAt.Time
		user.LastLoginAt = &t
	}
	return user
}

type reviewRow struct {
	ID                 string        `db:"id"`
	UserID             sql.NullInt64 `db:"user_id"`
	ATSScore           int           `db:"ats_score"`
	MatchedKeywords    string        `db:"matched_keywords"`
	MissingKeywords    string        `db:"missing_keywords"`
	KeywordSuggestions string        `db:"keyword_suggestions"`
	ImprovedBullets    string        `db:"improved_bullets"`
	ResumeExcerpt      string        `db:"resume_excerpt"`
	DocumentKey        string        `db:"document_key"`
	CreatedAt          int64         `db:"created_at"`
}

func newReviewRow(review *domain.Review) (reviewRow, error) {
	row := reviewRow{
		ID:            review.ID,
		ATSScore:      review.ATSScore,
		ResumeExcerpt: review.ResumeExcerpt,
		DocumentKey:   review.DocumentKey,
		CreatedAt:     review.CreatedAt.UnixMilli(),
	}
	if review.OwnerID != nil {
		row.UserID = sql.NullInt64{Int64: *review.OwnerID, Valid: true}
	}

	var err error
	if row.MatchedKeywords, err = encodeList(review.MatchedKeywords); err != nil {
		return reviewRow{}, fmt.Errorf("encode matched keywords: %w", err)
	}
	if row.MissingKeywords, err = encodeList(review.MissingKeywords); err != nil {
		return reviewRow{}, fmt.Errorf("encode missing keywords: %w", err)
	}
	if row.KeywordSuggestions, err = encodeList(review.KeywordSuggestions); err != nil {
		return reviewRow{}, fmt.Errorf("encode keyword suggestions: %w", err)
	}
	if row.ImprovedBullets, err = encodeList(review.ImprovedBullets); err != nil {
		return reviewRow{}, fmt.Errorf("encode improved bullets: %w", err)
	}
	return row, nil
}

func (r reviewRow) toDomain() (*domain.Review, error) {
	review := &domain.Review{
		ID:            r.ID,
		ATSScore:      r.ATSScore,
		ResumeExcerpt: r.ResumeExcerpt,
		DocumentKey:   r.DocumentKey,
		CreatedAt:     time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.UserID.Valid {
		owner := r.UserID.Int64
		review.OwnerID = &owner
	}

	var err error
	if review.MatchedKeywords, err = decodeList(r.MatchedKeywords); err != nil {
		return nil, fmt.Errorf("decode matched keywords of %s: %w", r.ID, err)
	}
	if review.MissingKeywords, err = decodeList(r.MissingKeywords); err != nil {
		return nil, fmt.Errorf("decode missing keywords of %s: %w", r.ID, err)
	}
	if review.KeywordSuggestions, err = decodeList(r.KeywordSuggestions); err != nil {
		return nil, fmt.Errorf("decode keyword suggestions of %s: %w", r.ID, err)
	}
	if review.ImprovedBullets, err = decodeList(r.ImprovedBullets); err != nil {
		return nil, fmt.Errorf("decode improved bullets of %s: %w", r.ID, err)
	}
	return review, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	items := []string{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
