package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/repository"
)

func saveReview(t *testing.T, repo repository.ReviewRepository, owner *int64, score int, createdAt time.Time) *domain.Review {
	t.Helper()
	review := &domain.Review{
		OwnerID:         owner,
		ATSScore:        score,
		MatchedKeywords: []string{"go"},
		ResumeExcerpt:   "excerpt",
		CreatedAt:       createdAt,
	}
	_, err := repo.Save(context.Background(), review)
	require.NoError(t, err)
	return review
}

func TestReviewRepository_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db).(*UserRepository)
	reviews := NewReviewRepository(db)
	ctx := context.Background()
	owner := createUser(t, users, "owner@example.com")

	review := &domain.Review{
		OwnerID:            &owner.ID,
		ATSScore:           72,
		MatchedKeywords:    []string{"react"},
		MissingKeywords:    []string{"aws"},
		KeywordSuggestions: []string{"mention aws"},
		ImprovedBullets:    nil,
		ResumeExcerpt:      "X",
	}
	id, err := reviews.Save(ctx, review)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.False(t, review.CreatedAt.IsZero())

	got, err := reviews.Get(ctx, id, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 72, got.ATSScore)
	assert.Equal(t, []string{"react"}, got.MatchedKeywords)
	assert.Equal(t, []string{"aws"}, got.MissingKeywords)
	assert.Equal(t, []string{"mention aws"}, got.KeywordSuggestions)
	assert.Equal(t, []string{}, got.ImprovedBullets)
	assert.Equal(t, "X", got.ResumeExcerpt)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, owner.ID, *got.OwnerID)
	assert.True(t, review.CreatedAt.Equal(got.CreatedAt))
}

func TestReviewRepository_GetHidesForeignReviews(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db).(*UserRepository)
	reviews := NewReviewRepository(db)
	a := createUser(t, users, "a@example.com")
	b := createUser(t, users, "b@example.com")

	review := saveReview(t, reviews, &a.ID, 50, time.Time{})

	_, err := reviews.Get(context.Background(), review.ID, b.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = reviews.Get(context.Background(), "missing", a.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReviewRepository_AnonymousReview(t *testing.T) {
	db := newTestDB(t)
	reviews := NewReviewRepository(db)

	review := saveReview(t, reviews, nil, 40, time.Time{})
	assert.NotEmpty(t, review.ID)

	var owner sql.NullInt64
	err := db.Get(&owner, `SELECT user_id FROM reviews WHERE id = ?`, review.ID)
	require.NoError(t, err)
	assert.False(t, owner.Valid)
}

func TestReviewRepository_FindByOwnerNewestFirst(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db).(*UserRepository)
	reviews := NewReviewRepository(db)
	ctx := context.Background()
	owner := createUser(t, users, "pages@example.com")
	other := createUser(t, users, "other@example.com")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		saveReview(t, reviews, &owner.ID, 60+i, base.Add(time.Duration(i)*time.Hour))
	}
	saveReview(t, reviews, &other.ID, 10, base.Add(10*time.Hour))

	page1, err := reviews.FindByOwner(ctx, owner.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, 64, page1[0].ATSScore)
	assert.Equal(t, 63, page1[1].ATSScore)

	page3, err := reviews.FindByOwner(ctx, owner.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, 60, page3[0].ATSScore)

	page4, err := reviews.FindByOwner(ctx, owner.ID, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page4)

	count, err := reviews.CountByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestReviewRepository_SameTimestampKeepsInsertOrder(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db).(*UserRepository)
	reviews := NewReviewRepository(db)
	owner := createUser(t, users, "tie@example.com")

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := saveReview(t, reviews, &owner.ID, 10, at)
	second := saveReview(t, reviews, &owner.ID, 20, at)

	got, err := reviews.FindByOwner(context.Background(), owner.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}

func TestReviewRepository_Aggregate(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db).(*UserRepository)
	reviews := NewReviewRepository(db)
	ctx := context.Background()
	owner := createUser(t, users, "agg@example.com")

	empty, err := reviews.AggregateByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.AverageScore)
	assert.Nil(t, empty.LastReviewAt)

	older := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	saveReview(t, reviews, &owner.ID, 70, newer)
	saveReview(t, reviews, &owner.ID, 75, older)

	agg, err := reviews.AggregateByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Count)
	assert.InDelta(t, 72.5, agg.AverageScore, 0.0001)
	require.NotNil(t, agg.LastReviewAt)
	assert.True(t, newer.Equal(*agg.LastReviewAt))
}

func TestReviewRepository_DeleteByIDRequiresOwner(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db).(*UserRepository)
	reviews := NewReviewRepository(db)
	ctx := context.Background()
	a := createUser(t, users, "a@example.com")
	b := createUser(t, users, "b@example.com")
	review := saveReview(t, reviews, &a.ID, 50, time.Time{})

	err := reviews.DeleteByID(ctx, review.ID, b.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = reviews.Get(ctx, review.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, reviews.DeleteByID(ctx, review.ID, a.ID))
	assert.ErrorIs(t, reviews.DeleteByID(ctx, review.ID, a.ID), repository.ErrNotFound)
}

func TestReviewRepository_DeleteByOwnerAllowsUserDeletion(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db).(*UserRepository)
	reviews := NewReviewRepository(db)
	ctx := context.Background()
	owner := createUser(t, users, "cascade@example.com")
	saveReview(t, reviews, &owner.ID, 50, time.Time{})
	saveReview(t, reviews, &owner.ID, 60, time.Time{})

	// foreign key keeps the user while reviews reference it
	require.Error(t, users.Delete(ctx, owner.ID))

	n, err := reviews.DeleteByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, users.Delete(ctx, owner.ID))
}
