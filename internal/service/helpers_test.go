package service

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"resume-reviewer/internal/analysis"
	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/ingest"
	"resume-reviewer/internal/repository"
	"resume-reviewer/internal/repository/sqlite"
	"resume-reviewer/internal/storage"
)

type testEnv struct {
	db      *sqlx.DB
	users   repository.UserRepository
	reviews repository.ReviewRepository
	logger  *logrus.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "reviewer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, sqlite.Migrate(context.Background(), db, logger))

	return &testEnv{
		db:      db,
		users:   sqlite.NewUserRepository(db),
		reviews: sqlite.NewReviewRepository(db),
		logger:  logger,
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, PasswordHash: "hash", FirstName: "Test", LastName: "User"}
	_, err := e.users.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func (e *testEnv) reviewCount(t *testing.T, userID int64) int {
	t.Helper()
	user, err := e.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.ReviewCount
}

func (e *testEnv) seedReview(t *testing.T, ownerID int64, score int, at time.Time) *domain.Review {
	t.Helper()
	review := &domain.Review{OwnerID: &ownerID, ATSScore: score, CreatedAt: at}
	_, err := e.reviews.Save(context.Background(), review)
	require.NoError(t, err)
	return review
}

type fakeEngine struct {
	mu     sync.Mutex
	calls  int
	last   *ingest.Payload
	result *analysis.Result
	err    error
}

func (f *fakeEngine) Analyze(_ context.Context, payload *ingest.Payload) (*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = payload
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

type fakeArchive struct {
	objects      map[string][]byte
	deletedUsers []int64
	putErr       error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: map[string][]byte{}}
}

func (f *fakeArchive) Enabled() bool { return true }

func (f *fakeArchive) DocumentKey(ownerID *int64, reviewID string) string {
	if ownerID == nil {
		return "anonymous/" + reviewID + ".pdf"
	}
	return "users/" + itoa(*ownerID) + "/" + reviewID + ".pdf"
}

func (f *fakeArchive) Put(_ context.Context, key, _ string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeArchive) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeArchive) DeleteUser(_ context.Context, ownerID int64) error {
	f.deletedUsers = append(f.deletedUsers, ownerID)
	return nil
}

func (f *fakeArchive) UserDocuments(context.Context, int64) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (f *fakeArchive) URL(_ context.Context, key string) (string, time.Time, error) {
	return "https://archive.example/" + key, time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC), nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
