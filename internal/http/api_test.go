package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-reviewer/internal/analysis"
	"resume-reviewer/internal/auth"
	"resume-reviewer/internal/ingest"
	"resume-reviewer/internal/repository"
	"resume-reviewer/internal/repository/sqlite"
	"resume-reviewer/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEngine struct {
	mu     sync.Mutex
	calls  int
	result analysis.Result
	err    error
}

func (f *fakeEngine) Analyze(context.Context, *ingest.Payload) (*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	return &res, nil
}

type testServer struct {
	router  *gin.Engine
	engine  *fakeEngine
	users   repository.UserRepository
	reviews repository.ReviewRepository
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "reviewer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, sqlite.Migrate(context.Background(), db, logger))

	userRepo := sqlite.NewUserRepository(db)
	reviewRepo := sqlite.NewReviewRepository(db)
	engine := &fakeEngine{result: analysis.Result{
		ATSScore:           72,
		MatchedKeywords:    []string{"react"},
		MissingKeywords:    []string{"aws"},
		KeywordSuggestions: []string{"Add AWS experience"},
		ImprovedBullets:    []string{},
	}}

	store := service.NewReviewStore(reviewRepo, userRepo, nil, logger)
	reviews := service.NewReviewService(service.ReviewServiceDeps{
		Adapter: ingest.NewAdapter(maxUpload),
		Engine:  engine,
		Store:   store,
		Stats:   service.NewStatsAggregator(reviewRepo),
		Pager:   service.NewHistoryPager(store),
		Logger:  logger,
	})

	router := gin.New()
	NewHandler(Options{
		Users:          service.NewUserService(userRepo, reviewRepo, nil, logger),
		Reviews:        reviews,
		Tokens:         auth.NewManager("test-secret", time.Hour, userRepo),
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:5173"},
		MaxUploadBytes: maxUpload,
	}).RegisterRoutes(router)

	return &testServer{router: router, engine: engine, users: userRepo, reviews: reviewRepo}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func jsonRequest(method, path, token string, payload any) *http.Request {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

type uploadPart struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, token string, fields map[string]string, file *uploadPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="resume_pdf"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/review/analyze", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (s *testServer) signup(t *testing.T, email string) (string, int64) {
	t.Helper()
	rec, body := s.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"email":           email,
		"password":        "Secret123",
		"confirmPassword": "Secret123",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := body["user"].(map[string]any)
	return body["token"].(string), int64(user["id"].(float64))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	rec, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Server is running", body["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.signup(t, "ada@example.com")
	assert.NotEmpty(t, token)

	rec, body := s.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "email": "ADA@example.com",
		"password": "Secret123", "confirmPassword": "Secret123",
	}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, body = s.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"firstName": "Bo", "lastName": "Li", "email": "bo@example.com",
		"password": "weak", "confirmPassword": "weak",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "password")

	rec, body = s.do(t, jsonRequest(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "Secret123",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "PasswordHash")
	assert.NotEmpty(t, user["lastLogin"])

	rec, body = s.do(t, jsonRequest(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "Wrong123",
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", body["message"])

	rec, _ = s.do(t, jsonRequest(http.MethodPost, "/api/auth/logout", token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReviewRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, 0)
	for _, path := range []string{"/api/review/history", "/api/review/stats", "/api/review/abc", "/api/users/profile"} {
		rec, body := s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Not authorized, please log in", body["message"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/review/stats", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec, _ := s.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeText_EndToEnd(t *testing.T) {
	s := newTestServer(t, 0)
	token, userID := s.signup(t, "a@example.com")

	rec, body := s.do(t, multipartRequest(t, token, map[string]string{"jd": "Y", "resume_text": "X"}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["saved"])
	analysisBody := body["analysis"].(map[string]any)
	assert.EqualValues(t, 72, analysisBody["atsScore"])
	assert.Equal(t, []any{"react"}, analysisBody["matchedKeywords"])
	assert.Equal(t, []any{"aws"}, analysisBody["missingKeywords"])
	assert.Equal(t, []any{}, analysisBody["improvedBullets"])
	assert.Equal(t, "X", analysisBody["resumeExcerpt"])
	reviewID := analysisBody["id"].(string)

	user, err := s.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.ReviewCount)

	rec, body = s.do(t, jsonRequest(http.MethodGet, "/api/review/stats", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["reviewsCount"])
	assert.EqualValues(t, 72, stats["averageScore"])
	assert.EqualValues(t, 0, stats["daysSinceLastReview"])

	rec, body = s.do(t, jsonRequest(http.MethodGet, "/api/review/"+reviewID, token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reviewID, body["review"].(map[string]any)["id"])

	rec, body = s.do(t, jsonRequest(http.MethodGet, "/api/review/history", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["reviews"], 1)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["currentPage"])
	assert.EqualValues(t, 1, pagination["totalPages"])
	assert.Equal(t, false, pagination["hasNext"])
}

func TestAnalyze_Validation(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.signup(t, "a@example.com")

	rec, body := s.do(t, multipartRequest(t, token, map[string]string{"resume_text": "X"}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing resume or job description", body["message"])

	rec, _ = s.do(t, multipartRequest(t, token, map[string]string{"jd": "Y"}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, multipartRequest(t, token, map[string]string{"jd": "Y"}, &uploadPart{
		name: "cv.docx", contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data: []byte("PK\x03\x04"),
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only PDF resumes are supported", body["message"])

	assert.Zero(t, s.engine.calls)
}

func TestAnalyze_DocumentUpload(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.signup(t, "a@example.com")

	rec, body := s.do(t, multipartRequest(t, token, map[string]string{"jd": "Y"}, &uploadPart{
		name: "cv.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4 minimal"),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PDF uploaded", body["analysis"].(map[string]any)["resumeExcerpt"])
	assert.Equal(t, false, body["analysis"].(map[string]any)["hasDocument"])
}

func TestAnalyze_DocumentTooLarge(t *testing.T) {
	s := newTestServer(t, 64)
	token, _ := s.signup(t, "a@example.com")

	data := append([]byte("%PDF-1.4 "), bytes.Repeat([]byte("x"), 128)...)
	rec, body := s.do(t, multipartRequest(t, token, map[string]string{"jd": "Y"}, &uploadPart{
		name: "cv.pdf", contentType: "application/pdf", data: data,
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Resume file must be 5MB or smaller", body["message"])
	assert.Zero(t, s.engine.calls)
}

func TestAnalyze_EngineUnavailable(t *testing.T) {
	s := newTestServer(t, 0)
	token, userID := s.signup(t, "a@example.com")
	s.engine.err = &analysis.UnavailableError{Kind: analysis.FailureStatus, StatusCode: 502}

	rec, body := s.do(t, multipartRequest(t, token, map[string]string{"jd": "Y", "resume_text": "X"}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Analysis temporarily unavailable, please try again", body["message"])
	assert.NotContains(t, rec.Body.String(), "502")

	count, err := s.reviews.CountByOwner(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHistory_PaginationParams(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.signup(t, "a@example.com")
	for i := 0; i < 5; i++ {
		rec, _ := s.do(t, multipartRequest(t, token, map[string]string{"jd": "Y", "resume_text": "X"}, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := s.do(t, jsonRequest(http.MethodGet, "/api/review/history?page=2&limit=10", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["reviews"])
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["currentPage"])
	assert.EqualValues(t, 5, pagination["totalReviews"])
	assert.Equal(t, false, pagination["hasNext"])
	assert.Equal(t, true, pagination["hasPrev"])

	rec, body = s.do(t, jsonRequest(http.MethodGet, "/api/review/history?page=abc&limit=-3", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["reviews"], 5)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["currentPage"])

	rec, body = s.do(t, jsonRequest(http.MethodGet, "/api/review/history?limit=2&page=2", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["reviews"], 2)
	assert.EqualValues(t, 3, body["pagination"].(map[string]any)["totalPages"])
}

func TestStats_NoReviews(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.signup(t, "a@example.com")

	rec, _ := s.do(t, jsonRequest(http.MethodGet, "/api/review/stats", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"stats":{"reviewsCount":0,"averageScore":0,"daysSinceLastReview":null}}`, rec.Body.String())
}

func TestDeleteReview_Ownership(t *testing.T) {
	s := newTestServer(t, 0)
	alice, aliceID := s.signup(t, "alice@example.com")
	bob, bobID := s.signup(t, "bob@example.com")

	_, body := s.do(t, multipartRequest(t, alice, map[string]string{"jd": "Y", "resume_text": "X"}, nil))
	reviewID := body["analysis"].(map[string]any)["id"].(string)
	_, _ = s.do(t, multipartRequest(t, bob, map[string]string{"jd": "Y", "resume_text": "X"}, nil))

	rec, body := s.do(t, jsonRequest(http.MethodDelete, "/api/review/"+reviewID, bob, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Review not found", body["message"])

	rec, _ = s.do(t, jsonRequest(http.MethodGet, "/api/review/"+reviewID, bob, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, id := range []int64{aliceID, bobID} {
		u, err := s.users.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 1, u.ReviewCount)
	}

	rec, _ = s.do(t, jsonRequest(http.MethodDelete, "/api/review/"+reviewID, alice, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	u, err := s.users.GetByID(context.Background(), aliceID)
	require.NoError(t, err)
	assert.Zero(t, u.ReviewCount)

	rec, _ = s.do(t, jsonRequest(http.MethodGet, "/api/review/"+reviewID+"/document", alice, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileAndAccountDeletion(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.signup(t, "a@example.com")
	_, _ = s.do(t, multipartRequest(t, token, map[string]string{"jd": "Y", "resume_text": "X"}, nil))

	rec, body := s.do(t, jsonRequest(http.MethodGet, "/api/users/profile", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@example.com", body["user"].(map[string]any)["email"])
	assert.EqualValues(t, 1, body["stats"].(map[string]any)["reviewsCount"])

	rec, body = s.do(t, jsonRequest(http.MethodPut, "/api/users/profile", token, map[string]string{
		"firstName": "Grace", "lastName": "Hopper",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Grace", body["user"].(map[string]any)["firstName"])

	rec, _ = s.do(t, jsonRequest(http.MethodPut, "/api/users/profile", token, map[string]string{
		"firstName": "G", "lastName": "Hopper",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, jsonRequest(http.MethodDelete, "/api/users/account", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// the token is still signed and unexpired but its subject is gone
	rec, _ = s.do(t, jsonRequest(http.MethodGet, "/api/review/stats", token, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/review/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryAndNoRoute(t *testing.T) {
	s := newTestServer(t, 0)
	s.router.GET("/api/boom", func(*gin.Context) { panic("kaboom") })

	rec, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["message"])
	assert.False(t, strings.Contains(rec.Body.String(), "kaboom"))

	rec, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", body["message"])
}
