package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"resume-reviewer/internal/analysis"
	"resume-reviewer/internal/auth"
	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/ingest"
	"resume-reviewer/internal/service"
)

type ReviewResponse struct {
	ID                 string   `json:"id"`
	ATSScore           int      `json:"atsScore"`
	MatchedKeywords    []string `json:"matchedKeywords"`
	MissingKeywords    []string `json:"missingKeywords"`
	KeywordSuggestions []string `json:"keywordSuggestions"`
	ImprovedBullets    []string `json:"improvedBullets"`
	ResumeExcerpt      string   `json:"resumeExcerpt"`
	HasDocument        bool     `json:"hasDocument"`
	CreatedAt          string   `json:"createdAt"`
}

type UserResponse struct {
	ID          int64   `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	FullName    string  `json:"fullName"`
	Email       string  `json:"email"`
	IsAdmin     bool    `json:"isAdmin"`
	ReviewCount int     `json:"reviewCount"`
	CreatedAt   string  `json:"createdAt"`
	LastLogin   *string `json:"lastLogin,omitempty"`
}

func reviewToResponse(review domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:                 review.ID,
		ATSScore:           review.ATSScore,
		MatchedKeywords:    orEmpty(review.MatchedKeywords),
		MissingKeywords:    orEmpty(review.MissingKeywords),
		KeywordSuggestions: orEmpty(review.KeywordSuggestions),
		ImprovedBullets:    orEmpty(review.ImprovedBullets),
		ResumeExcerpt:      review.ResumeExcerpt,
		HasDocument:        review.DocumentKey != "",
		CreatedAt:          review.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func userToResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:          user.ID,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		FullName:    user.FullName(),
		Email:       user.Email,
		IsAdmin:     user.IsAdmin,
		ReviewCount: user.ReviewCount,
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		v := user.LastLoginAt.UTC().Format(time.RFC3339)
		resp.LastLogin = &v
	}
	return resp
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// writeError maps service errors to status codes. Unknown errors become a
// generic 500 and are only logged.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "Not authorized, please log in")
	case errors.Is(err, service.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, ingest.ErrDocumentTooLarge):
		fail(c, http.StatusBadRequest, "Resume file must be 5MB or smaller")
	case errors.Is(err, ingest.ErrUnsupportedDocument):
		fail(c, http.StatusBadRequest, "Only PDF resumes are supported")
	case errors.Is(err, ingest.ErrBadRequest):
		fail(c, http.StatusBadRequest, "Missing resume or job description")
	case errors.Is(err, service.ErrInvalidInput):
		fail(c, http.StatusBadRequest, strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": "))
	case errors.Is(err, analysis.ErrUnavailable):
		h.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Warn("analysis unavailable")
		fail(c, http.StatusServiceUnavailable, "Analysis temporarily unavailable, please try again")
	case errors.Is(err, service.ErrReviewNotFound):
		fail(c, http.StatusNotFound, "Review not found")
	case errors.Is(err, service.ErrDocumentUnavailable):
		fail(c, http.StatusNotFound, "Document not available")
	case errors.Is(err, service.ErrUserNotFound):
		fail(c, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrUserAlreadyExists):
		fail(c, http.StatusConflict, "User already exists with this email")
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(requestIDKey),
		}).Error("request failed")
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}
