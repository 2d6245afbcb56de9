package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"resume-reviewer/internal/ingest"
	"resume-reviewer/internal/service"
)

const (
	jobDescriptionField = "jd"
	resumeFileField     = "resume_pdf"
	resumeTextField     = "resume_text"

	// multipart framing and the text fields on top of the document ceiling
	formOverhead = 1 << 20
)

func (h *Handler) analyze(c *gin.Context) {
	session := sessionFrom(c)

	limit := h.maxUpload + formOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	if err := c.Request.ParseMultipartForm(limit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			h.writeError(c, ingest.ErrDocumentTooLarge)
			return
		}
		fail(c, http.StatusBadRequest, "Invalid form data")
		return
	}
	if c.Request.MultipartForm != nil {
		defer c.Request.MultipartForm.RemoveAll()
	}

	input := ingest.Input{
		JobDescription: c.PostForm(jobDescriptionField),
		Text:           c.PostForm(resumeTextField),
	}

	if fh := formFile(c.Request.MultipartForm, resumeFileField); fh != nil {
		file, err := fh.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "Could not read uploaded resume")
			return
		}
		defer file.Close()
		input.Document = &ingest.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     file,
		}
	}

	outcome, err := h.reviews.Analyze(c.Request.Context(), &session.UserID, input)
	if err != nil {
		if errors.Is(err, service.ErrReviewNotSaved) && outcome != nil {
			c.JSON(http.StatusOK, gin.H{
				"success":  true,
				"saved":    false,
				"message":  "Resume analyzed, but the result could not be saved to your history",
				"analysis": reviewToResponse(outcome.Review),
			})
			h.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("review not saved")
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"saved":    true,
		"message":  "Resume analyzed successfully",
		"analysis": reviewToResponse(outcome.Review),
	})
}

func formFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func (h *Handler) history(c *gin.Context) {
	page := positiveQuery(c, "page", 1)
	limit := positiveQuery(c, "limit", service.DefaultPageSize)
	if limit > service.MaxPageSize {
		limit = service.MaxPageSize
	}

	result, err := h.reviews.History(c.Request.Context(), sessionFrom(c).UserID, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	reviews := make([]ReviewResponse, len(result.Reviews))
	for i := range result.Reviews {
		reviews[i] = reviewToResponse(result.Reviews[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"reviews":    reviews,
		"pagination": result.Pagination,
	})
}

func positiveQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.reviews.Stats(c.Request.Context(), sessionFrom(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (h *Handler) getReview(c *gin.Context) {
	review, err := h.reviews.Get(c.Request.Context(), c.Param("id"), sessionFrom(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "review": reviewToResponse(*review)})
}

func (h *Handler) reviewDocument(c *gin.Context) {
	link, err := h.reviews.DocumentURL(c.Request.Context(), c.Param("id"), sessionFrom(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"url":       link.URL,
		"expiresAt": link.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) deleteReview(c *gin.Context) {
	if err := h.reviews.Delete(c.Request.Context(), c.Param("id"), sessionFrom(c).UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Review deleted successfully"})
}
