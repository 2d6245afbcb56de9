package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateProfileRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

func (h *Handler) getProfile(c *gin.Context) {
	session := sessionFrom(c)
	ctx := c.Request.Context()

	user, err := h.users.GetByID(ctx, session.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	stats, err := h.reviews.Stats(ctx, session.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    userToResponse(user),
		"stats":   stats,
	})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "First name and last name are required")
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), sessionFrom(c).UserID, req.FirstName, req.LastName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated successfully",
		"user":    userToResponse(user),
	})
}

func (h *Handler) deleteAccount(c *gin.Context) {
	if err := h.users.DeleteAccount(c.Request.Context(), sessionFrom(c).UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Account deleted successfully"})
}
