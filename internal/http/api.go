package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"resume-reviewer/internal/auth"
	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/ingest"
	"resume-reviewer/internal/service"
)

// TokenManager issues and verifies bearer tokens.
type TokenManager interface {
	Issue(user *domain.User) (string, time.Time, error)
	Verify(ctx context.Context, header string) (*auth.Session, error)
}

// Options wires the handler to its services.
type Options struct {
	Users          service.UserService
	Reviews        service.ReviewService
	Tokens         TokenManager
	Logger         *logrus.Logger
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	reviews   service.ReviewService
	tokens    TokenManager
	logger    *logrus.Logger
	origins   map[string]struct{}
	anyOrigin bool
	maxUpload int64
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = ingest.DefaultMaxDocumentBytes
	}

	h := &Handler{
		users:     opts.Users,
		reviews:   opts.Reviews,
		tokens:    opts.Tokens,
		logger:    logger,
		origins:   make(map[string]struct{}),
		maxUpload: maxUpload,
	}
	for _, origin := range opts.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			h.anyOrigin = true
		default:
			h.origins[origin] = struct{}{}
		}
	}
	return h
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(recoveryMiddleware(h.logger), requestLogger(h.logger), h.corsMiddleware())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "Server is running"})
		})

		authGroup := api.Group("/auth")
		authGroup.POST("/signup", h.signup)
		authGroup.POST("/login", h.login)
		authGroup.POST("/logout", h.requireAuth(), h.logout)

		users := api.Group("/users", h.requireAuth())
		users.GET("/profile", h.getProfile)
		users.PUT("/profile", h.updateProfile)
		users.DELETE("/account", h.deleteAccount)

		reviews := api.Group("/review", h.requireAuth())
		reviews.POST("/analyze", h.analyze)
		reviews.GET("/history", h.history)
		reviews.GET("/stats", h.stats)
		reviews.GET("/:id", h.getReview)
		reviews.GET("/:id/document", h.reviewDocument)
		reviews.DELETE("/:id", h.deleteReview)
	}
}

func (h *Handler) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && h.originAllowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) originAllowed(origin string) bool {
	if h.anyOrigin {
		return true
	}
	_, ok := h.origins[strings.TrimRight(origin, "/")]
	return ok
}
