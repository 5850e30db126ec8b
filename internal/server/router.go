package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/citations"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/contributions"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/quiz"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	userIDContextKey = "gtmhub_user_id"
	adminContextKey  = "gtmhub_is_admin"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUserResolver     = errors.New("user resolver dependency required")
	errMissingDocuments        = errors.New("documents service dependency required")
	errMissingContributions    = errors.New("contributions service dependency required")
	errMissingCitations        = errors.New("citations service dependency required")
	errMissingQuiz             = errors.New("quiz service dependency required")
	errMissingDatabase         = errors.New("database dependency required")
)

// SessionValidator validates the session carried by an HTTP request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// UserResolver maps session claims onto the canonical user id.
type UserResolver interface {
	ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

// Dependencies lists everything the HTTP layer needs.
type Dependencies struct {
	SessionValidator SessionValidator
	Users            UserResolver
	AdminPolicy      auth.AdminPolicy
	Documents        *documents.Service
	Contributions    *contributions.Service
	Citations        *citations.Service
	Quiz             *quiz.Service
	Database         *gorm.DB
	Metrics          *metrics.Registry
	AllowedOrigins   []string
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the hub API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Users == nil {
		return nil, errMissingUserResolver
	}
	if deps.Documents == nil {
		return nil, errMissingDocuments
	}
	if deps.Contributions == nil {
		return nil, errMissingContributions
	}
	if deps.Citations == nil {
		return nil, errMissingCitations
	}
	if deps.Quiz == nil {
		return nil, errMissingQuiz
	}
	if deps.Database == nil {
		return nil, errMissingDatabase
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		sessions:      deps.SessionValidator,
		users:         deps.Users,
		adminPolicy:   deps.AdminPolicy,
		documents:     deps.Documents,
		contributions: deps.Contributions,
		citations:     deps.Citations,
		quiz:          deps.Quiz,
		db:            deps.Database,
		metrics:       deps.Metrics,
		logger:        logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(handler.observeRequest)

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/documents/:type", handler.handleGetDocument)
	protected.POST("/documents/:type", handler.handleSaveDocument)
	protected.GET("/documents/:type/versions", handler.handleDocumentVersions)
	protected.POST("/documents/:type/versions", handler.requireAdmin, handler.handleRestoreVersion)

	protected.GET("/contributions", handler.handleListContributions)
	protected.POST("/contributions", handler.handleCreateContribution)
	protected.PATCH("/contributions/:id", handler.requireAdmin, handler.handleReviewContribution)
	protected.DELETE("/contributions/:id", handler.handleDeleteContribution)
	protected.POST("/contributions/cluster", handler.requireAdmin, handler.handleCreateCluster)
	protected.GET("/contributions/cluster/:id", handler.handleGetCluster)

	protected.GET("/citations", handler.handleListCitations)
	protected.POST("/citations", handler.requireAdmin, handler.handleCreateCitation)

	protected.GET("/quiz", handler.handleGetQuiz)
	protected.POST("/quiz", handler.handleSubmitQuiz)

	return router, nil
}

type httpHandler struct {
	sessions      SessionValidator
	users         UserResolver
	adminPolicy   auth.AdminPolicy
	documents     *documents.Service
	contributions *contributions.Service
	citations     *citations.Service
	quiz          *quiz.Service
	db            *gorm.DB
	metrics       *metrics.Registry
	logger        *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.unauthorized"})
		return
	}

	userID, err := h.users.ResolveCanonicalUserID(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to resolve user identity", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.identity_unresolved"})
		return
	}

	c.Set(userIDContextKey, userID)
	c.Set(adminContextKey, h.adminPolicy.IsAdmin(claims))
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	if !c.GetBool(adminContextKey) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required", "code": "auth.admin_required"})
		return
	}
	c.Next()
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func currentActor(c *gin.Context) contributions.Actor {
	return contributions.Actor{
		UserID:  c.GetString(userIDContextKey),
		IsAdmin: c.GetBool(adminContextKey),
	}
}
