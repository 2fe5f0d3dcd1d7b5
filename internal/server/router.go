package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vibeboardhq/vibeboard/backend/internal/auth"
	"github.com/vibeboardhq/vibeboard/backend/internal/cache"
	"github.com/vibeboardhq/vibeboard/backend/internal/chronicles"
	"github.com/vibeboardhq/vibeboard/backend/internal/identity"
	"github.com/vibeboardhq/vibeboard/backend/internal/products"
	"github.com/vibeboardhq/vibeboard/backend/internal/profiles"
	"github.com/vibeboardhq/vibeboard/backend/internal/shorturls"
	"github.com/vibeboardhq/vibeboard/backend/internal/uploads"
	"github.com/vibeboardhq/vibeboard/backend/internal/votes"
	"go.uber.org/zap"
)

const userIDContextKey = "vibeboard_user_id"

var (
	errMissingVerifier        = errors.New("provider verifier dependency required")
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingIdentityService = errors.New("identity service dependency required")
	errMissingProductService  = errors.New("product service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// ProviderVerifier validates identity-provider ID tokens.
type ProviderVerifier interface {
	Verify(ctx context.Context, token string) (auth.ProviderClaims, error)
}

// BackendTokenManager issues and validates Vibeboard session tokens.
type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// IdentityService resolves provider logins to canonical user ids.
type IdentityService interface {
	ResolveCanonicalUserID(login identity.Login) (string, error)
}

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	Verifier   ProviderVerifier
	Tokens     BackendTokenManager
	Identity   IdentityService
	Products   *products.Service
	Votes      *votes.Service
	Profiles   *profiles.Service
	ShortURLs  *shorturls.Service
	Chronicles *chronicles.Service
	Uploads    *uploads.Service
	Realtime   *RealtimeDispatcher
	Cache      *cache.Store
	Logger     *zap.Logger
}

// NewHTTPHandler assembles the router. The realtime dispatcher, when
// provided, is bridged into the cache store so any product change from any
// client invalidates the shared list entry.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Identity == nil {
		return nil, errMissingIdentityService
	}
	if deps.Products == nil {
		return nil, errMissingProductService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := deps.Cache
	if store == nil {
		store = cache.NewStore()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:   deps.Verifier,
		tokens:     deps.Tokens,
		identity:   deps.Identity,
		products:   deps.Products,
		votes:      deps.Votes,
		profiles:   deps.Profiles,
		shortURLs:  deps.ShortURLs,
		chronicles: deps.Chronicles,
		uploads:    deps.Uploads,
		realtime:   deps.Realtime,
		cache:      store,
		logger:     logger,
	}

	if deps.Realtime != nil {
		bridgeRealtimeToCache(deps.Realtime, store)
	}

	router.POST("/auth/token", handler.handleIssueToken)
	router.GET("/products", handler.handleListProducts)
	router.GET("/products/:id", handler.handleGetProduct)
	router.GET("/products/:id/screenshots", handler.handleListScreenshots)
	router.POST("/products/:id/vibe", handler.handleVibe)
	router.GET("/products/stream", handler.handleProductStream)
	router.GET("/s/:code", handler.handleShortLinkRedirect)
	router.GET("/makers/:username", handler.handleGetMaker)
	router.GET("/chronicles", handler.handleListChronicles)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/products", handler.handleSubmitProduct)
	protected.PATCH("/products/:id", handler.handleUpdateProduct)
	protected.GET("/products/mine", handler.handleListMine)
	protected.POST("/products/:id/vote", handler.handleVoteToggle)
	protected.GET("/votes/mine", handler.handleListMyVotes)
	protected.POST("/products/:id/claim", handler.handleRequestClaim)
	protected.POST("/claims/:id/approve", handler.handleApproveClaim)
	protected.POST("/claims/:id/reject", handler.handleRejectClaim)
	protected.POST("/products/:id/feature", handler.handleSetFeatured)
	protected.POST("/products/:id/shortlink", handler.handleEnsureShortLink)
	protected.POST("/products/:id/screenshots", handler.handleAddScreenshot)
	protected.DELETE("/screenshots/:id", handler.handleRemoveScreenshot)
	protected.PUT("/makers/me", handler.handleUpsertProfile)
	protected.POST("/makers/me/feature", handler.handleFeatureProduct)
	protected.POST("/uploads", handler.handleUpload)
	protected.POST("/chronicles", handler.handleCreateChronicle)
	protected.PATCH("/chronicles/:id", handler.handleUpdateChronicle)
	protected.DELETE("/chronicles/:id", handler.handleDeleteChronicle)

	return router, nil
}

type httpHandler struct {
	verifier   ProviderVerifier
	tokens     BackendTokenManager
	identity   IdentityService
	products   *products.Service
	votes      *votes.Service
	profiles   *profiles.Service
	shortURLs  *shorturls.Service
	chronicles *chronicles.Service
	uploads    *uploads.Service
	realtime   *RealtimeDispatcher
	cache      *cache.Store
	logger     *zap.Logger
}

// bridgeRealtimeToCache forwards dispatcher messages into the cache
// listener for the life of the process.
func bridgeRealtimeToCache(dispatcher *RealtimeDispatcher, store *cache.Store) {
	stream, _ := dispatcher.Subscribe(context.Background())
	events := make(chan cache.ChangeEvent, 16)
	go func() {
		defer close(events)
		for message := range stream {
			if message.EventType != RealtimeEventProductChanged {
				continue
			}
			events <- cache.ChangeEvent{ProductIDs: message.ProductIDs}
		}
	}()
	go cache.Listen(context.Background(), events, store)
}

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("provider token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.identity.ResolveCanonicalUserID(identity.Login{
		Provider: claims.Issuer,
		Subject:  claims.Subject,
	})
	if err != nil {
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// respondServiceError maps the error taxonomy onto HTTP statuses. Policy
// errors keep their full text: the message describes the storage rule that
// needs fixing.
func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, products.ErrNotFound),
		errors.Is(err, votes.ErrProductNotFound),
		errors.Is(err, profiles.ErrNotFound),
		errors.Is(err, shorturls.ErrNotFound),
		errors.Is(err, chronicles.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, products.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "different_account", "detail": products.ErrNotOwner.Error()})
	case errors.Is(err, products.ErrNotModerator), errors.Is(err, chronicles.ErrNotModerator):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, products.ErrPolicyDenied), errors.Is(err, votes.ErrPolicyDenied):
		c.JSON(http.StatusConflict, gin.H{"error": "policy_denied", "detail": err.Error()})
	case errors.Is(err, products.ErrAlreadyOwned):
		c.JSON(http.StatusConflict, gin.H{"error": "already_owned"})
	case errors.Is(err, products.ErrNoPendingClaim):
		c.JSON(http.StatusConflict, gin.H{"error": "no_pending_claim"})
	case errors.Is(err, profiles.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username_taken"})
	case errors.Is(err, shorturls.ErrCodeExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": "code_generation_failed"})
	case errors.Is(err, uploads.ErrUnsupportedType), errors.Is(err, uploads.ErrTooLarge),
		errors.Is(err, uploads.ErrInvalidKind), errors.Is(err, products.ErrInvalidName),
		errors.Is(err, profiles.ErrInvalidUsername), errors.Is(err, chronicles.ErrInvalidTitle),
		errors.Is(err, products.ErrInvalidProductID), errors.Is(err, products.ErrInvalidUserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func (h *httpHandler) currentUserID(c *gin.Context) (products.UserID, bool) {
	raw := c.GetString(userIDContextKey)
	userID, err := products.NewUserID(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

func (h *httpHandler) pathProductID(c *gin.Context) (products.ProductID, bool) {
	productID, err := products.NewProductID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_product_id"})
		return "", false
	}
	return productID, true
}
