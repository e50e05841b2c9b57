package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/graficapro/backend/internal/auth"
	"github.com/graficapro/backend/internal/shop"
	"github.com/graficapro/backend/internal/users"
)

const lifecycleContextKey = "graficapro_lifecycle"

var (
	errMissingShopService  = errors.New("shop service dependency required")
	errMissingAccounts     = errors.New("account directory dependency required")
	errMissingTokenManager = errors.New("token manager dependency required")
	errMissingCookieName   = errors.New("session cookie name required")
)

// GoogleVerifier validates Google ID tokens for the google provider flow.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// SessionTokenManager mints and validates the cookie-borne session JWTs.
type SessionTokenManager interface {
	IssueSessionToken(accountID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// AccountDirectory is the credential side of the session lifecycle.
type AccountDirectory interface {
	shop.Authenticator
	ResolveGoogle(ctx context.Context, claims auth.GoogleClaims) (shop.User, error)
	ByID(ctx context.Context, accountID string) (shop.User, error)
}

// Dependencies wires the HTTP shell to the core services.
type Dependencies struct {
	ShopService    *shop.Service
	Accounts       AccountDirectory
	TokenManager   SessionTokenManager
	GoogleVerifier GoogleVerifier
	Logger         *zap.Logger
	CookieName     string
	CORSOrigins    []string
	SecureCookies  bool
}

// NewHTTPHandler builds the gin handler exposing auth, entity sync, archive,
// conversion, and stats endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.ShopService == nil {
		return nil, errMissingShopService
	}
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if strings.TrimSpace(deps.CookieName) == "" {
		return nil, errMissingCookieName
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := deps.CORSOrigins
	corsConfig := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = origins
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig))

	handler := &httpHandler{
		shop:       deps.ShopService,
		accounts:   deps.Accounts,
		tokens:     deps.TokenManager,
		verifier:   deps.GoogleVerifier,
		logger:     logger,
		cookieName: deps.CookieName,
		secure:     deps.SecureCookies,
		lifecycles: make(map[string]*shop.Lifecycle),
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/google", handler.handleGoogleAuth)
	router.POST("/auth/logout", handler.handleLogout)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/state", handler.handleState)
	protected.PUT("/orders", handler.handleSaveOrder)
	protected.PUT("/budgets", handler.handleSaveBudget)
	protected.PUT("/materials", handler.handleSaveMaterial)
	protected.PUT("/designers", handler.handleSaveDesigner)
	for _, kind := range shop.Kinds() {
		protected.DELETE("/"+string(kind)+"/:id", handler.handleDelete(kind))
	}
	protected.POST("/orders/:id/status", handler.handleOrderStatus)
	protected.POST("/orders/:id/archive", handler.handleArchiveOrder)
	protected.POST("/orders/:id/restore", handler.handleRestoreOrder)
	protected.POST("/archive-delivered", handler.handleArchiveDelivered)
	protected.POST("/budgets/:id/convert", handler.handleConvertBudget)
	protected.GET("/stats/dashboard", handler.handleDashboard)
	protected.GET("/stats/financial", handler.handleFinancial)

	return router, nil
}

type httpHandler struct {
	shop       *shop.Service
	accounts   AccountDirectory
	tokens     SessionTokenManager
	verifier   GoogleVerifier
	logger     *zap.Logger
	cookieName string
	secure     bool

	mu         sync.Mutex
	lifecycles map[string]*shop.Lifecycle
}

func (h *httpHandler) lifecycleFor(accountID string) *shop.Lifecycle {
	h.mu.Lock()
	defer h.mu.Unlock()
	lifecycle, ok := h.lifecycles[accountID]
	if !ok {
		lifecycle = shop.NewLifecycle(h.shop, h.accounts)
		h.lifecycles[accountID] = lifecycle
	}
	return lifecycle
}

func (h *httpHandler) dropLifecycle(accountID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lifecycles, accountID)
}

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleAuthPayload struct {
	IDToken string `json:"id_token"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	lifecycle := shop.NewLifecycle(h.shop, h.accounts)
	user, err := lifecycle.SignUp(c.Request.Context(), request.Name, request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.adoptLifecycle(user.ID, lifecycle)
	h.issueCookie(c, user)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	lifecycle := shop.NewLifecycle(h.shop, h.accounts)
	user, err := lifecycle.SignIn(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.adoptLifecycle(user.ID, lifecycle)
	h.issueCookie(c, user)
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	if h.verifier == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "google_auth_disabled"})
		return
	}
	var request googleAuthPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.accounts.ResolveGoogle(c.Request.Context(), claims)
	if err != nil {
		h.respondError(c, err)
		return
	}

	lifecycle := shop.NewLifecycle(h.shop, h.accounts)
	if err := lifecycle.Resume(c.Request.Context(), user); err != nil {
		h.respondError(c, err)
		return
	}
	h.adoptLifecycle(user.ID, lifecycle)
	h.issueCookie(c, user)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err == nil && token != "" {
		if accountID, validateErr := h.tokens.ValidateToken(token); validateErr == nil {
			h.mu.Lock()
			lifecycle, ok := h.lifecycles[accountID]
			h.mu.Unlock()
			if ok {
				lifecycle.SignOut()
			}
			h.dropLifecycle(accountID)
		}
	}
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secure, true)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) adoptLifecycle(accountID string, lifecycle *shop.Lifecycle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if previous, ok := h.lifecycles[accountID]; ok {
		previous.SignOut()
	}
	h.lifecycles[accountID] = lifecycle
}

func (h *httpHandler) issueCookie(c *gin.Context, user shop.User) {
	token, expiresIn, err := h.tokens.IssueSessionToken(user.ID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.SetCookie(h.cookieName, token, int(expiresIn), "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	accountID, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("session token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	lifecycle := h.lifecycleFor(accountID)
	if lifecycle.State() != shop.SessionActive {
		user, loadErr := h.accounts.ByID(c.Request.Context(), accountID)
		if loadErr != nil {
			h.respondAbortError(c, loadErr)
			return
		}
		if resumeErr := lifecycle.Resume(c.Request.Context(), user); resumeErr != nil {
			h.respondAbortError(c, resumeErr)
			return
		}
	}

	c.Set(lifecycleContextKey, lifecycle)
	c.Next()
}

func (h *httpHandler) session(c *gin.Context) (*shop.Session, bool) {
	value, ok := c.Get(lifecycleContextKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	lifecycle, ok := value.(*shop.Lifecycle)
	if !ok || lifecycle.Session() == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return lifecycle.Session(), true
}

func (h *httpHandler) handleState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	store := session.Store()
	c.JSON(http.StatusOK, gin.H{
		"user":      session.User(),
		"orders":    store.Orders(),
		"budgets":   store.Budgets(),
		"materials": store.Materials(),
		"designers": store.Designers(),
	})
}

func (h *httpHandler) handleSaveOrder(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var order shop.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	saved, err := h.shop.SaveOrder(c.Request.Context(), session, order)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *httpHandler) handleSaveBudget(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var budget shop.Budget
	if err := c.ShouldBindJSON(&budget); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	saved, err := h.shop.SaveBudget(c.Request.Context(), session, budget)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *httpHandler) handleSaveMaterial(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var material shop.Material
	if err := c.ShouldBindJSON(&material); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	saved, err := h.shop.SaveMaterial(c.Request.Context(), session, material)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *httpHandler) handleSaveDesigner(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var designer shop.Designer
	if err := c.ShouldBindJSON(&designer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	saved, err := h.shop.SaveDesigner(c.Request.Context(), session, designer)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *httpHandler) handleDelete(kind shop.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := h.session(c)
		if !ok {
			return
		}
		if err := h.shop.Delete(c.Request.Context(), session, kind, c.Param("id")); err != nil {
			h.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type orderStatusPayload struct {
	Status string `json:"status"`
}

func (h *httpHandler) handleOrderStatus(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var request orderStatusPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	status, err := shop.ParseOrderStatus(request.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	order, err := h.shop.SetOrderStatus(c.Request.Context(), session, c.Param("id"), status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *httpHandler) handleArchiveOrder(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	order, err := h.shop.ArchiveOrder(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *httpHandler) handleRestoreOrder(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	order, err := h.shop.RestoreOrder(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *httpHandler) handleArchiveDelivered(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	count, err := h.shop.ArchiveDelivered(c.Request.Context(), session)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": count})
}

func (h *httpHandler) handleConvertBudget(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	order, err := h.shop.ConvertBudget(c.Request.Context(), session, c.Param("id"))
	if errors.Is(err, shop.ErrConversionPartial) {
		// The order landed; surface the half-finished budget instead of
		// pretending the whole conversion failed.
		c.JSON(http.StatusConflict, gin.H{
			"error": shop.UserMessage(err),
			"code":  shop.ErrorCode(err),
			"order": order,
		})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	stats, err := h.shop.Dashboard(session)
	if err != nil {
		h.respondError(c, err)
		return
	}
	recent, err := h.shop.RecentOrders(session, 5)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "recentOrders": recent})
}

func (h *httpHandler) handleFinancial(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	summary, err := h.shop.Financial(session)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": shop.UserMessage(err), "code": shop.ErrorCode(err)})
}

func (h *httpHandler) respondAbortError(c *gin.Context, err error) {
	status := httpStatus(err)
	c.AbortWithStatusJSON(status, gin.H{"error": shop.UserMessage(err), "code": shop.ErrorCode(err)})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, shop.ErrNoActiveSession):
		return http.StatusUnauthorized
	case errors.Is(err, shop.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shop.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, shop.ErrSchemaMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, shop.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shop.ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.Is(err, shop.ErrArchiveNotDelivered):
		return http.StatusConflict
	case errors.Is(err, shop.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, shop.ErrInvalidEntity),
		errors.Is(err, shop.ErrInvalidOrderStatus),
		errors.Is(err, shop.ErrInvalidBudgetStatus),
		errors.Is(err, shop.ErrInvalidDesignerStatus),
		errors.Is(err, users.ErrWeakPassword),
		errors.Is(err, users.ErrInvalidIdentity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
