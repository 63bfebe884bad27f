package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups the domain services behind the HTTP API
type Services struct {
	Auth     Authenticator
	Catalog  Catalog
	Orders   Orders
	Payments Payments
	Admin    Admin
}

// Options tunes the HTTP layer
type Options struct {
	AllowedOrigins     []string
	CookieTTL          time.Duration
	RateLimitPerMinute int
	Limiter            RateLimiter
	Dependencies       map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	auth     Authenticator
	catalog  Catalog
	orders   Orders
	payments Payments
	admin    Admin
	opts     Options
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, opts Options) *Handler {
	return &Handler{
		auth:     services.Auth,
		catalog:  services.Catalog,
		orders:   services.Orders,
		payments: services.Payments,
		admin:    services.Admin,
		opts:     opts,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.CustomRecovery(h.recovered))
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	if len(h.opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     h.opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route not found")
	})

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		throttled := auth.Group("", h.rateLimit("auth"))
		throttled.POST("/register", h.register)
		throttled.POST("/verify-email", h.verifyEmail)
		throttled.POST("/login", h.login)
		throttled.POST("/password/forgot", h.forgotPassword)
		throttled.PUT("/password/reset/:token", h.resetPassword)

		auth.GET("/me", h.authenticate, h.me)
		auth.GET("/logout", h.authenticate, h.logout)
		auth.PUT("/password/update", h.authenticate, h.updatePassword)
		auth.PUT("/profile/update", h.authenticate, h.updateProfile)
	}

	products := v1.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/product/:productId", h.getProduct)
		products.POST("/ai-search", h.authenticate, h.aiSearch)

		admin := products.Group("/admin", h.authenticate, requireRole(models.RoleAdmin))
		admin.POST("/create", h.createProduct)
		admin.PUT("/update/:productId", h.updateProduct)
		admin.DELETE("/delete/:productId", h.deleteProduct)

		products.PUT("/post-new/review/:productId", h.authenticate, requireRole(models.RoleUser), h.postReview)
		products.DELETE("/user/delete-review/:productId", h.authenticate, requireRole(models.RoleUser), h.deleteReview)
	}

	admin := v1.Group("/admin", h.authenticate, requireRole(models.RoleAdmin))
	{
		admin.GET("/get-all-users", h.listUsers)
		admin.DELETE("/delete-user/:id", h.deleteUser)
		admin.GET("/dashboard-stats", h.dashboardStats)
	}

	order := v1.Group("/order", h.authenticate)
	{
		order.POST("/new", h.placeOrder)
		order.GET("/:orderId", h.getOrder)
		order.GET("/orders/me", h.myOrders)

		admin := order.Group("/admin", requireRole(models.RoleAdmin))
		admin.GET("/get-all", h.allOrders)
		admin.PUT("/update/:orderId", h.updateOrderStatus)
		admin.DELETE("/delete/:orderId", h.deleteOrder)
	}

	v1.POST("/payment/webhook", h.paymentWebhook)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for name, dep := range h.opts.Dependencies {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not ready",
				"dependency": name,
				"time":       time.Now().Unix(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) recovered(c *gin.Context, recovered interface{}) {
	h.logger.Error("Panic while handling request",
		zap.String("path", c.Request.URL.Path),
		zap.Any("panic", recovered),
	)
	fail(c, http.StatusInternalServerError, internalMessage)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
