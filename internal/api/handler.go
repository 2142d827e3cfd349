package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/identity"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	carts     *service.CartService
	catalog   *service.CatalogService
	donations *service.DonationService
	auth      identity.Provider
	checks    map[string]Pinger
	states    StateStore
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready.
func NewHandler(
	orders *service.OrderService,
	carts *service.CartService,
	catalog *service.CatalogService,
	donations *service.DonationService,
	auth identity.Provider,
	checks map[string]Pinger,
) *Handler {
	return &Handler{
		orders:    orders,
		carts:     carts,
		catalog:   catalog,
		donations: donations,
		auth:      auth,
		checks:    checks,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.resolveIdentity())
	{
		v1.POST("/auth/login", h.login)
		v1.GET("/auth/google/url", h.googleURL)
		v1.POST("/auth/google/exchange", h.googleExchange)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		cart := v1.Group("/cart")
		{
			cart.GET("", h.getCart)
			cart.POST("/items", h.addCartItem)
			cart.PUT("/items/:productId", h.updateCartItem)
			cart.DELETE("/items/:productId", h.removeCartItem)
			cart.DELETE("", h.clearCart)
			cart.POST("/checkout", h.checkout)
		}

		v1.POST("/orders", h.submitOrder)
		v1.POST("/donations", h.addDonation)
		v1.GET("/orders", requireAuth(), h.listMyOrders)
		v1.GET("/orders/:id", requireAuth(), h.getOrder)
		v1.PUT("/orders/:id/status", requireRole((*identity.Identity).IsAdmin), h.updateOrderStatus)

		vendor := v1.Group("/vendor", requireRole((*identity.Identity).IsVendor))
		{
			vendor.GET("/orders", h.vendorOrders)
			vendor.PUT("/order-items/:id/status", h.updateItemStatus)
		}

		admin := v1.Group("/admin", requireRole((*identity.Identity).IsAdmin))
		{
			admin.GET("/orders", h.allOrders)
			admin.DELETE("/orders/:id", h.deleteOrder)
			admin.GET("/vendors", h.listVendors)
			admin.POST("/vendors", h.createVendor)
			admin.PUT("/vendors/:id", h.updateVendor)
			admin.POST("/products", h.createProduct)
			admin.POST("/products/:id/stock", h.adjustStock)
			admin.GET("/donations", h.listDonations)
		}
	}
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

	failed := gin.H{}
	for name, dep := range h.checks {
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrCheckoutInProgress), errors.Is(err, service.ErrOrderNotDelivered):
		return http.StatusConflict
	case service.IsValidationError(err):
		return http.StatusBadRequest
	case service.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrUnauthenticated), errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// respondOrderError writes the {success, error} envelope used by order endpoints
func (h *Handler) respondOrderError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Order request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
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

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
