package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/service"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutService interface {
	EffectuatePurchase(ctx context.Context, req *service.CheckoutRequest) (*service.CheckoutResult, error)
}

type PaymentService interface {
	ConfirmPayment(ctx context.Context, saleID int64) (*models.Sale, error)
}

type StockService interface {
	GetStock(ctx context.Context, productID int64) (int, error)
	Restock(ctx context.Context, productID int64, quantity int) (*models.StockMovement, error)
	LowStock(ctx context.Context) ([]models.StockLevel, error)
	LowStockThreshold() int
}

type CatalogService interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	SearchProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	DeactivateProduct(ctx context.Context, productID int64) error
}

type CustomerService interface {
	GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error)
	GetDiscountEligibility(ctx context.Context, customerID int64) (bool, error)
	UpdateDiscountFlags(ctx context.Context, customerID int64, flags models.DiscountFlags) error
}

type ReportService interface {
	GetSale(ctx context.Context, saleID int64) (*models.Sale, []models.SaleLineItem, error)
	SalesBySellerMonth(ctx context.Context) ([]models.SellerMonthReport, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups everything the HTTP layer calls into
type Services struct {
	Checkout  CheckoutService
	Payments  PaymentService
	Stock     StockService
	Catalog   CatalogService
	Customers CustomerService
	Reports   ReportService
	Ready     map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services) *Handler {
	return &Handler{
		svc:    svc,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.checkout)
		v1.GET("/sales/:id", h.getSale)
		v1.POST("/sales/:id/confirm-payment", h.confirmPayment)

		v1.GET("/products", h.searchProducts)
		v1.GET("/products/low-stock", h.lowStock)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/stock", h.getStock)
		v1.POST("/products/:id/restock", h.restock)
		v1.DELETE("/products/:id", h.deactivateProduct)
		v1.GET("/categories", h.listCategories)

		v1.GET("/customers/:id", h.getCustomer)
		v1.GET("/customers/:id/discount", h.customerDiscount)
		v1.PUT("/customers/:id/discount-flags", h.updateDiscountFlags)
		v1.GET("/reports/sales-by-seller", h.salesBySeller)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, dep := range h.svc.Ready {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// checkout sells a cart
func (h *Handler) checkout(c *gin.Context) {
	var req service.CheckoutRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	result, err := h.svc.Checkout.EffectuatePurchase(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	code := http.StatusCreated
	if result.Replayed {
		code = http.StatusOK
	}
	c.JSON(code, result)
}

// getSale returns a sale with its line items
func (h *Handler) getSale(c *gin.Context) {
	saleID, ok := pathID(c, "sale")
	if !ok {
		return
	}

	sale, items, err := h.svc.Reports.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sale":  sale,
		"items": items,
	})
}

// confirmPayment settles a pending sale
func (h *Handler) confirmPayment(c *gin.Context) {
	saleID, ok := pathID(c, "sale")
	if !ok {
		return
	}

	sale, err := h.svc.Payments.ConfirmPayment(c.Request.Context(), saleID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sale)
}

// searchProducts lists active products, optionally filtered
func (h *Handler) searchProducts(c *gin.Context) {
	filter := store.ProductFilter{
		Name:        c.Query("name"),
		Category:    c.Query("category"),
		LocallyMade: c.Query("local") == "true",
	}

	for param, dst := range map[string]**decimal.Decimal{
		"min_price": &filter.MinPrice,
		"max_price": &filter.MaxPrice,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
			return
		}
		*dst = &v
	}

	products, err := h.svc.Catalog.SearchProducts(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct returns one product, including inactive ones
func (h *Handler) getProduct(c *gin.Context) {
	productID, ok := pathID(c, "product")
	if !ok {
		return
	}

	product, err := h.svc.Catalog.GetProduct(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// lowStock lists products under the low-stock threshold
func (h *Handler) lowStock(c *gin.Context) {
	levels, err := h.svc.Stock.LowStock(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threshold": h.svc.Stock.LowStockThreshold(),
		"products":  levels,
	})
}

// getStock returns the available quantity of a product
func (h *Handler) getStock(c *gin.Context) {
	productID, ok := pathID(c, "product")
	if !ok {
		return
	}

	qty, err := h.svc.Stock.GetStock(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"quantity":   qty,
	})
}

type restockRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// restock adds stock to a product
func (h *Handler) restock(c *gin.Context) {
	productID, ok := pathID(c, "product")
	if !ok {
		return
	}

	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	movement, err := h.svc.Stock.Restock(c.Request.Context(), productID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, movement)
}

// deactivateProduct soft-deletes a product
func (h *Handler) deactivateProduct(c *gin.Context) {
	productID, ok := pathID(c, "product")
	if !ok {
		return
	}

	if err := h.svc.Catalog.DeactivateProduct(c.Request.Context(), productID); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// listCategories lists all product categories
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.svc.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// getCustomer returns a customer record
func (h *Handler) getCustomer(c *gin.Context) {
	customerID, ok := pathID(c, "customer")
	if !ok {
		return
	}

	customer, err := h.svc.Customers.GetCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

// updateDiscountFlags replaces a customer's loyalty flags
func (h *Handler) updateDiscountFlags(c *gin.Context) {
	customerID, ok := pathID(c, "customer")
	if !ok {
		return
	}

	var flags models.DiscountFlags
	if err := c.ShouldBindJSON(&flags); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.svc.Customers.UpdateDiscountFlags(c.Request.Context(), customerID, flags); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer_id": customerID,
		"flags":       flags,
		"eligible":    flags.Eligible(),
	})
}

// customerDiscount reports whether a customer gets the loyalty discount
func (h *Handler) customerDiscount(c *gin.Context) {
	customerID, ok := pathID(c, "customer")
	if !ok {
		return
	}

	eligible, err := h.svc.Customers.GetDiscountEligibility(c.Request.Context(), customerID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	rate := decimal.Zero
	if eligible {
		rate = service.DiscountRate
	}
	c.JSON(http.StatusOK, gin.H{
		"customer_id":   customerID,
		"eligible":      eligible,
		"discount_rate": rate,
	})
}

// salesBySeller returns monthly sales totals per seller
func (h *Handler) salesBySeller(c *gin.Context) {
	rows, err := h.svc.Reports.SalesBySellerMonth(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": rows})
}

func pathID(c *gin.Context, entity string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + entity + " ID",
		})
		return 0, false
	}
	return id, true
}

// writeError maps service errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var stockErr *service.InsufficientStockError
	var refErr *service.InvalidReferenceError
	var txErr *service.TransactionFailedError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":        "Insufficient stock",
			"details":      err.Error(),
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"requested":    stockErr.Requested,
			"available":    stockErr.Available,
			"shortfall":    stockErr.Shortfall,
		})

	case errors.Is(err, service.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Checkout already in progress",
		})

	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidCartLine),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidPaymentStatus):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid checkout request",
			"details": err.Error(),
		})

	case errors.As(err, &refErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Invalid " + refErr.Entity,
			"details": err.Error(),
			"id":      refErr.ID,
		})

	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})

	case errors.As(err, &txErr) && txErr.Retryable:
		h.logger.Warn("Retryable request failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Temporarily unavailable, retry the request",
		})

	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger writes one structured line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
