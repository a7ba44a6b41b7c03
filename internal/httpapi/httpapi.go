package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lojaju/backend/internal/service"
	"lojaju/backend/internal/store"
	"lojaju/backend/internal/xid"
)

const requestIDHeader = "X-Request-ID"

type API struct {
	service *service.Service
	logger  *zap.Logger
}

func New(svc *service.Service, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{service: svc, logger: logger}
}

func (a *API) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), a.requestContext(), securityHeaders(), a.accessLog())

	router.GET("/healthz", a.handleHealth)

	v1 := router.Group("/api/v1")

	v1.GET("/customers", a.handleListCustomers)
	v1.POST("/customers", a.handleRegisterCustomer)
	v1.GET("/customers/:code", a.handleGetCustomer)
	v1.DELETE("/customers/:code", a.handleDeleteCustomer)
	v1.GET("/customers/:code/outstanding", a.handleCustomerOutstanding)

	v1.GET("/products", a.handleListProducts)
	v1.POST("/products", a.handleRegisterProduct)
	v1.GET("/products/:id", a.handleGetProduct)
	v1.PATCH("/products/:id", a.handleUpdateProduct)
	v1.DELETE("/products/:id", a.handleDeleteProduct)
	v1.PUT("/products/:id/promotion", a.handleSetPromotion)
	v1.DELETE("/products/:id/promotion", a.handleClearPromotion)
	v1.GET("/promotions", a.handleListPromotions)

	v1.POST("/drafts", a.handleOpenDraft)
	v1.GET("/drafts/:id", a.handleGetDraft)
	v1.DELETE("/drafts/:id", a.handleDiscardDraft)
	v1.PUT("/drafts/:id/customer", a.handleSelectDraftCustomer)
	v1.POST("/drafts/:id/items", a.handleAddDraftItem)
	v1.DELETE("/drafts/:id/items", a.handleClearDraft)
	v1.PATCH("/drafts/:id/items/:product", a.handleEditDraftItem)
	v1.DELETE("/drafts/:id/items/:product", a.handleRemoveDraftItem)
	v1.POST("/drafts/:id/commit", a.handleCommitDraft)

	v1.GET("/sales", a.handleListSales)
	v1.GET("/sales/:id", a.handleGetSale)
	v1.GET("/sales/:id/balance", a.handleSaleBalance)

	v1.POST("/payments", a.handleRegisterPayment)
	v1.GET("/payments", a.handleListPayments)
	v1.GET("/receivables", a.handleListReceivables)
	v1.GET("/receivables/outstanding", a.handleOutstandingTotal)

	v1.GET("/dashboard", a.handleDashboard)

	return router
}

func (a *API) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = xid.New("req")
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		if c.Request.Body != nil && c.Request.Method != http.MethodGet {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		c.Next()
	}
}

func (a *API) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		a.logger.Info("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(startedAt)),
		)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps error kinds onto HTTP statuses. Anything unrecognised is an
// infrastructure failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(c *gin.Context, err error) {
	a.writeStatusError(c, statusFor(err), err)
}

// writeStatusError hides 5xx details from the client; they only go to the log.
func (a *API) writeStatusError(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error",
			zap.String("request_id", c.GetString("request_id")),
			zap.Int("status", status),
			zap.Error(err),
		)
		msg = "internal server error"
	}

	body := gin.H{"error": msg}
	var stockErr *store.StockError
	if errors.As(err, &stockErr) {
		body["product_id"] = stockErr.ProductID
		body["requested"] = stockErr.Requested
		body["available"] = stockErr.Available
	}
	c.AbortWithStatusJSON(status, body)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
