package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-orderflow-saga/internal/idempotency"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/validation"
)

var marshalOrder = json.Marshal

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// OrderStore is the order persistence the API needs.
type OrderStore interface {
	Create(ctx context.Context, order orders.Order) error
	CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, order orders.Order) error
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	QueryByStatus(ctx context.Context, status orders.Status, limit int) ([]orders.Order, error)
	Scan(ctx context.Context, limit int) ([]orders.Order, error)
}

// IdempotencyStore remembers POST /orders responses per Idempotency-Key.
type IdempotencyStore interface {
	TableName() string
	NewRecord(key, orderID, requestHash string) idempotency.IdempotencyRecord
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Orders      OrderStore
	Idempotency IdempotencyStore
	OrderTTL    time.Duration
	Logger      *slog.Logger
	NowFunc     func() time.Time
	NewID       func() string
}

type ordersHandler struct {
	cfg HandlerConfig
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger = cfg.Logger.With("component", "api")
	h := &ordersHandler{cfg: cfg}
	v := validation.New()

	r.Use(corsHeaders())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/orders", func(c *gin.Context) { h.create(c, v) })
	r.GET("/orders/:id", h.get)
	r.GET("/orders", h.list)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
}

func corsHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Next()
	}
}

func (h *ordersHandler) create(c *gin.Context, v *validatorv10.Validate) {
	ctx := c.Request.Context()

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	order := newOrderFromRequest(h.cfg.NewID(), req, h.cfg.NowFunc(), h.cfg.OrderTTL)

	key := c.GetHeader("Idempotency-Key")
	if key == "" || h.cfg.Idempotency == nil {
		if err := h.cfg.Orders.Create(ctx, order); err != nil {
			h.cfg.Logger.ErrorContext(ctx, "error creating order", "order_id", order.OrderID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}
		h.created(c, order)
		return
	}

	hash, err := idempotency.Fingerprint(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}
	// the stored response is encoded before anything is written
	body, err := marshalOrder(order)
	if err != nil {
		h.cfg.Logger.ErrorContext(ctx, "error encoding order", "order_id", order.OrderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}
	rec := h.cfg.Idempotency.NewRecord(key, order.OrderID, hash)
	err = h.cfg.Orders.CreateWithIdempotencyTransaction(ctx, h.cfg.Idempotency.TableName(), rec, order)
	if errors.Is(err, orders.ErrIdempotencyConflict) {
		h.replay(c, key, hash)
		return
	}
	if err != nil {
		h.cfg.Logger.ErrorContext(ctx, "error creating order", "order_id", order.OrderID, "idempotency_key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	if err := h.cfg.Idempotency.MarkDone(ctx, key, string(body), http.StatusCreated); err != nil {
		// replays will see IN_PROGRESS and get a 202 instead of the stored body
		h.cfg.Logger.WarnContext(ctx, "could not store idempotent response", "idempotency_key", key, "error", err)
	}
	h.created(c, order)
}

func (h *ordersHandler) created(c *gin.Context, order orders.Order) {
	h.cfg.Logger.InfoContext(c.Request.Context(), "order created", "order_id", order.OrderID, "total_amount", order.TotalAmount)
	c.Header("Location", fmt.Sprintf("/orders/%s", order.OrderID))
	c.JSON(http.StatusCreated, order)
}

// replay answers a request whose Idempotency-Key was already used.
func (h *ordersHandler) replay(c *gin.Context, key, requestHash string) {
	rec, err := h.cfg.Idempotency.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": err.Error()})
		return
	}
	if rec == nil {
		// the key expired between the failed transaction and this read
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_key_conflict"})
		return
	}
	if !rec.Matches(requestHash) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused", "detail": "the key was first used with a different request body"})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func (h *ordersHandler) get(c *gin.Context) {
	orderID := c.Param("id")
	order, err := h.cfg.Orders.Get(c.Request.Context(), orderID)
	if errors.Is(err, orders.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found: " + orderID})
		return
	}
	if err != nil {
		h.cfg.Logger.ErrorContext(c.Request.Context(), "error getting order details", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get order details"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *ordersHandler) list(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	var (
		list []orders.Order
		err  error
	)
	if raw := c.Query("status"); raw != "" {
		status := orders.Status(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + raw})
			return
		}
		list, err = h.cfg.Orders.QueryByStatus(c.Request.Context(), status, limit)
	} else {
		list, err = h.cfg.Orders.Scan(c.Request.Context(), limit)
	}
	if err != nil {
		h.cfg.Logger.ErrorContext(c.Request.Context(), "error listing orders", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

func newOrderFromRequest(orderID string, req validation.CreateOrderRequest, now time.Time, ttl time.Duration) orders.Order {
	items := make([]orders.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	customer := orders.Customer{CustomerID: req.Customer.CustomerID, Email: req.Customer.Email, Name: req.Customer.Name}
	return orders.NewOrder(orderID, customer, items, orders.ShippingAddress(req.ShippingAddress),
		orders.Payment{PaymentMethod: req.Payment.PaymentMethod}, now, ttl)
}
