// Package handlers exposes the operator-facing HTTP API: order intake from
// the storefront webhook plus inspection and maintenance endpoints.
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/juju/clock"

	"github.com/ahmedsayedsa/orderbot/internal/customers"
	"github.com/ahmedsayedsa/orderbot/internal/ledger"
	"github.com/ahmedsayedsa/orderbot/internal/order"
	"github.com/ahmedsayedsa/orderbot/internal/phone"
	"github.com/ahmedsayedsa/orderbot/internal/reconcile"
	"github.com/ahmedsayedsa/orderbot/internal/session"
	"github.com/ahmedsayedsa/orderbot/internal/transport"
)

// DefaultBroadcastDelay spaces broadcast sends so the transport is not
// rate-limited.
const DefaultBroadcastDelay = 3 * time.Second

// HandlerConfig groups dependencies for the API routes. Directory and
// Sweeper are optional; their endpoints answer 503 when absent.
type HandlerConfig struct {
	Adapter    *transport.Adapter
	Messenger  transport.Messenger
	Normalizer *phone.Normalizer
	Directory  *customers.Directory
	Ledger     ledger.Ledger
	Sweeper    *reconcile.Sweeper
	Clock      clock.Clock

	BroadcastDelay time.Duration
	StartedAt      time.Time
}

// RegisterRoutes wires all API routes onto r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.BroadcastDelay <= 0 {
		cfg.BroadcastDelay = DefaultBroadcastDelay
	}
	v := order.NewValidator()

	r.GET("/health", healthHandler(cfg))
	r.POST("/send-order", sendOrderHandler(cfg, v))
	r.GET("/pending-orders", pendingOrdersHandler(cfg))
	r.GET("/customers", customersHandler(cfg))
	r.POST("/broadcast", broadcastHandler(cfg))
	r.POST("/reconcile", reconcileHandler(cfg))
	r.GET("/stats", statsHandler(cfg))
}

func healthHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"connected":      cfg.Messenger.Connected(),
			"pending_orders": cfg.Adapter.Machine().Store().Size(),
			"uptime":         cfg.Clock.Now().Sub(cfg.StartedAt).Round(time.Second).String(),
		})
	}
}

// sendOrderHandler is the storefront webhook. The body shape varies between
// storefront versions, so it binds a free-form map and normalizes it before
// validation.
func sendOrderHandler(cfg HandlerConfig, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload order.Payload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json", "detail": err.Error()})
			return
		}

		cn := order.Normalize(payload)
		if err := v.Struct(cn); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "invalid_order",
				"fields": order.ValidationErrorsToMap(err),
			})
			return
		}

		sess := session.Session{
			OrderID:       cn.OrderID,
			CustomerName:  cn.CustomerName,
			CustomerPhone: cn.CustomerPhone,
			Address:       cn.Address,
			Total:         cn.Total,
			Items:         cn.Items,
		}
		key, err := cfg.Adapter.OpenSession(c.Request.Context(), sess)
		if errors.Is(err, phone.ErrInvalidPhone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_phone", "detail": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "send_failed", "detail": err.Error(), "session_key": key})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "order_id": cn.OrderID, "session_key": key})
	}
}

func pendingOrdersHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending := cfg.Adapter.Machine().Store().Snapshot()
		c.JSON(http.StatusOK, gin.H{"count": len(pending), "orders": pending})
	}
}

func customersHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Directory == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "customer_directory_disabled"})
			return
		}
		list, err := cfg.Directory.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(list), "customers": list})
	}
}

type broadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

// broadcastHandler queues a message to every known customer. Sends run on a
// background goroutine paced by BroadcastDelay; the response reports how many
// were queued, not delivered.
func broadcastHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Directory == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "customer_directory_disabled"})
			return
		}
		var req broadcastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
			return
		}
		list, err := cfg.Directory.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "detail": err.Error()})
			return
		}

		go runBroadcast(cfg, list, req.Message)
		c.JSON(http.StatusAccepted, gin.H{"queued": len(list)})
	}
}

func runBroadcast(cfg HandlerConfig, list []customers.Customer, message string) {
	ctx := context.Background()
	sent := 0
	for i, cust := range list {
		if i > 0 {
			<-cfg.Clock.After(cfg.BroadcastDelay)
		}
		num, err := cfg.Normalizer.Normalize(cust.Phone)
		if err != nil {
			log.Printf("[api] broadcast skipping %s: %v", cust.Phone, err)
			continue
		}
		if err := cfg.Messenger.SendText(ctx, num.Address(), message); err != nil {
			log.Printf("[api] broadcast to %s failed: %v", cust.Phone, err)
			continue
		}
		sent++
	}
	log.Printf("[api] broadcast done: %d/%d delivered", sent, len(list))
}

func reconcileHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Sweeper == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation_disabled"})
			return
		}
		res, err := cfg.Sweeper.Reconcile(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile_failed", "detail": err.Error(), "result": res})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"processed":  res.Processed,
			"successful": res.Successful,
			"failed":     res.Failed,
			"remaining":  res.Remaining,
		})
	}
}

func statsHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := cfg.Ledger.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats_failed", "detail": err.Error()})
			return
		}
		out := gin.H{
			"pending_orders": cfg.Adapter.Machine().Store().Size(),
			"successful":     stats.Successful,
			"failed":         stats.Failed,
		}
		if cfg.Directory != nil {
			if n, err := cfg.Directory.Count(c.Request.Context()); err == nil {
				out["customers"] = n
			}
		}
		c.JSON(http.StatusOK, out)
	}
}
