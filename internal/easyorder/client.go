// Package easyorder talks to the Easy Order backend. The backend's real API
// shape is not reliably known, so status updates run a bounded discovery
// sweep over an ordered set of candidate endpoints instead of a single URL.
package easyorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/ahmedsayedsa/orderbot/internal/cloud"
	"github.com/ahmedsayedsa/orderbot/internal/ledger"
	"github.com/ahmedsayedsa/orderbot/internal/session"
)

// DefaultPathTemplates is the ordered candidate list for status updates.
// Order is significant and fixed; the first responding success wins.
var DefaultPathTemplates = []string{
	"/orders/{orderId}/update-status",
	"/orders/{orderId}/status",
	"/order/update/{orderId}",
	"/webhook/order-status",
	"/api/orders/{orderId}/status",
	"/v1/orders/{orderId}/update",
	"/order-status-update",
}

const (
	// DefaultMaxRetries bounds how many full candidate sweeps one Sync runs.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base inter-sweep delay; it grows linearly
	// with the attempt number, not exponentially, since each sweep already
	// spends significant wall-clock time on its own.
	DefaultRetryDelay = 5 * time.Second
	// DefaultTimeout is the per-candidate HTTP timeout.
	DefaultTimeout = 10 * time.Second
)

// Config carries the backend credentials and discovery policy.
type Config struct {
	BaseURL       string
	BackupURL     string
	APIKey        string
	WebhookSecret string

	// PathTemplates overrides DefaultPathTemplates; "{orderId}" is
	// substituted with the order identifier.
	PathTemplates []string
	MaxRetries    int
	RetryDelay    time.Duration
	Timeout       time.Duration
}

// StatusUpdate is the payload POSTed to every candidate endpoint.
type StatusUpdate struct {
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
	Notes         string    `json:"notes"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name"`
	Source        string    `json:"source"`
}

// SyncResult is what Sync always resolves to; it never errors.
type SyncResult struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Endpoint  string `json:"endpoint,omitempty"`
	LastError string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
}

// Client runs status synchronization against the backend and keeps the
// durable ledgers up to date.
type Client struct {
	cfg     Config
	http    *http.Client
	clk     clock.Clock
	ledger  ledger.Ledger
	metrics *cloud.Metrics
	nowFunc func() time.Time
}

// New builds a Client. led is required; metrics may be nil.
func New(cfg Config, led ledger.Ledger, metrics *cloud.Metrics, clk clock.Clock) *Client {
	if len(cfg.PathTemplates) == 0 {
		cfg.PathTemplates = DefaultPathTemplates
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		clk:     clk,
		ledger:  led,
		metrics: metrics,
		nowFunc: time.Now,
	}
}

// UpdateFor builds the status payload for a decided session.
func (c *Client) UpdateFor(sess session.Session, status string) StatusUpdate {
	var notes string
	switch status {
	case "confirmed":
		notes = "تم تأكيد الطلب عبر WhatsApp Bot"
	case "cancelled":
		notes = "تم إلغاء الطلب عبر WhatsApp Bot"
	default:
		notes = "انتهت مهلة تأكيد الطلب دون رد من العميل"
	}
	return StatusUpdate{
		OrderID:       sess.OrderID,
		Status:        status,
		UpdatedAt:     c.nowFunc().UTC(),
		Notes:         notes,
		CustomerPhone: sess.CustomerPhone,
		CustomerName:  sess.CustomerName,
		Source:        "whatsapp_bot",
	}
}

// Sync pushes one status update, retrying the whole candidate sweep up to
// MaxRetries times with linearly growing delay. It never returns an error:
// terminal failures land in the failure ledger for reconciliation, successes
// in the capped success ledger.
func (c *Client) Sync(ctx context.Context, upd StatusUpdate) SyncResult {
	res := SyncResult{OrderID: upd.OrderID, Status: upd.Status}

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			res.Attempts++
			endpoint, err := c.Attempt(ctx, upd)
			if err != nil {
				return err
			}
			res.Endpoint = endpoint
			return nil
		},
		Attempts: c.cfg.MaxRetries,
		Delay:    c.cfg.RetryDelay,
		BackoffFunc: func(_ time.Duration, attempt int) time.Duration {
			return c.cfg.RetryDelay * time.Duration(attempt)
		},
		Clock: c.clk,
		NotifyFunc: func(err error, attempt int) {
			log.Printf("[easyorder] sync order=%s attempt %d/%d failed: %v",
				upd.OrderID, attempt, c.cfg.MaxRetries, err)
		},
		Stop: ctx.Done(),
	})

	if err == nil {
		res.Success = true
		log.Printf("[easyorder] order %s updated to %s via %s", upd.OrderID, upd.Status, res.Endpoint)
		if lerr := c.ledger.AppendSuccess(ctx, ledger.Record{
			OrderID:   upd.OrderID,
			Status:    upd.Status,
			Endpoint:  res.Endpoint,
			Timestamp: c.nowFunc().UTC(),
		}); lerr != nil {
			log.Printf("[easyorder] success ledger write failed: %v", lerr)
		}
		c.metrics.RecordSync(ctx, true)
		return res
	}

	res.LastError = retryCause(err).Error()
	log.Printf("[easyorder] order %s terminally failed after %d attempts: %s",
		upd.OrderID, res.Attempts, res.LastError)
	if lerr := c.ledger.AppendFailure(ctx, ledger.Record{
		OrderID:   upd.OrderID,
		Status:    upd.Status,
		Payload:   updatePayload(upd),
		Error:     res.LastError,
		Timestamp: c.nowFunc().UTC(),
	}); lerr != nil {
		log.Printf("[easyorder] failure ledger write failed: %v", lerr)
	}
	c.metrics.RecordSync(ctx, false)
	return res
}

// Attempt runs one full candidate sweep: every path template against the
// primary base URL, then against the backup. A single candidate failing is
// never fatal; only an empty-handed sweep returns an error. The first 2xx
// wins and its endpoint is returned.
func (c *Client) Attempt(ctx context.Context, upd StatusUpdate) (string, error) {
	body, err := json.Marshal(upd)
	if err != nil {
		return "", fmt.Errorf("marshal status update: %w", err)
	}

	bases := []string{c.cfg.BaseURL}
	if c.cfg.BackupURL != "" {
		bases = append(bases, c.cfg.BackupURL)
	}

	var lastErr error
	for _, base := range bases {
		for _, tmpl := range c.cfg.PathTemplates {
			url := base + strings.ReplaceAll(tmpl, "{orderId}", upd.OrderID)
			if err := c.post(ctx, url, body); err != nil {
				lastErr = err
				log.Printf("[easyorder] candidate %s failed: %v", url, err)
				continue
			}
			return url, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate endpoints configured")
	}
	return "", fmt.Errorf("all candidate endpoints failed: %w", lastErr)
}

func (c *Client) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "orderbot/1.0")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	if c.cfg.WebhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", c.cfg.WebhookSecret)
	}
}

func updatePayload(upd StatusUpdate) map[string]interface{} {
	data, err := json.Marshal(upd)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// retryCause unwraps juju/retry's attempts-exceeded wrapper to the last
// underlying error.
func retryCause(err error) error {
	if retry.IsAttemptsExceeded(err) || retry.IsDurationExceeded(err) {
		return retry.LastError(err)
	}
	return err
}
