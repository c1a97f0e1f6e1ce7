// Package reconcile re-drives previously failed status synchronizations
// through the Easy Order client and prunes resolved entries from the failure
// ledger.
package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/juju/clock"

	"github.com/ahmedsayedsa/orderbot/internal/cloud"
	"github.com/ahmedsayedsa/orderbot/internal/easyorder"
	"github.com/ahmedsayedsa/orderbot/internal/ledger"
)

// DefaultEntryDelay spaces out re-attempts so the sweep does not hammer a
// backend that has just recovered.
const DefaultEntryDelay = time.Second

// Attempter is the single-sweep path of the sync client. Reconciliation uses
// it instead of the full retrying Sync to bound total sweep duration.
type Attempter interface {
	Attempt(ctx context.Context, upd easyorder.StatusUpdate) (string, error)
}

// Result summarizes one reconciliation run.
type Result struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Remaining  int `json:"remaining"`
}

// Sweeper runs reconciliation passes over the failure ledger.
type Sweeper struct {
	client     Attempter
	ledger     ledger.Ledger
	metrics    *cloud.Metrics
	clk        clock.Clock
	entryDelay time.Duration
}

// NewSweeper builds a Sweeper. metrics may be nil; clk defaults to the wall
// clock.
func NewSweeper(client Attempter, led ledger.Ledger, metrics *cloud.Metrics, clk clock.Clock) *Sweeper {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Sweeper{
		client:     client,
		ledger:     led,
		metrics:    metrics,
		clk:        clk,
		entryDelay: DefaultEntryDelay,
	}
}

// Reconcile reads the failure ledger as a snapshot, re-attempts every entry
// once, and rewrites the ledger to exactly the still-failing subset. The
// rewrite is wholesale, which makes the sweep idempotent: two consecutive
// runs with no backend change retain the same set.
func (s *Sweeper) Reconcile(ctx context.Context) (Result, error) {
	snap, err := s.ledger.FailureSnapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(snap) == 0 {
		log.Printf("[reconcile] failure ledger empty, nothing to do")
		return Result{}, nil
	}

	log.Printf("[reconcile] re-attempting %d failed updates", len(snap))

	var res Result
	stillFailing := make([]ledger.Record, 0, len(snap))
	for i, rec := range snap {
		if i > 0 {
			select {
			case <-s.clk.After(s.entryDelay):
			case <-ctx.Done():
				// keep everything not yet re-attempted
				stillFailing = append(stillFailing, snap[i:]...)
				res.Remaining = len(stillFailing)
				if rerr := s.ledger.ReplaceFailures(ctx, stillFailing); rerr != nil {
					return res, rerr
				}
				return res, ctx.Err()
			}
		}
		res.Processed++

		endpoint, err := s.client.Attempt(ctx, updateFromRecord(rec))
		if err != nil {
			res.Failed++
			stillFailing = append(stillFailing, rec)
			log.Printf("[reconcile] order %s still failing: %v", rec.OrderID, err)
			continue
		}
		res.Successful++
		log.Printf("[reconcile] order %s recovered via %s", rec.OrderID, endpoint)
		if lerr := s.ledger.AppendSuccess(ctx, ledger.Record{
			OrderID:   rec.OrderID,
			Status:    rec.Status,
			Endpoint:  endpoint,
			Timestamp: s.clk.Now().UTC(),
		}); lerr != nil {
			log.Printf("[reconcile] success ledger write failed: %v", lerr)
		}
	}

	res.Remaining = len(stillFailing)
	if err := s.ledger.ReplaceFailures(ctx, stillFailing); err != nil {
		return res, err
	}
	s.metrics.RecordReconcile(ctx, res.Successful, res.Failed)
	log.Printf("[reconcile] done: %d recovered, %d still failing", res.Successful, res.Failed)
	return res, nil
}

// updateFromRecord rebuilds the status payload from the ledger snapshot. The
// original timestamp is preserved in the payload when present; the status and
// order id always come from the record itself.
func updateFromRecord(rec ledger.Record) easyorder.StatusUpdate {
	upd := easyorder.StatusUpdate{
		OrderID:   rec.OrderID,
		Status:    rec.Status,
		UpdatedAt: rec.Timestamp,
		Source:    "whatsapp_bot",
	}
	if rec.Payload != nil {
		if v, ok := rec.Payload["customer_phone"].(string); ok {
			upd.CustomerPhone = v
		}
		if v, ok := rec.Payload["customer_name"].(string); ok {
			upd.CustomerName = v
		}
		if v, ok := rec.Payload["notes"].(string); ok {
			upd.Notes = v
		}
	}
	return upd
}
