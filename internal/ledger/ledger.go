package ledger

import (
	"context"
	"time"
)

// SuccessCap bounds the success ledger to the most recent entries; the oldest
// are evicted first. The failure ledger is unbounded until reconciled.
const SuccessCap = 1000

// Record is one synchronization attempt outcome. Records are immutable:
// appended whole and, for failures, removed whole by reconciliation.
type Record struct {
	OrderID   string                 `json:"order_id" dynamodbav:"order_id"`
	Status    string                 `json:"status" dynamodbav:"status"`
	Endpoint  string                 `json:"endpoint,omitempty" dynamodbav:"endpoint,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty" dynamodbav:"payload,omitempty"`
	Error     string                 `json:"error,omitempty" dynamodbav:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp" dynamodbav:"timestamp"`
}

// Stats summarizes both ledgers for the operational status surface.
type Stats struct {
	Successful     int        `json:"successful"`
	Failed         int        `json:"failed"`
	LastSuccessful *time.Time `json:"last_successful,omitempty"`
	LastFailed     *time.Time `json:"last_failed,omitempty"`
}

// Ledger is the durable record of synchronization outcomes. Implementations
// must serialize concurrent writers per ledger.
type Ledger interface {
	// AppendSuccess records a successful sync, evicting the oldest entry
	// once the ledger holds SuccessCap records.
	AppendSuccess(ctx context.Context, rec Record) error
	// AppendFailure records a terminal sync failure for later reconciliation.
	AppendFailure(ctx context.Context, rec Record) error
	// FailureSnapshot returns a point-in-time copy of all failure records.
	FailureSnapshot(ctx context.Context) ([]Record, error)
	// ReplaceFailures rewrites the failure ledger wholesale to exactly the
	// given records. Reconciliation uses this to drop resolved entries.
	ReplaceFailures(ctx context.Context, recs []Record) error
	// Stats reports counters for both ledgers.
	Stats(ctx context.Context) (Stats, error)
}
