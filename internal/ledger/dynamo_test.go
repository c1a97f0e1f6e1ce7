package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamoLedger_AppendSuccessAndStats(t *testing.T) {
	mock := newMockDynamo()
	l := NewDynamoLedger(mock, "success-tbl", "failure-tbl")
	ctx := context.Background()

	ts := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, l.AppendSuccess(ctx, Record{OrderID: "O1", Status: "confirmed", Endpoint: "https://api/x", Timestamp: ts}))
	require.NoError(t, l.AppendFailure(ctx, Record{OrderID: "O2", Status: "cancelled", Error: "boom", Timestamp: ts.Add(time.Hour)}))

	st, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Successful)
	assert.Equal(t, 1, st.Failed)
	require.NotNil(t, st.LastFailed)
	assert.True(t, st.LastFailed.Equal(ts.Add(time.Hour)))
}

func TestDynamoLedger_SuccessCapEvictsOldest(t *testing.T) {
	mock := newMockDynamo()
	l := NewDynamoLedger(mock, "success-tbl", "failure-tbl")
	l.cap = 2
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		rec := Record{OrderID: fmt.Sprintf("O%d", i), Timestamp: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, l.AppendSuccess(ctx, rec))
	}

	recs, err := l.scan(ctx, "success-tbl")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	ids := map[string]bool{}
	for _, r := range recs {
		ids[r.OrderID] = true
	}
	assert.False(t, ids["O1"], "oldest record must be evicted")
	assert.True(t, ids["O2"] && ids["O3"])
}

func TestDynamoLedger_ReplaceFailures(t *testing.T) {
	mock := newMockDynamo()
	l := NewDynamoLedger(mock, "success-tbl", "failure-tbl")
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, l.AppendFailure(ctx, Record{OrderID: id, Timestamp: time.Now()}))
	}

	require.NoError(t, l.ReplaceFailures(ctx, []Record{{OrderID: "C", Timestamp: time.Now()}}))

	snap, err := l.FailureSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "C", snap[0].OrderID)

	// idempotent on repeat
	require.NoError(t, l.ReplaceFailures(ctx, []Record{{OrderID: "C", Timestamp: snap[0].Timestamp}}))
	snap2, err := l.FailureSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap2, 1)
	assert.Equal(t, "C", snap2[0].OrderID)
}

func TestDynamoLedger_PayloadRoundTrip(t *testing.T) {
	mock := newMockDynamo()
	l := NewDynamoLedger(mock, "success-tbl", "failure-tbl")
	ctx := context.Background()

	payload := map[string]interface{}{
		"order_id":       "O9",
		"customer_phone": "201234567890",
		"notes":          "terminal failure snapshot",
	}
	require.NoError(t, l.AppendFailure(ctx, Record{OrderID: "O9", Status: "confirmed", Payload: payload, Error: "x", Timestamp: time.Now()}))

	snap, err := l.FailureSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "201234567890", snap[0].Payload["customer_phone"])
}
