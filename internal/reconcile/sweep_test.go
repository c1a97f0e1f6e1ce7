package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedsayedsa/orderbot/internal/easyorder"
	"github.com/ahmedsayedsa/orderbot/internal/ledger"
)

// fakeAttempter succeeds for order ids in the ok set and fails otherwise.
type fakeAttempter struct {
	ok    map[string]bool
	calls []string
}

func (f *fakeAttempter) Attempt(ctx context.Context, upd easyorder.StatusUpdate) (string, error) {
	f.calls = append(f.calls, upd.OrderID)
	if f.ok[upd.OrderID] {
		return "https://api/orders/" + upd.OrderID + "/status", nil
	}
	return "", errors.New("all candidate endpoints failed")
}

func newSweeper(t *testing.T, att Attempter) (*Sweeper, ledger.Ledger) {
	t.Helper()
	led := ledger.NewFileLedger(t.TempDir())
	s := NewSweeper(att, led, nil, nil)
	s.entryDelay = time.Millisecond
	return s, led
}

func seed(t *testing.T, led ledger.Ledger, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, led.AppendFailure(context.Background(), ledger.Record{
			OrderID: id,
			Status:  "confirmed",
			Payload: map[string]interface{}{"customer_phone": "20100", "customer_name": "A"},
			Error:   "seeded",
		}))
	}
}

func TestReconcile_DropsRecoveredKeepsFailing(t *testing.T) {
	att := &fakeAttempter{ok: map[string]bool{"A": true, "C": true}}
	s, led := newSweeper(t, att)
	seed(t, led, "A", "B", "C")

	res, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 3, Successful: 2, Failed: 1, Remaining: 1}, res)
	assert.Equal(t, []string{"A", "B", "C"}, att.calls, "each entry re-attempted exactly once")

	snap, err := led.FailureSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "B", snap[0].OrderID)

	// recovered entries land in the success ledger
	st, err := led.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Successful)
}

func TestReconcile_RecoveredTimestampComesFromClock(t *testing.T) {
	att := &fakeAttempter{ok: map[string]bool{"A": true}}
	led := ledger.NewFileLedger(t.TempDir())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSweeper(att, led, nil, testclock.NewClock(now))
	seed(t, led, "A")

	res, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Successful)

	st, err := led.Stats(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.LastSuccessful)
	assert.True(t, st.LastSuccessful.Equal(now), "recovered record stamped %v, want %v", st.LastSuccessful, now)
}

func TestReconcile_IdempotentWithNoBackendChange(t *testing.T) {
	att := &fakeAttempter{ok: map[string]bool{}}
	s, led := newSweeper(t, att)
	seed(t, led, "A", "B")

	res1, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res1.Remaining)

	snap1, err := led.FailureSnapshot(context.Background())
	require.NoError(t, err)

	res2, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res1.Remaining, res2.Remaining)

	snap2, err := led.FailureSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap1, snap2, "second run with no backend change leaves the ledger identical")
}

func TestReconcile_EmptyLedgerIsNoop(t *testing.T) {
	att := &fakeAttempter{}
	s, _ := newSweeper(t, att)

	res, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, att.calls)
}

func TestReconcile_RebuildsUpdateFromSnapshot(t *testing.T) {
	var got easyorder.StatusUpdate
	att := attemptFunc(func(ctx context.Context, upd easyorder.StatusUpdate) (string, error) {
		got = upd
		return "https://api/x", nil
	})
	s, led := newSweeper(t, att)
	seed(t, led, "Z")

	_, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Z", got.OrderID)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, "20100", got.CustomerPhone)
	assert.Equal(t, "A", got.CustomerName)
}

type attemptFunc func(ctx context.Context, upd easyorder.StatusUpdate) (string, error)

func (f attemptFunc) Attempt(ctx context.Context, upd easyorder.StatusUpdate) (string, error) {
	return f(ctx, upd)
}
