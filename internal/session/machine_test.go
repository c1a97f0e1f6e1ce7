package session

import (
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(clk *testclock.Clock, key, orderID string) Session {
	now := clk.Now()
	return Session{
		SessionKey:    key,
		OrderID:       orderID,
		CustomerName:  "Test Customer",
		CustomerPhone: "201234567890",
		Address:       "Cairo",
		Total:         "250",
		Items:         []Item{{Name: "Oil filter", Quantity: 1, UnitPrice: 250}},
		Status:        StatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(DefaultTTL),
	}
}

func TestTransition_Confirm(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	m := NewMachine(clk, nil)

	m.Store().Put(newSession(clk, "1234567890", "TEST_1"))

	out, err := m.Transition("1234567890", DecisionConfirm)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, out.Status)
	assert.Equal(t, "TEST_1", out.Session.OrderID)

	_, ok := m.Store().Get("1234567890")
	assert.False(t, ok, "session must be removed on terminal transition")
}

func TestTransition_SecondSignalSeesNotFound(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	m := NewMachine(clk, nil)
	m.Store().Put(newSession(clk, "k1", "O1"))

	_, err := m.Transition("k1", DecisionCancel)
	require.NoError(t, err)

	// duplicate button tap / repeated free-text reply
	_, err = m.Transition("k1", DecisionConfirm)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestExpire_RemovesSessionAndNotifies(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	expired := make(chan Outcome, 1)
	m := NewMachine(clk, func(o Outcome) { expired <- o })

	m.Store().Put(newSession(clk, "k1", "O1"))

	require.NoError(t, clk.WaitAdvance(DefaultTTL, time.Second, 1))

	select {
	case out := <-expired:
		assert.Equal(t, StatusExpired, out.Status)
		assert.Equal(t, "O1", out.Session.OrderID)
	case <-time.After(time.Second):
		t.Fatal("expiry callback never fired")
	}
	_, ok := m.Store().Get("k1")
	assert.False(t, ok)
}

func TestTransitionBeforeTTLCancelsTimer(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	expired := make(chan Outcome, 1)
	m := NewMachine(clk, func(o Outcome) { expired <- o })

	m.Store().Put(newSession(clk, "k1", "O1"))

	require.NoError(t, clk.WaitAdvance(5*time.Minute, time.Second, 1))

	out, err := m.Transition("k1", DecisionConfirm)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, out.Status)

	// advancing past the original deadline must not produce an expiry
	clk.Advance(DefaultTTL)
	select {
	case <-expired:
		t.Fatal("expiry fired for an already-decided session")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPut_ReplacesPendingSession(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	m := NewMachine(clk, nil)

	m.Store().Put(newSession(clk, "k1", "OLD"))
	m.Store().Put(newSession(clk, "k1", "NEW"))

	require.Equal(t, 1, m.Store().Size())
	sess, ok := m.Store().Get("k1")
	require.True(t, ok)
	assert.Equal(t, "NEW", sess.OrderID)

	out, err := m.Transition("k1", DecisionConfirm)
	require.NoError(t, err)
	assert.Equal(t, "NEW", out.Session.OrderID)
}

func TestReplaceAfterTimerFiredKeepsReplacement(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	expired := make(chan Outcome, 2)
	m := NewMachine(clk, func(o Outcome) { expired <- o })

	m.Store().Put(newSession(clk, "k1", "OLD"))

	// Fire OLD's timer, then replace the session while the expiry
	// goroutine may still be in flight.
	require.NoError(t, clk.WaitAdvance(DefaultTTL, time.Second, 1))
	m.Store().Put(newSession(clk, "k1", "NEW"))

	// The stale firing must never take NEW with it.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		sess, ok := m.Store().Get("k1")
		require.True(t, ok, "replacement session removed before its own TTL")
		require.Equal(t, "NEW", sess.OrderID)
		time.Sleep(5 * time.Millisecond)
	}
	for {
		select {
		case out := <-expired:
			assert.Equal(t, "OLD", out.Session.OrderID, "expiry reported for the replacement session")
			continue
		default:
		}
		break
	}
}

func TestExpireEntryIgnoresStalePointer(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	expired := make(chan Session, 2)
	st := NewStore(clk, func(sess Session) { expired <- sess })

	st.Put(newSession(clk, "k1", "OLD"))
	st.mu.Lock()
	stale := st.entries["k1"]
	st.mu.Unlock()

	st.Put(newSession(clk, "k1", "NEW"))

	// Deliver the stale firing that raced against the replacement.
	st.expireEntry("k1", stale)

	sess, ok := st.Get("k1")
	require.True(t, ok, "stale expiry removed the replacement")
	assert.Equal(t, "NEW", sess.OrderID)
	select {
	case got := <-expired:
		t.Fatalf("stale expiry reported session for order %s", got.OrderID)
	default:
	}

	// NEW still expires at its own deadline.
	require.NoError(t, clk.WaitAdvance(DefaultTTL, time.Second, 1))
	select {
	case got := <-expired:
		assert.Equal(t, "NEW", got.OrderID)
	case <-time.After(time.Second):
		t.Fatal("replacement session never expired")
	}
}

func TestShutdownReturnsFinalSnapshotAndDisarmsTimers(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	expired := make(chan Outcome, 2)
	m := NewMachine(clk, func(o Outcome) { expired <- o })

	m.Store().Put(newSession(clk, "k1", "O1"))
	m.Store().Put(newSession(clk, "k2", "O2"))

	snap := m.Store().Shutdown()
	require.Len(t, snap, 2)
	assert.Equal(t, "O1", snap["k1"].OrderID)
	assert.Equal(t, "O2", snap["k2"].OrderID)
	assert.Equal(t, 0, m.Store().Size())

	// Nothing may expire after shutdown; the snapshot is the only record.
	clk.Advance(2 * DefaultTTL)
	select {
	case out := <-expired:
		t.Fatalf("expiry fired after shutdown for order %s", out.Session.OrderID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	m := NewMachine(clk, nil)
	m.Store().Put(newSession(clk, "k1", "O1"))

	snap := m.Store().Snapshot()
	require.Len(t, snap, 1)
	delete(snap, "k1")

	_, ok := m.Store().Get("k1")
	assert.True(t, ok, "mutating the snapshot must not touch the store")
}

func TestClassifyText(t *testing.T) {
	cases := []struct {
		text string
		want Signal
	}{
		{"موافق", SignalConfirm},
		{"تم التأكيد", SignalConfirm},
		{"نعم", SignalConfirm},
		{"yes please", SignalConfirm},
		{"Done", SignalConfirm},
		{"الغاء", SignalCancel},
		{"إلغاء الطلب", SignalCancel},
		{"رفض", SignalCancel},
		{"cancel it", SignalCancel},
		{"No", SignalCancel},
		{"", SignalNone},
		{"what is this?", SignalNone},
		// matches both vocabularies: cancellation is the safer default
		{"yes cancel", SignalCancel},
	}
	for _, c := range cases {
		if got := ClassifyText(c.text); got != c.want {
			t.Fatalf("ClassifyText(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestClassifyButton(t *testing.T) {
	assert.Equal(t, SignalConfirm, ClassifyButton(ButtonConfirm))
	assert.Equal(t, SignalCancel, ClassifyButton(ButtonCancel))
	assert.Equal(t, SignalNone, ClassifyButton("something_else"))
}
