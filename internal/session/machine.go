package session

import (
	"errors"
	"log"
	"strings"

	"github.com/juju/clock"
)

// ErrNotFound reports a transition signal with no matching session. The
// signal is stale or duplicate; callers drop it silently rather than surface
// an error to the customer.
var ErrNotFound = errors.New("no session for key")

// Machine governs the valid transitions of a session. The concurrency guard
// is removal-on-read: the first terminal signal for a key removes the session
// atomically, so a second concurrent signal sees ErrNotFound and is dropped.
// This makes transitions effectively exactly-once even though the transport
// layer delivers signals at least once.
type Machine struct {
	store    *Store
	onExpire func(Outcome)
}

// NewMachine builds the machine together with its store. onExpire observes
// EXPIRED outcomes (the session is already removed when it runs); it may be
// nil.
func NewMachine(clk clock.Clock, onExpire func(Outcome)) *Machine {
	m := &Machine{onExpire: onExpire}
	m.store = NewStore(clk, m.expired)
	return m
}

// Store exposes the machine's session store.
func (m *Machine) Store() *Store { return m.store }

// Transition applies a terminal decision to the session for key. The session
// is removed from the store (canceling its timer) before the Outcome is
// returned; an absent key yields ErrNotFound.
func (m *Machine) Transition(key string, d Decision) (Outcome, error) {
	sess, ok := m.store.Remove(key)
	if !ok {
		return Outcome{}, ErrNotFound
	}
	status := StatusConfirmed
	if d == DecisionCancel {
		status = StatusCancelled
	}
	sess.Status = status
	return Outcome{Session: sess, Decision: d, Status: status}, nil
}

// expired is invoked by the store once a timer wins the race against any
// concurrent transition or replacement; the session is already removed.
func (m *Machine) expired(sess Session) {
	sess.Status = StatusExpired
	log.Printf("[session] order %s for key %s expired without a decision", sess.OrderID, sess.SessionKey)
	if m.onExpire != nil {
		m.onExpire(Outcome{Session: sess, Status: StatusExpired})
	}
}

// Button identifiers for the two-value prompt.
const (
	ButtonConfirm = "confirm_order"
	ButtonCancel  = "cancel_order"
)

// Signal is a normalized inbound confirmation signal.
type Signal int

const (
	SignalNone Signal = iota
	SignalConfirm
	SignalCancel
)

func (s Signal) String() string {
	switch s {
	case SignalConfirm:
		return "confirm"
	case SignalCancel:
		return "cancel"
	default:
		return "none"
	}
}

// Keyword vocabularies for free-text replies. Arabic forms come first: they
// are what customers actually type.
var (
	confirmWords = []string{"موافق", "تأكيد", "تم", "نعم", "confirm", "done", "yes", "ok"}
	cancelWords  = []string{"الغاء", "إلغاء", "رفض", "لا", "cancel", "refuse", "no"}
)

// ClassifyText maps free text to a signal. Negative keywords take precedence:
// cancellation is the safer default when a message somehow matches both
// vocabularies. Unrecognized text yields SignalNone.
func ClassifyText(text string) Signal {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return SignalNone
	}
	for _, w := range cancelWords {
		if strings.Contains(t, w) {
			return SignalCancel
		}
	}
	for _, w := range confirmWords {
		if strings.Contains(t, w) {
			return SignalConfirm
		}
	}
	return SignalNone
}

// ClassifyButton maps a button identifier to a signal.
func ClassifyButton(buttonID string) Signal {
	switch buttonID {
	case ButtonConfirm:
		return SignalConfirm
	case ButtonCancel:
		return SignalCancel
	default:
		return SignalNone
	}
}

// DecisionFor converts a terminal signal to its decision. Callers must not
// pass SignalNone.
func DecisionFor(sig Signal) Decision {
	if sig == SignalCancel {
		return DecisionCancel
	}
	return DecisionConfirm
}
