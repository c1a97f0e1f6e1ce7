package transport

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/ahmedsayedsa/orderbot/internal/cloud"
	"github.com/ahmedsayedsa/orderbot/internal/easyorder"
	"github.com/ahmedsayedsa/orderbot/internal/phone"
	"github.com/ahmedsayedsa/orderbot/internal/session"
)

// Syncer pushes a status update to the storefront backend. Satisfied by
// *easyorder.Client.
type Syncer interface {
	UpdateFor(sess session.Session, status string) easyorder.StatusUpdate
	Sync(ctx context.Context, upd easyorder.StatusUpdate) easyorder.SyncResult
}

// CustomerLogger records first contact with a customer. Satisfied by
// *customers.Directory; optional.
type CustomerLogger interface {
	Log(ctx context.Context, phone, name string) error
}

// AdapterConfig bundles the adapter's collaborators.
type AdapterConfig struct {
	Normalizer *phone.Normalizer
	Messenger  Messenger
	Composer   Composer
	Syncer     Syncer
	Publisher  *cloud.OutcomePublisher
	Customers  CustomerLogger
	Clock      clock.Clock

	// SessionTTL overrides the default one hour window when positive.
	SessionTTL time.Duration

	// ReportExpired pushes an "expired" status to the backend when a
	// session times out. Off by default; the storefront treats silence
	// as still-pending.
	ReportExpired bool
}

// Adapter connects inbound transport events to the confirmation state
// machine, and new orders to outbound prompts. The customer reply is sent
// before any backend sync is attempted; sync runs on its own goroutine so a
// slow or down backend never delays the conversation.
type Adapter struct {
	cfg     AdapterConfig
	machine *session.Machine
	ttl     time.Duration
}

// NewAdapter builds the adapter and its session machine.
func NewAdapter(cfg AdapterConfig) *Adapter {
	if cfg.Composer == nil {
		cfg.Composer = ArabicComposer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	a := &Adapter{cfg: cfg, ttl: cfg.SessionTTL}
	if a.ttl <= 0 {
		a.ttl = session.DefaultTTL
	}
	a.machine = session.NewMachine(cfg.Clock, a.handleExpired)
	return a
}

// Machine exposes the underlying session machine for HTTP handlers.
func (a *Adapter) Machine() *session.Machine { return a.machine }

// OpenSession registers a pending session for the order and sends the
// confirmation prompt. The returned session key identifies the pending
// conversation.
func (a *Adapter) OpenSession(ctx context.Context, sess session.Session) (string, error) {
	num, err := a.cfg.Normalizer.Normalize(sess.CustomerPhone)
	if err != nil {
		return "", err
	}
	sess.SessionKey = num.SessionKey()
	sess.CustomerPhone = num.Canonical
	sess.Status = session.StatusPending
	now := a.cfg.Clock.Now()
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(a.ttl)

	if a.cfg.Customers != nil {
		if err := a.cfg.Customers.Log(ctx, num.Canonical, sess.CustomerName); err != nil {
			log.Printf("[transport] customer log failed for %s: %v", num.Canonical, err)
		}
	}

	a.machine.Store().Put(sess)
	if err := a.cfg.Messenger.SendPrompt(ctx, num.Address(), a.cfg.Composer.OrderPrompt(sess), DefaultButtons()); err != nil {
		// The session stays armed; the customer may still reach us by
		// text even if the button prompt was lost.
		return sess.SessionKey, err
	}
	log.Printf("[transport] prompt sent for order %s to %s", sess.OrderID, sess.SessionKey)
	return sess.SessionKey, nil
}

// HandleEvent processes one inbound message or button tap. Signals with no
// matching pending session are dropped; a duplicate tap is a no-op.
func (a *Adapter) HandleEvent(ctx context.Context, ev Event) error {
	sig := session.ClassifyButton(ev.ButtonID)
	if sig == session.SignalNone {
		sig = session.ClassifyText(ev.Text)
	}
	if sig == session.SignalNone {
		return nil
	}

	key := a.cfg.Normalizer.SessionKeyFromAddress(ev.Address)
	out, err := a.machine.Transition(key, session.DecisionFor(sig))
	if errors.Is(err, session.ErrNotFound) {
		log.Printf("[transport] dropping %s signal from %s: no pending session", sig, key)
		return nil
	}
	if err != nil {
		return err
	}

	if err := a.cfg.Messenger.SendText(ctx, ev.Address, a.cfg.Composer.DecisionReply(out)); err != nil {
		log.Printf("[transport] reply to %s failed: %v", key, err)
	}
	go a.finish(out)
	return nil
}

// handleExpired fires from the session machine's timer goroutine.
func (a *Adapter) handleExpired(out session.Outcome) {
	log.Printf("[transport] session for order %s expired", out.Session.OrderID)
	if !a.cfg.ReportExpired {
		a.publish(out)
		return
	}
	a.finish(out)
}

// finish pushes the backend update and publishes the terminal outcome. Runs
// off the event path.
func (a *Adapter) finish(out session.Outcome) {
	ctx := context.Background()
	if a.cfg.Syncer != nil {
		upd := a.cfg.Syncer.UpdateFor(out.Session, strings.ToLower(string(out.Status)))
		res := a.cfg.Syncer.Sync(ctx, upd)
		if !res.Success {
			log.Printf("[transport] sync for order %s failed after %d attempts: %v",
				out.Session.OrderID, res.Attempts, res.LastError)
		}
	}
	a.publish(out)
}

func (a *Adapter) publish(out session.Outcome) {
	if a.cfg.Publisher == nil {
		return
	}
	if err := a.cfg.Publisher.PublishOutcome(context.Background(), out, uuid.NewString()); err != nil {
		log.Printf("[transport] outcome publish for order %s failed: %v", out.Session.OrderID, err)
	}
}
