// Package transport defines the chat-transport boundary. The actual pairing,
// connection lifecycle and wire protocol live behind the Messenger interface;
// the core only ever sees normalized events and addresses.
package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahmedsayedsa/orderbot/internal/session"
)

// Button is one tappable prompt option.
type Button struct {
	ID    string
	Label string
}

// Messenger delivers outbound messages. Implementations wrap the real chat
// client; tests use a recording fake.
type Messenger interface {
	SendText(ctx context.Context, address, text string) error
	SendPrompt(ctx context.Context, address, text string, buttons []Button) error
	Connected() bool
}

// Event is one normalized inbound transport event. Address is the full
// transport address of the sender; exactly one of ButtonID/Text is usually
// set, but both may arrive (button taps echo their label as text).
type Event struct {
	Address  string
	ButtonID string
	Text     string
}

// Composer renders customer-facing message text. The default implementation
// below matches what the storefront's customers already receive.
type Composer interface {
	OrderPrompt(sess session.Session) string
	DecisionReply(out session.Outcome) string
}

// DefaultButtons returns the fixed two-value prompt set.
func DefaultButtons() []Button {
	return []Button{
		{ID: session.ButtonConfirm, Label: "✅ تأكيد الطلب"},
		{ID: session.ButtonCancel, Label: "❌ إلغاء الطلب"},
	}
}

// ArabicComposer is the production composer.
type ArabicComposer struct{}

// OrderPrompt renders the order summary with the confirmation request.
func (ArabicComposer) OrderPrompt(sess session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌟 أهلاً وسهلاً %s\n\n", sess.CustomerName)
	b.WriteString("شكرًا لاختيارك اوتو سيرفس! تم استلام طلبك بنجاح 🎉\n\n")
	fmt.Fprintf(&b, "🆔 رقم الطلب: #%s\n\n", shortID(sess.OrderID))

	if len(sess.Items) > 0 {
		b.WriteString("🛍️ تفاصيل الطلب:\n")
		for _, it := range sess.Items {
			fmt.Fprintf(&b, "• %s", it.Name)
			if it.Quantity > 1 {
				fmt.Fprintf(&b, ": %d قطعة", it.Quantity)
			}
			if it.UnitPrice > 0 {
				fmt.Fprintf(&b, " (%.10g ج.م", it.UnitPrice)
				if it.Quantity > 1 {
					b.WriteString(" للقطعة")
				}
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "💰 الإجمالي: %s ج.م\n", sess.Total)
	if sess.Address != "" && sess.Address != "غير محدد" {
		fmt.Fprintf(&b, "📍 عنوان التوصيل: %s\n", sess.Address)
	}
	b.WriteString("\n⚠️ ملاحظة مهمة: المعاينة غير متاحة وقت الاستلام\n")
	b.WriteString("🔄 يُرجى تأكيد طلبك للبدء في التحضير والشحن:")
	return b.String()
}

// DecisionReply renders the confirmation or cancellation acknowledgment.
func (ArabicComposer) DecisionReply(out session.Outcome) string {
	if out.Status == session.StatusConfirmed {
		return fmt.Sprintf("✅ تم تأكيد طلبك بنجاح يا %s!", out.Session.CustomerName)
	}
	return fmt.Sprintf("❌ تم إلغاء طلبك يا %s", out.Session.CustomerName)
}

// shortID keeps the last six characters of an order id for display.
func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
