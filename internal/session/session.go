package session

import "time"

// Status values for an order confirmation session.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
)

// Decision is an explicit customer choice extracted from an inbound signal.
type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionCancel  Decision = "cancel"
)

// Item is one order line. UnitPrice is 0 when the source payload carried no
// usable price; Quantity defaults to 1 upstream.
type Item struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price,omitempty"`
}

// Session is one in-flight order confirmation, keyed by the normalized
// customer phone. Total is carried opaquely: source data is heterogeneous and
// the field is display-only here.
type Session struct {
	SessionKey    string    `json:"session_key"`
	OrderID       string    `json:"order_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	Address       string    `json:"address"`
	Total         string    `json:"total"`
	Items         []Item    `json:"items,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Outcome is the result of a terminal transition. The session has already
// been removed from the store when an Outcome is produced.
type Outcome struct {
	Session  Session
	Decision Decision
	Status   string
}
