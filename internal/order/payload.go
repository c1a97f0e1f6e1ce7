package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ahmedsayedsa/orderbot/internal/session"
)

// Placeholder display values used when the backend sends sparse data, kept
// byte-identical to what the storefront renders.
const (
	PlaceholderOrderID = "غير محدد"
	PlaceholderName    = "عميل"
	PlaceholderTotal   = "سيتم تحديده"
	PlaceholderAddress = "غير محدد"
)

// Payload is a raw inbound order webhook body. Upstream storefronts disagree
// on field names, so the body stays schemaless until Normalize flattens it.
type Payload map[string]interface{}

// Normalize resolves the duck-typed payload into one canonical Canonical
// before any business logic runs. The priority order of source fields is
// fixed; when several are present the first listed wins:
//
//	order id:   order_id > id > order.id
//	name:       customer_name > customer.name > name
//	phone:      customer_phone > customer.phone > phone > customer.mobile
//	total:      total > amount > price > order.total
//	address:    address > shipping_address > customer.address
//	items:      order_items > items > products > product > top-level name+price
func Normalize(p Payload) Canonical {
	c := Canonical{
		OrderID:       p.firstString(PlaceholderOrderID, "order_id", "id", "order.id"),
		CustomerName:  p.firstString(PlaceholderName, "customer_name", "customer.name", "name"),
		CustomerPhone: p.firstString("", "customer_phone", "customer.phone", "phone", "customer.mobile"),
		Total:         p.firstString(PlaceholderTotal, "total", "amount", "price", "order.total"),
		Address:       p.firstString(PlaceholderAddress, "address", "shipping_address", "customer.address"),
	}
	c.Items = p.items()
	return c
}

// Canonical is the normalized order payload. Everything downstream (session,
// prompt, sync payload) is built from this, never from the raw body.
type Canonical struct {
	OrderID       string         `validate:"required"`
	CustomerName  string         `validate:"required"`
	CustomerPhone string         `validate:"required"`
	Total         string         `validate:"required"`
	Address       string         `validate:"required"`
	Items         []session.Item `validate:"dive"`
}

// Session builds the pending confirmation session for the canonical order.
func (c Canonical) Session(key string, now time.Time, ttl time.Duration) session.Session {
	return session.Session{
		SessionKey:    key,
		OrderID:       c.OrderID,
		CustomerName:  c.CustomerName,
		CustomerPhone: c.CustomerPhone,
		Address:       c.Address,
		Total:         c.Total,
		Items:         c.Items,
		Status:        session.StatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

func (p Payload) items() []session.Item {
	var raw []interface{}
	switch {
	case p.arrayAt("order_items") != nil:
		raw = p.arrayAt("order_items")
	case p.arrayAt("items") != nil:
		raw = p.arrayAt("items")
	case p.arrayAt("products") != nil:
		raw = p.arrayAt("products")
	default:
		if prod, ok := p["product"].(map[string]interface{}); ok {
			raw = []interface{}{prod}
		} else if _, hasName := p["name"]; hasName {
			if _, hasPrice := p["price"]; hasPrice {
				// single-product storefronts flatten the item into the body
				raw = []interface{}{map[string]interface{}(p)}
			}
		}
	}

	out := make([]session.Item, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, normalizeItem(m, i))
	}
	return out
}

func normalizeItem(m map[string]interface{}, idx int) session.Item {
	it := session.Item{Quantity: 1}

	it.Name = firstStringIn(m, "", "product.name", "name", "title")
	if it.Name == "" {
		it.Name = fmt.Sprintf("منتج %d", idx+1)
	}

	if q, ok := firstNumberIn(m, "quantity", "qty", "pivot.quantity"); ok && q >= 1 {
		it.Quantity = int(q)
	}

	// sale price wins over list price, item-level over nested product-level
	if price, ok := firstNumberIn(m, "sale_price", "price", "unit_price", "product.sale_price", "product.price"); ok {
		it.UnitPrice = price
	}
	return it
}

// firstString walks the dotted paths in order and returns the first value
// that renders to a non-empty string, else the fallback.
func (p Payload) firstString(fallback string, paths ...string) string {
	return firstStringIn(map[string]interface{}(p), fallback, paths...)
}

func firstStringIn(m map[string]interface{}, fallback string, paths ...string) string {
	for _, path := range paths {
		if v, ok := lookup(m, path); ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return fallback
}

func firstNumberIn(m map[string]interface{}, paths ...string) (float64, bool) {
	for _, path := range paths {
		v, ok := lookup(m, path)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n != 0 {
				return n, true
			}
		case int:
			if n != 0 {
				return float64(n), true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil && f != 0 {
				return f, true
			}
		}
	}
	return 0, false
}

func (p Payload) arrayAt(key string) []interface{} {
	if v, ok := p[key].([]interface{}); ok && len(v) > 0 {
		return v
	}
	return nil
}

func lookup(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	cur := interface{}(m)
	for _, part := range parts {
		mm, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = mm[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case nil:
		return ""
	default:
		return ""
	}
}
