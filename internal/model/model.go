// Package model defines the order/trade data shapes shared by the
// order book, ingestion pipeline, and façade.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Side is the direction of an order.
type Side uint8

const (
	// SideUnspecified is the zero value; never valid on a resting order.
	SideUnspecified Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNSPECIFIED"
	}
}

// ParseSide accepts "BUY"/"buy" and "SELL"/"sell"; mixed-case forms
// such as "Buy" are rejected.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "BUY", "buy":
		return SideBuy, true
	case "SELL", "sell":
		return SideSell, true
	default:
		return SideUnspecified, false
	}
}

// Order is a resting or incoming order. Field types follow the spec's
// data model exactly: price is a 64-bit float, quantity a 64-bit signed
// integer — not github.com/shopspring/decimal, despite the teacher
// repo's own Order type using it (see DESIGN.md).
type Order struct {
	OrderID   string
	UserID    string
	Symbol    string
	Side      Side
	Quantity  int64
	Price     float64
	CreatedAt time.Time
	Active    bool
}

// Valid reports whether the order satisfies the admission invariants of
// spec.md §3: positive quantity, positive price, a known side.
func (o *Order) Valid() bool {
	return o != nil && o.Quantity > 0 && o.Price > 0 && (o.Side == SideBuy || o.Side == SideSell)
}

// NewOrderID generates a process-unique order id when the caller does
// not supply one.
func NewOrderID() string {
	return uuid.New().String()
}

// Trade is a single fill produced by the matching engine.
type Trade struct {
	TradeID      string
	TakerOrderID string
	TakerUserID  string
	Symbol       string
	TakerSide    Side
	Quantity     int64
	Price        float64
	ExecutedAt   time.Time
}

// TotalValue returns quantity * price, per spec.md §3.
func (t *Trade) TotalValue() float64 {
	return float64(t.Quantity) * t.Price
}

// NewTradeID generates a process-unique trade id.
func NewTradeID() string {
	return uuid.New().String()
}
