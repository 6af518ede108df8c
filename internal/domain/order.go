package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType selects how an order is priced.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// TimeInForce is how long a resting order stays valid.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "DAY"
	TimeInForceGTC TimeInForce = "GTC"
)

// OrderDescriptor is the normalized form of a typed trade command.
// Optional amounts use decimal.NullDecimal so "not given" is distinct from zero.
type OrderDescriptor struct {
	Side        Side                `json:"side"`
	Symbol      string              `json:"symbol"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	Notional    decimal.NullDecimal `json:"notional"`
	Type        OrderType           `json:"order_type"`
	LimitPrice  decimal.NullDecimal `json:"limit_price"`
	StopPrice   decimal.NullDecimal `json:"stop_price"`
	TimeInForce TimeInForce         `json:"time_in_force"`
}

// NewOrderDescriptor returns a descriptor with every default applied.
func NewOrderDescriptor(side Side, symbol string) OrderDescriptor {
	return OrderDescriptor{
		Side:        side,
		Symbol:      symbol,
		Type:        OrderTypeMarket,
		TimeInForce: TimeInForceDay,
	}
}

// Equal compares two descriptors field by field using decimal equality.
func (d OrderDescriptor) Equal(o OrderDescriptor) bool {
	return d.Side == o.Side &&
		d.Symbol == o.Symbol &&
		d.Type == o.Type &&
		d.TimeInForce == o.TimeInForce &&
		nullEqual(d.Quantity, o.Quantity) &&
		nullEqual(d.Notional, o.Notional) &&
		nullEqual(d.LimitPrice, o.LimitPrice) &&
		nullEqual(d.StopPrice, o.StopPrice)
}

// CommandString renders the descriptor back into command syntax.
// Unset prices of a priced order type are written as "-", which the
// interpreter reads as an unparseable operand and leaves unset again.
// Prices left over from an earlier clause (e.g. "limit 5 mkt") are written
// before the final order-type clause so a re-parse restores them.
func (d OrderDescriptor) CommandString() string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(strings.ToLower(string(d.Side)))
	b.WriteString(" ")
	b.WriteString(d.Symbol)

	if d.Quantity.Valid {
		b.WriteString(" qty ")
		b.WriteString(d.Quantity.Decimal.String())
	}
	if d.Notional.Valid {
		b.WriteString(" $")
		b.WriteString(d.Notional.Decimal.String())
	}

	switch d.Type {
	case OrderTypeMarket:
		if d.StopPrice.Valid || d.LimitPrice.Valid {
			writeStopLimit(&b, d)
			b.WriteString(" mkt")
		}
	case OrderTypeLimit:
		if d.StopPrice.Valid {
			b.WriteString(" stop ")
			b.WriteString(operand(d.StopPrice))
		}
		b.WriteString(" limit ")
		b.WriteString(operand(d.LimitPrice))
	case OrderTypeStop:
		if d.LimitPrice.Valid {
			b.WriteString(" limit ")
			b.WriteString(operand(d.LimitPrice))
		}
		b.WriteString(" stop ")
		b.WriteString(operand(d.StopPrice))
	case OrderTypeStopLimit:
		writeStopLimit(&b, d)
	}

	if d.TimeInForce == TimeInForceGTC {
		b.WriteString(" tif gtc")
	}
	return b.String()
}

func writeStopLimit(b *strings.Builder, d OrderDescriptor) {
	b.WriteString(" stoplimit ")
	b.WriteString(operand(d.StopPrice))
	b.WriteString(" ")
	b.WriteString(operand(d.LimitPrice))
}

// OrderStatus is the lifecycle state reported by an execution venue.
type OrderStatus string

const (
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// Order is a descriptor after it has been handed to an execution venue.
type Order struct {
	ID           string          `json:"id"`
	Descriptor   OrderDescriptor `json:"descriptor"`
	Qty          decimal.Decimal `json:"qty"` // resolved size, zero if it could not be resolved
	Status       OrderStatus     `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	FilledQty    decimal.Decimal `json:"filled_qty"`
	AvgFillPrice decimal.Decimal `json:"avg_fill_price"`
	Triggered    bool            `json:"triggered,omitempty"` // stop condition already met
	CreatedAt    time.Time       `json:"created_at"`
}

// IsOpen checks if the order is still resting at the venue.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusSubmitted
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func operand(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return v.Decimal.String()
}
