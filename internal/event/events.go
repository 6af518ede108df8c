package event

import (
	"encoding/json"
	"fmt"

	"chat_trader/internal/domain"
	"chat_trader/pkg/quant"

	"github.com/shopspring/decimal"
)

// Type defines the type of event.
type Type uint16

const (
	EvCommand Type = iota + 1
	EvOrderUpdate
	EvPriceUpdate
	EvControl
)

func (t Type) String() string {
	switch t {
	case EvCommand:
		return "command"
	case EvOrderUpdate:
		return "order_update"
	case EvPriceUpdate:
		return "price_update"
	case EvControl:
		return "control"
	default:
		return fmt.Sprintf("type(%d)", uint16(t))
	}
}

// Event is the interface for all dispatcher events.
type Event interface {
	GetSeq() uint64
	GetTs() quant.TimeStamp
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Seq uint64          `json:"seq"`
	Ts  quant.TimeStamp `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64         { return e.Seq }
func (e BaseEvent) GetTs() quant.TimeStamp { return e.Ts }

// CommandEvent records one chat line as it was interpreted.
// Exactly one of Order and Failure is set for trade commands; control
// commands carry neither.
type CommandEvent struct {
	BaseEvent
	ChatID  int64                   `json:"chat_id"`
	Text    string                  `json:"text"`
	Order   *domain.OrderDescriptor `json:"order,omitempty"`
	Failure string                  `json:"failure,omitempty"`
}

func (e CommandEvent) GetType() Type { return EvCommand }

// OrderUpdateEvent represents an order status change.
type OrderUpdateEvent struct {
	BaseEvent
	ChatID  int64              `json:"chat_id,omitempty"` // chat that placed the order
	OrderID string             `json:"order_id"`
	Symbol  string             `json:"symbol"`
	Side    domain.Side        `json:"side"`
	Status  domain.OrderStatus `json:"status"`
	Reason  string             `json:"reason,omitempty"`
	Qty     decimal.Decimal    `json:"qty"`
	Price   decimal.Decimal    `json:"price"`
}

func (e OrderUpdateEvent) GetType() Type { return EvOrderUpdate }

// PriceUpdateEvent represents a last-trade price observed from a quote feed.
type PriceUpdateEvent struct {
	BaseEvent
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
}

func (e PriceUpdateEvent) GetType() Type { return EvPriceUpdate }

// ControlEvent records a change to a persisted preference such as the
// trading mode or base order size.
type ControlEvent struct {
	BaseEvent
	ChatID int64  `json:"chat_id"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

func (e ControlEvent) GetType() Type { return EvControl }

// Decode rebuilds a stored event from its type tag and JSON payload.
func Decode(typ Type, payload []byte) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch typ {
	case EvCommand:
		var e CommandEvent
		err = json.Unmarshal(payload, &e)
		ev = &e
	case EvOrderUpdate:
		var e OrderUpdateEvent
		err = json.Unmarshal(payload, &e)
		ev = &e
	case EvPriceUpdate:
		var e PriceUpdateEvent
		err = json.Unmarshal(payload, &e)
		ev = &e
	case EvControl:
		var e ControlEvent
		err = json.Unmarshal(payload, &e)
		ev = &e
	default:
		return nil, fmt.Errorf("unknown event type %d", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return ev, nil
}
