package execution

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"chat_trader/internal/domain"
)

// LiveHook forwards a sized order to a real broker. It is the only place
// broker connectivity would be wired.
type LiveHook func(ctx context.Context, order domain.Order) error

// LiveExecution is the live-mode venue. Without a hook it acknowledges
// orders as SUBMITTED and sends nothing anywhere.
type LiveExecution struct {
	*MockExecution
	source PriceSource
	hook   LiveHook
}

// NewLiveExecution refuses to start unless CONFIRM_LIVE_TRADING=true.
func NewLiveExecution(source PriceSource, hook LiveHook) (*LiveExecution, error) {
	if os.Getenv("CONFIRM_LIVE_TRADING") != "true" {
		return nil, ErrLiveNotConfirmed
	}
	slog.Warn("LIVE EXECUTION enabled", slog.Bool("hook", hook != nil))
	return &LiveExecution{
		MockExecution: NewMockExecution(),
		source:        source,
		hook:          hook,
	}, nil
}

// SubmitOrder resolves the size against the last price and hands the order
// to the hook. Fills are never assumed.
func (l *LiveExecution) SubmitOrder(ctx context.Context, d domain.OrderDescriptor) (domain.Order, error) {
	order := domain.Order{
		ID:         newOrderID(),
		Descriptor: d,
		Status:     domain.OrderStatusSubmitted,
		CreatedAt:  time.Now(),
	}

	if reason := checkPrices(d); reason != "" {
		order.Status, order.Reason = domain.OrderStatusRejected, reason
		return order, nil
	}

	switch {
	case d.Quantity.Valid:
		order.Qty = d.Quantity.Decimal
	case d.Notional.Valid && l.source != nil:
		last, err := l.source.LastPrice(ctx, d.Symbol)
		if err != nil || !last.IsPositive() {
			order.Status, order.Reason = domain.OrderStatusRejected, ReasonNoPrice
			return order, nil
		}
		order.Qty = d.Notional.Decimal.Div(last).Round(qtyPlaces)
	}
	if !order.Qty.IsPositive() {
		order.Status, order.Reason = domain.OrderStatusRejected, ReasonInvalidSize
		return order, nil
	}

	if l.hook != nil {
		if err := l.hook(ctx, order); err != nil {
			return order, fmt.Errorf("live submit %s: %w", order.ID, err)
		}
	}

	slog.Info("LIVE EXECUTION: Submit Order",
		slog.String("id", order.ID),
		slog.String("symbol", d.Symbol),
		slog.String("side", string(d.Side)),
		slog.String("type", string(d.Type)),
		slog.String("qty", order.Qty.String()))

	l.mu.Lock()
	l.orders = append(l.orders, order)
	l.mu.Unlock()
	return order, nil
}
