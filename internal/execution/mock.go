package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat_trader/internal/domain"
)

// MockExecution is a safe implementation that only logs orders and
// acknowledges them as SUBMITTED.
type MockExecution struct {
	mu     sync.Mutex
	orders []domain.Order
}

func NewMockExecution() *MockExecution {
	return &MockExecution{}
}

func (m *MockExecution) SubmitOrder(ctx context.Context, d domain.OrderDescriptor) (domain.Order, error) {
	order := domain.Order{
		ID:         newOrderID(),
		Descriptor: d,
		Status:     domain.OrderStatusSubmitted,
		CreatedAt:  time.Now(),
	}
	if d.Quantity.Valid {
		order.Qty = d.Quantity.Decimal
	}

	slog.Info("MOCK EXECUTION: Submit Order",
		slog.String("id", order.ID),
		slog.String("symbol", d.Symbol),
		slog.String("side", string(d.Side)),
		slog.String("command", d.CommandString()),
	)

	m.mu.Lock()
	m.orders = append(m.orders, order)
	m.mu.Unlock()
	return order, nil
}

func (m *MockExecution) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.orders {
		if m.orders[i].ID == orderID && m.orders[i].IsOpen() {
			m.orders[i].Status = domain.OrderStatusCanceled
			slog.Info("MOCK EXECUTION: Cancel Order", slog.String("id", orderID))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}

func (m *MockExecution) OpenOrders() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		if o.IsOpen() {
			out = append(out, o)
		}
	}
	return out
}
