package execution

import (
	"context"
	"errors"
	"fmt"

	"chat_trader/internal/domain"
	"chat_trader/internal/infra"
)

// GuardedExecution stops calling a failing venue once its circuit breaker
// opens. Rejections are business outcomes and count as successes.
type GuardedExecution struct {
	next    Execution
	breaker *infra.CircuitBreaker
}

func NewGuardedExecution(next Execution, breaker *infra.CircuitBreaker) *GuardedExecution {
	return &GuardedExecution{next: next, breaker: breaker}
}

func (g *GuardedExecution) SubmitOrder(ctx context.Context, d domain.OrderDescriptor) (domain.Order, error) {
	var order domain.Order
	err := g.breaker.Execute(func() error {
		var err error
		order, err = g.next.SubmitOrder(ctx, d)
		return err
	})
	if err != nil {
		return order, fmt.Errorf("%w: %w", ErrVenueUnavailable, err)
	}
	return order, nil
}

func (g *GuardedExecution) CancelOrder(ctx context.Context, orderID string) error {
	var cancelErr error
	err := g.breaker.Execute(func() error {
		cancelErr = g.next.CancelOrder(ctx, orderID)
		if errors.Is(cancelErr, ErrOrderNotFound) {
			return nil
		}
		return cancelErr
	})
	if err != nil {
		return err
	}
	return cancelErr
}

func (g *GuardedExecution) OpenOrders() []domain.Order {
	return g.next.OpenOrders()
}

// Breaker exposes the breaker for status reporting.
func (g *GuardedExecution) Breaker() *infra.CircuitBreaker {
	return g.breaker
}
