package execution

import (
	"context"
	"errors"

	"chat_trader/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrLiveNotConfirmed = errors.New("live trading requires CONFIRM_LIVE_TRADING=true")
	ErrVenueUnavailable = errors.New("execution venue unavailable")
)

// Rejection reasons reported in domain.Order.Reason.
const (
	ReasonNoPrice              = "no_price"
	ReasonInvalidSize          = "invalid_size"
	ReasonInvalidQty           = "invalid_qty"
	ReasonLimitRequired        = "limit_required"
	ReasonStopRequired         = "stop_required"
	ReasonStopAndLimitRequired = "stop_and_limit_required"
	ReasonInsufficientCash     = "insufficient_cash"
	ReasonNoPosition           = "no_position"
	ReasonPositionLimit        = "position_limit"
	ReasonInvalidPrice         = "invalid_price"
)

// Execution defines the interface for order execution.
// A business rejection is a REJECTED order with a nil error; errors are
// reserved for the venue itself failing.
type Execution interface {
	// SubmitOrder sends a new order to the venue.
	SubmitOrder(ctx context.Context, d domain.OrderDescriptor) (domain.Order, error)

	// CancelOrder cancels a resting order by ID.
	CancelOrder(ctx context.Context, orderID string) error

	// OpenOrders lists orders still resting at the venue.
	OpenOrders() []domain.Order
}

// PriceSource supplies the last traded price of a symbol.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
