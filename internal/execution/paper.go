package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chat_trader/internal/domain"

	"github.com/shopspring/decimal"
)

const qtyPlaces = 4

// Fill represents a simulated order fill.
type Fill struct {
	OrderID string
	Symbol  string
	Side    domain.Side
	Price   decimal.Decimal
	Qty     decimal.Decimal
	At      time.Time
}

// PaperConfig holds account settings for simulated trading.
// Zero guardrail values mean unlimited.
type PaperConfig struct {
	StartingCash        decimal.Decimal
	MaxPositionQty      decimal.Decimal
	MaxPositionNotional decimal.Decimal
}

// PaperExecution simulates order execution against a cash account.
// Orders fill at the last known price when their trigger conditions hold
// and otherwise rest until UpdatePrice, CancelOrder or ExpireDayOrders.
type PaperExecution struct {
	mu        sync.Mutex
	cfg       PaperConfig
	cash      decimal.Decimal
	positions map[string]*domain.Position
	open      []*domain.Order
	prices    map[string]decimal.Decimal
	fills     []Fill
	source    PriceSource
	now       func() time.Time
}

// NewPaperExecution creates a paper account. source may be nil, in which
// case only prices pushed through UpdatePrice are known.
func NewPaperExecution(cfg PaperConfig, source PriceSource) *PaperExecution {
	return &PaperExecution{
		cfg:       cfg,
		cash:      cfg.StartingCash,
		positions: make(map[string]*domain.Position),
		prices:    make(map[string]decimal.Decimal),
		source:    source,
		now:       time.Now,
	}
}

// SubmitOrder sizes the order, then fills it or leaves it resting.
func (p *PaperExecution) SubmitOrder(ctx context.Context, d domain.OrderDescriptor) (domain.Order, error) {
	order := domain.Order{
		ID:         newOrderID(),
		Descriptor: d,
		CreatedAt:  p.now(),
	}

	last, err := p.lastPrice(ctx, d.Symbol)
	if err != nil {
		return order, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !last.IsPositive() {
		return p.reject(order, ReasonNoPrice), nil
	}

	switch {
	case d.Quantity.Valid:
		order.Qty = d.Quantity.Decimal
	case d.Notional.Valid && d.Notional.Decimal.IsPositive():
		order.Qty = d.Notional.Decimal.Div(last).Round(qtyPlaces)
	default:
		return p.reject(order, ReasonInvalidSize), nil
	}
	if !order.Qty.IsPositive() {
		return p.reject(order, ReasonInvalidQty), nil
	}

	if reason := checkPrices(d); reason != "" {
		return p.reject(order, reason), nil
	}

	if price, ok := p.evaluate(&order, last); ok {
		p.fill(&order, price)
		return order, nil
	}

	order.Status = domain.OrderStatusOpen
	p.open = append(p.open, &order)
	slog.Info("PAPER EXECUTION: Order Resting",
		slog.String("id", order.ID),
		slog.String("symbol", d.Symbol),
		slog.String("side", string(d.Side)),
		slog.String("type", string(d.Type)),
		slog.String("qty", order.Qty.String()),
		slog.String("tif", string(d.TimeInForce)))
	return order, nil
}

// UpdatePrice records a new last price and re-evaluates resting orders for
// the symbol. It returns every order whose status changed.
func (p *PaperExecution) UpdatePrice(symbol string, price decimal.Decimal) []domain.Order {
	if !price.IsPositive() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.prices[symbol] = price

	var changed []domain.Order
	kept := p.open[:0]
	for _, o := range p.open {
		if o.Descriptor.Symbol != symbol {
			kept = append(kept, o)
			continue
		}
		if fillPrice, ok := p.evaluate(o, price); ok {
			p.fill(o, fillPrice)
			changed = append(changed, *o)
			continue
		}
		kept = append(kept, o)
	}
	clear(p.open[len(kept):])
	p.open = kept
	return changed
}

// ExpireDayOrders cancels every resting DAY order and returns them.
func (p *PaperExecution) ExpireDayOrders() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []domain.Order
	kept := p.open[:0]
	for _, o := range p.open {
		if o.Descriptor.TimeInForce == domain.TimeInForceDay {
			o.Status = domain.OrderStatusExpired
			expired = append(expired, *o)
			continue
		}
		kept = append(kept, o)
	}
	clear(p.open[len(kept):])
	p.open = kept

	if len(expired) > 0 {
		slog.Info("PAPER EXECUTION: Day Orders Expired", slog.Int("count", len(expired)))
	}
	return expired
}

// CancelOrder cancels a resting order.
func (p *PaperExecution) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, o := range p.open {
		if o.ID != orderID {
			continue
		}
		o.Status = domain.OrderStatusCanceled
		p.open = append(p.open[:i], p.open[i+1:]...)
		slog.Info("PAPER EXECUTION: Order Canceled", slog.String("id", orderID))
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}

// OpenOrders returns resting orders oldest first.
func (p *PaperExecution) OpenOrders() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.Order, len(p.open))
	for i, o := range p.open {
		out[i] = *o
	}
	return out
}

// GetFills returns all executed fills.
func (p *PaperExecution) GetFills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]Fill, len(p.fills))
	copy(result, p.fills)
	return result
}

// Portfolio returns a copy of the account state for snapshots and /status.
func (p *PaperExecution) Portfolio() domain.Portfolio {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := domain.Portfolio{
		Cash:      p.cash,
		Positions: p.positions,
	}
	for _, o := range p.open {
		state.OpenOrders = append(state.OpenOrders, *o)
	}
	return state.Clone()
}

// Restore replaces the account state, typically from a snapshot.
func (p *PaperExecution) Restore(state domain.Portfolio) {
	state = state.Clone()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cash = state.Cash
	p.positions = state.Positions
	p.open = p.open[:0]
	for i := range state.OpenOrders {
		o := state.OpenOrders[i]
		p.open = append(p.open, &o)
	}
}

// Equity values cash plus open positions at the last known prices.
// Symbols without a price are valued at cost.
func (p *PaperExecution) Equity() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := p.cash
	for sym, pos := range p.positions {
		if !pos.IsOpen() {
			continue
		}
		if last, ok := p.prices[sym]; ok {
			total = total.Add(pos.Qty.Mul(last))
		} else {
			total = total.Add(pos.Notional())
		}
	}
	return total
}

// Symbols lists symbols with an open position, sorted.
func (p *PaperExecution) Symbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for sym, pos := range p.positions {
		if pos.IsOpen() {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// lastPrice prefers a fresh quote from the source and falls back to the
// last pushed price when the source is absent or failing.
func (p *PaperExecution) lastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if p.source != nil {
		last, err := p.source.LastPrice(ctx, symbol)
		if err == nil && last.IsPositive() {
			p.mu.Lock()
			p.prices[symbol] = last
			p.mu.Unlock()
			return last, nil
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		slog.Warn("PAPER EXECUTION: price lookup failed",
			slog.String("symbol", symbol),
			slog.Any("error", err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prices[symbol], nil
}

// evaluate reports whether o fills at last and the fill price if so.
// A stop that triggers is remembered on the order.
func (p *PaperExecution) evaluate(o *domain.Order, last decimal.Decimal) (decimal.Decimal, bool) {
	d := o.Descriptor
	buy := d.Side == domain.SideBuy

	switch d.Type {
	case domain.OrderTypeMarket:
		return last, true

	case domain.OrderTypeLimit:
		return limitFill(buy, last, d.LimitPrice.Decimal)

	case domain.OrderTypeStop:
		if o.Triggered || stopTriggered(buy, last, d.StopPrice.Decimal) {
			o.Triggered = true
			return last, true
		}

	case domain.OrderTypeStopLimit:
		if o.Triggered || stopTriggered(buy, last, d.StopPrice.Decimal) {
			o.Triggered = true
			return limitFill(buy, last, d.LimitPrice.Decimal)
		}
	}
	return decimal.Zero, false
}

// fill applies guardrails and moves cash. Must be called with mutex held.
func (p *PaperExecution) fill(o *domain.Order, price decimal.Decimal) {
	d := o.Descriptor
	pos := p.position(d.Symbol)
	qty := o.Qty

	if d.Side == domain.SideBuy {
		if p.cfg.MaxPositionQty.IsPositive() {
			allowed := decimal.Max(decimal.Zero, p.cfg.MaxPositionQty.Sub(pos.Qty)).Round(qtyPlaces)
			qty = decimal.Min(qty, allowed)
		}
		if p.cfg.MaxPositionNotional.IsPositive() {
			allowed := decimal.Max(decimal.Zero, p.cfg.MaxPositionNotional.Sub(pos.Notional()))
			qty = decimal.Min(qty, allowed.Div(price).Round(qtyPlaces))
		}
		if !qty.IsPositive() {
			*o = p.reject(*o, ReasonPositionLimit)
			return
		}
		if p.cash.LessThan(qty.Mul(price)) {
			qty = p.cash.Div(price).Truncate(qtyPlaces)
		}
		if !qty.IsPositive() {
			*o = p.reject(*o, ReasonInsufficientCash)
			return
		}
		pos.Buy(price, qty)
		p.cash = p.cash.Sub(qty.Mul(price))
	} else {
		qty = decimal.Min(qty, pos.Qty)
		if !qty.IsPositive() {
			*o = p.reject(*o, ReasonNoPosition)
			return
		}
		p.cash = p.cash.Add(pos.Sell(price, qty))
	}

	o.Status = domain.OrderStatusFilled
	o.FilledQty = qty
	o.AvgFillPrice = price
	p.fills = append(p.fills, Fill{
		OrderID: o.ID,
		Symbol:  d.Symbol,
		Side:    d.Side,
		Price:   price,
		Qty:     qty,
		At:      p.now(),
	})

	slog.Info("PAPER EXECUTION: Order Filled",
		slog.String("id", o.ID),
		slog.String("symbol", d.Symbol),
		slog.String("side", string(d.Side)),
		slog.String("price", price.String()),
		slog.String("qty", qty.String()))
}

func (p *PaperExecution) reject(o domain.Order, reason string) domain.Order {
	o.Status = domain.OrderStatusRejected
	o.Reason = reason
	slog.Info("PAPER EXECUTION: Order Rejected",
		slog.String("id", o.ID),
		slog.String("symbol", o.Descriptor.Symbol),
		slog.String("reason", reason))
	return o
}

func (p *PaperExecution) position(symbol string) *domain.Position {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		p.positions[symbol] = pos
	}
	return pos
}

// checkPrices returns the rejection reason for prices the order type needs
// but lacks, or for any zero or negative price the command carried.
func checkPrices(d domain.OrderDescriptor) string {
	for _, v := range []decimal.NullDecimal{d.LimitPrice, d.StopPrice} {
		if v.Valid && !v.Decimal.IsPositive() {
			return ReasonInvalidPrice
		}
	}
	switch d.Type {
	case domain.OrderTypeLimit:
		if !d.LimitPrice.Valid {
			return ReasonLimitRequired
		}
	case domain.OrderTypeStop:
		if !d.StopPrice.Valid {
			return ReasonStopRequired
		}
	case domain.OrderTypeStopLimit:
		if !d.StopPrice.Valid || !d.LimitPrice.Valid {
			return ReasonStopAndLimitRequired
		}
	}
	return ""
}

// limitFill: buys fill at or below the limit, sells at or above it, and
// the fill price is never worse than the limit.
func limitFill(buy bool, last, limit decimal.Decimal) (decimal.Decimal, bool) {
	if buy {
		return decimal.Min(last, limit), last.LessThanOrEqual(limit)
	}
	return decimal.Max(last, limit), last.GreaterThanOrEqual(limit)
}

func stopTriggered(buy bool, last, stop decimal.Decimal) bool {
	if buy {
		return last.GreaterThanOrEqual(stop)
	}
	return last.LessThanOrEqual(stop)
}
