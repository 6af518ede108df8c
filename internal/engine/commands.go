package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"chat_trader/internal/command"
	"chat_trader/internal/domain"
	"chat_trader/internal/event"
	"chat_trader/internal/execution"
	"chat_trader/internal/infra"
	"chat_trader/internal/storage"
	"chat_trader/pkg/quant"

	"github.com/shopspring/decimal"
)

const tradeUsage = "Usage: /buy SYMBOL [qty N | N | $AMOUNT] [mkt | limit P | stop P | stoplimit S L] [tif day|gtc]"

const helpText = `Commands:
/buy SYMBOL [qty N | N | $AMOUNT] [mkt | limit P | stop P | stoplimit S L] [tif day|gtc]
/sell SYMBOL ... (same clauses as /buy)
/orders - resting orders
/cancel ORDER_ID
/quote SYMBOL
/status - mode, balances and positions
/mode paper|mock|live [confirm]
/size AMOUNT - default order size in dollars
/metrics
/help`

// handleTrade interprets a /buy or /sell line and submits it.
func (d *Dispatcher) handleTrade(ctx context.Context, chatID int64, text string) string {
	ev := &event.CommandEvent{BaseEvent: d.base(), ChatID: chatID, Text: text}

	res, err := command.Scan(text)
	if err != nil {
		kind := command.KindOf(err)
		ev.Failure = kind.String()
		d.append(ev)
		d.metrics.ParseFailed(kind.String())
		d.metrics.CommandHandled("parse_error")
		return fmt.Sprintf("Could not read that order: %v\n%s", err, tradeUsage)
	}

	order := res.Order
	ev.Order = &order
	d.append(ev)

	head := fmt.Sprintf("%s %s", order.Side, order.Symbol)
	issues := domain.Review(order)
	if domain.Blocking(issues) {
		d.metrics.CommandHandled("blocked")
		var b strings.Builder
		b.WriteString(head + " not sent:")
		for _, is := range issues {
			if is.Severity == domain.SeverityError {
				b.WriteString("\n- " + is.Message)
			}
		}
		return b.String()
	}

	if !order.Quantity.Valid && !order.Notional.Valid {
		order.Notional = decimal.NewNullDecimal(d.baseSize)
	}

	// Run blocks on this call, so a slow venue must not hold the inbox.
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	o, err := d.venue.SubmitOrder(callCtx, order)
	cancel()
	if err != nil {
		d.metrics.CommandHandled("venue_error")
		slog.Error("Order submission failed",
			slog.String("mode", string(d.mode)),
			slog.String("command", order.CommandString()),
			slog.Any("error", err))
		if errors.Is(err, infra.ErrCircuitOpen) {
			return head + " -> not sent, execution paused after repeated failures"
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return head + " -> not sent, execution venue timed out"
		}
		return head + " -> not sent, execution venue error"
	}

	d.recordOrder(chatID, o)
	d.metrics.CommandHandled(strings.ToLower(string(o.Status)))
	if d.mode == execution.ModePaper {
		d.dirty = true
	}

	lines := []string{formatOrder(o)}
	if ignored := res.Ignored(); len(ignored) > 0 {
		lines = append(lines, "ignored: "+strings.Join(ignored, " "))
	}
	for _, is := range issues {
		switch is.Code {
		case domain.IssueSizeDefaulted:
			lines = append(lines, "note: no size given, used default $"+quant.FormatMoney(d.baseSize))
		default:
			lines = append(lines, "note: "+is.Message)
		}
	}
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) handleControl(ctx context.Context, chatID int64, verb string, args []string) string {
	outcome := verb
	var out string
	switch verb {
	case "help", "start":
		outcome, out = "help", helpText
	case "status":
		out = d.statusText()
	case "mode":
		out = d.handleMode(ctx, chatID, args)
	case "size":
		out = d.handleSize(ctx, chatID, args)
	case "orders":
		out = d.ordersText()
	case "cancel":
		out = d.handleCancel(ctx, chatID, args)
	case "quote":
		out = d.handleQuote(ctx, args)
	case "metrics":
		out = d.metrics.Summary()
	default:
		outcome = "unknown"
		out = fmt.Sprintf("Unknown command /%s, try /help", verb)
	}
	d.metrics.CommandHandled(outcome)
	return out
}

func (d *Dispatcher) handleMode(ctx context.Context, chatID int64, args []string) string {
	if len(args) == 0 {
		return "mode: " + string(d.mode)
	}
	mode, err := execution.ParseMode(args[0])
	if err != nil {
		return "Usage: /mode paper|mock|live [confirm]"
	}
	if mode == d.mode {
		return "already in " + string(mode) + " mode"
	}
	if mode == execution.ModeLive && (len(args) < 2 || !strings.EqualFold(args[1], "confirm")) {
		return "Live mode sends real orders. Repeat with: /mode live confirm"
	}

	prev := d.mode
	if err := d.selectMode(mode); err != nil {
		return fmt.Sprintf("cannot switch to %s: %v", mode, err)
	}
	d.venue.Breaker().Reset()
	d.persist(ctx, chatID, storage.KeyTradingMode, string(mode))
	slog.Info("Trading mode changed", slog.String("from", string(prev)), slog.String("to", string(mode)))
	return fmt.Sprintf("mode: %s -> %s", prev, mode)
}

func (d *Dispatcher) handleSize(ctx context.Context, chatID int64, args []string) string {
	if len(args) == 0 {
		return "base size: $" + quant.FormatMoney(d.baseSize)
	}
	size, ok := quant.ParsePositiveAmount(strings.TrimPrefix(args[0], "$"))
	if !ok {
		return "Usage: /size AMOUNT (e.g. /size 1000)"
	}
	d.baseSize = size
	d.persist(ctx, chatID, storage.KeyTradingBaseSize, size.String())
	return "base size set to $" + quant.FormatMoney(size)
}

// persist stores a preference and journals the change.
func (d *Dispatcher) persist(ctx context.Context, chatID int64, key, value string) {
	d.append(&event.ControlEvent{BaseEvent: d.base(), ChatID: chatID, Key: key, Value: value})
	if d.store == nil {
		return
	}
	if err := d.store.UpsertMetadata(ctx, key, value, d.now().Unix()); err != nil {
		slog.Error("Failed to persist preference", slog.String("key", key), slog.Any("error", err))
	}
}

func (d *Dispatcher) handleCancel(ctx context.Context, chatID int64, args []string) string {
	if len(args) == 0 {
		return "Usage: /cancel ORDER_ID"
	}
	id := args[0]

	var target *domain.Order
	for _, o := range d.venue.OpenOrders() {
		if o.ID == id {
			target = &o
			break
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.venue.CancelOrder(callCtx, id); err != nil {
		if errors.Is(err, execution.ErrOrderNotFound) {
			return "no open order " + id
		}
		slog.Error("Cancel failed", slog.String("id", id), slog.Any("error", err))
		return "cancel failed: execution venue error"
	}

	if target != nil {
		target.Status = domain.OrderStatusCanceled
		owner, ok := d.owners[id]
		if !ok {
			owner = chatID
		}
		d.recordOrder(owner, *target)
	}
	if d.mode == execution.ModePaper {
		d.dirty = true
	}
	return "canceled " + id
}

func (d *Dispatcher) handleQuote(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /quote SYMBOL"
	}
	if d.quotes == nil {
		return "quotes are not configured"
	}
	symbol := strings.ToUpper(args[0])

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	q, err := d.quotes.Quote(callCtx, symbol)
	if err != nil {
		if errors.Is(err, infra.ErrQuoteNotFound) {
			return "no quote for " + symbol
		}
		slog.Warn("Quote lookup failed", slog.String("symbol", symbol), slog.Any("error", err))
		return "quote service unavailable"
	}

	d.applyPrice(q.Symbol, q.Price, "quote")

	out := fmt.Sprintf("%s %s", q.Symbol, q.Price)
	if q.Currency != "" {
		out += " " + q.Currency
	}
	if !q.PreviousClose.IsZero() {
		change := q.Change()
		sign := ""
		if change.IsPositive() {
			sign = "+"
		}
		pct := change.Div(q.PreviousClose).Mul(decimal.NewFromInt(100))
		out += fmt.Sprintf(" (%s%s, %s%s%%)", sign, change.StringFixed(2), sign, pct.StringFixed(2))
	}
	if q.At != 0 {
		out += " at " + q.At.Time().Format(time.Kitchen)
	}
	return out
}

func (d *Dispatcher) statusText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s | base size: $%s | breaker: %s",
		d.mode, quant.FormatMoney(d.baseSize), d.venue.Breaker().GetState())

	paper := d.factory.Paper()
	state := paper.Portfolio()
	fmt.Fprintf(&b, "\npaper cash: $%s | equity: $%s",
		quant.FormatMoney(state.Cash), quant.FormatMoney(paper.Equity()))

	for _, sym := range paper.Symbols() {
		pos := state.Positions[sym]
		fmt.Fprintf(&b, "\n%s %s @ %s", sym, pos.Qty, pos.AvgPrice.Round(4))
	}
	fmt.Fprintf(&b, "\nopen orders: %d", len(d.venue.OpenOrders()))
	return b.String()
}

func (d *Dispatcher) ordersText() string {
	orders := d.venue.OpenOrders()
	if len(orders) == 0 {
		return "no open orders"
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })

	lines := make([]string, len(orders))
	for i, o := range orders {
		lines[i] = fmt.Sprintf("%s %s %s %s%s %s",
			o.ID, o.Descriptor.Side, o.Descriptor.Symbol, sizeText(o), priceTerms(o.Descriptor), o.Descriptor.TimeInForce)
	}
	return strings.Join(lines, "\n")
}

// formatOrder renders the one-line reply for an order,
// e.g. "BUY AAPL -> FILLED 10 @ 187.5".
func formatOrder(o domain.Order) string {
	d := o.Descriptor
	head := fmt.Sprintf("%s %s -> %s", d.Side, d.Symbol, o.Status)

	switch o.Status {
	case domain.OrderStatusFilled:
		return fmt.Sprintf("%s %s @ %s", head, o.FilledQty, o.AvgFillPrice)
	case domain.OrderStatusRejected:
		return fmt.Sprintf("%s (%s)", head, o.Reason)
	case domain.OrderStatusOpen, domain.OrderStatusSubmitted:
		return fmt.Sprintf("%s %s%s %s [%s]", head, sizeText(o), priceTerms(d), d.TimeInForce, o.ID)
	default:
		return fmt.Sprintf("%s [%s]", head, o.ID)
	}
}

func sizeText(o domain.Order) string {
	if o.Qty.IsPositive() {
		return o.Qty.String()
	}
	if o.Descriptor.Notional.Valid {
		return "$" + quant.FormatMoney(o.Descriptor.Notional.Decimal)
	}
	return "?"
}

func priceTerms(d domain.OrderDescriptor) string {
	switch d.Type {
	case domain.OrderTypeLimit:
		return " LIMIT " + d.LimitPrice.Decimal.String()
	case domain.OrderTypeStop:
		return " STOP " + d.StopPrice.Decimal.String()
	case domain.OrderTypeStopLimit:
		return " STOP " + d.StopPrice.Decimal.String() + " LIMIT " + d.LimitPrice.Decimal.String()
	default:
		return " MARKET"
	}
}
