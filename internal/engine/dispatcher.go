package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"chat_trader/internal/domain"
	"chat_trader/internal/event"
	"chat_trader/internal/execution"
	"chat_trader/internal/infra"
	"chat_trader/internal/storage"
	"chat_trader/pkg/quant"

	"github.com/shopspring/decimal"
)

// Message is one chat line waiting to be handled.
type Message struct {
	ChatID int64
	Text   string
	Reply  func(text string)
}

// QuoteSource answers /quote.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (infra.Quote, error)
}

type priceTick struct {
	symbol string
	price  decimal.Decimal
}

// Options wires the dispatcher. Store, Snapshots and Quotes may be nil.
type Options struct {
	Config    *infra.Config
	Store     *storage.EventStore
	Snapshots *storage.SnapshotManager
	Factory   *execution.Factory
	Quotes    QuoteSource
	Metrics   *infra.Metrics
	Limiter   *infra.KeyedLimiter

	// Notify reaches a chat outside a reply, e.g. when a resting order fills.
	Notify func(chatID int64, text string)

	InboxSize int
	DumpPath  string

	// CallTimeout bounds each venue or quote call made while handling a
	// command. Defaults to trading.submit_timeout_sec.
	CallTimeout time.Duration
}

// Dispatcher is the single-threaded command processor. Every state change
// goes through Handle or the price and rollover paths on the Run goroutine.
type Dispatcher struct {
	inbox   chan Message
	prices  chan priceTick
	nextSeq uint64

	cfg       *infra.Config
	store     *storage.EventStore
	snapshots *storage.SnapshotManager
	factory   *execution.Factory
	quotes    QuoteSource
	metrics   *infra.Metrics
	limiter   *infra.KeyedLimiter
	notify    func(chatID int64, text string)
	dumpPath  string
	timeout   time.Duration

	mode     execution.Mode
	venue    *execution.GuardedExecution
	baseSize decimal.Decimal
	owners   map[string]int64 // order ID -> chat that placed it
	day      string
	dirty    bool // paper account changed since the last snapshot
	now      func() time.Time
}

// NewDispatcher creates a dispatcher in the configured mode. Call Recover
// before Run to pick up the journal and the latest snapshot.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Config == nil || opts.Factory == nil {
		return nil, fmt.Errorf("dispatcher needs a config and an execution factory")
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if opts.Metrics == nil {
		opts.Metrics = infra.NewMetrics()
	}
	if opts.Limiter == nil {
		opts.Limiter = infra.NewKeyedLimiter(opts.Config.Chat.RatePerSec, opts.Config.Chat.Burst)
	}
	if opts.Notify == nil {
		opts.Notify = func(int64, string) {}
	}
	if opts.DumpPath == "" {
		opts.DumpPath = "panic_dump.json"
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = time.Duration(opts.Config.Trading.SubmitTimeoutSec) * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}

	mode, err := execution.ParseMode(opts.Config.Trading.Mode)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		inbox:     make(chan Message, opts.InboxSize),
		prices:    make(chan priceTick, opts.InboxSize),
		nextSeq:   1,
		cfg:       opts.Config,
		store:     opts.Store,
		snapshots: opts.Snapshots,
		factory:   opts.Factory,
		quotes:    opts.Quotes,
		metrics:   opts.Metrics,
		limiter:   opts.Limiter,
		notify:    opts.Notify,
		dumpPath:  opts.DumpPath,
		timeout:   opts.CallTimeout,
		baseSize:  opts.Config.Trading.BaseSize,
		owners:    make(map[string]int64),
		now:       time.Now,
	}
	d.day = d.today()

	if err := d.selectMode(mode); err != nil {
		return nil, err
	}
	return d, nil
}

// Recover restores the sequence counter, persisted preferences, order
// ownership and the paper account from the journal and the latest snapshot.
func (d *Dispatcher) Recover(ctx context.Context) error {
	if d.snapshots != nil {
		snap, err := d.snapshots.LoadLatest()
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		if snap != nil {
			d.factory.Paper().Restore(snap.Portfolio)
			// DAY orders from an earlier session expire on the first rollover check.
			d.day = time.Unix(snap.TsUnix, 0).In(d.now().Location()).Format(time.DateOnly)
		}
	}

	if d.store == nil {
		slog.Info("No store configured, starting fresh")
		return nil
	}

	lastSeq, err := d.store.GetLastSeq(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last seq: %w", err)
	}
	d.nextSeq = lastSeq + 1

	if v, err := d.store.GetMetadata(ctx, storage.KeyTradingBaseSize); err != nil {
		return err
	} else if size, ok := quant.ParsePositiveAmount(v); ok {
		d.baseSize = size
	}

	if v, err := d.store.GetMetadata(ctx, storage.KeyTradingMode); err != nil {
		return err
	} else if v != "" {
		mode, err := execution.ParseMode(v)
		if err == nil {
			err = d.selectMode(mode)
		}
		if err != nil {
			slog.Warn("Persisted trading mode unavailable, keeping configured mode",
				slog.String("persisted", v),
				slog.String("mode", string(d.mode)),
				slog.Any("error", err))
		}
	}

	if lastSeq == 0 {
		slog.Info("Journal is empty, starting fresh")
		return nil
	}

	events, err := d.store.LoadEvents(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	for _, ev := range events {
		if u, ok := ev.(*event.OrderUpdateEvent); ok {
			d.trackOwner(u.OrderID, u.ChatID, u.Status)
		}
	}

	slog.Info("State recovered from journal",
		slog.Uint64("next_seq", d.nextSeq),
		slog.String("mode", string(d.mode)),
		slog.String("base_size", d.baseSize.String()),
		slog.Int("open_owned_orders", len(d.owners)))
	return nil
}

// Inbox returns the message channel. Chat workers send here.
func (d *Dispatcher) Inbox() chan<- Message {
	return d.inbox
}

// PushPrice hands a quote to the Run goroutine. It never blocks; a full
// queue drops the tick since a newer one will follow.
func (d *Dispatcher) PushPrice(symbol string, price decimal.Decimal) {
	select {
	case d.prices <- priceTick{symbol: symbol, price: price}:
	default:
		slog.Debug("Price tick dropped", slog.String("symbol", symbol))
	}
}

// Run starts the main loop. This MUST be run in a single goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher started (Single-Thread Hotpath)", slog.String("mode", string(d.mode)))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			d.DumpState(d.dumpPath)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.maybeSnapshot()
			slog.Info("Dispatcher stopping...")
			return
		case msg := <-d.inbox:
			d.Handle(ctx, msg)
		case tick := <-d.prices:
			d.applyPrice(tick.symbol, tick.price, "poller")
			d.maybeSnapshot()
		case <-ticker.C:
			d.rollover()
			d.maybeSnapshot()
			d.limiter.Prune(30 * time.Minute)
		}
	}
}

// Handle processes one chat message synchronously. Text that is not a
// slash command is ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	reply := msg.Reply
	if reply == nil {
		reply = func(string) {}
	}

	if !d.cfg.IsAllowed(msg.ChatID) {
		d.metrics.CommandHandled("denied")
		slog.Warn("Command from chat outside allow list", slog.Int64("chat_id", msg.ChatID))
		reply("This chat is not allowed to trade.")
		return
	}
	if !d.limiter.Allow(msg.ChatID) {
		d.metrics.CommandHandled("rate_limited")
		reply("Too many commands, slow down a little.")
		return
	}

	d.rollover()

	verb := strings.ToLower(strings.TrimLeft(strings.Fields(text)[0], "/"))
	var out string
	switch verb {
	case "buy", "sell":
		out = d.handleTrade(ctx, msg.ChatID, text)
	default:
		d.append(&event.CommandEvent{BaseEvent: d.base(), ChatID: msg.ChatID, Text: text})
		out = d.handleControl(ctx, msg.ChatID, verb, strings.Fields(text)[1:])
	}

	reply(out)
	d.maybeSnapshot()
}

// Mode returns the active execution mode.
func (d *Dispatcher) Mode() execution.Mode { return d.mode }

// NextSeq returns the sequence number the next journaled event will get.
func (d *Dispatcher) NextSeq() uint64 { return d.nextSeq }

func (d *Dispatcher) selectMode(mode execution.Mode) error {
	venue, err := d.factory.Create(mode)
	if err != nil {
		return err
	}
	d.mode = mode
	d.venue = venue
	return nil
}

func (d *Dispatcher) base() event.BaseEvent {
	return event.BaseEvent{Seq: d.nextSeq, Ts: quant.FromTime(d.now())}
}

// append journals ev before its effects are applied. A journal that cannot
// be written halts the dispatcher.
func (d *Dispatcher) append(ev event.Event) {
	if ev.GetSeq() != d.nextSeq {
		panic(fmt.Sprintf("SEQUENCE_MISMATCH: expected %d, got %d", d.nextSeq, ev.GetSeq()))
	}
	if d.store != nil {
		if err := d.store.SaveEvent(context.Background(), ev); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}
	d.nextSeq++
}

// recordOrder journals an order state and keeps ownership in sync.
func (d *Dispatcher) recordOrder(chatID int64, o domain.Order) {
	qty := o.Qty
	if o.Status == domain.OrderStatusFilled {
		qty = o.FilledQty
	}
	d.append(&event.OrderUpdateEvent{
		BaseEvent: d.base(),
		ChatID:    chatID,
		OrderID:   o.ID,
		Symbol:    o.Descriptor.Symbol,
		Side:      o.Descriptor.Side,
		Status:    o.Status,
		Reason:    o.Reason,
		Qty:       qty,
		Price:     o.AvgFillPrice,
	})
	d.metrics.OrderStatus(string(o.Status))
	d.trackOwner(o.ID, chatID, o.Status)
}

func (d *Dispatcher) trackOwner(orderID string, chatID int64, status domain.OrderStatus) {
	if status == domain.OrderStatusOpen || status == domain.OrderStatusSubmitted {
		d.owners[orderID] = chatID
		return
	}
	delete(d.owners, orderID)
}

// applyPrice feeds a price to the paper account and reports orders it moved.
func (d *Dispatcher) applyPrice(symbol string, price decimal.Decimal, source string) {
	changed := d.factory.Paper().UpdatePrice(symbol, price)
	if len(changed) == 0 {
		return
	}

	d.append(&event.PriceUpdateEvent{BaseEvent: d.base(), Symbol: symbol, Price: price, Source: source})
	for _, o := range changed {
		d.settle(o)
	}
}

// rollover expires resting DAY orders once the calendar day changes.
func (d *Dispatcher) rollover() {
	today := d.today()
	if today == d.day {
		return
	}
	slog.Info("Day rollover", slog.String("from", d.day), slog.String("to", today))
	d.day = today

	for _, o := range d.factory.Paper().ExpireDayOrders() {
		d.settle(o)
	}
}

// settle records a resting paper order that changed outside a reply and
// tells its owner.
func (d *Dispatcher) settle(o domain.Order) {
	chatID, known := d.owners[o.ID]
	d.recordOrder(chatID, o)
	d.dirty = true
	if known {
		d.notify(chatID, "Order update: "+formatOrder(o))
	}
}

func (d *Dispatcher) maybeSnapshot() {
	if !d.dirty || d.snapshots == nil {
		return
	}
	snap := storage.CreateSnapshot(d.nextSeq-1, d.factory.Paper().Portfolio())
	if err := d.snapshots.Save(snap); err != nil {
		slog.Error("Failed to save snapshot", slog.Any("error", err))
		return
	}
	if err := d.snapshots.Cleanup(d.cfg.Storage.SnapshotKeep); err != nil {
		slog.Warn("Snapshot cleanup failed", slog.Any("error", err))
	}
	d.dirty = false
}

func (d *Dispatcher) today() string {
	return d.now().Format(time.DateOnly)
}

// DumpState writes the dispatcher state to a file (for post-mortem).
func (d *Dispatcher) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		NextSeq   uint64           `json:"next_seq"`
		Mode      execution.Mode   `json:"mode"`
		BaseSize  decimal.Decimal  `json:"base_size"`
		Owners    map[string]int64 `json:"owners"`
		Portfolio domain.Portfolio `json:"portfolio"`
	}{
		NextSeq:   d.nextSeq,
		Mode:      d.mode,
		BaseSize:  d.baseSize,
		Owners:    d.owners,
		Portfolio: d.factory.Paper().Portfolio(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0o644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
