package backtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"chat_trader/internal/command"
	"chat_trader/internal/domain"
	"chat_trader/internal/event"
	"chat_trader/internal/storage"
)

// Mismatch is a journaled command whose interpretation differs today.
type Mismatch struct {
	Seq      uint64
	Text     string
	Recorded string
	Replayed string
}

// Report summarizes a replay run.
type Report struct {
	Checked    int
	Skipped    int // control commands, nothing to re-interpret
	Mismatches []Mismatch
}

// OK reports whether every trade command replayed identically.
func (r Report) OK() bool { return len(r.Mismatches) == 0 }

// WriteTo prints the report in a human readable form.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "checked %d trade commands, skipped %d, mismatches %d\n",
		r.Checked, r.Skipped, len(r.Mismatches))
	for _, m := range r.Mismatches {
		fmt.Fprintf(&b, "#%d %q\n  recorded: %s\n  replayed: %s\n", m.Seq, m.Text, m.Recorded, m.Replayed)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Replayer reads the command journal and feeds every recorded trade
// command back through the interpreter.
type Replayer struct {
	store *storage.EventStore
	owned bool
}

// NewReplayer opens the journal at dbPath.
func NewReplayer(dbPath string) (*Replayer, error) {
	store, err := storage.NewEventStore(dbPath)
	if err != nil {
		return nil, err
	}
	return &Replayer{store: store, owned: true}, nil
}

// NewReplayerFromStore replays an already open journal.
func NewReplayerFromStore(store *storage.EventStore) *Replayer {
	return &Replayer{store: store}
}

// RunReplay re-interprets every command from fromSeq (inclusive). The
// interpreter is deterministic, so any difference means its behavior
// changed since the command was recorded.
func (r *Replayer) RunReplay(ctx context.Context, fromSeq uint64) (Report, error) {
	cmds, err := r.store.LoadCommands(ctx, fromSeq)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load commands: %w", err)
	}

	var rep Report
	for _, ev := range cmds {
		if ev.Order == nil && ev.Failure == "" {
			rep.Skipped++
			continue
		}
		rep.Checked++

		recorded := describe(ev.Order, ev.Failure)
		d, err := command.Parse(ev.Text)

		var replayed string
		if err != nil {
			replayed = describe(nil, command.KindOf(err).String())
		} else {
			replayed = describe(&d, "")
		}

		if !same(ev, d, err) {
			rep.Mismatches = append(rep.Mismatches, Mismatch{
				Seq:      ev.Seq,
				Text:     ev.Text,
				Recorded: recorded,
				Replayed: replayed,
			})
		}
	}

	slog.Info("Replay finished",
		slog.Int("checked", rep.Checked),
		slog.Int("skipped", rep.Skipped),
		slog.Int("mismatches", len(rep.Mismatches)))
	return rep, nil
}

// Close closes the journal if the replayer opened it.
func (r *Replayer) Close() error {
	if !r.owned {
		return nil
	}
	return r.store.Close()
}

func same(ev *event.CommandEvent, d domain.OrderDescriptor, err error) bool {
	if ev.Failure != "" {
		return err != nil && command.KindOf(err).String() == ev.Failure
	}
	return err == nil && ev.Order.Equal(d)
}

func describe(d *domain.OrderDescriptor, failure string) string {
	if failure != "" {
		return "error: " + failure
	}
	return d.CommandString()
}
