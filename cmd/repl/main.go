// Command repl is a local console for the dispatcher. Each line is handled
// exactly like a chat message from the configured chat ID.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"chat_trader/internal/app"
	"chat_trader/internal/engine"
	"chat_trader/internal/infra"

	"github.com/chzyer/readline"
)

func main() {
	chatID := flag.Int64("chat", 0, "chat ID to act as (default: first allowed ID)")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config
	if *chatID == 0 && len(cfg.Chat.AllowedChatIDs) > 0 {
		*chatID = cfg.Chat.AllowedChatIDs[0]
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "trade> ",
		HistoryFile:     filepath.Join(bootstrap.WorkDir, "repl_history"),
		AutoComplete:    completer(cfg.Quotes.Watchlist),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		slog.Error("Failed to create readline", slog.Any("error", err))
		return
	}
	defer rl.Close()

	out := rl.Stdout()
	infra.PrintBanner(out, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher, err := bootstrap.NewDispatcher(func(id int64, text string) {
		fmt.Fprintf(out, "[chat %d] %s\n", id, text)
	})
	if err != nil {
		slog.Error("❌ Dispatcher setup failed", slog.Any("error", err))
		return
	}
	if err := dispatcher.Recover(ctx); err != nil {
		slog.Error("❌ Recovery failed", slog.Any("error", err))
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(ctx)
	}()
	bootstrap.Quotes.Start(ctx, dispatcher.PushPrice)

	fmt.Fprintln(out, "Type /help for commands, exit to quit.")
	loop(ctx, rl, out, dispatcher.Inbox(), *chatID)

	stop()
	<-done
}

func loop(ctx context.Context, rl *readline.Instance, out io.Writer, inbox chan<- engine.Message, chatID int64) {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case isExit(line):
			return
		case !strings.HasPrefix(line, "/"):
			line = "/" + line
		}

		reply, ok := submit(ctx, inbox, chatID, line)
		if !ok {
			return
		}
		fmt.Fprintln(out, reply)
	}
}

// submit hands line to the dispatcher and waits for its reply.
func submit(ctx context.Context, inbox chan<- engine.Message, chatID int64, line string) (string, bool) {
	replies := make(chan string, 1)
	msg := engine.Message{
		ChatID: chatID,
		Text:   line,
		Reply:  func(text string) { replies <- text },
	}

	select {
	case inbox <- msg:
	case <-ctx.Done():
		return "", false
	}

	select {
	case r := <-replies:
		return r, true
	case <-ctx.Done():
		return "", false
	}
}

func isExit(line string) bool {
	switch strings.ToLower(strings.TrimPrefix(line, "/")) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

func completer(watchlist []string) *readline.PrefixCompleter {
	symbols := make([]readline.PrefixCompleterInterface, 0, len(watchlist))
	for _, s := range watchlist {
		symbols = append(symbols, readline.PcItem(strings.ToUpper(s)))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("/buy", symbols...),
		readline.PcItem("/sell", symbols...),
		readline.PcItem("/quote", symbols...),
		readline.PcItem("/orders"),
		readline.PcItem("/cancel"),
		readline.PcItem("/status"),
		readline.PcItem("/mode",
			readline.PcItem("paper"),
			readline.PcItem("mock"),
			readline.PcItem("live", readline.PcItem("confirm")),
		),
		readline.PcItem("/size"),
		readline.PcItem("/metrics"),
		readline.PcItem("/help"),
		readline.PcItem("exit"),
	)
}
