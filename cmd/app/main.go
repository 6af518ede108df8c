package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat_trader/internal/app"
	"chat_trader/internal/engine"
	"chat_trader/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config
	infra.PrintBanner(os.Stdout, cfg)

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Metrics endpoint
	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", bootstrap.Metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("📈 Metrics server started", slog.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	// 5. Chat gateway. The dispatcher replies through the same socket.
	var chat *infra.ChatWorker
	notify := func(chatID int64, text string) {
		if chat == nil {
			slog.Info("Chat notification", slog.Int64("chat_id", chatID), slog.String("text", text))
			return
		}
		if err := chat.Send(chatID, text); err != nil {
			slog.Warn("Chat notification dropped", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}
	}

	// 6. Dispatcher (The Hotpath Loop)
	dispatcher, err := bootstrap.NewDispatcher(notify)
	if err != nil {
		slog.Error("❌ Dispatcher setup failed", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}
	if err := dispatcher.Recover(ctx); err != nil {
		slog.Error("❌ Recovery failed", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}

	if cfg.Chat.WSURL != "" {
		inbox := dispatcher.Inbox()
		chat = infra.NewChatWorker(cfg, func(ctx context.Context, msg infra.ChatMessage) {
			chatID := msg.ChatID
			m := engine.Message{
				ChatID: chatID,
				Text:   msg.Text,
				Reply:  func(text string) { notify(chatID, text) },
			}
			select {
			case inbox <- m:
			case <-ctx.Done():
			}
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(ctx)
	}()
	slog.InfoContext(ctx, "✅ Dispatcher (Hotpath) started", slog.String("mode", string(dispatcher.Mode())))

	if chat != nil {
		chat.Start(ctx)
		defer chat.Stop()
		slog.InfoContext(ctx, "✅ ChatWorker started", slog.String("url", cfg.Chat.WSURL))
	} else {
		slog.Warn("⚠️ chat.ws_url is empty, no chat gateway (use cmd/repl for a local console)")
	}

	// 7. Quote poller feeds resting orders
	bootstrap.Quotes.Start(ctx, dispatcher.PushPrice)

	slog.InfoContext(ctx, "✨ Chat Trader fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()
	<-done

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}

	slog.Info("👋 Shutting down gracefully...")
}
