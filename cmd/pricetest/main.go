package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"chat_trader/internal/infra"
	"chat_trader/pkg/quant"
)

// Fetches live quotes through the same client the dispatcher uses.
// Usage: pricetest [SYMBOL...]  (defaults to the configured watchlist)
func main() {
	fmt.Println("=== Chat Trader Quote Fetcher ===")
	fmt.Println()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		fmt.Printf("⚠️ config not loaded (%v), using defaults\n\n", err)
		cfg = infra.DefaultConfig()
	}

	symbols := os.Args[1:]
	if len(symbols) == 0 {
		symbols = cfg.Quotes.Watchlist
	}
	if len(symbols) == 0 {
		symbols = []string{"AAPL", "MSFT", "SPY"}
	}

	client := infra.NewQuoteClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := 0
	for _, sym := range symbols {
		q, err := client.Quote(ctx, sym)
		if err != nil {
			failed++
			fmt.Printf("❌ %s: %v\n\n", strings.ToUpper(sym), err)
			continue
		}

		fmt.Printf("📊 %s\n", q.Symbol)
		fmt.Printf("   현재가:     %s %s\n", q.Price, q.Currency)
		fmt.Printf("   전일 종가:  %s\n", q.PreviousClose)
		fmt.Printf("   변동:       %s\n", q.Change().StringFixed(2))
		if q.At != 0 {
			fmt.Printf("   시각:       %s\n", q.At.Time().Format(time.RFC3339))
		}
		fmt.Printf("   표시 가격:  $%s\n", quant.FormatMoney(q.Price))
		fmt.Println()
	}

	if failed > 0 {
		fmt.Printf("⚠️ %d/%d quotes failed\n", failed, len(symbols))
		os.Exit(1)
	}
	fmt.Println("✅ 모든 가격이 decimal로 처리됨!")
}
