package infra

import (
	"fmt"
	"io"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with mode-specific warnings.
func PrintBanner(w io.Writer, cfg *Config) {
	mode := strings.ToUpper(cfg.Trading.Mode)

	color := ColorGreen
	modeDesc := "UNKNOWN"
	switch mode {
	case "LIVE":
		color = ColorRed
		modeDesc = "LIVE ORDER ROUTING"
	case "MOCK":
		color = ColorYellow
		modeDesc = "LOG ONLY (NO FILLS)"
	case "PAPER":
		color = ColorCyan
		modeDesc = "PAPER PORTFOLIO"
	}

	line := func(format string, args ...any) {
		fmt.Fprintf(w, "%s"+format+"%s\n", append(append([]any{color}, args...), ColorReset)...)
	}

	fmt.Fprintln(w)
	line("###########################################################")
	line("#                                                         #")
	line("#                  Chat Trader Console                    #")
	line("#                                                         #")
	line("#   MODE:    %-44s #", mode)
	line("#   TYPE:    %-44s #", modeDesc)
	line("#   SIZE:    %-44s #", "$"+cfg.Trading.BaseSize.StringFixed(2))
	line("#   VERSION: %-44s #", cfg.App.Version)
	line("#                                                         #")
	if mode == "LIVE" {
		fmt.Fprintf(w, "%s#   WARNING: ORDERS ARE FORWARDED TO THE LIVE VENUE       #%s\n", ColorRed, ColorReset)
	}
	line("###########################################################")
	fmt.Fprintln(w)
}
