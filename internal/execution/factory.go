package execution

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"chat_trader/internal/infra"
)

// Mode represents the trading execution mode
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeMock  Mode = "MOCK"
	ModeLive  Mode = "LIVE"
)

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModePaper, ModeMock, ModeLive:
		return m, nil
	default:
		return "", fmt.Errorf("unknown execution mode: %q", s)
	}
}

// Factory creates execution venues based on mode. Each venue is built once
// and wrapped in its own circuit breaker, so switching modes back and forth
// keeps paper balances and breaker state.
type Factory struct {
	config *infra.Config
	source PriceSource
	hook   LiveHook
	paper  *PaperExecution

	onBreaker func(name string, to infra.State)

	mu     sync.Mutex
	venues map[Mode]*GuardedExecution
}

// NewFactory creates a new factory. The paper account always exists since
// it also receives price updates and snapshots.
func NewFactory(cfg *infra.Config, source PriceSource) *Factory {
	return &Factory{
		config: cfg,
		source: source,
		paper: NewPaperExecution(PaperConfig{
			StartingCash:        cfg.Trading.StartingCash,
			MaxPositionQty:      cfg.Trading.MaxPositionQty,
			MaxPositionNotional: cfg.Trading.MaxPositionNotional,
		}, source),
		venues: make(map[Mode]*GuardedExecution),
	}
}

// SetLiveHook installs the broker hook used by LIVE venues created later.
func (f *Factory) SetLiveHook(hook LiveHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

// SetBreakerObserver reports breaker transitions of venues created later.
func (f *Factory) SetBreakerObserver(fn func(name string, to infra.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onBreaker = fn
}

// Paper returns the shared paper account.
func (f *Factory) Paper() *PaperExecution {
	return f.paper
}

// Create returns the guarded venue for mode.
func (f *Factory) Create(mode Mode) (*GuardedExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if v, ok := f.venues[mode]; ok {
		return v, nil
	}

	var next Execution
	switch mode {
	case ModePaper:
		slog.Info("📝 Paper execution selected")
		next = f.paper

	case ModeMock:
		slog.Info("🧪 Mock execution selected")
		next = NewMockExecution()

	case ModeLive:
		live, err := NewLiveExecution(f.source, f.hook)
		if err != nil {
			slog.Error("SAFETY_GUARD: live execution refused", slog.Any("error", err))
			return nil, err
		}
		slog.Warn("🚨🚨🚨 Live execution selected 🚨🚨🚨")
		next = live

	default:
		return nil, fmt.Errorf("unknown execution mode: %s", mode)
	}

	bcfg := infra.BreakerConfigFrom(f.config)
	bcfg.Name = "execution." + strings.ToLower(string(mode))
	bcfg.OnStateChange = f.onBreaker
	v := NewGuardedExecution(next, infra.NewCircuitBreaker(bcfg))
	f.venues[mode] = v
	return v, nil
}
