package infra

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// GetPlatformUserAgent generates a browser-like User-Agent string based on current OS.
// Public quote endpoints throttle obvious bot agents.
func GetPlatformUserAgent() string {
	chromeVer := "120.0.0.0"

	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "linux":
		linuxArch := "x86_64"
		if runtime.GOARCH == "arm64" {
			linuxArch = "aarch64"
		}
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", linuxArch, chromeVer)
	case "darwin":
		return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	default:
		return "Mozilla/5.0 (compatible; ChatTrader/1.0)"
	}
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading TradingConfig `yaml:"trading"`

	Chat struct {
		WSURL          string  `yaml:"ws_url"`
		Token          string  `yaml:"token"`
		AllowedChatIDs []int64 `yaml:"allowed_chat_ids"` // empty = everyone
		RatePerSec     float64 `yaml:"rate_per_sec"`
		Burst          int     `yaml:"burst"`
	} `yaml:"chat"`

	Quotes struct {
		URL             string   `yaml:"url"`
		PollIntervalSec int      `yaml:"poll_interval_sec"` // 0 disables the poller
		CacheTTLSec     int      `yaml:"cache_ttl_sec"`
		Watchlist       []string `yaml:"watchlist"`
	} `yaml:"quotes"`

	Breaker struct {
		FailureThreshold int `yaml:"failure_threshold"`
		SuccessThreshold int `yaml:"success_threshold"`
		TimeoutSec       int `yaml:"timeout_sec"`
	} `yaml:"breaker"`

	Storage struct {
		DBFile       string `yaml:"db_file"`
		SnapshotDir  string `yaml:"snapshot_dir"`
		SnapshotKeep int    `yaml:"snapshot_keep"` // newest paper snapshots kept on disk
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text | json
	} `yaml:"logging"`

	Metrics struct {
		Addr string `yaml:"addr"` // empty disables the listener
	} `yaml:"metrics"`
}

// TradingConfig holds execution settings. Money values are decimals so
// YAML numbers are read exactly.
type TradingConfig struct {
	Mode                string          `yaml:"mode"`
	BaseSize            decimal.Decimal `yaml:"base_size"`
	StartingCash        decimal.Decimal `yaml:"starting_cash"`
	MaxPositionQty      decimal.Decimal `yaml:"max_position_qty"`
	MaxPositionNotional decimal.Decimal `yaml:"max_position_notional"`
	SubmitTimeoutSec    int             `yaml:"submit_timeout_sec"` // per venue call, the dispatcher waits no longer
}

// DefaultConfig returns the settings used when a key is absent from the file.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = AppName
	cfg.App.Version = "dev"
	cfg.Trading.Mode = "PAPER"
	cfg.Trading.BaseSize = decimal.NewFromInt(1000)
	cfg.Trading.StartingCash = decimal.NewFromInt(100000)
	cfg.Trading.SubmitTimeoutSec = 5
	cfg.Chat.RatePerSec = 1
	cfg.Chat.Burst = 5
	cfg.Quotes.URL = "https://query1.finance.yahoo.com/v8/finance/chart/"
	cfg.Quotes.CacheTTLSec = 5
	cfg.Breaker.FailureThreshold = 5
	cfg.Breaker.SuccessThreshold = 2
	cfg.Breaker.TimeoutSec = 30
	cfg.Storage.DBFile = "events.db"
	cfg.Storage.SnapshotDir = "snapshots"
	cfg.Storage.SnapshotKeep = 5
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// Order: defaults, YAML file, .env file, process environment, Validate.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// 환경 변수가 설정 파일보다 우선합니다.
	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Trading.Mode) {
	case "PAPER", "MOCK", "LIVE":
		c.Trading.Mode = strings.ToUpper(c.Trading.Mode)
	default:
		return fmt.Errorf("unknown trading mode: %q", c.Trading.Mode)
	}
	if !c.Trading.BaseSize.IsPositive() {
		return fmt.Errorf("trading.base_size must be positive")
	}
	if c.Trading.StartingCash.IsNegative() {
		return fmt.Errorf("trading.starting_cash must not be negative")
	}
	if c.Trading.MaxPositionQty.IsNegative() || c.Trading.MaxPositionNotional.IsNegative() {
		return fmt.Errorf("position guardrails must not be negative")
	}

	if c.Chat.WSURL != "" && !strings.HasPrefix(c.Chat.WSURL, "ws://") && !strings.HasPrefix(c.Chat.WSURL, "wss://") {
		return fmt.Errorf("invalid chat WS URL: %s", c.Chat.WSURL)
	}
	if c.Chat.RatePerSec <= 0 || c.Chat.Burst <= 0 {
		return fmt.Errorf("chat rate limit must be positive")
	}

	if c.Quotes.PollIntervalSec < 0 || c.Quotes.CacheTTLSec < 0 {
		return fmt.Errorf("quote intervals must not be negative")
	}
	if c.Breaker.FailureThreshold <= 0 || c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker thresholds must be positive")
	}
	if c.Storage.DBFile == "" {
		return fmt.Errorf("storage.db_file is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.Logging.Format)
	}
	return nil
}

// IsAllowed reports whether chatID may issue commands.
func (c *Config) IsAllowed(chatID int64) bool {
	if len(c.Chat.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range c.Chat.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) error {
	if cfg.Chat.Token != "" {
		slog.Warn("Chat token found in config file; prefer CHAT_TRADER_WS_TOKEN")
	}

	if v := os.Getenv("CHAT_TRADER_WS_URL"); v != "" {
		cfg.Chat.WSURL = v
	}
	if v := os.Getenv("CHAT_TRADER_WS_TOKEN"); v != "" {
		cfg.Chat.Token = v
	}
	if v := os.Getenv("CHAT_TRADER_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("CHAT_TRADER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHAT_TRADER_ALLOWED_CHATS"); v != "" {
		ids, err := parseChatIDs(v)
		if err != nil {
			return fmt.Errorf("CHAT_TRADER_ALLOWED_CHATS: %w", err)
		}
		cfg.Chat.AllowedChatIDs = ids
	}
	return nil
}

func parseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
