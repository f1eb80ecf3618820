package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"DipSentinel/internal/backtest"
	"DipSentinel/internal/model"
	"DipSentinel/internal/scheduler"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		// DomesticURL points at a REST bar service for KR symbols. Empty
		// means Yahoo serves both markets.
		DomesticURL    string `yaml:"domestic_url"`
		DomesticAPIKey string `yaml:"domestic_api_key"`
		WindowYears    int    `yaml:"window_years"`
		RatePerMinute  int    `yaml:"rate_per_minute"`
	} `yaml:"data_source"`
	Backtest struct {
		Amounts       backtest.Amounts    `yaml:"amounts"`
		ExcludeSigma1 bool                `yaml:"exclude_sigma1"`
		DCA           backtest.DCAOptions `yaml:"dca"`
		Samples       int                 `yaml:"samples"`
		Seed          uint64              `yaml:"seed"`
	} `yaml:"backtest"`
	Monitor struct {
		Interval  time.Duration `yaml:"interval"`
		Backoff   time.Duration `yaml:"backoff"`
		Window    model.Window  `yaml:"window"`
		PIDFile   string        `yaml:"pid_file"`
		StateFile string        `yaml:"state_file"`
	} `yaml:"monitor"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		DCACron     string `yaml:"dca_cron"`
	} `yaml:"schedule"`
	Watchlist struct {
		Backend string `yaml:"backend"` // sqlite | csv
		Path    string `yaml:"path"`
	} `yaml:"watchlist"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DOMESTIC_DATA_URL"); v != "" {
		c.DataSource.DomesticURL = v
	}
	if v := os.Getenv("DOMESTIC_DATA_API_KEY"); v != "" {
		c.DataSource.DomesticAPIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("MONITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Monitor.Interval = d
		}
	}
	if v := os.Getenv("DCA_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Backtest.DCA.Budget = f
		}
	}
	if v := os.Getenv("WATCHLIST_PATH"); v != "" {
		c.Watchlist.Path = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.DataSource.WindowYears == 0 {
		c.DataSource.WindowYears = 5
	}
	if c.DataSource.RatePerMinute == 0 {
		c.DataSource.RatePerMinute = 60
	}
	if c.Backtest.Amounts == (backtest.Amounts{}) {
		c.Backtest.Amounts = backtest.Amounts{Sigma1: 100, Sigma2: 200, Sigma3: 300}
	}
	if c.Backtest.DCA.Budget == 0 {
		c.Backtest.DCA.Budget = 6000
	}
	if c.Backtest.DCA.Periods == 0 {
		c.Backtest.DCA.Periods = 60
	}
	if c.Backtest.DCA.Day == 0 {
		c.Backtest.DCA.Day = backtest.DefaultDCADay
	}
	if c.Backtest.Samples == 0 {
		c.Backtest.Samples = backtest.DefaultSamples
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 5 * time.Minute
	}
	if c.Monitor.Backoff == 0 {
		c.Monitor.Backoff = time.Minute
	}
	if c.Monitor.Window == "" {
		c.Monitor.Window = model.WindowFull
	}
	if c.Monitor.PIDFile == "" {
		c.Monitor.PIDFile = "data/monitor.pid"
	}
	if c.Monitor.StateFile == "" {
		c.Monitor.StateFile = "data/alert_state.json"
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = scheduler.DefaultRefreshCron
	}
	if c.Schedule.DCACron == "" {
		c.Schedule.DCACron = scheduler.DCASpec(c.Backtest.DCA.Day)
	}
	if c.Watchlist.Backend == "" {
		c.Watchlist.Backend = "sqlite"
	}
	if c.Watchlist.Path == "" {
		if c.Watchlist.Backend == "csv" {
			c.Watchlist.Path = "data/watchlist.csv"
		} else {
			c.Watchlist.Path = "data/dipsentinel.db"
		}
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/dipsentinel.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ErrNotifierDisabled is returned by ValidateTelegram when credentials are
// missing. Callers disable notifications instead of failing.
var ErrNotifierDisabled = errors.New("telegram credentials not configured")

// Validate checks the values every command relies on.
func (c *Config) Validate() error {
	if c.DataSource.WindowYears < 1 {
		return fmt.Errorf("data_source.window_years must be at least 1")
	}
	a := c.Backtest.Amounts
	if a.Sigma1 < 0 || a.Sigma2 < 0 || a.Sigma3 < 0 {
		return fmt.Errorf("backtest.amounts must not be negative")
	}
	if c.Backtest.DCA.Budget < 0 || c.Backtest.DCA.Periods < 0 {
		return fmt.Errorf("backtest.dca budget and periods must not be negative")
	}
	if c.Backtest.DCA.Day < 1 || c.Backtest.DCA.Day > 28 {
		return fmt.Errorf("backtest.dca.day must be between 1 and 28")
	}
	if c.Monitor.Interval < time.Second || c.Monitor.Backoff < time.Second {
		return fmt.Errorf("monitor.interval and monitor.backoff must be at least 1s")
	}
	if c.Monitor.Window != model.WindowFull && c.Monitor.Window != model.WindowYear {
		return fmt.Errorf("monitor.window must be %q or %q", model.WindowFull, model.WindowYear)
	}
	if c.Watchlist.Backend != "sqlite" && c.Watchlist.Backend != "csv" {
		return fmt.Errorf("watchlist.backend must be sqlite or csv")
	}
	return nil
}

// ValidateTelegram reports whether notifications can be sent.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
		return ErrNotifierDisabled
	}
	return nil
}
