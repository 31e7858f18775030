package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	defaultConfigFile = "values_local.yaml"
)

const (
	VenueLive  = "live"
	VenuePaper = "paper"
)

// Config ...
type Config struct {
	Service struct {
		Name       string `yaml:"name"`
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"` // TradingView шлёт сюда
		AdminPort  int    `yaml:"admin_port"`  // health + /metrics
	} `yaml:"service"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	Webhook struct {
		// Если задан — алерт должен прийти с тем же passphrase (или X-Webhook-Secret).
		Secret string `yaml:"secret"`
	} `yaml:"webhook"`

	Bybit struct {
		BaseURL    string `yaml:"base_url"`
		WSURL      string `yaml:"ws_url"`
		APIKey     string `yaml:"api_key"`
		APISecret  string `yaml:"api_secret"`
		Category   string `yaml:"category"`    // linear
		RecvWindow int    `yaml:"recv_window"` // мс
		WSEnabled  bool   `yaml:"ws_enabled"`
		// Сколько секунд цена из WS считается свежей.
		WSMaxAgeSec float64 `yaml:"ws_max_age_sec"`
	} `yaml:"bybit"`

	Venue struct {
		Mode         string  `yaml:"mode"` // live | paper
		TimeoutSec   float64 `yaml:"timeout_sec"`
		PaperBalance float64 `yaml:"paper_balance"`
	} `yaml:"venue"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Trading struct {
		// Сколько от депозита теряем по СТОПУ: 0.5 => 0.5% equity
		RiskPct float64 `yaml:"risk_pct"`
		// Доля исходного объёма, закрываемая на TP1
		TP1CloseRatio float64 `yaml:"tp1_close_ratio"`
		QuoteSuffix   string  `yaml:"quote_suffix"`
		QtyPrecision  int32   `yaml:"qty_precision"`
	} `yaml:"trading"`

	Signals struct {
		CooldownSec float64 `yaml:"cooldown_sec"`
		// Отпечатки старше RetentionFactor*Cooldown выкидываются.
		RetentionFactor  float64 `yaml:"retention_factor"`
		EvictIntervalSec float64 `yaml:"evict_interval_sec"`
	} `yaml:"signals"`

	Monitor struct {
		PollIntervalSec      float64 `yaml:"poll_interval_sec"`
		JitterSec            float64 `yaml:"jitter_sec"`
		ReconcileIntervalSec float64 `yaml:"reconcile_interval_sec"`
	} `yaml:"monitor"`
}

func defaults() Config {
	var c Config
	c.Service.Name = "tv-bybit-webhook"
	c.Service.Host = "0.0.0.0"
	c.Service.PublicPort = 8000
	c.Service.AdminPort = 8080
	c.Log.Level = "info"
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831

	c.Bybit.BaseURL = "https://api.bybit.com"
	c.Bybit.WSURL = "wss://stream.bybit.com/v5/public/linear"
	c.Bybit.Category = "linear"
	c.Bybit.RecvWindow = 5000
	c.Bybit.WSEnabled = true
	c.Bybit.WSMaxAgeSec = 5

	c.Venue.Mode = VenuePaper
	c.Venue.TimeoutSec = 8
	c.Venue.PaperBalance = 10000

	c.Trading.RiskPct = 0.5
	c.Trading.TP1CloseRatio = 0.5
	c.Trading.QuoteSuffix = "USDT"
	c.Trading.QtyPrecision = 3

	c.Signals.CooldownSec = 60
	c.Signals.RetentionFactor = 10
	c.Signals.EvictIntervalSec = 300

	c.Monitor.PollIntervalSec = 2
	c.Monitor.JitterSec = 0.2
	c.Monitor.ReconcileIntervalSec = 30
	return c
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	config := defaults()

	dir := getenvDefault(configDirENV, "configs")
	configFileName := os.Getenv(configFilePathENV)
	explicit := configFileName != ""
	if !explicit {
		configFileName = defaultConfigFile
	}

	file, err := os.Open(filepath.Join(dir, configFileName))
	switch {
	case err == nil:
		defer func() {
			_ = file.Close()
		}()
		if err := decode(file, &config); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// без файла живём на дефолтах + env
	default:
		return nil, fmt.Errorf("open config file: %w", err)
	}

	applyEnv(&config, viper.New())

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func decode(r io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

// applyEnv: ключи вида trading.risk_pct читаются из TRADING_RISK_PCT.
// Секреты дополнительно из привычных имён.
func applyEnv(c *Config, v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	flt := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("log.level", &c.Log.Level)
	num("service.public_port", &c.Service.PublicPort)
	num("service.admin_port", &c.Service.AdminPort)
	flag("tracing.enabled", &c.Tracing.Enabled)
	str("tracing.host", &c.Tracing.Host)
	num("tracing.port", &c.Tracing.Port)

	str("bybit.base_url", &c.Bybit.BaseURL)
	str("bybit.ws_url", &c.Bybit.WSURL)
	str("bybit.category", &c.Bybit.Category)
	num("bybit.recv_window", &c.Bybit.RecvWindow)
	flt("bybit.ws_max_age_sec", &c.Bybit.WSMaxAgeSec)
	str("bybit_api_key", &c.Bybit.APIKey)
	str("bybit_api_secret", &c.Bybit.APISecret)
	flag("bybit.ws_enabled", &c.Bybit.WSEnabled)

	str("venue.mode", &c.Venue.Mode)
	flt("venue.timeout_sec", &c.Venue.TimeoutSec)
	flt("venue.paper_balance", &c.Venue.PaperBalance)

	str("telegram_token", &c.Telegram.Token)
	if v.IsSet("telegram_chat_id") {
		c.Telegram.ChatID = v.GetInt64("telegram_chat_id")
	}
	str("webhook_secret", &c.Webhook.Secret)

	flt("trading.risk_pct", &c.Trading.RiskPct)
	flt("trading.tp1_close_ratio", &c.Trading.TP1CloseRatio)
	str("trading.quote_suffix", &c.Trading.QuoteSuffix)
	if v.IsSet("trading.qty_precision") {
		c.Trading.QtyPrecision = v.GetInt32("trading.qty_precision")
	}

	flt("signals.cooldown_sec", &c.Signals.CooldownSec)
	flt("signals.retention_factor", &c.Signals.RetentionFactor)
	flt("signals.evict_interval_sec", &c.Signals.EvictIntervalSec)

	flt("monitor.poll_interval_sec", &c.Monitor.PollIntervalSec)
	flt("monitor.jitter_sec", &c.Monitor.JitterSec)
	flt("monitor.reconcile_interval_sec", &c.Monitor.ReconcileIntervalSec)
}

func (c *Config) Validate() error {
	switch {
	case c.Trading.RiskPct <= 0 || c.Trading.RiskPct > 100:
		return fmt.Errorf("trading.risk_pct must be in (0, 100], got %v", c.Trading.RiskPct)
	case c.Trading.TP1CloseRatio <= 0 || c.Trading.TP1CloseRatio > 1:
		return fmt.Errorf("trading.tp1_close_ratio must be in (0, 1], got %v", c.Trading.TP1CloseRatio)
	case c.Trading.QtyPrecision < 0:
		return fmt.Errorf("trading.qty_precision must be >= 0")
	case c.Signals.CooldownSec <= 0:
		return fmt.Errorf("signals.cooldown_sec must be > 0")
	case c.Signals.RetentionFactor < 1:
		return fmt.Errorf("signals.retention_factor must be >= 1")
	case c.Monitor.PollIntervalSec <= 0:
		return fmt.Errorf("monitor.poll_interval_sec must be > 0")
	case c.Monitor.JitterSec < 0:
		return fmt.Errorf("monitor.jitter_sec must be >= 0")
	case c.Venue.TimeoutSec <= 0:
		return fmt.Errorf("venue.timeout_sec must be > 0")
	}
	switch c.Venue.Mode {
	case VenueLive:
		if c.Bybit.APIKey == "" || c.Bybit.APISecret == "" {
			return fmt.Errorf("venue.mode=live requires BYBIT_API_KEY and BYBIT_API_SECRET")
		}
	case VenuePaper:
	default:
		return fmt.Errorf("venue.mode must be %q or %q, got %q", VenueLive, VenuePaper, c.Venue.Mode)
	}
	return nil
}

func (c *Config) Cooldown() time.Duration      { return seconds(c.Signals.CooldownSec) }
func (c *Config) EvictInterval() time.Duration { return seconds(c.Signals.EvictIntervalSec) }
func (c *Config) PollInterval() time.Duration  { return seconds(c.Monitor.PollIntervalSec) }
func (c *Config) Jitter() time.Duration        { return seconds(c.Monitor.JitterSec) }
func (c *Config) VenueTimeout() time.Duration  { return seconds(c.Venue.TimeoutSec) }
func (c *Config) WSMaxAge() time.Duration      { return seconds(c.Bybit.WSMaxAgeSec) }

func (c *Config) ReconcileInterval() time.Duration {
	return seconds(c.Monitor.ReconcileIntervalSec)
}

func (c *Config) Retention() time.Duration {
	return time.Duration(float64(c.Cooldown()) * c.Signals.RetentionFactor)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
