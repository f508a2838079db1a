package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ExchangeConfig     ExchangeConfig     `json:"exchange"`
	EngineConfig       EngineConfig       `json:"engine"`
	PipelineConfig     PipelineConfig     `json:"pipeline"`
	RiskConfig         RiskConfig         `json:"risk"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	NotificationConfig NotificationConfig `json:"notification"`
	ServerConfig       ServerConfig       `json:"server"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ExchangeConfig holds market data source configuration
type ExchangeConfig struct {
	BaseURL   string `json:"base_url"`
	WSBaseURL string `json:"ws_base_url"`
	MockMode  bool   `json:"mock_mode"` // Use simulated data when the exchange API is unavailable
}

// EngineConfig holds the scan loop configuration
type EngineConfig struct {
	Symbols          []string `json:"symbols"`
	Interval         string   `json:"interval"`           // e.g., "15m", "1h"
	CandleLimit      int      `json:"candle_limit"`       // Candles fetched per scan
	ScanIntervalSecs int      `json:"scan_interval_secs"` // Seconds between scans
	StreamEnabled    bool     `json:"stream_enabled"`     // Subscribe to kline websocket stream
}

// PipelineConfig holds the decision pipeline thresholds
type PipelineConfig struct {
	ADXThreshold         float64 `json:"adx_threshold"`          // ADX below this = ranging
	RangeThreshold       float64 `json:"range_threshold"`        // Price range fraction (0.02 = 2%)
	LookbackPeriods      int     `json:"lookback_periods"`       // Candles analyzed for range detection
	BreakoutConfirmation int     `json:"breakout_confirmation"`  // Closes required to confirm a breakout
	SupportResistanceTol float64 `json:"support_resistance_tol"` // S/R level tolerance fraction
	ScorerThreshold      float64 `json:"scorer_threshold"`       // Scorer's own accept threshold
	MinConfidence        float64 `json:"min_confidence"`         // Pipeline minimum gate
}

// RiskConfig holds balance-adaptive risk sizing configuration
type RiskConfig struct {
	InitialBalance     float64 `json:"initial_balance"`
	MaxRiskPerTrade    float64 `json:"max_risk_per_trade"`    // Risk percent floor
	MaxPositionPercent float64 `json:"max_position_percent"`  // Position size ceiling (% of balance)
	MaxStopLossPercent float64 `json:"max_stop_loss_percent"` // Stop loss ceiling
	MaxLeverage        float64 `json:"max_leverage"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for candle caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// ServerConfig holds the HTTP status API configuration
type ServerConfig struct {
	Enabled        bool   `json:"enabled"`
	Port           int    `json:"port"`
	Host           string `json:"host"`
	AllowedOrigins string `json:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // Console writer instead of JSON
}

func Load() (*Config, error) {
	// .env is optional; real deployments use the process environment
	_ = godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.ExchangeConfig.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.ExchangeConfig.BaseURL)
	cfg.ExchangeConfig.WSBaseURL = getEnvOrDefault("EXCHANGE_WS_BASE_URL", cfg.ExchangeConfig.WSBaseURL)
	cfg.ExchangeConfig.MockMode = getEnvOrDefault("MOCK_MODE", boolString(cfg.ExchangeConfig.MockMode)) == "true"

	if v := os.Getenv("ENGINE_SYMBOLS"); v != "" {
		cfg.EngineConfig.Symbols = splitCSV(v)
	}
	cfg.EngineConfig.Interval = getEnvOrDefault("ENGINE_INTERVAL", cfg.EngineConfig.Interval)
	cfg.EngineConfig.CandleLimit = getEnvIntOrDefault("ENGINE_CANDLE_LIMIT", cfg.EngineConfig.CandleLimit)
	cfg.EngineConfig.ScanIntervalSecs = getEnvIntOrDefault("ENGINE_SCAN_INTERVAL", cfg.EngineConfig.ScanIntervalSecs)
	cfg.EngineConfig.StreamEnabled = getEnvOrDefault("ENGINE_STREAM_ENABLED", boolString(cfg.EngineConfig.StreamEnabled)) == "true"

	cfg.PipelineConfig.ADXThreshold = getEnvFloatOrDefault("PIPELINE_ADX_THRESHOLD", cfg.PipelineConfig.ADXThreshold)
	cfg.PipelineConfig.RangeThreshold = getEnvFloatOrDefault("PIPELINE_RANGE_THRESHOLD", cfg.PipelineConfig.RangeThreshold)
	cfg.PipelineConfig.LookbackPeriods = getEnvIntOrDefault("PIPELINE_LOOKBACK_PERIODS", cfg.PipelineConfig.LookbackPeriods)
	cfg.PipelineConfig.BreakoutConfirmation = getEnvIntOrDefault("PIPELINE_BREAKOUT_CONFIRMATION", cfg.PipelineConfig.BreakoutConfirmation)
	cfg.PipelineConfig.SupportResistanceTol = getEnvFloatOrDefault("PIPELINE_SR_TOLERANCE", cfg.PipelineConfig.SupportResistanceTol)
	cfg.PipelineConfig.ScorerThreshold = getEnvFloatOrDefault("PIPELINE_SCORER_THRESHOLD", cfg.PipelineConfig.ScorerThreshold)
	cfg.PipelineConfig.MinConfidence = getEnvFloatOrDefault("PIPELINE_MIN_CONFIDENCE", cfg.PipelineConfig.MinConfidence)

	cfg.RiskConfig.InitialBalance = getEnvFloatOrDefault("RISK_INITIAL_BALANCE", cfg.RiskConfig.InitialBalance)
	cfg.RiskConfig.MaxRiskPerTrade = getEnvFloatOrDefault("RISK_MAX_PER_TRADE", cfg.RiskConfig.MaxRiskPerTrade)

	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", boolString(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)

	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", boolString(cfg.NotificationConfig.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", boolString(cfg.NotificationConfig.Telegram.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", boolString(cfg.NotificationConfig.Discord.Enabled)) == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", boolString(cfg.ServerConfig.Enabled)) == "true"
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvOrDefault("LOG_PRETTY", boolString(cfg.LoggingConfig.Pretty)) == "true"
}

// applyDefaults fills anything still unset after file and environment
func applyDefaults(cfg *Config) {
	if cfg.ExchangeConfig.BaseURL == "" {
		cfg.ExchangeConfig.BaseURL = "https://api.binance.com"
	}
	if cfg.ExchangeConfig.WSBaseURL == "" {
		cfg.ExchangeConfig.WSBaseURL = "wss://stream.binance.com:9443"
	}
	if len(cfg.EngineConfig.Symbols) == 0 {
		cfg.EngineConfig.Symbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "ADAUSDT"}
	}
	if cfg.EngineConfig.Interval == "" {
		cfg.EngineConfig.Interval = "1h"
	}
	if cfg.EngineConfig.CandleLimit == 0 {
		cfg.EngineConfig.CandleLimit = 200
	}
	if cfg.EngineConfig.ScanIntervalSecs == 0 {
		cfg.EngineConfig.ScanIntervalSecs = 300
	}
	if cfg.PipelineConfig.ADXThreshold == 0 {
		cfg.PipelineConfig.ADXThreshold = 25.0
	}
	if cfg.PipelineConfig.RangeThreshold == 0 {
		cfg.PipelineConfig.RangeThreshold = 0.02
	}
	if cfg.PipelineConfig.LookbackPeriods == 0 {
		cfg.PipelineConfig.LookbackPeriods = 50
	}
	if cfg.PipelineConfig.BreakoutConfirmation == 0 {
		cfg.PipelineConfig.BreakoutConfirmation = 2
	}
	if cfg.PipelineConfig.SupportResistanceTol == 0 {
		cfg.PipelineConfig.SupportResistanceTol = 0.01
	}
	if cfg.PipelineConfig.ScorerThreshold == 0 {
		cfg.PipelineConfig.ScorerThreshold = 0.75
	}
	if cfg.PipelineConfig.MinConfidence == 0 {
		cfg.PipelineConfig.MinConfidence = 0.70
	}
	if cfg.RiskConfig.InitialBalance == 0 {
		cfg.RiskConfig.InitialBalance = 20.0
	}
	if cfg.RiskConfig.MaxRiskPerTrade == 0 {
		cfg.RiskConfig.MaxRiskPerTrade = 2.0
	}
	if cfg.RiskConfig.MaxPositionPercent == 0 {
		cfg.RiskConfig.MaxPositionPercent = 10.0
	}
	if cfg.RiskConfig.MaxStopLossPercent == 0 {
		cfg.RiskConfig.MaxStopLossPercent = 5.0
	}
	if cfg.RiskConfig.MaxLeverage == 0 {
		cfg.RiskConfig.MaxLeverage = 10.0
	}
	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if c.RiskConfig.InitialBalance <= 0 {
		return fmt.Errorf("invalid initial balance: %.2f", c.RiskConfig.InitialBalance)
	}
	if c.PipelineConfig.MinConfidence < 0 || c.PipelineConfig.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %.2f", c.PipelineConfig.MinConfidence)
	}
	if c.PipelineConfig.ScorerThreshold < 0 || c.PipelineConfig.ScorerThreshold > 1 {
		return fmt.Errorf("scorer threshold must be in [0,1], got %.2f", c.PipelineConfig.ScorerThreshold)
	}
	if c.PipelineConfig.LookbackPeriods < 50 {
		return fmt.Errorf("lookback periods must be at least 50, got %d", c.PipelineConfig.LookbackPeriods)
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
