package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"tradecore/internal/model"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Exchanges []ExchangeConfig `json:"exchanges"`
	Pairs     []string         `json:"pairs"`
	Risk      RiskConfig       `json:"risk"`
	Cache     CacheConfig      `json:"cache"`
	Database  DatabaseConfig   `json:"database"`
	Ingest    IngestConfig     `json:"ingest"`
	Executor  ExecutorConfig   `json:"executor"`
	Profiling ProfilingConfig  `json:"profiling"`
}

// ExchangeConfig describes one exchange entry. Credentials may be left empty
// in the file and supplied through <NAME>_API_KEY / <NAME>_API_SECRET
// environment variables instead.
type ExchangeConfig struct {
	Name      string `json:"name"`
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
	WSURL     string `json:"wsUrl"`
	RestURL   string `json:"restUrl"`
}

// RiskConfig mirrors the risk-limit block.
type RiskConfig struct {
	MaxPositionSize    float64 `json:"maxPositionSize"`
	MaxDailyTrades     int     `json:"maxDailyTrades"`
	StopLossPercentage float64 `json:"stopLossPercentage"`
	MaxDrawdown        float64 `json:"maxDrawdown"`
	RiskPerTrade       float64 `json:"riskPerTrade"`
}

// CacheConfig describes the redis collaborator.
type CacheConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// DatabaseConfig describes the postgres collaborator.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// IngestConfig holds market-data ingestion knobs.
type IngestConfig struct {
	ReconnectSeconds    int  `json:"reconnectSeconds"`
	MockIntervalSeconds int  `json:"mockIntervalSeconds"`
	ForceMock           bool `json:"forceMock"`
}

// ExecutorConfig holds order-lifecycle knobs.
type ExecutorConfig struct {
	PollSeconds         int  `json:"pollSeconds"`
	ErrorBackoffSeconds int  `json:"errorBackoffSeconds"`
	HTTPTimeoutSeconds  int  `json:"httpTimeoutSeconds"`
	PaperTrading        bool `json:"paperTrading"`
}

// ProfilingConfig enables the optional pyroscope profiler.
type ProfilingConfig struct {
	Enabled       bool   `json:"enabled"`
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved, immutable configuration passed to each component
// at construction.
type Loaded struct {
	Exchanges []ExchangeConfig
	Pairs     []string
	Risk      model.RiskLimits
	Cache     CacheConfig
	CacheTTL  time.Duration
	Database  DatabaseConfig
	Profiling ProfilingConfig

	ReconnectInterval time.Duration
	MockInterval      time.Duration
	ForceMock         bool

	PollInterval time.Duration
	ErrorBackoff time.Duration
	HTTPTimeout  time.Duration
	PaperTrading bool
}

// Load reads a JSON config file and resolves it with defaults, environment
// overrides for credentials, and validation.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve turns a FileConfig into a Loaded value.
func Resolve(cfg FileConfig) (Loaded, error) {
	exchanges := make([]ExchangeConfig, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		if ex.Name == "" {
			return Loaded{}, fmt.Errorf("exchange name is empty")
		}
		exchanges = append(exchanges, applyEnvCredentials(ex))
	}

	pairs := cfg.Pairs
	if len(pairs) == 0 {
		pairs = []string{"BTC-USD", "ETH-USD"}
	}

	risk, err := resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}

	ttl := cfg.Cache.TTLSeconds
	if ttl <= 0 {
		ttl = 15
	}

	return Loaded{
		Exchanges: exchanges,
		Pairs:     pairs,
		Risk:      risk,
		Cache:     cfg.Cache,
		CacheTTL:  time.Duration(ttl) * time.Second,
		Database:  cfg.Database,
		Profiling: cfg.Profiling,

		ReconnectInterval: secondsOr(cfg.Ingest.ReconnectSeconds, 5),
		MockInterval:      secondsOr(cfg.Ingest.MockIntervalSeconds, 1),
		ForceMock:         cfg.Ingest.ForceMock,

		PollInterval: secondsOr(cfg.Executor.PollSeconds, 1),
		ErrorBackoff: secondsOr(cfg.Executor.ErrorBackoffSeconds, 5),
		HTTPTimeout:  secondsOr(cfg.Executor.HTTPTimeoutSeconds, 10),
		PaperTrading: cfg.Executor.PaperTrading,
	}, nil
}

func resolveRisk(cfg RiskConfig) (model.RiskLimits, error) {
	limits := model.RiskLimits{
		MaxPositionSize:    cfg.MaxPositionSize,
		MaxDailyTrades:     cfg.MaxDailyTrades,
		StopLossPercentage: cfg.StopLossPercentage,
		MaxDrawdown:        cfg.MaxDrawdown,
		RiskPerTrade:       cfg.RiskPerTrade,
	}
	if limits.MaxPositionSize == 0 {
		limits.MaxPositionSize = 1000
	}
	if limits.MaxDailyTrades == 0 {
		limits.MaxDailyTrades = 10
	}
	if limits.StopLossPercentage == 0 {
		limits.StopLossPercentage = 0.02
	}
	if limits.MaxDrawdown == 0 {
		limits.MaxDrawdown = 500
	}
	if limits.RiskPerTrade == 0 {
		limits.RiskPerTrade = 0.01
	}

	if limits.MaxPositionSize < 0 {
		return model.RiskLimits{}, fmt.Errorf("maxPositionSize must be >= 0")
	}
	if limits.MaxDailyTrades < 0 {
		return model.RiskLimits{}, fmt.Errorf("maxDailyTrades must be >= 0")
	}
	if limits.StopLossPercentage <= 0 || limits.StopLossPercentage >= 1 {
		return model.RiskLimits{}, fmt.Errorf("stopLossPercentage must be in (0, 1)")
	}
	if limits.MaxDrawdown < 0 {
		return model.RiskLimits{}, fmt.Errorf("maxDrawdown must be >= 0")
	}
	if limits.RiskPerTrade <= 0 || limits.RiskPerTrade >= 1 {
		return model.RiskLimits{}, fmt.Errorf("riskPerTrade must be in (0, 1)")
	}
	return limits, nil
}

func applyEnvCredentials(ex ExchangeConfig) ExchangeConfig {
	prefix := strings.ToUpper(ex.Name)
	if key := os.Getenv(prefix + "_API_KEY"); key != "" {
		ex.APIKey = key
	}
	if secret := os.Getenv(prefix + "_API_SECRET"); secret != "" {
		ex.APISecret = secret
	}
	return ex
}

func secondsOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
