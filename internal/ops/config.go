package ops

import (
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"

	"hftsim/internal/backtest"
	"hftsim/internal/backtest/models"
)

// Config is the YAML configuration layout.
type Config struct {
	Symbol string       `mapstructure:"symbol"`
	Market MarketConfig `mapstructure:"market"`

	PriceAction PriceActionConfig `mapstructure:"priceAction"`
	Fees        FeesConfig        `mapstructure:"fees"`
	Latency     LatencyConfig     `mapstructure:"latency"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Recorder    RecorderConfig    `mapstructure:"recorder"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
}

// MarketConfig describes the traded instrument.
type MarketConfig struct {
	TickSize     float64 `mapstructure:"tickSize"`
	LotSize      float64 `mapstructure:"lotSize"`
	ContractSize float64 `mapstructure:"contractSize"`
}

// PriceActionConfig sets the candle intervals and EMA periods.
type PriceActionConfig struct {
	Intervals  []int64 `mapstructure:"intervals"`
	EmaPeriods []int64 `mapstructure:"emaPeriods"`
}

// FeesConfig sets maker/taker rates. Negative rates are rebates.
type FeesConfig struct {
	Maker float64 `mapstructure:"maker"`
	Taker float64 `mapstructure:"taker"`
}

// LatencyConfig sets fixed order latencies in nanoseconds.
type LatencyConfig struct {
	EntryNs    int64 `mapstructure:"entryNs"`
	ResponseNs int64 `mapstructure:"responseNs"`
}

// FeedConfig shapes the synthetic feed.
type FeedConfig struct {
	BasePrice   float64 `mapstructure:"basePrice"`
	Qty         float64 `mapstructure:"qty"`
	SpreadTicks int64   `mapstructure:"spreadTicks"`
	StepNs      int64   `mapstructure:"stepNs"`
	LatencyNs   int64   `mapstructure:"latencyNs"`
	Steps       int     `mapstructure:"steps"`
	Seed        int64   `mapstructure:"seed"`
}

// RecorderConfig sets the sampling cadence and output location.
type RecorderConfig struct {
	IntervalNs int64  `mapstructure:"intervalNs"`
	Prefix     string `mapstructure:"prefix"`
	Dir        string `mapstructure:"dir"`
}

// PostgresConfig enables the optional database sink.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslMode"`
}

// Load reads config.yaml from the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config").With("path", configPath)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbol", "BTCUSDT")
	v.SetDefault("market.tickSize", 0.1)
	v.SetDefault("market.lotSize", 0.001)
	v.SetDefault("market.contractSize", 1.0)
	v.SetDefault("priceAction.intervals", []int64{
		5 * 60 * 1_000_000_000,
		15 * 60 * 1_000_000_000,
		30 * 60 * 1_000_000_000,
	})
	v.SetDefault("priceAction.emaPeriods", []int64{6, 12, 24})
	v.SetDefault("fees.maker", -0.00005)
	v.SetDefault("fees.taker", 0.0007)
	v.SetDefault("latency.entryNs", int64(50_000_000))
	v.SetDefault("latency.responseNs", int64(50_000_000))
	v.SetDefault("feed.basePrice", 60_000.0)
	v.SetDefault("feed.qty", 0.01)
	v.SetDefault("feed.spreadTicks", 1)
	v.SetDefault("feed.stepNs", int64(100_000_000))
	v.SetDefault("feed.latencyNs", int64(10_000_000))
	v.SetDefault("feed.steps", 100_000)
	v.SetDefault("feed.seed", 42)
	v.SetDefault("recorder.intervalNs", int64(1_000_000_000))
	v.SetDefault("recorder.prefix", "backtest")
	v.SetDefault("recorder.dir", ".")
}

func (c *Config) validate() error {
	if c.Market.TickSize <= 0 {
		return errors.New("config: tick size must be positive")
	}
	if c.Market.LotSize <= 0 {
		return errors.New("config: lot size must be positive")
	}
	if len(c.PriceAction.Intervals) == 0 {
		return errors.New("config: at least one candle interval required")
	}
	for _, iv := range c.PriceAction.Intervals {
		if iv <= 0 {
			return errors.New("config: candle intervals must be positive")
		}
	}
	for _, p := range c.PriceAction.EmaPeriods {
		if p <= 0 {
			return errors.New("config: ema periods must be positive")
		}
	}
	return nil
}

// BacktestConfig builds the backtest wiring from the loaded config.
func (c *Config) BacktestConfig() backtest.Config {
	return backtest.Config{
		TickSize:      c.Market.TickSize,
		LotSize:       c.Market.LotSize,
		Asset:         models.NewLinearAsset(c.Market.ContractSize),
		Fees:          models.NewTradingValueFeeModel(models.NewCommonFees(c.Fees.Maker, c.Fees.Taker)),
		OrderLatency:  models.NewConstantLatency(c.Latency.EntryNs, c.Latency.ResponseNs),
		Intervals:     c.PriceAction.Intervals,
		EmaPeriods:    c.PriceAction.EmaPeriods,
		LastTradesCap: 256,
	}
}
