package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/panel-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Panel  PanelConfig  `yaml:"panel" mapstructure:"panel"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	FX     FXConfig     `yaml:"fx" mapstructure:"fx"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// PanelConfig configures reconciliation and aggregation.
type PanelConfig struct {
	DataDir         string  `yaml:"data_dir" mapstructure:"data_dir"`
	GroupsFile      string  `yaml:"groups_file" mapstructure:"groups_file"`
	ReturnsFile     string  `yaml:"returns_file" mapstructure:"returns_file"`
	OutDir          string  `yaml:"out_dir" mapstructure:"out_dir"`
	StartYear       int     `yaml:"start_year" mapstructure:"start_year" validate:"gte=1900"`
	EndYear         int     `yaml:"end_year" mapstructure:"end_year" validate:"gtefield=StartYear"`
	MatchWindowDays int     `yaml:"match_window_days" mapstructure:"match_window_days" validate:"gt=0"`
	WinsorizeLower  float64 `yaml:"winsorize_lower" mapstructure:"winsorize_lower" validate:"gte=0,ltfield=WinsorizeUpper"`
	WinsorizeUpper  float64 `yaml:"winsorize_upper" mapstructure:"winsorize_upper" validate:"lte=1"`
	Weighting       string  `yaml:"weighting" mapstructure:"weighting" validate:"oneof=both equal cap"`
	IndexStartDate  string  `yaml:"index_start_date" mapstructure:"index_start_date" validate:"datetime=2006-01-02"`
	MonthlyReturns  bool    `yaml:"monthly_returns" mapstructure:"monthly_returns"`
	ControlGroup    string  `yaml:"control_group" mapstructure:"control_group" validate:"required"`
}

// BatchConfig configures per-ticker concurrency.
type BatchConfig struct {
	MaxConcurrentTickers int `yaml:"max_concurrent_tickers" mapstructure:"max_concurrent_tickers" validate:"gt=0"`
}

// FXConfig configures currency normalization. Rates override the built-in
// table; RatesFile overrides both.
type FXConfig struct {
	BaseCurrency string             `yaml:"base_currency" mapstructure:"base_currency" validate:"len=3"`
	Rates        map[string]float64 `yaml:"rates" mapstructure:"rates" validate:"dive,gt=0"`
	RatesFile    string             `yaml:"rates_file" mapstructure:"rates_file"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required"`

	ConnectAttempts  int `yaml:"connect_attempts" mapstructure:"connect_attempts" validate:"gte=1"`
	ConnectBackoffMs int `yaml:"connect_backoff_ms" mapstructure:"connect_backoff_ms" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Years returns the fiscal year filter.
func (p PanelConfig) Years() model.YearRange {
	return model.YearRange{Start: p.StartYear, End: p.EndYear}
}

// MatchWindow returns the market cap search window.
func (p PanelConfig) MatchWindow() time.Duration {
	return time.Duration(p.MatchWindowDays) * 24 * time.Hour
}

// IndexStart parses the group index start date.
func (p PanelConfig) IndexStart() (time.Time, error) {
	t, err := model.ParseDate(p.IndexStartDate)
	return t, eris.Wrapf(err, "config: index start date %q", p.IndexStartDate)
}

// Weightings expands the weighting setting.
func (p PanelConfig) Weightings() []model.Weighting {
	switch p.Weighting {
	case string(model.WeightingEqual):
		return []model.Weighting{model.WeightingEqual}
	case string(model.WeightingCap):
		return []model.Weighting{model.WeightingCap}
	default:
		return []model.Weighting{model.WeightingEqual, model.WeightingCap}
	}
}

// RunConfig records the settings a build runs with.
func (p PanelConfig) RunConfig() model.RunConfig {
	return model.RunConfig{
		Years:           p.Years(),
		MatchWindowDays: p.MatchWindowDays,
		IndexStart:      p.IndexStartDate,
		ControlGroup:    p.ControlGroup,
		DataDir:         p.DataDir,
		ReturnsFile:     p.ReturnsFile,
	}
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return eris.Wrap(err, "config: validate")
	}
	return nil
}

// Load reads .env, then configuration from file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("panel.data_dir", "data")
	v.SetDefault("panel.groups_file", "")
	v.SetDefault("panel.returns_file", "")
	v.SetDefault("panel.out_dir", "out")
	v.SetDefault("panel.start_year", 2015)
	v.SetDefault("panel.end_year", 2025)
	v.SetDefault("panel.match_window_days", 30)
	v.SetDefault("panel.winsorize_lower", 0.01)
	v.SetDefault("panel.winsorize_upper", 0.99)
	v.SetDefault("panel.weighting", "both")
	v.SetDefault("panel.index_start_date", "2015-01-01")
	v.SetDefault("panel.monthly_returns", true)
	v.SetDefault("panel.control_group", model.DefaultControlGroup)
	v.SetDefault("batch.max_concurrent_tickers", 8)
	v.SetDefault("fx.base_currency", "USD")
	v.SetDefault("fx.rates_file", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "panel.db")
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("store.connect_backoff_ms", 500)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
