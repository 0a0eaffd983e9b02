package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/gregtusar/volhedge/pkg/execution"
	"github.com/gregtusar/volhedge/pkg/marketdata"
	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/replay"
	"github.com/gregtusar/volhedge/pkg/risk"
	"github.com/gregtusar/volhedge/pkg/secrets"
	"github.com/gregtusar/volhedge/pkg/signal"
	"github.com/gregtusar/volhedge/pkg/sizing"
	"github.com/gregtusar/volhedge/pkg/stance"
)

const envPrefix = "VOLHEDGE"

type Config struct {
	Capital   CapitalConfig    `mapstructure:"capital" yaml:"capital"`
	Replay    ReplayConfig     `mapstructure:"replay" yaml:"replay"`
	Signal    SignalConfig     `mapstructure:"signal" yaml:"signal"`
	Strategy  stance.Config    `mapstructure:"strategy" yaml:"strategy"`
	Sizing    SizingConfig     `mapstructure:"sizing" yaml:"sizing"`
	Risk      risk.Config      `mapstructure:"risk" yaml:"risk"`
	Execution execution.Config `mapstructure:"execution" yaml:"execution"`
	Logging   LoggingConfig    `mapstructure:"logging" yaml:"-"`
	Server    ServerConfig     `mapstructure:"server" yaml:"-"`
	GCP       GCPConfig        `mapstructure:"gcp" yaml:"-"`
}

type CapitalConfig struct {
	Initial float64 `mapstructure:"initial" validate:"gt=0" yaml:"initial"`
}

type ReplayConfig struct {
	Mode          string `mapstructure:"mode" validate:"oneof=short long adaptive both all" yaml:"mode"`
	PricesPath    string `mapstructure:"prices_path" yaml:"prices_path"`
	OptionsPath   string `mapstructure:"options_path" yaml:"options_path"`
	Start         string `mapstructure:"start" yaml:"start,omitempty"`
	End           string `mapstructure:"end" yaml:"end,omitempty"`
	OutputDir     string `mapstructure:"output_dir" yaml:"output_dir"`
	ProgressEvery int    `mapstructure:"progress_every" validate:"gte=0" yaml:"progress_every"`
}

type SignalConfig struct {
	signal.Config   `mapstructure:",squash" yaml:",inline"`
	AutoDailyPreset bool `mapstructure:"auto_daily_preset" yaml:"auto_daily_preset"`
}

// SizingConfig holds what the sizer does not share with the risk section; gamma bands and
// capital at risk come from risk.
type SizingConfig struct {
	LongVegaBudgetRatio float64 `mapstructure:"long_vega_budget_ratio" validate:"gte=0" yaml:"long_vega_budget_ratio"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type GCPConfig struct {
	ProjectID       string              `mapstructure:"project_id"`
	UseSecrets      bool                `mapstructure:"use_secrets"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	SecretNames     secrets.SecretNames `mapstructure:"secret_names"`
}

// Load reads .env, the YAML file and VOLHEDGE_* variables over the built-in defaults, then
// validates the result.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/volhedge")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// Default is the configuration Load produces with no file and no environment.
func Default() Config {
	return Config{
		Capital: CapitalConfig{Initial: 10000},
		Replay: ReplayConfig{
			Mode:          "adaptive",
			OutputDir:     "results",
			ProgressEvery: 5000,
		},
		Signal:    SignalConfig{Config: signal.DefaultConfig(), AutoDailyPreset: true},
		Strategy:  stance.DefaultConfig(),
		Sizing:    SizingConfig{LongVegaBudgetRatio: sizing.DefaultConfig().LongVegaBudgetRatio},
		Risk:      risk.DefaultConfig(),
		Execution: execution.DefaultConfig(),
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Server: ServerConfig{Port: 8080},
		GCP:    GCPConfig{SecretNames: secrets.DefaultSecretNames()},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("capital.initial", d.Capital.Initial)

	// Replay defaults
	v.SetDefault("replay.mode", d.Replay.Mode)
	v.SetDefault("replay.prices_path", "")
	v.SetDefault("replay.options_path", "")
	v.SetDefault("replay.start", "")
	v.SetDefault("replay.end", "")
	v.SetDefault("replay.output_dir", d.Replay.OutputDir)
	v.SetDefault("replay.progress_every", d.Replay.ProgressEvery)

	// Signal defaults
	v.SetDefault("signal.rv_short_window", d.Signal.RVShortWindow)
	v.SetDefault("signal.rv_medium_window", d.Signal.RVMediumWindow)
	v.SetDefault("signal.trend_window", d.Signal.TrendWindow)
	v.SetDefault("signal.auto_daily_preset", d.Signal.AutoDailyPreset)

	// Strategy defaults
	st := d.Strategy
	v.SetDefault("strategy.cooldown_bars", st.CooldownBars)
	v.SetDefault("strategy.short.edge_threshold", st.Short.EdgeThreshold)
	v.SetDefault("strategy.short.edge_collapse_tolerance", st.Short.EdgeCollapseTolerance)
	v.SetDefault("strategy.short.trend_threshold", st.Short.TrendThreshold)
	v.SetDefault("strategy.short.jump_threshold", st.Short.JumpThreshold)
	v.SetDefault("strategy.short.vol_of_vol_threshold", st.Short.VolOfVolThreshold)
	v.SetDefault("strategy.long.edge_threshold", st.Long.EdgeThreshold)
	v.SetDefault("strategy.long.edge_rebound_tolerance", st.Long.EdgeReboundTolerance)
	v.SetDefault("strategy.long.vol_rise_threshold", st.Long.VolRiseThreshold)
	v.SetDefault("strategy.long.trend_break_threshold", st.Long.TrendBreakThreshold)
	v.SetDefault("strategy.adaptive.enter_persist_bars", st.Adaptive.EnterPersistBars)
	v.SetDefault("strategy.adaptive.exit_persist_bars", st.Adaptive.ExitPersistBars)
	v.SetDefault("strategy.adaptive.cooldown_bars", st.Adaptive.CooldownBars)
	v.SetDefault("strategy.adaptive.short_edge_enter", st.Adaptive.ShortEdgeEnter)
	v.SetDefault("strategy.adaptive.short_edge_exit", st.Adaptive.ShortEdgeExit)
	v.SetDefault("strategy.adaptive.short_trend_enter", st.Adaptive.ShortTrendEnter)
	v.SetDefault("strategy.adaptive.short_trend_exit", st.Adaptive.ShortTrendExit)
	v.SetDefault("strategy.adaptive.vov_low", st.Adaptive.VovLow)
	v.SetDefault("strategy.adaptive.vov_high", st.Adaptive.VovHigh)
	v.SetDefault("strategy.adaptive.vov_exit", st.Adaptive.VovExit)
	v.SetDefault("strategy.adaptive.long_cheapness_enter", st.Adaptive.LongCheapnessEnter)
	v.SetDefault("strategy.adaptive.long_cheapness_exit", st.Adaptive.LongCheapnessExit)
	v.SetDefault("strategy.adaptive.long_trend_max", st.Adaptive.LongTrendMax)
	v.SetDefault("strategy.adaptive.confidence_buffer", st.Adaptive.ConfidenceBuffer)

	v.SetDefault("sizing.long_vega_budget_ratio", d.Sizing.LongVegaBudgetRatio)

	// Risk defaults
	v.SetDefault("risk.max_capital_at_risk_pct", d.Risk.MaxCapitalAtRiskPct)
	v.SetDefault("risk.max_leverage", d.Risk.MaxLeverage)
	v.SetDefault("risk.max_abs_gamma", d.Risk.MaxAbsGamma)
	v.SetDefault("risk.max_abs_vega", d.Risk.MaxAbsVega)
	v.SetDefault("risk.gamma_yellow_threshold", d.Risk.GammaYellow)
	v.SetDefault("risk.gamma_red_threshold", d.Risk.GammaRed)
	v.SetDefault("risk.yellow_size_factor", d.Risk.YellowFactor)
	v.SetDefault("risk.red_size_factor", d.Risk.RedFactor)
	v.SetDefault("risk.gamma_kill_drawdown", d.Risk.GammaKillDrawdown)
	v.SetDefault("risk.global_drawdown_throttle_threshold", d.Risk.ThrottleThreshold)
	v.SetDefault("risk.global_drawdown_throttle_size_factor", d.Risk.ThrottleSizeFactor)
	v.SetDefault("risk.global_drawdown_kill_threshold", d.Risk.KillThreshold)

	// Execution defaults
	v.SetDefault("execution.option_fee_per_contract", d.Execution.OptionFeePerContract)
	v.SetDefault("execution.option_fee_bps", d.Execution.OptionFeeBps)
	v.SetDefault("execution.option_slippage_bps", d.Execution.OptionSlippageBps)
	v.SetDefault("execution.hedge_fee_per_share", d.Execution.HedgeFeePerShare)
	v.SetDefault("execution.hedge_fee_bps", d.Execution.HedgeFeeBps)
	v.SetDefault("execution.hedge_slippage_bps", d.Execution.HedgeSlippageBps)
	v.SetDefault("execution.liquidity_contracts", d.Execution.LiquidityContracts)
	v.SetDefault("execution.hedge_tolerance", d.Execution.HedgeTolerance)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", false)

	// Server defaults
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.jwt_secret", "")

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")
	v.SetDefault("gcp.credentials_file", "")
	v.SetDefault("gcp.secret_names.api_jwt_secret", d.GCP.SecretNames.APIJWTSecret)
}

func overrideFromEnv(config *Config) {
	if secret := os.Getenv("API_JWT_SECRET"); secret != "" {
		config.Server.JWTSecret = secret
	}

	// GCP configuration from environment
	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" && config.GCP.CredentialsFile == "" {
		config.GCP.CredentialsFile = creds
	}
}

type secretSource interface {
	GetSecretWithDefault(ctx context.Context, secretName, defaultValue string) string
	Close() error
}

var newSecretSource = func(ctx context.Context, cfg GCPConfig, logger *logrus.Logger) (secretSource, error) {
	return secrets.NewGCPSecretManager(ctx, cfg.ProjectID, cfg.CredentialsFile, logger)
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := newSecretSource(ctx, config.GCP, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets if they're not already set
	if config.Server.JWTSecret == "" {
		config.Server.JWTSecret = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.APIJWTSecret, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}

// Window returns the inclusive date filter. A date-only end covers that whole day.
func (c *Config) Window() (start, end time.Time, err error) {
	if c.Replay.Start != "" {
		if start, err = marketdata.ParseTime(c.Replay.Start); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("replay.start: %w", err)
		}
	}
	if c.Replay.End != "" {
		if end, err = marketdata.ParseTime(c.Replay.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("replay.end: %w", err)
		}
		if end.Equal(end.Truncate(24 * time.Hour)) {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return start, end, nil
}

// ApplyDailyPreset swaps in the daily signal and strategy settings when the bars are daily and
// neither section was changed from its intraday defaults. It reports whether it did.
func (c *Config) ApplyDailyPreset(bars []models.Bar) bool {
	if !c.Signal.AutoDailyPreset || !marketdata.IsDaily(bars) {
		return false
	}
	if c.Signal.Config != signal.DefaultConfig() || c.Strategy != stance.DefaultConfig() {
		return false
	}
	c.Signal.Config = signal.DailyConfig()
	c.Strategy = stance.DailyConfig()
	return true
}

// Simulation assembles the immutable snapshot the replay runs against.
func (c *Config) Simulation() replay.Config {
	return replay.Config{
		InitialCapital: c.Capital.Initial,
		ProgressEvery:  c.Replay.ProgressEvery,
		Signal:         c.Signal.Config,
		Stance:         c.Strategy,
		Sizing: sizing.Config{
			MaxCapitalAtRiskPct: c.Risk.MaxCapitalAtRiskPct,
			LongVegaBudgetRatio: c.Sizing.LongVegaBudgetRatio,
			Bands:               c.Risk.Bands,
		},
		Risk:      c.Risk,
		Execution: c.Execution,
	}
}
