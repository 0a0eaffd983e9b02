package stance

// Config groups the thresholds of every stance module.
type Config struct {
	CooldownBars int            `mapstructure:"cooldown_bars" validate:"gte=0" yaml:"cooldown_bars"`
	Short        ShortConfig    `mapstructure:"short" yaml:"short"`
	Long         LongConfig     `mapstructure:"long" yaml:"long"`
	Adaptive     AdaptiveConfig `mapstructure:"adaptive" yaml:"adaptive"`
}

type ShortConfig struct {
	EdgeThreshold         float64 `mapstructure:"edge_threshold" yaml:"edge_threshold"`
	EdgeCollapseTolerance float64 `mapstructure:"edge_collapse_tolerance" validate:"gte=0" yaml:"edge_collapse_tolerance"`
	TrendThreshold        float64 `mapstructure:"trend_threshold" validate:"gte=0" yaml:"trend_threshold"`
	JumpThreshold         float64 `mapstructure:"jump_threshold" validate:"gte=0" yaml:"jump_threshold"`
	VolOfVolThreshold     float64 `mapstructure:"vol_of_vol_threshold" validate:"gte=0" yaml:"vol_of_vol_threshold"`
}

type LongConfig struct {
	EdgeThreshold        float64 `mapstructure:"edge_threshold" yaml:"edge_threshold"`
	EdgeReboundTolerance float64 `mapstructure:"edge_rebound_tolerance" validate:"gte=0" yaml:"edge_rebound_tolerance"`
	VolRiseThreshold     float64 `mapstructure:"vol_rise_threshold" yaml:"vol_rise_threshold"`
	TrendBreakThreshold  float64 `mapstructure:"trend_break_threshold" validate:"gte=0" yaml:"trend_break_threshold"`
}

type AdaptiveConfig struct {
	EnterPersistBars   int     `mapstructure:"enter_persist_bars" validate:"gte=1" yaml:"enter_persist_bars"`
	ExitPersistBars    int     `mapstructure:"exit_persist_bars" validate:"gte=1" yaml:"exit_persist_bars"`
	CooldownBars       int     `mapstructure:"cooldown_bars" validate:"gte=1" yaml:"cooldown_bars"`
	ShortEdgeEnter     float64 `mapstructure:"short_edge_enter" yaml:"short_edge_enter"`
	ShortEdgeExit      float64 `mapstructure:"short_edge_exit" yaml:"short_edge_exit"`
	ShortTrendEnter    float64 `mapstructure:"short_trend_enter" validate:"gte=0" yaml:"short_trend_enter"`
	ShortTrendExit     float64 `mapstructure:"short_trend_exit" validate:"gte=0" yaml:"short_trend_exit"`
	VovLow             float64 `mapstructure:"vov_low" validate:"gte=0" yaml:"vov_low"`
	VovHigh            float64 `mapstructure:"vov_high" validate:"gte=0" yaml:"vov_high"`
	VovExit            float64 `mapstructure:"vov_exit" validate:"gte=0" yaml:"vov_exit"`
	LongCheapnessEnter float64 `mapstructure:"long_cheapness_enter" yaml:"long_cheapness_enter"`
	LongCheapnessExit  float64 `mapstructure:"long_cheapness_exit" yaml:"long_cheapness_exit"`
	LongTrendMax       float64 `mapstructure:"long_trend_max" validate:"gte=0" yaml:"long_trend_max"`
	ConfidenceBuffer   float64 `mapstructure:"confidence_buffer" validate:"gte=0" yaml:"confidence_buffer"`
}

func DefaultConfig() Config {
	return Config{
		CooldownBars: 30,
		Short: ShortConfig{
			EdgeThreshold:         0.02,
			EdgeCollapseTolerance: 0.005,
			TrendThreshold:        0.004,
			JumpThreshold:         0.006,
			VolOfVolThreshold:     0.06,
		},
		Long: LongConfig{
			EdgeThreshold:        0.015,
			EdgeReboundTolerance: 0.005,
			VolRiseThreshold:     0.003,
			TrendBreakThreshold:  0.008,
		},
		Adaptive: AdaptiveConfig{
			EnterPersistBars:   3,
			ExitPersistBars:    2,
			CooldownBars:       30,
			ShortEdgeEnter:     0.02,
			ShortEdgeExit:      0.01,
			ShortTrendEnter:    0.004,
			ShortTrendExit:     0.006,
			VovLow:             0.003,
			VovHigh:            0.006,
			VovExit:            0.004,
			LongCheapnessEnter: 0.003,
			LongCheapnessExit:  0.0015,
			LongTrendMax:       0.008,
			ConfidenceBuffer:   0.001,
		},
	}
}

// DailyConfig is tuned for one bar per trading day.
func DailyConfig() Config {
	return Config{
		CooldownBars: 3,
		Short: ShortConfig{
			EdgeThreshold:         0.005,
			EdgeCollapseTolerance: 0.02,
			TrendThreshold:        0.03,
			JumpThreshold:         0.03,
			VolOfVolThreshold:     0.20,
		},
		Long: LongConfig{
			EdgeThreshold:        0.003,
			EdgeReboundTolerance: 0.02,
			VolRiseThreshold:     0.003,
			TrendBreakThreshold:  0.03,
		},
		Adaptive: AdaptiveConfig{
			EnterPersistBars:   2,
			ExitPersistBars:    2,
			CooldownBars:       2,
			ShortEdgeEnter:     0.02,
			ShortEdgeExit:      0.0,
			ShortTrendEnter:    0.015,
			ShortTrendExit:     0.03,
			VovLow:             0.01,
			VovHigh:            0.02,
			VovExit:            0.015,
			LongCheapnessEnter: -0.04,
			LongCheapnessExit:  -0.04,
			LongTrendMax:       0.05,
			ConfidenceBuffer:   0.0,
		},
	}
}
