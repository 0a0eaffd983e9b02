package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/signal"
	"github.com/gregtusar/volhedge/pkg/sizing"
	"github.com/gregtusar/volhedge/pkg/stance"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"API_JWT_SECRET", "GCP_PROJECT_ID", "GCP_USE_SECRETS", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 75.0, cfg.Risk.MaxAbsGamma)
	assert.Equal(t, 0.5, cfg.Execution.HedgeTolerance)
	assert.Equal(t, 30, cfg.Strategy.Adaptive.CooldownBars)
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOLHEDGE_RISK_MAX_LEVERAGE", "4")
	t.Setenv("API_JWT_SECRET", "from-env")

	path := writeConfig(t, `
capital:
  initial: 250000
replay:
  mode: all
  prices_path: data/spy.csv
signal:
  rv_short_window: 20
strategy:
  adaptive:
    confidence_buffer: 0.002
risk:
  gamma_red_threshold: 90
execution:
  liquidity_contracts: 500
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250000.0, cfg.Capital.Initial)
	assert.Equal(t, "all", cfg.Replay.Mode)
	assert.Equal(t, "data/spy.csv", cfg.Replay.PricesPath)
	assert.Equal(t, 20, cfg.Signal.RVShortWindow)
	assert.Equal(t, 240, cfg.Signal.RVMediumWindow)
	assert.Equal(t, 0.002, cfg.Strategy.Adaptive.ConfidenceBuffer)
	assert.Equal(t, 500.0, cfg.Execution.LiquidityContracts)
	assert.Equal(t, 4.0, cfg.Risk.MaxLeverage)
	assert.Equal(t, 90.0, cfg.Risk.GammaRed)
	assert.Equal(t, 90.0, cfg.Simulation().Sizing.GammaRed)
	assert.Equal(t, "from-env", cfg.Server.JWTSecret)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"gamma bands inverted", "risk:\n  gamma_red_threshold: 30\n", "risk.gamma_yellow_threshold"},
		{"hedge tolerance below half share", "execution:\n  hedge_tolerance: 0.25\n", "execution.hedge_tolerance must be greater than or equal to 0.5"},
		{"adaptive pause unobservable", "strategy:\n  adaptive:\n    cooldown_bars: 0\n", "strategy.adaptive.cooldown_bars"},
		{"unknown mode", "replay:\n  mode: sideways\n", "replay.mode must be one of"},
		{"short window above medium", "signal:\n  rv_short_window: 300\n", "signal.rv_short_window"},
		{"throttle above kill", "risk:\n  global_drawdown_throttle_threshold: 0.25\n", "throttle"},
		{"exit stricter than enter", "strategy:\n  adaptive:\n    short_edge_exit: 0.05\n", "short_edge_exit"},
		{"vov exit outside band", "strategy:\n  adaptive:\n    vov_exit: 0.01\n", "vov_exit"},
		{"window reversed", "replay:\n  start: \"2024-03-01\"\n  end: \"2024-02-01\"\n", "replay.end"},
		{"red factor zero", "risk:\n  red_size_factor: 0\n", "risk.red_size_factor must be greater than 0"},
		{"bad capital", "capital:\n  initial: 0\n", "capital.initial must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

type fakeSecrets struct {
	values map[string]string
	closed bool
}

func (f *fakeSecrets) GetSecretWithDefault(_ context.Context, name, def string) string {
	if v, ok := f.values[name]; ok {
		return v
	}
	return def
}

func (f *fakeSecrets) Close() error {
	f.closed = true
	return nil
}

func TestLoadSecretsFromGCP(t *testing.T) {
	clearEnv(t)
	fake := &fakeSecrets{values: map[string]string{"volhedge-api-jwt-secret": "from-gcp"}}
	orig := newSecretSource
	newSecretSource = func(context.Context, GCPConfig, *logrus.Logger) (secretSource, error) {
		return fake, nil
	}
	defer func() { newSecretSource = orig }()

	cfg, err := Load(writeConfig(t, "gcp:\n  use_secrets: true\n  project_id: desk\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-gcp", cfg.Server.JWTSecret)
	assert.True(t, fake.closed)

	t.Setenv("API_JWT_SECRET", "explicit")
	cfg, err = Load(writeConfig(t, "gcp:\n  use_secrets: true\n  project_id: desk\n"))
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Server.JWTSecret)
}

func dailyBars(n int, hour int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i].Timestamp = time.Date(2024, 1, 2+i, hour, 0, 0, 0, time.UTC)
	}
	return bars
}

func TestApplyDailyPreset(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.ApplyDailyPreset(dailyBars(5, 15)))
	assert.True(t, cfg.ApplyDailyPreset(dailyBars(5, 0)))
	assert.Equal(t, signal.DailyConfig(), cfg.Signal.Config)
	assert.Equal(t, stance.DailyConfig(), cfg.Strategy)
	require.NoError(t, cfg.Validate())

	tuned := Default()
	tuned.Strategy.CooldownBars = 12
	assert.False(t, tuned.ApplyDailyPreset(dailyBars(5, 0)))

	off := Default()
	off.Signal.AutoDailyPreset = false
	assert.False(t, off.ApplyDailyPreset(dailyBars(5, 0)))
}

func TestSimulationSharesRiskBands(t *testing.T) {
	cfg := Default()
	assert.Equal(t, sizing.DefaultBands(), cfg.Risk.Bands)
	assert.Equal(t, sizing.DefaultConfig().MaxCapitalAtRiskPct, cfg.Risk.MaxCapitalAtRiskPct)

	cfg.Risk.GammaYellow, cfg.Risk.GammaRed = 30, 50
	sim := cfg.Simulation()
	assert.Equal(t, sim.Risk.Bands, sim.Sizing.Bands)
	assert.Equal(t, 30.0, sim.Sizing.GammaYellow)
	assert.Equal(t, 50.0, sim.Sizing.GammaRed)
	assert.Equal(t, cfg.Risk.MaxCapitalAtRiskPct, sim.Sizing.MaxCapitalAtRiskPct)
	assert.Equal(t, sizing.DefaultLongVegaBudgetRatio, sim.Sizing.LongVegaBudgetRatio)
	assert.Equal(t, cfg.Capital.Initial, sim.InitialCapital)
	assert.Equal(t, cfg.Strategy, sim.Stance)
}

func TestWindowCoversWholeEndDay(t *testing.T) {
	cfg := Default()
	cfg.Replay.Start = "2024-02-01"
	cfg.Replay.End = "2024-02-29"
	start, end, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, end.After(time.Date(2024, 2, 29, 15, 59, 0, 0, time.UTC)))
	assert.True(t, end.Before(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	cfg.Replay.End = "2024-02-29 15:30"
	_, end, err = cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 15, 30, 0, 0, time.UTC), end)
}
