package stance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/volhedge/pkg/models"
)

func testAdaptiveConfig() AdaptiveConfig {
	cfg := DefaultConfig().Adaptive
	cfg.EnterPersistBars = 2
	cfg.ExitPersistBars = 1
	cfg.CooldownBars = 3
	return cfg
}

var (
	shortSnap = models.SignalSnapshot{Ready: true, Edge: 0.05, Cheapness: -0.05}
	longSnap  = models.SignalSnapshot{Ready: true, Edge: -0.02, Cheapness: 0.02, VolOfVol: 0.01}
)

func runStates(t *testing.T, cfg AdaptiveConfig, snaps []models.SignalSnapshot) []models.Stance {
	t.Helper()
	state := NewRegimeState()
	out := make([]models.Stance, 0, len(snaps))
	for _, snap := range snaps {
		var d Decision
		state, d = Step(state, snap, false, cfg)
		out = append(out, d.Stance)
	}
	return out
}

func TestAdaptiveSideSwitchPassesThroughPause(t *testing.T) {
	snaps := []models.SignalSnapshot{shortSnap, shortSnap}
	for i := 0; i < 7; i++ {
		snaps = append(snaps, longSnap)
	}

	got := runStates(t, testAdaptiveConfig(), snaps)
	want := []models.Stance{
		models.StanceFlat,
		models.StanceShortVol,
		models.StanceFlat,
		models.StancePaused,
		models.StancePaused,
		models.StancePaused,
		models.StanceFlat,
		models.StanceFlat,
		models.StanceLongVol,
	}
	assert.Equal(t, want, got)
}

func TestAdaptivePersistenceResetsOnGap(t *testing.T) {
	neutral := models.SignalSnapshot{Ready: true}
	got := runStates(t, testAdaptiveConfig(), []models.SignalSnapshot{shortSnap, neutral, shortSnap, shortSnap})
	assert.Equal(t, []models.Stance{
		models.StanceFlat,
		models.StanceFlat,
		models.StanceFlat,
		models.StanceShortVol,
	}, got)
}

func TestAdaptiveExitNeedsPersistence(t *testing.T) {
	cfg := testAdaptiveConfig()
	cfg.ExitPersistBars = 2
	neutral := models.SignalSnapshot{Ready: true}

	got := runStates(t, cfg, []models.SignalSnapshot{shortSnap, shortSnap, neutral, shortSnap, neutral, neutral})
	assert.Equal(t, []models.Stance{
		models.StanceFlat,
		models.StanceShortVol,
		models.StanceShortVol,
		models.StanceShortVol,
		models.StanceShortVol,
		models.StanceFlat,
	}, got)
}

func TestAdaptiveWarmupStaysFlat(t *testing.T) {
	got := runStates(t, testAdaptiveConfig(), make([]models.SignalSnapshot, 5))
	for _, s := range got {
		assert.Equal(t, models.StanceFlat, s)
	}
}

func TestAdaptiveBlockedIgnoresEntries(t *testing.T) {
	cfg := testAdaptiveConfig()
	state := NewRegimeState()
	for i := 0; i < 4; i++ {
		var d Decision
		state, d = Step(state, shortSnap, true, cfg)
		require.Equal(t, models.StanceFlat, d.Stance)
		require.Equal(t, "kill_latched", d.Reason)
	}
	assert.Zero(t, state.ShortEnterCount)
}

func TestAdaptiveForceFlatSchedulesPause(t *testing.T) {
	cfg := testAdaptiveConfig()
	state := NewRegimeState()
	state, _ = Step(state, shortSnap, false, cfg)
	state, _ = Step(state, shortSnap, false, cfg)
	require.Equal(t, models.StanceShortVol, state.Stance)

	state = ForceFlat(state)
	require.Equal(t, models.StanceFlat, state.Stance)
	require.True(t, state.PendingPause)

	state, d := Step(state, shortSnap, false, cfg)
	assert.Equal(t, models.StancePaused, d.Stance)
	assert.Equal(t, cfg.CooldownBars, state.CooldownRemaining)
}

func TestAdaptiveNeverSwitchesSidesDirectly(t *testing.T) {
	cfg := testAdaptiveConfig()
	rng := rand.New(rand.NewSource(7))
	state := NewRegimeState()

	var lastSide models.Stance
	pausedSinceExit := false
	for i := 0; i < 5000; i++ {
		snap := shortSnap
		switch rng.Intn(3) {
		case 0:
			snap = longSnap
		case 1:
			snap = models.SignalSnapshot{Ready: rng.Intn(10) > 0}
		}

		var d Decision
		state, d = Step(state, snap, false, cfg)

		if d.Previous.IsSide() && d.Changed() {
			require.Equal(t, models.StanceFlat, d.Stance, "bar %d left %s to %s", i, d.Previous, d.Stance)
			lastSide = d.Previous
			pausedSinceExit = false
		}
		if d.Stance == models.StancePaused {
			pausedSinceExit = true
		}
		if d.Stance.IsSide() && d.Changed() && lastSide != "" {
			require.True(t, pausedSinceExit, "bar %d entered %s without a pause", i, d.Stance)
		}
	}
}
