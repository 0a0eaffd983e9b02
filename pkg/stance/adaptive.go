package stance

import (
	"github.com/gregtusar/volhedge/pkg/models"
)

// RegimeState is the full memory of the adaptive machine. PendingPause marks a FLAT that was
// reached by leaving a side; the next bar must move to PAUSED.
type RegimeState struct {
	Stance            models.Stance `json:"stance"`
	BarsInState       int           `json:"bars_in_state"`
	ShortEnterCount   int           `json:"short_enter_count"`
	LongEnterCount    int           `json:"long_enter_count"`
	ExitCount         int           `json:"exit_count"`
	CooldownRemaining int           `json:"cooldown_remaining"`
	PendingPause      bool          `json:"pending_pause"`
}

func NewRegimeState() RegimeState {
	return RegimeState{Stance: models.StanceFlat}
}

// Confidence is the summed threshold margin of one candidate side.
type Confidence struct {
	Eligible bool
	Score    float64
}

func ShortEntry(snap models.SignalSnapshot, cfg AdaptiveConfig) Confidence {
	if !snap.Ready {
		return Confidence{}
	}
	return Confidence{
		Eligible: snap.Edge > cfg.ShortEdgeEnter && snap.TrendStrength < cfg.ShortTrendEnter && snap.VolOfVol < cfg.VovLow,
		Score:    (snap.Edge - cfg.ShortEdgeEnter) + (cfg.ShortTrendEnter - snap.TrendStrength) + (cfg.VovLow - snap.VolOfVol),
	}
}

func LongEntry(snap models.SignalSnapshot, cfg AdaptiveConfig) Confidence {
	if !snap.Ready {
		return Confidence{}
	}
	return Confidence{
		Eligible: snap.Cheapness > cfg.LongCheapnessEnter && snap.VolOfVol > cfg.VovHigh && snap.TrendStrength < cfg.LongTrendMax,
		Score:    (snap.Cheapness - cfg.LongCheapnessEnter) + (snap.VolOfVol - cfg.VovHigh) + (cfg.LongTrendMax - snap.TrendStrength),
	}
}

func shortExit(snap models.SignalSnapshot, cfg AdaptiveConfig) (bool, string) {
	switch {
	case !snap.Ready:
		return true, "signal_undefined"
	case snap.Edge < cfg.ShortEdgeExit:
		return true, "edge_below_exit"
	case snap.TrendStrength > cfg.ShortTrendExit:
		return true, "trend_above_exit"
	case snap.VolOfVol > cfg.VovHigh:
		return true, "vov_above_high"
	}
	return false, "short_hold"
}

func longExit(snap models.SignalSnapshot, cfg AdaptiveConfig) (bool, string) {
	switch {
	case !snap.Ready:
		return true, "signal_undefined"
	case snap.Cheapness < cfg.LongCheapnessExit:
		return true, "cheapness_below_exit"
	case snap.VolOfVol < cfg.VovExit:
		return true, "vov_below_exit"
	case snap.TrendStrength > cfg.LongTrendMax:
		return true, "trend_above_max"
	}
	return false, "long_hold"
}

// Step is the transition function of the adaptive machine. Sides are only left to FLAT, FLAT
// after a side always passes through PAUSED, and PAUSED ignores entry signals.
func Step(state RegimeState, snap models.SignalSnapshot, blocked bool, cfg AdaptiveConfig) (RegimeState, Decision) {
	next := state
	target := state.Stance
	var reason string

	switch state.Stance {
	case models.StancePaused:
		next.resetCounters()
		next.CooldownRemaining--
		if next.CooldownRemaining <= 0 {
			next.CooldownRemaining = 0
			target = models.StanceFlat
			reason = "cooldown_elapsed"
		} else {
			reason = "cooling_down"
		}

	case models.StanceShortVol, models.StanceLongVol:
		exit, why := shortExit(snap, cfg)
		if state.Stance == models.StanceLongVol {
			exit, why = longExit(snap, cfg)
		}
		reason = why
		if exit {
			next.ExitCount++
		} else {
			next.ExitCount = 0
		}
		if next.ExitCount >= cfg.ExitPersistBars {
			next.resetCounters()
			next.PendingPause = true
			target = models.StanceFlat
		}

	default:
		if state.PendingPause {
			next.resetCounters()
			next.PendingPause = false
			next.CooldownRemaining = cfg.CooldownBars
			target = models.StancePaused
			reason = "exit_cooldown"
			break
		}
		target, reason = next.evaluateEntry(snap, blocked, cfg)
	}

	if target != state.Stance {
		next.BarsInState = 1
	} else {
		next.BarsInState++
	}
	next.Stance = target

	return next, Decision{Previous: state.Stance, Stance: target, Reason: reason}
}

func (s *RegimeState) evaluateEntry(snap models.SignalSnapshot, blocked bool, cfg AdaptiveConfig) (models.Stance, string) {
	if !snap.Ready {
		s.resetCounters()
		return models.StanceFlat, "warmup"
	}
	if blocked {
		s.resetCounters()
		return models.StanceFlat, "kill_latched"
	}

	short := ShortEntry(snap, cfg)
	long := LongEntry(snap, cfg)
	s.ShortEnterCount = persist(s.ShortEnterCount, short.Eligible)
	s.LongEnterCount = persist(s.LongEnterCount, long.Eligible)

	shortReady := s.ShortEnterCount >= cfg.EnterPersistBars && short.Score > cfg.ConfidenceBuffer
	longReady := s.LongEnterCount >= cfg.EnterPersistBars && long.Score > cfg.ConfidenceBuffer

	target := models.StanceFlat
	reason := "no_entry"
	switch {
	case shortReady && longReady:
		switch {
		case short.Score-long.Score >= cfg.ConfidenceBuffer:
			target, reason = models.StanceShortVol, "short_stronger"
		case long.Score-short.Score >= cfg.ConfidenceBuffer:
			target, reason = models.StanceLongVol, "long_stronger"
		default:
			reason = "ambiguous_entry"
		}
	case shortReady:
		target, reason = models.StanceShortVol, "short_entry_confirmed"
	case longReady:
		target, reason = models.StanceLongVol, "long_entry_confirmed"
	case short.Eligible || long.Eligible:
		reason = "entry_persisting"
	}

	if target != models.StanceFlat {
		s.resetCounters()
	}
	return target, reason
}

// ForceFlat moves a held side to FLAT with a pause pending. FLAT and PAUSED are kept.
func ForceFlat(state RegimeState) RegimeState {
	next := state
	next.resetCounters()
	if state.Stance.IsSide() {
		next.Stance = models.StanceFlat
		next.PendingPause = true
		next.BarsInState = 1
	}
	return next
}

func (s *RegimeState) resetCounters() {
	s.ShortEnterCount = 0
	s.LongEnterCount = 0
	s.ExitCount = 0
}

func persist(count int, eligible bool) int {
	if eligible {
		return count + 1
	}
	return 0
}
