package stance

import (
	"github.com/gregtusar/volhedge/pkg/models"
)

// Decision is the stance chosen for one bar.
type Decision struct {
	Previous models.Stance
	Stance   models.Stance
	Reason   string
}

func (d Decision) Changed() bool {
	return d.Previous != d.Stance
}

// FilterState is the only memory a short or long filter carries between bars.
type FilterState struct {
	Stance            models.Stance
	CooldownRemaining int
}

func NewFilterState() FilterState {
	return FilterState{Stance: models.StanceFlat}
}

// ShortEligible applies the short-vol hard gates. Any failing gate forces FLAT.
func ShortEligible(snap models.SignalSnapshot, cfg ShortConfig) (bool, string) {
	switch {
	case !snap.Ready:
		return false, "warmup"
	case snap.Edge < cfg.EdgeThreshold:
		return false, "edge_below_threshold"
	case snap.EdgeVelocity < -cfg.EdgeCollapseTolerance:
		return false, "edge_collapsing"
	case snap.TrendStrength > cfg.TrendThreshold:
		return false, "trend_too_strong"
	case snap.JumpAbsReturn > cfg.JumpThreshold:
		return false, "jump_detected"
	case snap.VolOfVol > cfg.VolOfVolThreshold:
		return false, "vol_of_vol_unstable"
	}
	return true, "short_filters_pass"
}

// LongEligible requires cheap vol, no rebound in the edge, and a confirmed instability.
func LongEligible(snap models.SignalSnapshot, cfg LongConfig) (bool, string) {
	switch {
	case !snap.Ready:
		return false, "warmup"
	case snap.Cheapness < cfg.EdgeThreshold:
		return false, "not_cheap"
	case snap.EdgeVelocity > cfg.EdgeReboundTolerance:
		return false, "edge_rebounding"
	case snap.RVRise < cfg.VolRiseThreshold && snap.TrendStrength < cfg.TrendBreakThreshold:
		return false, "no_instability"
	}
	return true, "long_filters_pass"
}

// StepFilter advances a filter by one bar. The cooldown is counted down before anything else
// and is re-armed whenever a held side is left.
func StepFilter(state FilterState, side models.Stance, eligible bool, reason string, blocked bool, cooldownBars int) (FilterState, Decision) {
	next := state
	target := models.StanceFlat

	switch {
	case next.CooldownRemaining > 0:
		next.CooldownRemaining--
		reason = "cooldown"
	case blocked:
		reason = "kill_latched"
	case eligible:
		target = side
	}

	if state.Stance.IsSide() && target != state.Stance {
		next.CooldownRemaining = cooldownBars
	}
	next.Stance = target

	return next, Decision{Previous: state.Stance, Stance: target, Reason: reason}
}

// ForceFilterFlat drops the held side and arms the cooldown.
func ForceFilterFlat(state FilterState, cooldownBars int) FilterState {
	if state.Stance.IsSide() {
		state.CooldownRemaining = cooldownBars
	}
	state.Stance = models.StanceFlat
	return state
}
