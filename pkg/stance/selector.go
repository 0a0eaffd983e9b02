package stance

import (
	"fmt"

	"github.com/gregtusar/volhedge/pkg/models"
)

// Selector is the per-run stance module. Each run owns exactly one.
type Selector interface {
	Next(snap models.SignalSnapshot, blocked bool) Decision
	ForceFlat(reason string) Decision
	Stance() models.Stance
}

func NewSelector(mode models.Mode, cfg Config) (Selector, error) {
	switch mode {
	case models.ModeShort:
		return &filterSelector{
			side:     models.StanceShortVol,
			state:    NewFilterState(),
			cooldown: cfg.CooldownBars,
			eligible: func(s models.SignalSnapshot) (bool, string) { return ShortEligible(s, cfg.Short) },
		}, nil
	case models.ModeLong:
		return &filterSelector{
			side:     models.StanceLongVol,
			state:    NewFilterState(),
			cooldown: cfg.CooldownBars,
			eligible: func(s models.SignalSnapshot) (bool, string) { return LongEligible(s, cfg.Long) },
		}, nil
	case models.ModeAdaptive:
		return &AdaptiveSelector{state: NewRegimeState(), cfg: cfg.Adaptive}, nil
	default:
		return nil, fmt.Errorf("no stance module for mode %q", mode)
	}
}

type filterSelector struct {
	side     models.Stance
	state    FilterState
	cooldown int
	eligible func(models.SignalSnapshot) (bool, string)
}

func (f *filterSelector) Next(snap models.SignalSnapshot, blocked bool) Decision {
	ok, reason := f.eligible(snap)
	var d Decision
	f.state, d = StepFilter(f.state, f.side, ok, reason, blocked, f.cooldown)
	return d
}

func (f *filterSelector) ForceFlat(reason string) Decision {
	prev := f.state.Stance
	f.state = ForceFilterFlat(f.state, f.cooldown)
	return Decision{Previous: prev, Stance: f.state.Stance, Reason: reason}
}

func (f *filterSelector) Stance() models.Stance {
	return f.state.Stance
}

type AdaptiveSelector struct {
	state RegimeState
	cfg   AdaptiveConfig
}

func (a *AdaptiveSelector) Next(snap models.SignalSnapshot, blocked bool) Decision {
	var d Decision
	a.state, d = Step(a.state, snap, blocked, a.cfg)
	return d
}

func (a *AdaptiveSelector) ForceFlat(reason string) Decision {
	prev := a.state.Stance
	a.state = ForceFlat(a.state)
	return Decision{Previous: prev, Stance: a.state.Stance, Reason: reason}
}

func (a *AdaptiveSelector) Stance() models.Stance {
	return a.state.Stance
}

func (a *AdaptiveSelector) State() RegimeState {
	return a.state
}
