// Package pnl tracks the PnL decomposition, equity peak and drawdown of one run.
package pnl

import (
	"math"

	"github.com/gregtusar/volhedge/pkg/models"
)

type Tracker struct {
	initial     float64
	peak        float64
	drawdown    float64
	maxDrawdown float64
	cumulative  models.PnLBreakdown
}

func NewTracker(initialCapital float64) *Tracker {
	return &Tracker{
		initial: initialCapital,
		peak:    initialCapital,
	}
}

func (t *Tracker) Initial() float64 {
	return t.initial
}

// Record adds one bar's components to the running totals.
func (t *Tracker) Record(step models.PnLBreakdown) {
	t.cumulative = t.cumulative.Add(step)
}

func (t *Tracker) Cumulative() models.PnLBreakdown {
	return t.cumulative
}

// Equity is the accounting identity: initial capital plus the decomposed PnL.
func (t *Tracker) Equity() float64 {
	return t.initial + t.cumulative.Total()
}

// Peek returns the drawdown equity would have without moving the peak.
func (t *Tracker) Peek(equity float64) float64 {
	return drawdown(math.Max(t.peak, equity), equity)
}

// Update moves the peak and returns the current drawdown.
func (t *Tracker) Update(equity float64) float64 {
	t.peak = math.Max(t.peak, equity)
	t.drawdown = drawdown(t.peak, equity)
	t.maxDrawdown = math.Max(t.maxDrawdown, t.drawdown)
	return t.drawdown
}

func (t *Tracker) Drawdown() float64 {
	return t.drawdown
}

func (t *Tracker) MaxDrawdown() float64 {
	return t.maxDrawdown
}

func (t *Tracker) Snapshot(state models.PortfolioState, bar models.Bar) models.RiskSnapshot {
	equity := state.Equity(bar)
	notional := state.Notional(bar)
	var leverage float64
	if equity > 0 {
		leverage = notional / equity
	} else if notional > 0 {
		leverage = math.Inf(1)
	}
	return models.RiskSnapshot{
		Equity:        equity,
		PeakEquity:    t.peak,
		Drawdown:      t.drawdown,
		GammaExposure: state.GammaExposure(bar),
		VegaExposure:  state.VegaExposure(bar),
		NetDelta:      state.NetDelta(bar),
		Notional:      notional,
		Leverage:      leverage,
	}
}

func (t *Tracker) Summary(mode models.Mode, bars int) models.Summary {
	return models.Summary{
		Mode:         mode,
		PnL:          t.cumulative,
		TotalPnL:     t.cumulative.Total(),
		EndingEquity: t.Equity(),
		MaxDrawdown:  t.maxDrawdown,
		Bars:         bars,
	}
}

func drawdown(peak, equity float64) float64 {
	if peak <= 0 {
		return 0
	}
	return math.Max(0, (peak-equity)/peak)
}
