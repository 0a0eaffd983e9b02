package pnl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gregtusar/volhedge/pkg/models"
)

func TestDrawdownFollowsPeak(t *testing.T) {
	tr := NewTracker(10000)

	assert.Zero(t, tr.Update(10500))
	assert.InDelta(t, 0.1, tr.Update(9450), 1e-12)
	assert.InDelta(t, 0.2, tr.Peek(8400), 1e-12)
	// peek does not move anything
	assert.InDelta(t, 0.1, tr.Drawdown(), 1e-12)

	assert.InDelta(t, 0.0, tr.Update(11000), 1e-12)
	assert.InDelta(t, 0.1, tr.MaxDrawdown(), 1e-12)
}

func TestEquityIdentity(t *testing.T) {
	tr := NewTracker(10000)
	tr.Record(models.PnLBreakdown{OptionMTM: 120, Hedge: -30, Fees: 7.5, Slippage: 1})
	tr.Record(models.PnLBreakdown{OptionMTM: -20, Hedge: 10, Fees: 0.5})

	assert.InDelta(t, 10000+100-20-8-1, tr.Equity(), 1e-9)

	s := tr.Summary(models.ModeShort, 2)
	assert.InDelta(t, 71, s.TotalPnL, 1e-9)
	assert.InDelta(t, 8, s.PnL.Fees, 1e-9)
}

func TestSnapshotLeverage(t *testing.T) {
	tr := NewTracker(10000)
	bar := models.Bar{Spot: 100, OptionMid: 2, Delta: 0.5, Gamma: 0.01, Vega: 0.1}
	state := models.PortfolioState{Cash: -38015, Contracts: -10, Shares: 500}

	snap := tr.Snapshot(state, bar)
	assert.InDelta(t, 9985, snap.Equity, 1e-9)
	assert.InDelta(t, 52000, snap.Notional, 1e-9)
	assert.InDelta(t, 52000/9985.0, snap.Leverage, 1e-12)
	assert.InDelta(t, -10, snap.GammaExposure, 1e-9)
	assert.InDelta(t, -100, snap.VegaExposure, 1e-9)
}
