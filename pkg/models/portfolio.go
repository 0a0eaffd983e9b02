package models

import (
	"math"
)

// PnLBreakdown holds the four accounting components. Fees and Slippage are costs (non-negative).
type PnLBreakdown struct {
	OptionMTM float64 `json:"option_mtm_pnl" yaml:"option_mtm_pnl"`
	Hedge     float64 `json:"hedge_pnl" yaml:"hedge_pnl"`
	Fees      float64 `json:"fees" yaml:"fees"`
	Slippage  float64 `json:"slippage" yaml:"slippage"`
}

func (p PnLBreakdown) Total() float64 {
	return p.OptionMTM + p.Hedge - p.Fees - p.Slippage
}

func (p PnLBreakdown) Add(o PnLBreakdown) PnLBreakdown {
	return PnLBreakdown{
		OptionMTM: p.OptionMTM + o.OptionMTM,
		Hedge:     p.Hedge + o.Hedge,
		Fees:      p.Fees + o.Fees,
		Slippage:  p.Slippage + o.Slippage,
	}
}

type PortfolioState struct {
	Contracts       int
	Shares          int
	Cash            float64
	OptionCostBasis float64
	HedgeCostBasis  float64
	Cumulative      PnLBreakdown
}

func (p PortfolioState) OptionValue(bar Bar) float64 {
	return float64(p.Contracts) * bar.OptionMid * ContractMultiplier
}

func (p PortfolioState) Equity(bar Bar) float64 {
	return p.Cash + p.OptionValue(bar) + float64(p.Shares)*bar.Spot
}

func (p PortfolioState) OptionDelta(bar Bar) float64 {
	return float64(p.Contracts) * bar.Delta * ContractMultiplier
}

func (p PortfolioState) NetDelta(bar Bar) float64 {
	return p.OptionDelta(bar) + float64(p.Shares)
}

func (p PortfolioState) GammaExposure(bar Bar) float64 {
	return float64(p.Contracts) * bar.Gamma * ContractMultiplier
}

func (p PortfolioState) VegaExposure(bar Bar) float64 {
	return float64(p.Contracts) * bar.Vega * ContractMultiplier
}

// Notional is gross option premium plus gross hedge value.
func (p PortfolioState) Notional(bar Bar) float64 {
	return math.Abs(p.OptionValue(bar)) + math.Abs(float64(p.Shares)*bar.Spot)
}

type RiskSnapshot struct {
	Equity        float64
	PeakEquity    float64
	Drawdown      float64
	GammaExposure float64
	VegaExposure  float64
	NetDelta      float64
	Notional      float64
	Leverage      float64
}

// Projection is the book a fill to some target would leave behind.
type Projection struct {
	Shares   int
	Fees     float64
	Slippage float64
}

func (p Projection) Costs() float64 {
	return p.Fees + p.Slippage
}
