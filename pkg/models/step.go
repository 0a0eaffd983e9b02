package models

import (
	"time"
)

// StepRow is the per-bar audit line. Requested and Executed are the decision taken at this bar
// and filled at the next one; the position and exposure fields are after this bar's fill.
type StepRow struct {
	Bar           int          `json:"bar"`
	Timestamp     time.Time    `json:"timestamp"`
	Stance        Stance       `json:"stance"`
	Spot          float64      `json:"spot"`
	OptionMid     float64      `json:"option_mid"`
	Edge          float64      `json:"edge"`
	VolOfVol      float64      `json:"vol_of_vol"`
	TrendStrength float64      `json:"trend_strength"`
	Cheapness     float64      `json:"cheapness"`
	Requested     int          `json:"requested_target_exposure"`
	Executed      int          `json:"executed_target_exposure"`
	Contracts     int          `json:"contracts"`
	Shares        int          `json:"shares"`
	NetDelta      float64      `json:"net_delta"`
	GammaExposure float64      `json:"gamma_exposure"`
	VegaExposure  float64      `json:"vega_exposure"`
	Leverage      float64      `json:"leverage"`
	Drawdown      float64      `json:"drawdown"`
	Equity        float64      `json:"equity"`
	PnL           PnLBreakdown `json:"pnl"`
	GammaZone     GammaZone    `json:"gamma_zone"`
	SizeFactor    float64      `json:"size_factor"`
	Throttled     bool         `json:"throttled"`
	Killed        bool         `json:"killed"`
	RiskReason    string       `json:"risk_reason,omitempty"`
}

func (r StepRow) TotalPnL() float64 {
	return r.PnL.Total()
}

type Summary struct {
	Mode         Mode         `json:"mode" yaml:"mode"`
	PnL          PnLBreakdown `json:"pnl" yaml:"pnl"`
	TotalPnL     float64      `json:"total_pnl" yaml:"total_pnl"`
	EndingEquity float64      `json:"ending_equity" yaml:"ending_equity"`
	MaxDrawdown  float64      `json:"max_drawdown" yaml:"max_drawdown"`
	Bars         int          `json:"bars" yaml:"bars"`
	Trades       int          `json:"trades" yaml:"trades"`
	Transitions  int          `json:"transitions" yaml:"transitions"`
	Kills        int          `json:"kills" yaml:"kills"`
}
