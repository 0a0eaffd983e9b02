// Package execution fills option targets at the bar price and keeps the book delta hedged.
package execution

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/gregtusar/volhedge/pkg/models"
)

type Config struct {
	OptionFeePerContract float64 `mapstructure:"option_fee_per_contract" validate:"gte=0" yaml:"option_fee_per_contract"`
	OptionFeeBps         float64 `mapstructure:"option_fee_bps" validate:"gte=0" yaml:"option_fee_bps"`
	OptionSlippageBps    float64 `mapstructure:"option_slippage_bps" validate:"gte=0" yaml:"option_slippage_bps"`
	HedgeFeePerShare     float64 `mapstructure:"hedge_fee_per_share" validate:"gte=0" yaml:"hedge_fee_per_share"`
	HedgeFeeBps          float64 `mapstructure:"hedge_fee_bps" validate:"gte=0" yaml:"hedge_fee_bps"`
	HedgeSlippageBps     float64 `mapstructure:"hedge_slippage_bps" validate:"gte=0" yaml:"hedge_slippage_bps"`
	LiquidityContracts   float64 `mapstructure:"liquidity_contracts" validate:"gte=0" yaml:"liquidity_contracts"`
	HedgeTolerance       float64 `mapstructure:"hedge_tolerance" validate:"gte=0.5" yaml:"hedge_tolerance"`
}

func DefaultConfig() Config {
	return Config{
		OptionFeePerContract: 0.65,
		OptionSlippageBps:    5,
		HedgeFeePerShare:     0.005,
		HedgeSlippageBps:     1,
		HedgeTolerance:       0.5,
	}
}

type FillResult struct {
	Trades []models.TradeRecord
	Costs  models.PnLBreakdown
}

type Engine struct {
	cfg       Config
	namespace uuid.UUID
}

// NewEngine scopes trade ids to the run label so identical replays produce identical ids.
func NewEngine(cfg Config, runLabel string) *Engine {
	return &Engine{
		cfg:       cfg,
		namespace: uuid.NewSHA1(uuid.NameSpaceOID, []byte("volhedge/"+runLabel)),
	}
}

// Mark books the option and hedge PnL of holding the current book from prev to cur.
func (e *Engine) Mark(state *models.PortfolioState, prev, cur models.Bar) models.PnLBreakdown {
	pnl := models.PnLBreakdown{
		OptionMTM: float64(state.Contracts) * (cur.OptionMid - prev.OptionMid) * models.ContractMultiplier,
		Hedge:     float64(state.Shares) * (cur.Spot - prev.Spot),
	}
	state.Cumulative = state.Cumulative.Add(pnl)
	return pnl
}

// HedgeTarget is the share count after rebalancing a book of contracts. Shares are only
// traded when the net delta is outside the tolerance.
func (e *Engine) HedgeTarget(shares, contracts int, bar models.Bar) int {
	optionDelta := float64(contracts) * bar.Delta * models.ContractMultiplier
	if math.Abs(optionDelta+float64(shares)) <= e.cfg.HedgeTolerance {
		return shares
	}
	return int(math.Round(-optionDelta))
}

// Project prices a fill to target without mutating state.
func (e *Engine) Project(state models.PortfolioState, target int, bar models.Bar) models.Projection {
	shares := e.HedgeTarget(state.Shares, target, bar)
	optFee, optSlip := e.optionCosts(target-state.Contracts, bar.OptionMid)
	hedgeFee, hedgeSlip := e.hedgeCosts(shares-state.Shares, bar.Spot)
	return models.Projection{
		Shares:   shares,
		Fees:     optFee + hedgeFee,
		Slippage: optSlip + hedgeSlip,
	}
}

// Fill trades the option leg to target and then rebalances the hedge, both at bar prices.
func (e *Engine) Fill(state *models.PortfolioState, target int, bar models.Bar, index int) FillResult {
	var res FillResult

	if qty := target - state.Contracts; qty != 0 {
		fee, slip := e.optionCosts(qty, bar.OptionMid)
		state.Cash -= float64(qty)*bar.OptionMid*models.ContractMultiplier + fee + slip
		state.OptionCostBasis = costBasis(state.Contracts, state.OptionCostBasis, qty, bar.OptionMid)
		state.Contracts = target
		res.record(e.trade(index, bar, models.InstrumentOption, qty, bar.OptionMid, models.ContractMultiplier, fee, slip))
	}

	shares := e.HedgeTarget(state.Shares, state.Contracts, bar)
	if qty := shares - state.Shares; qty != 0 {
		fee, slip := e.hedgeCosts(qty, bar.Spot)
		state.Cash -= float64(qty)*bar.Spot + fee + slip
		state.HedgeCostBasis = costBasis(state.Shares, state.HedgeCostBasis, qty, bar.Spot)
		state.Shares = shares
		res.record(e.trade(index, bar, models.InstrumentUnderlying, qty, bar.Spot, 1, fee, slip))
	}

	state.Cumulative = state.Cumulative.Add(res.Costs)
	return res
}

func (r *FillResult) record(t models.TradeRecord) {
	r.Trades = append(r.Trades, t)
	r.Costs.Fees += t.Fee
	r.Costs.Slippage += t.Slippage
}

func (e *Engine) trade(index int, bar models.Bar, instrument models.Instrument, qty int, price, multiplier, fee, slip float64) models.TradeRecord {
	name := fmt.Sprintf("%d/%s", index, instrument)
	return models.TradeRecord{
		ID:         uuid.NewSHA1(e.namespace, []byte(name)).String(),
		Bar:        index,
		Timestamp:  bar.Timestamp,
		Instrument: instrument,
		Side:       models.SideFor(qty),
		Quantity:   abs(qty),
		Price:      price,
		Notional:   float64(abs(qty)) * price * multiplier,
		Fee:        fee,
		Slippage:   slip,
	}
}

func (e *Engine) optionCosts(qty int, mid float64) (fee, slippage float64) {
	if qty == 0 {
		return 0, 0
	}
	size := float64(abs(qty))
	notional := size * mid * models.ContractMultiplier
	fee = size*e.cfg.OptionFeePerContract + notional*e.cfg.OptionFeeBps/10000
	impact := 1.0
	if e.cfg.LiquidityContracts > 0 {
		impact += size / e.cfg.LiquidityContracts
	}
	slippage = notional * e.cfg.OptionSlippageBps / 10000 * impact
	return fee, slippage
}

func (e *Engine) hedgeCosts(qty int, spot float64) (fee, slippage float64) {
	if qty == 0 {
		return 0, 0
	}
	size := float64(abs(qty))
	notional := size * spot
	fee = size*e.cfg.HedgeFeePerShare + notional*e.cfg.HedgeFeeBps/10000
	slippage = notional * e.cfg.HedgeSlippageBps / 10000
	return fee, slippage
}

// costBasis is the average entry price of the position after a trade of qty at price.
func costBasis(position int, basis float64, qty int, price float64) float64 {
	next := position + qty
	switch {
	case next == 0:
		return 0
	case position == 0 || (position > 0) != (next > 0):
		return price
	case (position > 0) == (qty > 0):
		return (float64(abs(position))*basis + float64(abs(qty))*price) / float64(abs(next))
	default:
		return basis
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
