// Package sizing turns a desired stance into a requested option position.
package sizing

import (
	"math"

	"github.com/gregtusar/volhedge/pkg/models"
)

// Bands is the gamma-band policy. The risk section embeds it so both stages read the same
// thresholds.
type Bands struct {
	GammaYellow  float64 `mapstructure:"gamma_yellow_threshold" validate:"gt=0" yaml:"gamma_yellow_threshold"`
	GammaRed     float64 `mapstructure:"gamma_red_threshold" validate:"gt=0" yaml:"gamma_red_threshold"`
	YellowFactor float64 `mapstructure:"yellow_size_factor" validate:"gt=0,lte=1" yaml:"yellow_size_factor"`
	RedFactor    float64 `mapstructure:"red_size_factor" validate:"gt=0,lte=1" yaml:"red_size_factor"`
}

func DefaultBands() Bands {
	return Bands{
		GammaYellow:  40,
		GammaRed:     75,
		YellowFactor: 0.50,
		RedFactor:    0.25,
	}
}

const (
	DefaultMaxCapitalAtRiskPct = 0.20
	DefaultLongVegaBudgetRatio = 0.015
)

type Config struct {
	MaxCapitalAtRiskPct float64 `mapstructure:"max_capital_at_risk_pct" yaml:"max_capital_at_risk_pct"`
	LongVegaBudgetRatio float64 `mapstructure:"long_vega_budget_ratio" yaml:"long_vega_budget_ratio"`
	Bands               `mapstructure:",squash" yaml:",inline"`
}

func DefaultConfig() Config {
	return Config{
		MaxCapitalAtRiskPct: DefaultMaxCapitalAtRiskPct,
		LongVegaBudgetRatio: DefaultLongVegaBudgetRatio,
		Bands:               DefaultBands(),
	}
}

type Request struct {
	Stance models.Stance
	Equity float64
	Bar    models.Bar
}

// Result carries the band inputs next to the size. GammaExposure is the book gamma the
// full-size candidate would hold, which is what the zone is measured on.
type Result struct {
	Contracts     int
	Zone          models.GammaZone
	Factor        float64
	GammaExposure float64
}

type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Band maps the absolute gamma exposure to its zone and size factor.
func (s *Sizer) Band(gammaExposure float64) (models.GammaZone, float64) {
	g := math.Abs(gammaExposure)
	switch {
	case g > s.cfg.GammaRed:
		return models.GammaZoneRed, s.cfg.RedFactor
	case g > s.cfg.GammaYellow:
		return models.GammaZoneYellow, s.cfg.YellowFactor
	default:
		return models.GammaZoneGreen, 1.0
	}
}

// Size returns the signed requested contracts. Non-side stances and non-positive equity
// request zero, which closes any open position.
//
// The band is read from the candidate's own post-trade gamma rather than the current book,
// so an unchanged market always produces the same request.
func (s *Sizer) Size(req Request) Result {
	res := Result{Zone: models.GammaZoneGreen, Factor: 1.0}

	dir := req.Stance.Direction()
	if dir == 0 || req.Equity <= 0 || req.Bar.OptionMid <= 0 {
		return res
	}

	full := s.contracts(req, 1.0)
	res.GammaExposure = float64(dir*full) * req.Bar.Gamma * models.ContractMultiplier
	res.Zone, res.Factor = s.Band(res.GammaExposure)
	if res.Factor < 1.0 {
		full = s.contracts(req, res.Factor)
	}

	res.Contracts = dir * full
	return res
}

func (s *Sizer) contracts(req Request, factor float64) int {
	n := s.capitalAtRiskContracts(req.Equity, factor, req.Bar.OptionMid)
	if req.Stance == models.StanceLongVol && s.cfg.LongVegaBudgetRatio > 0 && req.Bar.Vega > 0 {
		n = min(n, s.vegaBudgetContracts(req.Equity, factor, req.Bar.Vega))
	}
	return n
}

// capitalAtRiskContracts keeps premium at or below the capital-at-risk share of equity.
func (s *Sizer) capitalAtRiskContracts(equity, factor, mid float64) int {
	budget := equity * s.cfg.MaxCapitalAtRiskPct * clamp01(factor)
	return floorContracts(budget / (mid * models.ContractMultiplier))
}

func (s *Sizer) vegaBudgetContracts(equity, factor, vega float64) int {
	budget := equity * s.cfg.LongVegaBudgetRatio * clamp01(factor)
	return floorContracts(budget / (vega * models.ContractMultiplier))
}

func floorContracts(x float64) int {
	if x <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	// absorb representation error so exact budgets are not floored one contract short
	return int(math.Floor(x + 1e-9))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
