// Package risk clips requested option exposure to the hard caps and runs the drawdown
// throttle and kill switch.
package risk

import (
	"math"
	"strings"

	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/sizing"
)

const epsilon = 1e-9

const (
	ReasonGammaCap          = "GAMMA_CAP"
	ReasonVegaCap           = "VEGA_CAP"
	ReasonCapitalAtRisk     = "CAPITAL_AT_RISK_CAP"
	ReasonLeverageCap       = "LEVERAGE_CAP"
	ReasonThrottle          = "GLOBAL_DRAWDOWN_THROTTLE"
	ReasonGammaKill         = "GAMMA_RED_DRAWDOWN_KILL"
	ReasonGlobalKill        = "GLOBAL_DRAWDOWN_KILL"
	ReasonKillLatched       = "KILL_LATCHED"
	ReasonNonPositiveEquity = "NON_POSITIVE_EQUITY"
)

type Config struct {
	MaxCapitalAtRiskPct float64 `mapstructure:"max_capital_at_risk_pct" validate:"gt=0,lte=1" yaml:"max_capital_at_risk_pct"`
	MaxLeverage         float64 `mapstructure:"max_leverage" validate:"gt=0" yaml:"max_leverage"`
	MaxAbsGamma         float64 `mapstructure:"max_abs_gamma" validate:"gt=0" yaml:"max_abs_gamma"`
	MaxAbsVega          float64 `mapstructure:"max_abs_vega" validate:"gt=0" yaml:"max_abs_vega"`
	sizing.Bands        `mapstructure:",squash" yaml:",inline"`
	GammaKillDrawdown   float64 `mapstructure:"gamma_kill_drawdown" validate:"gt=0,lt=1" yaml:"gamma_kill_drawdown"`
	ThrottleThreshold   float64 `mapstructure:"global_drawdown_throttle_threshold" validate:"gt=0,lt=1" yaml:"global_drawdown_throttle_threshold"`
	ThrottleSizeFactor  float64 `mapstructure:"global_drawdown_throttle_size_factor" validate:"gt=0,lte=1" yaml:"global_drawdown_throttle_size_factor"`
	KillThreshold       float64 `mapstructure:"global_drawdown_kill_threshold" validate:"gt=0,lt=1" yaml:"global_drawdown_kill_threshold"`
}

func DefaultConfig() Config {
	return Config{
		MaxCapitalAtRiskPct: sizing.DefaultMaxCapitalAtRiskPct,
		MaxLeverage:         6.0,
		MaxAbsGamma:         75,
		MaxAbsVega:          300,
		Bands:               sizing.DefaultBands(),
		GammaKillDrawdown:   0.12,
		ThrottleThreshold:   0.10,
		ThrottleSizeFactor:  0.50,
		KillThreshold:       0.20,
	}
}

// Projector prices a hypothetical fill so leverage can be checked on the post-trade book.
type Projector interface {
	Project(state models.PortfolioState, target int, bar models.Bar) models.Projection
}

// Decision keeps the requested and executed sizes side by side for the audit trail.
type Decision struct {
	Requested       int
	Executed        int
	Reasons         []string
	Throttled       bool
	ThrottleChanged bool
	Killed          bool
	KillTriggered   bool
	KillCleared     bool
	KillReason      string
}

func (d Decision) Clipped() bool {
	return d.Executed != d.Requested
}

func (d Decision) Reason() string {
	return strings.Join(d.Reasons, "|")
}

// Engine is stateful only in its throttle and kill latches; one per run.
type Engine struct {
	cfg       Config
	projector Projector
	throttled bool
	killed    bool
}

func NewEngine(cfg Config, projector Projector) *Engine {
	return &Engine{cfg: cfg, projector: projector}
}

func (e *Engine) Killed() bool {
	return e.killed
}

// Evaluate turns a requested size into the executed target for the next bar.
func (e *Engine) Evaluate(requested int, state models.PortfolioState, snap models.RiskSnapshot, bar models.Bar) Decision {
	d := Decision{Requested: requested}

	size, reasons := e.fit(requested, state, bar, snap.Equity, true)
	d.Reasons = append(d.Reasons, reasons...)

	throttled := snap.Drawdown >= e.cfg.ThrottleThreshold
	d.ThrottleChanged = throttled != e.throttled
	e.throttled = throttled
	d.Throttled = throttled
	if throttled && size != 0 {
		size = int(float64(size) * e.cfg.ThrottleSizeFactor)
		d.Reasons = append(d.Reasons, ReasonThrottle)
	}

	killReason := e.killCondition(snap)
	switch {
	case killReason != "" && !e.killed:
		e.killed = true
		d.KillTriggered = true
		d.KillReason = killReason
	case killReason == "" && e.killed:
		e.killed = false
		d.KillCleared = true
	}
	d.Killed = e.killed
	if e.killed {
		if d.KillTriggered {
			d.Reasons = append(d.Reasons, killReason)
		} else {
			d.Reasons = append(d.Reasons, ReasonKillLatched)
		}
		size = 0
	}

	d.Executed = size
	return d
}

// Refit re-checks a pending target against the gamma, vega and leverage caps with the fill
// bar's greeks. The result never exceeds the target in size and never flips its sign.
func (e *Engine) Refit(target int, state models.PortfolioState, bar models.Bar, equity float64) (int, []string) {
	return e.fit(target, state, bar, equity, false)
}

func (e *Engine) killCondition(snap models.RiskSnapshot) string {
	switch {
	case snap.Drawdown >= e.cfg.KillThreshold:
		return ReasonGlobalKill
	case math.Abs(snap.GammaExposure) > e.cfg.GammaRed && snap.Drawdown > e.cfg.GammaKillDrawdown:
		return ReasonGammaKill
	}
	return ""
}

func (e *Engine) fit(target int, state models.PortfolioState, bar models.Bar, equity float64, withCapital bool) (int, []string) {
	if target == 0 {
		return 0, nil
	}
	if equity <= 0 {
		return 0, []string{ReasonNonPositiveEquity}
	}

	sign, size := 1, target
	if target < 0 {
		sign, size = -1, -target
	}

	if e.violation(sign*size, state, bar, equity, withCapital) == "" {
		return target, nil
	}

	// largest feasible size; zero is always feasible because an empty book has no exposure
	lo, hi := 0, size
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if e.violation(sign*mid, state, bar, equity, withCapital) == "" {
			lo = mid
		} else {
			hi = mid
		}
	}
	// hi is the smallest infeasible size, so its violation is the cap that actually binds
	return sign * lo, []string{e.violation(sign*hi, state, bar, equity, withCapital)}
}

// violation names the first cap the candidate breaks, or returns "".
func (e *Engine) violation(contracts int, state models.PortfolioState, bar models.Bar, equity float64, withCapital bool) string {
	n := float64(contracts)
	if math.Abs(n*bar.Gamma*models.ContractMultiplier) > e.cfg.MaxAbsGamma+epsilon {
		return ReasonGammaCap
	}
	if math.Abs(n*bar.Vega*models.ContractMultiplier) > e.cfg.MaxAbsVega+epsilon {
		return ReasonVegaCap
	}

	premium := math.Abs(n * bar.OptionMid * models.ContractMultiplier)
	if withCapital && premium > e.cfg.MaxCapitalAtRiskPct*equity+epsilon {
		return ReasonCapitalAtRisk
	}

	proj := e.projector.Project(state, contracts, bar)
	notional := premium + math.Abs(float64(proj.Shares)*bar.Spot)
	if notional == 0 {
		return ""
	}
	postTrade := equity - proj.Costs()
	if postTrade <= 0 || notional/postTrade > e.cfg.MaxLeverage+epsilon {
		return ReasonLeverageCap
	}
	return ""
}
