// Package metrics exposes replay progress as Prometheus series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gregtusar/volhedge/pkg/models"
)

const namespace = "volhedge"

// Recorder observes replay runs. It registers on its own registry so several recorders can
// coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	bars          *prometheus.CounterVec
	events        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	equity        *prometheus.GaugeVec
	drawdown      *prometheus.GaugeVec
	gamma         *prometheus.GaugeVec
	vega          *prometheus.GaugeVec
	leverage      *prometheus.GaugeVec
	contracts     *prometheus.GaugeVec
	killed        *prometheus.GaugeVec
	totalPnL      *prometheus.GaugeVec
	trades        *prometheus.GaugeVec
	completedRuns *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		bars: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bars_processed_total",
				Help:      "Bars replayed per mode",
			},
			[]string{"mode"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Structured simulation events by kind",
			},
			[]string{"mode", "kind"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stance_transitions_total",
				Help:      "Stance transitions by destination stance",
			},
			[]string{"mode", "to"},
		),
		equity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "equity",
				Help:      "Mark-to-market equity after the latest bar",
			},
			[]string{"mode"},
		),
		drawdown: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "drawdown_ratio",
				Help:      "Drawdown from peak equity",
			},
			[]string{"mode"},
		),
		gamma: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gamma_exposure",
				Help:      "Book gamma exposure",
			},
			[]string{"mode"},
		),
		vega: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vega_exposure",
				Help:      "Book vega exposure",
			},
			[]string{"mode"},
		),
		leverage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "leverage_ratio",
				Help:      "Gross notional over equity",
			},
			[]string{"mode"},
		),
		contracts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "option_contracts",
				Help:      "Signed option contracts held",
			},
			[]string{"mode"},
		),
		killed: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "kill_latched",
				Help:      "1 while the kill switch holds the book flat",
			},
			[]string{"mode"},
		),
		totalPnL: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_total_pnl",
				Help:      "Total PnL of the last completed run",
			},
			[]string{"mode"},
		),
		trades: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_trades",
				Help:      "Executed legs in the last completed run",
			},
			[]string{"mode"},
		),
		completedRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Completed replay runs",
			},
			[]string{"mode"},
		),
	}
}

// Registry is what /metrics should gather from.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) OnStep(mode models.Mode, row models.StepRow) {
	m := string(mode)
	r.bars.WithLabelValues(m).Inc()
	r.equity.WithLabelValues(m).Set(row.Equity)
	r.drawdown.WithLabelValues(m).Set(row.Drawdown)
	r.gamma.WithLabelValues(m).Set(row.GammaExposure)
	r.vega.WithLabelValues(m).Set(row.VegaExposure)
	r.leverage.WithLabelValues(m).Set(row.Leverage)
	r.contracts.WithLabelValues(m).Set(float64(row.Contracts))

	killed := 0.0
	if row.Killed {
		killed = 1
	}
	r.killed.WithLabelValues(m).Set(killed)
}

func (r *Recorder) OnEvent(mode models.Mode, ev models.Event) {
	r.events.WithLabelValues(string(mode), string(ev.Kind)).Inc()
	if ev.Kind == models.EventStanceTransition {
		r.transitions.WithLabelValues(string(mode), string(ev.To)).Inc()
	}
}

func (r *Recorder) OnComplete(mode models.Mode, s models.Summary) {
	m := string(mode)
	r.totalPnL.WithLabelValues(m).Set(s.TotalPnL)
	r.trades.WithLabelValues(m).Set(float64(s.Trades))
	r.completedRuns.WithLabelValues(m).Inc()
}
