package replay

import (
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gregtusar/volhedge/pkg/execution"
	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/pnl"
	"github.com/gregtusar/volhedge/pkg/risk"
	"github.com/gregtusar/volhedge/pkg/signal"
	"github.com/gregtusar/volhedge/pkg/sizing"
	"github.com/gregtusar/volhedge/pkg/stance"
)

// simulation is the whole mutable state of one run. Nothing in it is shared with other runs.
type simulation struct {
	mode      models.Mode
	cfg       Config
	window    *signal.Window
	selector  stance.Selector
	sizer     *sizing.Sizer
	risk      *risk.Engine
	exec      *execution.Engine
	tracker   *pnl.Tracker
	state     models.PortfolioState
	pending   int
	prev      *models.Bar
	result    *Result
	observers []Observer
	progress  *rate.Sometimes
	logger    *logrus.Entry
}

func (r *Runner) newSimulation(mode models.Mode, runID string) (*simulation, error) {
	selector, err := stance.NewSelector(mode, r.cfg.Stance)
	if err != nil {
		return nil, err
	}
	exec := execution.NewEngine(r.cfg.Execution, string(mode))

	sim := &simulation{
		mode:      mode,
		cfg:       r.cfg,
		window:    signal.NewWindow(r.cfg.Signal),
		selector:  selector,
		sizer:     sizing.NewSizer(r.cfg.Sizing),
		risk:      risk.NewEngine(r.cfg.Risk, exec),
		exec:      exec,
		tracker:   pnl.NewTracker(r.cfg.InitialCapital),
		state:     models.PortfolioState{Cash: r.cfg.InitialCapital},
		observers: r.observers,
		logger:    r.logger.WithFields(logrus.Fields{"mode": mode, "run_id": runID}),
		result: &Result{
			RunID:  runID,
			Mode:   mode,
			Warmup: r.cfg.Signal.Warmup(),
		},
	}
	if r.cfg.ProgressEvery > 0 {
		sim.progress = &rate.Sometimes{Every: r.cfg.ProgressEvery}
	}
	return sim, nil
}

// step processes bar i: mark, fill the target decided on the previous bar, then decide the
// next target from this bar's data.
func (s *simulation) step(i int, bar models.Bar) {
	var barPnL models.PnLBreakdown
	if s.prev != nil {
		barPnL = barPnL.Add(s.exec.Mark(&s.state, *s.prev, bar))
	}

	equityBefore := s.state.Equity(bar)
	target, clipReasons := s.risk.Refit(s.pending, s.state, bar, equityBefore)
	if target != s.pending {
		s.emit(models.Event{
			Bar:       i,
			Timestamp: bar.Timestamp,
			Kind:      models.EventFillClip,
			Reason:    strings.Join(clipReasons, "|"),
			Requested: s.pending,
			Executed:  target,
			Drawdown:  s.tracker.Peek(equityBefore),
		})
	}
	fill := s.exec.Fill(&s.state, target, bar, i)
	barPnL = barPnL.Add(fill.Costs)
	s.tracker.Record(barPnL)
	s.result.Trades = append(s.result.Trades, fill.Trades...)

	s.tracker.Update(s.state.Equity(bar))
	snapshot := s.tracker.Snapshot(s.state, bar)

	s.window.Push(bar)
	signals := signal.Evaluate(s.window.Bars(), s.cfg.Signal)

	decision := s.selector.Next(signals, s.risk.Killed())
	if decision.Changed() {
		s.transition(i, bar, decision, snapshot)
	}

	sized := s.sizer.Size(sizing.Request{
		Stance: decision.Stance,
		Equity: snapshot.Equity,
		Bar:    bar,
	})
	verdict := s.risk.Evaluate(sized.Contracts, s.state, snapshot, bar)
	s.riskEvents(i, bar, verdict, snapshot)
	s.pending = verdict.Executed

	row := models.StepRow{
		Bar:           i,
		Timestamp:     bar.Timestamp,
		Stance:        s.selector.Stance(),
		Spot:          bar.Spot,
		OptionMid:     bar.OptionMid,
		Edge:          signals.Edge,
		VolOfVol:      signals.VolOfVol,
		TrendStrength: signals.TrendStrength,
		Cheapness:     signals.Cheapness,
		Requested:     verdict.Requested,
		Executed:      verdict.Executed,
		Contracts:     s.state.Contracts,
		Shares:        s.state.Shares,
		NetDelta:      snapshot.NetDelta,
		GammaExposure: snapshot.GammaExposure,
		VegaExposure:  snapshot.VegaExposure,
		Leverage:      snapshot.Leverage,
		Drawdown:      snapshot.Drawdown,
		Equity:        snapshot.Equity,
		PnL:           barPnL,
		GammaZone:     sized.Zone,
		SizeFactor:    sized.Factor,
		Throttled:     verdict.Throttled,
		Killed:        verdict.Killed,
		RiskReason:    verdict.Reason(),
	}
	s.result.Rows = append(s.result.Rows, row)
	for _, o := range s.observers {
		o.OnStep(s.mode, row)
	}

	if s.progress != nil {
		s.progress.Do(func() {
			s.logger.WithFields(logrus.Fields{
				"bar":      i,
				"stance":   row.Stance,
				"equity":   row.Equity,
				"drawdown": row.Drawdown,
			}).Info("Replay progress")
		})
	}

	b := bar
	s.prev = &b
}

func (s *simulation) transition(i int, bar models.Bar, d stance.Decision, snapshot models.RiskSnapshot) {
	s.emit(models.Event{
		Bar:           i,
		Timestamp:     bar.Timestamp,
		Kind:          models.EventStanceTransition,
		From:          d.Previous,
		To:            d.Stance,
		Reason:        d.Reason,
		Drawdown:      snapshot.Drawdown,
		GammaExposure: snapshot.GammaExposure,
	})
}

func (s *simulation) riskEvents(i int, bar models.Bar, v risk.Decision, snapshot models.RiskSnapshot) {
	base := models.Event{
		Bar:           i,
		Timestamp:     bar.Timestamp,
		Requested:     v.Requested,
		Executed:      v.Executed,
		Drawdown:      snapshot.Drawdown,
		GammaExposure: snapshot.GammaExposure,
	}

	if v.ThrottleChanged {
		ev := base
		ev.Kind, ev.Reason = models.EventThrottleOff, "drawdown_recovered"
		if v.Throttled {
			ev.Kind, ev.Reason = models.EventThrottleOn, risk.ReasonThrottle
		}
		s.emit(ev)
	}

	switch {
	case v.KillTriggered:
		ev := base
		ev.Kind, ev.Reason = models.EventKill, v.KillReason
		s.emit(ev)
		s.logger.WithFields(logrus.Fields{
			"bar":            i,
			"reason":         v.KillReason,
			"drawdown":       snapshot.Drawdown,
			"gamma_exposure": snapshot.GammaExposure,
		}).Warn("Kill switch triggered, flattening")

		if d := s.selector.ForceFlat("kill:" + v.KillReason); d.Changed() {
			s.transition(i, bar, d, snapshot)
		}
	case v.KillCleared:
		ev := base
		ev.Kind, ev.Reason = models.EventKillCleared, "drawdown_below_kill_threshold"
		s.emit(ev)
		s.logger.WithField("bar", i).Info("Kill latch cleared")
	case v.Clipped() && !v.Killed:
		ev := base
		ev.Kind, ev.Reason = models.EventRiskClip, v.Reason()
		s.emit(ev)
	}
}

func (s *simulation) emit(ev models.Event) {
	s.result.Events = append(s.result.Events, ev)
	for _, o := range s.observers {
		o.OnEvent(s.mode, ev)
	}
}

func (s *simulation) finish(bars int) *Result {
	summary := s.tracker.Summary(s.mode, bars)
	summary.Trades = len(s.result.Trades)
	for _, ev := range s.result.Events {
		switch ev.Kind {
		case models.EventStanceTransition:
			summary.Transitions++
		case models.EventKill:
			summary.Kills++
		}
	}
	s.result.Summary = summary
	return s.result
}
