// Package replay drives bars through signal, stance, sizing, risk and execution for one or
// more independent strategy runs.
package replay

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gregtusar/volhedge/pkg/execution"
	"github.com/gregtusar/volhedge/pkg/marketdata"
	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/risk"
	"github.com/gregtusar/volhedge/pkg/signal"
	"github.com/gregtusar/volhedge/pkg/sizing"
	"github.com/gregtusar/volhedge/pkg/stance"
)

// Config is the immutable snapshot every run reads from.
type Config struct {
	InitialCapital float64
	ProgressEvery  int
	Signal         signal.Config
	Stance         stance.Config
	Sizing         sizing.Config
	Risk           risk.Config
	Execution      execution.Config
}

// Observer receives a run's output as it is produced. Sub-runs call it concurrently.
type Observer interface {
	OnStep(mode models.Mode, row models.StepRow)
	OnEvent(mode models.Mode, event models.Event)
	OnComplete(mode models.Mode, summary models.Summary)
}

type Result struct {
	RunID   string               `json:"run_id"`
	Mode    models.Mode          `json:"mode"`
	Warmup  int                  `json:"warmup"`
	Rows    []models.StepRow     `json:"-"`
	Events  []models.Event       `json:"-"`
	Trades  []models.TradeRecord `json:"-"`
	Summary models.Summary       `json:"summary"`
}

type Runner struct {
	cfg       Config
	logger    *logrus.Logger
	observers []Observer
}

func NewRunner(cfg Config, logger *logrus.Logger, observers ...Observer) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    logger,
		observers: observers,
	}
}

func ParseMode(s string) (models.Mode, error) {
	mode := models.Mode(strings.ToLower(strings.TrimSpace(s)))
	switch mode {
	case models.ModeShort, models.ModeLong, models.ModeAdaptive, models.ModeBoth, models.ModeAll:
		return mode, nil
	}
	return "", fmt.Errorf("unknown mode %q (want short, long, adaptive, both or all)", s)
}

// ExpandModes resolves composite modes into the single-book runs they stand for.
func ExpandModes(mode models.Mode) []models.Mode {
	switch mode {
	case models.ModeBoth:
		return []models.Mode{models.ModeShort, models.ModeLong}
	case models.ModeAll:
		return []models.Mode{models.ModeShort, models.ModeLong, models.ModeAdaptive}
	default:
		return []models.Mode{mode}
	}
}

// Run replays bars for one single-book mode.
func (r *Runner) Run(ctx context.Context, mode models.Mode, bars []models.Bar) (*Result, error) {
	if err := checkBars(bars); err != nil {
		return nil, err
	}
	sim, err := r.newSimulation(mode, uuid.NewString())
	if err != nil {
		return nil, err
	}

	log := r.logger.WithFields(logrus.Fields{"mode": mode, "run_id": sim.result.RunID})
	log.WithFields(logrus.Fields{
		"bars":   len(bars),
		"warmup": sim.result.Warmup,
	}).Info("Starting replay")

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay %s aborted at bar %d: %w", mode, i, err)
		}
		sim.step(i, bar)
	}

	res := sim.finish(len(bars))
	for _, o := range r.observers {
		o.OnComplete(mode, res.Summary)
	}

	log.WithFields(logrus.Fields{
		"total_pnl":     res.Summary.TotalPnL,
		"ending_equity": res.Summary.EndingEquity,
		"max_drawdown":  res.Summary.MaxDrawdown,
		"trades":        res.Summary.Trades,
		"kills":         res.Summary.Kills,
	}).Info("Replay complete")
	return res, nil
}

// RunModes runs independent books concurrently. Results keep the order of modes.
func (r *Runner) RunModes(ctx context.Context, modes []models.Mode, bars []models.Bar) ([]*Result, error) {
	results := make([]*Result, len(modes))
	g, ctx := errgroup.WithContext(ctx)
	for i, mode := range modes {
		i, mode := i, mode
		g.Go(func() error {
			res, err := r.Run(ctx, mode, bars)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkBars(bars []models.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: no bars to replay", marketdata.ErrDataContract)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d at %s is not after %s", marketdata.ErrDataContract,
				i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
	}
	return nil
}
