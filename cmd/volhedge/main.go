package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gregtusar/volhedge/api"
	"github.com/gregtusar/volhedge/internal/config"
	"github.com/gregtusar/volhedge/internal/logging"
	"github.com/gregtusar/volhedge/pkg/marketdata"
	"github.com/gregtusar/volhedge/pkg/metrics"
	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/replay"
	"github.com/gregtusar/volhedge/pkg/report"
)

// startup failures are written here and exit through exitFunc; tests swap both
var (
	startupOut io.Writer = os.Stderr
	exitFunc             = os.Exit
)

var (
	cfgFile     string
	modeFlag    string
	pricesFlag  string
	optionsFlag string
	outputFlag  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "volhedge",
		Short: "Delta-hedged options volatility strategy replay",
		Long: `Replays aligned underlying and option bars through the volatility stance, sizing, risk and
hedging pipeline and writes an auditable record of every decision.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "short, long, adaptive, both or all (overrides replay.mode)")
	rootCmd.PersistentFlags().StringVar(&pricesFlag, "prices", "", "underlying CSV (overrides replay.prices_path)")
	rootCmd.PersistentFlags().StringVar(&optionsFlag, "options", "", "option CSV (overrides replay.options_path)")
	rootCmd.PersistentFlags().StringVar(&outputFlag, "output", "", "results directory (overrides replay.output_dir)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Replay the configured modes and write results",
			RunE:  runReplay,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Replay the configured modes and serve results over HTTP",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check configuration and input data without replaying",
			RunE:  runValidate,
		},
		tokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session is what every subcommand needs before the first bar.
type session struct {
	cfg    *config.Config
	logger *logrus.Logger
	close  func() error
	bars   []models.Bar
	modes  []models.Mode
}

func setup(loadBars bool) (*session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)

	logger, closeLog, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, close: closeLog}

	mode, err := replay.ParseMode(cfg.Replay.Mode)
	if err != nil {
		return nil, err
	}
	s.modes = replay.ExpandModes(mode)

	if !loadBars {
		return s, nil
	}
	if cfg.Replay.PricesPath == "" || cfg.Replay.OptionsPath == "" {
		return nil, fmt.Errorf("%w: replay.prices_path and replay.options_path are required", config.ErrInvalidConfig)
	}

	bars, err := marketdata.LoadFiles(cfg.Replay.PricesPath, cfg.Replay.OptionsPath)
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	s.bars = marketdata.Between(bars, start, end)
	if len(s.bars) == 0 {
		return nil, fmt.Errorf("%w: no bars between %q and %q", marketdata.ErrDataContract, cfg.Replay.Start, cfg.Replay.End)
	}

	if cfg.ApplyDailyPreset(s.bars) {
		logger.Info("Daily bars detected, applying daily signal and strategy preset")
	}

	logger.WithFields(logrus.Fields{
		"bars":   len(s.bars),
		"first":  s.bars[0].Timestamp,
		"last":   s.bars[len(s.bars)-1].Timestamp,
		"warmup": cfg.Signal.Warmup(),
		"modes":  s.modes,
	}).Info("Input loaded")
	return s, nil
}

func applyFlags(cfg *config.Config) {
	if modeFlag != "" {
		cfg.Replay.Mode = modeFlag
	}
	if pricesFlag != "" {
		cfg.Replay.PricesPath = pricesFlag
	}
	if optionsFlag != "" {
		cfg.Replay.OptionsPath = optionsFlag
	}
	if outputFlag != "" {
		cfg.Replay.OutputDir = outputFlag
	}
}

func (s *session) metadata() report.Metadata {
	return report.Metadata{
		PricesPath:  s.cfg.Replay.PricesPath,
		OptionsPath: s.cfg.Replay.OptionsPath,
		Start:       s.cfg.Replay.Start,
		End:         s.cfg.Replay.End,
		Config:      s.cfg,
	}
}

func (s *session) replay(ctx context.Context, observers ...replay.Observer) ([]*replay.Result, error) {
	runner := replay.NewRunner(s.cfg.Simulation(), s.logger, observers...)
	results, err := runner.RunModes(ctx, s.modes, s.bars)
	if err != nil {
		return nil, err
	}

	if _, err := report.NewWriter(s.cfg.Replay.OutputDir, s.logger).WriteAll(results, s.metadata()); err != nil {
		return nil, err
	}
	for _, res := range results {
		s.logger.WithFields(logrus.Fields{
			"mode":          res.Mode,
			"option_mtm":    res.Summary.PnL.OptionMTM,
			"hedge":         res.Summary.PnL.Hedge,
			"fees":          res.Summary.PnL.Fees,
			"slippage":      res.Summary.PnL.Slippage,
			"total_pnl":     res.Summary.TotalPnL,
			"ending_equity": res.Summary.EndingEquity,
			"max_drawdown":  res.Summary.MaxDrawdown,
		}).Info("Run summary")
	}
	return results, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := setup(true)
	if err != nil {
		fatal(err)
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := s.replay(ctx); err != nil {
		s.logger.WithError(err).Error("Replay failed")
		return err
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := setup(true)
	if err != nil {
		fatal(err)
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New()
	hub := api.NewHub(s.logger)
	store := api.NewRunStore()
	if s.cfg.Server.JWTSecret == "" {
		s.logger.Warn("server.jwt_secret is empty, results API is unauthenticated")
	}
	server := api.NewServer(store, hub, recorder.Registry(), s.logger, strconv.Itoa(s.cfg.Server.Port), s.cfg.Server.JWTSecret)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(ctx)
	}()

	results, err := s.replay(ctx, recorder, hub)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).Error("Replay failed")
		stop()
		<-serveErr
		return err
	}
	store.Put(results...)

	s.logger.Info("Results are being served. Press Ctrl+C to stop.")
	if err := <-serveErr; err != nil {
		s.logger.WithError(err).Error("API server stopped")
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := setup(true)
	if err != nil {
		fatal(err)
	}
	defer s.close()

	warmup := s.cfg.Signal.Warmup()
	if len(s.bars) <= warmup {
		s.logger.WithFields(logrus.Fields{
			"bars":   len(s.bars),
			"warmup": warmup,
		}).Warn("Input is no longer than warm-up, every mode will stay FLAT")
	}
	s.logger.Info("Configuration and input are valid")
	return nil
}

func tokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the results API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(false)
			if err != nil {
				fatal(err)
			}
			defer s.close()

			token, err := api.IssueToken(s.cfg.Server.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "volhedge-client", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// fatal reports a setup failure before the configured logger exists and exits.
func fatal(err error) {
	logger := logrus.New()
	logger.SetOutput(startupOut)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.ExitFunc = exitFunc
	logger.WithError(err).Fatal("Startup failed")
}
