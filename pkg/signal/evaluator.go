// Package signal derives the per-bar volatility features the stance modules consume.
package signal

import (
	"math"

	"github.com/gregtusar/volhedge/pkg/models"
)

type Config struct {
	RVShortWindow  int `mapstructure:"rv_short_window" validate:"gte=1" yaml:"rv_short_window"`
	RVMediumWindow int `mapstructure:"rv_medium_window" validate:"gte=1" yaml:"rv_medium_window"`
	TrendWindow    int `mapstructure:"trend_window" validate:"gte=1" yaml:"trend_window"`
}

func DefaultConfig() Config {
	return Config{
		RVShortWindow:  30,
		RVMediumWindow: 240,
		TrendWindow:    120,
	}
}

func DailyConfig() Config {
	return Config{
		RVShortWindow:  5,
		RVMediumWindow: 20,
		TrendWindow:    20,
	}
}

// Warmup is the number of bars needed before a snapshot is defined.
func (c Config) Warmup() int {
	return max(c.RVShortWindow, c.RVMediumWindow, c.TrendWindow, 1)
}

// Evaluate computes the snapshot for the last bar of window. The result is not Ready while the
// window is shorter than the warm-up length.
func Evaluate(window []models.Bar, cfg Config) models.SignalSnapshot {
	n := len(window)
	if n == 0 || n < cfg.Warmup() {
		return models.SignalSnapshot{}
	}

	current := window[n-1]
	rvShort := meanRealizedVol(window, cfg.RVShortWindow)
	rvMedium := meanRealizedVol(window, cfg.RVMediumWindow)
	edge := current.ImpliedVol - rvShort

	var velocity, jump float64
	if n > 1 {
		prev := window[n-2]
		prevEdge := prev.ImpliedVol - meanRealizedVol(window[:n-1], cfg.RVShortWindow)
		velocity = edge - prevEdge
		if prev.Spot > 0 && current.Spot > 0 {
			jump = math.Abs(math.Log(current.Spot / prev.Spot))
		}
	}

	var trend float64
	if avg := meanSpot(window, cfg.TrendWindow); avg > 0 {
		trend = math.Abs(current.Spot/avg - 1)
	}

	return models.SignalSnapshot{
		Ready:         true,
		RVShort:       rvShort,
		RVMedium:      rvMedium,
		Edge:          edge,
		EdgeVelocity:  velocity,
		VolOfVol:      math.Abs(rvShort - rvMedium),
		RVRise:        rvShort - rvMedium,
		TrendStrength: trend,
		JumpAbsReturn: jump,
		Cheapness:     -edge,
	}
}

func meanRealizedVol(bars []models.Bar, window int) float64 {
	tail := lastN(bars, window)
	if len(tail) == 0 {
		return 0
	}
	var sum float64
	for _, b := range tail {
		sum += b.RealizedVol
	}
	return sum / float64(len(tail))
}

func meanSpot(bars []models.Bar, window int) float64 {
	tail := lastN(bars, window)
	if len(tail) == 0 {
		return 0
	}
	var sum float64
	for _, b := range tail {
		sum += b.Spot
	}
	return sum / float64(len(tail))
}

func lastN(bars []models.Bar, n int) []models.Bar {
	if n <= 0 || n >= len(bars) {
		return bars
	}
	return bars[len(bars)-n:]
}
