package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidConfig = errors.New("invalid configuration")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report keys the way they are written in config.yaml
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field ranges and the relations between fields. Every failure wraps
// ErrInvalidConfig and names the offending key.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for _, check := range []func(*Config) error{
		checkSignal,
		checkAdaptive,
		checkRisk,
		checkWindow,
	} {
		if err := check(c); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := keyPath(fe.Namespace())
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s, got %v", field, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s, got %v", field, fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be less than %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// keyPath turns "Config.risk.max_leverage" into "risk.max_leverage".
func keyPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	keep := parts[:0]
	for _, p := range parts[1:] {
		// squashed embedded structs show up under their Go type name
		if p == "Config" || p == "Bands" {
			continue
		}
		keep = append(keep, p)
	}
	return strings.Join(keep, ".")
}

func checkSignal(c *Config) error {
	if c.Signal.RVShortWindow > c.Signal.RVMediumWindow {
		return fmt.Errorf("signal.rv_short_window must not exceed rv_medium_window, got %d > %d",
			c.Signal.RVShortWindow, c.Signal.RVMediumWindow)
	}
	return nil
}

func checkAdaptive(c *Config) error {
	a := c.Strategy.Adaptive
	switch {
	case a.ShortEdgeExit > a.ShortEdgeEnter:
		return fmt.Errorf("strategy.adaptive.short_edge_exit must be <= short_edge_enter, got %v > %v",
			a.ShortEdgeExit, a.ShortEdgeEnter)
	case a.ShortTrendExit < a.ShortTrendEnter:
		return fmt.Errorf("strategy.adaptive.short_trend_exit must be >= short_trend_enter, got %v < %v",
			a.ShortTrendExit, a.ShortTrendEnter)
	case a.LongCheapnessExit > a.LongCheapnessEnter:
		return fmt.Errorf("strategy.adaptive.long_cheapness_exit must be <= long_cheapness_enter, got %v > %v",
			a.LongCheapnessExit, a.LongCheapnessEnter)
	case a.VovLow >= a.VovHigh:
		return fmt.Errorf("strategy.adaptive.vov_low must be below vov_high, got %v >= %v", a.VovLow, a.VovHigh)
	case a.VovExit < a.VovLow || a.VovExit > a.VovHigh:
		return fmt.Errorf("strategy.adaptive.vov_exit must lie within [vov_low, vov_high], got %v", a.VovExit)
	}
	return nil
}

func checkRisk(c *Config) error {
	r := c.Risk
	switch {
	case r.GammaYellow >= r.GammaRed:
		return fmt.Errorf("risk.gamma_yellow_threshold must be below gamma_red_threshold, got %v >= %v",
			r.GammaYellow, r.GammaRed)
	case r.RedFactor > r.YellowFactor:
		return fmt.Errorf("risk.red_size_factor must not exceed yellow_size_factor, got %v > %v",
			r.RedFactor, r.YellowFactor)
	case r.ThrottleThreshold >= r.KillThreshold:
		return fmt.Errorf("risk.global_drawdown_throttle_threshold must be below the kill threshold, got %v >= %v",
			r.ThrottleThreshold, r.KillThreshold)
	}
	return nil
}

func checkWindow(c *Config) error {
	start, end, err := c.Window()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("replay.end must not precede replay.start, got %s < %s", c.Replay.End, c.Replay.Start)
	}
	return nil
}
