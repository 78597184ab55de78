// Package risk gates signals before any order is built. The checks here are
// deliberately thin: the warm-up gate, the kill switch, and hard position and
// notional limits. Sizing itself belongs to the trader.
package risk

import (
	"errors"
	"fmt"
	"log/slog"

	"ewmabot/internal/strategy"
)

// ErrTradingLimits marks a signal the gate refused to act on. The loop logs
// it and continues with the next cycle.
var ErrTradingLimits = errors.New("trading limits exceeded")

type Context struct {
	SamplesSeen   int
	WarmupSamples int
	PositionQty   int
	Price         float64
	MaxNotional   float64
	KillSwitch    bool
}

type Gate struct{}

// Evaluate decides whether the executor may act on the signal. HOLD always
// passes; signals during warm-up are rejected even when the crossover
// condition is met, so the first WarmupSamples bars can never trade.
func (g Gate) Evaluate(signal strategy.Signal, ctx Context) error {
	if signal == strategy.Hold {
		return nil
	}

	if ctx.SamplesSeen <= ctx.WarmupSamples {
		slog.Info("risk rejected", "reason", "warmup_active", "samples", ctx.SamplesSeen, "required", ctx.WarmupSamples+1)
		return fmt.Errorf("%w: warmup_active", ErrTradingLimits)
	}
	if ctx.KillSwitch {
		slog.Info("risk rejected", "reason", "kill_switch_enabled")
		return fmt.Errorf("%w: kill_switch_enabled", ErrTradingLimits)
	}
	if signal == strategy.Sell && ctx.PositionQty <= 0 {
		slog.Info("risk rejected", "reason", "no_position_to_sell")
		return fmt.Errorf("%w: no_position_to_sell", ErrTradingLimits)
	}

	slog.Info("risk approved", "signal", signal, "position", ctx.PositionQty, "price", ctx.Price)
	return nil
}

// CheckNotional enforces the optional per-order notional cap once a quantity
// is known. A zero MaxNotional disables the check.
func (g Gate) CheckNotional(qty int, price, maxNotional float64) error {
	if maxNotional <= 0 {
		return nil
	}
	notional := price * float64(qty)
	if notional > maxNotional {
		slog.Info("risk rejected", "reason", "max_notional_exceeded", "notional", notional, "max", maxNotional)
		return fmt.Errorf("%w: max_notional_exceeded", ErrTradingLimits)
	}
	return nil
}
