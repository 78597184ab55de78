package risk

import (
	"errors"
	"testing"

	"ewmabot/internal/strategy"
)

func TestGateRejectsDuringWarmup(t *testing.T) {
	gate := Gate{}
	ctx := Context{
		SamplesSeen:   10,
		WarmupSamples: 10,
		Price:         100,
	}

	err := gate.Evaluate(strategy.Buy, ctx)
	if err == nil {
		t.Fatalf("expected warmup rejection at exactly the warmup count")
	}
	if !errors.Is(err, ErrTradingLimits) {
		t.Fatalf("expected ErrTradingLimits, got %v", err)
	}
}

func TestGateApprovesAfterWarmup(t *testing.T) {
	gate := Gate{}
	ctx := Context{
		SamplesSeen:   11,
		WarmupSamples: 10,
		Price:         100,
	}

	if err := gate.Evaluate(strategy.Buy, ctx); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}
}

func TestGateAlwaysPassesHold(t *testing.T) {
	gate := Gate{}
	ctx := Context{KillSwitch: true}

	if err := gate.Evaluate(strategy.Hold, ctx); err != nil {
		t.Fatalf("expected HOLD to pass, got %v", err)
	}
}

func TestGateRejectsKillSwitch(t *testing.T) {
	gate := Gate{}
	ctx := Context{
		SamplesSeen:   20,
		WarmupSamples: 10,
		KillSwitch:    true,
	}

	if err := gate.Evaluate(strategy.Buy, ctx); err == nil {
		t.Fatalf("expected kill switch rejection")
	}
}

func TestGateRejectsSellWhileFlat(t *testing.T) {
	gate := Gate{}
	ctx := Context{
		SamplesSeen:   20,
		WarmupSamples: 10,
		PositionQty:   0,
	}

	if err := gate.Evaluate(strategy.Sell, ctx); err == nil {
		t.Fatalf("expected sell-while-flat rejection")
	}
}

func TestCheckNotional(t *testing.T) {
	gate := Gate{}

	if err := gate.CheckNotional(5, 100, 400); err == nil {
		t.Fatalf("expected notional cap rejection")
	}
	if err := gate.CheckNotional(5, 100, 500); err != nil {
		t.Fatalf("expected notional within cap, got %v", err)
	}
	if err := gate.CheckNotional(1000, 100, 0); err != nil {
		t.Fatalf("expected disabled cap to pass, got %v", err)
	}
}
