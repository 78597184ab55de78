// Package engine runs the trading loop: poll the latest price, update the
// crossover signal, gate it, and hand approved signals to the executor. At
// the configured wall-clock cutoff the engine liquidates the position once
// and stops.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ewmabot/internal/broker"
	"ewmabot/internal/config"
	"ewmabot/internal/journal"
	"ewmabot/internal/marketdata"
	"ewmabot/internal/metrics"
	"ewmabot/internal/risk"
	"ewmabot/internal/session"
	"ewmabot/internal/strategy"
	"ewmabot/internal/trader"
)

// PriceSource provides the latest minute-bar close.
type PriceSource interface {
	LatestClose(ctx context.Context, symbol string) (float64, error)
}

// AccountSource provides the buying power used to size buys.
type AccountSource interface {
	Account(ctx context.Context) (broker.Account, error)
}

type Engine struct {
	cfg        config.Config
	prices     PriceSource
	accounts   AccountSource
	signal     *strategy.DualEWMA
	gate       risk.Gate
	trader     *trader.Trader
	session    *session.Session
	decisions  *DecisionLogger
	journal    *journal.Journal
	loc        *time.Location
	cutoffHour int
	cutoffMin  int
	now        func() time.Time
}

func New(cfg config.Config, prices PriceSource, accounts AccountSource, tr *trader.Trader, sess *session.Session, decisions *DecisionLogger, jrnl *journal.Journal) (*Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	hour, minute, err := config.ParseClock(cfg.LiquidateAt)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		prices:     prices,
		accounts:   accounts,
		signal:     strategy.NewDualEWMA(cfg.ShortSpan, cfg.LongSpan),
		trader:     tr,
		session:    sess,
		decisions:  decisions,
		journal:    jrnl,
		loc:        loc,
		cutoffHour: hour,
		cutoffMin:  minute,
		now:        time.Now,
	}, nil
}

// Run executes cycles until the liquidation cutoff or ctx cancellation.
// Domain errors are logged and the loop continues with the next cycle;
// anything unclassified terminates the loop so the process never keeps
// trading on unknown state.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("starting trading loop", "symbol", e.cfg.Symbol,
		"short_span", e.cfg.ShortSpan, "long_span", e.cfg.LongSpan,
		"poll_interval", e.cfg.PollInterval, "liquidate_at", e.cfg.LiquidateAt)

	for {
		if e.pastCutoff() {
			return e.liquidate(ctx)
		}

		if err := e.Cycle(ctx); err != nil {
			if !recoverable(err) {
				slog.Error("unexpected error, stopping loop", "error", err)
				return err
			}
			slog.Warn("cycle failed, continuing", "error", err)
		}

		if err := waitCycle(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// Cycle performs one fetch-signal-act pass.
func (e *Engine) Cycle(ctx context.Context) error {
	decision := Decision{
		RunID:     e.trader.RunID(),
		Timestamp: e.now().UTC(),
		Symbol:    e.cfg.Symbol,
	}

	price, err := e.prices.LatestClose(ctx, e.cfg.Symbol)
	if err != nil {
		metrics.DataFetchFailuresTotal.WithLabelValues(e.cfg.Symbol).Inc()
		decision.Result = "fetch_failed"
		decision.Reason = err.Error()
		e.decisions.Append(decision)
		return err
	}

	metrics.PriceSamplesTotal.WithLabelValues(e.cfg.Symbol).Inc()
	e.session.RecordSample(e.now())
	signal := e.signal.Update(price)

	decision.Close = price
	decision.ShortEWMA = e.signal.ShortValue()
	decision.LongEWMA = e.signal.LongValue()
	decision.Signal = signal
	slog.Info("cycle", "close", price, "short_ewma", decision.ShortEWMA, "long_ewma", decision.LongEWMA, "signal", signal)

	gateCtx := risk.Context{
		SamplesSeen:   e.session.SamplesSeen(),
		WarmupSamples: e.cfg.LongSpan,
		PositionQty:   e.session.PositionQty(),
		Price:         price,
		KillSwitch:    e.cfg.KillSwitch,
	}
	if err := e.gate.Evaluate(signal, gateCtx); err != nil {
		decision.Result = "rejected"
		decision.Reason = err.Error()
		e.decisions.Append(decision)
		return err
	}

	if signal == strategy.Hold {
		decision.Result = "hold"
		e.decisions.Append(decision)
		return nil
	}

	var exec trader.Execution
	var side broker.Side
	switch signal {
	case strategy.Buy:
		side = broker.Buy
		acct, acctErr := e.accounts.Account(ctx)
		if acctErr != nil {
			decision.Result = "order_failed"
			decision.Reason = acctErr.Error()
			e.decisions.Append(decision)
			return acctErr
		}
		exec, err = e.trader.Buy(ctx, e.cfg.Symbol, 0, price, acct.BuyingPower)
	case strategy.Sell:
		side = broker.Sell
		exec, err = e.trader.Sell(ctx, e.cfg.Symbol, 0)
	}
	if err != nil {
		decision.Result = "order_failed"
		decision.Reason = err.Error()
		e.decisions.Append(decision)
		return err
	}

	decision.Result = "order_submitted"
	decision.OrderID = exec.OrderID
	decision.Qty = exec.Qty
	e.decisions.Append(decision)
	e.recordJournal(ctx, side, exec)
	return nil
}

func (e *Engine) liquidate(ctx context.Context) error {
	decision := Decision{
		RunID:     e.trader.RunID(),
		Timestamp: e.now().UTC(),
		Symbol:    e.cfg.Symbol,
	}

	exec, err := e.trader.Liquidate(ctx, e.cfg.Symbol)
	if err != nil {
		decision.Result = "liquidation_failed"
		decision.Reason = err.Error()
		e.decisions.Append(decision)
		return err
	}

	decision.Result = "liquidated"
	decision.OrderID = exec.OrderID
	decision.Qty = exec.Qty
	e.decisions.Append(decision)
	if exec.Qty > 0 {
		e.recordJournal(ctx, broker.Sell, exec)
	}
	slog.Info("end of day liquidation complete", "symbol", e.cfg.Symbol, "qty", exec.Qty)
	return nil
}

func (e *Engine) recordJournal(ctx context.Context, side broker.Side, exec trader.Execution) {
	if e.journal == nil {
		return
	}
	entry := journal.Entry{
		RunID:   e.trader.RunID(),
		Symbol:  e.cfg.Symbol,
		Side:    string(side),
		Qty:     exec.Qty,
		OrderID: exec.OrderID,
		Status:  "submitted",
	}
	if price, ok, err := e.trader.OrderFillPrice(ctx, exec.OrderID); err == nil && ok {
		entry.Status = broker.StatusFilled
		entry.FillPrice = price
	}
	if err := e.journal.Record(entry); err != nil {
		slog.Error("journal write failed", "error", err)
	}
}

func (e *Engine) pastCutoff() bool {
	now := e.now().In(e.loc)
	return now.Hour()*60+now.Minute() >= e.cutoffHour*60+e.cutoffMin
}

func recoverable(err error) bool {
	return errors.Is(err, marketdata.ErrDataFetch) ||
		errors.Is(err, broker.ErrOrderSubmissionFailed) ||
		errors.Is(err, broker.ErrBrokerUnavailable) ||
		errors.Is(err, trader.ErrInsufficientFunds) ||
		errors.Is(err, risk.ErrTradingLimits)
}

func waitCycle(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
