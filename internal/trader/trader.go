// Package trader is the order executor: it turns signals into sized market
// orders and owns the position state machine. The position has two states,
// flat and long; it moves only after the broker acknowledges an order, never
// speculatively, and there is no short state.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ewmabot/internal/broker"
	"ewmabot/internal/metrics"
	"ewmabot/internal/risk"
	"ewmabot/internal/session"
)

// ErrInsufficientFunds is returned when the sized buy quantity rounds to
// zero. No order is submitted in that case.
var ErrInsufficientFunds = errors.New("insufficient buying power")

// DefaultSizingFraction is the share of buying power (for buys) or held
// quantity (for sells) committed per order.
const DefaultSizingFraction = 0.2

// Broker is the slice of the broker adapter the executor needs.
type Broker interface {
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderRef, error)
	GetOrder(ctx context.Context, orderID string) (broker.OrderRef, error)
}

// Execution reports a confirmed submission.
type Execution struct {
	OrderID string
	Qty     int
}

type Options struct {
	SizingFraction float64 // defaults to DefaultSizingFraction
	MaxNotional    float64 // 0 disables the cap
}

type Trader struct {
	broker      Broker
	session     *session.Session
	gate        risk.Gate
	sizing      float64
	maxNotional float64
	runID       string
	orderSeqNum uint64
}

func New(b Broker, sess *session.Session, opts Options) *Trader {
	sizing := opts.SizingFraction
	if sizing <= 0 {
		sizing = DefaultSizingFraction
	}
	return &Trader{
		broker:      b,
		session:     sess,
		sizing:      sizing,
		maxNotional: opts.MaxNotional,
		runID:       newRunID(),
	}
}

func (t *Trader) RunID() string {
	return t.runID
}

// Buy submits a market buy. A qty of zero or less asks the trader to size
// the order itself as floor(sizing*buyingPower/referencePrice); a sized
// quantity of zero means the account cannot afford a single share and
// returns ErrInsufficientFunds before anything reaches the broker.
func (t *Trader) Buy(ctx context.Context, symbol string, qty int, referencePrice, buyingPower float64) (Execution, error) {
	if qty <= 0 {
		if referencePrice <= 0 {
			return Execution{}, fmt.Errorf("%w: no reference price to size against", ErrInsufficientFunds)
		}
		qty = int(math.Floor(t.sizing * buyingPower / referencePrice))
	}
	if qty <= 0 {
		metrics.OrderFailuresTotal.WithLabelValues(symbol, "insufficient_funds").Inc()
		return Execution{}, fmt.Errorf("%w: sized to zero (buying_power=%.2f price=%.2f)", ErrInsufficientFunds, buyingPower, referencePrice)
	}
	if err := t.gate.CheckNotional(qty, referencePrice, t.maxNotional); err != nil {
		metrics.OrderFailuresTotal.WithLabelValues(symbol, "max_notional").Inc()
		return Execution{}, err
	}

	ref, err := t.broker.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:        symbol,
		Qty:           qty,
		Side:          broker.Buy,
		ClientOrderID: t.nextClientOrderID(),
	})
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues(symbol, "submission").Inc()
		return Execution{}, err
	}

	entryPrice := referencePrice
	if price, ok, lookupErr := t.OrderFillPrice(ctx, ref.ID); lookupErr == nil && ok {
		entryPrice = price
	}
	t.session.ApplyBuy(qty, entryPrice)
	metrics.OrdersTotal.WithLabelValues(symbol, string(broker.Buy)).Inc()
	slog.Info("buy confirmed", "symbol", symbol, "qty", qty, "order_id", ref.ID, "entry_price", entryPrice)
	return Execution{OrderID: ref.ID, Qty: qty}, nil
}

// Sell submits a market sell. A qty of zero or less sizes the order as
// floor(sizing*held). An explicit qty above the held quantity is rejected:
// the state machine has no short state to move into.
func (t *Trader) Sell(ctx context.Context, symbol string, qty int) (Execution, error) {
	held := t.session.PositionQty()
	if qty <= 0 {
		qty = int(math.Floor(t.sizing * float64(held)))
		if qty <= 0 {
			metrics.OrderFailuresTotal.WithLabelValues(symbol, "trading_limits").Inc()
			return Execution{}, fmt.Errorf("%w: sell sized to zero (held=%d)", risk.ErrTradingLimits, held)
		}
	}
	if qty > held {
		metrics.OrderFailuresTotal.WithLabelValues(symbol, "trading_limits").Inc()
		return Execution{}, fmt.Errorf("%w: sell qty %d exceeds held %d", risk.ErrTradingLimits, qty, held)
	}

	ref, err := t.broker.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:        symbol,
		Qty:           qty,
		Side:          broker.Sell,
		ClientOrderID: t.nextClientOrderID(),
	})
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues(symbol, "submission").Inc()
		return Execution{}, err
	}

	t.session.ApplySell(qty)
	metrics.OrdersTotal.WithLabelValues(symbol, string(broker.Sell)).Inc()
	slog.Info("sell confirmed", "symbol", symbol, "qty", qty, "order_id", ref.ID)
	return Execution{OrderID: ref.ID, Qty: qty}, nil
}

// Liquidate closes the whole position in one order. A flat position is a
// no-op with a zero Execution.
func (t *Trader) Liquidate(ctx context.Context, symbol string) (Execution, error) {
	held := t.session.PositionQty()
	if held <= 0 {
		slog.Info("liquidate skipped, position flat", "symbol", symbol)
		return Execution{}, nil
	}
	slog.Info("liquidating position", "symbol", symbol, "qty", held)
	return t.Sell(ctx, symbol, held)
}

// OrderFillPrice returns the filled average price for an order. ok is false
// for every status except "filled"; callers must treat that as "not yet
// determined", never as a zero cost.
func (t *Trader) OrderFillPrice(ctx context.Context, orderID string) (float64, bool, error) {
	ref, err := t.broker.GetOrder(ctx, orderID)
	if err != nil {
		return 0, false, err
	}
	if ref.Status != broker.StatusFilled || ref.FilledAvgPrice == nil {
		return 0, false, nil
	}
	return *ref.FilledAvgPrice, true, nil
}

func (t *Trader) nextClientOrderID() string {
	seq := atomic.AddUint64(&t.orderSeqNum, 1)
	return fmt.Sprintf("%s-%d", t.runID, seq)
}

func newRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	return timestamp + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
