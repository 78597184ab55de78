package trader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ewmabot/internal/broker"
	"ewmabot/internal/risk"
	"ewmabot/internal/session"
)

type fakeBroker struct {
	placed    []broker.OrderRequest
	placeErr  error
	order     broker.OrderRef
	getErr    error
	lastOrder broker.OrderRef
}

func (f *fakeBroker) PlaceOrder(_ context.Context, req broker.OrderRequest) (broker.OrderRef, error) {
	if f.placeErr != nil {
		return broker.OrderRef{}, f.placeErr
	}
	f.placed = append(f.placed, req)
	f.lastOrder = broker.OrderRef{ID: "order-1", ClientOrderID: req.ClientOrderID, Status: "accepted"}
	return f.lastOrder, nil
}

func (f *fakeBroker) GetOrder(_ context.Context, orderID string) (broker.OrderRef, error) {
	if f.getErr != nil {
		return broker.OrderRef{}, f.getErr
	}
	return f.order, nil
}

func newTestTrader(b Broker) (*Trader, *session.Session) {
	sess := session.New()
	return New(b, sess, Options{}), sess
}

func TestBuySizesFromBuyingPower(t *testing.T) {
	fake := &fakeBroker{}
	tr, sess := newTestTrader(fake)

	exec, err := tr.Buy(context.Background(), "TSLA", 0, 100, 1000)
	require.NoError(t, err)
	require.Equal(t, 2, exec.Qty, "floor(0.2*1000/100)")
	require.Len(t, fake.placed, 1)
	require.Equal(t, broker.Buy, fake.placed[0].Side)
	require.Equal(t, 2, sess.PositionQty())
}

func TestBuyInsufficientFundsNeverSubmits(t *testing.T) {
	fake := &fakeBroker{}
	tr, sess := newTestTrader(fake)

	_, err := tr.Buy(context.Background(), "TSLA", 0, 100, 4)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Empty(t, fake.placed, "no submission may be attempted")
	require.Equal(t, 0, sess.PositionQty())
}

func TestBuySubmissionFailureLeavesPositionUnchanged(t *testing.T) {
	fake := &fakeBroker{placeErr: broker.ErrOrderSubmissionFailed}
	tr, sess := newTestTrader(fake)

	_, err := tr.Buy(context.Background(), "TSLA", 3, 100, 10000)
	require.ErrorIs(t, err, broker.ErrOrderSubmissionFailed)
	require.Equal(t, 0, sess.PositionQty())
}

func TestBuyUsesFillPriceForAvgEntry(t *testing.T) {
	fill := 101.5
	fake := &fakeBroker{order: broker.OrderRef{Status: broker.StatusFilled, FilledAvgPrice: &fill}}
	tr, sess := newTestTrader(fake)

	_, err := tr.Buy(context.Background(), "TSLA", 2, 100, 10000)
	require.NoError(t, err)
	require.Equal(t, fill, sess.Snapshot().Position.AvgEntry)
}

func TestSellSizesFromHeldQuantity(t *testing.T) {
	fake := &fakeBroker{}
	tr, sess := newTestTrader(fake)
	sess.ApplyBuy(10, 100)

	exec, err := tr.Sell(context.Background(), "TSLA", 0)
	require.NoError(t, err)
	require.Equal(t, 2, exec.Qty, "floor(0.2*10)")
	require.Equal(t, 8, sess.PositionQty())
}

func TestSellSizedToZeroRejected(t *testing.T) {
	fake := &fakeBroker{}
	tr, sess := newTestTrader(fake)
	sess.ApplyBuy(4, 100)

	_, err := tr.Sell(context.Background(), "TSLA", 0)
	require.ErrorIs(t, err, risk.ErrTradingLimits)
	require.Empty(t, fake.placed)
	require.Equal(t, 4, sess.PositionQty())
}

func TestSellBeyondHeldRejected(t *testing.T) {
	fake := &fakeBroker{}
	tr, sess := newTestTrader(fake)
	sess.ApplyBuy(5, 100)

	_, err := tr.Sell(context.Background(), "TSLA", 6)
	require.ErrorIs(t, err, risk.ErrTradingLimits)
	require.Empty(t, fake.placed)
	require.Equal(t, 5, sess.PositionQty())
}

func TestLiquidateFlatIsNoOp(t *testing.T) {
	fake := &fakeBroker{}
	tr, _ := newTestTrader(fake)

	exec, err := tr.Liquidate(context.Background(), "TSLA")
	require.NoError(t, err)
	require.Zero(t, exec.Qty)
	require.Empty(t, fake.placed)
}

func TestLiquidateClosesFullPosition(t *testing.T) {
	fake := &fakeBroker{}
	tr, sess := newTestTrader(fake)
	sess.ApplyBuy(7, 100)

	exec, err := tr.Liquidate(context.Background(), "TSLA")
	require.NoError(t, err)
	require.Equal(t, 7, exec.Qty)
	require.Equal(t, 0, sess.PositionQty())
	require.Len(t, fake.placed, 1)
	require.Equal(t, broker.Sell, fake.placed[0].Side)
}

func TestOrderFillPriceOnlyForFilled(t *testing.T) {
	fill := 99.25
	cases := []struct {
		status string
		price  *float64
		wantOK bool
	}{
		{"pending_new", nil, false},
		{"canceled", nil, false},
		{broker.StatusFilled, &fill, true},
	}

	for _, tc := range cases {
		fake := &fakeBroker{order: broker.OrderRef{Status: tc.status, FilledAvgPrice: tc.price}}
		tr, _ := newTestTrader(fake)

		price, ok, err := tr.OrderFillPrice(context.Background(), "order-1")
		require.NoError(t, err)
		require.Equal(t, tc.wantOK, ok, "status %s", tc.status)
		if tc.wantOK {
			require.Equal(t, fill, price)
		}
	}
}

func TestOrderFillPriceLookupError(t *testing.T) {
	fake := &fakeBroker{getErr: errors.New("boom")}
	tr, _ := newTestTrader(fake)

	_, ok, err := tr.OrderFillPrice(context.Background(), "order-1")
	require.Error(t, err)
	require.False(t, ok)
}

func TestMaxNotionalCapOnBuy(t *testing.T) {
	fake := &fakeBroker{}
	sess := session.New()
	tr := New(fake, sess, Options{MaxNotional: 150})

	_, err := tr.Buy(context.Background(), "TSLA", 2, 100, 10000)
	require.ErrorIs(t, err, risk.ErrTradingLimits)
	require.Empty(t, fake.placed)
}

func TestClientOrderIDsAreSequencedPerRun(t *testing.T) {
	fake := &fakeBroker{}
	tr, _ := newTestTrader(fake)

	_, err := tr.Buy(context.Background(), "TSLA", 1, 100, 10000)
	require.NoError(t, err)
	_, err = tr.Sell(context.Background(), "TSLA", 1)
	require.NoError(t, err)

	require.Len(t, fake.placed, 2)
	require.Equal(t, tr.RunID()+"-1", fake.placed[0].ClientOrderID)
	require.Equal(t, tr.RunID()+"-2", fake.placed[1].ClientOrderID)
}
