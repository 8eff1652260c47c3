package backtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftsim/internal/backtest/models"
	"hftsim/internal/bus"
	"hftsim/internal/depth"
	"hftsim/internal/priceaction"
	"hftsim/internal/types"
)

func newTestLocal(latency models.LatencyModel) (*Local, *bus.OrderBus, *bus.OrderBus) {
	ordersTo := bus.NewOrderBus()
	ordersFrom := bus.NewOrderBus()
	l := NewLocal(
		depth.New(0.1, 0.001),
		NewState(models.NewLinearAsset(1.0), models.NewTradingValueFeeModel(models.NewCommonFees(-0.00005, 0.0007))),
		latency,
		16,
		ordersTo,
		ordersFrom,
		priceaction.NewEngine([]int64{5 * 60 * 1_000_000_000}, []int64{6, 12, 24}),
	)
	return l, ordersTo, ordersFrom
}

func TestSubmitOrderDuplicateID(t *testing.T) {
	l, _, _ := newTestLocal(models.NewConstantLatency(10, 10))

	err := l.SubmitOrder(1, types.SideBuy, 100.0, 1.0, types.OrdTypeLimit, types.TimeInForceGTC, 1000)
	require.NoError(t, err)

	err = l.SubmitOrder(1, types.SideBuy, 100.0, 1.0, types.OrdTypeLimit, types.TimeInForceGTC, 1001)
	require.ErrorIs(t, err, types.ErrOrderIdExist)
}

func TestSubmitOrderSchedulesDelivery(t *testing.T) {
	l, ordersTo, _ := newTestLocal(models.NewConstantLatency(10, 10))

	require.NoError(t, l.SubmitOrder(1, types.SideBuy, 100.0, 1.0, types.OrdTypeLimit, types.TimeInForceGTC, 1000))
	ts, ok := ordersTo.EarliestTimestamp()
	require.True(t, ok)
	require.Equal(t, int64(1010), ts)

	order := l.Orders()[1]
	require.Equal(t, types.StatusNew, order.Req)
	require.Equal(t, int64(1000), order.PriceTick)
}

func TestModifyUnknownOrder(t *testing.T) {
	l, _, _ := newTestLocal(models.NewConstantLatency(10, 10))
	require.ErrorIs(t, l.Modify(9, 100.0, 1.0, 1000), types.ErrOrderNotFound)
	require.ErrorIs(t, l.Cancel(9, 1000), types.ErrOrderNotFound)
}

func TestModifyWhileRequestInFlight(t *testing.T) {
	l, _, _ := newTestLocal(models.NewConstantLatency(10, 10))
	require.NoError(t, l.SubmitOrder(1, types.SideBuy, 100.0, 1.0, types.OrdTypeLimit, types.TimeInForceGTC, 1000))

	// The new-order request has not been answered yet.
	require.ErrorIs(t, l.Modify(1, 101.0, 1.0, 1001), types.ErrOrderRequestInProcess)
	require.ErrorIs(t, l.Cancel(1, 1001), types.ErrOrderRequestInProcess)
}

func TestNegativeLatencyRejectsSubmit(t *testing.T) {
	// Every entry is rejected for technical reasons, surfacing after 50.
	flaky := models.NewBackoffLatency(models.NewConstantLatency(10, 10), 1, 50)
	l, ordersTo, ordersFrom := newTestLocal(flaky)

	require.NoError(t, l.SubmitOrder(1, types.SideBuy, 100.0, 1.0, types.OrdTypeLimit, types.TimeInForceGTC, 1000))
	require.Equal(t, 0, ordersTo.Len())

	ts, ok := ordersFrom.EarliestTimestamp()
	require.True(t, ok)
	require.Equal(t, int64(1050), ts)

	l.ProcessRecvOrder(1050)
	order := l.Orders()[1]
	require.Equal(t, types.StatusExpired, order.Status)
	require.Equal(t, types.StatusNone, order.Req)

	l.ClearInactiveOrders()
	require.Empty(t, l.Orders())
}

func TestNegativeLatencyRejectRestoresModify(t *testing.T) {
	base := models.NewConstantLatency(10, 10)
	// The second request (the modify) gets rejected.
	flaky := models.NewBackoffLatency(base, 2, 50)
	l, ordersTo, ordersFrom := newTestLocal(flaky)

	require.NoError(t, l.SubmitOrder(1, types.SideBuy, 100.0, 1.0, types.OrdTypeLimit, types.TimeInForceGTC, 1000))

	// Deliver the accepted new-order response by hand.
	order, _, _ := ordersTo.PopFront()
	order.Status = types.StatusNew
	order.Req = types.StatusNone
	order.ExchTimestamp = 1010
	ordersFrom.Append(order, 1020)
	l.ProcessRecvOrder(1020)
	require.Equal(t, types.StatusNone, l.Orders()[1].Req)

	require.NoError(t, l.Modify(1, 102.0, 2.0, 2000))
	l.ProcessRecvOrder(2050)

	// The rejected modify leaves the order open at its original terms.
	got := l.Orders()[1]
	require.Equal(t, types.StatusNew, got.Status)
	require.Equal(t, types.StatusNone, got.Req)
	require.Equal(t, int64(1000), got.PriceTick)
	require.Equal(t, 1.0, got.Qty)
}

func TestProcessTradeFeedsPriceAction(t *testing.T) {
	l, _, _ := newTestLocal(models.NewConstantLatency(10, 10))

	ev := types.Event{
		Ev:      types.LocalBuyTradeEvent,
		ExchTs:  1000,
		LocalTs: 1010,
		Px:      100.0,
		Qty:     2.0,
	}
	l.Process(&ev)

	tick, qty, ts, side := l.PriceAction().LastAccTrades()
	require.Equal(t, int64(1000), tick)
	require.Equal(t, 2.0, qty)
	require.Equal(t, int64(1010), ts)
	require.Equal(t, types.SideBuy, side)

	require.Len(t, l.LastTrades(), 1)
	l.ClearLastTrades()
	require.Empty(t, l.LastTrades())

	exchTs, localTs, ok := l.FeedLatency()
	require.True(t, ok)
	require.Equal(t, int64(1000), exchTs)
	require.Equal(t, int64(1010), localTs)
}
